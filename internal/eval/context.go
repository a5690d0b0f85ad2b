package eval

import (
	"context"

	"github.com/roach88/boqcalc/internal/cell"
)

// Inputs reads input workbook cells for one session. Implemented by
// *cellstore.Session.
type Inputs interface {
	GetCell(ctx context.Context, workbook, sheet string, addr cell.Address) (cell.Value, error)
	GetRange(ctx context.Context, workbook, sheet string, r cell.Range) ([]cell.Value, error)
}

// Records reads output workbook records. Implemented by *store.Store.
type Records interface {
	GetRecord(ctx context.Context, sessionID, workbook, sheet string, addr cell.Address) (cell.Record, bool, error)
}

// Context carries the state of one evaluation: the session, the sheet that
// local references resolve against, and the formula cells on the active
// resolution path.
//
// A Context is not safe for concurrent use. Each row worker creates its own.
type Context struct {
	SessionID    string
	CurrentSheet string
	Inputs       Inputs

	path *resolutionPath
}

// resolutionPath is the set of formula cells being evaluated, shared by
// every Context of one evaluation.
type resolutionPath struct {
	frames map[string]struct{}

	// tainted is set when a cycle or depth failure was hit. Values computed
	// around it depend on where the evaluation started.
	tainted bool
}

func newPath() *resolutionPath {
	return &resolutionPath{frames: make(map[string]struct{})}
}

// NewContext creates an evaluation context for a session.
func NewContext(sessionID, currentSheet string, inputs Inputs) *Context {
	return &Context{
		SessionID:    sessionID,
		CurrentSheet: currentSheet,
		Inputs:       inputs,
		path:         newPath(),
	}
}

func (c *Context) resolution() *resolutionPath {
	if c.path == nil {
		c.path = newPath()
	}
	return c.path
}

// onSheet returns a context for evaluating a formula that lives on sheet.
// The resolution path is shared with c.
func (c *Context) onSheet(sheet string) *Context {
	p := c.resolution()
	if sheet == c.CurrentSheet {
		return c
	}
	return &Context{
		SessionID:    c.SessionID,
		CurrentSheet: sheet,
		Inputs:       c.Inputs,
		path:         p,
	}
}

// enter puts key on the resolution path. It returns false if key is
// already there.
func (c *Context) enter(key string) bool {
	p := c.resolution()
	if _, ok := p.frames[key]; ok {
		return false
	}
	p.frames[key] = struct{}{}
	return true
}

func (c *Context) leave(key string) {
	delete(c.resolution().frames, key)
}

// onPath reports whether key is being evaluated further up the path.
func (c *Context) onPath(key string) bool {
	_, ok := c.resolution().frames[key]
	return ok
}

// cycleAt returns the cycle error for key and taints the evaluation.
func (c *Context) cycleAt(key string) *EvalError {
	c.resolution().tainted = true
	return cycle(key)
}

// depthAt returns the depth error for key and taints the evaluation.
func (c *Context) depthAt(key string, limit int) *EvalError {
	c.resolution().tainted = true
	return depthExceeded(key, limit)
}

// Depth is the number of formula cells on the active resolution path.
func (c *Context) Depth() int { return len(c.resolution().frames) }
