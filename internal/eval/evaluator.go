package eval

import (
	"context"
	"math"
	"time"

	"github.com/roach88/boqcalc/internal/cache"
	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/formula"
	"github.com/roach88/boqcalc/internal/workbook"
)

// Evaluator interprets formula trees against the cells of a session.
//
// Formula cells of the output workbook are evaluated on demand when a
// reference reaches them, and their values are memoized per session.
//
// Thread-safety: Evaluator is safe for concurrent use provided every
// goroutine uses its own Context.
type Evaluator struct {
	registry *workbook.Registry
	records  Records
	parser   *formula.Cache
	memo     *cache.Memo
	ttl      time.Duration
	maxDepth int
}

// DefaultMaxDepth bounds the number of formula cells on one resolution
// path. Cycle detection catches A -> B -> A; the depth limit catches
// runaway chains that never repeat.
const DefaultMaxDepth = 50000

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMemo shares a memo between evaluators. A non-positive ttl uses
// cache.DefaultTTL.
func WithMemo(m *cache.Memo, ttl time.Duration) Option {
	return func(e *Evaluator) {
		e.memo = m
		e.ttl = ttl
	}
}

// WithMaxDepth sets the resolution depth limit.
//
// Default: 50000 (DefaultMaxDepth)
// Use WithMaxDepth(3) for testing depth enforcement.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) {
		e.maxDepth = n
	}
}

// WithParseCache shares a parse cache between evaluators.
func WithParseCache(c *formula.Cache) Option {
	return func(e *Evaluator) {
		e.parser = c
	}
}

// New creates an Evaluator that maps workbook names through reg and reads
// output records from records.
func New(reg *workbook.Registry, records Records, opts ...Option) *Evaluator {
	e := &Evaluator{
		registry: reg,
		records:  records,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = workbook.Default()
	}
	if e.parser == nil {
		e.parser = formula.NewCache()
	}
	if e.memo == nil {
		e.memo = cache.NewMemo(nil)
	}
	return e
}

// Memo returns the computed-value memo.
func (e *Evaluator) Memo() *cache.Memo { return e.memo }

// Parser returns the parse cache.
func (e *Evaluator) Parser() *formula.Cache { return e.parser }

// Registry returns the workbook registry.
func (e *Evaluator) Registry() *workbook.Registry { return e.registry }

// Evaluate computes expr. On failure the returned value is the error value
// the cell shows, and err says why. A result that is itself an error value
// (for example a referenced input cell holding #N/A) is reported as a
// failure too.
func (e *Evaluator) Evaluate(ctx context.Context, expr formula.Expr, ec *Context) (cell.Value, error) {
	v, err := e.eval(ctx, expr, ec)
	if err == nil && v.IsError() {
		err = fromValue(v)
	}
	if err != nil {
		return ErrorValue(err), err
	}
	return v, nil
}

// EvaluateText parses and evaluates formula text.
func (e *Evaluator) EvaluateText(ctx context.Context, text string, ec *Context) (cell.Value, error) {
	expr, err := e.parser.Parse(text)
	if err != nil {
		perr := parseError(err)
		return ErrorValue(perr), perr
	}
	return e.Evaluate(ctx, expr, ec)
}

func (e *Evaluator) eval(ctx context.Context, expr formula.Expr, ec *Context) (cell.Value, error) {
	switch n := expr.(type) {
	case *formula.Literal:
		return n.Value, nil
	case *formula.Ref:
		if n.Ref.IsRange() {
			return cell.Value{}, typeMismatch("range %s used as a single value", n.Ref)
		}
		return e.resolve(ctx, n.Ref, ec)
	case *formula.Array:
		return cell.Value{}, typeMismatch("array %s used as a single value", n)
	case *formula.Unary:
		return e.evalUnary(ctx, n, ec)
	case *formula.Binary:
		return e.evalBinary(ctx, n, ec)
	case *formula.Call:
		return e.evalCall(ctx, n, ec)
	}
	return cell.Value{}, typeMismatch("unsupported expression %T", expr)
}

// evalOperand evaluates expr and turns an error value into an error.
func (e *Evaluator) evalOperand(ctx context.Context, expr formula.Expr, ec *Context) (cell.Value, error) {
	v, err := e.eval(ctx, expr, ec)
	if err != nil {
		return cell.Value{}, err
	}
	if v.IsError() {
		return cell.Value{}, fromValue(v)
	}
	return v, nil
}

// evalNumber evaluates expr and coerces it to a number.
func (e *Evaluator) evalNumber(ctx context.Context, expr formula.Expr, ec *Context) (float64, error) {
	v, err := e.evalOperand(ctx, expr, ec)
	if err != nil {
		return 0, err
	}
	f, ok := v.ToNumber()
	if !ok {
		return 0, typeMismatch("%s is not a number", v)
	}
	return f, nil
}

func (e *Evaluator) evalUnary(ctx context.Context, n *formula.Unary, ec *Context) (cell.Value, error) {
	f, err := e.evalNumber(ctx, n.X, ec)
	if err != nil {
		return cell.Value{}, err
	}
	if n.Op == formula.OpNeg {
		f = -f
	}
	return cell.Number(f), nil
}

func (e *Evaluator) evalBinary(ctx context.Context, n *formula.Binary, ec *Context) (cell.Value, error) {
	if n.Op.IsComparison() {
		return e.evalComparison(ctx, n, ec)
	}

	a, err := e.evalNumber(ctx, n.Left, ec)
	if err != nil {
		return cell.Value{}, err
	}
	b, err := e.evalNumber(ctx, n.Right, ec)
	if err != nil {
		return cell.Value{}, err
	}

	var r float64
	switch n.Op {
	case formula.OpAdd:
		r = a + b
	case formula.OpSub:
		r = a - b
	case formula.OpMul:
		r = a * b
	case formula.OpDiv:
		if b == 0 {
			return cell.Value{}, divByZero()
		}
		r = a / b
	case formula.OpPow:
		if a == 0 && b < 0 {
			return cell.Value{}, divByZero()
		}
		r = math.Pow(a, b)
	default:
		return cell.Value{}, typeMismatch("unsupported operator %s", n.Op)
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return cell.Value{}, domain("%s%s%s has no finite result", cell.FormatNumber(a), n.Op, cell.FormatNumber(b))
	}
	return cell.Number(r), nil
}

// evalComparison compares by value type: = and <> test equality numerically
// when both sides are numeric and as exact text otherwise; the ordering
// operators are false unless both sides are numeric.
func (e *Evaluator) evalComparison(ctx context.Context, n *formula.Binary, ec *Context) (cell.Value, error) {
	a, err := e.evalOperand(ctx, n.Left, ec)
	if err != nil {
		return cell.Value{}, err
	}
	b, err := e.evalOperand(ctx, n.Right, ec)
	if err != nil {
		return cell.Value{}, err
	}

	switch n.Op {
	case formula.OpEq:
		return cell.Bool(cell.Equal(a, b)), nil
	case formula.OpNe:
		return cell.Bool(!cell.Equal(a, b)), nil
	}

	c, ok := cell.Compare(a, b)
	if !ok {
		return cell.Bool(false), nil
	}
	switch n.Op {
	case formula.OpLt:
		return cell.Bool(c < 0), nil
	case formula.OpLe:
		return cell.Bool(c <= 0), nil
	case formula.OpGt:
		return cell.Bool(c > 0), nil
	default:
		return cell.Bool(c >= 0), nil
	}
}
