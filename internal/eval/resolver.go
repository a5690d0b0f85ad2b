package eval

import (
	"context"
	"fmt"

	"github.com/roach88/boqcalc/internal/cache"
	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/formula"
	"github.com/roach88/boqcalc/internal/workbook"
)

// target is a reference mapped onto a canonical workbook and sheet.
type target struct {
	workbook string
	sheet    string
	role     workbook.Role
}

func (t target) key(addr cell.Address) string {
	return cache.CellKey(t.workbook, t.sheet, addr)
}

// locate maps ref onto a workbook and sheet. Local references take the
// current sheet; a sheet without a workbook means the output workbook.
func (e *Evaluator) locate(ref cell.Reference, ec *Context) (target, error) {
	if ref.Workbook == "" {
		sheet := ref.Sheet
		if sheet == "" {
			sheet = ec.CurrentSheet
		}
		if sheet == "" {
			return target{}, unresolvable("local reference %s has no current sheet", ref.Range)
		}
		return target{workbook: e.registry.Output(), sheet: sheet, role: workbook.RoleOutput}, nil
	}

	canonical, role, ok := e.registry.Resolve(ref.Workbook)
	if !ok {
		return target{}, unresolvable("unknown workbook %q", ref.Workbook)
	}
	if ref.Sheet == "" {
		return target{}, unresolvable("reference %s names no sheet", ref)
	}
	return target{workbook: canonical, sheet: ref.Sheet, role: role}, nil
}

// Resolve returns the value of a single-cell reference.
func (e *Evaluator) Resolve(ctx context.Context, ref cell.Reference, ec *Context) (cell.Value, error) {
	v, err := e.resolve(ctx, ref, ec)
	if err != nil {
		return ErrorValue(err), err
	}
	return v, nil
}

func (e *Evaluator) resolve(ctx context.Context, ref cell.Reference, ec *Context) (cell.Value, error) {
	t, err := e.locate(ref, ec)
	if err != nil {
		return cell.Value{}, err
	}
	return e.resolveCell(ctx, t, ref.Address(), ec)
}

// resolveCell reads one cell: the memo first, then the input snapshot or the
// output record.
func (e *Evaluator) resolveCell(ctx context.Context, t target, addr cell.Address, ec *Context) (cell.Value, error) {
	if err := ctx.Err(); err != nil {
		return cell.Value{}, err
	}
	key := t.key(addr)
	if ec.onPath(key) {
		return cell.Value{}, ec.cycleAt(key)
	}
	if v, ok := e.memo.Get(ec.SessionID, key); ok {
		return v, nil
	}

	if t.role == workbook.RoleInput {
		if ec.Inputs == nil {
			return cell.Value{}, fmt.Errorf("read %s: no input session", key)
		}
		v, err := ec.Inputs.GetCell(ctx, t.workbook, t.sheet, addr)
		if err != nil {
			return cell.Value{}, err
		}
		e.memo.Set(ec.SessionID, key, v, e.ttl)
		return v, nil
	}

	rec, found, err := e.records.GetRecord(ctx, ec.SessionID, t.workbook, t.sheet, addr)
	if err != nil {
		return cell.Value{}, fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return cell.Empty, nil
	}
	return e.recordValue(ctx, rec, ec)
}

// EvaluateRecord returns the value of an output record, evaluating its
// formula if it has one.
func (e *Evaluator) EvaluateRecord(ctx context.Context, rec cell.Record, ec *Context) (cell.Value, error) {
	v, err := e.recordValue(ctx, rec, ec)
	if err != nil {
		return ErrorValue(err), err
	}
	return v, nil
}

func (e *Evaluator) recordValue(ctx context.Context, rec cell.Record, ec *Context) (cell.Value, error) {
	if !rec.IsFormula {
		return rec.Value, nil
	}

	key := rec.Key()
	if ec.Depth() >= e.maxDepth {
		return cell.Value{}, ec.depthAt(key, e.maxDepth)
	}
	if !ec.enter(key) {
		return cell.Value{}, ec.cycleAt(key)
	}
	defer ec.leave(key)

	if v, ok := e.memo.Get(ec.SessionID, key); ok {
		return v, nil
	}

	// A value whose evaluation hit a cycle or the depth limit, even one that
	// IFERROR swallowed, depends on the path and is not memoized.
	p := ec.resolution()
	outer := p.tainted
	p.tainted = false
	defer func() { p.tainted = outer || p.tainted }()

	expr, err := e.parser.Parse(rec.Formula)
	if err != nil {
		perr := parseError(err)
		perr.Ref = key
		return cell.Value{}, perr
	}
	v, err := e.eval(ctx, expr, ec.onSheet(rec.Sheet))
	if err != nil {
		return cell.Value{}, err
	}
	if v.IsError() {
		return cell.Value{}, fromValue(v)
	}
	if !p.tainted {
		e.memo.Set(ec.SessionID, key, v, e.ttl)
	}
	return v, nil
}

// visit calls fn for each value an argument contributes, in row-major order
// for ranges. Failures of individual cells are passed to fn. An error that
// invalidates the whole argument (an unresolvable range, or any fatal error)
// stops the walk and is returned. fn returns false to stop.
func (e *Evaluator) visit(ctx context.Context, arg formula.Expr, ec *Context, fn func(i int, v cell.Value, err error) bool) error {
	switch n := arg.(type) {
	case *formula.Array:
		for i, v := range n.Values {
			if !fn(i, v, nil) {
				return nil
			}
		}
		return nil
	case *formula.Ref:
		if !n.Ref.IsRange() {
			break
		}
		return e.visitRange(ctx, n.Ref, ec, fn)
	}

	v, err := e.eval(ctx, arg, ec)
	if IsFatal(err) {
		return err
	}
	fn(0, v, err)
	return nil
}

func (e *Evaluator) visitRange(ctx context.Context, ref cell.Reference, ec *Context, fn func(int, cell.Value, error) bool) error {
	t, err := e.locate(ref, ec)
	if err != nil {
		return err
	}

	if t.role == workbook.RoleInput {
		if ec.Inputs == nil {
			return fmt.Errorf("read range %s: no input session", ref)
		}
		values, err := ec.Inputs.GetRange(ctx, t.workbook, t.sheet, ref.Range)
		if err != nil {
			return err
		}
		for i, v := range values {
			if !fn(i, v, nil) {
				return nil
			}
		}
		return nil
	}

	i := 0
	for addr := range ref.Range.Cells() {
		v, err := e.resolveCell(ctx, t, addr, ec)
		if IsFatal(err) {
			return err
		}
		if !fn(i, v, err) {
			return nil
		}
		i++
	}
	return nil
}

// nth returns the value at ordinal i of an argument. ok is false when i is
// out of bounds.
func (e *Evaluator) nth(ctx context.Context, arg formula.Expr, i int, ec *Context) (v cell.Value, ok bool, err error) {
	switch n := arg.(type) {
	case *formula.Array:
		if i >= len(n.Values) {
			return cell.Value{}, false, nil
		}
		return n.Values[i], true, nil
	case *formula.Ref:
		if !n.Ref.IsRange() {
			break
		}
		if i >= n.Ref.Range.Len() {
			return cell.Value{}, false, nil
		}
		t, lerr := e.locate(n.Ref, ec)
		if lerr != nil {
			return cell.Value{}, false, lerr
		}
		r := n.Ref.Range
		width := r.End.Col - r.Start.Col + 1
		addr := cell.Address{Col: r.Start.Col + i%width, Row: r.Start.Row + i/width}
		v, err = e.resolveCell(ctx, t, addr, ec)
		return v, true, err
	}

	if i != 0 {
		return cell.Value{}, false, nil
	}
	v, err = e.eval(ctx, arg, ec)
	return v, true, err
}
