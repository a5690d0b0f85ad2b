package eval

import (
	"context"
	"math"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/formula"
)

// snapULPs bounds the representation noise a power-of-ten scaling can
// introduce, so that 1.1*10 ceils to 11 and not 12.
const snapULPs = 4

func (e *Evaluator) evalCall(ctx context.Context, n *formula.Call, ec *Context) (cell.Value, error) {
	switch n.Func {
	case formula.FuncIF:
		return e.callIF(ctx, n.Args, ec)
	case formula.FuncOR:
		return e.callLogical(ctx, n.Args, ec, true)
	case formula.FuncAND:
		return e.callLogical(ctx, n.Args, ec, false)
	case formula.FuncSUM:
		sum, _, err := e.aggregate(ctx, n.Args, ec)
		if err != nil {
			return cell.Value{}, err
		}
		return cell.Number(sum), nil
	case formula.FuncAVERAGE:
		sum, count, err := e.aggregate(ctx, n.Args, ec)
		if err != nil {
			return cell.Value{}, err
		}
		if count == 0 {
			return cell.Number(0), nil
		}
		return cell.Number(sum / float64(count)), nil
	case formula.FuncROUND:
		return e.callRound(ctx, n.Args, ec, roundHalfAway)
	case formula.FuncROUNDUP:
		return e.callRound(ctx, n.Args, ec, roundCeil)
	case formula.FuncSQRT:
		f, err := e.evalNumber(ctx, n.Args[0], ec)
		if err != nil {
			return cell.Value{}, err
		}
		if f < 0 {
			return cell.Value{}, domain("SQRT of negative number %s", cell.FormatNumber(f))
		}
		return cell.Number(math.Sqrt(f)), nil
	case formula.FuncIFERROR:
		return e.callIFERROR(ctx, n.Args, ec)
	case formula.FuncLOOKUP:
		return e.callLOOKUP(ctx, n.Args, ec)
	}
	return cell.Value{}, newError(ErrCodeParse, "unknown function %s", n.Func)
}

// callIF evaluates only the chosen branch. The two-argument form is FALSE
// when the condition does not hold.
func (e *Evaluator) callIF(ctx context.Context, args []formula.Expr, ec *Context) (cell.Value, error) {
	cond, err := e.evalOperand(ctx, args[0], ec)
	if err != nil {
		return cell.Value{}, err
	}
	if cond.ToBool() {
		return e.eval(ctx, args[1], ec)
	}
	if len(args) < 3 {
		return cell.Bool(false), nil
	}
	return e.eval(ctx, args[2], ec)
}

// callLogical implements OR (stopAt=true) and AND (stopAt=false). Range
// arguments contribute each of their cells.
func (e *Evaluator) callLogical(ctx context.Context, args []formula.Expr, ec *Context, stopAt bool) (cell.Value, error) {
	var failure error
	for _, arg := range args {
		done := false
		err := e.visit(ctx, arg, ec, func(_ int, v cell.Value, err error) bool {
			if err == nil && v.IsError() {
				err = fromValue(v)
			}
			if err != nil {
				failure = err
				return false
			}
			if v.ToBool() == stopAt {
				done = true
				return false
			}
			return true
		})
		if err != nil {
			return cell.Value{}, err
		}
		if failure != nil {
			return cell.Value{}, failure
		}
		if done {
			return cell.Bool(stopAt), nil
		}
	}
	return cell.Bool(!stopAt), nil
}

// aggregate sums the numeric contributions of args. Numbers and numeric
// text count; Empty, booleans, other text and cells that fail to evaluate
// are skipped. A range that reaches back to the cell being evaluated is a
// cycle, not a skipped cell.
func (e *Evaluator) aggregate(ctx context.Context, args []formula.Expr, ec *Context) (sum float64, count int, err error) {
	var cyclic error
	for _, arg := range args {
		err := e.visit(ctx, arg, ec, func(_ int, v cell.Value, err error) bool {
			if IsCycleError(err) {
				cyclic = err
				return false
			}
			if err != nil {
				return true
			}
			if f, ok := v.NumericValue(); ok {
				sum += f
				count++
			}
			return true
		})
		if err != nil {
			return 0, 0, err
		}
		if cyclic != nil {
			return 0, 0, cyclic
		}
	}
	return sum, count, nil
}

type rounder func(scaled float64) float64

func roundHalfAway(scaled float64) float64 { return math.Round(scaled) }

// roundCeil is a literal ceiling: negative numbers move toward zero, so
// ROUNDUP(-12.341, 2) is -12.34.
func roundCeil(scaled float64) float64 { return math.Ceil(snap(scaled)) }

// snap returns the nearest integer when f is within a few ulps of it. Real
// fractional parts are never absorbed, however large f is.
func snap(f float64) float64 {
	r := math.Round(f)
	if math.Abs(f-r) <= snapULPs*ulp(r) {
		return r
	}
	return f
}

// ulp is the gap between |x| and the next larger float64.
func ulp(x float64) float64 {
	x = math.Abs(x)
	return math.Nextafter(x, math.Inf(1)) - x
}

func (e *Evaluator) callRound(ctx context.Context, args []formula.Expr, ec *Context, round rounder) (cell.Value, error) {
	n, err := e.evalNumber(ctx, args[0], ec)
	if err != nil {
		return cell.Value{}, err
	}
	d, err := e.evalNumber(ctx, args[1], ec)
	if err != nil {
		return cell.Value{}, err
	}
	digits := math.Trunc(d)
	if math.Abs(digits) > 15 {
		return cell.Value{}, domain("digit count %s out of range", cell.FormatNumber(d))
	}
	p := math.Pow(10, digits)
	r := round(n*p) / p
	if r == 0 {
		r = 0 // drop negative zero
	}
	return cell.Number(r), nil
}

// callIFERROR returns the fallback when the value fails, is an error value or
// is Empty. Fatal errors pass through.
func (e *Evaluator) callIFERROR(ctx context.Context, args []formula.Expr, ec *Context) (cell.Value, error) {
	v, err := e.eval(ctx, args[0], ec)
	if IsFatal(err) {
		return cell.Value{}, err
	}
	if err == nil && !v.IsError() && !v.IsEmpty() {
		return v, nil
	}
	return e.eval(ctx, args[1], ec)
}

// callLOOKUP is an exact-match lookup. Empty lookup cells only match an
// Empty value. No match, or a match past the end of the result, is Empty.
func (e *Evaluator) callLOOKUP(ctx context.Context, args []formula.Expr, ec *Context) (cell.Value, error) {
	want, err := e.evalOperand(ctx, args[0], ec)
	if err != nil {
		return cell.Value{}, err
	}

	index := -1
	err = e.visit(ctx, args[1], ec, func(i int, v cell.Value, err error) bool {
		if err != nil {
			return true
		}
		if v.IsEmpty() != want.IsEmpty() {
			return true
		}
		if cell.Equal(v, want) {
			index = i
			return false
		}
		return true
	})
	if err != nil {
		return cell.Value{}, err
	}
	if index < 0 {
		return cell.Empty, nil
	}

	v, ok, err := e.nth(ctx, args[2], index, ec)
	if err != nil {
		return cell.Value{}, err
	}
	if !ok {
		return cell.Empty, nil
	}
	return v, nil
}
