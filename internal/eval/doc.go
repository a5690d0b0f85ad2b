// Package eval interprets parsed formulas.
//
// An Evaluator walks a formula tree by structural recursion. References are
// resolved lazily: input workbook cells come from the session snapshot,
// output workbook cells from their records, and formula cells reached through
// a reference are evaluated in turn on their own sheet and memoized.
//
// # Errors
//
// Evaluation failures are *EvalError values with a Code and the error value
// the cell takes (#DIV/0!, #VALUE!, #CYCLE!, ...). They fail a single cell.
// Every other error, such as a store failure or a cancelled context, is
// fatal and aborts the calculation that triggered it:
//
//	v, err := ev.EvaluateText(ctx, "=A1/B1", ec)
//	switch {
//	case err == nil:
//	case eval.IsFatal(err):
//	    return err
//	default:
//	    // v holds the cell's error value
//	}
//
// # Cycles
//
// A Context records the formula cells on the active resolution path. A
// reference that reaches a cell already on the path fails with
// ErrCodeCycle instead of recursing.
package eval
