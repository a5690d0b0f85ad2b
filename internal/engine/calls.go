package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/boqcalc/internal/cache"
	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/eval"
	"github.com/roach88/boqcalc/internal/ir"
)

// EvaluateFormula evaluates formula text against a session, with local
// references resolving on currentSheet.
//
// Successful results are memoized by (session, sheet, formula text). On an
// evaluation failure the returned value is the error value the formula
// shows and err is an *eval.EvalError; any other error is fatal.
func (e *Engine) EvaluateFormula(ctx context.Context, formula, sessionID, currentSheet string) (cell.Value, error) {
	key := cache.FormulaKey(sessionID, currentSheet, formula)
	memo := e.eval.Memo()
	if v, ok := memo.Get(sessionID, key); ok {
		return v, nil
	}

	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return cell.Error(cell.ErrValue), fmt.Errorf("evaluate formula: %w", err)
	}
	sess, err := e.opener.Open(ctx, sessionID)
	if err != nil {
		return cell.Error(cell.ErrValue), fmt.Errorf("evaluate formula: %w", err)
	}
	defer e.opener.Release(sessionID)

	v, err := e.eval.EvaluateText(ctx, formula, eval.NewContext(sessionID, currentSheet, sess))
	if err != nil {
		return v, err
	}
	memo.Set(sessionID, key, v, e.ttl)
	return v, nil
}

// CalculateCell evaluates one output cell of sheet and returns its outcome
// without saving it. address accepts "$" locks.
func (e *Engine) CalculateCell(ctx context.Context, sessionID, sheet, address string) (ir.CellOutcome, error) {
	addr, err := cell.ParseAddress(address)
	if err != nil {
		return ir.CellOutcome{}, fmt.Errorf("calculate cell: %w", err)
	}
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return ir.CellOutcome{}, fmt.Errorf("calculate cell: %w", err)
	}

	rec, found, err := e.store.GetRecord(ctx, sessionID, e.registry.Output(), sheet, addr)
	if err != nil {
		return ir.CellOutcome{}, fmt.Errorf("calculate cell: %w", err)
	}
	if !found {
		return ir.CellOutcome{}, newCellNotFoundError(sessionID, sheet, addr.String())
	}

	sess, err := e.opener.Open(ctx, sessionID)
	if err != nil {
		return ir.CellOutcome{}, fmt.Errorf("calculate cell: %w", err)
	}
	defer e.opener.Release(sessionID)

	return e.calculateRecord(ctx, rec, eval.NewContext(sessionID, sheet, sess))
}

// ResetRows deletes the checkpoints of (session, sheet) and the session's
// memoized values, so the next RunCalculation recalculates every row.
// Returns the number of rows removed.
func (e *Engine) ResetRows(ctx context.Context, sessionID, sheet string) (int64, error) {
	if e.claim(sessionID) == nil {
		return 0, newBusyError(sessionID)
	}
	defer e.unclaim(sessionID)
	return e.resetRows(ctx, sessionID, sheet)
}

func (e *Engine) resetRows(ctx context.Context, sessionID, sheet string) (int64, error) {
	n, err := e.store.DeleteRowResults(ctx, sessionID, sheet)
	if err != nil {
		return 0, fmt.Errorf("reset rows: %w", err)
	}
	cleared := e.eval.Memo().ClearSession(sessionID)
	slog.Info("rows reset",
		"session", sessionID,
		"sheet", sheet,
		"rows", n,
		"memo_entries", cleared,
	)
	return n, nil
}
