package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/cellstore"
	"github.com/roach88/boqcalc/internal/eval"
	"github.com/roach88/boqcalc/internal/ir"
)

// RunOption configures a single RunCalculation call.
type RunOption func(*runConfig)

type runConfig struct {
	workers int
	reset   bool
}

// Workers overrides the engine's worker count for one run.
func Workers(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Reset discards the sheet's checkpoints before running, so every row is
// recalculated.
func Reset() RunOption {
	return func(c *runConfig) {
		c.reset = true
	}
}

// row is one unit of work: the records of a sheet row in load order.
type row struct {
	number  int
	records []cell.Record
}

// groupRows buckets records by row number. Rows come out in ascending order;
// records keep their load order within a row.
func groupRows(records []cell.Record) []row {
	index := make(map[int]int)
	rows := []row{}
	for _, rec := range records {
		n := rec.Address.Row
		i, ok := index[n]
		if !ok {
			i = len(rows)
			index[n] = i
			rows = append(rows, row{number: n})
		}
		rows[i].records = append(rows[i].records, rec)
	}
	slices.SortFunc(rows, func(a, b row) int { return a.number - b.number })
	return rows
}

// RunCalculation calculates every row of sheet that has no checkpoint yet
// and returns the summary of all checkpointed rows.
//
// Each row is evaluated by one worker and saved as soon as it finishes. A
// failing cell is recorded in its row and does not stop the run. A store
// failure or cancellation stops the run; rows saved so far stay saved and
// the next call resumes from them.
//
// When every row is already checkpointed nothing is written and the
// summary is rebuilt from the checkpoints, so re-running reports the same
// totals.
func (e *Engine) RunCalculation(ctx context.Context, sessionID, sheet string, opts ...RunOption) (ir.Summary, error) {
	cfg := runConfig{workers: e.workers}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return ir.Summary{}, fmt.Errorf("run calculation: %w", err)
	}

	tr := e.claim(sessionID)
	if tr == nil {
		return ir.Summary{}, newBusyError(sessionID)
	}
	defer e.unclaim(sessionID)

	if cfg.reset {
		if _, err := e.resetRows(ctx, sessionID, sheet); err != nil {
			return ir.Summary{}, err
		}
	}

	records, err := e.store.ListSheetRecords(ctx, sessionID, e.registry.Output(), sheet)
	if err != nil {
		return ir.Summary{}, fmt.Errorf("run calculation: %w", err)
	}
	if len(records) == 0 {
		return ir.Summary{}, newNoRecordsError(sessionID, sheet)
	}
	rows := groupRows(records)

	done, err := e.store.CompletedRows(ctx, sessionID, sheet)
	if err != nil {
		return ir.Summary{}, fmt.Errorf("run calculation: %w", err)
	}
	remaining := make([]row, 0, len(rows))
	for _, r := range rows {
		if !done[r.number] {
			remaining = append(remaining, r)
		}
	}

	if len(remaining) == 0 {
		slog.Info("calculation already complete",
			"session", sessionID,
			"sheet", sheet,
			"rows", len(rows),
		)
		return e.summarize(ctx, sessionID, sheet)
	}

	job := ir.Job{
		SessionID:     sessionID,
		Sheet:         sheet,
		CalculationID: e.ids.Generate(),
		TotalRows:     len(rows),
		CompletedRows: len(rows) - len(remaining),
		Status:        ir.JobRunning,
	}
	if err := e.store.CreateJob(ctx, job); err != nil {
		return ir.Summary{}, fmt.Errorf("run calculation: %w", err)
	}
	if err := e.store.SetSessionStatus(ctx, sessionID, ir.SessionCalculating, ""); err != nil {
		return ir.Summary{}, fmt.Errorf("run calculation: %w", err)
	}
	tr.start(job)

	slog.Info("calculation started",
		"session", sessionID,
		"sheet", sheet,
		"calculation_id", job.CalculationID,
		"total_rows", job.TotalRows,
		"remaining_rows", len(remaining),
		"workers", cfg.workers,
	)

	runErr := e.runRows(ctx, tr, job, remaining, cfg.workers)

	// The outcome is recorded even when ctx is already cancelled.
	fctx := context.WithoutCancel(ctx)
	e.finish(fctx, tr, runErr)

	sum, err := e.summarize(fctx, sessionID, sheet)
	if runErr != nil {
		return sum, fmt.Errorf("run calculation %s: %w", job.CalculationID, runErr)
	}
	return sum, err
}

// runRows evaluates rows on a bounded worker pool. It returns the first
// fatal error, or the context error if the run was cancelled.
func (e *Engine) runRows(ctx context.Context, tr *tracker, job ir.Job, rows []row, workers int) error {
	sess, err := e.opener.Open(ctx, job.SessionID)
	if err != nil {
		return err
	}
	defer func() {
		e.opener.Release(job.SessionID)
		n := e.eval.Memo().ClearSession(job.SessionID)
		expired := e.eval.Memo().Purge()
		hits, fallbacks := sess.Stats()
		parsed, parseMisses := e.eval.Parser().Stats()
		slog.Debug("session released",
			"session", job.SessionID,
			"memo_entries", n,
			"memo_expired", expired,
			"parse_hits", parsed,
			"parse_misses", parseMisses,
			"snapshot_cells", sess.Size(),
			"snapshot_hits", hits,
			"store_fallbacks", fallbacks,
		)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, r := range rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := e.calculateRow(gctx, sess, job, r)
			if err != nil {
				return err
			}
			// A calculated row is saved even if the run is being cancelled.
			if _, err := e.store.SaveRowResult(context.WithoutCancel(gctx), result); err != nil {
				return err
			}
			tr.advance(func(j ir.Job) { e.publish(context.WithoutCancel(gctx), j) })
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// calculateRow evaluates the records of one row in load order.
func (e *Engine) calculateRow(ctx context.Context, sess *cellstore.Session, job ir.Job, r row) (ir.RowResult, error) {
	result := ir.RowResult{
		SessionID:     job.SessionID,
		Sheet:         job.Sheet,
		RowNumber:     r.number,
		CalculationID: job.CalculationID,
		Cells:         make([]ir.CellOutcome, 0, len(r.records)),
	}

	ec := eval.NewContext(job.SessionID, job.Sheet, sess)
	for _, rec := range r.records {
		out, err := e.calculateRecord(ctx, rec, ec)
		if err != nil {
			return ir.RowResult{}, fmt.Errorf("row %d: %w", r.number, err)
		}
		result.Cells = append(result.Cells, out)
	}

	ok, failed := result.Counts()
	slog.Debug("row calculated",
		"session", job.SessionID,
		"sheet", job.Sheet,
		"row", r.number,
		"succeeded", ok,
		"failed", failed,
	)
	return result, nil
}

// calculateRecord evaluates one cell. A recoverable evaluation error is
// captured in the outcome; only fatal errors are returned.
func (e *Engine) calculateRecord(ctx context.Context, rec cell.Record, ec *eval.Context) (ir.CellOutcome, error) {
	out := ir.CellOutcome{
		Address:    rec.Address.String(),
		Sheet:      rec.Sheet,
		WasFormula: rec.IsFormula,
	}
	if rec.IsFormula {
		out.SourceFormula = rec.Formula
	}

	v, err := e.eval.EvaluateRecord(ctx, rec, ec)
	if eval.IsFatal(err) {
		return ir.CellOutcome{}, fmt.Errorf("cell %s: %w", rec.Address, err)
	}
	out.Value = v
	if err != nil {
		out.Error = err.Error()
		slog.Warn("cell evaluation failed",
			"session", ec.SessionID,
			"sheet", rec.Sheet,
			"row", rec.Address.Row,
			"cell", rec.Address.String(),
			"code", string(eval.Code(err)),
			"error", err,
		)
		return out, nil
	}
	out.Succeeded = true
	return out, nil
}

// finish records the terminal job and session status.
func (e *Engine) finish(ctx context.Context, tr *tracker, runErr error) {
	jobStatus := ir.JobCompleted
	sessStatus := ir.SessionCalculated
	errMsg := ""
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		jobStatus = ir.JobCancelled
		sessStatus = ir.SessionFailed
		errMsg = "calculation cancelled"
	default:
		jobStatus = ir.JobFailed
		sessStatus = ir.SessionFailed
		errMsg = runErr.Error()
	}

	job := tr.finish(jobStatus, errMsg)
	if err := e.store.FinishJob(ctx, job.CalculationID, job.CompletedRows, jobStatus, errMsg); err != nil {
		slog.Error("finish job failed", "calculation_id", job.CalculationID, "error", err)
	}
	if err := e.store.SetSessionStatus(ctx, job.SessionID, sessStatus, errMsg); err != nil {
		slog.Error("set session status failed", "session", job.SessionID, "error", err)
	}
	if e.onProgress != nil {
		e.onProgress(job)
	}

	logFn := slog.Info
	if runErr != nil {
		logFn = slog.Error
	}
	logFn("calculation finished",
		"session", job.SessionID,
		"sheet", job.Sheet,
		"calculation_id", job.CalculationID,
		"status", string(jobStatus),
		"completed_rows", job.CompletedRows,
		"total_rows", job.TotalRows,
	)
}

func (e *Engine) summarize(ctx context.Context, sessionID, sheet string) (ir.Summary, error) {
	sum, err := e.store.SummarizeRows(ctx, sessionID, sheet)
	if err != nil {
		return ir.Summary{}, fmt.Errorf("summarize %s: %w", sheet, err)
	}
	return sum, nil
}
