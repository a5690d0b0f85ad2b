package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/ir"
)

// ImportSession creates a session and loads its output records and input
// cells in one transaction. Records keep the order given, which is the load
// order used by the engine.
//
// Returns ErrSessionExists if the session ID is taken.
func (s *Store) ImportSession(ctx context.Context, sessionID string, output, inputs []cell.Record) error {
	if sessionID == "" {
		return fmt.Errorf("import session: empty session id")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, status) VALUES (?, ?)
			ON CONFLICT(id) DO NOTHING
		`, sessionID, string(ir.SessionUploaded))
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSessionExists
		}

		if err := insertRecords(ctx, tx, sessionID, output); err != nil {
			return err
		}
		return insertInputs(ctx, tx, sessionID, inputs)
	})
	if err != nil {
		return fmt.Errorf("import session %s: %w", sessionID, err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, sessionID string, records []cell.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cell_records
		(session_id, workbook, sheet, address, row_number, col, is_formula, formula, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare cell record insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		valueJSON, err := marshalValue(r.Value)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID,
			r.Workbook,
			r.Sheet,
			r.Address.String(),
			r.Address.Row,
			r.Address.Col,
			boolToInt(r.IsFormula),
			r.Formula,
			valueJSON,
		); err != nil {
			return fmt.Errorf("insert cell record %s!%s: %w", r.Sheet, r.Address, err)
		}
	}
	return nil
}

func insertInputs(ctx context.Context, tx *sql.Tx, sessionID string, inputs []cell.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO input_cells
		(session_id, workbook, sheet, address, row_number, col, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare input cell insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range inputs {
		if r.IsFormula {
			return fmt.Errorf("input cell %s!%s holds a formula", r.Sheet, r.Address)
		}
		valueJSON, err := marshalValue(r.Value)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			sessionID,
			r.Workbook,
			r.Sheet,
			r.Address.String(),
			r.Address.Row,
			r.Address.Col,
			valueJSON,
		); err != nil {
			return fmt.Errorf("insert input cell %s!%s: %w", r.Sheet, r.Address, err)
		}
	}
	return nil
}

// SetSessionStatus records a session lifecycle transition.
// Returns ErrNotFound if the session does not exist.
func (s *Store) SetSessionStatus(ctx context.Context, sessionID string, status ir.SessionStatus, errMsg string) error {
	if !status.IsValid() {
		return fmt.Errorf("set session status: invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, error = ? WHERE id = ?
	`, string(status), errMsg, sessionID)
	if err != nil {
		return fmt.Errorf("set session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set session status %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// SaveRowResult persists one row checkpoint in a single statement.
// Uses ON CONFLICT DO NOTHING for idempotency: a row already checkpointed for
// (session, sheet, row_number) is left untouched and saved is false.
func (s *Store) SaveRowResult(ctx context.Context, r ir.RowResult) (saved bool, err error) {
	cellsJSON, err := marshalCells(r.Cells)
	if err != nil {
		return false, fmt.Errorf("save row result: %w", err)
	}
	digest, err := ir.RowDigest(r)
	if err != nil {
		return false, fmt.Errorf("save row result: %w", err)
	}
	ok, failed := r.Counts()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO row_results
		(session_id, sheet, row_number, calculation_id, cells, successful_cells, failed_cells, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, sheet, row_number) DO NOTHING
	`,
		r.SessionID,
		r.Sheet,
		r.RowNumber,
		r.CalculationID,
		cellsJSON,
		ok,
		failed,
		digest,
	)
	if err != nil {
		return false, fmt.Errorf("save row result %s row %d: %w", r.Sheet, r.RowNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save row result: %w", err)
	}
	return n > 0, nil
}

// DeleteRowResults removes every checkpoint of (session, sheet) so the next
// calculation starts from scratch. Returns the number of rows removed.
func (s *Store) DeleteRowResults(ctx context.Context, sessionID, sheet string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM row_results WHERE session_id = ? AND sheet = ?
	`, sessionID, sheet)
	if err != nil {
		return 0, fmt.Errorf("delete row results: %w", err)
	}
	return res.RowsAffected()
}

// CreateJob records the start of a calculation.
func (s *Store) CreateJob(ctx context.Context, job ir.Job) error {
	if !job.Status.IsValid() {
		return fmt.Errorf("create job: invalid status %q", job.Status)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calculation_jobs
		(calculation_id, session_id, sheet, total_rows, completed_rows, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		job.CalculationID,
		job.SessionID,
		job.Sheet,
		job.TotalRows,
		job.CompletedRows,
		string(job.Status),
		job.Error,
	)
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.CalculationID, err)
	}
	return nil
}

// UpdateJobProgress stores the completed row count of a running job.
func (s *Store) UpdateJobProgress(ctx context.Context, calculationID string, completedRows int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE calculation_jobs SET completed_rows = ?
		WHERE calculation_id = ? AND status = ?
	`, completedRows, calculationID, string(ir.JobRunning))
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// FinishJob moves a job to a terminal status.
func (s *Store) FinishJob(ctx context.Context, calculationID string, completedRows int, status ir.JobStatus, errMsg string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish job: %q is not a terminal status", status)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE calculation_jobs SET completed_rows = ?, status = ?, error = ?
		WHERE calculation_id = ?
	`, completedRows, string(status), errMsg, calculationID)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish job %s: %w", calculationID, ErrNotFound)
	}
	return nil
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
