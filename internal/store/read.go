package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/ir"
)

// GetSession returns a session by ID, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, sessionID string) (ir.Session, error) {
	var sess ir.Session
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, error FROM sessions WHERE id = ?
	`, sessionID).Scan(&sess.ID, &status, &sess.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Session{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return ir.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.Status = ir.SessionStatus(status)
	return sess, nil
}

// LoadSessionSnapshot bulk-loads every input cell of a session, keyed by
// cell.Key. This is the one bulk read a calculation performs up front.
func (s *Store) LoadSessionSnapshot(ctx context.Context, sessionID string) (map[string]cell.Value, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workbook, sheet, row_number, col, value
		FROM input_cells
		WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query input cells: %w", err)
	}
	defer rows.Close()

	cells := make(map[string]cell.Value)
	for rows.Next() {
		var workbook, sheet, valueJSON string
		var addr cell.Address
		if err := rows.Scan(&workbook, &sheet, &addr.Row, &addr.Col, &valueJSON); err != nil {
			return nil, fmt.Errorf("scan input cell: %w", err)
		}
		v, err := unmarshalValue(valueJSON)
		if err != nil {
			return nil, err
		}
		cells[cell.Key(workbook, sheet, addr)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate input cells: %w", err)
	}
	return cells, nil
}

// GetInputCell reads one input cell. found is false when the cell was never
// extracted; callers treat that as Empty.
func (s *Store) GetInputCell(ctx context.Context, sessionID, workbook, sheet string, addr cell.Address) (v cell.Value, found bool, err error) {
	var valueJSON string
	err = s.db.QueryRowContext(ctx, `
		SELECT value FROM input_cells
		WHERE session_id = ? AND workbook = ? AND sheet = ? AND address = ?
	`, sessionID, workbook, sheet, addr.String()).Scan(&valueJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return cell.Empty, false, nil
	}
	if err != nil {
		return cell.Value{}, false, fmt.Errorf("get input cell: %w", err)
	}
	v, err = unmarshalValue(valueJSON)
	if err != nil {
		return cell.Value{}, false, err
	}
	return v, true, nil
}

// GetInputRange reads a rectangular block of input cells. The result has
// exactly r.Len() values in row-major order; missing cells are Empty.
func (s *Store) GetInputRange(ctx context.Context, sessionID, workbook, sheet string, r cell.Range) ([]cell.Value, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_number, col, value FROM input_cells
		WHERE session_id = ? AND workbook = ? AND sheet = ?
		  AND row_number BETWEEN ? AND ?
		  AND col BETWEEN ? AND ?
	`, sessionID, workbook, sheet, r.Start.Row, r.End.Row, r.Start.Col, r.End.Col)
	if err != nil {
		return nil, fmt.Errorf("query input range: %w", err)
	}
	defer rows.Close()

	width := r.End.Col - r.Start.Col + 1
	values := make([]cell.Value, r.Len())
	for rows.Next() {
		var row, col int
		var valueJSON string
		if err := rows.Scan(&row, &col, &valueJSON); err != nil {
			return nil, fmt.Errorf("scan input range: %w", err)
		}
		v, err := unmarshalValue(valueJSON)
		if err != nil {
			return nil, err
		}
		values[(row-r.Start.Row)*width+(col-r.Start.Col)] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate input range: %w", err)
	}
	return values, nil
}

// GetRecord returns one output workbook record. found is false when the cell
// was not extracted.
func (s *Store) GetRecord(ctx context.Context, sessionID, workbook, sheet string, addr cell.Address) (rec cell.Record, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT workbook, sheet, row_number, col, is_formula, formula, value
		FROM cell_records
		WHERE session_id = ? AND workbook = ? AND sheet = ? AND address = ?
	`, sessionID, workbook, sheet, addr.String())
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cell.Record{}, false, nil
	}
	if err != nil {
		return cell.Record{}, false, err
	}
	return rec, true, nil
}

// ListSheetRecords returns every record of one sheet in load order.
func (s *Store) ListSheetRecords(ctx context.Context, sessionID, workbook, sheet string) ([]cell.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workbook, sheet, row_number, col, is_formula, formula, value
		FROM cell_records
		WHERE session_id = ? AND workbook = ? AND sheet = ?
		ORDER BY id ASC
	`, sessionID, workbook, sheet)
	if err != nil {
		return nil, fmt.Errorf("query cell records: %w", err)
	}
	defer rows.Close()

	records := []cell.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cell records: %w", err)
	}
	return records, nil
}

// ListSheets returns the sheet names of a workbook in first-load order.
func (s *Store) ListSheets(ctx context.Context, sessionID, workbook string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sheet FROM cell_records
		WHERE session_id = ? AND workbook = ?
		GROUP BY sheet
		ORDER BY MIN(id) ASC
	`, sessionID, workbook)
	if err != nil {
		return nil, fmt.Errorf("query sheets: %w", err)
	}
	defer rows.Close()

	sheets := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		sheets = append(sheets, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheets: %w", err)
	}
	return sheets, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (cell.Record, error) {
	var rec cell.Record
	var isFormula int
	var valueJSON string
	if err := sc.Scan(&rec.Workbook, &rec.Sheet, &rec.Address.Row, &rec.Address.Col, &isFormula, &rec.Formula, &valueJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cell.Record{}, err
		}
		return cell.Record{}, fmt.Errorf("scan cell record: %w", err)
	}
	rec.IsFormula = isFormula != 0
	v, err := unmarshalValue(valueJSON)
	if err != nil {
		return cell.Record{}, err
	}
	rec.Value = v
	return rec, nil
}

// CompletedRows returns the row numbers already checkpointed for
// (session, sheet).
func (s *Store) CompletedRows(ctx context.Context, sessionID, sheet string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_number FROM row_results
		WHERE session_id = ? AND sheet = ?
	`, sessionID, sheet)
	if err != nil {
		return nil, fmt.Errorf("query completed rows: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan completed row: %w", err)
		}
		done[n] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed rows: %w", err)
	}
	return done, nil
}

// ListRowResults returns the checkpoints of (session, sheet) ordered by row.
func (s *Store) ListRowResults(ctx context.Context, sessionID, sheet string) ([]ir.RowResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, sheet, row_number, calculation_id, cells
		FROM row_results
		WHERE session_id = ? AND sheet = ?
		ORDER BY row_number ASC
	`, sessionID, sheet)
	if err != nil {
		return nil, fmt.Errorf("query row results: %w", err)
	}
	defer rows.Close()

	results := []ir.RowResult{}
	for rows.Next() {
		var r ir.RowResult
		var cellsJSON string
		if err := rows.Scan(&r.SessionID, &r.Sheet, &r.RowNumber, &r.CalculationID, &cellsJSON); err != nil {
			return nil, fmt.Errorf("scan row result: %w", err)
		}
		if r.Cells, err = unmarshalCells(cellsJSON); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate row results: %w", err)
	}
	return results, nil
}

// RowDigests returns the content digest of every checkpointed row.
func (s *Store) RowDigests(ctx context.Context, sessionID, sheet string) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_number, digest FROM row_results
		WHERE session_id = ? AND sheet = ?
	`, sessionID, sheet)
	if err != nil {
		return nil, fmt.Errorf("query row digests: %w", err)
	}
	defer rows.Close()

	digests := make(map[int]string)
	for rows.Next() {
		var n int
		var d string
		if err := rows.Scan(&n, &d); err != nil {
			return nil, fmt.Errorf("scan row digest: %w", err)
		}
		digests[n] = d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate row digests: %w", err)
	}
	return digests, nil
}

// SummarizeRows aggregates the checkpoints of (session, sheet).
func (s *Store) SummarizeRows(ctx context.Context, sessionID, sheet string) (ir.Summary, error) {
	var sum ir.Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(successful_cells), 0),
		       COALESCE(SUM(failed_cells), 0)
		FROM row_results
		WHERE session_id = ? AND sheet = ?
	`, sessionID, sheet).Scan(&sum.RowsProcessed, &sum.SuccessfulCells, &sum.FailedCells)
	if err != nil {
		return ir.Summary{}, fmt.Errorf("summarize rows: %w", err)
	}
	sum.CellsProcessed = sum.SuccessfulCells + sum.FailedCells
	sum.RowsSaved = sum.RowsProcessed
	return sum, nil
}

// GetJob returns a calculation job by ID, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, calculationID string) (ir.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, sheet, calculation_id, total_rows, completed_rows, status, error
		FROM calculation_jobs WHERE calculation_id = ?
	`, calculationID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Job{}, fmt.Errorf("job %s: %w", calculationID, ErrNotFound)
	}
	return job, err
}

// LatestJob returns the most recently created job of a session, or
// ErrNotFound.
func (s *Store) LatestJob(ctx context.Context, sessionID string) (ir.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, sheet, calculation_id, total_rows, completed_rows, status, error
		FROM calculation_jobs WHERE session_id = ?
		ORDER BY seq DESC LIMIT 1
	`, sessionID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Job{}, fmt.Errorf("jobs of session %s: %w", sessionID, ErrNotFound)
	}
	return job, err
}

func scanJob(sc scanner) (ir.Job, error) {
	var job ir.Job
	var status string
	err := sc.Scan(&job.SessionID, &job.Sheet, &job.CalculationID, &job.TotalRows, &job.CompletedRows, &status, &job.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Job{}, err
		}
		return ir.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = ir.JobStatus(status)
	return job, nil
}
