package ir

import "github.com/roach88/boqcalc/internal/cell"

// SessionStatus is the lifecycle state of an uploaded session.
type SessionStatus string

const (
	SessionUploaded    SessionStatus = "uploaded"
	SessionCalculating SessionStatus = "calculating"
	SessionCalculated  SessionStatus = "calculated"
	SessionFailed      SessionStatus = "failed"
)

// IsValid reports whether s is a known status.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionUploaded, SessionCalculating, SessionCalculated, SessionFailed:
		return true
	}
	return false
}

// JobStatus is the state of one calculation run over a sheet.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobRunning, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the job has stopped.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Session is an uploaded set of workbooks.
type Session struct {
	ID     string        `json:"id"`
	Status SessionStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// CellOutcome is the calculated result of one cell.
type CellOutcome struct {
	Address       string     `json:"address"`
	Sheet         string     `json:"sheet"`
	WasFormula    bool       `json:"was_formula"`
	SourceFormula string     `json:"source_formula,omitempty"`
	Value         cell.Value `json:"value"`
	Succeeded     bool       `json:"succeeded"`
	Error         string     `json:"error,omitempty"`
}

// RowResult holds every cell outcome of one row. It is the checkpoint unit:
// a (session, sheet, row) is persisted at most once.
type RowResult struct {
	SessionID     string        `json:"session_id"`
	Sheet         string        `json:"sheet"`
	RowNumber     int           `json:"row_number"`
	CalculationID string        `json:"calculation_id"`
	Cells         []CellOutcome `json:"cells"`
}

// Counts returns the number of succeeded and failed cells.
func (r RowResult) Counts() (succeeded, failed int) {
	for _, c := range r.Cells {
		if c.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Job tracks a calculation over one sheet. Identity fields never change;
// the engine owns the counters.
type Job struct {
	SessionID     string    `json:"session_id"`
	Sheet         string    `json:"sheet"`
	CalculationID string    `json:"calculation_id"`
	TotalRows     int       `json:"total_rows"`
	CompletedRows int       `json:"completed_rows"`
	Status        JobStatus `json:"status"`
	Error         string    `json:"error,omitempty"`
}

// Percent returns completion in [0, 100].
func (j Job) Percent() float64 {
	if j.TotalRows == 0 {
		return 100
	}
	return float64(j.CompletedRows) * 100 / float64(j.TotalRows)
}

// Summary aggregates the checkpointed rows of a (session, sheet).
type Summary struct {
	RowsProcessed   int `json:"rows_processed"`
	CellsProcessed  int `json:"cells_processed"`
	SuccessfulCells int `json:"successful_cells"`
	FailedCells     int `json:"failed_cells"`
	RowsSaved       int `json:"rows_saved"`
}
