package harness

import "github.com/roach88/boqcalc/internal/ir"

// Trace event types.
const (
	EventCalculate = "calculate"
	EventReset     = "reset"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Type    string      `json:"type"` // "calculate" or "reset"
	Sheet   string      `json:"sheet"`
	Seq     int64       `json:"seq"`
	Summary *ir.Summary `json:"summary,omitempty"`
	Reset   int64       `json:"reset_rows,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SheetState is the final checkpointed state of a calculated sheet.
type SheetState struct {
	Name    string         `json:"name"`
	Summary ir.Summary     `json:"summary"`
	Rows    []ir.RowResult `json:"rows"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the executed flow steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Sheets holds the final rows of each calculated sheet, in the order
	// the flow first calculated them.
	Sheets []SheetState `json:"sheets"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Sheets: []SheetState{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
