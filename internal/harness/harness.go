package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roach88/boqcalc/internal/engine"
	"github.com/roach88/boqcalc/internal/store"
	"github.com/roach88/boqcalc/internal/testutil"
	"github.com/roach88/boqcalc/internal/workbook"
)

// DefaultSession is the session ID used when neither the scenario nor its
// fixture names one.
const DefaultSession = "scenario"

// Harness holds the per-scenario execution state.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	session string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database in a temporary directory.
// Execution flow:
//  1. Import the fixture as the scenario session
//  2. Execute flow steps with expect validation
//  3. Evaluate assertions
//  4. Collect the final rows of every calculated sheet
//
// The returned error covers setup and store failures; failed expectations
// are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "boqcalc-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario store: %w", err)
	}
	defer st.Close()

	fx, err := workbook.LoadFixture(scenario.Fixture)
	if err != nil {
		return nil, err
	}
	reg := workbook.Default()
	output, inputs, err := fx.Records(reg)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", scenario.Fixture, err)
	}

	session := scenario.Session
	if session == "" {
		session = fx.Session
	}
	if session == "" {
		session = DefaultSession
	}
	if err := st.ImportSession(ctx, session, output, inputs); err != nil {
		return nil, fmt.Errorf("failed to import fixture: %w", err)
	}

	opts := []engine.Option{
		engine.WithRegistry(reg),
		engine.WithIDGenerator(testutil.NewSequenceIDGenerator("calc")),
		engine.WithClock(testutil.NewFakeClock(time.Time{})),
	}
	if scenario.Workers > 0 {
		opts = append(opts, engine.WithWorkers(scenario.Workers))
	}

	h := &Harness{
		store:   st,
		engine:  engine.New(st, opts...),
		session: session,
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, err
	}
	if err := EvaluateAssertions(ctx, h, scenario.Assertions, result); err != nil {
		return nil, err
	}
	if err := h.collectSheets(ctx, scenario.Flow, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	// Row digests taken before a reset; the next calculation of the sheet
	// must reproduce them.
	beforeReset := make(map[string]map[int]string)
	for i, step := range flow {
		if step.Reset != "" {
			digests, err := h.store.RowDigests(ctx, h.session, step.Reset)
			if err != nil {
				return fmt.Errorf("flow[%d]: reset %s: %w", i, step.Reset, err)
			}
			beforeReset[step.Reset] = digests
			n, err := h.engine.ResetRows(ctx, h.session, step.Reset)
			if err != nil {
				return fmt.Errorf("flow[%d]: reset %s: %w", i, step.Reset, err)
			}
			result.addTrace(TraceEvent{Type: EventReset, Sheet: step.Reset, Reset: n})
			continue
		}

		var runOpts []engine.RunOption
		if step.Workers > 0 {
			runOpts = append(runOpts, engine.Workers(step.Workers))
		}
		sum, err := h.engine.RunCalculation(ctx, h.session, step.Calculate, runOpts...)

		ev := TraceEvent{Type: EventCalculate, Sheet: step.Calculate}
		if err != nil {
			ev.Error = err.Error()
		} else {
			ev.Summary = &sum
		}
		result.addTrace(ev)

		expect := step.Expect
		if expect == nil {
			expect = &ExpectClause{}
		}
		switch {
		case expect.Error != "" && err == nil:
			result.AddError(fmt.Sprintf("flow[%d]: calculate %s: expected error containing %q, got success",
				i, step.Calculate, expect.Error))
		case expect.Error != "" && !strings.Contains(err.Error(), expect.Error):
			result.AddError(fmt.Sprintf("flow[%d]: calculate %s: expected error containing %q, got %q",
				i, step.Calculate, expect.Error, err.Error()))
		case expect.Error == "" && err != nil:
			result.AddError(fmt.Sprintf("flow[%d]: calculate %s: %v", i, step.Calculate, err))
		case err == nil:
			for _, name := range sortedKeys(expect.Summary) {
				if got := summaryFields[name](sum); got != expect.Summary[name] {
					result.AddError(fmt.Sprintf("flow[%d]: calculate %s: %s: expected %d, got %d",
						i, step.Calculate, name, expect.Summary[name], got))
				}
			}
			if before, ok := beforeReset[step.Calculate]; ok {
				delete(beforeReset, step.Calculate)
				after, err := h.store.RowDigests(ctx, h.session, step.Calculate)
				if err != nil {
					return fmt.Errorf("flow[%d]: calculate %s: %w", i, step.Calculate, err)
				}
				for _, row := range changedRows(before, after) {
					result.AddError(fmt.Sprintf("flow[%d]: calculate %s: row %d differs from before reset",
						i, step.Calculate, row))
				}
			}
		}
	}
	return nil
}

// changedRows lists, in order, the rows of before whose digest is missing
// from or different in after.
func changedRows(before, after map[int]string) []int {
	var rows []int
	for row, d := range before {
		if after[row] != d {
			rows = append(rows, row)
		}
	}
	slices.Sort(rows)
	return rows
}

// collectSheets records the final rows of every calculated sheet.
func (h *Harness) collectSheets(ctx context.Context, flow []FlowStep, result *Result) error {
	var seen []string
	for _, step := range flow {
		if step.Calculate == "" || slices.Contains(seen, step.Calculate) {
			continue
		}
		seen = append(seen, step.Calculate)

		rows, err := h.store.ListRowResults(ctx, h.session, step.Calculate)
		if err != nil {
			return fmt.Errorf("failed to list rows: %w", err)
		}
		sum, err := h.store.SummarizeRows(ctx, h.session, step.Calculate)
		if err != nil {
			return fmt.Errorf("failed to summarize rows: %w", err)
		}
		result.Sheets = append(result.Sheets, SheetState{
			Name:    step.Calculate,
			Summary: sum,
			Rows:    rows,
		})
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
