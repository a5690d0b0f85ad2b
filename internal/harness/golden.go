package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/boqcalc/internal/ir"
)

// Render prints a scenario result as a deterministic text snapshot: the
// trace, then every calculated sheet with its summary and row outcomes.
func Render(scenarioName string, result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", scenarioName)

	b.WriteString("trace\n")
	for _, ev := range result.Trace {
		fmt.Fprintf(&b, "  %d %s %s", ev.Seq, ev.Type, ev.Sheet)
		switch {
		case ev.Error != "":
			fmt.Fprintf(&b, " error: %s", ev.Error)
		case ev.Summary != nil:
			fmt.Fprintf(&b, " %s", FormatSummary(*ev.Summary))
		case ev.Type == EventReset:
			fmt.Fprintf(&b, " rows=%d", ev.Reset)
		}
		b.WriteString("\n")
	}

	for _, sh := range result.Sheets {
		fmt.Fprintf(&b, "sheet %s %s\n", sh.Name, FormatSummary(sh.Summary))
		b.Write(RenderRows(sh.Rows))
	}
	return []byte(b.String())
}

// FormatSummary prints summary counters on one line.
func FormatSummary(s ir.Summary) string {
	return fmt.Sprintf("rows=%d cells=%d ok=%d failed=%d saved=%d",
		s.RowsProcessed, s.CellsProcessed, s.SuccessfulCells, s.FailedCells, s.RowsSaved)
}

// RenderRows prints a row header per row and one line per cell outcome:
//
//	ADDR | value | ok-or-error [| formula]
func RenderRows(rows []ir.RowResult) []byte {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "row %d %s\n", r.RowNumber, r.CalculationID)
		for _, c := range r.Cells {
			status := "ok"
			if !c.Succeeded {
				status = c.Error
			}
			fmt.Fprintf(&b, "  %s | %s | %s", c.Address, c.Value, status)
			if c.WasFormula {
				fmt.Fprintf(&b, " | %s", c.SourceFormula)
			}
			b.WriteString("\n")
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Render(scenarioName, result))
}
