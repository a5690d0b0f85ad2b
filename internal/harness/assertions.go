package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/eval"
	"github.com/roach88/boqcalc/internal/ir"
	"github.com/roach88/boqcalc/internal/store"
)

// numericTolerance is the relative tolerance of numeric value matches.
const numericTolerance = 1e-9

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s assertion failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and records failures in result.
// It returns an error only when the store cannot be read.
func EvaluateAssertions(ctx context.Context, h *Harness, assertions []Assertion, result *Result) error {
	for i, a := range assertions {
		err := evaluateAssertion(ctx, h, a)
		if err == nil {
			continue
		}
		var ae *AssertionError
		if !errors.As(err, &ae) {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
		result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
	}
	return nil
}

func evaluateAssertion(ctx context.Context, h *Harness, a Assertion) error {
	switch a.Type {
	case AssertCellValue:
		return assertCellValue(ctx, h, a)
	case AssertCellError:
		return assertCellError(ctx, h, a)
	case AssertFormula:
		return assertFormula(ctx, h, a)
	case AssertSummary:
		return assertSummary(ctx, h, a)
	case AssertJobStatus:
		return assertJobStatus(ctx, h, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// findOutcome returns the checkpointed outcome of a.Cell on a.Sheet.
func findOutcome(ctx context.Context, h *Harness, a Assertion) (ir.CellOutcome, error) {
	addr, err := cell.ParseAddress(a.Cell)
	if err != nil {
		return ir.CellOutcome{}, err
	}
	rows, err := h.store.ListRowResults(ctx, h.session, a.Sheet)
	if err != nil {
		return ir.CellOutcome{}, err
	}
	for _, r := range rows {
		if r.RowNumber != addr.Row {
			continue
		}
		for _, c := range r.Cells {
			if c.Address == addr.String() {
				return c, nil
			}
		}
	}
	return ir.CellOutcome{}, &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("checkpointed cell %s!%s", a.Sheet, addr),
		Actual:   "no outcome",
	}
}

func assertCellValue(ctx context.Context, h *Harness, a Assertion) error {
	out, err := findOutcome(ctx, h, a)
	if err != nil {
		return err
	}
	want := cell.FromRaw(a.Value)
	if !matchValue(want, out.Value) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s!%s = %s", a.Sheet, out.Address, want),
			Actual:   out.Value.String(),
		}
	}
	return nil
}

func assertCellError(ctx context.Context, h *Harness, a Assertion) error {
	out, err := findOutcome(ctx, h, a)
	if err != nil {
		return err
	}
	if out.Succeeded || !strings.Contains(out.Error, a.Error) {
		actual := "success"
		if !out.Succeeded {
			actual = fmt.Sprintf("%q", out.Error)
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s!%s to fail with %q", a.Sheet, out.Address, a.Error),
			Actual:   actual,
		}
	}
	return nil
}

func assertFormula(ctx context.Context, h *Harness, a Assertion) error {
	v, err := h.engine.EvaluateFormula(ctx, a.Formula, h.session, a.Sheet)
	if err != nil && eval.IsFatal(err) {
		return err
	}

	if a.Error != "" {
		if err == nil {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s to fail with %s", a.Formula, a.Error),
				Actual:   v.String(),
			}
		}
		if code := string(eval.Code(err)); code != a.Error {
			return &AssertionError{Type: a.Type, Expected: a.Error, Actual: code}
		}
		return nil
	}

	if err != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %v", a.Formula, a.Value),
			Actual:   err.Error(),
		}
	}
	want := cell.FromRaw(a.Value)
	if !matchValue(want, v) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s = %s", a.Formula, want),
			Actual:   v.String(),
		}
	}
	return nil
}

func assertSummary(ctx context.Context, h *Harness, a Assertion) error {
	sum, err := h.store.SummarizeRows(ctx, h.session, a.Sheet)
	if err != nil {
		return err
	}
	for _, name := range sortedKeys(a.Expect) {
		if got := summaryFields[name](sum); got != a.Expect[name] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s %s = %d", a.Sheet, name, a.Expect[name]),
				Actual:   fmt.Sprintf("%d", got),
			}
		}
	}
	return nil
}

func assertJobStatus(ctx context.Context, h *Harness, a Assertion) error {
	job, err := h.store.LatestJob(ctx, h.session)
	if store.IsNotFound(err) {
		return &AssertionError{Type: a.Type, Expected: a.Status, Actual: "no job"}
	}
	if err != nil {
		return err
	}
	if string(job.Status) != a.Status {
		return &AssertionError{Type: a.Type, Expected: a.Status, Actual: string(job.Status)}
	}
	return nil
}

// matchValue compares numbers within numericTolerance and everything else
// with cell.Equal.
func matchValue(want, got cell.Value) bool {
	if want.Kind() == cell.KindNumber && got.Kind() == cell.KindNumber {
		diff := math.Abs(want.Num() - got.Num())
		return diff <= numericTolerance*math.Max(1, math.Abs(want.Num()))
	}
	if want.Kind() == cell.KindError || got.Kind() == cell.KindError {
		return want.Kind() == got.Kind() && want.ErrorKind() == got.ErrorKind()
	}
	return cell.Equal(want, got)
}
