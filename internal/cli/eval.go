package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/eval"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Session string
	Sheet   string
}

// EvalResult is the eval command output.
type EvalResult struct {
	Formula string     `json:"formula"`
	Sheet   string     `json:"sheet"`
	Value   cell.Value `json:"value"`
	Code    string     `json:"code,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func (r EvalResult) String() string {
	if r.Error != "" {
		return fmt.Sprintf("%s\n  %s", r.Value.ToText(), r.Error)
	}
	return r.Value.ToText()
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a formula against a session",
		Long: `Evaluate formula text against the cells of a session.

Local references resolve on --sheet, which defaults to the first sheet of
the output workbook. An evaluation failure prints the error value the
formula shows and exits with code 1.

Example:
  boqcalc eval --session s1 "=SUM(D2:D9)"
  boqcalc eval --session s1 --sheet Abstract "=ROUNDUP(B2*C2,2)"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "current sheet for local references")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runEval(opts *EvalOptions, formula string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return formatter.Fail("failed to open", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	sheet, err := a.resolveSheet(ctx, opts.Session, opts.Sheet)
	if err != nil {
		return formatter.Fail("failed to evaluate", err)
	}

	v, err := a.engine.EvaluateFormula(ctx, formula, opts.Session, sheet)
	result := EvalResult{Formula: formula, Sheet: sheet, Value: v}
	if err != nil {
		if eval.IsFatal(err) {
			return formatter.Fail("failed to evaluate", err)
		}
		if eval.IsParseError(err) {
			return formatter.Fail("invalid formula", WrapExitError(ExitCommandError, formula, err))
		}
		result.Code = string(eval.Code(err))
		result.Error = err.Error()
		if outErr := formatter.Error(CodeEvaluation, err.Error(), result); outErr != nil {
			return outErr
		}
		if opts.Format != "json" {
			fmt.Fprintln(formatter.Writer, result.Value.ToText())
		}
		return WrapExitError(ExitFailure, "evaluation failed", err)
	}
	return formatter.Success(result)
}

// resolveSheet returns sheet, or the first output sheet of the session when
// sheet is empty.
func (a *app) resolveSheet(ctx context.Context, session, sheet string) (string, error) {
	if sheet != "" {
		return sheet, nil
	}
	if _, err := a.store.GetSession(ctx, session); err != nil {
		return "", err
	}
	sheets, err := a.store.ListSheets(ctx, session, a.engine.Registry().Output())
	if err != nil {
		return "", err
	}
	if len(sheets) == 0 {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("session %s has no output sheets", session))
	}
	return sheets[0], nil
}
