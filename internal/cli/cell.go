package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boqcalc/internal/ir"
)

// CellOptions holds flags for the cell command.
type CellOptions struct {
	*RootOptions
	Session string
}

// cellText formats a single outcome for text output.
type cellText ir.CellOutcome

func (c cellText) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s!%s = %s", c.Sheet, c.Address, c.Value.ToText())
	if c.WasFormula {
		fmt.Fprintf(&b, "\n  formula: %s", c.SourceFormula)
	}
	if !c.Succeeded {
		fmt.Fprintf(&b, "\n  error: %s", c.Error)
	}
	return b.String()
}

// NewCellCommand creates the cell command.
func NewCellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cell <sheet> <address>",
		Short: "Calculate a single output cell",
		Long: `Calculate one cell of the output workbook without saving a checkpoint.

A failed evaluation is reported with the cell's error value and exits with
code 1.

Example:
  boqcalc cell --session s1 Abstract D12
  boqcalc cell --session s1 Abstract '$F$7' --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCell(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runCell(opts *CellOptions, sheet, address string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return formatter.Fail("failed to open", err)
	}
	defer a.Close()

	out, err := a.engine.CalculateCell(cmd.Context(), opts.Session, sheet, address)
	if err != nil {
		return formatter.Fail("failed to calculate cell", err)
	}
	if err := formatter.Success(cellOutput(opts.Format, out)); err != nil {
		return err
	}
	if !out.Succeeded {
		return NewExitError(ExitFailure, fmt.Sprintf("cell %s!%s failed", sheet, out.Address))
	}
	return nil
}

// cellOutput picks the text rendering of an outcome for text format.
func cellOutput(format string, out ir.CellOutcome) any {
	if format == "json" {
		return out
	}
	return cellText(out)
}
