package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boqcalc/internal/harness"
	"github.com/roach88/boqcalc/internal/ir"
)

// ResultsOptions holds flags for the results command.
type ResultsOptions struct {
	*RootOptions
	Session    string
	FailedOnly bool
}

// ResultsOutput is the results command output.
type ResultsOutput struct {
	Session string         `json:"session"`
	Sheet   string         `json:"sheet"`
	Summary ir.Summary     `json:"summary"`
	Rows    []ir.RowResult `json:"rows"`
}

func (r ResultsOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (session %s) %s\n", r.Sheet, r.Session, harness.FormatSummary(r.Summary))
	b.Write(harness.RenderRows(r.Rows))
	return strings.TrimSuffix(b.String(), "\n")
}

// NewResultsCommand creates the results command.
func NewResultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "results <sheet>",
		Short: "Show checkpointed row results of a sheet",
		Long: `Show the checkpointed row results of an output sheet in row order.

Example:
  boqcalc results --session s1 Abstract
  boqcalc results --session s1 Abstract --failed --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResults(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	cmd.Flags().BoolVar(&opts.FailedOnly, "failed", false, "only show rows with failed cells")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runResults(opts *ResultsOptions, sheet string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return formatter.Fail("failed to open", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.store.GetSession(ctx, opts.Session); err != nil {
		return formatter.Fail("failed to read results", err)
	}
	rows, err := a.store.ListRowResults(ctx, opts.Session, sheet)
	if err != nil {
		return formatter.Fail("failed to read results", err)
	}
	sum, err := a.store.SummarizeRows(ctx, opts.Session, sheet)
	if err != nil {
		return formatter.Fail("failed to read results", err)
	}

	if opts.FailedOnly {
		failed := []ir.RowResult{}
		for _, r := range rows {
			if _, n := r.Counts(); n > 0 {
				failed = append(failed, r)
			}
		}
		rows = failed
	}

	return formatter.Success(ResultsOutput{
		Session: opts.Session,
		Sheet:   sheet,
		Summary: sum,
		Rows:    rows,
	})
}
