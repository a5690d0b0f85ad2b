package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/boqcalc/internal/ir"
)

// ProgressOptions holds flags for the progress command.
type ProgressOptions struct {
	*RootOptions
	Session string
}

// ProgressResult is the progress command output.
type ProgressResult struct {
	ir.Job
	Percent float64 `json:"percent"`
}

func (r ProgressResult) String() string {
	text := fmt.Sprintf("%s %s on %s: %d/%d rows (%.1f%%)",
		r.CalculationID, r.Status, r.Sheet, r.CompletedRows, r.TotalRows, r.Percent)
	if r.Error != "" {
		text += "\n  error: " + r.Error
	}
	return text
}

// NewProgressCommand creates the progress command.
func NewProgressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show the latest calculation job of a session",
		Long: `Show the progress of the latest calculation job of a session.

Example:
  boqcalc progress --session s1
  boqcalc progress --session s1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runProgress(opts *ProgressOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return formatter.Fail("failed to open", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.store.GetSession(ctx, opts.Session); err != nil {
		return formatter.Fail("failed to read progress", err)
	}
	job, ok, err := a.engine.Progress(ctx, opts.Session)
	if err != nil {
		return formatter.Fail("failed to read progress", err)
	}
	if !ok {
		if opts.Format == "json" {
			return formatter.Success(nil)
		}
		return formatter.Success(fmt.Sprintf("No calculation has run for session %s.", opts.Session))
	}
	return formatter.Success(ProgressResult{Job: job, Percent: job.Percent()})
}
