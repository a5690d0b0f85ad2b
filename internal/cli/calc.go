package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/boqcalc/internal/engine"
	"github.com/roach88/boqcalc/internal/ir"
)

// CalcOptions holds flags for the calc command.
type CalcOptions struct {
	*RootOptions
	Session string
	Workers int
	Reset   bool

	// IDGenerator overrides the calculation ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// CalcResult is the calc command output.
type CalcResult struct {
	Session string     `json:"session"`
	Sheet   string     `json:"sheet"`
	Summary ir.Summary `json:"summary"`
	Job     *ir.Job    `json:"job,omitempty"`
}

func (r CalcResult) String() string {
	s := r.Summary
	text := fmt.Sprintf("Calculated %s (session %s): %d rows, %d cells, %d ok, %d failed, %d rows saved",
		r.Sheet, r.Session, s.RowsProcessed, s.CellsProcessed, s.SuccessfulCells, s.FailedCells, s.RowsSaved)
	if r.Job != nil {
		text += fmt.Sprintf("\nJob %s: %s", r.Job.CalculationID, r.Job.Status)
	}
	return text
}

// NewCalcCommand creates the calc command.
func NewCalcCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalcOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calc <sheet>",
		Short: "Calculate every row of an output sheet",
		Long: `Calculate an output sheet row by row and checkpoint each row.

Rows already checkpointed are skipped, so an interrupted calculation resumes
where it stopped. --reset deletes the sheet's checkpoints first. Ctrl-C
cancels the run and keeps the rows finished so far.

Exit codes:
  0 - Every cell calculated
  1 - One or more cells failed, or the run was interrupted
  2 - Command error (unknown session, busy session, etc.)

Example:
  boqcalc calc --session s1 Abstract
  boqcalc calc --session s1 --workers 8 --reset Abstract -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (required)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent rows (default from config)")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "delete checkpoints and recalculate every row")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runCalc(opts *CalcOptions, sheet string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	if opts.Workers < 0 {
		return formatter.Fail("invalid flags", NewExitError(ExitCommandError, "--workers must not be negative"))
	}

	idGen := opts.IDGenerator
	if idGen == nil {
		idGen = engine.UUIDv7Generator{}
	}
	var calcID string
	progress := func(j ir.Job) {
		calcID = j.CalculationID
		formatter.VerboseLog("%s %s: %d/%d rows (%.0f%%)",
			j.CalculationID, j.Status, j.CompletedRows, j.TotalRows, j.Percent())
	}

	a, err := openApp(opts.RootOptions,
		engine.WithIDGenerator(idGen),
		engine.WithProgressFunc(progress),
	)
	if err != nil {
		return formatter.Fail("failed to open", err)
	}
	defer a.Close()

	// Setup signal handling for graceful cancellation
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling calculation", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var runOpts []engine.RunOption
	if opts.Workers > 0 {
		runOpts = append(runOpts, engine.Workers(opts.Workers))
	}
	if opts.Reset {
		runOpts = append(runOpts, engine.Reset())
	}

	sum, err := a.engine.RunCalculation(ctx, opts.Session, sheet, runOpts...)
	if err != nil {
		return formatter.Fail("calculation failed", err)
	}

	result := CalcResult{Session: opts.Session, Sheet: sheet, Summary: sum}
	// calcID stays empty when every row was already checkpointed.
	if calcID != "" {
		job, err := a.store.GetJob(ctx, calcID)
		if err != nil {
			return formatter.Fail("failed to read job", err)
		}
		result.Job = &job
	}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if sum.FailedCells > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d cells failed", sum.FailedCells))
	}
	return nil
}
