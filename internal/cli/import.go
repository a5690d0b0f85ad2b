package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/boqcalc/internal/workbook"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Session string
}

// ImportResult is the import command output.
type ImportResult struct {
	Session     string   `json:"session"`
	Workbook    string   `json:"workbook"`
	Sheets      []string `json:"sheets"`
	OutputCells int      `json:"output_cells"`
	InputCells  int      `json:"input_cells"`
}

func (r ImportResult) String() string {
	return fmt.Sprintf("Imported session %s: %d output cells on %d sheets, %d input cells",
		r.Session, r.OutputCells, len(r.Sheets), r.InputCells)
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <fixture.yaml>",
		Short: "Import extracted workbook cells as a session",
		Long: `Import a workbook fixture into the database as a new session.

The fixture holds the extracted cells of the output workbook and of the
input workbooks. Input file names are classified through the configured
workbook registry.

Example:
  boqcalc import --db boq.db ./session.yaml
  boqcalc import --session s42 ./session.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: the fixture's session)")

	return cmd
}

func runImport(opts *ImportOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	fx, err := workbook.LoadFixture(path)
	if err != nil {
		return formatter.Fail("failed to load fixture", WrapExitError(ExitCommandError, path, err))
	}
	session := opts.Session
	if session == "" {
		session = fx.Session
	}
	if session == "" {
		return formatter.Fail("failed to import", NewExitError(ExitCommandError, "no session ID: set --session or the fixture's session"))
	}

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return formatter.Fail("failed to open", err)
	}
	defer a.Close()

	reg := a.engine.Registry()
	output, inputs, err := fx.Records(reg)
	if err != nil {
		return formatter.Fail("failed to import", WrapExitError(ExitCommandError, path, err))
	}
	if err := a.store.ImportSession(cmd.Context(), session, output, inputs); err != nil {
		return formatter.Fail("failed to import", err)
	}
	slog.Info("session imported", "session", session, "output_cells", len(output), "input_cells", len(inputs))

	sheets := make([]string, 0, len(fx.Output.Sheets))
	for _, sh := range fx.Output.Sheets {
		sheets = append(sheets, sh.Name)
	}
	return formatter.Success(ImportResult{
		Session:     session,
		Workbook:    reg.Output(),
		Sheets:      sheets,
		OutputCells: len(output),
		InputCells:  len(inputs),
	})
}
