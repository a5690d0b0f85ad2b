package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/boqcalc/internal/formula"
)

// ExplainResult is the explain command output.
type ExplainResult struct {
	Formula      string   `json:"formula"`
	Tree         string   `json:"tree,omitempty"`
	Dependencies []string `json:"dependencies"`
	References   []string `json:"references"`
	ParseError   string   `json:"parse_error,omitempty"`
}

func (r ExplainResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "formula: %s\n", r.Formula)
	if r.ParseError != "" {
		fmt.Fprintf(&b, "parse error: %s\n", r.ParseError)
	} else {
		fmt.Fprintf(&b, "tree: %s\n", r.Tree)
		b.WriteString("dependencies:\n")
		for _, d := range r.Dependencies {
			fmt.Fprintf(&b, "  %s\n", d)
		}
	}
	b.WriteString("references:")
	for _, ref := range r.References {
		fmt.Fprintf(&b, "\n  %s", ref)
	}
	return b.String()
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <formula>",
		Short: "Show how a formula parses and what it references",
		Long: `Parse a formula and print its expression tree and references.

Dependencies come from the parsed tree, with workbook and sheet qualifiers
resolved. References are the raw range operands found by the Excel
tokenizer, which also works on formulas the parser rejects. A formula that
does not parse exits with code 1.

Example:
  boqcalc explain "=ROUNDUP(SUM(D2:D9)*'[Pavement Input.xlsx]Input'!C5,2)"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runExplain(opts *RootOptions, text string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	result := ExplainResult{
		Formula:      text,
		Dependencies: []string{},
		References:   formula.References(text),
	}

	expr, err := formula.Parse(text)
	if err != nil {
		result.ParseError = err.Error()
		if outErr := formatter.Success(result); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "formula does not parse", err)
	}

	result.Tree = expr.String()
	for _, dep := range formula.Dependencies(expr) {
		result.Dependencies = append(result.Dependencies, dep.String())
	}
	return formatter.Success(result)
}
