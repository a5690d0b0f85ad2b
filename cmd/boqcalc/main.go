// Command boqcalc evaluates the formulas of Bill of Quantities sessions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/boqcalc/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "boqcalc:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
