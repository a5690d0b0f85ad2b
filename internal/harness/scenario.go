package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/ir"
)

// Scenario defines a calculation regression scenario: a fixture session,
// a flow of calculations and resets, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the workbook fixture to import, relative to the scenario
	// file location.
	Fixture string `yaml:"fixture"`

	// Session is the session ID to import the fixture as.
	// If empty, the fixture's own session is used, then "scenario".
	Session string `yaml:"session,omitempty"`

	// Workers is the engine row concurrency. Zero keeps the engine default.
	Workers int `yaml:"workers,omitempty"`

	// Flow contains the steps to execute in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	// Supported types: cell_value, cell_error, formula, summary, job_status
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one step of a scenario flow. Exactly one of Calculate and
// Reset is set.
type FlowStep struct {
	// Calculate names the sheet to run a calculation on.
	Calculate string `yaml:"calculate,omitempty"`

	// Reset names the sheet whose checkpoints are deleted.
	Reset string `yaml:"reset,omitempty"`

	// Workers overrides the row concurrency for this calculation.
	Workers int `yaml:"workers,omitempty"`

	// Expect validates the step outcome. If nil the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a calculate step.
type ExpectClause struct {
	// Summary is a subset match on the returned summary counters.
	Summary map[string]int `yaml:"summary,omitempty"`

	// Error, when set, expects the run to fail with a message containing it.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the state left by the flow.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Sheet is the output sheet (all types except job_status).
	Sheet string `yaml:"sheet,omitempty"`

	// Cell is the output cell address (cell_value, cell_error).
	Cell string `yaml:"cell,omitempty"`

	// Formula is the formula text to evaluate (formula).
	Formula string `yaml:"formula,omitempty"`

	// Value is the expected value (cell_value, formula). Numbers match
	// within 1e-9; strings spelling an error code such as "#DIV/0!" match
	// error values.
	Value any `yaml:"value,omitempty"`

	// Error is a failure message fragment (cell_error) or an evaluation
	// error code such as DOMAIN (formula).
	Error string `yaml:"error,omitempty"`

	// Expect is a subset match on summary counters (summary).
	Expect map[string]int `yaml:"expect,omitempty"`

	// Status is the expected job status (job_status).
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertCellValue = "cell_value"
	AssertCellError = "cell_error"
	AssertFormula   = "formula"
	AssertSummary   = "summary"
	AssertJobStatus = "job_status"
)

// summaryFields maps the YAML counter names to Summary fields.
var summaryFields = map[string]func(ir.Summary) int{
	"rows_processed":   func(s ir.Summary) int { return s.RowsProcessed },
	"cells_processed":  func(s ir.Summary) int { return s.CellsProcessed },
	"successful_cells": func(s ir.Summary) int { return s.SuccessfulCells },
	"failed_cells":     func(s ir.Summary) int { return s.FailedCells },
	"rows_saved":       func(s ir.Summary) int { return s.RowsSaved },
}

// LoadScenario reads and parses a scenario YAML file. The fixture path is
// resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the fixture path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) && basePath != "" {
		scenario.Fixture = filepath.Join(basePath, scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
		return fmt.Errorf("fixture file not found: %s", s.Fixture)
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		switch {
		case step.Calculate == "" && step.Reset == "":
			return fmt.Errorf("flow[%d]: calculate or reset is required", i)
		case step.Calculate != "" && step.Reset != "":
			return fmt.Errorf("flow[%d]: calculate and reset are exclusive", i)
		case step.Reset != "" && (step.Expect != nil || step.Workers != 0):
			return fmt.Errorf("flow[%d]: reset takes no expect or workers", i)
		case step.Workers < 0:
			return fmt.Errorf("flow[%d]: workers must not be negative", i)
		}
		if step.Expect != nil {
			if err := validateCounters(fmt.Sprintf("flow[%d].expect.summary", i), step.Expect.Summary); err != nil {
				return err
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Type != AssertJobStatus && a.Sheet == "" {
		return fmt.Errorf("assertions[%d]: %s requires sheet", index, a.Type)
	}

	switch a.Type {
	case AssertCellValue, AssertCellError:
		if a.Cell == "" {
			return fmt.Errorf("assertions[%d]: %s requires cell", index, a.Type)
		}
		if _, err := cell.ParseAddress(a.Cell); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Type == AssertCellValue && a.Value == nil {
			return fmt.Errorf("assertions[%d]: cell_value requires value", index)
		}
		if a.Type == AssertCellError && a.Error == "" {
			return fmt.Errorf("assertions[%d]: cell_error requires error", index)
		}

	case AssertFormula:
		if a.Formula == "" {
			return fmt.Errorf("assertions[%d]: formula requires formula", index)
		}
		if (a.Value == nil) == (a.Error == "") {
			return fmt.Errorf("assertions[%d]: formula requires exactly one of value and error", index)
		}

	case AssertSummary:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: summary requires expect", index)
		}
		return validateCounters(fmt.Sprintf("assertions[%d].expect", index), a.Expect)

	case AssertJobStatus:
		if !ir.JobStatus(a.Status).IsValid() {
			return fmt.Errorf("assertions[%d]: invalid job status %q", index, a.Status)
		}

	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}

func validateCounters(where string, counters map[string]int) error {
	for name := range counters {
		if _, ok := summaryFields[name]; !ok {
			return fmt.Errorf("%s: unknown counter %q", where, name)
		}
	}
	return nil
}
