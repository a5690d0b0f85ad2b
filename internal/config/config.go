package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/boqcalc/internal/workbook"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the config file looked up when --config is not given.
const DefaultFile = "boqcalc.cue"

// Config holds the settings of a boqcalc run.
type Config struct {
	Database       string
	Workers        int
	MemoTTL        time.Duration
	OutputWorkbook string
	InputWorkbooks []workbook.InputSpec
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Database:       "boqcalc.db",
		Workers:        50,
		MemoTTL:        30 * time.Minute,
		OutputWorkbook: workbook.MainCarriageway,
		InputWorkbooks: workbook.DefaultInputs,
	}
}

// Registry builds the workbook registry the configuration describes.
func (c Config) Registry() (*workbook.Registry, error) {
	return workbook.NewRegistry(c.OutputWorkbook, c.InputWorkbooks)
}

// rawConfig mirrors the schema field names.
type rawConfig struct {
	Database       string     `json:"database"`
	Workers        int        `json:"workers"`
	MemoTTL        string     `json:"memo_ttl"`
	OutputWorkbook string     `json:"output_workbook"`
	InputWorkbooks []rawInput `json:"input_workbooks"`
}

type rawInput struct {
	Name    string   `json:"name"`
	Match   []string `json:"match"`
	Exclude []string `json:"exclude"`
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, path)
}

// LoadOptional reads path if it exists and returns Default otherwise.
func LoadOptional(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Parse validates CUE source against the config schema. filename is used in
// error positions.
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var raw rawConfig
	if err := unified.Decode(&raw); err != nil {
		return Config{}, formatCUEError(err)
	}

	cfg := Config{
		Database:       raw.Database,
		Workers:        raw.Workers,
		OutputWorkbook: raw.OutputWorkbook,
	}

	ttl, err := parseTTL(raw.MemoTTL, unified.LookupPath(cue.ParsePath("memo_ttl")).Pos())
	if err != nil {
		return Config{}, err
	}
	cfg.MemoTTL = ttl

	cfg.InputWorkbooks = make([]workbook.InputSpec, 0, len(raw.InputWorkbooks))
	for _, in := range raw.InputWorkbooks {
		cfg.InputWorkbooks = append(cfg.InputWorkbooks, workbook.InputSpec{
			Name:    in.Name,
			Match:   in.Match,
			Exclude: in.Exclude,
		})
	}
	if len(cfg.InputWorkbooks) == 0 {
		cfg.InputWorkbooks = workbook.DefaultInputs
	}

	if _, err := cfg.Registry(); err != nil {
		return Config{}, &ConfigError{
			Field:   "input_workbooks",
			Message: err.Error(),
			Pos:     unified.LookupPath(cue.ParsePath("input_workbooks")).Pos(),
		}
	}
	return cfg, nil
}

func parseTTL(s string, pos token.Pos) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &ConfigError{Field: "memo_ttl", Message: fmt.Sprintf("invalid duration %q", s), Pos: pos}
	}
	if d <= 0 {
		return 0, &ConfigError{Field: "memo_ttl", Message: "must be positive", Pos: pos}
	}
	return d, nil
}

// ConfigError is a validation failure with the CUE position of the field.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Field: "cue", Message: err.Error()}
	}

	// Prefer a position inside the user's file over one in the schema.
	first := errs[0]
	positions := errors.Positions(first)
	for _, p := range positions {
		if p.Filename() != "schema.cue" {
			return &ConfigError{Field: "cue", Message: first.Error(), Pos: p}
		}
	}
	if len(positions) > 0 {
		return &ConfigError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &ConfigError{Field: "cue", Message: first.Error()}
}
