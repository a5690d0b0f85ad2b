package workbook

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Canonical workbook names.
const (
	MainCarriageway = "Main Carriageway.xlsx"
	PavementInput   = "Pavement Input.xlsx"
	TCSInput        = "TCS Input.xlsx"
	EmbHeight       = "Emb Height.xlsx"
	TCSSchedule     = "TCS Schedule.xlsx"
)

// Role says whether a workbook holds formulas to calculate or read-only inputs.
type Role int

const (
	RoleUnknown Role = iota
	RoleOutput
	RoleInput
)

func (r Role) String() string {
	switch r {
	case RoleOutput:
		return "output"
	case RoleInput:
		return "input"
	default:
		return "unknown"
	}
}

// InputSpec describes one input workbook and the file-name fragments that
// identify it. A name matches when it contains any Match fragment and no
// Exclude fragment, compared case-insensitively.
type InputSpec struct {
	Name    string
	Match   []string
	Exclude []string
}

// DefaultInputs are the four input workbooks of a BOQ session, in
// classification order. TCS Input must be tested before TCS Schedule.
var DefaultInputs = []InputSpec{
	{Name: PavementInput, Match: []string{"pavement"}},
	{Name: TCSInput, Match: []string{"tcs"}, Exclude: []string{"schedule"}},
	{Name: EmbHeight, Match: []string{"emb", "height"}},
	{Name: TCSSchedule, Match: []string{"schedule"}},
}

// Registry maps workbook names found in formulas or uploads to canonical names.
//
// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	output string
	inputs []InputSpec
	exact  map[string]string
}

// NewRegistry builds a registry. An empty output uses MainCarriageway and a
// nil inputs list uses DefaultInputs.
func NewRegistry(output string, inputs []InputSpec) (*Registry, error) {
	if output == "" {
		output = MainCarriageway
	}
	if inputs == nil {
		inputs = DefaultInputs
	}
	r := &Registry{
		output: output,
		inputs: inputs,
		exact:  map[string]string{fold(output): output},
	}
	for _, in := range inputs {
		if in.Name == "" {
			return nil, fmt.Errorf("input workbook without a name")
		}
		k := fold(in.Name)
		if prev, dup := r.exact[k]; dup {
			return nil, fmt.Errorf("workbook %q declared twice (as %q)", in.Name, prev)
		}
		if len(in.Match) == 0 {
			return nil, fmt.Errorf("input workbook %q has no match fragments", in.Name)
		}
		r.exact[k] = in.Name
	}
	return r, nil
}

// Default returns the registry for the standard BOQ workbook set.
func Default() *Registry {
	r, err := NewRegistry("", nil)
	if err != nil {
		panic(err)
	}
	return r
}

// Output returns the canonical output workbook name.
func (r *Registry) Output() string { return r.output }

// Inputs returns the canonical input workbook names in classification order.
func (r *Registry) Inputs() []string {
	names := make([]string, len(r.inputs))
	for i, in := range r.inputs {
		names[i] = in.Name
	}
	return names
}

// Resolve maps a workbook name as written in a formula or an upload file
// name to its canonical name and role. Exact (case-insensitive) names win
// over fragment matching. Directory components are ignored.
func (r *Registry) Resolve(name string) (string, Role, bool) {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." {
		return "", RoleUnknown, false
	}
	k := fold(name)
	if canonical, ok := r.exact[k]; ok {
		if canonical == r.output {
			return canonical, RoleOutput, true
		}
		return canonical, RoleInput, true
	}
	if in, ok := r.classify(k); ok {
		return in, RoleInput, true
	}
	if strings.Contains(k, fold(strings.TrimSuffix(r.output, filepath.Ext(r.output)))) {
		return r.output, RoleOutput, true
	}
	return "", RoleUnknown, false
}

func (r *Registry) classify(folded string) (string, bool) {
	for _, in := range r.inputs {
		if containsAny(folded, in.Exclude) {
			continue
		}
		if containsAny(folded, in.Match) {
			return in.Name, true
		}
	}
	return "", false
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(s, fold(f)) {
			return true
		}
	}
	return false
}

// fold normalizes and case-folds s. A fresh Caser is used per call since
// Casers are not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
