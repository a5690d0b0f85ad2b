package workbook

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/boqcalc/internal/cell"
)

// Fixture is a session's extracted cells in YAML form. It stands in for the
// spreadsheet extraction step of the upload service:
//
//	session: demo
//	output:
//	  sheets:
//	    - name: Abstract
//	      cells:
//	        A1: Item
//	        B1: 10
//	        C1: =B1*2
//	inputs:
//	  - file: pavement_input_v2.xlsx
//	    sheets:
//	      - name: Pavement Input
//	        cells:
//	          C5: 12.5
//
// Cells keep their document order, which becomes the record load order.
type Fixture struct {
	Session string        `yaml:"session"`
	Output  FixtureBook   `yaml:"output"`
	Inputs  []FixtureBook `yaml:"inputs,omitempty"`
}

// FixtureBook is one workbook of a fixture. File is the uploaded file name
// and is classified through the Registry when Name is empty.
type FixtureBook struct {
	File   string         `yaml:"file,omitempty"`
	Name   string         `yaml:"name,omitempty"`
	Sheets []FixtureSheet `yaml:"sheets"`
}

// FixtureSheet is one sheet of a fixture workbook.
type FixtureSheet struct {
	Name  string       `yaml:"name"`
	Cells FixtureCells `yaml:"cells"`
}

// FixtureCell is a single cell entry.
type FixtureCell struct {
	Address   cell.Address
	IsFormula bool
	Formula   string
	Value     cell.Value
}

// FixtureCells is an ordered address -> content mapping.
type FixtureCells []FixtureCell

// UnmarshalYAML decodes a mapping while preserving key order. Strings that
// start with '=' are formulas; scalars are typed by their YAML tag.
func (c *FixtureCells) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: cells must be a mapping of address to content", node.Line)
	}
	out := make(FixtureCells, 0, len(node.Content)/2)
	seen := make(map[cell.Address]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		addr, err := cell.ParseAddress(k.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", k.Line, err)
		}
		if seen[addr] {
			return fmt.Errorf("line %d: duplicate cell %s", k.Line, addr)
		}
		seen[addr] = true
		fc, err := decodeCell(addr, v)
		if err != nil {
			return err
		}
		out = append(out, fc)
	}
	*c = out
	return nil
}

func decodeCell(addr cell.Address, n *yaml.Node) (FixtureCell, error) {
	fc := FixtureCell{Address: addr}
	if n.Kind != yaml.ScalarNode {
		return fc, fmt.Errorf("line %d: cell %s must be a scalar", n.Line, addr)
	}
	switch n.Tag {
	case "!!null":
		fc.Value = cell.Empty
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return fc, fmt.Errorf("line %d: %w", n.Line, err)
		}
		fc.Value = cell.Bool(b)
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return fc, fmt.Errorf("line %d: cell %s: %w", n.Line, addr, err)
		}
		fc.Value = cell.Number(f)
	default:
		if strings.HasPrefix(n.Value, "=") && len(n.Value) > 1 {
			fc.IsFormula = true
			fc.Formula = n.Value
			return fc, nil
		}
		fc.Value = cell.FromRaw(n.Value)
	}
	return fc, nil
}

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes fixture YAML with strict field checking.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(f.Output.Sheets) == 0 {
		return nil, fmt.Errorf("invalid fixture: output must have at least one sheet")
	}
	return &f, nil
}

// Records flattens the fixture into output records and input cells, with
// workbook names canonicalized through reg. Input cells are records whose
// IsFormula is always false; a formula in an input workbook is an error.
func (f *Fixture) Records(reg *Registry) (output, inputs []cell.Record, err error) {
	outName := f.Output.Name
	if outName == "" {
		outName = reg.Output()
	}
	for _, sh := range f.Output.Sheets {
		for _, c := range sh.Cells {
			output = append(output, cell.Record{
				Workbook:  outName,
				Sheet:     sh.Name,
				Address:   c.Address,
				IsFormula: c.IsFormula,
				Formula:   c.Formula,
				Value:     c.Value,
			})
		}
	}

	for _, book := range f.Inputs {
		name := book.Name
		if name == "" {
			canonical, role, ok := reg.Resolve(book.File)
			if !ok || role != RoleInput {
				return nil, nil, fmt.Errorf("cannot classify input file %q", book.File)
			}
			name = canonical
		}
		for _, sh := range book.Sheets {
			for _, c := range sh.Cells {
				if c.IsFormula {
					return nil, nil, fmt.Errorf("input %s!%s: formulas are not allowed in input workbooks", sh.Name, c.Address)
				}
				inputs = append(inputs, cell.Record{
					Workbook: name,
					Sheet:    sh.Name,
					Address:  c.Address,
					Value:    c.Value,
				})
			}
		}
	}
	return output, inputs, nil
}
