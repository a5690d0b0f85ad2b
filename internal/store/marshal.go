package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/ir"
)

// marshalValue converts a cell value to JSON TEXT for storage.
func marshalValue(v cell.Value) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses a value column.
func unmarshalValue(s string) (cell.Value, error) {
	var v cell.Value
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return cell.Value{}, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// marshalCells converts a row's cell outcomes to JSON TEXT.
// A nil slice is stored as [] so reads always yield a non-nil slice.
func marshalCells(cells []ir.CellOutcome) (string, error) {
	if cells == nil {
		cells = []ir.CellOutcome{}
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("marshal cells: %w", err)
	}
	return string(data), nil
}

// unmarshalCells parses a cells column.
func unmarshalCells(s string) ([]ir.CellOutcome, error) {
	cells := []ir.CellOutcome{}
	if err := json.Unmarshal([]byte(s), &cells); err != nil {
		return nil, fmt.Errorf("unmarshal cells: %w", err)
	}
	return cells, nil
}

// boolToInt maps a Go bool onto SQLite's integer booleans.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
