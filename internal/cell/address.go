package cell

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// MaxColumn and MaxRow bound addresses to the sheet size of the workbooks the
// service extracts from.
const (
	MaxColumn = 16384
	MaxRow    = 1048576
)

// Address is a 1-based (column, row) cell position.
type Address struct {
	Col int
	Row int
}

// ParseAddress parses an A1-style address. "$" locks are ignored and letters
// are case-insensitive.
func ParseAddress(s string) (Address, error) {
	raw := s
	s = strings.ReplaceAll(strings.TrimSpace(s), "$", "")
	i := 0
	col := 0
	for i < len(s) && isLetter(s[i]) {
		col = col*26 + int(upper(s[i])-'A'+1)
		if col > MaxColumn {
			return Address{}, fmt.Errorf("address %q: column out of range", raw)
		}
		i++
	}
	if i == 0 {
		return Address{}, fmt.Errorf("address %q: missing column", raw)
	}
	if i == len(s) {
		return Address{}, fmt.Errorf("address %q: missing row", raw)
	}
	row, err := strconv.Atoi(s[i:])
	if err != nil || s[i] == '+' || s[i] == '-' {
		return Address{}, fmt.Errorf("address %q: invalid row", raw)
	}
	if row < 1 || row > MaxRow {
		return Address{}, fmt.Errorf("address %q: row out of range", raw)
	}
	return Address{Col: col, Row: row}, nil
}

// MustParseAddress is ParseAddress that panics on error. Intended for tests
// and constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ColumnName returns the base-26 letters for a 1-based column index.
func ColumnName(col int) string {
	var buf [4]byte
	i := len(buf)
	for col > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// String renders the address in A1 form without locks.
func (a Address) String() string {
	return ColumnName(a.Col) + strconv.Itoa(a.Row)
}

// Valid reports whether a lies within sheet bounds.
func (a Address) Valid() bool {
	return a.Col >= 1 && a.Col <= MaxColumn && a.Row >= 1 && a.Row <= MaxRow
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Range is a rectangular block of cells with Start at the top-left corner.
type Range struct {
	Start Address
	End   Address
}

// NewRange builds a normalized range from any two corners.
func NewRange(a, b Address) Range {
	return Range{
		Start: Address{Col: min(a.Col, b.Col), Row: min(a.Row, b.Row)},
		End:   Address{Col: max(a.Col, b.Col), Row: max(a.Row, b.Row)},
	}
}

// ParseRange parses "A1:B3" or a single address.
func ParseRange(s string) (Range, error) {
	lo, hi, found := strings.Cut(s, ":")
	start, err := ParseAddress(lo)
	if err != nil {
		return Range{}, err
	}
	if !found {
		return Range{Start: start, End: start}, nil
	}
	end, err := ParseAddress(hi)
	if err != nil {
		return Range{}, err
	}
	return NewRange(start, end), nil
}

// Len returns the number of cells in r.
func (r Range) Len() int {
	return (r.End.Col - r.Start.Col + 1) * (r.End.Row - r.Start.Row + 1)
}

// Cells yields every address of r row by row, left to right within a row.
func (r Range) Cells() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(Address{Col: col, Row: row}) {
					return
				}
			}
		}
	}
}

// Contains reports whether a lies inside r.
func (r Range) Contains(a Address) bool {
	return a.Col >= r.Start.Col && a.Col <= r.End.Col &&
		a.Row >= r.Start.Row && a.Row <= r.End.Row
}

// String renders the range as "A1:B3", or a single address when degenerate.
func (r Range) String() string {
	if r.Start == r.End {
		return r.Start.String()
	}
	return r.Start.String() + ":" + r.End.String()
}
