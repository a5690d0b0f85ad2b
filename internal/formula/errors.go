package formula

import (
	"errors"
	"fmt"
)

var (
	errEmptySheet           = errors.New("empty sheet name")
	errEmptyWorkbook        = errors.New("empty workbook name")
	errUnterminatedWorkbook = errors.New("unterminated workbook name")
)

// ParseError reports malformed formula text or an unsupported function.
//
// Parse errors are never fatal to a calculation: the evaluator turns them into
// a failed cell.
type ParseError struct {
	// Formula is the formula body that failed to parse.
	Formula string

	// Pos is the byte offset of the offending token, or -1 when unknown.
	Pos int

	// Message describes the problem.
	Message string
}

func newParseError(src string, pos int, format string, args ...any) *ParseError {
	return &ParseError{Formula: src, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("parse %q at offset %d: %s", e.Formula, e.Pos, e.Message)
	}
	return fmt.Sprintf("parse %q: %s", e.Formula, e.Message)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
