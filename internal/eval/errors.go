package eval

import (
	"errors"
	"fmt"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/formula"
)

// EvalError is a recoverable evaluation failure. It fails the cell being
// evaluated but never the row or the job.
//
// Any other error returned by the evaluator (store I/O, cancellation) is
// fatal; see IsFatal.
type EvalError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Kind is the spreadsheet error value the failed cell takes.
	Kind cell.ErrorKind

	// Message is a human-readable description.
	Message string

	// Ref is the fully-qualified cell key involved, when there is one.
	Ref string

	// Err is the underlying cause (a *formula.ParseError for PARSE_ERROR).
	Err error
}

// ErrorCode categorizes evaluation errors.
type ErrorCode string

const (
	// ErrCodeParse indicates malformed formula text.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeUnresolvable indicates a reference that names no known workbook,
	// or a local reference with no current sheet.
	ErrCodeUnresolvable ErrorCode = "UNRESOLVABLE_REFERENCE"

	// ErrCodeDomain indicates an argument outside the function's domain,
	// such as division by zero or the square root of a negative.
	ErrCodeDomain ErrorCode = "DOMAIN"

	// ErrCodeTypeMismatch indicates a non-numeric operand to arithmetic.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeCycle indicates a formula cell that depends on itself.
	ErrCodeCycle ErrorCode = "CYCLIC_REFERENCE"

	// ErrCodeDepth indicates a chain of formula references longer than the
	// configured maximum depth.
	ErrCodeDepth ErrorCode = "DEPTH_EXCEEDED"
)

// defaultKinds maps each code to the error value a failed cell shows.
var defaultKinds = map[ErrorCode]cell.ErrorKind{
	ErrCodeParse:        cell.ErrName,
	ErrCodeUnresolvable: cell.ErrRef,
	ErrCodeDomain:       cell.ErrNum,
	ErrCodeTypeMismatch: cell.ErrValue,
	ErrCodeCycle:        cell.ErrCycle,
	ErrCodeDepth:        cell.ErrNum,
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s (ref=%s)", e.Code, e.Message, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EvalError) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, format string, args ...any) *EvalError {
	return &EvalError{Code: code, Kind: defaultKinds[code], Message: fmt.Sprintf(format, args...)}
}

func parseError(err error) *EvalError {
	return &EvalError{Code: ErrCodeParse, Kind: cell.ErrName, Message: err.Error(), Err: err}
}

func unresolvable(format string, args ...any) *EvalError {
	return newError(ErrCodeUnresolvable, format, args...)
}

func typeMismatch(format string, args ...any) *EvalError {
	return newError(ErrCodeTypeMismatch, format, args...)
}

func divByZero() *EvalError {
	return &EvalError{Code: ErrCodeDomain, Kind: cell.ErrDiv0, Message: "division by zero"}
}

func domain(format string, args ...any) *EvalError {
	return newError(ErrCodeDomain, format, args...)
}

func depthExceeded(key string, limit int) *EvalError {
	return &EvalError{Code: ErrCodeDepth, Kind: cell.ErrNum, Message: fmt.Sprintf("reference chain deeper than %d cells", limit), Ref: key}
}

func cycle(key string) *EvalError {
	return &EvalError{Code: ErrCodeCycle, Kind: cell.ErrCycle, Message: "cell depends on itself", Ref: key}
}

// fromValue turns an Error value read from a cell into the matching
// evaluation error, so that error values propagate through operators.
func fromValue(v cell.Value) *EvalError {
	k := v.ErrorKind()
	var code ErrorCode
	switch k {
	case cell.ErrDiv0, cell.ErrNum:
		code = ErrCodeDomain
	case cell.ErrCycle:
		code = ErrCodeCycle
	case cell.ErrRef, cell.ErrName, cell.ErrNA:
		code = ErrCodeUnresolvable
	default:
		code = ErrCodeTypeMismatch
	}
	return &EvalError{Code: code, Kind: k, Message: "operand is " + string(k)}
}

// ErrorValue returns the cell value a failed evaluation produces.
// Fatal errors show as #VALUE!.
func ErrorValue(err error) cell.Value {
	var ee *EvalError
	if errors.As(err, &ee) && ee.Kind != "" {
		return cell.Error(ee.Kind)
	}
	return cell.Error(cell.ErrValue)
}

// IsCycleError returns true if the error is a cyclic reference error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCycle)
}

// IsParseError returns true if the error comes from malformed formula text.
func IsParseError(err error) bool {
	return hasCode(err, ErrCodeParse) || formula.IsParseError(err)
}

// IsFatal reports whether err must abort the calculation. Every error that is
// not an *EvalError is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ee *EvalError
	return !errors.As(err, &ee)
}

// Code returns the code of an evaluation error, or "".
func Code(err error) ErrorCode {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
