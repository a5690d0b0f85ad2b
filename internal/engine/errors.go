package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected by the engine itself, as opposed
// to a cell evaluation failure (which is recorded in the row result) or a
// store failure (which is wrapped and returned).
//
// Runtime errors include:
//   - Busy session: a calculation is already running for the session
//   - Empty sheet: the sheet has no records to calculate
//   - Missing cell: CalculateCell named a cell with no record
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the affected session.
	SessionID string

	// Sheet identifies the affected sheet, when there is one.
	Sheet string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeSessionBusy indicates a calculation is already running for the
	// session.
	ErrCodeSessionBusy RuntimeErrorCode = "SESSION_BUSY"

	// ErrCodeNoRecords indicates the sheet has no cell records.
	ErrCodeNoRecords RuntimeErrorCode = "NO_RECORDS"

	// ErrCodeCellNotFound indicates the requested cell has no record.
	ErrCodeCellNotFound RuntimeErrorCode = "CELL_NOT_FOUND"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.SessionID != "" && e.Sheet != "" {
		return fmt.Sprintf("%s: %s (session=%s, sheet=%s)", e.Code, e.Message, e.SessionID, e.Sheet)
	}
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsBusyError returns true if a calculation was already running.
// Uses errors.As to handle wrapped errors.
func IsBusyError(err error) bool {
	return hasCode(err, ErrCodeSessionBusy)
}

// IsNoRecordsError returns true if the sheet had nothing to calculate.
func IsNoRecordsError(err error) bool {
	return hasCode(err, ErrCodeNoRecords)
}

// IsCellNotFound returns true if the requested cell does not exist.
func IsCellNotFound(err error) bool {
	return hasCode(err, ErrCodeCellNotFound)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newBusyError(sessionID string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeSessionBusy,
		Message:   "a calculation is already running",
		SessionID: sessionID,
	}
}

func newNoRecordsError(sessionID, sheet string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeNoRecords,
		Message:   "sheet has no cell records",
		SessionID: sessionID,
		Sheet:     sheet,
	}
}

func newCellNotFoundError(sessionID, sheet, addr string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeCellNotFound,
		Message:   fmt.Sprintf("no record at %s", addr),
		SessionID: sessionID,
		Sheet:     sheet,
	}
}
