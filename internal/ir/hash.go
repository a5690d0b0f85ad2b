package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainRow = "boqcalc/row/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// rowContent is the part of a RowResult that depends only on inputs and
// formulas. SessionID and CalculationID are excluded so identical workbooks
// yield identical digests across sessions and runs.
type rowContent struct {
	Sheet     string        `json:"sheet"`
	RowNumber int           `json:"row_number"`
	Cells     []CellOutcome `json:"cells"`
}

// RowDigest computes the content digest of a row result.
// Two runs over the same records produce the same digest regardless of
// worker count or scheduling order.
func RowDigest(r RowResult) (string, error) {
	data, err := json.Marshal(rowContent{Sheet: r.Sheet, RowNumber: r.RowNumber, Cells: r.Cells})
	if err != nil {
		return "", fmt.Errorf("RowDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRow, data), nil
}

// MustRowDigest is like RowDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRowDigest(r RowResult) string {
	d, err := RowDigest(r)
	if err != nil {
		panic(err)
	}
	return d
}
