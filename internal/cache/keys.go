package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/boqcalc/internal/cell"
)

// Domain separator for ad-hoc formula keys.
const formulaKeyDomain = "boqcalc/formula/v1"

// CellKey is the memo key of a single cell.
func CellKey(workbook, sheet string, addr cell.Address) string {
	return cell.Key(workbook, sheet, addr)
}

// FormulaKey is the memo key of an ad-hoc formula evaluated against sheet.
// Fields are NUL-separated before hashing so that ("ab","c") and ("a","bc")
// never collide.
func FormulaKey(session, sheet, formula string) string {
	h := sha256.New()
	h.Write([]byte(formulaKeyDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(session))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(sheet)))
	h.Write([]byte{0x00})
	h.Write([]byte(formula))
	return "calc:" + session + ":" + hex.EncodeToString(h.Sum(nil))
}
