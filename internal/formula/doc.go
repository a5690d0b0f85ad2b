// Package formula parses the spreadsheet formula language used by the BOQ
// workbooks into an immutable expression tree.
//
// The grammar is a fixed subset of spreadsheet formulas:
//
//	comparison := additive (("=" | "<>" | "!=" | "<" | "<=" | ">" | ">=") additive)*
//	additive   := multiplicative (("+" | "-") multiplicative)*
//	multiplicative := power (("*" | "/") power)*
//	power      := unary ("^" power)?
//	unary      := ("-" | "+") unary | primary
//	primary    := number | string | boolean | reference | call | array | "(" comparison ")"
//
// References may be local (A1, A1:B3), sheet-qualified (Sheet!A1,
// 'Sheet Name'!A1) or workbook-qualified ('[Book.xlsx]Sheet'!A1,
// [Book.xlsx]Sheet!A1). Absolute-reference locks ($) are ignored.
//
// Only the functions IF, OR, AND, SUM, AVERAGE, ROUND, ROUNDUP, SQRT, IFERROR
// and LOOKUP are recognized. Anything else is a *ParseError.
package formula
