// Package cell defines the value model shared by the formula interpreter,
// the cell store and the calculation engine.
//
// A Value is a tagged union over Number, Text, Boolean, Empty and Error.
// Coercions are total: ToNumber and NumericValue report failure through a
// boolean instead of panicking, ToBool and ToText always succeed.
//
// Addresses are 1-based. Ranges are normalized so Start is the top-left
// corner and are expanded lazily, row by row.
package cell
