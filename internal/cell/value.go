package cell

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindBoolean
	KindError
)

// String returns the lowercase kind name used in JSON encoding.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func parseKind(s string) (Kind, bool) {
	switch s {
	case "empty", "":
		return KindEmpty, true
	case "number":
		return KindNumber, true
	case "text":
		return KindText, true
	case "boolean":
		return KindBoolean, true
	case "error":
		return KindError, true
	}
	return KindEmpty, false
}

// ErrorKind is a spreadsheet error code carried by an Error value.
type ErrorKind string

const (
	ErrNull  ErrorKind = "#NULL!"
	ErrDiv0  ErrorKind = "#DIV/0!"
	ErrValue ErrorKind = "#VALUE!"
	ErrRef   ErrorKind = "#REF!"
	ErrName  ErrorKind = "#NAME?"
	ErrNum   ErrorKind = "#NUM!"
	ErrNA    ErrorKind = "#N/A"
	ErrCycle ErrorKind = "#CYCLE!"
)

var errorKinds = map[string]ErrorKind{
	string(ErrNull):  ErrNull,
	string(ErrDiv0):  ErrDiv0,
	string(ErrValue): ErrValue,
	string(ErrRef):   ErrRef,
	string(ErrName):  ErrName,
	string(ErrNum):   ErrNum,
	string(ErrNA):    ErrNA,
	string(ErrCycle): ErrCycle,
}

// ParseErrorKind recognizes an error literal such as "#N/A".
func ParseErrorKind(s string) (ErrorKind, bool) {
	k, ok := errorKinds[strings.ToUpper(strings.TrimSpace(s))]
	return k, ok
}

// Value is a single cell value. The zero Value is Empty.
//
// Value is immutable and safe to share between goroutines.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	err  ErrorKind
}

// Empty is the value of a blank or missing cell.
var Empty = Value{}

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text returns a string value.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// Error returns an error value.
func Error(k ErrorKind) Value { return Value{kind: KindError, err: k} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is Empty.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// IsError reports whether v is an Error value.
func (v Value) IsError() bool { return v.kind == KindError }

// Num returns the number held by a Number value, or 0.
func (v Value) Num() float64 { return v.num }

// Str returns the string held by a Text value, or "".
func (v Value) Str() string { return v.str }

// Boolean returns the bool held by a Boolean value, or false.
func (v Value) Boolean() bool { return v.b }

// ErrorKind returns the code held by an Error value, or "".
func (v Value) ErrorKind() ErrorKind { return v.err }

// FromRaw converts a raw input-workbook value into a Value.
// Strings that spell an error code become Error values; everything else keeps
// its natural variant. Numeric text stays Text so that formatting survives.
func FromRaw(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Empty
	case Value:
		return x
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case bool:
		return Bool(x)
	case string:
		if x == "" {
			return Empty
		}
		if k, ok := ParseErrorKind(x); ok {
			return Error(k)
		}
		return Text(x)
	default:
		return Text(fmt.Sprint(x))
	}
}

// ToNumber coerces v to a number.
// Empty is 0, booleans are 1 or 0 and numeric text is parsed.
// The second result is false for errors and non-numeric text.
func (v Value) ToNumber() (float64, bool) {
	switch v.kind {
	case KindEmpty:
		return 0, true
	case KindNumber:
		return v.num, true
	case KindBoolean:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindText:
		return parseNumber(v.str)
	}
	return 0, false
}

// NumericValue reports the number v contributes to an aggregate.
// Only numbers and numeric text count.
func (v Value) NumericValue() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		return parseNumber(v.str)
	}
	return 0, false
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToBool coerces v to a truth value. Numbers are true when nonzero,
// text is true when it spells TRUE or a nonzero number.
func (v Value) ToBool() bool {
	switch v.kind {
	case KindBoolean:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindText:
		switch strings.ToUpper(strings.TrimSpace(v.str)) {
		case "TRUE":
			return true
		case "FALSE", "":
			return false
		}
		f, ok := parseNumber(v.str)
		return ok && f != 0
	}
	return false
}

// ToText renders v the way it is compared and displayed.
func (v Value) ToText() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.str
	case KindBoolean:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return string(v.err)
	}
	return ""
}

// FormatNumber renders f without trailing zeros or exponent for ordinary
// magnitudes.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == KindText {
		return strconv.Quote(v.str)
	}
	if v.kind == KindEmpty {
		return "<empty>"
	}
	return v.ToText()
}

// Equal reports value-type-aware equality: numeric when both sides coerce to
// numbers (Empty counts as 0), exact text otherwise.
func Equal(a, b Value) bool {
	if a.kind == KindError || b.kind == KindError {
		return a.kind == b.kind && a.err == b.err
	}
	if a.kind == KindEmpty && b.kind == KindEmpty {
		return true
	}
	if an, ok := a.numericOperand(); ok {
		if bn, ok := b.numericOperand(); ok {
			return an == bn
		}
	}
	return a.ToText() == b.ToText()
}

func (v Value) numericOperand() (float64, bool) {
	switch v.kind {
	case KindNumber, KindEmpty:
		return v.num, true
	case KindText:
		return parseNumber(v.str)
	}
	return 0, false
}

// Compare orders two values numerically. ok is false when either side is not
// numeric; callers treat that as a false comparison.
func Compare(a, b Value) (cmp int, ok bool) {
	an, aok := a.numericOperand()
	bn, bok := b.numericOperand()
	if !aok || !bok {
		return 0, false
	}
	switch {
	case an < bn:
		return -1, true
	case an > bn:
		return 1, true
	}
	return 0, true
}

type wireValue struct {
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
}

// MarshalJSON encodes v as {"kind":...,"value":...}.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Kind: v.kind.String()}
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("cannot encode non-finite number %v", v.num)
		}
		w.Value = v.num
	case KindText:
		w.Value = v.str
	case KindBoolean:
		w.Value = v.b
	case KindError:
		w.Value = string(v.err)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	kind, ok := parseKind(w.Kind)
	if !ok {
		return fmt.Errorf("decode value: unknown kind %q", w.Kind)
	}
	switch kind {
	case KindEmpty:
		*v = Empty
		return nil
	case KindNumber:
		var f float64
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return fmt.Errorf("decode number: %w", err)
		}
		*v = Number(f)
	case KindText:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("decode text: %w", err)
		}
		*v = Text(s)
	case KindBoolean:
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return fmt.Errorf("decode boolean: %w", err)
		}
		*v = Bool(b)
	case KindError:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("decode error value: %w", err)
		}
		ek, ok := ParseErrorKind(s)
		if !ok {
			return fmt.Errorf("decode error value: unknown code %q", s)
		}
		*v = Error(ek)
	}
	return nil
}
