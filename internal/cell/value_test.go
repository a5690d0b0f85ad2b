package cell

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name   string
		in     Value
		want   float64
		wantOK bool
	}{
		{"empty is zero", Empty, 0, true},
		{"number", Number(2.5), 2.5, true},
		{"true", Bool(true), 1, true},
		{"false", Bool(false), 0, true},
		{"numeric text", Text(" 12.5 "), 12.5, true},
		{"plain text", Text("abc"), 0, false},
		{"blank text", Text(""), 0, false},
		{"error", Error(ErrNA), 0, false},
		{"nan text", Text("NaN"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.ToNumber()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumericValue_SkipsNonNumbers(t *testing.T) {
	_, ok := Empty.NumericValue()
	assert.False(t, ok, "empty does not contribute")

	_, ok = Bool(true).NumericValue()
	assert.False(t, ok, "booleans do not contribute")

	n, ok := Text("4").NumericValue()
	require.True(t, ok)
	assert.Equal(t, 4.0, n)
}

func TestToBool(t *testing.T) {
	assert.True(t, Number(-1).ToBool())
	assert.False(t, Number(0).ToBool())
	assert.True(t, Text("true").ToBool())
	assert.False(t, Text("FALSE").ToBool())
	assert.True(t, Text("3").ToBool())
	assert.False(t, Text("abc").ToBool())
	assert.False(t, Empty.ToBool())
	assert.False(t, Error(ErrDiv0).ToBool())
}

func TestToText(t *testing.T) {
	assert.Equal(t, "42", Number(42).ToText())
	assert.Equal(t, "0.1", Number(0.1).ToText())
	assert.Equal(t, "TRUE", Bool(true).ToText())
	assert.Equal(t, "", Empty.ToText())
	assert.Equal(t, "#DIV/0!", Error(ErrDiv0).ToText())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Number(5), Text("5")))
	assert.True(t, Equal(Text("abc"), Text("abc")))
	assert.False(t, Equal(Text("abc"), Text("ABC")))
	assert.True(t, Equal(Empty, Number(0)))
	assert.True(t, Equal(Empty, Empty))
	assert.False(t, Equal(Empty, Text("x")))
	assert.True(t, Equal(Bool(true), Text("TRUE")))
	assert.True(t, Equal(Error(ErrNA), Error(ErrNA)))
	assert.False(t, Equal(Error(ErrNA), Text("#N/A")))
}

func TestCompare(t *testing.T) {
	c, ok := Compare(Number(1), Text("2"))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = Compare(Number(1), Text("two"))
	assert.False(t, ok, "non-numeric operands do not order")
}

func TestFromRaw(t *testing.T) {
	assert.Equal(t, Number(3), FromRaw(3))
	assert.Equal(t, Empty, FromRaw(nil))
	assert.Equal(t, Empty, FromRaw(""))
	assert.Equal(t, Error(ErrNA), FromRaw("#N/A"))
	assert.Equal(t, Text("Ch 100"), FromRaw("Ch 100"))
	assert.Equal(t, Bool(false), FromRaw(false))
}

func TestValueJSON(t *testing.T) {
	values := []Value{Empty, Number(-12.34), Text("x"), Bool(true), Error(ErrCycle)}
	for _, v := range values {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var got Value
		require.NoError(t, json.Unmarshal(data, &got), string(data))
		assert.Equal(t, v, got)
	}

	data, err := json.Marshal(Number(2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"number","value":2}`, string(data))
}

func TestValueJSON_RejectsUnknownKind(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"kind":"date","value":1}`), &v)
	assert.Error(t, err)
}
