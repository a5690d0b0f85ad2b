package eval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boqcalc/internal/cell"
	"github.com/roach88/boqcalc/internal/formula"
)

func TestEvaluate_Numbers(t *testing.T) {
	e := newEnv(t)
	e.value(sheet, "A1", cell.Number(4))
	e.value(sheet, "A2", cell.Text(" 2.5 "))

	tests := []struct {
		formula string
		want    float64
	}{
		{"=1+2*3", 7},
		{"=(1+2)*3", 9},
		{"=2^3^2", 512},
		{"=10/4", 2.5},
		{"=-3+5", 2},
		{"=+3", 3},
		{`="2"+3`, 5},
		{"=TRUE+1", 2},
		{"=A1*A2", 10},
		{"=$A$1-Z99", 4},
		{"=SQRT(16)", 4},
		{"=ROUND(2.5,0)", 3},
		{"=ROUND(-2.5,0)", -3},
		{"=ROUND(3.14159,2)", 3.14},
		{"=ROUND(1234.5678,-2)", 1200},
		{"=ROUNDUP(12.341,2)", 12.35},
		{"=ROUNDUP(1.1,1)", 1.1},
		{"=ROUNDUP(5,0)", 5},
		{"=ROUNDUP(0.5,0)", 1},
		{"=ROUNDUP(1000000.0001,0)", 1000001},
		{"=ROUNDUP(123456.78001,2)", 123456.79},
		{"=ROUNDUP(2.675,2)", 2.68},
		{"=SUM(1,2,3)", 6},
		{`=SUM(1,"2",TRUE,"x")`, 3},
		{"=AVERAGE(2,4)", 3},
		{"=SUM(A1:A2)", 6.5},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := e.eval(tt.formula)
			require.NoError(t, err)
			require.Equal(t, cell.KindNumber, v.Kind(), "got %s", v)
			assert.InDelta(t, tt.want, v.Num(), 1e-9)
		})
	}
}

func TestEvaluate_RoundupNegativeUsesCeiling(t *testing.T) {
	e := newEnv(t)

	v, err := e.eval("=ROUNDUP(-12.341,2)")
	require.NoError(t, err)
	assert.InDelta(t, -12.34, v.Num(), 1e-9, "ceiling moves negative numbers toward zero")

	v, err = e.eval("=ROUNDUP(12.341,2)")
	require.NoError(t, err)
	assert.InDelta(t, 12.35, v.Num(), 1e-9)
}

func TestEvaluate_Division(t *testing.T) {
	e := newEnv(t)
	operands := []float64{-7.5, -1, 0, 0.25, 3, 1e6}

	for _, a := range operands {
		for _, b := range operands {
			text := fmt.Sprintf("=%s/%s", cell.FormatNumber(a), cell.FormatNumber(b))
			if a < 0 {
				text = fmt.Sprintf("=(%s)/%s", cell.FormatNumber(a), cell.FormatNumber(b))
			}
			if b < 0 {
				text = fmt.Sprintf("=(%s)/(%s)", cell.FormatNumber(a), cell.FormatNumber(b))
			}
			v, err := e.eval(text)
			if b == 0 {
				require.Error(t, err, text)
				assert.Equal(t, cell.Error(cell.ErrDiv0), v, text)
				assert.Equal(t, ErrCodeDomain, Code(err), text)
				assert.False(t, IsFatal(err))
				continue
			}
			require.NoError(t, err, text)
			assert.InDelta(t, a/b, v.Num(), 1e-9, text)
		}
	}
}

func TestEvaluate_TypeMismatch(t *testing.T) {
	e := newEnv(t)

	v, err := e.eval(`="abc"+1`)
	require.Error(t, err)
	assert.Equal(t, ErrCodeTypeMismatch, Code(err))
	assert.Equal(t, cell.Error(cell.ErrValue), v)

	_, err = e.eval("=A1:A3+1")
	assert.Equal(t, ErrCodeTypeMismatch, Code(err), "a range is not a scalar operand")
}

func TestEvaluate_Domain(t *testing.T) {
	e := newEnv(t)

	v, err := e.eval("=SQRT(-4)")
	require.Error(t, err)
	assert.Equal(t, ErrCodeDomain, Code(err))
	assert.Equal(t, cell.Error(cell.ErrNum), v)

	v, err = e.eval("=0^-1")
	require.Error(t, err)
	assert.Equal(t, cell.Error(cell.ErrDiv0), v)
}

func TestEvaluate_Comparisons(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		formula string
		want    bool
	}{
		{"=1=1", true},
		{`="10"=10`, true},
		{`="a"="A"`, false},
		{`="a"="a"`, true},
		{"=1<>2", true},
		{"=1!=1", false},
		{"=2>=2", true},
		{"=1<2", true},
		{"=3<=2", false},
		{`="abc">1`, false},
		{`="abc"<1`, false},
		{"=Z1=0", true},
		{`=Z1=""`, true},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := e.eval(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, cell.Bool(tt.want), v)
		})
	}
}

func TestEvaluate_Logical(t *testing.T) {
	e := newEnv(t)
	e.value(sheet, "A1", cell.Number(0))
	e.value(sheet, "A2", cell.Text("TRUE"))

	tests := []struct {
		formula string
		want    cell.Value
	}{
		{`=IF(1>2,"y","n")`, cell.Text("n")},
		{`=IF(2>1,"y","n")`, cell.Text("y")},
		{"=IF(FALSE,1)", cell.Bool(false)},
		{"=IF(TRUE,1,1/0)", cell.Number(1)},
		{"=IF(0,1/0,2)", cell.Number(2)},
		{`=IF(OR(A1=1,A2),"hit","miss")`, cell.Text("hit")},
		{"=OR(FALSE,0,Z9)", cell.Bool(false)},
		{"=OR(A1:A2)", cell.Bool(true)},
		{"=AND(1,Z9)", cell.Bool(false)},
		{"=AND(1,2,\"TRUE\")", cell.Bool(true)},
		{"=OR(TRUE,1/0)", cell.Bool(true)},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := e.eval(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}

	_, err := e.eval("=AND(TRUE,1/0)")
	assert.Equal(t, ErrCodeDomain, Code(err), "errors reached before short-circuit propagate")
}

func TestEvaluate_Average(t *testing.T) {
	e := newEnv(t)
	e.value(sheet, "B1", cell.Text("n/a"))
	e.value(sheet, "B2", cell.Bool(true))
	e.input("Input", "C1", cell.Text("x"))

	for _, text := range []string{
		"=AVERAGE(Z1:Z5)",
		"=AVERAGE(B1:B3)",
		"=AVERAGE('[Pavement Input.xlsx]Input'!C1:C9)",
	} {
		v, err := e.eval(text)
		require.NoError(t, err, text)
		assert.Equal(t, cell.Number(0), v, text)
	}
}

func TestEvaluate_AggregateSkipsFailedCells(t *testing.T) {
	e := newEnv(t)
	e.value(sheet, "A1", cell.Number(2))
	e.formula(sheet, "A2", "=1/0")
	e.value(sheet, "A3", cell.Text("5"))
	e.value(sheet, "A4", cell.Error(cell.ErrNA))

	v, err := e.eval("=SUM(A1:A4)")
	require.NoError(t, err)
	assert.Equal(t, cell.Number(7), v)

	v, err = e.eval("=AVERAGE(A1:A4)")
	require.NoError(t, err)
	assert.Equal(t, cell.Number(3.5), v)
}

func TestEvaluate_IFERROR(t *testing.T) {
	e := newEnv(t)
	e.input("Input", "A1", cell.Error(cell.ErrNA))

	tests := []struct {
		formula string
		want    cell.Value
	}{
		{"=IFERROR(1/0,99)", cell.Number(99)},
		{"=IFERROR(1+1,99)", cell.Number(2)},
		{`=IFERROR(Z99,"none")`, cell.Text("none")},
		{"=IFERROR(SQRT(-4),0)", cell.Number(0)},
		{"=IFERROR('[Pavement Input.xlsx]Input'!A1,-1)", cell.Number(-1)},
		{"=IFERROR('[Nowhere.xlsx]X'!A1,7)", cell.Number(7)},
		{`=IFERROR("",1)`, cell.Text("")},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := e.eval(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEvaluate_LOOKUP(t *testing.T) {
	e := newEnv(t)
	e.input("Input", "A1", cell.Text("Type A"))
	e.input("Input", "A2", cell.Text("Type B"))
	e.input("Input", "B1", cell.Number(100))
	e.input("Input", "B2", cell.Number(200))
	e.value(sheet, "D7", cell.Text("Type B"))

	tests := []struct {
		formula string
		want    cell.Value
	}{
		{`=LOOKUP(5,{3,5,7},{"a","b","c"})`, cell.Text("b")},
		{`=LOOKUP(9,{3,5,7},{"a","b","c"})`, cell.Empty},
		{`=LOOKUP("7",{3,5,7},{"a","b","c"})`, cell.Text("c")},
		{`=LOOKUP(7,{3,5,7},{"a","b"})`, cell.Empty},
		{"=LOOKUP($D7,'[Pavement Input.xlsx]Input'!$A$1:$A$2,'[Pavement Input.xlsx]Input'!$B$1:$B$2)", cell.Number(200)},
		{"=LOOKUP(0,'[Pavement Input.xlsx]Input'!A1:A5,'[Pavement Input.xlsx]Input'!B1:B5)", cell.Empty},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := e.eval(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEvaluate_LOOKUPTwoDimensionalIsRowMajor(t *testing.T) {
	e := newEnv(t)
	for addr, n := range map[string]float64{"A1": 1, "B1": 2, "A2": 3, "B2": 4} {
		e.value(sheet, addr, cell.Number(n))
	}
	for _, addr := range []string{"C1", "D1", "C2", "D2"} {
		e.value(sheet, addr, cell.Text(addr))
	}
	e.input("Input", "A1", cell.Text("p"))
	e.input("Input", "B1", cell.Text("q"))
	e.input("Input", "A2", cell.Text("r"))
	e.input("Input", "B2", cell.Text("s"))

	tests := []struct {
		formula string
		want    cell.Value
	}{
		{"=LOOKUP(2,A1:B2,C1:D2)", cell.Text("D1")},
		{"=LOOKUP(3,A1:B2,C1:D2)", cell.Text("C2")},
		{`=LOOKUP(3,A1:B2,{"w","x","y","z"})`, cell.Text("y")},
		{`=LOOKUP("q",'[Pavement Input.xlsx]Input'!A1:B2,{"w","x","y","z"})`, cell.Text("x")},
		{"=LOOKUP(2,A1:B2,'[Pavement Input.xlsx]Input'!A1:B2)", cell.Text("q")},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := e.eval(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestEvaluate_LOOKUPIsLazyOnResult(t *testing.T) {
	e := newEnv(t)
	e.formula(sheet, "B1", "=1/0")
	e.formula(sheet, "B2", "=40+2")

	v, err := e.eval(`=LOOKUP("y",{"x","y"},B1:B2)`)
	require.NoError(t, err)
	assert.Equal(t, cell.Number(42), v, "only the matched result cell is evaluated")
}

func TestEvaluate_ParseErrors(t *testing.T) {
	e := newEnv(t)

	for _, text := range []string{"=FOO(1)", "=SUM(1", "=ROUND(1)", "=1+", ""} {
		v, err := e.eval(text)
		require.Error(t, err, text)
		assert.True(t, IsParseError(err), text)
		assert.False(t, IsFatal(err), text)
		assert.Equal(t, cell.Error(cell.ErrName), v, text)
	}
}

func TestEvaluate_ExprInterface(t *testing.T) {
	e := newEnv(t)
	expr, err := formula.Parse("=SUM({1,2,3})*2")
	require.NoError(t, err)

	v, err := e.ev.Evaluate(context.Background(), expr, e.ctx())
	require.NoError(t, err)
	assert.Equal(t, cell.Number(12), v)
}

func TestEvaluate_ErrorValuePropagates(t *testing.T) {
	e := newEnv(t)
	e.input("Input", "A1", cell.Error(cell.ErrNA))

	v, err := e.eval("='[Pavement Input.xlsx]Input'!A1+1")
	require.Error(t, err)
	assert.Equal(t, cell.Error(cell.ErrNA), v)

	v, err = e.eval("='[Pavement Input.xlsx]Input'!A1")
	require.Error(t, err, "a bare error value fails the cell")
	assert.Equal(t, cell.Error(cell.ErrNA), v)
}
