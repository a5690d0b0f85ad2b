package formula

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/boqcalc/internal/cell"
)

func TestParse_Rendering(t *testing.T) {
	tests := []struct {
		formula string
		want    string
	}{
		{"=1+2*3", "(1+(2*3))"},
		{"=(1+2)*3", "((1+2)*3)"},
		{"=2^3^2", "(2^(3^2))"},
		{"=-A1^2", "(-A1^2)"},
		{"=A1-B1-C1", "((A1-B1)-C1)"},
		{"=A1>=10", "(A1>=10)"},
		{"=A1<>B1", "(A1<>B1)"},
		{"=A1!=B1", "(A1<>B1)"},
		{`="a""b"`, `"a""b"`},
		{"='text'", `"text"`},
		{"=true", "TRUE"},
		{"=sum(A1:B3, 4)", "SUM(A1:B3,4)"},
		{"=LOOKUP(5,{3,5,7},{\"a\",\"b\",\"c\"})", `LOOKUP(5,{3,5,7},{"a","b","c"})`},
		{"=IF(A1>0,1)", "IF((A1>0),1)"},
		{"=1.5e3", "1500"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			expr, err := Parse(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.String())
		})
	}
}

func TestParse_References(t *testing.T) {
	tests := []struct {
		formula  string
		workbook string
		sheet    string
		rng      string
	}{
		{"=A1", "", "", "A1"},
		{"=$B$2", "", "", "B2"},
		{"=a1:$c$3", "", "", "A1:C3"},
		{"=Sheet1!D4", "", "Sheet1", "D4"},
		{"='Main Sheet'!D4:E5", "", "Main Sheet", "D4:E5"},
		{"='[Pavement Input.xlsx]Pavement Input'!$C$5", "Pavement Input.xlsx", "Pavement Input", "C5"},
		{"=[Emb Height.xlsx]Data!B2", "Emb Height.xlsx", "Data", "B2"},
		{"='[TCS Schedule.xlsx]'Schedule!A1:A10", "TCS Schedule.xlsx", "Schedule", "A1:A10"},
		{"='It''s'!A1", "", "It's", "A1"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			expr, err := Parse(tt.formula)
			require.NoError(t, err)
			ref, ok := expr.(*Ref)
			require.True(t, ok, "expected *Ref, got %T", expr)
			assert.Equal(t, tt.workbook, ref.Ref.Workbook)
			assert.Equal(t, tt.sheet, ref.Ref.Sheet)
			assert.Equal(t, tt.rng, ref.Ref.Range.String())
		})
	}
}

func TestParse_CommasInsideStringsAndNesting(t *testing.T) {
	expr, err := Parse(`=IF(A1="a,b",SUM(B1,C1),"x)")`)
	require.NoError(t, err)

	call, ok := expr.(*Call)
	require.True(t, ok)
	assert.Equal(t, FuncIF, call.Func)
	require.Len(t, call.Args, 3)
	assert.Equal(t, `"x)"`, call.Args[2].String())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		formula string
	}{
		{"empty", "="},
		{"unknown function", "=VLOOKUP(1,A1:B2,2)"},
		{"too few args", "=ROUND(1)"},
		{"too many args", "=IF(1,2,3,4)"},
		{"no args to sum", "=SUM()"},
		{"unbalanced paren", "=(1+2"},
		{"trailing garbage", "=1 2"},
		{"unterminated string", `="abc`},
		{"bad reference", "=Sheet1!ZZZZ1"},
		{"unknown name", "=foo"},
		{"concat unsupported", "=A1&B1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.formula)
			require.Error(t, err)
			assert.True(t, IsParseError(err), "got %T", err)
		})
	}
}

func TestParse_SpacedParenAfterReference(t *testing.T) {
	_, err := Parse("=A1 (B1)")
	require.Error(t, err)
	assert.True(t, IsParseError(err))
	assert.Contains(t, err.Error(), "after expression")
	assert.NotContains(t, err.Error(), "unknown function")

	_, err = Parse("=A1(B1)")
	assert.ErrorContains(t, err, "unknown function A1")

	expr, err := Parse("=SUM (A1, 2)")
	require.NoError(t, err)
	assert.Equal(t, "SUM(A1,2)", expr.String())
}

func TestParse_FunctionNamesCaseInsensitive(t *testing.T) {
	expr, err := Parse("=RoundUp(1.21, 1)")
	require.NoError(t, err)
	assert.Equal(t, FuncROUNDUP, expr.(*Call).Func)
}

func TestParse_NegativeArrayElements(t *testing.T) {
	expr, err := Parse("={-1;2,TRUE}")
	require.NoError(t, err)
	arr := expr.(*Array)
	assert.Equal(t, []cell.Value{cell.Number(-1), cell.Number(2), cell.Bool(true)}, arr.Values)
}

func TestCache_ReusesTrees(t *testing.T) {
	c := NewCache()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Parse("=A1+1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := c.Parse("=A1+1")
	require.NoError(t, err)
	b, err := c.Parse("=A1+1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = c.Parse("=NOPE(1)")
	assert.True(t, IsParseError(err))
	_, err = c.Parse("=NOPE(1)")
	assert.True(t, IsParseError(err), "failures are cached too")

	hits, misses := c.Stats()
	assert.Equal(t, int64(12), hits+misses)
}

func TestReferences(t *testing.T) {
	refs := References("=SUM($A$1:B3, Sheet2!C4) + A1:B3 + VLOOKUP(D1, E1:F9, 2)")
	assert.Equal(t, []string{"A1:B3", "Sheet2!C4", "D1", "E1:F9"}, refs)

	assert.Empty(t, References("=1+2"))
}

func TestDependencies(t *testing.T) {
	expr, err := Parse("=IF(A1>0,Sheet2!B1,SUM(C1:C3))")
	require.NoError(t, err)

	deps := Dependencies(expr)
	require.Len(t, deps, 3)
	assert.Equal(t, "A1", deps[0].String())
	assert.Equal(t, "'Sheet2'!B1", deps[1].String())
	assert.Equal(t, "C1:C3", deps[2].String())
}
