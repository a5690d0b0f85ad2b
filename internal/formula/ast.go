package formula

import (
	"strconv"
	"strings"

	"github.com/roach88/boqcalc/internal/cell"
)

// Expr is a node of a parsed formula. Trees are immutable once built and may
// be shared between goroutines.
type Expr interface {
	String() string
	exprNode()
}

// Literal is a constant value.
type Literal struct {
	Value cell.Value
}

// Ref is a cell or range reference. Ranges are kept unexpanded.
type Ref struct {
	Ref cell.Reference
}

// Array is a constant list such as {3,5,7}. Rows separated by ';' are
// flattened row by row.
type Array struct {
	Values []cell.Value
}

// Call is a call to one of the built-in functions.
type Call struct {
	Func Function
	Args []Expr
}

// Unary is a prefix sign.
type Unary struct {
	Op Op
	X  Expr
}

// Binary is an arithmetic or comparison operation.
type Binary struct {
	Op    Op
	Left  Expr
	Right Expr
}

func (*Literal) exprNode() {}
func (*Ref) exprNode()     {}
func (*Array) exprNode()   {}
func (*Call) exprNode()    {}
func (*Unary) exprNode()   {}
func (*Binary) exprNode()  {}

func (e *Literal) String() string {
	switch e.Value.Kind() {
	case cell.KindText:
		return `"` + strings.ReplaceAll(e.Value.Str(), `"`, `""`) + `"`
	default:
		return e.Value.ToText()
	}
}

func (e *Ref) String() string { return e.Ref.String() }

func (e *Array) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = (&Literal{Value: v}).String()
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (e *Call) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return string(e.Func) + "(" + strings.Join(parts, ",") + ")"
}

func (e *Unary) String() string { return e.Op.String() + e.X.String() }

func (e *Binary) String() string {
	return "(" + e.Left.String() + e.Op.String() + e.Right.String() + ")"
}

// Op is an operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpPow
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpNeg
	OpPlus
)

var opNames = [...]string{
	OpAdd:  "+",
	OpSub:  "-",
	OpMul:  "*",
	OpDiv:  "/",
	OpPow:  "^",
	OpEq:   "=",
	OpNe:   "<>",
	OpLt:   "<",
	OpLe:   "<=",
	OpGt:   ">",
	OpGe:   ">=",
	OpNeg:  "-",
	OpPlus: "+",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// IsComparison reports whether o yields a boolean.
func (o Op) IsComparison() bool {
	return o >= OpEq && o <= OpGe
}

// Function is a built-in function name in canonical upper case.
type Function string

const (
	FuncIF      Function = "IF"
	FuncOR      Function = "OR"
	FuncAND     Function = "AND"
	FuncSUM     Function = "SUM"
	FuncAVERAGE Function = "AVERAGE"
	FuncROUND   Function = "ROUND"
	FuncROUNDUP Function = "ROUNDUP"
	FuncSQRT    Function = "SQRT"
	FuncIFERROR Function = "IFERROR"
	FuncLOOKUP  Function = "LOOKUP"
)

// arity is the accepted argument count; max < 0 means unbounded.
type arity struct {
	min, max int
}

var functions = map[Function]arity{
	FuncIF:      {2, 3},
	FuncOR:      {1, -1},
	FuncAND:     {1, -1},
	FuncSUM:     {1, -1},
	FuncAVERAGE: {1, -1},
	FuncROUND:   {2, 2},
	FuncROUNDUP: {2, 2},
	FuncSQRT:    {1, 1},
	FuncIFERROR: {2, 2},
	FuncLOOKUP:  {3, 3},
}

// LookupFunction resolves a function name case-insensitively.
func LookupFunction(name string) (Function, bool) {
	f := Function(strings.ToUpper(name))
	_, ok := functions[f]
	return f, ok
}

// Walk calls fn for every node of e in depth-first order. Returning false
// from fn skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Unary:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	}
}
