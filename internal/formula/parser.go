package formula

import (
	"strconv"
	"strings"

	"github.com/roach88/boqcalc/internal/cell"
)

// Parse turns formula text into an expression tree. A leading '=' is optional.
//
// Errors are always *ParseError.
func Parse(text string) (Expr, error) {
	src := strings.TrimSpace(text)
	src = strings.TrimPrefix(src, "=")
	if strings.TrimSpace(src) == "" {
		return nil, newParseError(src, -1, "empty formula")
	}
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: tokens}
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		return nil, p.errorf(tok, "unexpected %s %q after expression", tok.Kind, tok.Text)
	}
	return expr, nil
}

type parser struct {
	src    string
	tokens []Token
	pos    int
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok Token, format string, args ...any) error {
	return newParseError(p.src, tok.Pos, format, args...)
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.next()
	if tok.Kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", kind, tok.Kind)
	}
	return tok, nil
}

// parseComparison handles = <> != < <= > >= (lowest precedence).
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != TokenOp {
			return left, nil
		}
		var op Op
		switch tok.Text {
		case "=":
			op = OpEq
		case "<>", "!=":
			op = OpNe
		case "<":
			op = OpLt
		case "<=":
			op = OpLe
		case ">":
			op = OpGt
		case ">=":
			op = OpGe
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != TokenOp || (tok.Text != "+" && tok.Text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		op := OpAdd
		if tok.Text == "-" {
			op = OpSub
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.Kind != TokenOp || (tok.Text != "*" && tok.Text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		op := OpMul
		if tok.Text == "/" {
			op = OpDiv
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

// parsePower is right-associative: 2^3^2 is 2^(3^2).
func (p *parser) parsePower() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind == TokenOp && tok.Text == "^" {
		p.next()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &Binary{Op: OpPow, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	tok := p.peek()
	if tok.Kind == TokenOp && (tok.Text == "-" || tok.Text == "+") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := OpNeg
		if tok.Text == "+" {
			op = OpPlus
		}
		return &Unary{Op: op, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.next()
	switch tok.Kind {
	case TokenNumber:
		return &Literal{Value: cell.Number(tok.Num)}, nil
	case TokenString:
		return &Literal{Value: cell.Text(tok.Text)}, nil
	case TokenBool:
		return &Literal{Value: cell.Bool(tok.Text == "TRUE")}, nil
	case TokenRef:
		return &Ref{Ref: tok.Ref}, nil
	case TokenFunc:
		return p.parseCall(tok)
	case TokenLBrace:
		return p.parseArray(tok)
	case TokenLParen:
		x, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return x, nil
	case TokenEOF:
		return nil, p.errorf(tok, "unexpected end of formula")
	default:
		return nil, p.errorf(tok, "unexpected %s %q", tok.Kind, tok.Text)
	}
}

func (p *parser) parseCall(name Token) (Expr, error) {
	fn, ok := LookupFunction(name.Text)
	if !ok {
		return nil, p.errorf(name, "unknown function %s", strings.ToUpper(name.Text))
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	var args []Expr
	if p.peek().Kind == TokenRParen {
		p.next()
	} else {
		for {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			tok := p.next()
			if tok.Kind == TokenRParen {
				break
			}
			if tok.Kind != TokenComma {
				return nil, p.errorf(tok, "expected ',' or ')' in arguments of %s", fn)
			}
		}
	}

	a := functions[fn]
	if len(args) < a.min || (a.max >= 0 && len(args) > a.max) {
		return nil, p.errorf(name, "%s takes %s, got %d", fn, a.describe(), len(args))
	}
	return &Call{Func: fn, Args: args}, nil
}

func (a arity) describe() string {
	switch {
	case a.max < 0:
		return "at least " + plural(a.min)
	case a.min == a.max:
		return plural(a.min)
	default:
		return "between " + itoa(a.min) + " and " + plural(a.max)
	}
}

func plural(n int) string {
	if n == 1 {
		return "1 argument"
	}
	return itoa(n) + " arguments"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// parseArray parses a constant list. Elements must be literals, optionally
// negated numbers.
func (p *parser) parseArray(open Token) (Expr, error) {
	var values []cell.Value
	for {
		tok := p.next()
		neg := false
		if tok.Kind == TokenOp && tok.Text == "-" {
			neg = true
			tok = p.next()
		}
		switch tok.Kind {
		case TokenNumber:
			n := tok.Num
			if neg {
				n = -n
			}
			values = append(values, cell.Number(n))
		case TokenString:
			values = append(values, cell.Text(tok.Text))
		case TokenBool:
			values = append(values, cell.Bool(tok.Text == "TRUE"))
		default:
			return nil, p.errorf(tok, "array constants may only hold literals")
		}
		if neg && tok.Kind != TokenNumber {
			return nil, p.errorf(tok, "only numbers can be negated in array constants")
		}

		sep := p.next()
		switch sep.Kind {
		case TokenComma, TokenSemicolon:
			continue
		case TokenRBrace:
			return &Array{Values: values}, nil
		default:
			return nil, p.errorf(open, "unterminated array constant")
		}
	}
}
