package formula

import (
	"fmt"

	"github.com/roach88/boqcalc/internal/cell"
)

// TokenKind classifies lexer output.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNumber
	TokenString
	TokenBool
	TokenRef
	TokenFunc
	TokenOp
	TokenComma
	TokenSemicolon
	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
)

var tokenKindNames = [...]string{
	TokenEOF:       "end of formula",
	TokenNumber:    "number",
	TokenString:    "string",
	TokenBool:      "boolean",
	TokenRef:       "reference",
	TokenFunc:      "function",
	TokenOp:        "operator",
	TokenComma:     "','",
	TokenSemicolon: "';'",
	TokenLParen:    "'('",
	TokenRParen:    "')'",
	TokenLBrace:    "'{'",
	TokenRBrace:    "'}'",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is a lexeme with its byte offset in the formula body.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int

	// Set for TokenNumber.
	Num float64
	// Set for TokenRef.
	Ref cell.Reference
}
