package formula

import (
	"strconv"
	"strings"

	"github.com/roach88/boqcalc/internal/cell"
)

// character classes used by the scanner.
const (
	charQuote      = '"'
	charApostrophe = '\''
	charLBracket   = '['
	charRBracket   = ']'
	charExclaim    = '!'
	charColon      = ':'
	charDollar     = '$'
	charPeriod     = '.'
	charUnderscore = '_'
)

type lexer struct {
	src    string
	pos    int
	tokens []Token
}

// Tokenize splits a formula body (without the leading '=') into tokens.
// The returned slice always ends with a TokenEOF.
func Tokenize(src string) ([]Token, error) {
	l := &lexer{src: src}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) run() error {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.emit(Token{Kind: TokenEOF, Pos: l.pos})
			return nil
		}
		start := l.pos
		c := l.src[l.pos]
		switch {
		case c == '(':
			l.single(TokenLParen)
		case c == ')':
			l.single(TokenRParen)
		case c == '{':
			l.single(TokenLBrace)
		case c == '}':
			l.single(TokenRBrace)
		case c == ',':
			l.single(TokenComma)
		case c == ';':
			l.single(TokenSemicolon)
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '^' || c == '=':
			l.single(TokenOp)
		case c == '<':
			l.pos++
			if l.peekIs('=') || l.peekIs('>') {
				l.pos++
			}
			l.emit(Token{Kind: TokenOp, Text: l.src[start:l.pos], Pos: start})
		case c == '>':
			l.pos++
			if l.peekIs('=') {
				l.pos++
			}
			l.emit(Token{Kind: TokenOp, Text: l.src[start:l.pos], Pos: start})
		case c == '!':
			if !strings.HasPrefix(l.src[l.pos:], "!=") {
				return l.errorf(start, "unexpected '!'")
			}
			l.pos += 2
			l.emit(Token{Kind: TokenOp, Text: "!=", Pos: start})
		case c == charQuote:
			if err := l.lexString(charQuote); err != nil {
				return err
			}
		case c == charApostrophe:
			if err := l.lexApostrophe(); err != nil {
				return err
			}
		case c == charLBracket:
			if err := l.lexBracketRef(); err != nil {
				return err
			}
		case isDigit(c) || c == charPeriod:
			if err := l.lexNumber(); err != nil {
				return err
			}
		case isNameStart(c):
			if err := l.lexName(); err != nil {
				return err
			}
		default:
			return l.errorf(start, "unexpected character %q", c)
		}
	}
}

func (l *lexer) emit(t Token) {
	l.tokens = append(l.tokens, t)
}

func (l *lexer) single(kind TokenKind) {
	l.emit(Token{Kind: kind, Text: l.src[l.pos : l.pos+1], Pos: l.pos})
	l.pos++
}

func (l *lexer) peekIs(c byte) bool {
	return l.pos < len(l.src) && l.src[l.pos] == c
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return newParseError(l.src, pos, format, args...)
}

// readQuoted consumes a quoted run starting at the opening quote and returns
// its unescaped content. A doubled quote stands for one literal quote.
func (l *lexer) readQuoted(q byte) (string, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == q {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == q {
				b.WriteByte(q)
				l.pos += 2
				continue
			}
			l.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		l.pos++
	}
	return "", l.errorf(start, "unterminated quote")
}

func (l *lexer) lexString(q byte) error {
	start := l.pos
	s, err := l.readQuoted(q)
	if err != nil {
		return err
	}
	l.emit(Token{Kind: TokenString, Text: s, Pos: start})
	return nil
}

// lexApostrophe handles both single-quoted strings and quoted reference
// prefixes: 'Sheet'!A1, '[Book.xlsx]Sheet'!A1 and '[Book.xlsx]'Sheet!A1.
func (l *lexer) lexApostrophe() error {
	start := l.pos
	content, err := l.readQuoted(charApostrophe)
	if err != nil {
		return err
	}
	if l.peekIs(charExclaim) {
		l.pos++
		workbook, sheet, err := splitPrefix(content)
		if err != nil {
			return l.errorf(start, "%v", err)
		}
		return l.lexAddress(start, workbook, sheet)
	}
	if strings.HasPrefix(content, "[") && strings.HasSuffix(content, "]") && l.pos < len(l.src) && isNameStart(l.src[l.pos]) {
		workbook := content[1 : len(content)-1]
		sheet := l.readSheetName()
		if !l.peekIs(charExclaim) {
			return l.errorf(start, "expected '!' after sheet name")
		}
		l.pos++
		return l.lexAddress(start, workbook, sheet)
	}
	l.emit(Token{Kind: TokenString, Text: content, Pos: start})
	return nil
}

// lexBracketRef handles an unquoted [Book.xlsx]Sheet!A1 prefix.
func (l *lexer) lexBracketRef() error {
	start := l.pos
	end := strings.IndexByte(l.src[l.pos:], charRBracket)
	if end < 0 {
		return l.errorf(start, "unterminated workbook name")
	}
	workbook := l.src[l.pos+1 : l.pos+end]
	l.pos += end + 1
	sheet := l.readSheetName()
	if sheet == "" || !l.peekIs(charExclaim) {
		return l.errorf(start, "expected sheet name and '!' after workbook")
	}
	l.pos++
	return l.lexAddress(start, workbook, sheet)
}

func (l *lexer) readSheetName() string {
	start := l.pos
	for l.pos < len(l.src) && isNameChar(l.src[l.pos]) {
		l.pos++
	}
	return l.src[start:l.pos]
}

// splitPrefix splits "[Book]Sheet" or "Sheet" into workbook and sheet.
func splitPrefix(s string) (workbook, sheet string, err error) {
	if !strings.HasPrefix(s, "[") {
		if s == "" {
			return "", "", errEmptySheet
		}
		return "", s, nil
	}
	end := strings.IndexByte(s, charRBracket)
	if end < 0 {
		return "", "", errUnterminatedWorkbook
	}
	workbook, sheet = s[1:end], s[end+1:]
	if workbook == "" {
		return "", "", errEmptyWorkbook
	}
	if sheet == "" {
		return "", "", errEmptySheet
	}
	return workbook, sheet, nil
}

// lexAddress reads the address or range after a sheet prefix and emits a
// qualified reference token starting at start.
func (l *lexer) lexAddress(start int, workbook, sheet string) error {
	addrStart := l.pos
	for l.pos < len(l.src) && isAddrChar(l.src[l.pos]) {
		l.pos++
	}
	if l.peekIs(charColon) {
		l.pos++
		for l.pos < len(l.src) && isAddrChar(l.src[l.pos]) {
			l.pos++
		}
	}
	text := l.src[addrStart:l.pos]
	r, err := cell.ParseRange(text)
	if err != nil {
		return l.errorf(addrStart, "invalid reference: %v", err)
	}
	l.emit(Token{
		Kind: TokenRef,
		Text: l.src[start:l.pos],
		Pos:  start,
		Ref:  cell.Reference{Workbook: workbook, Sheet: sheet, Range: r},
	})
	return nil
}

func (l *lexer) lexNumber() error {
	start := l.pos
	for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == charPeriod) {
		l.pos++
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		mark := l.pos
		l.pos++
		if l.peekIs('+') || l.peekIs('-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = mark
		}
	}
	text := l.src[start:l.pos]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return l.errorf(start, "invalid number %q", text)
	}
	l.emit(Token{Kind: TokenNumber, Text: text, Pos: start, Num: f})
	return nil
}

// lexName reads an identifier and decides between function name, boolean,
// sheet prefix, cell reference and range.
func (l *lexer) lexName() error {
	start := l.pos
	for l.pos < len(l.src) && isNameChar(l.src[l.pos]) {
		l.pos++
	}
	name := l.src[start:l.pos]

	save := l.pos
	l.skipSpace()
	if l.peekIs('(') {
		// A cell address separated from "(" by spaces stays a reference, so
		// "=A1 (B1)" fails as a stray parenthesis rather than a function.
		if _, err := cell.ParseAddress(name); err != nil || l.pos == save {
			l.emit(Token{Kind: TokenFunc, Text: name, Pos: start})
			return nil
		}
	}
	l.pos = save

	if l.peekIs(charExclaim) && !strings.HasPrefix(l.src[l.pos:], "!=") {
		l.pos++
		return l.lexAddress(start, "", name)
	}

	switch strings.ToUpper(name) {
	case "TRUE", "FALSE":
		l.emit(Token{Kind: TokenBool, Text: strings.ToUpper(name), Pos: start})
		return nil
	}

	if l.peekIs(charColon) {
		l.pos = start
		return l.lexAddress(start, "", "")
	}
	addr, err := cell.ParseAddress(name)
	if err != nil {
		return l.errorf(start, "unknown name %q", name)
	}
	l.emit(Token{
		Kind: TokenRef,
		Text: name,
		Pos:  start,
		Ref:  cell.Reference{Range: cell.Range{Start: addr, End: addr}},
	})
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

func isNameStart(c byte) bool { return isLetter(c) || c == charUnderscore || c == charDollar }

func isNameChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == charUnderscore || c == charPeriod || c == charDollar
}

func isAddrChar(c byte) bool { return isLetter(c) || isDigit(c) || c == charDollar }
