package frontend

import (
	"fmt"
	"strings"
)

// ops lists multi-character operators longest first. '>' is always emitted
// alone so generic closers and shifts can be told apart by the parser.
var ops = []string{
	"<<=", "->", "::", "++", "--", "&&", "||", "==", "!=", "<=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<",
}

// SyntaxError reports a lexing or parsing failure.
type SyntaxError struct {
	Path string
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Col, e.Msg)
}

type lexer struct {
	path string
	src  string
	off  int
	line int
	col  int
	// pending collects comments until the next token is produced.
	pending []string
}

// Lex splits src into tokens. Comments are attached to the following token.
func Lex(path, src string) ([]Token, error) {
	lx := &lexer{path: path, src: src, line: 1, col: 1}
	var toks []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks, nil
		}
	}
}

func (lx *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Path: lx.path, Line: lx.line, Col: lx.col, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) peek(n int) byte {
	if lx.off+n < len(lx.src) {
		return lx.src[lx.off+n]
	}
	return 0
}

func (lx *lexer) advance(n int) {
	for range n {
		if lx.off >= len(lx.src) {
			return
		}
		if lx.src[lx.off] == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
		lx.off++
	}
}

func (lx *lexer) skipTrivia() error {
	for lx.off < len(lx.src) {
		c := lx.src[lx.off]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f':
			lx.advance(1)
		case c == '/' && lx.peek(1) == '/':
			end := strings.IndexByte(lx.src[lx.off:], '\n')
			if end < 0 {
				end = len(lx.src) - lx.off
			}
			lx.pending = append(lx.pending, strings.TrimRight(lx.src[lx.off:lx.off+end], " \t\r"))
			lx.advance(end)
		case c == '/' && lx.peek(1) == '*':
			end := strings.Index(lx.src[lx.off+2:], "*/")
			if end < 0 {
				return lx.errorf("unterminated block comment")
			}
			lx.pending = append(lx.pending, lx.src[lx.off:lx.off+end+4])
			lx.advance(end + 4)
		default:
			return nil
		}
	}
	return nil
}

func (lx *lexer) next() (Token, error) {
	if err := lx.skipTrivia(); err != nil {
		return Token{}, err
	}
	tok := Token{Line: lx.line, Col: lx.col, Comments: lx.pending}
	lx.pending = nil
	if lx.off >= len(lx.src) {
		tok.Kind = EOF
		tok.EndLine, tok.EndCol = lx.line, lx.col
		return tok, nil
	}
	start := lx.off
	c := lx.src[lx.off]
	switch {
	case isIdentStart(c):
		for lx.off < len(lx.src) && isIdentPart(lx.src[lx.off]) {
			lx.advance(1)
		}
		tok.Text = lx.src[start:lx.off]
		tok.Kind = Ident
		if keywords[tok.Text] {
			tok.Kind = Keyword
		}
	case isDigit(c) || (c == '.' && isDigit(lx.peek(1))):
		tok.Kind = lx.scanNumber()
		tok.Text = lx.src[start:lx.off]
	case c == '"':
		if err := lx.scanQuoted('"'); err != nil {
			return Token{}, err
		}
		tok.Kind = StringLit
		tok.Text = lx.src[start:lx.off]
	case c == '\'':
		if err := lx.scanQuoted('\''); err != nil {
			return Token{}, err
		}
		tok.Kind = CharLit
		tok.Text = lx.src[start:lx.off]
	case c == '@':
		lx.advance(1)
		tok.Kind = At
		tok.Text = "@"
	default:
		tok.Kind = Op
		tok.Text = lx.scanOp()
		if tok.Text == "" {
			return Token{}, lx.errorf("unexpected character %q", c)
		}
	}
	tok.EndLine, tok.EndCol = lx.line, lx.col
	return tok, nil
}

func (lx *lexer) scanNumber() TokenKind {
	kind := IntLit
	if lx.peek(0) == '0' && (lx.peek(1) == 'x' || lx.peek(1) == 'X') {
		lx.advance(2)
		for isHex(lx.peek(0)) || lx.peek(0) == '_' {
			lx.advance(1)
		}
	} else {
		for isDigit(lx.peek(0)) || lx.peek(0) == '_' {
			lx.advance(1)
		}
		if lx.peek(0) == '.' && isDigit(lx.peek(1)) {
			kind = FloatLit
			lx.advance(1)
			for isDigit(lx.peek(0)) {
				lx.advance(1)
			}
		}
		if lx.peek(0) == 'e' || lx.peek(0) == 'E' {
			kind = FloatLit
			lx.advance(1)
			if lx.peek(0) == '+' || lx.peek(0) == '-' {
				lx.advance(1)
			}
			for isDigit(lx.peek(0)) {
				lx.advance(1)
			}
		}
	}
	switch lx.peek(0) {
	case 'L', 'l':
		lx.advance(1)
	case 'f', 'F', 'd', 'D':
		kind = FloatLit
		lx.advance(1)
	}
	return kind
}

func (lx *lexer) scanQuoted(q byte) error {
	lx.advance(1)
	for {
		if lx.off >= len(lx.src) || lx.src[lx.off] == '\n' {
			return lx.errorf("unterminated literal")
		}
		c := lx.src[lx.off]
		if c == '\\' {
			lx.advance(2)
			continue
		}
		lx.advance(1)
		if c == q {
			return nil
		}
	}
}

func (lx *lexer) scanOp() string {
	rest := lx.src[lx.off:]
	for _, op := range ops {
		if strings.HasPrefix(rest, op) {
			lx.advance(len(op))
			return op
		}
	}
	if strings.ContainsRune("{}()[];,.=<>!~?:+-*/&|^%", rune(rest[0])) {
		lx.advance(1)
		return rest[:1]
	}
	return ""
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
