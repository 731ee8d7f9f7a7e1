package frontend

import "fmt"

// TokenKind classifies lexer tokens.
type TokenKind uint8

const (
	EOF TokenKind = iota
	Ident
	Keyword
	IntLit
	FloatLit
	StringLit
	CharLit
	Op
	At
)

func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "identifier"
	case Keyword:
		return "keyword"
	case IntLit:
		return "integer"
	case FloatLit:
		return "float"
	case StringLit:
		return "string"
	case CharLit:
		return "char"
	case Op:
		return "operator"
	case At:
		return "@"
	default:
		return "unknown"
	}
}

// Token is one lexeme with its position and the comments that precede it.
type Token struct {
	Kind TokenKind
	Text string
	Line int
	Col  int
	// EndLine and EndCol point just past the token.
	EndLine int
	EndCol  int
	// Comments lists comments seen between the previous token and this one.
	Comments []string
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "end of file"
	}
	return fmt.Sprintf("%q", t.Text)
}

var keywords = map[string]bool{
	"abstract": true, "boolean": true, "break": true, "byte": true, "char": true,
	"class": true, "continue": true, "double": true, "else": true, "extends": true,
	"false": true, "final": true, "float": true, "for": true, "if": true,
	"implements": true, "import": true, "instanceof": true, "int": true,
	"interface": true, "long": true, "new": true, "null": true, "package": true,
	"private": true, "protected": true, "public": true, "return": true,
	"short": true, "static": true, "super": true, "synchronized": true,
	"this": true, "throw": true, "throws": true, "transient": true, "true": true,
	"void": true, "volatile": true, "while": true, "default": true, "native": true,
	"do": true, "try": true, "catch": true, "finally": true, "switch": true, "case": true,
}

var primitives = map[string]bool{
	"boolean": true, "byte": true, "char": true, "double": true, "float": true,
	"int": true, "long": true, "short": true, "void": true,
}

var modifiers = map[string]bool{
	"abstract": true, "final": true, "private": true, "protected": true,
	"public": true, "static": true, "synchronized": true, "transient": true,
	"volatile": true, "default": true, "native": true,
}
