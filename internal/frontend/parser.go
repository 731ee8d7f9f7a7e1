package frontend

import (
	"fmt"
	"strings"

	"refweaver/internal/syntax"
)

// bailout unwinds the recursive descent on the first syntax error.
type bailout struct{ err *SyntaxError }

type parser struct {
	path string
	file syntax.FileID
	toks []Token
	pos  int
}

// ParseFile parses one compilation unit. The result carries no bindings;
// run a Binder over the program to resolve them.
func ParseFile(id syntax.FileID, path, src string) (f *syntax.File, err error) {
	toks, err := Lex(path, src)
	if err != nil {
		return nil, err
	}
	p := &parser{path: path, file: id, toks: toks}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			f, err = nil, b.err
		}
	}()
	return p.parseFile(), nil
}

func (p *parser) cur() Token { return p.toks[p.pos] }

func (p *parser) peek(n int) Token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) last() Token {
	if p.pos == 0 {
		return p.toks[0]
	}
	return p.toks[p.pos-1]
}

func (p *parser) failf(t Token, format string, args ...any) {
	panic(bailout{&SyntaxError{Path: p.path, Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)}})
}

func (p *parser) next() Token {
	t := p.cur()
	if t.Kind != EOF {
		p.pos++
	}
	return t
}

// at reports whether the current token is the given punctuation, keyword
// or identifier text.
func (p *parser) at(text string) bool {
	t := p.cur()
	return t.Kind != StringLit && t.Kind != CharLit && t.Text == text
}

func (p *parser) accept(text string) bool {
	if p.at(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) Token {
	if !p.at(text) {
		p.failf(p.cur(), "expected %q, found %s", text, p.cur())
	}
	return p.next()
}

func (p *parser) ident() Token {
	if p.cur().Kind != Ident {
		p.failf(p.cur(), "expected identifier, found %s", p.cur())
	}
	return p.next()
}

func (p *parser) spanFrom(start Token) syntax.Span {
	end := p.last()
	return syntax.Span{
		File:  p.file,
		Start: syntax.MakePos(start.Line, start.Col),
		End:   syntax.MakePos(end.EndLine, end.EndCol),
	}
}

// try runs fn speculatively. On a syntax error the position is restored
// and try reports false.
func (p *parser) try(fn func()) (ok bool) {
	saved := p.pos
	defer func() {
		if r := recover(); r != nil {
			if _, isBail := r.(bailout); !isBail {
				panic(r)
			}
			p.pos = saved
			ok = false
		}
	}()
	fn()
	return true
}

// adjacent reports whether token i+1 immediately follows token i.
func (p *parser) adjacent(i int) bool {
	a, b := p.peek(i), p.peek(i+1)
	return a.EndLine == b.Line && a.EndCol == b.Col
}

func (p *parser) parseFile() *syntax.File {
	start := p.cur()
	f := &syntax.File{ID: p.file, Path: p.path}
	if p.at("package") {
		f.Doc = p.cur().Comments
		p.next()
		f.Package = p.qualifiedName()
		p.expect(";")
	}
	for p.at("import") {
		t := p.next()
		imp := &syntax.Import{}
		imp.Doc = t.Comments
		imp.Static = p.accept("static")
		var parts []string
		parts = append(parts, p.ident().Text)
		for p.accept(".") {
			if p.accept("*") {
				imp.Wildcard = true
				break
			}
			parts = append(parts, p.ident().Text)
		}
		imp.Path = strings.Join(parts, ".")
		p.expect(";")
		imp.Loc = p.spanFrom(t)
		f.Imports = append(f.Imports, imp)
	}
	for p.cur().Kind != EOF {
		if p.accept(";") {
			continue
		}
		doc := p.cur().Comments
		mods := p.modifiers()
		t := p.typeDecl(mods)
		t.Doc = doc
		f.Types = append(f.Types, t)
	}
	f.Trailing = p.cur().Comments
	f.Loc = p.spanFrom(start)
	return f
}

func (p *parser) qualifiedName() string {
	parts := []string{p.ident().Text}
	for p.at(".") && p.peek(1).Kind == Ident {
		p.next()
		parts = append(parts, p.next().Text)
	}
	return strings.Join(parts, ".")
}

// modifiers consumes keywords and annotations in front of a declaration.
func (p *parser) modifiers() []string {
	var mods []string
	for {
		t := p.cur()
		switch {
		case t.Kind == Keyword && modifiers[t.Text]:
			if t.Text == "synchronized" && p.peek(1).Text == "(" {
				return mods
			}
			p.next()
			mods = append(mods, t.Text)
		case t.Kind == At && p.peek(1).Text != "interface":
			p.next()
			ann := "@" + p.qualifiedName()
			if p.at("(") {
				ann += p.rawParens()
			}
			mods = append(mods, ann)
		default:
			return mods
		}
	}
}

// rawParens returns the source text of a balanced parenthesized group,
// used for annotation arguments that are carried through untouched.
func (p *parser) rawParens() string {
	var sb strings.Builder
	depth := 0
	for {
		t := p.next()
		if t.Kind == EOF {
			p.failf(t, "unbalanced parentheses")
		}
		if sb.Len() > 0 && t.Text != ")" && t.Text != "," && !strings.HasSuffix(sb.String(), "(") {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
		switch t.Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return sb.String()
			}
		}
	}
}

func (p *parser) typeDecl(mods []string) *syntax.TypeDecl {
	start := p.cur()
	td := &syntax.TypeDecl{Modifiers: mods}
	switch {
	case p.accept("class"):
	case p.accept("interface"):
		td.Interface = true
	default:
		p.failf(p.cur(), "expected class or interface, found %s", p.cur())
	}
	td.Name = p.ident().Text
	if p.at("<") {
		td.TypeParams = p.typeParams()
	}
	if p.accept("extends") {
		td.Extends = p.typeList()
	}
	if p.accept("implements") {
		td.Implements = p.typeList()
	}
	p.classBody(td)
	td.Loc = p.spanFrom(start)
	return td
}

func (p *parser) typeList() []*syntax.TypeRef {
	list := []*syntax.TypeRef{p.typeRef()}
	for p.accept(",") {
		list = append(list, p.typeRef())
	}
	return list
}

// typeParams keeps each type parameter as written, bounds included.
func (p *parser) typeParams() []string {
	p.expect("<")
	var params []string
	for {
		var sb strings.Builder
		sb.WriteString(p.ident().Text)
		if p.accept("extends") {
			sb.WriteString(" extends ")
			sb.WriteString(p.typeRef().String())
			for p.accept("&") {
				sb.WriteString(" & ")
				sb.WriteString(p.typeRef().String())
			}
		}
		params = append(params, sb.String())
		if !p.accept(",") {
			break
		}
	}
	p.expect(">")
	return params
}

func (p *parser) classBody(td *syntax.TypeDecl) {
	p.expect("{")
	for !p.at("}") {
		if p.cur().Kind == EOF {
			p.failf(p.cur(), "unterminated class body")
		}
		if p.accept(";") {
			continue
		}
		td.Members = append(td.Members, p.member(td)...)
	}
	td.Trailing = p.cur().Comments
	p.expect("}")
}

func (p *parser) member(owner *syntax.TypeDecl) []syntax.Decl {
	start := p.cur()
	doc := start.Comments
	mods := p.modifiers()
	if p.at("class") || p.at("interface") {
		t := p.typeDecl(mods)
		t.Doc = doc
		t.Loc = p.spanFrom(start)
		return []syntax.Decl{t}
	}
	var typeParams []string
	if p.at("<") {
		typeParams = p.typeParams()
	}
	if p.cur().Kind == Ident && p.peek(1).Text == "(" && p.cur().Text == owner.Name {
		m := &syntax.MethodDecl{Modifiers: mods, TypeParams: typeParams, Constructor: true}
		m.Doc = doc
		m.Name = p.next().Text
		p.methodRest(m)
		m.Loc = p.spanFrom(start)
		return []syntax.Decl{m}
	}
	typ := p.typeRef()
	name := p.ident()
	if p.at("(") {
		m := &syntax.MethodDecl{Modifiers: mods, TypeParams: typeParams, Result: typ, Name: name.Text}
		m.Doc = doc
		p.methodRest(m)
		m.Loc = p.spanFrom(start)
		return []syntax.Decl{m}
	}
	var out []syntax.Decl
	for {
		fd := &syntax.FieldDecl{Modifiers: mods, Type: typ.Clone(), Name: name.Text}
		fd.Type.Loc = typ.Loc
		if len(out) == 0 {
			fd.Doc = doc
		}
		for p.accept("[") {
			p.expect("]")
			fd.Type.Dims++
		}
		if p.accept("=") {
			fd.Init = p.varInit()
		}
		fd.Loc = p.spanFrom(start)
		out = append(out, fd)
		if !p.accept(",") {
			break
		}
		name = p.ident()
	}
	p.expect(";")
	last := out[len(out)-1].(*syntax.FieldDecl)
	last.Loc = p.spanFrom(start)
	return out
}

func (p *parser) methodRest(m *syntax.MethodDecl) {
	p.expect("(")
	for !p.at(")") {
		m.Params = append(m.Params, p.param())
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	if p.accept("throws") {
		m.Throws = p.typeList()
	}
	if p.accept(";") {
		return
	}
	m.Body = p.block()
}

func (p *parser) param() *syntax.Param {
	start := p.cur()
	prm := &syntax.Param{Modifiers: p.modifiers()}
	prm.Type = p.typeRef()
	prm.Name = p.ident().Text
	for p.accept("[") {
		p.expect("]")
		prm.Type.Dims++
	}
	prm.Loc = p.spanFrom(start)
	return prm
}

func (p *parser) typeRef() *syntax.TypeRef {
	start := p.cur()
	t := &syntax.TypeRef{}
	if start.Kind == Keyword && primitives[start.Text] {
		t.Name = p.next().Text
	} else {
		t.Name = p.qualifiedName()
		if p.at("<") {
			p.typeArgs(t)
		}
		for p.at(".") && p.peek(1).Kind == Ident && t.Args != nil {
			p.next()
			t.Name += "." + p.next().Text
		}
	}
	for p.at("[") && p.peek(1).Text == "]" {
		p.next()
		p.next()
		t.Dims++
	}
	t.Loc = p.spanFrom(start)
	return t
}

func (p *parser) typeArgs(t *syntax.TypeRef) {
	p.expect("<")
	if p.accept(">") {
		t.Diamond = true
		return
	}
	t.Args = []*syntax.TypeRef{}
	for {
		if p.at("?") {
			start := p.next()
			w := &syntax.TypeRef{Wildcard: "?"}
			switch {
			case p.accept("extends"):
				bound := p.typeRef()
				*w = *bound
				w.Wildcard = "? extends"
			case p.accept("super"):
				bound := p.typeRef()
				*w = *bound
				w.Wildcard = "? super"
			}
			w.Loc = p.spanFrom(start)
			t.Args = append(t.Args, w)
		} else {
			t.Args = append(t.Args, p.typeRef())
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect(">")
}

func (p *parser) block() *syntax.Block {
	start := p.expect("{")
	b := &syntax.Block{}
	for !p.at("}") {
		if p.cur().Kind == EOF {
			p.failf(p.cur(), "unterminated block")
		}
		b.Stmts = append(b.Stmts, p.statement()...)
	}
	b.Trailing = p.cur().Comments
	p.expect("}")
	b.Loc = p.spanFrom(start)
	return b
}

// statement parses one statement. Declarations with several declarators
// expand into one LocalVar each.
func (p *parser) statement() []syntax.Stmt {
	start := p.cur()
	doc := start.Comments
	var s syntax.Stmt
	switch {
	case p.at(";"):
		p.next()
		return nil
	case p.at("{"):
		s = p.block()
	case p.at("if"):
		s = p.ifStmt()
	case p.at("while"):
		p.next()
		w := &syntax.While{}
		p.expect("(")
		w.Cond = p.expr()
		p.expect(")")
		w.Body = p.single()
		w.Loc = p.spanFrom(start)
		s = w
	case p.at("for"):
		s = p.forStmt()
	case p.at("do"):
		s = p.doStmt()
	case p.at("try"):
		s = p.tryStmt()
	case p.at("switch"):
		s = p.switchStmt()
	case p.at("synchronized") && p.peek(1).Text == "(":
		p.next()
		sy := &syntax.Sync{}
		p.expect("(")
		sy.Lock = p.expr()
		p.expect(")")
		sy.Body = p.block()
		sy.Loc = p.spanFrom(start)
		s = sy
	case start.Kind == Ident && p.peek(1).Text == ":":
		l := &syntax.Labeled{Label: p.next().Text}
		p.next()
		l.Body = p.single()
		l.Loc = p.spanFrom(start)
		s = l
	case p.at("return"):
		p.next()
		r := &syntax.Return{}
		if !p.at(";") {
			r.Result = p.expr()
		}
		p.expect(";")
		r.Loc = p.spanFrom(start)
		s = r
	case p.at("throw"):
		p.next()
		th := &syntax.Throw{X: p.expr()}
		p.expect(";")
		th.Loc = p.spanFrom(start)
		s = th
	case p.at("break") || p.at("continue"):
		br := &syntax.Branch{Tok: p.next().Text}
		if p.cur().Kind == Ident {
			br.Label = p.next().Text
		}
		p.expect(";")
		br.Loc = p.spanFrom(start)
		s = br
	default:
		if vars := p.tryLocalVars(); vars != nil {
			p.expect(";")
			for _, v := range vars {
				v.Loc = v.Loc.Cover(p.spanFrom(start))
			}
			vars[0].Doc = doc
			out := make([]syntax.Stmt, len(vars))
			for i, v := range vars {
				out[i] = v
			}
			return out
		}
		es := &syntax.ExprStmt{X: p.expr()}
		p.expect(";")
		es.Loc = p.spanFrom(start)
		s = es
	}
	if c, ok := s.(syntax.Commented); ok && len(doc) > 0 {
		c.SetComments(doc)
	}
	return []syntax.Stmt{s}
}

// single parses the body of a control statement.
func (p *parser) single() syntax.Stmt {
	stmts := p.statement()
	switch len(stmts) {
	case 0:
		return &syntax.Block{}
	case 1:
		return stmts[0]
	default:
		p.failf(p.cur(), "declaration not allowed here")
		return nil
	}
}

func (p *parser) ifStmt() *syntax.If {
	start := p.expect("if")
	n := &syntax.If{}
	p.expect("(")
	n.Cond = p.expr()
	p.expect(")")
	n.Then = p.single()
	if p.accept("else") {
		n.Else = p.single()
	}
	n.Loc = p.spanFrom(start)
	return n
}

func (p *parser) forStmt() syntax.Stmt {
	start := p.expect("for")
	p.expect("(")
	var each *syntax.LocalVar
	if p.try(func() {
		vstart := p.cur()
		v := &syntax.LocalVar{Modifiers: p.modifiers()}
		v.Type = p.typeRef()
		v.Name = p.ident().Text
		p.expect(":")
		v.Loc = p.spanFrom(vstart)
		each = v
	}) {
		fe := &syntax.ForEach{Var: each}
		fe.Iter = p.expr()
		p.expect(")")
		fe.Body = p.single()
		fe.Loc = p.spanFrom(start)
		return fe
	}
	f := &syntax.For{}
	if !p.at(";") {
		if vars := p.tryLocalVars(); vars != nil {
			for _, v := range vars {
				f.Init = append(f.Init, v)
			}
		} else {
			for {
				x := p.cur()
				es := &syntax.ExprStmt{X: p.expr()}
				es.Loc = p.spanFrom(x)
				f.Init = append(f.Init, es)
				if !p.accept(",") {
					break
				}
			}
		}
	}
	p.expect(";")
	if !p.at(";") {
		f.Cond = p.expr()
	}
	p.expect(";")
	for !p.at(")") {
		f.Update = append(f.Update, p.expr())
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	f.Body = p.single()
	f.Loc = p.spanFrom(start)
	return f
}

func (p *parser) doStmt() *syntax.Do {
	start := p.expect("do")
	d := &syntax.Do{Body: p.single()}
	p.expect("while")
	p.expect("(")
	d.Cond = p.expr()
	p.expect(")")
	p.expect(";")
	d.Loc = p.spanFrom(start)
	return d
}

func (p *parser) tryStmt() *syntax.Try {
	start := p.expect("try")
	t := &syntax.Try{}
	if p.accept("(") {
		for !p.at(")") {
			vars := p.tryLocalVars()
			if len(vars) != 1 || vars[0].Init == nil {
				p.failf(p.cur(), "expected resource declaration, found %s", p.cur())
			}
			t.Resources = append(t.Resources, vars[0])
			if !p.accept(";") {
				break
			}
		}
		p.expect(")")
	}
	t.Body = p.block()
	for p.at("catch") {
		cstart := p.next()
		c := &syntax.Catch{}
		p.expect("(")
		vstart := p.cur()
		v := &syntax.LocalVar{Modifiers: p.modifiers(), Type: p.typeRef()}
		for p.accept("|") {
			c.Alts = append(c.Alts, p.typeRef())
		}
		v.Name = p.ident().Text
		v.Loc = p.spanFrom(vstart)
		c.Param = v
		p.expect(")")
		c.Body = p.block()
		c.Loc = p.spanFrom(cstart)
		t.Catches = append(t.Catches, c)
	}
	if p.accept("finally") {
		t.Finally = p.block()
	}
	if len(t.Resources) == 0 && len(t.Catches) == 0 && t.Finally == nil {
		p.failf(p.cur(), "expected catch or finally, found %s", p.cur())
	}
	t.Loc = p.spanFrom(start)
	return t
}

func (p *parser) switchStmt() *syntax.Switch {
	start := p.expect("switch")
	sw := &syntax.Switch{}
	p.expect("(")
	sw.Tag = p.expr()
	p.expect(")")
	p.expect("{")
	for !p.at("}") {
		cstart := p.cur()
		c := &syntax.Case{Body: &syntax.Block{}}
		c.Doc = cstart.Comments
		if !p.accept("default") {
			p.expect("case")
			for {
				c.Labels = append(c.Labels, p.caseLabel())
				if !p.accept(",") {
					break
				}
			}
		} else {
			c.Default = true
		}
		if p.accept("->") {
			sw.Arrow = true
			switch body := p.single().(type) {
			case *syntax.Block:
				c.Body, c.Braced = body, true
			default:
				c.Body.Stmts = []syntax.Stmt{body}
				c.Body.Loc = body.Span()
			}
		} else {
			p.expect(":")
			for !p.at("case") && !p.at("default") && !p.at("}") {
				if p.cur().Kind == EOF {
					p.failf(p.cur(), "unterminated switch")
				}
				c.Body.Stmts = append(c.Body.Stmts, p.statement()...)
			}
		}
		c.Loc = p.spanFrom(cstart)
		sw.Cases = append(sw.Cases, c)
	}
	p.expect("}")
	sw.Loc = p.spanFrom(start)
	return sw
}

// caseLabel parses one switch label. A bare name before "->" is an enum
// constant, not a lambda parameter.
func (p *parser) caseLabel() syntax.Expr {
	if t := p.cur(); t.Kind == Ident {
		switch p.peek(1).Text {
		case "->", ",", ":":
			p.next()
			n := &syntax.Name{Name: t.Text}
			n.Loc = p.spanFrom(t)
			return n
		}
	}
	return p.ternary()
}

// tryLocalVars parses a local variable declaration without the trailing
// semicolon, or returns nil when the tokens start an expression.
func (p *parser) tryLocalVars() []*syntax.LocalVar {
	var mods []string
	var typ *syntax.TypeRef
	start := p.cur()
	ok := p.try(func() {
		mods = p.modifiers()
		typ = p.typeRef()
		if p.cur().Kind != Ident {
			p.failf(p.cur(), "not a declaration")
		}
		switch p.peek(1).Text {
		case "=", ";", ",", "[", ":":
		default:
			p.failf(p.cur(), "not a declaration")
		}
	})
	if !ok {
		return nil
	}
	var vars []*syntax.LocalVar
	for {
		v := &syntax.LocalVar{Modifiers: mods, Type: typ.Clone(), Name: p.ident().Text}
		v.Type.Loc = typ.Loc
		for p.accept("[") {
			p.expect("]")
			v.Type.Dims++
		}
		if p.accept("=") {
			v.Init = p.varInit()
		}
		v.Loc = p.spanFrom(start)
		vars = append(vars, v)
		if !p.accept(",") {
			return vars
		}
	}
}

func (p *parser) varInit() syntax.Expr {
	if p.at("{") {
		return p.arrayInit(nil)
	}
	return p.expr()
}

func (p *parser) arrayInit(typ *syntax.TypeRef) *syntax.NewArray {
	start := p.expect("{")
	na := &syntax.NewArray{Type: typ, HasInit: true}
	for !p.at("}") {
		na.Elems = append(na.Elems, p.varInit())
		if !p.accept(",") {
			break
		}
	}
	p.expect("}")
	na.Loc = p.spanFrom(start)
	return na
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"&=": true, "|=": true, "^=": true, "<<=": true,
}

func (p *parser) expr() syntax.Expr {
	start := p.cur()
	lhs := p.ternary()
	op, n := p.assignOp()
	if op == "" {
		return lhs
	}
	p.pos += n
	a := &syntax.Assign{Op: op, LHS: lhs, RHS: p.expr()}
	a.Loc = p.spanFrom(start)
	return a
}

// assignOp recognizes assignment operators, merging the split '>' tokens
// of >>= and >>>=.
func (p *parser) assignOp() (string, int) {
	t := p.cur()
	if t.Kind == Op && assignOps[t.Text] {
		return t.Text, 1
	}
	if t.Text == ">" && p.peek(1).Text == ">" && p.adjacent(0) {
		if p.peek(2).Text == "=" && p.adjacent(1) {
			return ">>=", 3
		}
		if p.peek(2).Text == ">" && p.adjacent(1) && p.peek(3).Text == "=" && p.adjacent(2) {
			return ">>>=", 4
		}
	}
	return "", 0
}

func (p *parser) ternary() syntax.Expr {
	start := p.cur()
	c := p.binary(1)
	if !p.accept("?") {
		return c
	}
	n := &syntax.Cond{Cond: c}
	n.Then = p.expr()
	p.expect(":")
	if p.isLambdaStart() {
		n.Else = p.lambda()
	} else {
		n.Else = p.ternary()
	}
	n.Loc = p.spanFrom(start)
	return n
}

var precedence = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7, "instanceof": 7,
	"<<": 8, ">>": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

// binaryOp returns the operator at the cursor and how many tokens it spans.
func (p *parser) binaryOp() (string, int) {
	t := p.cur()
	if t.Kind == StringLit || t.Kind == CharLit {
		return "", 0
	}
	if t.Text == ">" {
		if p.peek(1).Text == ">" && p.adjacent(0) {
			if p.peek(2).Text == ">" && p.adjacent(1) {
				if p.peek(3).Text == "=" && p.adjacent(2) {
					return "", 0
				}
				return ">>>", 3
			}
			if p.peek(2).Text == "=" && p.adjacent(1) {
				return "", 0
			}
			return ">>", 2
		}
		if p.peek(1).Text == "=" && p.adjacent(0) {
			return ">=", 2
		}
		return ">", 1
	}
	if _, ok := precedence[t.Text]; ok {
		return t.Text, 1
	}
	return "", 0
}

func (p *parser) binary(minPrec int) syntax.Expr {
	start := p.cur()
	x := p.unary()
	for {
		op, n := p.binaryOp()
		prec, ok := precedence[op]
		if op == "" || !ok || prec < minPrec {
			return x
		}
		p.pos += n
		if op == "instanceof" {
			io := &syntax.InstanceOf{X: x, Type: p.typeRef()}
			io.Loc = p.spanFrom(start)
			x = io
			continue
		}
		y := p.binary(prec + 1)
		b := &syntax.Binary{Op: op, X: x, Y: y}
		b.Loc = p.spanFrom(start)
		x = b
	}
}

func (p *parser) unary() syntax.Expr {
	start := p.cur()
	if start.Kind == Op {
		switch start.Text {
		case "+", "-", "!", "~", "++", "--":
			p.next()
			u := &syntax.Unary{Op: start.Text, X: p.unary()}
			u.Loc = p.spanFrom(start)
			return u
		case "(":
			if c := p.tryCast(); c != nil {
				return c
			}
		}
	}
	return p.postfix(p.primary())
}

// tryCast parses "(Type) operand" when the parenthesized tokens form a
// type and the following token can only start an operand.
func (p *parser) tryCast() syntax.Expr {
	start := p.cur()
	var typ *syntax.TypeRef
	ok := p.try(func() {
		p.expect("(")
		typ = p.typeRef()
		p.expect(")")
		nt := p.cur()
		if primitives[typ.Name] && typ.Dims == 0 {
			if nt.Kind == Op && nt.Text != "(" && nt.Text != "-" && nt.Text != "+" && nt.Text != "!" && nt.Text != "~" {
				p.failf(nt, "not a cast")
			}
			return
		}
		switch {
		case nt.Kind == Ident, nt.Kind == IntLit, nt.Kind == FloatLit,
			nt.Kind == StringLit, nt.Kind == CharLit:
		case nt.Kind == Keyword && (nt.Text == "this" || nt.Text == "new" || nt.Text == "super" ||
			nt.Text == "null" || nt.Text == "true" || nt.Text == "false"):
		case nt.Kind == Op && (nt.Text == "(" || nt.Text == "!" || nt.Text == "~"):
		default:
			p.failf(nt, "not a cast")
		}
	})
	if !ok {
		return nil
	}
	c := &syntax.Cast{Type: typ}
	if p.isLambdaStart() {
		c.X = p.lambda()
	} else {
		c.X = p.unary()
	}
	c.Loc = p.spanFrom(start)
	return c
}

// isLambdaStart looks ahead for "x ->" or "( ... ) ->".
func (p *parser) isLambdaStart() bool {
	if p.cur().Kind == Ident && p.peek(1).Text == "->" {
		return true
	}
	if !p.at("(") {
		return false
	}
	depth := 0
	for i := 0; p.pos+i < len(p.toks); i++ {
		switch p.peek(i).Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return p.peek(i+1).Text == "->"
			}
		}
		if p.peek(i).Kind == EOF {
			return false
		}
	}
	return false
}

func (p *parser) lambda() *syntax.Lambda {
	start := p.cur()
	l := &syntax.Lambda{}
	if p.cur().Kind == Ident {
		t := p.next()
		prm := &syntax.Param{Name: t.Text}
		prm.Loc = p.spanFrom(t)
		l.Params = []*syntax.Param{prm}
	} else {
		p.expect("(")
		l.Parens = true
		for !p.at(")") {
			pstart := p.cur()
			if p.cur().Kind == Ident && (p.peek(1).Text == "," || p.peek(1).Text == ")") {
				prm := &syntax.Param{Name: p.next().Text}
				prm.Loc = p.spanFrom(pstart)
				l.Params = append(l.Params, prm)
			} else {
				l.Params = append(l.Params, p.param())
			}
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
	}
	p.expect("->")
	if p.at("{") {
		l.Body = p.block()
	} else {
		l.Body = p.expr()
	}
	l.Loc = p.spanFrom(start)
	return l
}

func (p *parser) args() []syntax.Expr {
	p.expect("(")
	var out []syntax.Expr
	for !p.at(")") {
		if p.isLambdaStart() {
			out = append(out, p.lambda())
		} else {
			out = append(out, p.expr())
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	return out
}

func (p *parser) primary() syntax.Expr {
	start := p.cur()
	switch {
	case start.Kind == IntLit:
		return p.lit(syntax.LitInt)
	case start.Kind == FloatLit:
		return p.lit(syntax.LitFloat)
	case start.Kind == StringLit:
		return p.lit(syntax.LitString)
	case start.Kind == CharLit:
		return p.lit(syntax.LitChar)
	case p.at("true") || p.at("false"):
		return p.lit(syntax.LitBool)
	case p.at("null"):
		return p.lit(syntax.LitNull)
	case p.at("this"):
		p.next()
		if p.at("(") {
			c := &syntax.Call{Name: "this", Args: p.args()}
			c.Loc = p.spanFrom(start)
			return c
		}
		th := &syntax.This{}
		th.Loc = p.spanFrom(start)
		return th
	case p.at("super"):
		p.next()
		if p.at("(") {
			c := &syntax.Call{Name: "super", Args: p.args()}
			c.Loc = p.spanFrom(start)
			return c
		}
		sp := &syntax.Super{}
		sp.Loc = p.spanFrom(start)
		if !p.at(".") {
			p.failf(p.cur(), "expected '.' after super")
		}
		return sp
	case p.at("new"):
		return p.creator()
	case start.Kind == Ident:
		if p.peek(1).Text == "->" {
			return p.lambda()
		}
		p.next()
		if p.at("(") {
			c := &syntax.Call{Name: start.Text, Args: p.args()}
			c.Loc = p.spanFrom(start)
			return c
		}
		n := &syntax.Name{Name: start.Text}
		n.Loc = p.spanFrom(start)
		return n
	case start.Kind == Keyword && primitives[start.Text]:
		// int.class and friends
		t := p.typeRef()
		n := &syntax.Name{Name: t.String()}
		n.Loc = p.spanFrom(start)
		return n
	case p.at("("):
		if p.isLambdaStart() {
			return p.lambda()
		}
		p.next()
		x := p.expr()
		p.expect(")")
		par := &syntax.Paren{X: x}
		par.Loc = p.spanFrom(start)
		return par
	}
	p.failf(start, "unexpected %s", start)
	return nil
}

func (p *parser) lit(kind syntax.LitKind) *syntax.Lit {
	t := p.next()
	l := &syntax.Lit{Kind: kind, Value: t.Text}
	l.Loc = p.spanFrom(t)
	return l
}

func (p *parser) creator() syntax.Expr {
	start := p.expect("new")
	tstart := p.cur()
	t := &syntax.TypeRef{}
	if tstart.Kind == Keyword && primitives[tstart.Text] {
		t.Name = p.next().Text
	} else {
		t.Name = p.qualifiedName()
		if p.at("<") {
			p.typeArgs(t)
		}
	}
	t.Loc = p.spanFrom(tstart)
	if p.at("[") {
		na := &syntax.NewArray{Type: t}
		for p.accept("[") {
			if p.accept("]") {
				t.Dims++
				continue
			}
			na.Len = append(na.Len, p.expr())
			p.expect("]")
			t.Dims++
		}
		if p.at("{") {
			init := p.arrayInit(t)
			na.Elems = init.Elems
			na.HasInit = true
		}
		na.Loc = p.spanFrom(start)
		return na
	}
	n := &syntax.New{Type: t, Args: p.args()}
	if p.at("{") {
		bstart := p.cur()
		body := &syntax.TypeDecl{Anonymous: true, Name: t.Simple()}
		p.classBody(body)
		body.Loc = p.spanFrom(bstart)
		n.Body = body
	}
	n.Loc = p.spanFrom(start)
	return n
}

func (p *parser) postfix(x syntax.Expr) syntax.Expr {
	start := x.Span()
	for {
		switch {
		case p.at("."):
			p.next()
			switch {
			case p.at("this"):
				p.next()
				th := &syntax.This{Qualifier: exprText(x)}
				th.Loc = p.spanTo(start)
				x = th
			case p.at("class"):
				p.next()
				s := &syntax.Select{X: x, Sel: "class"}
				s.Loc = p.spanTo(start)
				x = s
			default:
				name := p.ident()
				if p.at("(") {
					c := &syntax.Call{Recv: x, Name: name.Text, Args: p.args()}
					c.Loc = p.spanTo(start)
					x = c
				} else {
					s := &syntax.Select{X: x, Sel: name.Text}
					s.Loc = p.spanTo(start)
					x = s
				}
			}
		case p.at("["):
			p.next()
			ix := &syntax.Index{X: x, Index: p.expr()}
			p.expect("]")
			ix.Loc = p.spanTo(start)
			x = ix
		case p.at("++") || p.at("--"):
			u := &syntax.Unary{Op: p.next().Text, X: x, Postfix: true}
			u.Loc = p.spanTo(start)
			x = u
		default:
			return x
		}
	}
}

func (p *parser) spanTo(start syntax.Span) syntax.Span {
	end := p.last()
	return syntax.Span{File: p.file, Start: start.Start, End: syntax.MakePos(end.EndLine, end.EndCol)}
}

// exprText renders the qualifier of Outer.this.
func exprText(x syntax.Expr) string {
	switch x := x.(type) {
	case *syntax.Name:
		return x.Name
	case *syntax.Select:
		return exprText(x.X) + "." + x.Sel
	}
	return ""
}
