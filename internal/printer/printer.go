// Package printer renders annotated trees back to source text in one
// canonical layout. Parsing printed output and printing it again yields the
// same bytes.
package printer

import (
	"strings"

	"refweaver/internal/syntax"
)

const indentUnit = "    "

type printer struct {
	sb     strings.Builder
	indent int
}

// Print renders a whole file.
func Print(f *syntax.File) []byte {
	p := &printer{}
	p.file(f)
	return []byte(p.sb.String())
}

// Node renders a single declaration, statement or expression. It is used
// for diagnostics and tests.
func Node(n syntax.Node) string {
	p := &printer{}
	switch n := n.(type) {
	case *syntax.File:
		p.file(n)
	case *syntax.TypeDecl:
		p.typeDecl(n)
	case *syntax.FieldDecl, *syntax.MethodDecl:
		p.member(n.(syntax.Decl))
	case syntax.Stmt:
		p.stmt(n)
	case syntax.Expr:
		p.expr(n)
	case *syntax.TypeRef:
		p.write(n.String())
	case *syntax.Param:
		p.param(n)
	}
	return p.sb.String()
}

func (p *printer) write(s string) { p.sb.WriteString(s) }

func (p *printer) newline() {
	p.sb.WriteByte('\n')
}

func (p *printer) pad() {
	for range p.indent {
		p.sb.WriteString(indentUnit)
	}
}

func (p *printer) comments(doc []string) {
	for _, c := range doc {
		p.pad()
		p.write(c)
		p.newline()
	}
}

func (p *printer) file(f *syntax.File) {
	p.comments(f.Doc)
	if f.Package != "" {
		p.write("package " + f.Package + ";")
		p.newline()
	}
	if len(f.Imports) > 0 {
		if f.Package != "" {
			p.newline()
		}
		for _, imp := range f.Imports {
			p.comments(imp.Doc)
			p.write("import ")
			if imp.Static {
				p.write("static ")
			}
			p.write(imp.Path)
			if imp.Wildcard {
				p.write(".*")
			}
			p.write(";")
			p.newline()
		}
	}
	for i, t := range f.Types {
		if i > 0 || f.Package != "" || len(f.Imports) > 0 {
			p.newline()
		}
		p.typeDecl(t)
		p.newline()
	}
	if len(f.Trailing) > 0 {
		p.newline()
		p.comments(f.Trailing)
	}
}

// modifiers prints annotations on their own lines when own is set and
// keywords inline.
func (p *printer) modifiers(mods []string, own bool) {
	for _, m := range mods {
		if own && strings.HasPrefix(m, "@") {
			p.write(m)
			p.newline()
			p.pad()
			continue
		}
		p.write(m)
		p.write(" ")
	}
}

func typeList(ts []*syntax.TypeRef) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func (p *printer) typeDecl(t *syntax.TypeDecl) {
	p.comments(t.Doc)
	p.pad()
	p.modifiers(t.Modifiers, true)
	if t.Interface {
		p.write("interface ")
	} else {
		p.write("class ")
	}
	p.write(t.Name)
	if len(t.TypeParams) > 0 {
		p.write("<" + strings.Join(t.TypeParams, ", ") + ">")
	}
	if len(t.Extends) > 0 {
		p.write(" extends " + typeList(t.Extends))
	}
	if len(t.Implements) > 0 {
		p.write(" implements " + typeList(t.Implements))
	}
	p.write(" ")
	p.classBody(t)
}

func (p *printer) classBody(t *syntax.TypeDecl) {
	if len(t.Members) == 0 && len(t.Trailing) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	p.newline()
	p.indent++
	var prev syntax.Decl
	for _, m := range t.Members {
		if prev != nil {
			_, pf := prev.(*syntax.FieldDecl)
			_, mf := m.(*syntax.FieldDecl)
			if !pf || !mf {
				p.newline()
			}
		}
		switch m := m.(type) {
		case *syntax.TypeDecl:
			p.typeDecl(m)
		default:
			p.member(m)
		}
		p.newline()
		prev = m
	}
	p.comments(t.Trailing)
	p.indent--
	p.pad()
	p.write("}")
}

func (p *printer) member(d syntax.Decl) {
	switch d := d.(type) {
	case *syntax.FieldDecl:
		p.comments(d.Doc)
		p.pad()
		p.modifiers(d.Modifiers, true)
		p.write(d.Type.String() + " " + d.Name)
		if d.Init != nil {
			p.write(" = ")
			p.expr(d.Init)
		}
		p.write(";")
	case *syntax.MethodDecl:
		p.comments(d.Doc)
		p.pad()
		p.modifiers(d.Modifiers, true)
		if len(d.TypeParams) > 0 {
			p.write("<" + strings.Join(d.TypeParams, ", ") + "> ")
		}
		if !d.Constructor {
			p.write(d.Result.String() + " ")
		}
		p.write(d.Name + "(")
		for i, prm := range d.Params {
			if i > 0 {
				p.write(", ")
			}
			p.param(prm)
		}
		p.write(")")
		if len(d.Throws) > 0 {
			p.write(" throws " + typeList(d.Throws))
		}
		if d.Body == nil {
			p.write(";")
			return
		}
		p.write(" ")
		p.block(d.Body)
	case *syntax.TypeDecl:
		p.typeDecl(d)
	}
}

func (p *printer) param(prm *syntax.Param) {
	p.modifiers(prm.Modifiers, false)
	if prm.Type != nil {
		p.write(prm.Type.String() + " ")
	}
	p.write(prm.Name)
}

func (p *printer) block(b *syntax.Block) {
	if len(b.Stmts) == 0 && len(b.Trailing) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	p.newline()
	p.indent++
	p.stmts(b.Stmts)
	p.comments(b.Trailing)
	p.indent--
	p.pad()
	p.write("}")
}

func (p *printer) stmts(list []syntax.Stmt) {
	for _, s := range list {
		if c, ok := s.(syntax.Commented); ok {
			p.comments(c.Comments())
		}
		p.pad()
		p.stmt(s)
		p.newline()
	}
}

// body prints the statement controlled by if, while or for on the same
// line as its header.
func (p *printer) body(s syntax.Stmt) {
	p.write(" ")
	p.stmt(s)
}

// danglingIf reports whether s ends in an if without else, which would
// capture a following else when printed unbraced.
func danglingIf(s syntax.Stmt) bool {
	switch s := s.(type) {
	case *syntax.If:
		if s.Else == nil {
			return true
		}
		return danglingIf(s.Else)
	case *syntax.While:
		return danglingIf(s.Body)
	case *syntax.For:
		return danglingIf(s.Body)
	case *syntax.ForEach:
		return danglingIf(s.Body)
	case *syntax.Labeled:
		return danglingIf(s.Body)
	}
	return false
}

func (p *printer) stmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.Block:
		p.block(s)
	case *syntax.LocalVar:
		p.localVar(s)
		p.write(";")
	case *syntax.ExprStmt:
		p.expr(s.X)
		p.write(";")
	case *syntax.If:
		p.write("if (")
		p.expr(s.Cond)
		p.write(")")
		then := s.Then
		if s.Else != nil && danglingIf(then) {
			then = &syntax.Block{Stmts: []syntax.Stmt{then}}
		}
		p.body(then)
		if s.Else != nil {
			if _, ok := then.(*syntax.Block); ok {
				p.write(" else")
			} else {
				p.newline()
				p.pad()
				p.write("else")
			}
			p.body(s.Else)
		}
	case *syntax.While:
		p.write("while (")
		p.expr(s.Cond)
		p.write(")")
		p.body(s.Body)
	case *syntax.For:
		p.write("for (")
		for i, init := range s.Init {
			if i > 0 {
				p.write(", ")
			}
			switch init := init.(type) {
			case *syntax.LocalVar:
				if i > 0 {
					p.write(init.Name)
					if init.Init != nil {
						p.write(" = ")
						p.expr(init.Init)
					}
					continue
				}
				p.localVar(init)
			case *syntax.ExprStmt:
				p.expr(init.X)
			}
		}
		p.write(";")
		if s.Cond != nil {
			p.write(" ")
			p.expr(s.Cond)
		}
		p.write(";")
		for i, u := range s.Update {
			if i == 0 {
				p.write(" ")
			} else {
				p.write(", ")
			}
			p.expr(u)
		}
		p.write(")")
		p.body(s.Body)
	case *syntax.ForEach:
		p.write("for (")
		p.modifiers(s.Var.Modifiers, false)
		p.write(s.Var.Type.String() + " " + s.Var.Name + " : ")
		p.expr(s.Iter)
		p.write(")")
		p.body(s.Body)
	case *syntax.Return:
		p.write("return")
		if s.Result != nil {
			p.write(" ")
			p.expr(s.Result)
		}
		p.write(";")
	case *syntax.Throw:
		p.write("throw ")
		p.expr(s.X)
		p.write(";")
	case *syntax.Branch:
		p.write(s.Tok)
		if s.Label != "" {
			p.write(" " + s.Label)
		}
		p.write(";")
	case *syntax.Do:
		p.write("do")
		p.body(s.Body)
		p.write(" while (")
		p.expr(s.Cond)
		p.write(");")
	case *syntax.Try:
		p.try(s)
	case *syntax.Switch:
		p.write("switch (")
		p.expr(s.Tag)
		p.write(") {")
		p.newline()
		p.indent++
		for _, c := range s.Cases {
			p.comments(c.Doc)
			p.pad()
			p.switchCase(c, s.Arrow)
		}
		p.indent--
		p.pad()
		p.write("}")
	case *syntax.Sync:
		p.write("synchronized (")
		p.expr(s.Lock)
		p.write(") ")
		p.block(s.Body)
	case *syntax.Labeled:
		p.write(s.Label + ":")
		p.body(s.Body)
	}
}

func (p *printer) try(s *syntax.Try) {
	p.write("try ")
	if len(s.Resources) > 0 {
		p.write("(")
		for i, r := range s.Resources {
			if i > 0 {
				p.write("; ")
			}
			p.localVar(r)
		}
		p.write(") ")
	}
	p.block(s.Body)
	for _, c := range s.Catches {
		p.write(" catch (")
		p.modifiers(c.Param.Modifiers, false)
		p.write(c.Param.Type.String())
		for _, alt := range c.Alts {
			p.write(" | " + alt.String())
		}
		p.write(" " + c.Param.Name + ") ")
		p.block(c.Body)
	}
	if s.Finally != nil {
		p.write(" finally ")
		p.block(s.Finally)
	}
}

// switchCase prints one label and its body, ending the line.
func (p *printer) switchCase(c *syntax.Case, arrow bool) {
	if c.Default {
		p.write("default")
	} else {
		p.write("case ")
		for i, l := range c.Labels {
			if i > 0 {
				p.write(", ")
			}
			p.expr(l)
		}
	}
	if !arrow {
		p.write(":")
		p.newline()
		p.indent++
		p.stmts(c.Body.Stmts)
		p.indent--
		return
	}
	p.write(" ->")
	if !c.Braced && len(c.Body.Stmts) == 1 && arrowTarget(c.Body.Stmts[0]) {
		p.body(c.Body.Stmts[0])
	} else {
		p.write(" ")
		p.block(c.Body)
	}
	p.newline()
}

// arrowTarget reports whether s may follow "->" without braces.
func arrowTarget(s syntax.Stmt) bool {
	switch s.(type) {
	case *syntax.ExprStmt, *syntax.Throw:
		return true
	}
	return false
}

func (p *printer) localVar(v *syntax.LocalVar) {
	p.modifiers(v.Modifiers, false)
	p.write(v.Type.String() + " " + v.Name)
	if v.Init != nil {
		p.write(" = ")
		p.expr(v.Init)
	}
}

// needsParens reports whether x must be parenthesized when used as the
// receiver of a member access.
func needsParens(x syntax.Expr) bool {
	switch x := x.(type) {
	case *syntax.Binary, *syntax.Cond, *syntax.Assign, *syntax.Lambda,
		*syntax.Cast, *syntax.InstanceOf:
		return true
	case *syntax.Unary:
		return !x.Postfix
	}
	return false
}

func (p *printer) recv(x syntax.Expr) {
	if needsParens(x) {
		p.write("(")
		p.expr(x)
		p.write(")")
		return
	}
	p.expr(x)
}

func (p *printer) args(args []syntax.Expr) {
	p.write("(")
	for i, a := range args {
		if i > 0 {
			p.write(", ")
		}
		p.expr(a)
	}
	p.write(")")
}

func (p *printer) expr(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.Name:
		p.write(e.Name)
	case *syntax.Select:
		p.recv(e.X)
		p.write("." + e.Sel)
	case *syntax.This:
		if e.Qualifier != "" {
			p.write(e.Qualifier + ".")
		}
		p.write("this")
	case *syntax.Super:
		p.write("super")
	case *syntax.Call:
		if e.Recv != nil {
			p.recv(e.Recv)
			p.write(".")
		}
		p.write(e.Name)
		p.args(e.Args)
	case *syntax.New:
		p.write("new " + e.Type.String())
		p.args(e.Args)
		if e.Body != nil {
			p.write(" ")
			p.classBody(e.Body)
		}
	case *syntax.NewArray:
		p.newArray(e)
	case *syntax.Assign:
		p.expr(e.LHS)
		p.write(" " + e.Op + " ")
		p.expr(e.RHS)
	case *syntax.Binary:
		p.expr(e.X)
		p.write(" " + e.Op + " ")
		p.expr(e.Y)
	case *syntax.Unary:
		if e.Postfix {
			p.expr(e.X)
			p.write(e.Op)
			return
		}
		p.write(e.Op)
		p.expr(e.X)
	case *syntax.Lit:
		p.write(e.Value)
	case *syntax.Paren:
		p.write("(")
		p.expr(e.X)
		p.write(")")
	case *syntax.Cast:
		p.write("(" + e.Type.String() + ") ")
		p.expr(e.X)
	case *syntax.Cond:
		p.expr(e.Cond)
		p.write(" ? ")
		p.expr(e.Then)
		p.write(" : ")
		p.expr(e.Else)
	case *syntax.Index:
		p.recv(e.X)
		p.write("[")
		p.expr(e.Index)
		p.write("]")
	case *syntax.InstanceOf:
		p.expr(e.X)
		p.write(" instanceof " + e.Type.String())
	case *syntax.Lambda:
		p.lambda(e)
	}
}

func (p *printer) newArray(e *syntax.NewArray) {
	if e.Type != nil {
		elem := e.Type.Clone()
		elem.Dims = 0
		p.write("new " + elem.String())
		for _, l := range e.Len {
			p.write("[")
			p.expr(l)
			p.write("]")
		}
		for range e.Type.Dims - len(e.Len) {
			p.write("[]")
		}
		if !e.HasInit {
			return
		}
		p.write(" ")
	}
	p.write("{")
	for i, x := range e.Elems {
		if i > 0 {
			p.write(", ")
		}
		p.expr(x)
	}
	p.write("}")
}

func (p *printer) lambda(l *syntax.Lambda) {
	if len(l.Params) == 1 && !l.Parens && l.Params[0].Type == nil {
		p.write(l.Params[0].Name)
	} else {
		p.write("(")
		for i, prm := range l.Params {
			if i > 0 {
				p.write(", ")
			}
			p.param(prm)
		}
		p.write(")")
	}
	p.write(" -> ")
	switch body := l.Body.(type) {
	case *syntax.Block:
		p.block(body)
	case syntax.Expr:
		p.expr(body)
	}
}
