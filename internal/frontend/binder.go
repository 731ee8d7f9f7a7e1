package frontend

import (
	"fmt"
	"log/slog"
	"strings"

	"refweaver/internal/syntax"
)

// Binder resolves identifiers, types and members across a whole program
// and attaches symbols to the tree.
type Binder struct {
	prog     *syntax.Program
	log      *slog.Logger
	types    map[string]*syntax.Symbol
	bySimple map[string][]*syntax.Symbol
	pkgs     map[string]*syntax.Symbol
	fileOf   map[*syntax.TypeDecl]*syntax.File
	chains   map[*syntax.TypeDecl][]*syntax.TypeDecl
	counters map[string]int
	// Unresolved counts references the binder could not resolve.
	Unresolved int
}

// Bind resolves every file of prog in place.
func Bind(prog *syntax.Program, log *slog.Logger) *Binder {
	if log == nil {
		log = slog.Default()
	}
	b := &Binder{
		prog:     prog,
		log:      log,
		types:    make(map[string]*syntax.Symbol),
		bySimple: make(map[string][]*syntax.Symbol),
		pkgs:     make(map[string]*syntax.Symbol),
		fileOf:   make(map[*syntax.TypeDecl]*syntax.File),
		chains:   make(map[*syntax.TypeDecl][]*syntax.TypeDecl),
		counters: make(map[string]int),
	}
	prog.Packages = b.pkgs
	for _, f := range prog.Files {
		b.declarePackage(f)
		for _, t := range f.Types {
			b.declareType(f, t, f.Package)
		}
	}
	for _, f := range prog.Files {
		for _, t := range f.Types {
			b.resolveHeaders(f, t, nil)
		}
	}
	for _, f := range prog.Files {
		for _, t := range f.Types {
			b.declareMembers(t)
		}
	}
	for _, f := range prog.Files {
		for _, t := range f.Types {
			b.bindType(f, []*syntax.TypeDecl{t})
		}
	}
	return b
}

func (b *Binder) declarePackage(f *syntax.File) {
	if f.Package == "" {
		return
	}
	parts := strings.Split(f.Package, ".")
	for i := range parts {
		path := strings.Join(parts[:i+1], ".")
		if _, ok := b.pkgs[path]; !ok {
			b.pkgs[path] = &syntax.Symbol{Kind: syntax.KindPackage, Name: parts[i], Key: path}
		}
	}
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func (b *Binder) declareType(f *syntax.File, t *syntax.TypeDecl, prefix string) {
	sym := &syntax.Symbol{
		Kind:     syntax.KindType,
		Name:     t.Name,
		Key:      qualify(prefix, t.Name),
		Decl:     t,
		TypeDecl: t,
		Library:  f.Library,
		Static:   hasModifier(t.Modifiers, "static"),
	}
	t.Sym = sym
	b.fileOf[t] = f
	b.types[sym.Key] = sym
	b.bySimple[t.Name] = append(b.bySimple[t.Name], sym)
	for _, m := range t.Members {
		if nt, ok := m.(*syntax.TypeDecl); ok {
			b.declareType(f, nt, sym.Key)
		}
	}
}

func (b *Binder) resolveHeaders(f *syntax.File, t *syntax.TypeDecl, outer []*syntax.TypeDecl) {
	chain := append(append([]*syntax.TypeDecl(nil), outer...), t)
	for _, r := range t.Extends {
		b.resolveTypeRef(f, chain, r)
	}
	for _, r := range t.Implements {
		b.resolveTypeRef(f, chain, r)
	}
	for _, m := range t.Members {
		if nt, ok := m.(*syntax.TypeDecl); ok {
			b.resolveHeaders(f, nt, chain)
		}
	}
}

// declareMembers creates symbols for fields, methods and constructors so
// bodies can refer to members declared later in the file or elsewhere.
func (b *Binder) declareMembers(t *syntax.TypeDecl) {
	f := b.fileOf[t]
	chain := b.chainOf(t)
	for _, m := range t.Members {
		switch m := m.(type) {
		case *syntax.FieldDecl:
			b.resolveTypeRef(f, chain, m.Type)
			m.Sym = &syntax.Symbol{
				Kind:    syntax.KindField,
				Name:    m.Name,
				Key:     t.Sym.Key + "::" + m.Name,
				Owner:   t.Sym,
				Type:    m.Type,
				Decl:    m,
				Library: t.Sym.Library,
				Static:  hasModifier(m.Modifiers, "static") || t.Interface,
			}
		case *syntax.MethodDecl:
			b.resolveTypeRef(f, chain, m.Result)
			params := make([]string, len(m.Params))
			for i, p := range m.Params {
				b.resolveTypeRef(f, chain, p.Type)
				params[i] = p.Type.String()
			}
			name := m.Name
			if m.Constructor {
				name = "<init>"
			}
			m.Sym = &syntax.Symbol{
				Kind:    syntax.KindMethod,
				Name:    name,
				Key:     fmt.Sprintf("%s::%s(%s)", t.Sym.Key, name, strings.Join(params, ",")),
				Owner:   t.Sym,
				Type:    m.Result,
				Decl:    m,
				Library: t.Sym.Library,
				Static:  hasModifier(m.Modifiers, "static"),
				Arity:   len(m.Params),
			}
		case *syntax.TypeDecl:
			b.declareMembers(m)
		}
	}
}

// chainOf returns the enclosing named types of t, outermost first.
func (b *Binder) chainOf(t *syntax.TypeDecl) []*syntax.TypeDecl {
	if chain, ok := b.chains[t]; ok {
		return chain
	}
	var chain []*syntax.TypeDecl
	for owner := t; owner != nil; {
		chain = append([]*syntax.TypeDecl{owner}, chain...)
		if owner.Sym == nil || owner.Sym.Owner == nil || owner.Sym.Owner.TypeDecl == nil {
			break
		}
		owner = owner.Sym.Owner.TypeDecl
	}
	if len(chain) == 1 {
		if outer := b.outerOf(t); outer != nil {
			return append(b.chainOf(outer), t)
		}
	}
	return chain
}

func (b *Binder) outerOf(t *syntax.TypeDecl) *syntax.TypeDecl {
	if t.Sym == nil {
		return nil
	}
	i := strings.LastIndexByte(t.Sym.Key, '.')
	if i < 0 {
		return nil
	}
	if o, ok := b.types[t.Sym.Key[:i]]; ok {
		return o.TypeDecl
	}
	return nil
}

// resolveTypeRef attaches the type symbol to r and its arguments. Names
// that resolve to nothing in the program are library or JDK types and
// stay unresolved.
func (b *Binder) resolveTypeRef(f *syntax.File, chain []*syntax.TypeDecl, r *syntax.TypeRef) {
	if r == nil {
		return
	}
	for _, a := range r.Args {
		b.resolveTypeRef(f, chain, a)
	}
	if r.Name == "" || primitives[r.Name] {
		return
	}
	r.Sym = b.lookupType(f, chain, r.Name)
}

func (b *Binder) lookupType(f *syntax.File, chain []*syntax.TypeDecl, name string) *syntax.Symbol {
	if sym, ok := b.types[name]; ok && strings.Contains(name, ".") {
		return sym
	}
	head, rest, qualified := strings.Cut(name, ".")
	sym := b.lookupSimpleType(f, chain, head)
	if sym == nil {
		return nil
	}
	if !qualified {
		return sym
	}
	if nested, ok := b.types[sym.Key+"."+rest]; ok {
		return nested
	}
	return nil
}

func (b *Binder) lookupSimpleType(f *syntax.File, chain []*syntax.TypeDecl, name string) *syntax.Symbol {
	for i := len(chain) - 1; i >= 0; i-- {
		t := chain[i]
		if t.Sym == nil {
			continue
		}
		if !t.Anonymous && t.Name == name {
			return t.Sym
		}
		if sym := b.memberType(t, name, map[*syntax.TypeDecl]bool{}); sym != nil {
			return sym
		}
	}
	if f != nil {
		for _, imp := range f.Imports {
			if imp.Static {
				continue
			}
			if !imp.Wildcard && (imp.Path == name || strings.HasSuffix(imp.Path, "."+name)) {
				if sym, ok := b.types[imp.Path]; ok {
					return sym
				}
				return nil
			}
		}
		if sym, ok := b.types[qualify(f.Package, name)]; ok {
			return sym
		}
		for _, imp := range f.Imports {
			if imp.Wildcard && !imp.Static {
				if sym, ok := b.types[imp.Path+"."+name]; ok {
					return sym
				}
			}
		}
	}
	if cands := b.bySimple[name]; len(cands) == 1 {
		return cands[0]
	}
	return nil
}

// memberType finds a nested type declared in t or inherited by it.
func (b *Binder) memberType(t *syntax.TypeDecl, name string, seen map[*syntax.TypeDecl]bool) *syntax.Symbol {
	if seen[t] {
		return nil
	}
	seen[t] = true
	for _, m := range t.Members {
		if nt, ok := m.(*syntax.TypeDecl); ok && nt.Name == name {
			return nt.Sym
		}
	}
	for _, st := range supertypes(t) {
		if sym := b.memberType(st, name, seen); sym != nil {
			return sym
		}
	}
	return nil
}

// supertypes returns the program declarations t extends or implements.
func supertypes(t *syntax.TypeDecl) []*syntax.TypeDecl {
	var out []*syntax.TypeDecl
	for _, refs := range [][]*syntax.TypeRef{t.Extends, t.Implements} {
		for _, r := range refs {
			if r.Sym != nil && r.Sym.TypeDecl != nil {
				out = append(out, r.Sym.TypeDecl)
			}
		}
	}
	return out
}

func (b *Binder) findField(t *syntax.TypeDecl, name string, seen map[*syntax.TypeDecl]bool) *syntax.Symbol {
	if t == nil || seen[t] {
		return nil
	}
	seen[t] = true
	for _, m := range t.Members {
		if fd, ok := m.(*syntax.FieldDecl); ok && fd.Name == name {
			return fd.Sym
		}
	}
	for _, st := range supertypes(t) {
		if sym := b.findField(st, name, seen); sym != nil {
			return sym
		}
	}
	return nil
}

func (b *Binder) findMethod(t *syntax.TypeDecl, name string, arity int, seen map[*syntax.TypeDecl]bool) *syntax.Symbol {
	if t == nil || seen[t] {
		return nil
	}
	seen[t] = true
	for _, m := range t.Members {
		if md, ok := m.(*syntax.MethodDecl); ok && !md.Constructor && md.Name == name && len(md.Params) == arity {
			return md.Sym
		}
	}
	for _, st := range supertypes(t) {
		if sym := b.findMethod(st, name, arity, seen); sym != nil {
			return sym
		}
	}
	return nil
}

func findConstructor(t *syntax.TypeDecl, arity int) *syntax.Symbol {
	if t == nil {
		return nil
	}
	for _, m := range t.Members {
		if md, ok := m.(*syntax.MethodDecl); ok && md.Constructor && len(md.Params) == arity {
			return md.Sym
		}
	}
	return nil
}

func superclass(t *syntax.TypeDecl) *syntax.TypeRef {
	if t == nil || t.Interface || len(t.Extends) == 0 {
		return nil
	}
	return t.Extends[0]
}

func hasModifier(mods []string, m string) bool {
	for _, x := range mods {
		if x == m {
			return true
		}
	}
	return false
}

// scope is one level of local name bindings.
type scope struct {
	parent *scope
	vars   map[string]*syntax.Symbol
}

func (s *scope) push() *scope {
	return &scope{parent: s, vars: make(map[string]*syntax.Symbol)}
}

func (s *scope) lookup(name string) *syntax.Symbol {
	for ; s != nil; s = s.parent {
		if sym, ok := s.vars[name]; ok {
			return sym
		}
	}
	return nil
}

// bodyCtx carries the lexical position while binding bodies.
type bodyCtx struct {
	file  *syntax.File
	types []*syntax.TypeDecl
	owner *syntax.Symbol
}

func (c bodyCtx) typeDecl() *syntax.TypeDecl { return c.types[len(c.types)-1] }

func (c bodyCtx) with(t *syntax.TypeDecl) bodyCtx {
	c.types = append(append([]*syntax.TypeDecl(nil), c.types...), t)
	c.owner = t.Sym
	return c
}

func (b *Binder) bindType(f *syntax.File, chain []*syntax.TypeDecl) {
	b.bindMembers(bodyCtx{file: f, types: chain, owner: chain[len(chain)-1].Sym}, nil)
}

func (b *Binder) bindMembers(c bodyCtx, sc *scope) {
	t := c.typeDecl()
	for _, m := range t.Members {
		switch m := m.(type) {
		case *syntax.FieldDecl:
			if m.Init != nil {
				b.expr(m.Init, c, sc.push())
			}
		case *syntax.MethodDecl:
			mc := c
			mc.owner = m.Sym
			msc := sc.push()
			for _, p := range m.Params {
				p.Sym = &syntax.Symbol{
					Kind:    syntax.KindParameter,
					Name:    p.Name,
					Key:     m.Sym.Key + "::" + p.Name,
					Owner:   m.Sym,
					Type:    p.Type,
					Decl:    p,
					Library: m.Sym.Library,
				}
				msc.vars[p.Name] = p.Sym
			}
			if m.Body != nil {
				b.block(m.Body, mc, msc)
			}
		case *syntax.TypeDecl:
			b.bindMembers(c.with(m), sc)
		}
	}
}

func (b *Binder) localKey(owner *syntax.Symbol, name string) string {
	base := owner.Key + "::" + name
	n := b.counters[base]
	b.counters[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s#%d", base, n)
}

func (b *Binder) declareLocal(v *syntax.LocalVar, c bodyCtx, sc *scope) {
	b.resolveTypeRef(c.file, c.types, v.Type)
	if v.Type != nil && v.Type.Name == "var" && v.Init != nil {
		if t := b.typeOf(v.Init); t != nil {
			v.Type = t.Clone()
		}
	}
	v.Sym = &syntax.Symbol{
		Kind:    syntax.KindVariable,
		Name:    v.Name,
		Key:     b.localKey(c.owner, v.Name),
		Owner:   c.owner,
		Type:    v.Type,
		Decl:    v,
		Library: c.file.Library,
	}
	sc.vars[v.Name] = v.Sym
}

func (b *Binder) block(blk *syntax.Block, c bodyCtx, sc *scope) {
	inner := sc.push()
	for _, s := range blk.Stmts {
		b.stmt(s, c, inner)
	}
}

func (b *Binder) stmt(s syntax.Stmt, c bodyCtx, sc *scope) {
	switch s := s.(type) {
	case *syntax.Block:
		b.block(s, c, sc)
	case *syntax.LocalVar:
		if s.Init != nil {
			b.expr(s.Init, c, sc)
		}
		b.declareLocal(s, c, sc)
	case *syntax.ExprStmt:
		b.expr(s.X, c, sc)
	case *syntax.If:
		b.expr(s.Cond, c, sc)
		b.stmt(s.Then, c, sc.push())
		if s.Else != nil {
			b.stmt(s.Else, c, sc.push())
		}
	case *syntax.While:
		b.expr(s.Cond, c, sc)
		b.stmt(s.Body, c, sc.push())
	case *syntax.For:
		inner := sc.push()
		for _, i := range s.Init {
			b.stmt(i, c, inner)
		}
		if s.Cond != nil {
			b.expr(s.Cond, c, inner)
		}
		for _, u := range s.Update {
			b.expr(u, c, inner)
		}
		b.stmt(s.Body, c, inner.push())
	case *syntax.ForEach:
		b.expr(s.Iter, c, sc)
		inner := sc.push()
		b.declareLocal(s.Var, c, inner)
		b.stmt(s.Body, c, inner.push())
	case *syntax.Return:
		if s.Result != nil {
			b.expr(s.Result, c, sc)
		}
	case *syntax.Throw:
		b.expr(s.X, c, sc)
	case *syntax.Branch:
	case *syntax.Do:
		b.stmt(s.Body, c, sc.push())
		b.expr(s.Cond, c, sc)
	case *syntax.Try:
		inner := sc.push()
		for _, r := range s.Resources {
			b.expr(r.Init, c, inner)
			b.declareLocal(r, c, inner)
		}
		b.block(s.Body, c, inner)
		for _, cc := range s.Catches {
			handler := sc.push()
			for _, alt := range cc.Alts {
				b.resolveTypeRef(c.file, c.types, alt)
			}
			b.declareLocal(cc.Param, c, handler)
			b.block(cc.Body, c, handler)
		}
		if s.Finally != nil {
			b.block(s.Finally, c, sc)
		}
	case *syntax.Switch:
		b.expr(s.Tag, c, sc)
		// colon cases share one scope; each arrow case has its own
		shared := sc.push()
		for _, cc := range s.Cases {
			for _, l := range cc.Labels {
				if _, ok := l.(*syntax.Name); ok {
					// enum constant, resolved against the tag's type
					continue
				}
				b.expr(l, c, sc)
			}
			if s.Arrow {
				b.block(cc.Body, c, sc)
				continue
			}
			for _, st := range cc.Body.Stmts {
				b.stmt(st, c, shared)
			}
		}
	case *syntax.Sync:
		b.expr(s.Lock, c, sc)
		b.block(s.Body, c, sc)
	case *syntax.Labeled:
		b.stmt(s.Body, c, sc)
	}
}

// typeOf returns the static type the binder recorded for an already bound
// expression, or nil when it is unknown.
func (b *Binder) typeOf(e syntax.Expr) *syntax.TypeRef {
	return TypeOf(e)
}

// TypeOf returns the static type of a bound expression when the binder
// could determine it from symbols, or nil otherwise.
func TypeOf(e syntax.Expr) *syntax.TypeRef {
	switch e := e.(type) {
	case *syntax.Name:
		if e.Sym != nil && e.Sym.Kind != syntax.KindType && e.Sym.Kind != syntax.KindPackage {
			return e.Sym.Type
		}
	case *syntax.Select:
		if e.Sym != nil && e.Sym.Kind == syntax.KindField {
			return e.Sym.Type
		}
	case *syntax.This:
		if e.Sym != nil {
			return &syntax.TypeRef{Name: e.Sym.Name, Sym: e.Sym}
		}
	case *syntax.Call:
		if e.Sym != nil && e.Sym.Kind == syntax.KindMethod {
			if e.Sym.Type == nil && e.Sym.Name == "<init>" {
				return nil
			}
			return e.Sym.Type
		}
	case *syntax.New:
		return e.Type
	case *syntax.NewArray:
		return e.Type
	case *syntax.Paren:
		return TypeOf(e.X)
	case *syntax.Cast:
		return e.Type
	case *syntax.Assign:
		return TypeOf(e.LHS)
	case *syntax.Cond:
		if t := TypeOf(e.Then); t != nil {
			return t
		}
		return TypeOf(e.Else)
	case *syntax.Index:
		if t := TypeOf(e.X); t.IsArray() {
			return t.Elem()
		}
	case *syntax.Lit:
		if e.Kind == syntax.LitString {
			return &syntax.TypeRef{Name: "String"}
		}
	}
	return nil
}

// declOf returns the program declaration behind a type reference.
func declOf(t *syntax.TypeRef) *syntax.TypeDecl {
	if t == nil || t.Dims > 0 || t.Sym == nil {
		return nil
	}
	return t.Sym.TypeDecl
}

func (b *Binder) unresolved(e syntax.Expr, c bodyCtx, what string) {
	b.Unresolved++
	b.log.Debug("unresolved reference", "file", c.file.Path, "pos", e.Span().Start.String(), "name", what)
}

func (b *Binder) expr(e syntax.Expr, c bodyCtx, sc *scope) {
	switch e := e.(type) {
	case *syntax.Name:
		b.name(e, c, sc)
	case *syntax.Select:
		b.selectExpr(e, c, sc)
	case *syntax.This:
		e.Sym = c.typeDecl().Sym
		if e.Qualifier != "" {
			for i := len(c.types) - 1; i >= 0; i-- {
				if c.types[i].Name == e.Qualifier && !c.types[i].Anonymous {
					e.Sym = c.types[i].Sym
					break
				}
			}
		}
	case *syntax.Super:
	case *syntax.Call:
		b.call(e, c, sc)
	case *syntax.New:
		for _, a := range e.Args {
			b.expr(a, c, sc)
		}
		b.resolveTypeRef(c.file, c.types, e.Type)
		if e.Body != nil {
			b.anonymous(e, c, sc)
		} else if td := declOf(e.Type); td != nil {
			e.Sym = findConstructor(td, len(e.Args))
		}
	case *syntax.NewArray:
		if e.Type != nil {
			b.resolveTypeRef(c.file, c.types, e.Type)
		}
		for _, l := range e.Len {
			b.expr(l, c, sc)
		}
		for _, x := range e.Elems {
			b.expr(x, c, sc)
		}
	case *syntax.Assign:
		b.expr(e.LHS, c, sc)
		b.expr(e.RHS, c, sc)
	case *syntax.Binary:
		b.expr(e.X, c, sc)
		b.expr(e.Y, c, sc)
	case *syntax.Unary:
		b.expr(e.X, c, sc)
	case *syntax.Lit:
	case *syntax.Paren:
		b.expr(e.X, c, sc)
	case *syntax.Cast:
		b.resolveTypeRef(c.file, c.types, e.Type)
		b.expr(e.X, c, sc)
	case *syntax.Cond:
		b.expr(e.Cond, c, sc)
		b.expr(e.Then, c, sc)
		b.expr(e.Else, c, sc)
	case *syntax.Index:
		b.expr(e.X, c, sc)
		b.expr(e.Index, c, sc)
	case *syntax.InstanceOf:
		b.expr(e.X, c, sc)
		b.resolveTypeRef(c.file, c.types, e.Type)
	case *syntax.Lambda:
		b.lambda(e, c, sc)
	}
}

func (b *Binder) name(e *syntax.Name, c bodyCtx, sc *scope) {
	if sym := sc.lookup(e.Name); sym != nil {
		e.Sym = sym
		return
	}
	for i := len(c.types) - 1; i >= 0; i-- {
		if sym := b.findField(c.types[i], e.Name, map[*syntax.TypeDecl]bool{}); sym != nil {
			e.Sym = sym
			return
		}
	}
	if sym := b.lookupSimpleType(c.file, c.types, e.Name); sym != nil {
		e.Sym = sym
		return
	}
	if pkg, ok := b.pkgs[e.Name]; ok {
		e.Sym = pkg
		return
	}
	b.unresolved(e, c, e.Name)
}

func (b *Binder) selectExpr(e *syntax.Select, c bodyCtx, sc *scope) {
	b.expr(e.X, c, sc)
	var recv *syntax.Symbol
	switch x := e.X.(type) {
	case *syntax.Name:
		recv = x.Sym
	case *syntax.Select:
		recv = x.Sym
	}
	if recv != nil {
		switch recv.Kind {
		case syntax.KindPackage:
			path := recv.Key + "." + e.Sel
			if sym, ok := b.types[path]; ok {
				e.Sym = sym
			} else if pkg, ok := b.pkgs[path]; ok {
				e.Sym = pkg
			}
			return
		case syntax.KindType:
			if nested, ok := b.types[recv.Key+"."+e.Sel]; ok {
				e.Sym = nested
				return
			}
			if sym := b.findField(recv.TypeDecl, e.Sel, map[*syntax.TypeDecl]bool{}); sym != nil {
				e.Sym = sym
			}
			return
		}
	}
	if e.Sel == "class" {
		return
	}
	var td *syntax.TypeDecl
	if _, ok := e.X.(*syntax.Super); ok {
		td = declOf(superclass(c.typeDecl()))
	} else {
		td = declOf(TypeOf(e.X))
	}
	if td != nil {
		e.Sym = b.findField(td, e.Sel, map[*syntax.TypeDecl]bool{})
	}
}

func (b *Binder) call(e *syntax.Call, c bodyCtx, sc *scope) {
	if e.Recv != nil {
		b.expr(e.Recv, c, sc)
	}
	for _, a := range e.Args {
		b.expr(a, c, sc)
	}
	arity := len(e.Args)
	switch {
	case e.Recv == nil && e.Name == "this":
		e.Sym = findConstructor(c.typeDecl(), arity)
	case e.Recv == nil && e.Name == "super":
		e.Sym = findConstructor(declOf(superclass(c.typeDecl())), arity)
	case e.Recv == nil:
		for i := len(c.types) - 1; i >= 0 && e.Sym == nil; i-- {
			e.Sym = b.findMethod(c.types[i], e.Name, arity, map[*syntax.TypeDecl]bool{})
		}
	default:
		var td *syntax.TypeDecl
		switch r := e.Recv.(type) {
		case *syntax.Super:
			td = declOf(superclass(c.typeDecl()))
		case *syntax.Name:
			if r.Sym != nil && r.Sym.Kind == syntax.KindType {
				td = r.Sym.TypeDecl
			} else {
				td = declOf(TypeOf(r))
			}
		case *syntax.Select:
			if r.Sym != nil && r.Sym.Kind == syntax.KindType {
				td = r.Sym.TypeDecl
			} else {
				td = declOf(TypeOf(r))
			}
		default:
			td = declOf(TypeOf(r))
		}
		if td != nil {
			e.Sym = b.findMethod(td, e.Name, arity, map[*syntax.TypeDecl]bool{})
		}
	}
}

func (b *Binder) anonymous(e *syntax.New, c bodyCtx, sc *scope) {
	body := e.Body
	outer := c.types[0].Sym.Key
	n := b.counters[outer+"$"] + 1
	b.counters[outer+"$"] = n
	body.Name = e.Type.Simple()
	super := e.Type.Clone()
	super.Loc = e.Type.Loc
	if td := declOf(e.Type); td != nil && td.Interface {
		body.Implements = []*syntax.TypeRef{super}
	} else {
		body.Extends = []*syntax.TypeRef{super}
		e.Sym = findConstructor(declOf(e.Type), len(e.Args))
	}
	body.Sym = &syntax.Symbol{
		Kind:     syntax.KindType,
		Name:     fmt.Sprintf("%s$%d", c.types[0].Name, n),
		Key:      fmt.Sprintf("%s$%d", outer, n),
		Owner:    c.owner,
		Decl:     body,
		TypeDecl: body,
		Library:  c.file.Library,
	}
	b.fileOf[body] = c.file
	inner := c.with(body)
	b.chains[body] = inner.types
	b.declareMembers(body)
	b.bindMembers(inner, sc)
}

func (b *Binder) lambda(e *syntax.Lambda, c bodyCtx, sc *scope) {
	base := c.owner.Key + "::lambda$"
	n := b.counters[base]
	b.counters[base] = n + 1
	e.Sym = &syntax.Symbol{
		Kind:    syntax.KindLambda,
		Name:    fmt.Sprintf("lambda$%d", n),
		Key:     fmt.Sprintf("%s%d", base, n),
		Owner:   c.owner,
		Decl:    e,
		Library: c.file.Library,
		Arity:   len(e.Params),
	}
	lc := c
	lc.owner = e.Sym
	inner := sc.push()
	for _, p := range e.Params {
		b.resolveTypeRef(c.file, c.types, p.Type)
		p.Sym = &syntax.Symbol{
			Kind:    syntax.KindParameter,
			Name:    p.Name,
			Key:     e.Sym.Key + "::" + p.Name,
			Owner:   e.Sym,
			Type:    p.Type,
			Decl:    p,
			Library: c.file.Library,
		}
		inner.vars[p.Name] = p.Sym
	}
	switch body := e.Body.(type) {
	case *syntax.Block:
		b.block(body, lc, inner)
	case syntax.Expr:
		b.expr(body, lc, inner)
	}
}
