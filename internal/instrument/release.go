package instrument

import (
	"refweaver/internal/lifetime"
	"refweaver/internal/models"
	"refweaver/internal/pass"
	"refweaver/internal/syntax"
)

// ReleaseLastUses inserts a release after the last use of every
// reference-counted local and parameter on each path, and releases
// reference-counted fields from the teardown hook of their class.
func ReleaseLastUses(env *pass.Env) error {
	releaseStores(env)
	parents := syntax.Parents(env.File)
	var (
		methods []*syntax.MethodDecl
		lambdas []*syntax.Lambda
		locals  []*syntax.LocalVar
		types   []*syntax.TypeDecl
	)
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.MethodDecl:
			if n.Body != nil {
				methods = append(methods, n)
			}
		case *syntax.Lambda:
			if _, ok := n.Body.(*syntax.Block); ok {
				lambdas = append(lambdas, n)
			}
		case *syntax.LocalVar:
			locals = append(locals, n)
		case *syntax.TypeDecl:
			types = append(types, n)
		}
		return true
	})
	for _, m := range methods {
		for _, p := range m.Params {
			releaseParam(env, m, m.Body, m.Constructor, p)
		}
	}
	for _, l := range lambdas {
		for _, p := range l.Params {
			if p.Type != nil {
				releaseParam(env, l, l.Body.(*syntax.Block), false, p)
			}
		}
	}
	for _, v := range locals {
		releaseLocal(env, parents, v)
	}
	for _, t := range types {
		releaseFields(env, t)
	}
	return nil
}

// releaseParam releases p in fn, a method or a block lambda with an
// explicitly typed parameter.
func releaseParam(env *pass.Env, fn syntax.Node, body *syntax.Block, ctor bool, p *syntax.Param) {
	if p.Sym == nil {
		env.Unresolved(p, p.Name)
		return
	}
	rc, known := env.Conv.Classify(p.Type)
	if !known && p.Type != nil && !env.Conv.IsRefCountedArray(p.Type) {
		env.Unresolved(p, "type "+p.Type.String()+" of "+p.Name)
	}
	if !rc {
		return
	}
	if t := finallyUse(body, p.Sym); t != nil {
		env.Unsupported(t, p.Sym.Key, "finally block uses %s; release not inserted", p.Name)
		return
	}
	mentions := lifetime.LastMentions(body, p.Sym)
	if len(mentions) == 0 {
		at := 0
		if ctor && len(body.Stmts) > 0 && isCtorCall(body.Stmts[0]) {
			at = 1
		}
		body.Stmts = syntax.Insert(body.Stmts, at, release(env.Conv, nameOf(p.Sym)))
		env.Edited("release", p, p.Sym.Key, "release unused parameter")
		return
	}
	for i := len(mentions) - 1; i >= 0; i-- {
		mm := &mentions[i]
		if consumedByExchange(env, mm.Stmt(), p.Sym) {
			continue
		}
		applyRelease(env, fn, mm, p.Sym, false)
	}
}

func isCtorCall(s syntax.Stmt) bool {
	es, ok := s.(*syntax.ExprStmt)
	if !ok {
		return false
	}
	c, ok := es.X.(*syntax.Call)
	return ok && c.Recv == nil && (c.Name == "this" || c.Name == "super")
}

// consumedByExchange reports whether s stores sym into a field, which
// takes over the reference.
func consumedByExchange(env *pass.Env, s syntax.Stmt, sym *syntax.Symbol) bool {
	a, _ := exchangeAssign(env, s)
	if a == nil {
		return false
	}
	rhs := syntax.Unparen(a.RHS)
	if env.Conv.IsRetain(rhs) {
		rhs = syntax.Unparen(rhs.(*syntax.Call).Recv)
	}
	n, ok := rhs.(*syntax.Name)
	return ok && n.Sym == sym
}

func releaseLocal(env *pass.Env, parents syntax.Enclosing, v *syntax.LocalVar) {
	block, inBlock := parents[v].(*syntax.Block)
	_, resource := parents[v].(*syntax.Try)
	if !inBlock && !resource {
		// for-each, for-init and catch variables are borrowed from their
		// source
		return
	}
	if v.Sym == nil {
		env.Unresolved(v, v.Name)
		return
	}
	rc, known := env.Conv.Classify(v.Type)
	if !known && v.Type != nil && v.Type.Name != "var" && !env.Conv.IsRefCountedArray(v.Type) {
		env.Unresolved(v, "type "+v.Type.String()+" of "+v.Name)
	}
	if !rc {
		return
	}
	switch {
	case resource:
		env.Unsupported(v, v.Sym.Key, "resource %s is closed by its try statement; release not inserted", v.Name)
		return
	case inColonCase(parents, v):
		env.Unsupported(v, v.Sym.Key, "%s is declared in a switch case that later cases share; release not inserted", v.Name)
		return
	}
	if t := finallyUse(block, v.Sym); t != nil {
		env.Unsupported(t, v.Sym.Key, "finally block uses %s; release not inserted", v.Name)
		return
	}
	guarded := v.Init == nil || isNull(syntax.Unparen(v.Init)) || reassigned(block, v.Sym)
	fn := parents.Func(v)
	mentions := lifetime.LastMentions(block, v.Sym)
	for i := len(mentions) - 1; i >= 0; i-- {
		applyRelease(env, fn, &mentions[i], v.Sym, guarded)
	}
}

// inColonCase reports whether v is declared directly in a colon-form switch
// case, whose scope runs on into the cases after it.
func inColonCase(parents syntax.Enclosing, v *syntax.LocalVar) bool {
	c, ok := parents[parents[v]].(*syntax.Case)
	if !ok {
		return false
	}
	sw, ok := parents[c].(*syntax.Switch)
	return ok && !sw.Arrow
}

// finallyUse returns the first try statement below b whose finally block
// mentions sym.
func finallyUse(b *syntax.Block, sym *syntax.Symbol) *syntax.Try {
	var found *syntax.Try
	syntax.Inspect(b, func(n syntax.Node) bool {
		if t, ok := n.(*syntax.Try); ok && t.Finally != nil && syntax.Mentions(t.Finally, sym) {
			found = t
		}
		return found == nil
	})
	return found
}

// reassigned reports whether sym is the target of a plain store below b.
func reassigned(b *syntax.Block, sym *syntax.Symbol) bool {
	found := false
	syntax.Inspect(b, func(n syntax.Node) bool {
		if a, ok := n.(*syntax.Assign); ok && a.Op == "=" {
			if name, ok := a.LHS.(*syntax.Name); ok && name.Sym == sym {
				found = true
			}
		}
		return !found
	})
	return found
}

// applyRelease places the release of sym for one last mention.
func applyRelease(env *pass.Env, fn syntax.Node, m *lifetime.Mention, sym *syntax.Symbol, guarded bool) {
	conv := env.Conv
	s := m.Stmt()
	if releases(conv, s, sym) {
		return
	}
	rel := func() syntax.Stmt {
		if guarded {
			return guardedRelease(conv, nameOf(sym))
		}
		return release(conv, nameOf(sym))
	}
	switch {
	case m.IsReturn && !m.IsComplexReturn:
		// returning the binding hands the reference to the caller
		return
	case m.IsReturn:
		materializeReturn(env, fn, m, sym, rel())
		return
	case lifetime.CanCompleteNormally(s):
		b, i := m.Resolve()
		b.Stmts = syntax.Insert(b.Stmts, i+1, rel())
		env.Edited("release", s, sym.Key, "release after last use")
		return
	}
	iff, ok := s.(*syntax.If)
	if !ok {
		env.Unsupported(s, sym.Key, "last use of %s cannot complete normally; release not inserted", sym.Name)
		return
	}
	// Both arms leave the block: release in each arm that does not use the
	// binding itself, since those that do carry their own last mentions.
	for _, slot := range []*syntax.Stmt{&iff.Then, &iff.Else} {
		if *slot == nil || syntax.Mentions(*slot, sym) {
			continue
		}
		b := syntax.EnsureBlock(slot)
		b.Stmts = syntax.Insert(b.Stmts, 0, rel())
		env.Edited("release", iff, sym.Key, "release before leaving branch")
	}
}

// materializeReturn rewrites "return expr;" into
// "T tmp = expr; x.release(); return tmp;".
func materializeReturn(env *pass.Env, fn syntax.Node, m *lifetime.Mention, sym *syntax.Symbol, rel syntax.Stmt) {
	ret := m.Stmt().(*syntax.Return)
	md, ok := fn.(*syntax.MethodDecl)
	if !ok || md.Result == nil || md.Result.Name == "void" {
		env.Report(models.KindUnsupported, models.SeverityMedium, ret, sym.Key,
			"return value uses %s inside a lambda; its type is unknown so no release was inserted", sym.Name)
		return
	}
	tmp := &syntax.LocalVar{Type: md.Result.Clone(), Name: env.Temp("ret"), Init: ret.Result}
	b, i := m.Resolve()
	ret.Result = ident(tmp.Name)
	b.Stmts = syntax.Insert(b.Stmts, i, tmp, rel)
	env.Edited("materialize", ret, sym.Key, "store return value in "+tmp.Name+" before releasing")
}

// releaseFields makes the teardown hook release every reference-counted
// instance field of t.
func releaseFields(env *pass.Env, t *syntax.TypeDecl) {
	var hookDecl *syntax.MethodDecl
	for _, m := range t.Members {
		if md, ok := m.(*syntax.MethodDecl); ok && !md.Constructor && md.Name == env.Conv.Hook && len(md.Params) == 0 {
			hookDecl = md
		}
	}
	for _, m := range t.Members {
		fd, ok := m.(*syntax.FieldDecl)
		if !ok || fd.Sym == nil || fd.Sym.Static || !env.Conv.IsRefCounted(fd.Type) {
			continue
		}
		if hookDecl == nil || hookDecl.Body == nil {
			env.Report(models.KindInstrumentFailure, models.SeverityHigh, fd, fd.Sym.Key,
				"field %s of %s has no %s() teardown hook to release it", fd.Name, t.Name, env.Conv.Hook)
			continue
		}
		if hookReleases(env, hookDecl, fd.Sym) {
			continue
		}
		ref := &syntax.Select{X: &syntax.This{}, Sel: fd.Name, Sym: fd.Sym}
		stmts := hookDecl.Body.Stmts
		at := len(stmts)
		if at > 0 && isSuperHook(env, stmts[at-1]) {
			at--
		}
		hookDecl.Body.Stmts = syntax.Insert(stmts, at, guardedRelease(env.Conv, ref))
		env.Edited("release", fd, fd.Sym.Key, "release field in "+env.Conv.Hook+"()")
	}
}

func hookReleases(env *pass.Env, hook *syntax.MethodDecl, field *syntax.Symbol) bool {
	for _, s := range hook.Body.Stmts {
		if releases(env.Conv, s, field) {
			return true
		}
	}
	return false
}

func isSuperHook(env *pass.Env, s syntax.Stmt) bool {
	es, ok := s.(*syntax.ExprStmt)
	if !ok {
		return false
	}
	c, ok := es.X.(*syntax.Call)
	if !ok || c.Name != env.Conv.Hook {
		return false
	}
	_, ok = c.Recv.(*syntax.Super)
	return ok
}
