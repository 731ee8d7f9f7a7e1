package instrument

import (
	"refweaver/internal/pass"
	"refweaver/internal/refcount"
	"refweaver/internal/syntax"
)

// Support method kinds.
const (
	SupportHook       = "hook"
	SupportRetain     = "retain"
	SupportRetainAll  = "retainAll"
	SupportReleaseAll = "releaseAll"
)

// Synthesizes reports whether t receives support methods: a concrete,
// named reference-counted class other than the marker.
func Synthesizes(conv refcount.Conventions, t *syntax.TypeDecl) bool {
	return t != nil && !t.Interface && !t.Anonymous && !conv.IsMarker(t) && conv.IsRefCountedDecl(t)
}

// Synthesize adds the teardown hook, the typed retain and the bulk array
// helpers to every reference-counted class of the file that lacks them.
func Synthesize(env *pass.Env) error {
	top := make(map[*syntax.TypeDecl]bool)
	for _, t := range env.File.Types {
		top[t] = true
	}
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		t, ok := n.(*syntax.TypeDecl)
		if !ok || !Synthesizes(env.Conv, t) {
			return true
		}
		synthesizeType(env, t, top[t] || t.Sym.Static)
		return true
	})
	return nil
}

func synthesizeType(env *pass.Env, t *syntax.TypeDecl, static bool) {
	conv := env.Conv
	if findMethod(t, conv.Hook, 0) == nil {
		m := hook(conv, t)
		t.Members = append(t.Members, m)
		env.Edited("synthesize", t, t.Sym.Key, "add "+conv.Hook+"()")
	}
	if findMethod(t, conv.Retain, 0) == nil {
		t.Members = append(t.Members, typedRetain(conv, t))
		env.Edited("synthesize", t, t.Sym.Key, "add "+conv.Retain+"()")
	}
	if !static {
		return
	}
	if findMethod(t, conv.RetainAll, 1) == nil {
		t.Members = append(t.Members, retainAll(conv, t))
		env.Edited("synthesize", t, t.Sym.Key, "add "+conv.RetainAll+"()")
	}
	if findMethod(t, conv.ReleaseAll, 1) == nil {
		t.Members = append(t.Members, releaseAll(conv, t))
		env.Edited("synthesize", t, t.Sym.Key, "add "+conv.ReleaseAll+"()")
	}
}

func findMethod(t *syntax.TypeDecl, name string, arity int) *syntax.MethodDecl {
	for _, m := range t.Members {
		if md, ok := m.(*syntax.MethodDecl); ok && !md.Constructor && md.Name == name && len(md.Params) == arity {
			return md
		}
	}
	return nil
}

// hook builds "@Override protected void deallocate() {}", chaining to the
// superclass when it is reference counted and declared in the program.
func hook(conv refcount.Conventions, t *syntax.TypeDecl) *syntax.MethodDecl {
	body := &syntax.Block{}
	if conv.Supertype(t) != nil {
		body.Stmts = append(body.Stmts, exprStmt(call(&syntax.Super{}, conv.Hook)))
	}
	return &syntax.MethodDecl{
		Modifiers: []string{overrideAnnotation, "protected"},
		Result:    &syntax.TypeRef{Name: "void"},
		Name:      conv.Hook,
		Body:      body,
	}
}

// typedRetain builds "@Override public C retain() { super.retain(); return this; }".
func typedRetain(conv refcount.Conventions, t *syntax.TypeDecl) *syntax.MethodDecl {
	return &syntax.MethodDecl{
		Modifiers: []string{overrideAnnotation, "public"},
		Result:    typeRefFor(t, true),
		Name:      conv.Retain,
		Body: &syntax.Block{Stmts: []syntax.Stmt{
			exprStmt(call(&syntax.Super{}, conv.Retain)),
			&syntax.Return{Result: &syntax.This{}},
		}},
	}
}

func arrayOf(t *syntax.TypeDecl) *syntax.TypeRef {
	ref := typeRefFor(t, false)
	ref.Dims = 1
	return ref
}

// forEachNonNull builds "for (C item : items) { if (item != null) item.op(); }".
func forEachNonNull(t *syntax.TypeDecl, op string) syntax.Stmt {
	return &syntax.ForEach{
		Var:  &syntax.LocalVar{Type: typeRefFor(t, false), Name: "item"},
		Iter: ident("items"),
		Body: &syntax.Block{Stmts: []syntax.Stmt{
			&syntax.If{Cond: notNull(ident("item")), Then: exprStmt(call(ident("item"), op))},
		}},
	}
}

func retainAll(conv refcount.Conventions, t *syntax.TypeDecl) *syntax.MethodDecl {
	return &syntax.MethodDecl{
		Modifiers: []string{"public", "static"},
		Result:    arrayOf(t),
		Name:      conv.RetainAll,
		Params:    []*syntax.Param{{Type: arrayOf(t), Name: "items"}},
		Body: &syntax.Block{Stmts: []syntax.Stmt{
			forEachNonNull(t, conv.Retain),
			&syntax.Return{Result: ident("items")},
		}},
	}
}

func releaseAll(conv refcount.Conventions, t *syntax.TypeDecl) *syntax.MethodDecl {
	return &syntax.MethodDecl{
		Modifiers: []string{"public", "static"},
		Result:    &syntax.TypeRef{Name: "void"},
		Name:      conv.ReleaseAll,
		Params:    []*syntax.Param{{Type: arrayOf(t), Name: "items"}},
		Body: &syntax.Block{Stmts: []syntax.Stmt{
			forEachNonNull(t, conv.Release),
		}},
	}
}

// SupportKind reports which synthesized support method m is, or "" when
// m does not have the exact synthesized shape. The teardown hook matches
// only while its body holds nothing but releases and the super call.
func SupportKind(conv refcount.Conventions, m *syntax.MethodDecl) string {
	if m.Constructor || m.Body == nil {
		return ""
	}
	stmts := m.Body.Stmts
	switch {
	case m.Name == conv.Hook && len(m.Params) == 0:
		for _, s := range stmts {
			if releasedRef(conv, s) != nil {
				continue
			}
			if es, ok := s.(*syntax.ExprStmt); ok {
				if c, ok := es.X.(*syntax.Call); ok && c.Name == conv.Hook && len(c.Args) == 0 {
					if _, ok := c.Recv.(*syntax.Super); ok {
						continue
					}
				}
			}
			return ""
		}
		return SupportHook
	case m.Name == conv.Retain && len(m.Params) == 0:
		if len(stmts) != 2 {
			return ""
		}
		es, ok := stmts[0].(*syntax.ExprStmt)
		if !ok {
			return ""
		}
		c, ok := es.X.(*syntax.Call)
		if !ok || c.Name != conv.Retain {
			return ""
		}
		if _, ok := c.Recv.(*syntax.Super); !ok {
			return ""
		}
		r, ok := stmts[1].(*syntax.Return)
		if !ok {
			return ""
		}
		if _, ok := r.Result.(*syntax.This); !ok {
			return ""
		}
		return SupportRetain
	case m.Name == conv.RetainAll && len(m.Params) == 1 && hasModifier(m.Modifiers, "static"):
		if len(stmts) == 2 && isNullSafeLoop(stmts[0], conv.Retain) {
			if r, ok := stmts[1].(*syntax.Return); ok {
				if n, ok := r.Result.(*syntax.Name); ok && n.Name == m.Params[0].Name {
					return SupportRetainAll
				}
			}
		}
	case m.Name == conv.ReleaseAll && len(m.Params) == 1 && hasModifier(m.Modifiers, "static"):
		if len(stmts) == 1 && isNullSafeLoop(stmts[0], conv.Release) {
			return SupportReleaseAll
		}
	}
	return ""
}

func isNullSafeLoop(s syntax.Stmt, op string) bool {
	fe, ok := s.(*syntax.ForEach)
	if !ok {
		return false
	}
	body := fe.Body
	if b, ok := body.(*syntax.Block); ok {
		if len(b.Stmts) != 1 {
			return false
		}
		body = b.Stmts[0]
	}
	iff, ok := body.(*syntax.If)
	if !ok || iff.Else != nil {
		return false
	}
	then := iff.Then
	if b, ok := then.(*syntax.Block); ok && len(b.Stmts) == 1 {
		then = b.Stmts[0]
	}
	es, ok := then.(*syntax.ExprStmt)
	if !ok {
		return false
	}
	c, ok := es.X.(*syntax.Call)
	return ok && c.Name == op && len(c.Args) == 0
}

func hasModifier(mods []string, m string) bool {
	for _, x := range mods {
		if x == m {
			return true
		}
	}
	return false
}
