// Package normalize strips instrumentation back to a canonical,
// uninstrumented tree.
package normalize

import (
	"refweaver/internal/frontend"
	"refweaver/internal/instrument"
	"refweaver/internal/models"
	"refweaver/internal/pass"
	"refweaver/internal/printer"
	"refweaver/internal/syntax"
)

// RemoveRefs strips synthesized support methods and every retain, release,
// bulk-helper and capture-wrapper call on a reference-counted receiver,
// splicing the receiver back into the position the call held.
func RemoveRefs(env *pass.Env) error {
	// The bulk helpers contain release loops of their own, so they go first;
	// the teardown hook only matches once its field releases are stripped.
	removeSupport(env, func(kind string) bool { return kind != instrument.SupportHook })
	removeStatements(env)
	syntax.RewriteExprs(env.File, func(c *syntax.ExprCursor) {
		spliceCall(env, c)
	})
	removeSupport(env, func(kind string) bool { return kind == instrument.SupportHook })
	return nil
}

// Revert removes only the synthesized support methods and reports call
// sites of the static helpers that no longer exist afterwards.
func Revert(env *pass.Env) error {
	removed := removeSupport(env, func(string) bool { return true })
	if len(removed) == 0 {
		return nil
	}
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		c, ok := n.(*syntax.Call)
		if !ok {
			return true
		}
		recv, ok := c.Recv.(*syntax.Name)
		if !ok || recv.Sym == nil || recv.Sym.Kind != syntax.KindType {
			return true
		}
		if removed[helper{recv.Sym, c.Name}] {
			env.Report(models.KindMissingSupport, models.SeverityMedium, c, recv.Sym.Key,
				"%s.%s is still called but was removed", recv.Name, c.Name)
		}
		return true
	})
	return nil
}

type helper struct {
	owner  *syntax.Symbol
	method string
}

// removeSupport deletes support methods whose kind passes keep from every
// opted-in type and returns what it removed.
func removeSupport(env *pass.Env, match func(kind string) bool) map[helper]bool {
	removed := make(map[helper]bool)
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		t, ok := n.(*syntax.TypeDecl)
		if !ok || !instrument.Synthesizes(env.Conv, t) {
			return true
		}
		kept := t.Members[:0:0]
		for _, m := range t.Members {
			md, ok := m.(*syntax.MethodDecl)
			if ok {
				if kind := instrument.SupportKind(env.Conv, md); kind != "" && match(kind) {
					removed[helper{t.Sym, md.Name}] = true
					env.Edited("remove-support", md, t.Sym.Key, "remove "+md.Name+"()")
					continue
				}
			}
			kept = append(kept, m)
		}
		t.Members = kept
		return true
	})
	return removed
}

// refCounted reports whether e is a reference-counted value or array of
// them. Receivers of unknown type are left alone and reported.
func refCounted(env *pass.Env, e syntax.Expr) bool {
	t := frontend.TypeOf(e)
	if t != nil && t.Dims > 0 {
		t = t.Elem()
	}
	rc, known := env.Conv.Classify(t)
	if !known {
		env.Unresolved(e, "type of "+printer.Node(e))
	}
	return rc
}

// refCall classifies e as one of the instrumentation calls and returns the
// expression it operates on.
func refCall(env *pass.Env, e syntax.Expr) (operand syntax.Expr, name string, ok bool) {
	conv := env.Conv
	c, isCall := e.(*syntax.Call)
	if !isCall {
		return nil, "", false
	}
	if _, isSuper := c.Recv.(*syntax.Super); isSuper {
		return nil, "", false
	}
	switch {
	case conv.IsRetain(c), conv.IsRelease(c):
		if !refCounted(env, c.Recv) {
			return nil, "", false
		}
		return c.Recv, c.Name, true
	case conv.IsRetainAll(c), c.Name == conv.ReleaseAll && len(c.Args) == 1:
		if !refCounted(env, c.Args[0]) {
			return nil, "", false
		}
		return c.Args[0], c.Name, true
	}
	return nil, "", false
}

// removable reports whether s is a statement made only of a release,
// guarded release, retain or bulk helper call.
func removable(env *pass.Env, s syntax.Stmt) bool {
	conv := env.Conv
	if es, ok := s.(*syntax.ExprStmt); ok {
		_, _, ok := refCall(env, es.X)
		return ok
	}
	iff, ok := s.(*syntax.If)
	if !ok || iff.Else != nil {
		return false
	}
	cond, ok := syntax.Unparen(iff.Cond).(*syntax.Binary)
	if !ok || cond.Op != "!=" {
		return false
	}
	if lit, ok := cond.Y.(*syntax.Lit); !ok || lit.Kind != syntax.LitNull {
		return false
	}
	then := iff.Then
	if b, ok := then.(*syntax.Block); ok && len(b.Stmts) == 1 {
		then = b.Stmts[0]
	}
	es, ok := then.(*syntax.ExprStmt)
	if !ok || !conv.IsRelease(es.X) {
		return false
	}
	return syntax.SameRef(es.X.(*syntax.Call).Recv, cond.X) && refCounted(env, cond.X)
}

func removeStatements(env *pass.Env) {
	syntax.Blocks(env.File, func(b *syntax.Block) {
		kept := b.Stmts[:0:0]
		for _, s := range b.Stmts {
			if removable(env, s) {
				env.Edited("remove-call", s, "", "remove "+syntax.RoleStmt.String())
				continue
			}
			kept = append(kept, s)
		}
		b.Stmts = kept
	})
	// unbraced bodies become empty blocks
	empty := func(slot *syntax.Stmt) {
		if *slot != nil && removable(env, *slot) {
			env.Edited("remove-call", *slot, "", "remove unbraced "+syntax.RoleStmt.String())
			*slot = &syntax.Block{}
		}
	}
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.If:
			empty(&n.Then)
			empty(&n.Else)
		case *syntax.While:
			empty(&n.Body)
		case *syntax.For:
			empty(&n.Body)
		case *syntax.ForEach:
			empty(&n.Body)
		case *syntax.Do:
			empty(&n.Body)
		case *syntax.Labeled:
			empty(&n.Body)
		}
		return true
	})
}

// spliceCall replaces a retain, bulk retain or capture wrapper by the value
// it wraps.
func spliceCall(env *pass.Env, c *syntax.ExprCursor) {
	call, ok := c.Expr.(*syntax.Call)
	if !ok {
		return
	}
	if env.Conv.IsWrap(call) {
		c.Replace(call.Args[0])
		env.Edited("unwrap-capture", call, "", "remove capture wrapper")
		return
	}
	operand, name, ok := refCall(env, call)
	if !ok {
		return
	}
	switch c.Role {
	case syntax.RoleArg, syntax.RoleAssignRHS, syntax.RoleInit, syntax.RoleReturn,
		syntax.RoleArrayElem, syntax.RoleLambdaBody:
		if name == env.Conv.Release || name == env.Conv.ReleaseAll {
			break
		}
		c.Replace(operand)
		env.Edited("remove-call", call, "", "splice "+name+" out of "+c.Role.String())
		return
	}
	env.Unsupported(call, "", "%s call in %s position left in place", name, c.Role)
}
