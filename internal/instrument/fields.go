package instrument

import (
	"refweaver/internal/pass"
	"refweaver/internal/syntax"
)

// fieldTarget returns the field symbol assigned by lhs when lhs is one of
// the supported receivers: f, this.f or v.f with v a simple name.
func fieldTarget(lhs syntax.Expr) (*syntax.Symbol, bool) {
	switch x := lhs.(type) {
	case *syntax.Name:
		if x.Sym != nil && x.Sym.Kind == syntax.KindField {
			return x.Sym, true
		}
	case *syntax.Select:
		if x.Sym == nil || x.Sym.Kind != syntax.KindField {
			return nil, false
		}
		switch x.X.(type) {
		case *syntax.This, *syntax.Name:
			return x.Sym, true
		}
	}
	return nil, false
}

// refField reports the field assigned by a, when it is a reference-counted
// field, along with whether its receiver shape is supported.
func refField(env *pass.Env, a *syntax.Assign) (field *syntax.Symbol, supported, rc bool) {
	var candidate *syntax.Symbol
	switch x := a.LHS.(type) {
	case *syntax.Name:
		candidate = x.Sym
	case *syntax.Select:
		candidate = x.Sym
	}
	if candidate == nil || candidate.Kind != syntax.KindField || !env.Conv.IsRefCounted(candidate.Type) {
		return nil, false, false
	}
	_, shapeOK := fieldTarget(a.LHS)
	return candidate, shapeOK && a.Op == "=", true
}

// exchangeAssign returns the assignment of an expression statement that
// stores into a reference-counted field.
func exchangeAssign(env *pass.Env, s syntax.Stmt) (*syntax.Assign, *syntax.Symbol) {
	es, ok := s.(*syntax.ExprStmt)
	if !ok {
		return nil, nil
	}
	a, ok := es.X.(*syntax.Assign)
	if !ok {
		return nil, nil
	}
	sym, supported, rc := refField(env, a)
	if !rc || !supported {
		return nil, nil
	}
	return a, sym
}

// ExchangeFields rewrites every statement-level store into a
// reference-counted field as
//
//	if (this.f != null) this.f.release();
//	this.f = v.retain();
//
// A right-hand side other than a bare name or null is first stored in a
// generated local so it is evaluated once.
func ExchangeFields(env *pass.Env) error {
	handled := make(map[*syntax.Assign]bool)
	braceBranches(env)
	syntax.Blocks(env.File, func(b *syntax.Block) {
		for i := 0; i < len(b.Stmts); i++ {
			a, sym := exchangeAssign(env, b.Stmts[i])
			if a == nil {
				continue
			}
			handled[a] = true
			i += exchange(env, b, i, a, sym)
		}
	})
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		a, ok := n.(*syntax.Assign)
		if !ok || handled[a] {
			return true
		}
		if sym, _, rc := refField(env, a); rc {
			env.Unsupported(a, sym.Key, "field store is not a plain statement-level assignment; exchange not applied")
		}
		return true
	})
	return nil
}

// braceBranches turns unbraced control bodies that store into a field
// into blocks so the exchange has room for its extra statements.
func braceBranches(env *pass.Env) {
	needs := func(s syntax.Stmt) bool {
		a, _ := exchangeAssign(env, s)
		return a != nil
	}
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.If:
			if needs(n.Then) {
				syntax.EnsureBlock(&n.Then)
			}
			if n.Else != nil && needs(n.Else) {
				syntax.EnsureBlock(&n.Else)
			}
		case *syntax.While:
			if needs(n.Body) {
				syntax.EnsureBlock(&n.Body)
			}
		case *syntax.For:
			if needs(n.Body) {
				syntax.EnsureBlock(&n.Body)
			}
		case *syntax.ForEach:
			if needs(n.Body) {
				syntax.EnsureBlock(&n.Body)
			}
		case *syntax.Do:
			if needs(n.Body) {
				syntax.EnsureBlock(&n.Body)
			}
		}
		return true
	})
}

// exchanged reports whether statement i of b already is a complete
// exchange: preceded by the guarded release and storing a retained value
// or null.
func exchanged(env *pass.Env, b *syntax.Block, i int, a *syntax.Assign) bool {
	rhs := syntax.Unparen(a.RHS)
	switch {
	case env.Conv.IsRetain(rhs):
	case isNull(rhs):
	default:
		return false
	}
	if b == nil || i == 0 {
		return false
	}
	x := releasedRef(env.Conv, b.Stmts[i-1])
	return x != nil && syntax.SameRef(x, a.LHS)
}

func isNull(e syntax.Expr) bool {
	l, ok := e.(*syntax.Lit)
	return ok && l.Kind == syntax.LitNull
}

// exchange rewrites statement i of b and returns how many statements it
// inserted before it.
func exchange(env *pass.Env, b *syntax.Block, i int, a *syntax.Assign, sym *syntax.Symbol) int {
	if exchanged(env, b, i, a) {
		return 0
	}
	conv := env.Conv
	var pre []syntax.Stmt
	rhs := syntax.Unparen(a.RHS)
	switch {
	case isNull(rhs):
	case isBareName(rhs):
		a.RHS = retain(conv, rhs)
	case conv.IsRetain(rhs):
	default:
		tmp := &syntax.LocalVar{Type: sym.Type.Clone(), Name: env.Temp(sym.Name), Init: a.RHS}
		pre = append(pre, tmp)
		a.RHS = retain(conv, ident(tmp.Name))
		env.Edited("materialize", a, sym.Key, "store right-hand side in "+tmp.Name)
	}
	pre = append(pre, guardedRelease(conv, syntax.CloneExpr(a.LHS)))
	b.Stmts = syntax.Insert(b.Stmts, i, pre...)
	env.Edited("exchange", a, sym.Key, "release previous value and retain new one")
	return len(pre)
}

func isBareName(e syntax.Expr) bool {
	n, ok := e.(*syntax.Name)
	return ok && n.Sym != nil && n.Sym.Kind != syntax.KindType && n.Sym.Kind != syntax.KindPackage
}
