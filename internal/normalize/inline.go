package normalize

import (
	"refweaver/internal/pass"
	"refweaver/internal/syntax"
)

// InlineRefs collapses single-statement nested blocks into their parent
// and folds a generated temporary back into the statement that follows its
// declaration when that statement is its only use. Only locals named with
// the configured temp prefix (rc$ by default) are folded; a local the user
// declared is never inlined, whatever its shape.
func InlineRefs(env *pass.Env) error {
	syntax.Blocks(env.File, func(b *syntax.Block) {
		collapse(env, b)
		inlineTemps(env, b)
	})
	return nil
}

func collapse(env *pass.Env, b *syntax.Block) {
	for i, s := range b.Stmts {
		inner, ok := s.(*syntax.Block)
		if !ok || len(inner.Stmts) != 1 {
			continue
		}
		if _, ok := inner.Stmts[0].(*syntax.LocalVar); ok {
			continue
		}
		b.Stmts[i] = inner.Stmts[0]
		env.Edited("collapse", inner, "", "collapse single-statement block")
	}
}

func inlineTemps(env *pass.Env, b *syntax.Block) {
	for i := 0; i+1 < len(b.Stmts); i++ {
		v, ok := b.Stmts[i].(*syntax.LocalVar)
		if !ok || v.Init == nil || !env.Conv.IsTemp(v.Name) {
			continue
		}
		if occurrences(b.Stmts[i+1:], v) != 1 {
			continue
		}
		slot := soleUse(b.Stmts[i+1], v)
		if slot == nil {
			continue
		}
		*slot = v.Init
		b.Stmts = append(b.Stmts[:i], b.Stmts[i+1:]...)
		env.Edited("inline", v, bindingKey(v), "inline "+v.Name)
		i--
	}
}

func bindingKey(v *syntax.LocalVar) string {
	if v.Sym == nil {
		return v.Name
	}
	return v.Sym.Key
}

func refersTo(e syntax.Expr, v *syntax.LocalVar) bool {
	n, ok := e.(*syntax.Name)
	if !ok {
		return false
	}
	if n.Sym != nil && v.Sym != nil {
		return n.Sym == v.Sym
	}
	return n.Name == v.Name
}

func occurrences(stmts []syntax.Stmt, v *syntax.LocalVar) int {
	count := 0
	for _, s := range stmts {
		syntax.Inspect(s, func(n syntax.Node) bool {
			if e, ok := n.(syntax.Expr); ok && refersTo(e, v) {
				count++
			}
			return true
		})
	}
	return count
}

// soleUse returns the slot holding v when s is "x = v;" or "return v;".
func soleUse(s syntax.Stmt, v *syntax.LocalVar) *syntax.Expr {
	switch s := s.(type) {
	case *syntax.ExprStmt:
		a, ok := s.X.(*syntax.Assign)
		if ok && a.Op == "=" && refersTo(a.RHS, v) {
			return &a.RHS
		}
	case *syntax.Return:
		if refersTo(s.Result, v) {
			return &s.Result
		}
	}
	return nil
}
