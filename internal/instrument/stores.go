package instrument

import (
	"slices"

	"refweaver/internal/pass"
	"refweaver/internal/syntax"
)

// releaseStores releases the value a reference-counted local holds before
// each statement-level store replaces it:
//
//	if (x != null) x.release();
//	x = v;
//
// A right-hand side that reads x is stored in a generated local first. The
// first store into a local declared without a value has nothing to release.
func releaseStores(env *pass.Env) {
	parents := syntax.Parents(env.File)
	var stores []*syntax.ExprStmt
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		if es, ok := n.(*syntax.ExprStmt); ok && storedLocal(env, parents, es) != nil {
			stores = append(stores, es)
		}
		return true
	})
	for _, es := range stores {
		releaseStore(env, parents, es)
	}
}

// storedLocal returns the reference-counted block local that es assigns
// with "=", or nil.
func storedLocal(env *pass.Env, parents syntax.Enclosing, es *syntax.ExprStmt) *syntax.LocalVar {
	a, ok := es.X.(*syntax.Assign)
	if !ok || a.Op != "=" {
		return nil
	}
	n, ok := a.LHS.(*syntax.Name)
	if !ok || n.Sym == nil || n.Sym.Kind != syntax.KindVariable {
		return nil
	}
	v, ok := n.Sym.Decl.(*syntax.LocalVar)
	if !ok {
		return nil
	}
	if _, ok := parents[v].(*syntax.Block); !ok || inColonCase(parents, v) {
		return nil
	}
	if rc, _ := env.Conv.Classify(v.Type); !rc {
		return nil
	}
	return v
}

func releaseStore(env *pass.Env, parents syntax.Enclosing, es *syntax.ExprStmt) {
	a := es.X.(*syntax.Assign)
	sym := a.LHS.(*syntax.Name).Sym
	v := sym.Decl.(*syntax.LocalVar)
	if firstStore(parents, v, es) {
		return
	}
	b, i := container(parents, es)
	if b == nil {
		env.Unsupported(es, sym.Key, "store into %s outside a statement list; previous value not released", sym.Name)
		return
	}
	if i > 0 && releases(env.Conv, b.Stmts[i-1], sym) {
		return
	}
	conv := env.Conv
	var pre []syntax.Stmt
	if syntax.Mentions(a.RHS, sym) {
		tmp := &syntax.LocalVar{Type: v.Type.Clone(), Name: env.Temp(sym.Name), Init: a.RHS}
		key := tmp.Name
		if sym.Owner != nil {
			key = sym.Owner.Key + "::" + key
		}
		// bound here so the release below sees it in this run
		tmp.Sym = &syntax.Symbol{Kind: syntax.KindVariable, Name: tmp.Name, Key: key, Owner: sym.Owner, Type: tmp.Type, Decl: tmp}
		pre = append(pre, tmp)
		a.RHS = retain(conv, nameOf(tmp.Sym))
		env.Edited("materialize", a, sym.Key, "store right-hand side in "+tmp.Name)
	}
	pre = append(pre, guardedRelease(conv, nameOf(sym)))
	b.Stmts = syntax.Insert(b.Stmts, i, pre...)
	env.Edited("release", es, sym.Key, "release previous value before store")
}

// firstStore reports whether es stores into v while v still holds the null
// it was declared with: no loop encloses es below the declaring block and
// nothing on the way from the declaration to the store mentions v.
func firstStore(parents syntax.Enclosing, v *syntax.LocalVar, es *syntax.ExprStmt) bool {
	if v.Init != nil && !isNull(syntax.Unparen(v.Init)) {
		return false
	}
	decl := parents[v].(*syntax.Block)
	top := syntax.Node(es)
	for parents[top] != syntax.Node(decl) {
		top = parents[top]
		switch top.(type) {
		case nil:
			return false
		case *syntax.While, *syntax.For, *syntax.ForEach, *syntax.Do:
			return false
		}
	}
	declared := false
	for _, s := range decl.Stmts {
		if s == top {
			break
		}
		if declared && syntax.Mentions(s, v.Sym) {
			return false
		}
		if s == syntax.Stmt(v) {
			declared = true
		}
	}
	// within top, only what runs ahead of es on its own path counts
	for n := syntax.Node(es); n != top; n = parents[n] {
		p := parents[n]
		iff, _ := p.(*syntax.If)
		for _, c := range syntax.Children(p) {
			if c == n {
				break
			}
			if iff != nil && c == syntax.Node(iff.Then) {
				continue
			}
			if syntax.Mentions(c, v.Sym) {
				return false
			}
		}
	}
	return true
}

// container returns the statement list holding s and its index there,
// turning an unbraced control body into a block first.
func container(parents syntax.Enclosing, s syntax.Stmt) (*syntax.Block, int) {
	var slot *syntax.Stmt
	switch p := parents[s].(type) {
	case *syntax.Block:
		if i := slices.Index(p.Stmts, s); i >= 0 {
			return p, i
		}
		return nil, -1
	case *syntax.If:
		slot = &p.Then
		if p.Else == s {
			slot = &p.Else
		}
	case *syntax.While:
		slot = &p.Body
	case *syntax.For:
		slot = &p.Body
	case *syntax.ForEach:
		slot = &p.Body
	case *syntax.Do:
		slot = &p.Body
	case *syntax.Labeled:
		slot = &p.Body
	}
	if slot == nil || *slot != s {
		return nil, -1
	}
	return syntax.EnsureBlock(slot), 0
}
