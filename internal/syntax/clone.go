package syntax

// CloneExpr deep-copies an expression so the copy can be placed in a
// second position of the tree. Symbols are shared; anonymous class bodies
// and lambda bodies are shared too, since passes never clone those.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *Name:
		c := *e
		return &c
	case *Select:
		c := *e
		c.X = CloneExpr(e.X)
		return &c
	case *This:
		c := *e
		return &c
	case *Super:
		c := *e
		return &c
	case *Call:
		c := *e
		c.Recv = CloneExpr(e.Recv)
		c.Args = cloneExprs(e.Args)
		return &c
	case *New:
		c := *e
		c.Type = e.Type.Clone()
		c.Args = cloneExprs(e.Args)
		return &c
	case *NewArray:
		c := *e
		c.Type = e.Type.Clone()
		c.Len = cloneExprs(e.Len)
		c.Elems = cloneExprs(e.Elems)
		return &c
	case *Assign:
		c := *e
		c.LHS, c.RHS = CloneExpr(e.LHS), CloneExpr(e.RHS)
		return &c
	case *Binary:
		c := *e
		c.X, c.Y = CloneExpr(e.X), CloneExpr(e.Y)
		return &c
	case *Unary:
		c := *e
		c.X = CloneExpr(e.X)
		return &c
	case *Lit:
		c := *e
		return &c
	case *Paren:
		c := *e
		c.X = CloneExpr(e.X)
		return &c
	case *Cast:
		c := *e
		c.Type = e.Type.Clone()
		c.X = CloneExpr(e.X)
		return &c
	case *Cond:
		c := *e
		c.Cond, c.Then, c.Else = CloneExpr(e.Cond), CloneExpr(e.Then), CloneExpr(e.Else)
		return &c
	case *Index:
		c := *e
		c.X, c.Index = CloneExpr(e.X), CloneExpr(e.Index)
		return &c
	case *InstanceOf:
		c := *e
		c.X = CloneExpr(e.X)
		c.Type = e.Type.Clone()
		return &c
	case *Lambda:
		c := *e
		return &c
	}
	return e
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = CloneExpr(e)
	}
	return out
}

// SameRef reports whether a and b are the same name, this.f or a.f chain
// referring to the same bindings.
func SameRef(a, b Expr) bool {
	a, b = Unparen(a), Unparen(b)
	switch a := a.(type) {
	case *Name:
		bn, ok := b.(*Name)
		if !ok {
			// f and this.f name the same field
			if bs, ok := b.(*Select); ok {
				_, isThis := bs.X.(*This)
				return isThis && a.Sym != nil && a.Sym == bs.Sym
			}
			return false
		}
		if a.Sym != nil || bn.Sym != nil {
			return a.Sym == bn.Sym
		}
		return a.Name == bn.Name
	case *Select:
		if bn, ok := b.(*Name); ok {
			return SameRef(bn, a)
		}
		bs, ok := b.(*Select)
		if !ok || a.Sel != bs.Sel {
			return false
		}
		if a.Sym != nil && bs.Sym != nil && a.Sym != bs.Sym {
			return false
		}
		return SameRef(a.X, bs.X)
	case *This:
		bt, ok := b.(*This)
		return ok && a.Qualifier == bt.Qualifier
	}
	return false
}
