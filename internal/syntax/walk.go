package syntax

// Inspect traverses the tree rooted at n in depth-first order, calling f
// for each node. If f returns false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || isNilNode(n) {
		return
	}
	if !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if c != nil && !isNilNode(c) {
			out = append(out, c)
		}
	}
	switch n := n.(type) {
	case *File:
		for _, t := range n.Types {
			add(t)
		}
	case *TypeDecl:
		for _, m := range n.Members {
			add(m)
		}
	case *FieldDecl:
		add(n.Init)
	case *MethodDecl:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	case *Block:
		for _, s := range n.Stmts {
			add(s)
		}
	case *LocalVar:
		add(n.Init)
	case *ExprStmt:
		add(n.X)
	case *If:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *While:
		add(n.Cond)
		add(n.Body)
	case *For:
		for _, s := range n.Init {
			add(s)
		}
		add(n.Cond)
		for _, u := range n.Update {
			add(u)
		}
		add(n.Body)
	case *ForEach:
		add(n.Var)
		add(n.Iter)
		add(n.Body)
	case *Do:
		add(n.Body)
		add(n.Cond)
	case *Try:
		for _, r := range n.Resources {
			add(r)
		}
		add(n.Body)
		for _, c := range n.Catches {
			add(c)
		}
		add(n.Finally)
	case *Catch:
		add(n.Param)
		add(n.Body)
	case *Switch:
		add(n.Tag)
		for _, c := range n.Cases {
			add(c)
		}
	case *Case:
		for _, l := range n.Labels {
			add(l)
		}
		add(n.Body)
	case *Sync:
		add(n.Lock)
		add(n.Body)
	case *Labeled:
		add(n.Body)
	case *Return:
		add(n.Result)
	case *Throw:
		add(n.X)
	case *Select:
		add(n.X)
	case *Call:
		add(n.Recv)
		for _, a := range n.Args {
			add(a)
		}
	case *New:
		for _, a := range n.Args {
			add(a)
		}
		add(n.Body)
	case *NewArray:
		for _, l := range n.Len {
			add(l)
		}
		for _, e := range n.Elems {
			add(e)
		}
	case *Assign:
		add(n.LHS)
		add(n.RHS)
	case *Binary:
		add(n.X)
		add(n.Y)
	case *Unary:
		add(n.X)
	case *Paren:
		add(n.X)
	case *Cast:
		add(n.X)
	case *Cond:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *Index:
		add(n.X)
		add(n.Index)
	case *InstanceOf:
		add(n.X)
	case *Lambda:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	}
	return out
}

// isNilNode catches typed nil pointers stored in interfaces.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Block:
		return n == nil
	case *TypeDecl:
		return n == nil
	case *LocalVar:
		return n == nil
	}
	return false
}

// Mentions reports whether sym is referenced or declared anywhere in n.
// Qualified chains count only at their root, matching how references are
// indexed.
func Mentions(n Node, sym *Symbol) bool {
	if sym == nil {
		return false
	}
	found := false
	Inspect(n, func(c Node) bool {
		if found {
			return false
		}
		switch c := c.(type) {
		case *Name:
			found = c.Sym == sym
		case *Select:
			if c.Sym == sym && isImplicitRoot(c.X) {
				found = true
			}
		case *LocalVar:
			found = c.Sym == sym
		case *Param:
			found = c.Sym == sym
		}
		return !found
	})
	return found
}

// isImplicitRoot reports whether a select is rooted at this, so that
// this.f counts as a mention of f.
func isImplicitRoot(x Expr) bool {
	_, ok := x.(*This)
	return ok
}

// Unparen strips any number of enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}
		e = p.X
	}
}

// Root returns the leftmost expression of a select chain.
func Root(e Expr) Expr {
	for {
		s, ok := e.(*Select)
		if !ok {
			return e
		}
		e = s.X
	}
}
