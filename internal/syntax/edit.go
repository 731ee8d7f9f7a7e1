package syntax

// Role describes the syntactic slot an expression occupies in its parent.
type Role uint8

const (
	RoleOther Role = iota
	RoleArg
	RoleStmt
	RoleAssignRHS
	RoleAssignLHS
	RoleInit
	RoleReturn
	RoleArrayElem
	RoleRecv
	RoleCond
	RoleOperand
	RoleLambdaBody
)

func (r Role) String() string {
	switch r {
	case RoleArg:
		return "argument"
	case RoleStmt:
		return "statement"
	case RoleAssignRHS:
		return "assignment value"
	case RoleAssignLHS:
		return "assignment target"
	case RoleInit:
		return "initializer"
	case RoleReturn:
		return "return value"
	case RoleArrayElem:
		return "array element"
	case RoleRecv:
		return "receiver"
	case RoleCond:
		return "condition"
	case RoleOperand:
		return "operand"
	case RoleLambdaBody:
		return "lambda body"
	default:
		return "expression"
	}
}

// ExprCursor points at one expression slot during RewriteExprs.
type ExprCursor struct {
	Expr   Expr
	Parent Node
	Role   Role
	set    func(Expr)
}

// Replace stores e into the slot the cursor points at.
func (c *ExprCursor) Replace(e Expr) {
	c.set(e)
	c.Expr = e
}

// RewriteExprs visits every expression slot below n in post-order, so a
// callback may replace the expression it is handed without disturbing the
// traversal of its children.
func RewriteExprs(n Node, f func(c *ExprCursor)) {
	if n == nil || isNilNode(n) {
		return
	}
	slot := func(parent Node, role Role, e *Expr) {
		if *e == nil {
			return
		}
		RewriteExprs(*e, f)
		f(&ExprCursor{Expr: *e, Parent: parent, Role: role, set: func(x Expr) { *e = x }})
	}
	slots := func(parent Node, role Role, es []Expr) {
		for i := range es {
			slot(parent, role, &es[i])
		}
	}
	switch n := n.(type) {
	case *File:
		for _, t := range n.Types {
			RewriteExprs(t, f)
		}
	case *TypeDecl:
		for _, m := range n.Members {
			RewriteExprs(m, f)
		}
	case *FieldDecl:
		slot(n, RoleInit, &n.Init)
	case *MethodDecl:
		RewriteExprs(n.Body, f)
	case *Block:
		for _, s := range n.Stmts {
			RewriteExprs(s, f)
		}
	case *LocalVar:
		slot(n, RoleInit, &n.Init)
	case *ExprStmt:
		slot(n, RoleStmt, &n.X)
	case *If:
		slot(n, RoleCond, &n.Cond)
		RewriteExprs(n.Then, f)
		RewriteExprs(n.Else, f)
	case *While:
		slot(n, RoleCond, &n.Cond)
		RewriteExprs(n.Body, f)
	case *For:
		for _, s := range n.Init {
			RewriteExprs(s, f)
		}
		slot(n, RoleCond, &n.Cond)
		slots(n, RoleStmt, n.Update)
		RewriteExprs(n.Body, f)
	case *ForEach:
		slot(n, RoleOperand, &n.Iter)
		RewriteExprs(n.Body, f)
	case *Do:
		RewriteExprs(n.Body, f)
		slot(n, RoleCond, &n.Cond)
	case *Try:
		// resources are closed by the statement, not owned by a local
		for _, r := range n.Resources {
			slot(r, RoleOperand, &r.Init)
		}
		RewriteExprs(n.Body, f)
		for _, c := range n.Catches {
			RewriteExprs(c.Body, f)
		}
		RewriteExprs(n.Finally, f)
	case *Switch:
		slot(n, RoleOperand, &n.Tag)
		for _, c := range n.Cases {
			slots(c, RoleOther, c.Labels)
			RewriteExprs(c.Body, f)
		}
	case *Sync:
		slot(n, RoleOperand, &n.Lock)
		RewriteExprs(n.Body, f)
	case *Labeled:
		RewriteExprs(n.Body, f)
	case *Return:
		slot(n, RoleReturn, &n.Result)
	case *Throw:
		slot(n, RoleOperand, &n.X)
	case *Select:
		slot(n, RoleRecv, &n.X)
	case *Call:
		slot(n, RoleRecv, &n.Recv)
		slots(n, RoleArg, n.Args)
	case *New:
		slots(n, RoleArg, n.Args)
		RewriteExprs(n.Body, f)
	case *NewArray:
		slots(n, RoleOperand, n.Len)
		slots(n, RoleArrayElem, n.Elems)
	case *Assign:
		slot(n, RoleAssignLHS, &n.LHS)
		slot(n, RoleAssignRHS, &n.RHS)
	case *Binary:
		slot(n, RoleOperand, &n.X)
		slot(n, RoleOperand, &n.Y)
	case *Unary:
		slot(n, RoleOperand, &n.X)
	case *Paren:
		slot(n, RoleOperand, &n.X)
	case *Cast:
		slot(n, RoleOperand, &n.X)
	case *Cond:
		slot(n, RoleCond, &n.Cond)
		slot(n, RoleOperand, &n.Then)
		slot(n, RoleOperand, &n.Else)
	case *Index:
		slot(n, RoleOperand, &n.X)
		slot(n, RoleOperand, &n.Index)
	case *InstanceOf:
		slot(n, RoleOperand, &n.X)
	case *Lambda:
		switch body := n.Body.(type) {
		case *Block:
			RewriteExprs(body, f)
		case Expr:
			RewriteExprs(body, f)
			f(&ExprCursor{Expr: body, Parent: n, Role: RoleLambdaBody, set: func(x Expr) { n.Body = x }})
		}
	}
}

// EnsureBlock wraps the statement stored in *s into a block when it is not
// one already and returns the block.
func EnsureBlock(s *Stmt) *Block {
	if b, ok := (*s).(*Block); ok && b != nil {
		return b
	}
	b := &Block{}
	if *s != nil {
		b.Loc = (*s).Span()
		b.Stmts = []Stmt{*s}
	}
	*s = b
	return b
}

// Insert returns stmts with extra inserted before index i.
func Insert(stmts []Stmt, i int, extra ...Stmt) []Stmt {
	out := make([]Stmt, 0, len(stmts)+len(extra))
	out = append(out, stmts[:i]...)
	out = append(out, extra...)
	return append(out, stmts[i:]...)
}

// Blocks calls f for every block below n, outermost first. The callback may
// edit the statement list of the block it is handed.
func Blocks(n Node, f func(b *Block)) {
	Inspect(n, func(c Node) bool {
		if b, ok := c.(*Block); ok {
			f(b)
		}
		return true
	})
}

// Enclosing maps nodes to their parents for lookups during a pass.
type Enclosing map[Node]Node

// Parents builds the parent map of the tree rooted at n.
func Parents(n Node) Enclosing {
	m := make(Enclosing)
	var visit func(Node)
	visit = func(p Node) {
		for _, c := range Children(p) {
			m[c] = p
			visit(c)
		}
	}
	visit(n)
	return m
}

// Func returns the nearest enclosing method or lambda of n.
func (e Enclosing) Func(n Node) Node {
	for p := e[n]; p != nil; p = e[p] {
		switch p.(type) {
		case *MethodDecl, *Lambda:
			return p
		}
	}
	return nil
}

// Type returns the nearest enclosing type declaration of n.
func (e Enclosing) Type(n Node) *TypeDecl {
	for p := e[n]; p != nil; p = e[p] {
		if t, ok := p.(*TypeDecl); ok {
			return t
		}
	}
	return nil
}
