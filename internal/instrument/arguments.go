package instrument

import (
	"refweaver/internal/frontend"
	"refweaver/internal/pass"
	"refweaver/internal/syntax"
)

// RetainArguments retains every bare reference-counted argument passed to
// a method or constructor declared in a source root, and every local that
// aliases an existing reference.
func RetainArguments(env *pass.Env) error {
	syntax.RewriteExprs(env.File, func(c *syntax.ExprCursor) {
		switch c.Role {
		case syntax.RoleArg:
			retainArgument(env, c)
		case syntax.RoleInit, syntax.RoleAssignRHS:
			retainAlias(env, c)
		}
	})
	return nil
}

// callTarget returns the callee of an argument slot's parent.
func callTarget(parent syntax.Node) (*syntax.Symbol, string, bool) {
	switch p := parent.(type) {
	case *syntax.Call:
		return p.Sym, p.Name, true
	case *syntax.New:
		return p.Sym, p.Type.String(), true
	}
	return nil, "", false
}

func retainArgument(env *pass.Env, c *syntax.ExprCursor) {
	arg, ok := c.Expr.(*syntax.Name)
	if !ok || arg.Sym == nil {
		return
	}
	switch arg.Sym.Kind {
	case syntax.KindParameter, syntax.KindVariable, syntax.KindField:
	default:
		return
	}
	conv := env.Conv
	isArray := conv.IsRefCountedArray(arg.Sym.Type)
	if !isArray && !conv.IsRefCounted(arg.Sym.Type) {
		return
	}
	target, name, ok := callTarget(c.Parent)
	if !ok || conv.IsSupportMethod(name) {
		return
	}
	if target == nil {
		env.Unresolved(c.Parent, "call target "+name)
		return
	}
	if target.Library || (target.Owner != nil && target.Owner.Library) {
		return
	}
	if isArray {
		elem := arg.Sym.Type.Elem()
		c.Replace(call(&syntax.Name{Name: elem.Name, Sym: elem.Sym}, conv.RetainAll, arg))
		env.Edited("retain-argument", arg, arg.Sym.Key, "retain array passed to "+name)
		return
	}
	c.Replace(retain(conv, arg))
	env.Edited("retain-argument", arg, arg.Sym.Key, "retain argument passed to "+name)
}

// retainAlias retains "T y = x;", "T y = a.f;" and "y = x[i];" style
// copies into locals, since the local is released at its own last use.
func retainAlias(env *pass.Env, c *syntax.ExprCursor) {
	var target *syntax.Symbol
	switch p := c.Parent.(type) {
	case *syntax.LocalVar:
		target = p.Sym
	case *syntax.Assign:
		if p.Op != "=" {
			return
		}
		if n, ok := p.LHS.(*syntax.Name); ok && n.Sym != nil && n.Sym.Kind == syntax.KindVariable {
			target = n.Sym
		}
	}
	if target == nil || !env.Conv.IsRefCounted(target.Type) {
		return
	}
	var src string
	switch x := c.Expr.(type) {
	case *syntax.Name:
		if x.Sym == nil || (!x.Sym.IsLocal() && x.Sym.Kind != syntax.KindField) {
			return
		}
		src = x.Sym.Key
	case *syntax.Select:
		if x.Sym == nil || x.Sym.Kind != syntax.KindField {
			return
		}
		src = x.Sym.Key
	case *syntax.Index:
		src = "array element"
	default:
		return
	}
	if !env.Conv.IsRefCounted(frontend.TypeOf(c.Expr)) {
		return
	}
	orig := c.Expr
	c.Replace(retain(env.Conv, orig))
	env.Edited("retain-alias", orig, target.Key, "retain copy of "+src)
}
