package instrument

import (
	"strings"

	"refweaver/internal/refcount"
	"refweaver/internal/syntax"
)

func nameOf(sym *syntax.Symbol) *syntax.Name {
	return &syntax.Name{Name: sym.Name, Sym: sym}
}

func ident(name string) *syntax.Name {
	return &syntax.Name{Name: name}
}

func call(recv syntax.Expr, method string, args ...syntax.Expr) *syntax.Call {
	return &syntax.Call{Recv: recv, Name: method, Args: args}
}

func exprStmt(e syntax.Expr) *syntax.ExprStmt {
	return &syntax.ExprStmt{X: e}
}

func null() *syntax.Lit {
	return &syntax.Lit{Kind: syntax.LitNull, Value: "null"}
}

func notNull(x syntax.Expr) *syntax.Binary {
	return &syntax.Binary{Op: "!=", X: x, Y: null()}
}

// release builds "x.release();".
func release(conv refcount.Conventions, x syntax.Expr) syntax.Stmt {
	return exprStmt(call(x, conv.Release))
}

// guardedRelease builds "if (x != null) x.release();".
func guardedRelease(conv refcount.Conventions, x syntax.Expr) syntax.Stmt {
	return &syntax.If{Cond: notNull(x), Then: release(conv, syntax.CloneExpr(x))}
}

// retain builds "x.retain()".
func retain(conv refcount.Conventions, x syntax.Expr) *syntax.Call {
	return call(x, conv.Retain)
}

// releasedRef returns the receiver released by s when s is either
// "x.release();" or "if (x != null) x.release();".
func releasedRef(conv refcount.Conventions, s syntax.Stmt) syntax.Expr {
	switch s := s.(type) {
	case *syntax.ExprStmt:
		if conv.IsRelease(s.X) {
			return s.X.(*syntax.Call).Recv
		}
	case *syntax.If:
		if s.Else != nil {
			return nil
		}
		cond, ok := syntax.Unparen(s.Cond).(*syntax.Binary)
		if !ok || cond.Op != "!=" {
			return nil
		}
		if lit, ok := cond.Y.(*syntax.Lit); !ok || lit.Kind != syntax.LitNull {
			return nil
		}
		then := s.Then
		if b, ok := then.(*syntax.Block); ok && len(b.Stmts) == 1 {
			then = b.Stmts[0]
		}
		if x := releasedRef(conv, then); x != nil && syntax.SameRef(x, cond.X) {
			return x
		}
	}
	return nil
}

// releases reports whether s releases the binding sym.
func releases(conv refcount.Conventions, s syntax.Stmt, sym *syntax.Symbol) bool {
	x := releasedRef(conv, s)
	if x == nil {
		return false
	}
	switch x := syntax.Unparen(x).(type) {
	case *syntax.Name:
		return x.Sym == sym
	case *syntax.Select:
		_, isThis := x.X.(*syntax.This)
		return isThis && x.Sym == sym
	}
	return false
}

const overrideAnnotation = "@Override"

// typeRefFor names a declaration the way code inside it refers to itself.
func typeRefFor(t *syntax.TypeDecl, withParams bool) *syntax.TypeRef {
	ref := &syntax.TypeRef{Name: t.Name, Sym: t.Sym}
	if withParams {
		for _, p := range t.TypeParams {
			name, _, _ := strings.Cut(p, " ")
			ref.Args = append(ref.Args, &syntax.TypeRef{Name: name})
		}
	}
	return ref
}
