package instrument

import (
	"errors"
	"strings"

	"refweaver/internal/closure"
	"refweaver/internal/models"
	"refweaver/internal/pass"
	"refweaver/internal/syntax"
)

var errNoIndex = errors.New("capture wrapping needs the symbol index")

// WrapCaptures ties every reference-counted local or parameter a lambda
// captures to the lambda:
//
//	RefCapture.wrap(() -> use(a), a.retain())
//
// Existing wrappers are rebuilt when their capture list is stale and
// removed when nothing is captured any more. Anonymous classes are only
// reported.
func WrapCaptures(env *pass.Env) error {
	if env.Index == nil {
		return errNoIndex
	}
	syntax.RewriteExprs(env.File, func(c *syntax.ExprCursor) {
		switch x := c.Expr.(type) {
		case *syntax.Lambda:
			if wrapped(env, c) {
				return
			}
			caps, ok := owned(env, x)
			if !ok || len(caps) == 0 {
				return
			}
			c.Replace(wrap(env, x, caps))
			env.Edited("wrap-capture", x, lambdaKey(x), "wrap lambda capturing "+names(caps))
		case *syntax.Call:
			if env.Conv.IsWrap(x) {
				rewrap(env, c, x)
			}
		case *syntax.New:
			if x.Body != nil {
				reportAnonymous(env, x)
			}
		}
	})
	return nil
}

// wrapped reports whether the lambda at c is already the first argument
// of a wrapper call.
func wrapped(env *pass.Env, c *syntax.ExprCursor) bool {
	call, ok := c.Parent.(*syntax.Call)
	return ok && c.Role == syntax.RoleArg && env.Conv.IsWrap(call) && call.Args[0] == c.Expr
}

func owned(env *pass.Env, construct syntax.Node) ([]closure.Capture, bool) {
	res, err := closure.Analyze(construct, env.File.Path, env.Index, env.Log)
	if err != nil {
		env.Report(models.KindInstrumentFailure, models.SeverityHigh, construct, "", "capture analysis failed: %v", err)
		return nil, false
	}
	return res.Owned(env.Conv), true
}

func wrap(env *pass.Env, l *syntax.Lambda, caps []closure.Capture) *syntax.Call {
	args := []syntax.Expr{l}
	for _, c := range caps {
		args = append(args, retain(env.Conv, nameOf(c.Symbol)))
	}
	return call(ident(env.Conv.Wrapper), env.Conv.Wrap, args...)
}

func lambdaKey(l *syntax.Lambda) string {
	if l.Sym == nil {
		return ""
	}
	return l.Sym.Key
}

func names(caps []closure.Capture) string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.Symbol.Name
	}
	return strings.Join(out, ", ")
}

// rewrap brings an existing wrapper in line with what its lambda captures.
func rewrap(env *pass.Env, c *syntax.ExprCursor, w *syntax.Call) {
	l := w.Args[0].(*syntax.Lambda)
	caps, ok := owned(env, l)
	if !ok {
		return
	}
	if len(caps) == 0 {
		c.Replace(l)
		env.Edited("unwrap-capture", w, lambdaKey(l), "lambda no longer captures references")
		return
	}
	if sameCaptures(env, w.Args[1:], caps) {
		return
	}
	c.Replace(wrap(env, l, caps))
	env.Edited("wrap-capture", w, lambdaKey(l), "refresh captures: "+names(caps))
}

func sameCaptures(env *pass.Env, args []syntax.Expr, caps []closure.Capture) bool {
	if len(args) != len(caps) {
		return false
	}
	for i, a := range args {
		if !env.Conv.IsRetain(a) {
			return false
		}
		n, ok := syntax.Unparen(a.(*syntax.Call).Recv).(*syntax.Name)
		if !ok || n.Sym != caps[i].Symbol {
			return false
		}
	}
	return true
}

func reportAnonymous(env *pass.Env, n *syntax.New) {
	caps, ok := owned(env, n.Body)
	if !ok {
		return
	}
	for _, c := range caps {
		env.Report(models.KindAnonymousCapture, models.SeverityMedium, n, c.Symbol.Key,
			"anonymous %s captures %s; its lifetime is not managed", n.Type.String(), c.Symbol.Name)
	}
}
