// Package lifetime computes where a binding is used for the last time on
// each control path leaving a block.
package lifetime

import (
	"refweaver/internal/syntax"
)

// Mention is a candidate last use of a binding: statement Index of Block.
// When the statement is the unbraced body of an if, Block is nil and Slot
// points at the branch so a caller can turn it into a block first.
type Mention struct {
	Block *syntax.Block
	Slot  *syntax.Stmt
	Index int
	// IsReturn marks a return statement that references the binding.
	IsReturn bool
	// IsComplexReturn marks a return whose value is not the bare binding.
	IsComplexReturn bool
	// Terminal marks a last use on a path that leaves the block early, so
	// the release belongs right after the statement and nothing follows on
	// that path.
	Terminal bool
}

// Stmt returns the mentioned statement.
func (m Mention) Stmt() syntax.Stmt {
	if m.Block == nil {
		return *m.Slot
	}
	return m.Block.Stmts[m.Index]
}

// Resolve returns the block holding the statement, wrapping an unbraced
// branch into a block first.
func (m *Mention) Resolve() (*syntax.Block, int) {
	if m.Block == nil {
		m.Block = syntax.EnsureBlock(m.Slot)
		m.Slot = nil
		m.Index = 0
	}
	return m.Block, m.Index
}

// LastMentions returns the last mentions of sym in b, in source order.
//
// Straight-line code keeps only the lexically last statement that mentions
// sym. An if statement is searched branch by branch: returns that mention
// sym are kept as they are, and so is every last use in a branch that cannot
// complete normally. A last use in a branch that falls through, or a
// mention in the condition, makes the if itself the tracked mention.
// Loops and the other compound statements contribute the returns and
// early-exit uses inside their bodies, and are themselves tracked when
// they mention sym and can complete normally.
//
// An exit path that never mentions sym gets no mention of its own.
func LastMentions(b *syntax.Block, sym *syntax.Symbol) []Mention {
	if b == nil || sym == nil {
		return nil
	}
	return scan(b, nil, b.Stmts, sym)
}

// scan walks stmts, which belong to blk or, for an unbraced branch, to slot.
func scan(blk *syntax.Block, slot *syntax.Stmt, stmts []syntax.Stmt, sym *syntax.Symbol) []Mention {
	var out []Mention
	var tracked *Mention
	at := func(i int) Mention {
		if blk == nil {
			return Mention{Slot: slot, Index: i}
		}
		return Mention{Block: blk, Index: i}
	}
	for i, s := range stmts {
		switch s := s.(type) {
		case *syntax.If:
			nested, fallsThrough := branches(s, sym)
			out = append(out, nested...)
			if fallsThrough || syntax.Mentions(s.Cond, sym) {
				m := at(i)
				tracked = &m
			}
			continue
		case *syntax.Block:
			sub := scan(s, nil, s.Stmts, sym)
			completes := CanCompleteNormally(s)
			hit := false
			for _, m := range sub {
				if m.IsReturn || m.Terminal || !completes {
					m.Terminal = m.Terminal || !m.IsReturn
					out = append(out, m)
					continue
				}
				hit = true
			}
			if hit {
				m := at(i)
				tracked = &m
			}
			continue
		}
		if exits, ok := nested(s, sym); ok {
			out = append(out, exits...)
			if syntax.Mentions(s, sym) && CanCompleteNormally(s) {
				m := at(i)
				tracked = &m
			}
			continue
		}
		if !syntax.Mentions(s, sym) {
			continue
		}
		m := at(i)
		if r, ok := s.(*syntax.Return); ok {
			m.IsReturn = true
			m.IsComplexReturn = !isBare(r.Result, sym)
		}
		tracked = &m
	}
	if tracked != nil {
		out = append(out, *tracked)
	}
	return out
}

// branches collects the kept mentions of both arms of an if, and reports
// whether a fall-through arm mentions sym.
func branches(s *syntax.If, sym *syntax.Symbol) ([]Mention, bool) {
	var out []Mention
	fallsThrough := false
	for _, slot := range []*syntax.Stmt{&s.Then, &s.Else} {
		if *slot == nil {
			continue
		}
		var sub []Mention
		if b, ok := (*slot).(*syntax.Block); ok {
			sub = scan(b, nil, b.Stmts, sym)
		} else {
			sub = scan(nil, slot, []syntax.Stmt{*slot}, sym)
		}
		completes := CanCompleteNormally(*slot)
		for _, m := range sub {
			switch {
			case m.IsReturn:
				out = append(out, m)
			case m.Terminal || !completes:
				m.Terminal = true
				out = append(out, m)
			default:
				fallsThrough = true
			}
		}
	}
	return out, fallsThrough
}

// nested collects the mentions inside a loop, try, switch, synchronized or
// labeled statement that leave the method: returns, and last uses right
// before a return or throw. A body holding break or continue only yields
// its returns, since a jump may carry control back to a later use. It
// reports false for statements without nested bodies.
func nested(s syntax.Stmt, sym *syntax.Symbol) ([]Mention, bool) {
	var out []Mention
	slot := func(body *syntax.Stmt) {
		if *body == nil {
			return
		}
		var sub []Mention
		if b, ok := (*body).(*syntax.Block); ok {
			sub = scan(b, nil, b.Stmts, sym)
		} else {
			sub = scan(nil, body, []syntax.Stmt{*body}, sym)
		}
		out = append(out, leaving(sub, *body)...)
	}
	block := func(b *syntax.Block) {
		if b != nil {
			out = append(out, leaving(scan(b, nil, b.Stmts, sym), b)...)
		}
	}
	switch s := s.(type) {
	case *syntax.While:
		slot(&s.Body)
	case *syntax.For:
		slot(&s.Body)
	case *syntax.ForEach:
		slot(&s.Body)
	case *syntax.Do:
		slot(&s.Body)
	case *syntax.Labeled:
		slot(&s.Body)
	case *syntax.Sync:
		block(s.Body)
	case *syntax.Try:
		// a finally block runs on every exit, so callers handle bindings
		// it mentions separately
		block(s.Body)
		for _, c := range s.Catches {
			block(c.Body)
		}
	case *syntax.Switch:
		for _, c := range s.Cases {
			block(c.Body)
		}
	default:
		return nil, false
	}
	return out, true
}

func leaving(sub []Mention, body syntax.Stmt) []Mention {
	jumps := hasJump(body)
	completes := CanCompleteNormally(body)
	var out []Mention
	for _, m := range sub {
		switch {
		case m.IsReturn:
			out = append(out, m)
		case jumps:
		case m.Terminal || !completes:
			m.Terminal = true
			out = append(out, m)
		}
	}
	return out
}

// hasJump reports whether s holds a break or continue outside any nested
// lambda or class.
func hasJump(s syntax.Stmt) bool {
	found := false
	syntax.Inspect(s, func(n syntax.Node) bool {
		switch n.(type) {
		case *syntax.Branch:
			found = true
		case *syntax.Lambda, *syntax.TypeDecl:
			return false
		}
		return !found
	})
	return found
}

func isBare(e syntax.Expr, sym *syntax.Symbol) bool {
	n, ok := syntax.Unparen(e).(*syntax.Name)
	return ok && n.Sym == sym
}

// CanCompleteNormally reports whether control can reach the statement
// after s.
func CanCompleteNormally(s syntax.Stmt) bool {
	switch s := s.(type) {
	case nil:
		return true
	case *syntax.Return, *syntax.Throw, *syntax.Branch:
		return false
	case *syntax.Block:
		for _, st := range s.Stmts {
			if !CanCompleteNormally(st) {
				return false
			}
		}
		return true
	case *syntax.If:
		if s.Else == nil {
			return true
		}
		return CanCompleteNormally(s.Then) || CanCompleteNormally(s.Else)
	case *syntax.While:
		return !isTrue(s.Cond) || breaks(s.Body)
	case *syntax.For:
		return (s.Cond != nil && !isTrue(s.Cond)) || breaks(s.Body)
	case *syntax.Do:
		return breaks(s.Body) || (!isTrue(s.Cond) && (CanCompleteNormally(s.Body) || hasJump(s.Body)))
	case *syntax.Sync:
		return CanCompleteNormally(s.Body)
	case *syntax.Labeled:
		return CanCompleteNormally(s.Body) || labelBreaks(s.Body, s.Label)
	case *syntax.Try:
		if s.Finally != nil && !CanCompleteNormally(s.Finally) {
			return false
		}
		if CanCompleteNormally(s.Body) {
			return true
		}
		for _, c := range s.Catches {
			if CanCompleteNormally(c.Body) {
				return true
			}
		}
		return false
	case *syntax.Switch:
		return switchCompletes(s)
	}
	return true
}

// switchCompletes reports whether control can leave a switch normally: it
// can unless there is a default, no case breaks out, and every arrow body
// or the last colon body cannot complete.
func switchCompletes(s *syntax.Switch) bool {
	hasDefault := false
	for _, c := range s.Cases {
		hasDefault = hasDefault || c.Default
		if breaks(c.Body) {
			return true
		}
	}
	if !hasDefault || len(s.Cases) == 0 {
		return true
	}
	if !s.Arrow {
		return CanCompleteNormally(s.Cases[len(s.Cases)-1].Body)
	}
	for _, c := range s.Cases {
		if CanCompleteNormally(c.Body) {
			return true
		}
	}
	return false
}

// labelBreaks reports whether a break naming label occurs in s.
func labelBreaks(s syntax.Stmt, label string) bool {
	found := false
	syntax.Inspect(s, func(n syntax.Node) bool {
		if b, ok := n.(*syntax.Branch); ok && b.Tok == "break" && b.Label == label {
			found = true
		}
		return !found
	})
	return found
}

func isTrue(e syntax.Expr) bool {
	l, ok := syntax.Unparen(e).(*syntax.Lit)
	return ok && l.Kind == syntax.LitBool && l.Value == "true"
}

// breaks reports whether an unlabeled break exits the loop whose body is s.
func breaks(s syntax.Stmt) bool {
	found := false
	var visit func(syntax.Node) bool
	visit = func(n syntax.Node) bool {
		if found {
			return false
		}
		switch n := n.(type) {
		case *syntax.Branch:
			if n.Tok == "break" {
				found = true
			}
		case *syntax.While, *syntax.For, *syntax.ForEach, *syntax.Do, *syntax.Switch,
			*syntax.Lambda, *syntax.TypeDecl:
			// breaks inside belong to the nested construct
			return n == syntax.Node(s)
		}
		return true
	}
	syntax.Inspect(s, visit)
	return found
}
