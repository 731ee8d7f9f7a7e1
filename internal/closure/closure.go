// Package closure finds the bindings a lambda or anonymous class captures
// from its enclosing scopes.
package closure

import (
	"fmt"
	"log/slog"
	"sort"

	"refweaver/internal/index"
	"refweaver/internal/refcount"
	"refweaver/internal/syntax"
)

// Capture is one binding referenced inside a construct but declared
// outside its span.
type Capture struct {
	ID     index.BindingID
	Symbol *syntax.Symbol
	// Spans lists every reference to the binding inside the construct.
	Spans []syntax.Span
}

// Result holds the captures of one construct, ordered by binding name.
type Result struct {
	Construct syntax.Node
	Captures  []Capture
}

// Analyze builds a local index over construct and checks every reference
// against the whole-program definitions. References without a global
// definition are skipped, never guessed.
func Analyze(construct syntax.Node, path string, global *index.Index, log *slog.Logger) (*Result, error) {
	if log == nil {
		log = slog.Default()
	}
	local, err := index.Subtree(construct, path, index.Options{Log: log})
	if err != nil {
		return nil, fmt.Errorf("index construct: %w", err)
	}
	span := construct.Span()
	res := &Result{Construct: construct}
	for _, id := range local.Referenced() {
		def, ok := global.Definition(id)
		if !ok {
			log.Debug("capture check skipped unindexed binding", "file", path, "binding", id.String())
			continue
		}
		if span.Contains(def.Span) {
			continue
		}
		c := Capture{ID: id, Symbol: index.SymbolOf(global.Node(id))}
		for _, ref := range local.References(id) {
			c.Spans = append(c.Spans, ref.Span)
		}
		res.Captures = append(res.Captures, c)
	}
	sort.SliceStable(res.Captures, func(i, j int) bool {
		a, b := res.Captures[i], res.Captures[j]
		if a.Symbol != nil && b.Symbol != nil && a.Symbol.Name != b.Symbol.Name {
			return a.Symbol.Name < b.Symbol.Name
		}
		return a.ID.Path < b.ID.Path
	})
	return res, nil
}

// Owned returns the captured locals and parameters of reference-counted,
// non-array type: the bindings a wrapper has to retain.
func (r *Result) Owned(conv refcount.Conventions) []Capture {
	var out []Capture
	for _, c := range r.Captures {
		if !c.Symbol.IsLocal() {
			continue
		}
		if conv.IsRefCounted(c.Symbol.Type) {
			out = append(out, c)
		}
	}
	return out
}

// Has reports whether id is captured.
func (r *Result) Has(id index.BindingID) bool {
	for _, c := range r.Captures {
		if c.ID == id {
			return true
		}
	}
	return false
}
