// Package index builds the whole-program symbol index: where every binding
// is defined and every place it is referenced, each with its lexical
// context.
package index

import (
	"fmt"
	"sort"
	"strings"

	"refweaver/internal/syntax"
)

// BindingID is the canonical identity of a declaration.
type BindingID struct {
	Path string
	Kind syntax.SymbolKind
}

// IDOf derives the identity of a resolved symbol.
func IDOf(sym *syntax.Symbol) BindingID {
	return BindingID{Path: sym.Key, Kind: sym.Kind}
}

func (id BindingID) String() string {
	return id.Kind.String() + " " + id.Path
}

// ContextEntry is one enclosing construct.
type ContextEntry struct {
	ID   BindingID
	Span syntax.Span
}

// ContextLocation is a node span plus its enclosing constructs, outermost
// first.
type ContextLocation struct {
	Span    syntax.Span
	Context []ContextEntry
}

func (l ContextLocation) String() string {
	parts := make([]string, 0, len(l.Context)+1)
	for _, c := range l.Context {
		parts = append(parts, c.ID.Path)
	}
	parts = append(parts, l.Span.Start.String())
	return strings.Join(parts, " > ")
}

// Index maps bindings to their definitions and references. It is built
// once and only read afterwards.
type Index struct {
	defs  map[BindingID]ContextLocation
	nodes map[BindingID]syntax.Node
	refs  map[BindingID][]ContextLocation
	files map[syntax.FileID]string
}

func newIndex() *Index {
	return &Index{
		defs:  make(map[BindingID]ContextLocation),
		nodes: make(map[BindingID]syntax.Node),
		refs:  make(map[BindingID][]ContextLocation),
		files: make(map[syntax.FileID]string),
	}
}

// Definition returns where id is declared.
func (ix *Index) Definition(id BindingID) (ContextLocation, bool) {
	loc, ok := ix.defs[id]
	return loc, ok
}

// Node returns the declaring node of id.
func (ix *Index) Node(id BindingID) syntax.Node {
	return ix.nodes[id]
}

// References returns every indexed reference to id in discovery order.
func (ix *Index) References(id BindingID) []ContextLocation {
	return ix.refs[id]
}

// Path returns the file path of a span's file.
func (ix *Index) Path(f syntax.FileID) string {
	return ix.files[f]
}

// Len returns the number of definitions.
func (ix *Index) Len() int { return len(ix.defs) }

// Defined returns every defined binding in path order.
func (ix *Index) Defined() []BindingID {
	ids := make([]BindingID, 0, len(ix.defs))
	for id := range ix.defs {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Referenced returns every referenced binding in path order.
func (ix *Index) Referenced() []BindingID {
	ids := make([]BindingID, 0, len(ix.refs))
	for id := range ix.refs {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []BindingID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Path != ids[j].Path {
			return ids[i].Path < ids[j].Path
		}
		return ids[i].Kind < ids[j].Kind
	})
}

// DuplicateDefinitionError reports two distinct declarations that resolve
// to the same binding. The index can no longer be trusted, so it is fatal.
type DuplicateDefinitionError struct {
	ID         BindingID
	First      ContextLocation
	FirstPath  string
	Second     ContextLocation
	SecondPath string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("duplicate definition of %s: %s:%s and %s:%s",
		e.ID, e.FirstPath, e.First.Span.Start, e.SecondPath, e.Second.Span.Start)
}

func (ix *Index) define(id BindingID, n syntax.Node, loc ContextLocation) error {
	if prev, ok := ix.nodes[id]; ok {
		if prev == n {
			return nil
		}
		return &DuplicateDefinitionError{
			ID:         id,
			First:      ix.defs[id],
			FirstPath:  ix.files[ix.defs[id].Span.File],
			Second:     loc,
			SecondPath: ix.files[loc.Span.File],
		}
	}
	ix.defs[id] = loc
	ix.nodes[id] = n
	return nil
}

// Merge combines partial indices. Two parts defining the same binding
// with different nodes fail with *DuplicateDefinitionError, exactly as a
// single build would.
func Merge(parts ...*Index) (*Index, error) {
	out := newIndex()
	for _, p := range parts {
		if p == nil {
			continue
		}
		for f, path := range p.files {
			out.files[f] = path
		}
	}
	for _, p := range parts {
		if p == nil {
			continue
		}
		for _, id := range p.Defined() {
			if err := out.define(id, p.nodes[id], p.defs[id]); err != nil {
				return nil, err
			}
		}
		for id, locs := range p.refs {
			out.refs[id] = append(out.refs[id], locs...)
		}
	}
	return out, nil
}

// SymbolOf returns the symbol a declaring node introduces.
func SymbolOf(n syntax.Node) *syntax.Symbol {
	switch n := n.(type) {
	case *syntax.TypeDecl:
		return n.Sym
	case *syntax.FieldDecl:
		return n.Sym
	case *syntax.MethodDecl:
		return n.Sym
	case *syntax.Param:
		return n.Sym
	case *syntax.LocalVar:
		return n.Sym
	case *syntax.Lambda:
		return n.Sym
	}
	return nil
}
