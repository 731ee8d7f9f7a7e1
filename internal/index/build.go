package index

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"refweaver/internal/syntax"
	"refweaver/internal/trace"
)

// Options configures a build.
type Options struct {
	Log *slog.Logger
	// Trace receives a record per definition and reference when set.
	Trace trace.Sink
}

func (o Options) logger() *slog.Logger {
	if o.Log == nil {
		return slog.Default()
	}
	return o.Log
}

type builder struct {
	ix    *Index
	opts  Options
	path  string
	stack []ContextEntry
	err   error
	// Unresolved counts identifiers without a binding.
	unresolved int
}

// Build indexes files sequentially.
func Build(files []*syntax.File, opts Options) (*Index, error) {
	b := &builder{ix: newIndex(), opts: opts}
	for _, f := range files {
		if err := b.file(f); err != nil {
			return nil, err
		}
	}
	b.done()
	return b.ix, nil
}

// BuildParallel builds one partial index per file on at most jobs workers
// and merges them.
func BuildParallel(ctx context.Context, files []*syntax.File, jobs int, opts Options) (*Index, error) {
	parts := make([]*Index, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b := &builder{ix: newIndex(), opts: opts}
			if err := b.file(f); err != nil {
				return err
			}
			b.done()
			parts[i] = b.ix
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(parts...)
}

// Subtree indexes the declarations and references below n only. Context
// chains start at n.
func Subtree(n syntax.Node, path string, opts Options) (*Index, error) {
	b := &builder{ix: newIndex(), opts: opts, path: path}
	b.ix.files[n.Span().File] = path
	b.visit(n)
	if b.err != nil {
		return nil, b.err
	}
	return b.ix, nil
}

func (b *builder) done() {
	if b.unresolved > 0 {
		b.opts.logger().Debug("index skipped unresolved references", "count", b.unresolved)
	}
}

func (b *builder) file(f *syntax.File) error {
	b.path = f.Path
	b.ix.files[f.ID] = f.Path
	b.stack = b.stack[:0]
	b.visit(f)
	return b.err
}

func (b *builder) location(n syntax.Node) ContextLocation {
	ctx := make([]ContextEntry, len(b.stack))
	copy(ctx, b.stack)
	return ContextLocation{Span: n.Span(), Context: ctx}
}

func (b *builder) emit(event string, id BindingID, loc ContextLocation) {
	if b.opts.Trace == nil {
		return
	}
	rec := trace.Record{
		Event:   event,
		File:    b.path,
		Binding: id.Path,
		Kind:    id.Kind.String(),
		Span:    loc.Span.String(),
	}
	for _, c := range loc.Context {
		rec.Context = append(rec.Context, trace.Frame{Binding: c.ID.Path, Kind: c.ID.Kind.String(), Span: c.Span.String()})
	}
	b.opts.Trace.Emit(rec)
}

func (b *builder) define(sym *syntax.Symbol, n syntax.Node) {
	if sym == nil || b.err != nil {
		return
	}
	id := IDOf(sym)
	loc := b.location(n)
	if err := b.ix.define(id, n, loc); err != nil {
		b.err = err
		return
	}
	b.emit(trace.Definition, id, loc)
}

func (b *builder) reference(sym *syntax.Symbol, n syntax.Node, name string) {
	if sym == nil {
		b.unresolved++
		b.opts.logger().Debug("unresolved reference", "file", b.path, "pos", n.Span().Start.String(), "name", name)
		return
	}
	id := IDOf(sym)
	loc := b.location(n)
	b.ix.refs[id] = append(b.ix.refs[id], loc)
	b.emit(trace.Reference, id, loc)
}

func (b *builder) push(sym *syntax.Symbol, n syntax.Node) {
	b.stack = append(b.stack, ContextEntry{ID: IDOf(sym), Span: n.Span()})
}

func (b *builder) pop() { b.stack = b.stack[:len(b.stack)-1] }

func (b *builder) visit(n syntax.Node) {
	if b.err != nil {
		return
	}
	switch n := n.(type) {
	case *syntax.TypeDecl:
		if n.Sym == nil {
			b.children(n)
			return
		}
		b.define(n.Sym, n)
		b.push(n.Sym, n)
		b.children(n)
		b.pop()
		return
	case *syntax.FieldDecl:
		b.define(n.Sym, n)
	case *syntax.MethodDecl:
		if n.Sym == nil {
			b.children(n)
			return
		}
		b.define(n.Sym, n)
		b.push(n.Sym, n)
		b.children(n)
		b.pop()
		return
	case *syntax.Lambda:
		if n.Sym == nil {
			b.children(n)
			return
		}
		b.define(n.Sym, n)
		b.push(n.Sym, n)
		b.children(n)
		b.pop()
		return
	case *syntax.Param:
		b.define(n.Sym, n)
	case *syntax.LocalVar:
		b.define(n.Sym, n)
	case *syntax.Name:
		b.reference(n.Sym, n, n.Name)
	case *syntax.Select:
		// Only the root of a qualified chain counts, except that this.f
		// is a reference to f.
		if _, ok := n.X.(*syntax.This); ok && n.Sym != nil {
			b.reference(n.Sym, n, n.Sel)
			return
		}
	case *syntax.Call:
		if n.Recv == nil && n.Name != "this" && n.Name != "super" && n.Sym != nil {
			b.reference(n.Sym, n, n.Name)
		}
	}
	b.children(n)
}

func (b *builder) children(n syntax.Node) {
	for _, c := range syntax.Children(n) {
		b.visit(c)
	}
}
