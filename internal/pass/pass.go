// Package pass defines the per-file environment rewrite passes run in and
// the pass descriptor the scheduler drives.
package pass

import (
	"fmt"
	"log/slog"

	"refweaver/internal/index"
	"refweaver/internal/models"
	"refweaver/internal/refcount"
	"refweaver/internal/syntax"
)

// Edit describes one change a pass made to a tree.
type Edit struct {
	Kind    string
	Span    syntax.Span
	Binding string
	Detail  string
}

// Env is what a pass sees while it rewrites one file. A worker owns its
// Env and the file tree; Program and Index are shared and read-only.
type Env struct {
	File    *syntax.File
	Program *syntax.Program
	Index   *index.Index
	Conv    refcount.Conventions
	Log     *slog.Logger
	Pass    string

	edits    []Edit
	findings []models.Finding
	temps    int
}

// NewEnv prepares an environment for one file.
func NewEnv(name string, f *syntax.File, prog *syntax.Program, ix *index.Index, conv refcount.Conventions, log *slog.Logger) *Env {
	if log == nil {
		log = slog.Default()
	}
	return &Env{
		File:    f,
		Program: prog,
		Index:   ix,
		Conv:    conv,
		Log:     log.With("pass", name, "file", f.Path),
		Pass:    name,
	}
}

// Edited records a change.
func (e *Env) Edited(kind string, n syntax.Node, binding, detail string) {
	var span syntax.Span
	if n != nil {
		span = n.Span()
	}
	e.edits = append(e.edits, Edit{Kind: kind, Span: span, Binding: binding, Detail: detail})
	e.Log.Debug("edit", "kind", kind, "binding", binding, "pos", span.Start.String())
}

// Edits returns the changes recorded so far.
func (e *Env) Edits() []Edit { return e.edits }

// Findings returns the diagnostics recorded so far.
func (e *Env) Findings() []models.Finding { return e.findings }

// Report records a diagnostic at n and logs it at a level matching its
// severity.
func (e *Env) Report(kind models.Kind, sev models.Severity, n syntax.Node, binding, format string, args ...any) {
	var span syntax.Span
	if n != nil {
		span = n.Span()
	}
	e.ReportAt(kind, sev, span, binding, format, args...)
}

// ReportAt is Report for a position that no longer has a node.
func (e *Env) ReportAt(kind models.Kind, sev models.Severity, span syntax.Span, binding, format string, args ...any) {
	f := models.Finding{
		Kind:     kind,
		Severity: sev,
		Pass:     e.Pass,
		File:     e.File.Path,
		Line:     int(span.Start.Line),
		Column:   int(span.Start.Col),
		Binding:  binding,
		Message:  fmt.Sprintf(format, args...),
	}
	e.Add(f)
	attrs := []any{"kind", string(kind), "pos", fmt.Sprintf("%d:%d", f.Line, f.Column)}
	if binding != "" {
		attrs = append(attrs, "binding", binding)
	}
	switch {
	case sev >= models.SeverityHigh:
		e.Log.Error(f.Message, attrs...)
	case sev == models.SeverityMedium:
		e.Log.Warn(f.Message, attrs...)
	default:
		e.Log.Debug(f.Message, attrs...)
	}
}

// Add records findings produced elsewhere without logging them again.
func (e *Env) Add(fs ...models.Finding) {
	e.findings = append(e.findings, fs...)
}

// Unresolved reports a node skipped because a binding or type could not
// be resolved.
func (e *Env) Unresolved(n syntax.Node, what string) {
	e.Report(models.KindUnresolved, models.SeverityLow, n, what, "skipped: cannot resolve %s", what)
}

// Unsupported reports a site the rewriter does not model.
func (e *Env) Unsupported(n syntax.Node, binding, format string, args ...any) {
	e.Report(models.KindUnsupported, models.SeverityMedium, n, binding, format, args...)
}

// Temp returns a fresh generated name. Names already used in the file are
// skipped so repeated passes never collide.
func (e *Env) Temp(hint string) string {
	used := make(map[string]bool)
	syntax.Inspect(e.File, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.LocalVar:
			used[n.Name] = true
		case *syntax.Param:
			used[n.Name] = true
		}
		return true
	})
	for {
		name := fmt.Sprintf("%s%s$%d", e.Conv.TempPrefix, hint, e.temps)
		e.temps++
		if !used[name] {
			return name
		}
	}
}

// Func rewrites the file of env in place.
type Func func(env *Env) error

// Pass is a named rewrite applied to every source file.
type Pass struct {
	Name string
	// NeedsIndex makes the scheduler build the symbol index before the pass.
	NeedsIndex bool
	Run        Func
}
