// Package verify checks that a program is fully instrumented without
// changing it.
package verify

import (
	"errors"
	"fmt"

	"refweaver/internal/instrument"
	"refweaver/internal/models"
	"refweaver/internal/pass"
	"refweaver/internal/syntax"
)

// Violation is one verification finding as an error.
type Violation struct {
	models.Finding
}

func (v *Violation) Error() string { return v.Finding.String() }

// Error aggregates every violation of a verification run.
type Error struct {
	Findings []models.Finding
	err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("verification failed with %d violation(s):\n%v", len(e.Findings), e.err)
}

func (e *Error) Unwrap() error { return e.err }

// Join turns the error-level findings into a single *Error, or returns nil
// when there are none.
func Join(findings []models.Finding) error {
	var (
		kept []models.Finding
		errs []error
	)
	for _, f := range findings {
		if f.Severity < models.SeverityHigh {
			continue
		}
		kept = append(kept, f)
		errs = append(errs, &Violation{f})
	}
	if len(kept) == 0 {
		return nil
	}
	return &Error{Findings: kept, err: errors.Join(errs...)}
}

// kinds maps each instrumentation sub-pass to the violation its edits
// stand for.
var kinds = map[string]models.Kind{
	"synthesize":        models.KindMissingSupport,
	"retain-arguments":  models.KindMissingRetain,
	"exchange-fields":   models.KindMissingExchange,
	"release-last-uses": models.KindMissingRelease,
	"wrap-captures":     models.KindUnwrappedCapture,
}

// Check runs every instrumentation sub-pass over env.File, which the caller
// must be prepared to discard, and reports each edit a sub-pass would make
// as a violation.
func Check(env *pass.Env) error {
	plain := plainOwners(env)
	for _, p := range instrument.Passes() {
		sub := pass.NewEnv(p.Name, env.File, env.Program, env.Index, env.Conv, env.Log)
		if err := p.Run(sub); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		for _, f := range sub.Findings() {
			if f.Kind == models.KindInstrumentFailure && plain[f.Binding] {
				continue
			}
			f.Pass = "verify"
			env.Add(f)
		}
		kind := kinds[p.Name]
		for _, e := range sub.Edits() {
			env.ReportAt(kind, models.SeverityHigh, e.Span, e.Binding, "%s: would %s", kind, e.Detail)
		}
	}
	return nil
}

// plainOwners reports reference-counted instance fields declared in types
// that are not reference counted themselves, which nothing can release.
func plainOwners(env *pass.Env) map[string]bool {
	out := make(map[string]bool)
	syntax.Inspect(env.File, func(n syntax.Node) bool {
		t, ok := n.(*syntax.TypeDecl)
		if !ok || t.Interface || env.Conv.IsRefCountedDecl(t) {
			return true
		}
		for _, m := range t.Members {
			fd, ok := m.(*syntax.FieldDecl)
			if !ok || fd.Sym == nil || fd.Sym.Static || !env.Conv.IsRefCounted(fd.Type) {
				continue
			}
			out[fd.Sym.Key] = true
			env.Report(models.KindPlainOwner, models.SeverityHigh, fd, fd.Sym.Key,
				"field %s holds a reference-counted %s but %s is not reference counted", fd.Name, fd.Type, t.Name)
		}
		return true
	})
	return out
}
