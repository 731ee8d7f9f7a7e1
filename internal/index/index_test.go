package index

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"refweaver/internal/frontend"
	"refweaver/internal/syntax"
	"refweaver/internal/trace"
)

func parse(t *testing.T, files map[string]string) *syntax.Program {
	t.Helper()
	var srcs []frontend.Source
	for path, text := range files {
		srcs = append(srcs, frontend.Source{Path: path, Text: []byte(text)})
	}
	prog, err := frontend.Parse(context.Background(), srcs, 2, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return prog
}

const counter = `class Counter {
    int n;
    void inc(int by) {
        int next = n + by;
        n = next;
    }
}`

func TestBuildDefinitionsAndReferences(t *testing.T) {
	prog := parse(t, map[string]string{"Counter.java": counter})
	ix, err := Build(prog.Files, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	counterType := prog.Files[0].Types[0]
	field := counterType.Members[0].(*syntax.FieldDecl)
	inc := counterType.Members[1].(*syntax.MethodDecl)
	next := inc.Body.Stmts[0].(*syntax.LocalVar)

	tests := []struct {
		name string
		sym  *syntax.Symbol
		refs int
	}{
		{"field", field.Sym, 2},
		{"parameter", inc.Params[0].Sym, 1},
		{"local", next.Sym, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := IDOf(tt.sym)
			def, ok := ix.Definition(id)
			if !ok {
				t.Fatalf("%s is not defined", id)
			}
			if ix.Path(def.Span.File) != "Counter.java" {
				t.Errorf("defined in %q", ix.Path(def.Span.File))
			}
			if got := len(ix.References(id)); got != tt.refs {
				t.Errorf("got %d references, want %d", got, tt.refs)
			}
		})
	}

	// the local is referenced inside inc, so its context ends with it
	ref := ix.References(IDOf(next.Sym))[0]
	if len(ref.Context) == 0 || ref.Context[len(ref.Context)-1].ID != IDOf(inc.Sym) {
		t.Errorf("reference context = %s", ref)
	}
}

func TestDuplicateDefinitionIsFatal(t *testing.T) {
	prog := parse(t, map[string]string{
		"a/A.java": "class A {}",
		"b/A.java": "class A {}",
	})
	_, err := Build(prog.Files, Options{})
	var dup *DuplicateDefinitionError
	if !errors.As(err, &dup) {
		t.Fatalf("Build err = %v, want *DuplicateDefinitionError", err)
	}
	if dup.FirstPath == dup.SecondPath {
		t.Errorf("both definitions reported in %s", dup.FirstPath)
	}

	_, err = BuildParallel(context.Background(), prog.Files, 2, Options{})
	if !errors.As(err, &dup) {
		t.Fatalf("BuildParallel err = %v, want *DuplicateDefinitionError", err)
	}
}

func TestBuildParallelMatchesBuild(t *testing.T) {
	prog := parse(t, map[string]string{
		"Counter.java": counter,
		"User.java": `class User {
    void f(Counter c) {
        c.inc(1);
        c.n = 0;
    }
}`,
	})
	seq, err := Build(prog.Files, Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	par, err := BuildParallel(context.Background(), prog.Files, 4, Options{})
	if err != nil {
		t.Fatalf("BuildParallel: %v", err)
	}
	if seq.Len() != par.Len() {
		t.Fatalf("Len = %d sequential, %d parallel", seq.Len(), par.Len())
	}
	for _, id := range seq.Defined() {
		if len(seq.References(id)) != len(par.References(id)) {
			t.Errorf("%s: %d references sequential, %d parallel",
				id, len(seq.References(id)), len(par.References(id)))
		}
	}
}

func TestMergeSamePartTwice(t *testing.T) {
	prog := parse(t, map[string]string{"Counter.java": counter})
	ix, err := Build(prog.Files, Options{})
	if err != nil {
		t.Fatal(err)
	}
	merged, err := Merge(ix, nil, ix)
	if err != nil {
		t.Fatalf("Merge of identical definitions: %v", err)
	}
	if merged.Len() != ix.Len() {
		t.Errorf("Len = %d, want %d", merged.Len(), ix.Len())
	}
}

func TestSubtreeAndTrace(t *testing.T) {
	prog := parse(t, map[string]string{"Counter.java": counter})
	var buf bytes.Buffer
	w := trace.NewWriter(&buf)
	if _, err := Build(prog.Files, Options{Trace: w}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	records, err := trace.Read(&buf)
	if err != nil {
		t.Fatalf("trace.Read: %v", err)
	}
	if len(records) == 0 || len(records) != w.Count() {
		t.Errorf("read %d records, wrote %d", len(records), w.Count())
	}

	inc := prog.Files[0].Types[0].Members[1].(*syntax.MethodDecl)
	sub, err := Subtree(inc.Body, "Counter.java", Options{})
	if err != nil {
		t.Fatalf("Subtree: %v", err)
	}
	field := prog.Files[0].Types[0].Members[0].(*syntax.FieldDecl)
	if _, ok := sub.Definition(IDOf(field.Sym)); ok {
		t.Error("subtree defines the field declared outside it")
	}
	if len(sub.References(IDOf(field.Sym))) != 2 {
		t.Errorf("subtree sees %d field references, want 2", len(sub.References(IDOf(field.Sym))))
	}
}
