package closure

import (
	"context"
	"testing"

	"refweaver/internal/frontend"
	"refweaver/internal/index"
	"refweaver/internal/refcount"
	"refweaver/internal/syntax"
)

const src = `class R extends RefCounted {}
class A {
    R f;

    void m(R a, int n) {
        Runnable r = () -> {
            R b = a;
            int k = n;
            f = b;
        };
    }
}`

func TestAnalyze(t *testing.T) {
	prog, err := frontend.Parse(context.Background(), []frontend.Source{{Path: "A.java", Text: []byte(src)}}, 1, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	global, err := index.Build(prog.Files, index.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var lambda *syntax.Lambda
	syntax.Inspect(prog.Files[0], func(n syntax.Node) bool {
		if l, ok := n.(*syntax.Lambda); ok {
			lambda = l
		}
		return lambda == nil
	})
	if lambda == nil {
		t.Fatal("no lambda parsed")
	}

	res, err := Analyze(lambda, "A.java", global, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	var names []string
	for _, c := range res.Captures {
		names = append(names, c.Symbol.Name)
		if len(c.Spans) != 1 {
			t.Errorf("%s captured with %d spans, want 1", c.Symbol.Name, len(c.Spans))
		}
	}
	if got, want := len(names), 3; got != want || names[0] != "a" || names[1] != "f" || names[2] != "n" {
		t.Fatalf("captures = %v, want [a f n]", names)
	}

	owned := res.Owned(refcount.Default())
	if len(owned) != 1 || owned[0].Symbol.Name != "a" {
		t.Fatalf("owned = %v, want only a", owned)
	}
	if !res.Has(owned[0].ID) {
		t.Error("Has does not find an owned capture")
	}
}
