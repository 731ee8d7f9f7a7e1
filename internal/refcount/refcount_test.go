package refcount

import (
	"context"
	"testing"

	"refweaver/internal/frontend"
	"refweaver/internal/syntax"
)

func TestIsRefCountedDecl(t *testing.T) {
	prog, err := frontend.Parse(context.Background(), []frontend.Source{{Path: "A.java", Text: []byte(`
class A extends RefCounted {}
class B extends A {}
class C implements Counted {}
interface Counted extends RefCounted {}
class P {}
class Q extends java.util.ArrayList {}
`)}}, 1, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	decls := make(map[string]*syntax.TypeDecl)
	for _, td := range prog.Files[0].Types {
		decls[td.Name] = td
	}

	conv := Default()
	tests := []struct {
		name string
		want bool
	}{
		{"A", true},
		{"B", true},
		{"C", true},
		{"Counted", true},
		{"P", false},
		{"Q", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := conv.IsRefCountedDecl(decls[tt.name]); got != tt.want {
				t.Errorf("IsRefCountedDecl(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
	if conv.Supertype(decls["B"]) != decls["A"] {
		t.Error("Supertype(B) is not A")
	}
	if conv.Supertype(decls["A"]) != nil {
		t.Error("the marker itself counts as a supertype of A")
	}
}

func TestClassify(t *testing.T) {
	conv := Default()
	tests := []struct {
		name      string
		ref       *syntax.TypeRef
		rc, known bool
	}{
		{"primitive", &syntax.TypeRef{Name: "int"}, false, true},
		{"marker", &syntax.TypeRef{Name: "RefCounted"}, true, true},
		{"array", &syntax.TypeRef{Name: "RefCounted", Dims: 1}, false, true},
		{"outside the program", &syntax.TypeRef{Name: "Semaphore"}, false, false},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, known := conv.Classify(tt.ref)
			if rc != tt.rc || known != tt.known {
				t.Errorf("Classify = %v, %v, want %v, %v", rc, known, tt.rc, tt.known)
			}
		})
	}
	if !conv.IsRefCountedArray(&syntax.TypeRef{Name: "RefCounted", Dims: 1}) {
		t.Error("array of the marker not recognised")
	}
}

func TestNames(t *testing.T) {
	conv := Default()
	for _, name := range []string{"retain", "release", "retainAll", "releaseAll", "deallocate"} {
		if !conv.IsSupportMethod(name) {
			t.Errorf("%s is not a support method", name)
		}
	}
	if conv.IsSupportMethod("close") {
		t.Error("close is a support method")
	}
	if !conv.IsTemp("rc$f$0") || conv.IsTemp("rcf") {
		t.Error("temp prefix not matched exactly")
	}
}
