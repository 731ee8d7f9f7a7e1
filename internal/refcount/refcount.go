// Package refcount holds the naming conventions of the reference-counting
// runtime and the type predicates built on them.
package refcount

import (
	"strings"

	"refweaver/internal/syntax"
)

// Conventions names the runtime API the rewriter targets.
type Conventions struct {
	// Marker is the capability type whose subtypes are reference counted.
	Marker     string `yaml:"marker"`
	Retain     string `yaml:"retain"`
	Release    string `yaml:"release"`
	RetainAll  string `yaml:"retain_all"`
	ReleaseAll string `yaml:"release_all"`
	// Hook is the overridable teardown method that releases fields.
	Hook string `yaml:"hook"`
	// Wrapper and Wrap name the static helper that ties captured
	// references to a function literal.
	Wrapper    string `yaml:"wrapper"`
	Wrap       string `yaml:"wrap"`
	TempPrefix string `yaml:"temp_prefix"`
}

// Default returns the stock conventions.
func Default() Conventions {
	return Conventions{
		Marker:     "RefCounted",
		Retain:     "retain",
		Release:    "release",
		RetainAll:  "retainAll",
		ReleaseAll: "releaseAll",
		Hook:       "deallocate",
		Wrapper:    "RefCapture",
		Wrap:       "wrap",
		TempPrefix: "rc$",
	}
}

// IsMarker reports whether t is the capability type itself.
func (c Conventions) IsMarker(t *syntax.TypeDecl) bool {
	if t == nil || t.Anonymous {
		return false
	}
	if t.Sym != nil && (t.Sym.Key == c.Marker || strings.HasSuffix(t.Sym.Key, "."+c.Marker)) {
		return true
	}
	return t.Name == c.Marker
}

// IsRefCountedDecl reports whether the declaration has the marker in its
// supertype chain, or is the marker.
func (c Conventions) IsRefCountedDecl(t *syntax.TypeDecl) bool {
	return c.declRC(t, map[*syntax.TypeDecl]bool{})
}

func (c Conventions) declRC(t *syntax.TypeDecl, seen map[*syntax.TypeDecl]bool) bool {
	if t == nil || seen[t] {
		return false
	}
	seen[t] = true
	if c.IsMarker(t) {
		return true
	}
	for _, refs := range [][]*syntax.TypeRef{t.Extends, t.Implements} {
		for _, r := range refs {
			if r.Sym != nil && r.Sym.TypeDecl != nil {
				if c.declRC(r.Sym.TypeDecl, seen) {
					return true
				}
				continue
			}
			if r.Simple() == c.Marker {
				return true
			}
		}
	}
	return false
}

// Classify reports whether t is a reference-counted, non-array type, and
// whether the answer is known. Types outside the program other than the
// marker are unknown.
func (c Conventions) Classify(t *syntax.TypeRef) (rc, known bool) {
	if t == nil {
		return false, false
	}
	if t.Dims > 0 || isPrimitive(t.Name) {
		return false, true
	}
	if t.Sym != nil && t.Sym.TypeDecl != nil {
		return c.IsRefCountedDecl(t.Sym.TypeDecl), true
	}
	if t.Simple() == c.Marker {
		return true, true
	}
	return false, false
}

// IsRefCounted reports whether t is a reference-counted, non-array type.
func (c Conventions) IsRefCounted(t *syntax.TypeRef) bool {
	rc, _ := c.Classify(t)
	return rc
}

// IsRefCountedArray reports whether t is a one-dimensional array of a
// reference-counted type.
func (c Conventions) IsRefCountedArray(t *syntax.TypeRef) bool {
	return t != nil && t.Dims == 1 && c.IsRefCounted(t.Elem())
}

// IsSupportMethod reports whether name is one of the synthesized or
// runtime support methods.
func (c Conventions) IsSupportMethod(name string) bool {
	switch name {
	case c.Retain, c.Release, c.RetainAll, c.ReleaseAll, c.Hook:
		return true
	}
	return false
}

// IsTemp reports whether name was generated by the rewriter.
func (c Conventions) IsTemp(name string) bool {
	return c.TempPrefix != "" && strings.HasPrefix(name, c.TempPrefix)
}

// IsRetain reports whether e is a call to the retain method.
func (c Conventions) IsRetain(e syntax.Expr) bool {
	call, ok := e.(*syntax.Call)
	return ok && call.Recv != nil && call.Name == c.Retain && len(call.Args) == 0
}

// IsRelease reports whether e is a call to the release method.
func (c Conventions) IsRelease(e syntax.Expr) bool {
	call, ok := e.(*syntax.Call)
	return ok && call.Recv != nil && call.Name == c.Release && len(call.Args) == 0
}

// IsRetainAll reports whether e is a static retainAll(x) helper call.
func (c Conventions) IsRetainAll(e syntax.Expr) bool {
	call, ok := e.(*syntax.Call)
	return ok && call.Name == c.RetainAll && len(call.Args) == 1
}

// IsWrap reports whether e is a capture wrapper call.
func (c Conventions) IsWrap(e syntax.Expr) bool {
	call, ok := e.(*syntax.Call)
	if !ok || call.Name != c.Wrap || len(call.Args) == 0 {
		return false
	}
	recv, ok := call.Recv.(*syntax.Name)
	if !ok || recv.Name != c.Wrapper {
		return false
	}
	_, ok = call.Args[0].(*syntax.Lambda)
	return ok
}

// Supertype returns the superclass declaration when it is a
// reference-counted type declared in the program, other than the marker.
func (c Conventions) Supertype(t *syntax.TypeDecl) *syntax.TypeDecl {
	if t == nil || t.Interface || len(t.Extends) == 0 {
		return nil
	}
	r := t.Extends[0]
	if r.Sym == nil || r.Sym.TypeDecl == nil {
		return nil
	}
	st := r.Sym.TypeDecl
	if c.IsMarker(st) || !c.IsRefCountedDecl(st) {
		return nil
	}
	return st
}

func isPrimitive(name string) bool {
	switch name {
	case "boolean", "byte", "char", "double", "float", "int", "long", "short", "void":
		return true
	}
	return false
}
