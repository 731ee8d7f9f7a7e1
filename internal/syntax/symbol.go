package syntax

import "strings"

// SymbolKind classifies a resolved binding.
type SymbolKind uint8

const (
	KindOther SymbolKind = iota
	KindField
	KindParameter
	KindVariable
	KindMethod
	KindType
	KindLambda
	KindPackage
)

func (k SymbolKind) String() string {
	switch k {
	case KindField:
		return "Field"
	case KindParameter:
		return "Parameter"
	case KindVariable:
		return "Variable"
	case KindMethod:
		return "Method"
	case KindType:
		return "Type"
	case KindLambda:
		return "Lambda"
	case KindPackage:
		return "Package"
	default:
		return "Other"
	}
}

// Symbol is a resolved binding attached to declarations and identifiers.
// Symbols are created by the binder and shared by every node that refers
// to the same declaration, so pointer identity is binding identity within
// one parsed program.
type Symbol struct {
	Kind SymbolKind
	Name string
	// Key is the canonical qualified path of the binding.
	Key   string
	Owner *Symbol
	// Type is the declared type of a field, parameter or variable and the
	// result type of a method.
	Type *TypeRef
	// Decl is the declaring node, nil for symbols the binder invented for
	// unresolvable library members.
	Decl Node
	// TypeDecl is set for KindType symbols declared in the program.
	TypeDecl *TypeDecl
	// Library marks declarations that come from the classpath rather than
	// a source root. They are indexed but never rewritten.
	Library bool
	Static  bool
	// Arity is the parameter count of methods and lambdas.
	Arity int
}

// QualifiedName returns the dotted name of a type symbol.
func (s *Symbol) QualifiedName() string {
	if s == nil {
		return ""
	}
	return strings.ReplaceAll(s.Key, "::", ".")
}

// IsLocal reports whether the symbol is a parameter or local variable.
func (s *Symbol) IsLocal() bool {
	return s != nil && (s.Kind == KindParameter || s.Kind == KindVariable)
}

// TypeRef is a type as written in source plus its resolution.
type TypeRef struct {
	base
	// Name is the type name as written, possibly qualified.
	Name string
	Args []*TypeRef
	// Wildcard holds "?", "? extends" or "? super" for wildcard arguments.
	Wildcard string
	// Diamond records an empty argument list written as <>.
	Diamond bool
	Dims    int
	Sym     *Symbol
}

// Simple returns the last segment of the written name.
func (t *TypeRef) Simple() string {
	if t == nil {
		return ""
	}
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

// IsArray reports whether the type has array dimensions.
func (t *TypeRef) IsArray() bool {
	return t != nil && t.Dims > 0
}

// Elem returns the element type of an array type.
func (t *TypeRef) Elem() *TypeRef {
	if t == nil || t.Dims == 0 {
		return t
	}
	e := t.Clone()
	e.Dims--
	return e
}

// Clone copies the type reference without its source position.
func (t *TypeRef) Clone() *TypeRef {
	if t == nil {
		return nil
	}
	c := &TypeRef{Name: t.Name, Wildcard: t.Wildcard, Diamond: t.Diamond, Dims: t.Dims, Sym: t.Sym}
	for _, a := range t.Args {
		c.Args = append(c.Args, a.Clone())
	}
	return c
}

// String renders the type the way it is printed in source.
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	if t.Wildcard != "" {
		sb.WriteString(t.Wildcard)
		if t.Name == "" {
			return sb.String()
		}
		sb.WriteByte(' ')
	}
	sb.WriteString(t.Name)
	if t.Diamond {
		sb.WriteString("<>")
	}
	if len(t.Args) > 0 {
		sb.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte('>')
	}
	for range t.Dims {
		sb.WriteString("[]")
	}
	return sb.String()
}
