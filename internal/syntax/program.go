package syntax

import "sort"

// Program is the set of annotated files parsed together. Bindings resolve
// across all of them.
type Program struct {
	Files []*File
	// Packages holds every package name declared by a file.
	Packages map[string]*Symbol
}

// Sources returns the rewritable files in path order.
func (p *Program) Sources() []*File {
	out := make([]*File, 0, len(p.Files))
	for _, f := range p.Files {
		if !f.Library {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// File returns the file with the given path.
func (p *Program) File(path string) *File {
	for _, f := range p.Files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// Types calls fn for every type declaration in the program, nested and
// anonymous ones included.
func (p *Program) Types(fn func(f *File, t *TypeDecl)) {
	for _, f := range p.Files {
		Inspect(f, func(n Node) bool {
			if t, ok := n.(*TypeDecl); ok {
				fn(f, t)
			}
			return true
		})
	}
}
