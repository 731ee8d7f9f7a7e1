package frontend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"refweaver/internal/syntax"
)

// Source is one file handed to the frontend.
type Source struct {
	Path string
	Text []byte
	// Library marks classpath files: they are bound but never rewritten.
	Library bool
}

// Parse parses every source concurrently, then binds the whole program.
// A syntax error in a source file fails the parse; a broken library file is
// logged and left out.
func Parse(ctx context.Context, srcs []Source, jobs int, log *slog.Logger) (*syntax.Program, error) {
	if log == nil {
		log = slog.Default()
	}
	sorted := append([]Source(nil), srcs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Library != sorted[j].Library {
			return !sorted[i].Library
		}
		return sorted[i].Path < sorted[j].Path
	})

	files := make([]*syntax.File, len(sorted))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, src := range sorted {
		id, err := safecast.Conv[uint32](i + 1)
		if err != nil {
			return nil, fmt.Errorf("too many files: %w", err)
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := ParseFile(syntax.FileID(id), src.Path, string(src.Text))
			if err != nil {
				var se *SyntaxError
				if src.Library && errors.As(err, &se) {
					log.Warn("skipping unparsable classpath file", "file", src.Path, "error", err)
					return nil
				}
				return fmt.Errorf("parse: %w", err)
			}
			f.Library = src.Library
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prog := &syntax.Program{}
	for _, f := range files {
		if f != nil {
			prog.Files = append(prog.Files, f)
		}
	}
	b := Bind(prog, log)
	log.Debug("bound program", "files", len(prog.Files), "unresolved", b.Unresolved)
	return prog, nil
}
