// Package pipeline drives rewrite passes over a whole program to a fixed
// point and persists what changed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"refweaver/internal/frontend"
	"refweaver/internal/index"
	"refweaver/internal/models"
	"refweaver/internal/pass"
	"refweaver/internal/printer"
	"refweaver/internal/refcount"
	"refweaver/internal/syntax"
	"refweaver/internal/trace"
)

// ErrNoFixedPoint is returned when a stage keeps changing files after the
// iteration bound.
var ErrNoFixedPoint = errors.New("no fixed point within the iteration bound")

// Options configures a Scheduler.
type Options struct {
	Conv          refcount.Conventions
	Jobs          int
	MaxIterations int
	DryRun        bool
	Formatter     printer.Formatter
	Log           *slog.Logger
	// Trace receives the records of the first index build.
	Trace trace.Sink
}

// Scheduler owns the program between passes. Each pass runs over every
// source file, one worker per file, and all workers finish before the
// changed files are re-parsed together.
type Scheduler struct {
	opts   Options
	log    *slog.Logger
	result *models.RunResult

	sources []string
	library []frontend.Source
	texts   map[string][]byte
	disk    map[string]uint64

	prog   *syntax.Program
	ix     *index.Index
	traced bool

	stage string
	iter  int

	mu   sync.Mutex
	seen map[models.Finding]bool
}

// New prepares a scheduler over srcs. Nothing is parsed until Load.
func New(opts Options, srcs []frontend.Source, result *models.RunResult) *Scheduler {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 10
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	s := &Scheduler{
		opts:   opts,
		log:    opts.Log,
		result: result,
		texts:  make(map[string][]byte),
		disk:   make(map[string]uint64),
		seen:   make(map[models.Finding]bool),
	}
	for _, src := range srcs {
		if src.Library {
			s.library = append(s.library, src)
			continue
		}
		s.sources = append(s.sources, src.Path)
		s.texts[src.Path] = src.Text
		s.disk[src.Path] = xxh3.Hash(src.Text)
	}
	sort.Strings(s.sources)
	result.Files = append(result.Files, s.sources...)
	result.DryRun = opts.DryRun
	return s
}

// Program returns the current tree.
func (s *Scheduler) Program() *syntax.Program { return s.prog }

// Text returns the current text of a source file.
func (s *Scheduler) Text(path string) []byte { return s.texts[path] }

// Load parses the program from the current texts.
func (s *Scheduler) Load(ctx context.Context) error {
	srcs := make([]frontend.Source, 0, len(s.sources)+len(s.library))
	for _, p := range s.sources {
		srcs = append(srcs, frontend.Source{Path: p, Text: s.texts[p]})
	}
	srcs = append(srcs, s.library...)
	prog, err := frontend.Parse(ctx, srcs, s.opts.Jobs, s.log)
	if err != nil {
		return err
	}
	s.prog, s.ix = prog, nil
	return nil
}

func (s *Scheduler) index(ctx context.Context) (*index.Index, error) {
	if s.ix != nil {
		return s.ix, nil
	}
	opts := index.Options{Log: s.log}
	if !s.traced && s.opts.Trace != nil {
		opts.Trace = s.opts.Trace
		s.traced = true
	}
	ix, err := index.BuildParallel(ctx, s.prog.Files, s.opts.Jobs, opts)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	s.ix = ix
	return ix, nil
}

func (s *Scheduler) record(fs []models.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fs {
		key := f
		key.Pass = ""
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		s.result.AddFinding(f)
	}
}

// RunPass applies p to every source file and returns how many files it
// changed. Changed files are re-printed and the whole program re-parsed
// before RunPass returns, so the next pass sees fresh bindings and spans.
func (s *Scheduler) RunPass(ctx context.Context, p pass.Pass) (int, error) {
	if s.prog == nil {
		if err := s.Load(ctx); err != nil {
			return 0, err
		}
	}
	var ix *index.Index
	if p.NeedsIndex {
		var err error
		if ix, err = s.index(ctx); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	files := s.prog.Sources()
	out := make([][]byte, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Jobs)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			before := xxh3.Hash(printer.Print(f))
			env := pass.NewEnv(p.Name, f, s.prog, ix, s.opts.Conv, s.log)
			if err := p.Run(env); err != nil {
				return fmt.Errorf("%s: %s: %w", p.Name, f.Path, err)
			}
			s.record(env.Findings())
			text := printer.Print(f)
			if xxh3.Hash(text) != before {
				out[i] = text
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	changed := 0
	for i, text := range out {
		if text != nil {
			s.texts[files[i].Path] = text
			changed++
		}
	}
	s.result.AddPass(models.PassStat{Stage: s.stage, Pass: p.Name, Iteration: s.iter, Changed: changed})
	s.log.Info("pass done", "stage", s.stage, "pass", p.Name, "iteration", s.iter,
		"changed", changed, "elapsed", time.Since(start).Round(time.Millisecond))
	if changed > 0 {
		if err := s.Load(ctx); err != nil {
			return changed, fmt.Errorf("re-parse after %s: %w", p.Name, err)
		}
	}
	return changed, nil
}

// Converge runs passes in order, repeating the sequence while any of them
// changes a file.
func (s *Scheduler) Converge(ctx context.Context, stage string, passes ...pass.Pass) error {
	s.stage = stage
	defer func() { s.stage, s.iter = "", 0 }()
	for s.iter = 1; ; s.iter++ {
		if s.iter > s.opts.MaxIterations {
			return fmt.Errorf("%s: %w (%d)", stage, ErrNoFixedPoint, s.opts.MaxIterations)
		}
		total := 0
		for _, p := range passes {
			n, err := s.RunPass(ctx, p)
			if err != nil {
				return fmt.Errorf("%s: %w", stage, err)
			}
			total += n
		}
		if total == 0 {
			return nil
		}
	}
}

// Once runs passes a single time each, outside any fixed-point loop.
func (s *Scheduler) Once(ctx context.Context, stage string, passes ...pass.Pass) error {
	s.stage, s.iter = stage, 1
	defer func() { s.stage, s.iter = "", 0 }()
	for _, p := range passes {
		if _, err := s.RunPass(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", stage, err)
		}
	}
	return nil
}

// Persist formats and writes every source whose text differs from what is
// on disk. Every file is formatted before the first one is written, so a
// formatting failure leaves the tree untouched. In a dry run files are only
// reported.
func (s *Scheduler) Persist(ctx context.Context) error {
	type pending struct {
		path string
		text []byte
		sum  uint64
	}
	var writes []pending
	for _, path := range s.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := s.texts[path]
		if xxh3.Hash(text) == s.disk[path] {
			continue
		}
		formatted, err := printer.Render(ctx, s.opts.Formatter, path, text)
		if err != nil {
			return err
		}
		sum := xxh3.Hash(formatted)
		if sum == s.disk[path] {
			s.texts[path] = formatted
			continue
		}
		writes = append(writes, pending{path, formatted, sum})
	}
	for _, w := range writes {
		s.result.MarkChanged(w.path)
		if s.opts.DryRun {
			s.log.Info("would rewrite", "file", w.path)
			continue
		}
		if err := writeFile(w.path, w.text); err != nil {
			return err
		}
		s.texts[w.path] = w.text
		s.disk[w.path] = w.sum
		s.log.Debug("rewrote", "file", w.path)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp := path + ".refweaver.tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
