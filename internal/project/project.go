// Package project locates the sources a run rewrites and the classpath it
// only reads.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"refweaver/internal/config"
	"refweaver/internal/frontend"
)

// ManifestName is the project manifest looked up from the working
// directory.
const ManifestName = "refweaver.toml"

// Manifest is a parsed refweaver.toml.
type Manifest struct {
	Path   string
	Root   string
	Config ManifestConfig
}

type ManifestConfig struct {
	Project projectSection `toml:"project"`
}

type projectSection struct {
	Name        string   `toml:"name"`
	SourceRoots []string `toml:"source_roots"`
	Classpath   []string `toml:"classpath"`
}

// FindManifest walks up from startDir to locate refweaver.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadManifest finds and parses the manifest above startDir.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	path, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	var cfg ManifestConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, true, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("project") {
		return nil, true, fmt.Errorf("%s: missing [project]", path)
	}
	if len(cfg.Project.SourceRoots) == 0 {
		return nil, true, fmt.Errorf("%s: missing [project].source_roots", path)
	}
	for _, key := range meta.Undecoded() {
		slog.Warn("unknown manifest key", "file", path, "key", key.String())
	}
	return &Manifest{Path: path, Root: filepath.Dir(path), Config: cfg}, true, nil
}

func (m *Manifest) resolve(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Root, filepath.FromSlash(p))
		}
		out = append(out, p)
	}
	return out
}

// Layout is the set of directories or files a run works on.
type Layout struct {
	Name        string
	SourceRoots []string
	Classpath   []string
}

// Resolve picks the layout for a run: the manifest above the working
// directory when there is one, otherwise args (or ".") as source roots.
func Resolve(args []string, log *slog.Logger) (Layout, error) {
	if len(args) > 0 {
		return Layout{SourceRoots: args}, nil
	}
	m, ok, err := LoadManifest(".")
	if err != nil {
		return Layout{}, err
	}
	if !ok {
		return Layout{SourceRoots: []string{"."}}, nil
	}
	log.Debug("using manifest", "path", m.Path, "project", m.Config.Project.Name)
	return Layout{
		Name:        m.Config.Project.Name,
		SourceRoots: m.resolve(m.Config.Project.SourceRoots),
		Classpath:   m.resolve(m.Config.Project.Classpath),
	}, nil
}

// Collect reads every included source file under the source roots and
// every Java file under classpath directories. Archives on the classpath
// cannot be read and are skipped with a warning.
func Collect(l Layout, cfg *config.Config, log *slog.Logger) ([]frontend.Source, error) {
	var out []frontend.Source
	seen := make(map[string]bool)
	for _, root := range l.SourceRoots {
		srcs, err := walk(root, false, cfg, log, seen)
		if err != nil {
			return nil, err
		}
		out = append(out, srcs...)
	}
	for _, entry := range l.Classpath {
		info, err := os.Stat(entry)
		if err != nil {
			log.Warn("classpath entry unavailable", "entry", entry, "err", err)
			continue
		}
		if !info.IsDir() {
			log.Warn("classpath archive skipped; only source directories are read", "entry", entry)
			continue
		}
		srcs, err := walk(entry, true, cfg, log, seen)
		if err != nil {
			return nil, err
		}
		out = append(out, srcs...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func walk(root string, library bool, cfg *config.Config, log *slog.Logger, seen map[string]bool) ([]frontend.Source, error) {
	var out []frontend.Source
	maxSize := int64(cfg.Files.MaxFileSize) * 1024
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || excludedDir(cfg, rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".java" {
			return nil
		}
		// a file given directly as a root is always taken
		if path != root && !cfg.IsIncluded(rel) {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if seen[abs] {
			return nil
		}
		seen[abs] = true
		if info, err := d.Info(); err == nil && maxSize > 0 && info.Size() > maxSize {
			log.Warn("file exceeds max_file_size; skipped", "file", path, "size", info.Size())
			return nil
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, frontend.Source{Path: path, Text: text, Library: library})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}

func excludedDir(cfg *config.Config, rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range cfg.Files.Exclude {
		if strings.HasSuffix(p, "/**") && strings.TrimSuffix(p, "/**") == rel {
			return true
		}
	}
	return false
}
