package project

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"refweaver/internal/config"
)

func write(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, ManifestName), "[project]\nname = \"demo\"\nsource_roots = [\"src\"]\n")
	deep := filepath.Join(root, "src", "com", "acme")
	if err := os.MkdirAll(deep, 0755); err != nil {
		t.Fatal(err)
	}

	path, ok, err := FindManifest(deep)
	if err != nil || !ok {
		t.Fatalf("FindManifest = %q, %v, %v", path, ok, err)
	}
	want, _ := filepath.Abs(filepath.Join(root, ManifestName))
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	m, ok, err := LoadManifest(deep)
	if err != nil || !ok {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Config.Project.Name != "demo" {
		t.Errorf("name = %q", m.Config.Project.Name)
	}
	if got := m.resolve(m.Config.Project.SourceRoots); len(got) != 1 || got[0] != filepath.Join(filepath.Dir(want), "src") {
		t.Errorf("source roots = %v", got)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"no project table", "name = \"x\"\n", "missing [project]"},
		{"no source roots", "[project]\nname = \"x\"\n", "source_roots"},
		{"bad toml", "[project\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			write(t, filepath.Join(dir, ManifestName), tt.data)
			_, ok, err := LoadManifest(dir)
			if !ok {
				t.Fatal("manifest not found")
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, ManifestName),
		"[project]\nname = \"demo\"\nsource_roots = [\"src\"]\nclasspath = [\"lib\"]\n")
	t.Chdir(root)

	l, err := Resolve(nil, slog.Default())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if l.Name != "demo" || len(l.SourceRoots) != 1 || len(l.Classpath) != 1 {
		t.Errorf("layout = %+v", l)
	}

	l, err = Resolve([]string{"other"}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if len(l.SourceRoots) != 1 || l.SourceRoots[0] != "other" || l.Classpath != nil {
		t.Errorf("explicit roots ignored: %+v", l)
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	lib := filepath.Join(root, "lib")
	write(t, filepath.Join(src, "com", "A.java"), "class A {}")
	write(t, filepath.Join(src, "com", "notes.txt"), "not java")
	write(t, filepath.Join(src, "build", "Gen.java"), "class Gen {}")
	write(t, filepath.Join(src, ".hidden", "H.java"), "class H {}")
	write(t, filepath.Join(lib, "Base.java"), "class Base {}")
	write(t, filepath.Join(root, "rt.jar"), "PK")

	layout := Layout{
		// the same root twice must not duplicate files
		SourceRoots: []string{src, src},
		Classpath:   []string{lib, filepath.Join(root, "rt.jar"), filepath.Join(root, "missing")},
	}
	srcs, err := Collect(layout, config.DefaultConfig(), slog.Default())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := make(map[string]bool)
	for _, s := range srcs {
		rel, _ := filepath.Rel(root, s.Path)
		got[filepath.ToSlash(rel)] = s.Library
	}
	want := map[string]bool{"src/com/A.java": false, "lib/Base.java": true}
	if len(got) != len(want) {
		t.Fatalf("collected %v, want %v", got, want)
	}
	for path, library := range want {
		if l, ok := got[path]; !ok || l != library {
			t.Errorf("%s: collected=%v library=%v", path, ok, l)
		}
	}
}

func TestCollectSkipsLargeFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "Big.java"), "class Big {}"+strings.Repeat(" ", 2048))
	write(t, filepath.Join(root, "Small.java"), "class Small {}")
	cfg := config.DefaultConfig()
	cfg.Files.MaxFileSize = 1
	srcs, err := Collect(Layout{SourceRoots: []string{root}}, cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	if len(srcs) != 1 || filepath.Base(srcs[0].Path) != "Small.java" {
		t.Errorf("collected %v", srcs)
	}
}
