package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"refweaver/internal/config"
	"refweaver/internal/frontend"
	"refweaver/internal/models"
	"refweaver/internal/project"
	"refweaver/internal/refcount"
)

// loadShapes collects testdata/shapes through its manifest.
func loadShapes(t *testing.T) []frontend.Source {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, ok, err := project.LoadManifest(filepath.Join("..", "..", "testdata", "shapes", "src"))
	if err != nil || !ok {
		t.Fatalf("LoadManifest = %v, %v", ok, err)
	}
	if m.Config.Project.Name != "shapes" {
		t.Fatalf("project name = %q", m.Config.Project.Name)
	}
	dir := m.Root
	layout := project.Layout{
		Name:        m.Config.Project.Name,
		SourceRoots: []string{filepath.Join(dir, "src")},
		Classpath:   []string{filepath.Join(dir, "lib"), filepath.Join(dir, "vendor", "codec.jar")},
	}
	srcs, err := project.Collect(layout, config.DefaultConfig(), log)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(srcs) != 3 {
		t.Fatalf("collected %d sources, want 3", len(srcs))
	}
	return srcs
}

func TestSampleProject(t *testing.T) {
	srcs := loadShapes(t)
	result := models.NewRunResult(Insert)
	s := New(Options{Conv: refcount.Default(), Jobs: 2, DryRun: true}, srcs, result)
	if err := Run(context.Background(), Insert, s); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var channel, buffer, codec string
	for _, src := range srcs {
		switch filepath.Base(src.Path) {
		case "Channel.java":
			channel = string(s.Text(src.Path))
		case "Buffer.java":
			buffer = string(s.Text(src.Path))
		case "Codec.java":
			codec = src.Path
		}
	}
	for _, want := range []string{
		"send(part.retain());\n        part.release();",
		"codec.encode(buf);\n        buf.release();",
	} {
		if !strings.Contains(channel, want) {
			t.Errorf("missing %q in\n%s", want, channel)
		}
	}
	for _, want := range []string{
		"if (parent != null) parent.release();\n        parent = p.retain();",
		"return b;",
		"public static Buffer[] retainAll(Buffer[] items) {",
	} {
		if !strings.Contains(buffer, want) {
			t.Errorf("missing %q in\n%s", want, buffer)
		}
	}
	// the classpath file is bound but never rewritten
	for _, p := range result.FilesChanged {
		if p == codec {
			t.Errorf("library file %s marked changed", codec)
		}
	}
	if len(result.FilesChanged) != 2 {
		t.Errorf("FilesChanged = %v", result.FilesChanged)
	}
}
