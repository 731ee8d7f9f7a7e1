package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"refweaver/internal/config"
)

func TestBatchSettles(t *testing.T) {
	calls := make(chan []string, 4)
	b := newBatch(20*time.Millisecond, func(paths []string) error {
		calls <- paths
		return nil
	}, slog.New(slog.DiscardHandler))
	defer b.close()

	b.note("b.java", fsnotify.Create)
	b.note("a.java", fsnotify.Write)
	b.note("b.java", fsnotify.Write)

	select {
	case got := <-calls:
		if want := []string{"a.java", "b.java"}; !reflect.DeepEqual(got, want) {
			t.Errorf("paths = %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never ran")
	}
	select {
	case extra := <-calls:
		t.Errorf("second batch %v from one burst", extra)
	case <-time.After(60 * time.Millisecond):
	}

	// the batch is reusable after it fired
	b.note("c.java", fsnotify.Write)
	select {
	case got := <-calls:
		if !reflect.DeepEqual(got, []string{"c.java"}) {
			t.Errorf("paths = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second burst never delivered")
	}
}

func TestBatchClose(t *testing.T) {
	ran := make(chan struct{}, 1)
	b := newBatch(10*time.Millisecond, func([]string) error {
		ran <- struct{}{}
		return nil
	}, slog.New(slog.DiscardHandler))
	b.note("a.java", fsnotify.Write)
	b.close()
	b.close()
	b.note("b.java", fsnotify.Write)
	select {
	case <-ran:
		t.Error("handler ran after close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSuppressIgnoresOwnWrites(t *testing.T) {
	fw, err := NewFileWatcher(config.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()

	path := filepath.Join(t.TempDir(), "A.java")
	if err := os.WriteFile(path, []byte("class A {}"), 0644); err != nil {
		t.Fatal(err)
	}
	if fw.selfWrite(path) {
		t.Error("unrecorded file reported as own write")
	}
	fw.Suppress(path)
	if !fw.selfWrite(path) {
		t.Error("recorded file not reported as own write")
	}
	if err := os.WriteFile(path, []byte("class A { int x; }"), 0644); err != nil {
		t.Fatal(err)
	}
	if fw.selfWrite(path) {
		t.Error("user edit reported as own write")
	}
}

func TestSkipDir(t *testing.T) {
	fw, err := NewFileWatcher(config.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()

	root := t.TempDir()
	tests := []struct {
		dir  string
		want bool
	}{
		{"src", false},
		{"build", true},
		{".git", true},
		{"target", true},
		{".idea", true},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			if got := fw.skipDir(root, filepath.Join(root, tt.dir)); got != tt.want {
				t.Errorf("skipDir(%s) = %v, want %v", tt.dir, got, tt.want)
			}
		})
	}
}

func TestWatchAddsTree(t *testing.T) {
	fw, err := NewFileWatcher(config.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()

	root := t.TempDir()
	for _, d := range []string{"src/net", "build/classes"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := fw.Watch([]string{root}, func([]string) error { return nil }); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	want := []string{root, filepath.Join(root, "src"), filepath.Join(root, "src", "net")}
	if got := fw.Dirs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Dirs = %v, want %v", got, want)
	}
}
