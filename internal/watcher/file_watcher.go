// Package watcher re-runs a command when Java sources under the watched
// roots change.
package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/xxh3"

	"refweaver/internal/config"
)

const settleDelay = 500 * time.Millisecond

// Handler receives the sorted paths of one settled batch of changes.
type Handler func(paths []string) error

// ignoredDirs are never descended into, whatever the include patterns say.
var ignoredDirs = map[string]bool{
	".git": true, ".gradle": true, ".idea": true, ".vscode": true,
	"build": true, "target": true, "out": true, "node_modules": true,
}

type FileWatcher struct {
	fsw  *fsnotify.Watcher
	cfg  *config.Config
	log  *slog.Logger
	dirs map[string]bool

	batch *batch

	// written holds digests of files the handler rewrote itself
	mu      sync.Mutex
	written map[string]uint64
}

func NewFileWatcher(cfg *config.Config, log *slog.Logger) (*FileWatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &FileWatcher{
		fsw:     fsw,
		cfg:     cfg,
		log:     log,
		dirs:    make(map[string]bool),
		written: make(map[string]uint64),
	}, nil
}

// Watch adds every directory under roots and starts delivering settled
// batches to run. It returns once the watches are in place.
func (fw *FileWatcher) Watch(roots []string, run Handler) error {
	fw.batch = newBatch(settleDelay, run, fw.log)
	for _, root := range roots {
		if err := fw.addTree(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}
	go fw.loop()
	return nil
}

// Suppress records the current content of paths so that the events their
// own rewrite produces are ignored.
func (fw *FileWatcher) Suppress(paths ...string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		fw.written[filepath.Clean(p)] = xxh3.Hash(data)
	}
}

// selfWrite reports whether path still holds exactly what was last
// recorded by Suppress.
func (fw *FileWatcher) selfWrite(path string) bool {
	fw.mu.Lock()
	sum, ok := fw.written[filepath.Clean(path)]
	fw.mu.Unlock()
	if !ok {
		return false
	}
	data, err := os.ReadFile(path)
	return err == nil && xxh3.Hash(data) == sum
}

func (fw *FileWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && fw.skipDir(root, path) {
			return filepath.SkipDir
		}
		if fw.dirs[path] {
			return nil
		}
		if err := fw.fsw.Add(path); err != nil {
			return fmt.Errorf("add %s: %w", path, err)
		}
		fw.dirs[path] = true
		return nil
	})
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case ev, ok := <-fw.fsw.Events:
			if !ok {
				return
			}
			fw.handle(ev)
		case err, ok := <-fw.fsw.Errors:
			if !ok {
				return
			}
			fw.log.Warn("file watcher error", "err", err)
		case <-fw.batch.done:
			return
		}
	}
}

func (fw *FileWatcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := fw.addTree(ev.Name); err != nil {
				fw.log.Warn("cannot watch new directory", "dir", ev.Name, "err", err)
			}
			return
		}
	}
	if filepath.Ext(ev.Name) != ".java" || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	// permission changes and our own rewrites carry no new source
	if ev.Op == fsnotify.Chmod || fw.selfWrite(ev.Name) {
		return
	}
	fw.batch.note(ev.Name, ev.Op)
}

func (fw *FileWatcher) skipDir(root, path string) bool {
	if ignoredDirs[filepath.Base(path)] {
		return true
	}
	if fw.cfg == nil {
		return false
	}
	rel, err := filepath.Rel(root, path)
	return err == nil && !fw.cfg.IsIncluded(filepath.ToSlash(rel)+"/x.java")
}

func (fw *FileWatcher) Close() error {
	if fw.batch != nil {
		fw.batch.close()
	}
	return fw.fsw.Close()
}

// Dirs returns the watched directories in order.
func (fw *FileWatcher) Dirs() []string {
	out := make([]string, 0, len(fw.dirs))
	for d := range fw.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
