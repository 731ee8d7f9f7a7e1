package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// batch gathers source changes until the tree has been quiet for the
// settle delay, then hands the changed paths to the handler in one call.
type batch struct {
	settle time.Duration
	run    Handler
	log    *slog.Logger

	mu      sync.Mutex
	pending map[string]fsnotify.Op
	timer   *time.Timer
	closed  bool
	done    chan struct{}
}

func newBatch(settle time.Duration, run Handler, log *slog.Logger) *batch {
	return &batch{
		settle:  settle,
		run:     run,
		log:     log,
		pending: make(map[string]fsnotify.Op),
		done:    make(chan struct{}),
	}
}

// note merges op into the pending change for path and restarts the
// settle delay.
func (b *batch) note(path string, op fsnotify.Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.pending[path] |= op
	if b.timer == nil {
		b.timer = time.AfterFunc(b.settle, b.fire)
		return
	}
	b.timer.Reset(b.settle)
}

func (b *batch) fire() {
	b.mu.Lock()
	if b.closed || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(b.pending))
	for p, op := range b.pending {
		b.log.Debug("source settled", "file", p, "op", op.String())
		paths = append(paths, p)
	}
	clear(b.pending)
	b.mu.Unlock()

	sort.Strings(paths)
	// runs unlocked; a rewrite it performs queues the next batch
	if err := b.run(paths); err != nil {
		b.log.Error("watch handler failed", "files", len(paths), "err", err)
	}
}

func (b *batch) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	close(b.done)
}
