// Package trace records what the indexer discovers as a msgpack stream.
// Records are observational; nothing in the pipeline reads them back.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when Record changes.
const schemaVersion uint16 = 1

// Event kinds.
const (
	Definition = "definition"
	Reference  = "reference"
)

// Frame is one enclosing construct of a record.
type Frame struct {
	Binding string `msgpack:"binding"`
	Kind    string `msgpack:"kind"`
	Span    string `msgpack:"span"`
}

// Record is one discovered definition or reference.
type Record struct {
	Schema  uint16  `msgpack:"schema"`
	Event   string  `msgpack:"event"`
	File    string  `msgpack:"file"`
	Binding string  `msgpack:"binding"`
	Kind    string  `msgpack:"kind"`
	Span    string  `msgpack:"span"`
	Context []Frame `msgpack:"context,omitempty"`
}

// Sink receives trace records. Implementations must be safe for use by
// concurrent indexers.
type Sink interface {
	Emit(r Record)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Emit(Record) {}

// Writer encodes records to a stream. Encoding errors are kept and
// reported by Close so that tracing never interrupts a run.
type Writer struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *msgpack.Encoder
	c   io.Closer
	n   int
	err error
}

// NewWriter encodes records to w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	tw := &Writer{buf: buf, enc: msgpack.NewEncoder(buf)}
	if c, ok := w.(io.Closer); ok {
		tw.c = c
	}
	return tw
}

// Create opens path for writing and returns a Writer on it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	return NewWriter(f), nil
}

func (w *Writer) Emit(r Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	r.Schema = schemaVersion
	if err := w.enc.Encode(&r); err != nil {
		w.err = err
		return
	}
	w.n++
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close flushes buffered records and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.err
	if ferr := w.buf.Flush(); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if w.c != nil {
		if cerr := w.c.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return err
}

// Read decodes every record from r. It is used by tests and tooling that
// inspect trace files.
func Read(r io.Reader) ([]Record, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	var out []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode trace record: %w", err)
		}
		out = append(out, rec)
	}
}
