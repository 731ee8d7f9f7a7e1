package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"refweaver/internal/frontend"
	"refweaver/internal/models"
	"refweaver/internal/printer"
	"refweaver/internal/refcount"
	"refweaver/internal/verify"
)

const nodeSrc = `class Node extends RefCounted {
    Node next;

    void link(Node n) {
        next = n;
    }

    void touch() {}
}
`

const userSrc = `class User {
    void use(Node a) {
        Node b = make();
        keep(a);
        keep(b);
    }

    Node make() {
        return new Node();
    }

    void keep(Node n) {}
}
`

const schedSrc = `interface Executor {
    void run(Runnable r);
}

class Sched {
    void later(Node n, Executor ex) {
        ex.run(() -> n.touch());
    }
}
`

const poolSrc = `class Pool {
    Semaphore permits;

    void done() {
        permits.release();
    }
}
`

const plainSrc = `class Plain {
    int x;

    void set(int y) {
        if (y > 0) {
            x = y;
        }
    }
}
`

type run struct {
	s      *Scheduler
	result *models.RunResult
	err    error
}

func (r run) text(t *testing.T, path string) string {
	t.Helper()
	text := r.s.Text(path)
	if text == nil {
		t.Fatalf("no text for %s", path)
	}
	return string(text)
}

func runCommand(t *testing.T, command string, files map[string]string) run {
	t.Helper()
	var srcs []frontend.Source
	for path, text := range files {
		srcs = append(srcs, frontend.Source{Path: path, Text: []byte(text)})
	}
	result := models.NewRunResult(command)
	s := New(Options{Conv: refcount.Default(), Jobs: 2, DryRun: true}, srcs, result)
	err := Run(context.Background(), command, s)
	return run{s: s, result: result, err: err}
}

// texts collects the current text of every file of r.
func texts(t *testing.T, r run, files map[string]string) map[string]string {
	t.Helper()
	out := make(map[string]string, len(files))
	for path := range files {
		out[path] = r.text(t, path)
	}
	return out
}

func program() map[string]string {
	return map[string]string{
		"Node.java":  nodeSrc,
		"User.java":  userSrc,
		"Sched.java": schedSrc,
		"Pool.java":  poolSrc,
	}
}

func TestInsert(t *testing.T) {
	r := runCommand(t, Insert, program())
	if r.err != nil {
		t.Fatalf("insert: %v", r.err)
	}

	tests := []struct {
		file string
		want []string
	}{
		{"Node.java", []string{
			"if (next != null) next.release();\n        next = n.retain();",
			"protected void deallocate() {",
			"if (this.next != null) this.next.release();",
			"public Node retain() {",
			"public static Node[] retainAll(Node[] items) {",
			"public static void releaseAll(Node[] items) {",
		}},
		{"User.java", []string{
			"keep(a.retain());\n        a.release();",
			"keep(b.retain());\n        b.release();",
			"void keep(Node n) {\n        n.release();\n    }",
			"return new Node();",
		}},
		{"Sched.java", []string{
			"ex.run(RefCapture.wrap(() -> n.touch(), n.retain()));\n        n.release();",
		}},
		{"Pool.java", []string{
			"permits.release();",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got := r.text(t, tt.file)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("missing %q in\n%s", want, got)
				}
			}
		})
	}

	// the link parameter is handed to the field, never released
	if got := r.text(t, "Node.java"); strings.Contains(got, "n.release()") {
		t.Errorf("stored parameter released:\n%s", got)
	}
	if contains(r.result.FilesChanged, "Pool.java") {
		t.Error("Pool.java changed although it has no reference-counted bindings")
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func TestInsertIsIdempotent(t *testing.T) {
	files := program()
	first := runCommand(t, Insert, files)
	if first.err != nil {
		t.Fatalf("insert: %v", first.err)
	}
	instrumented := texts(t, first, files)
	second := runCommand(t, Insert, instrumented)
	if second.err != nil {
		t.Fatalf("second insert: %v", second.err)
	}
	if len(second.result.FilesChanged) != 0 {
		t.Errorf("second insert changed %v", second.result.FilesChanged)
	}
	for path, want := range instrumented {
		if got := second.text(t, path); got != want {
			t.Errorf("%s differs after second insert\ngot:\n%s\nwant:\n%s", path, got, want)
		}
	}
}

func TestInsertThenRemoveRoundTrips(t *testing.T) {
	files := program()
	baseline := runCommand(t, Remove, files)
	if baseline.err != nil {
		t.Fatalf("remove on plain sources: %v", baseline.err)
	}
	if len(baseline.result.FilesChanged) != 0 {
		t.Errorf("remove changed uninstrumented files %v", baseline.result.FilesChanged)
	}

	inserted := runCommand(t, Insert, files)
	if inserted.err != nil {
		t.Fatalf("insert: %v", inserted.err)
	}
	removed := runCommand(t, Remove, texts(t, inserted, files))
	if removed.err != nil {
		t.Fatalf("remove: %v", removed.err)
	}
	for path := range files {
		if got, want := removed.text(t, path), baseline.text(t, path); got != want {
			t.Errorf("%s does not round trip\ngot:\n%s\nwant:\n%s", path, got, want)
		}
	}
	// library calls that happen to be named release survive removal
	if got := removed.text(t, "Pool.java"); !strings.Contains(got, "permits.release();") {
		t.Errorf("Pool.java lost its semaphore release:\n%s", got)
	}
}

const flowSrc = `class Flow {
    int pick(int k) {
        switch (k) {
            case 1:
                return 1;
            default:
                return 0;
        }
    }

    int scan(Node x, boolean c) {
        while (c) {
            if (c) {
                return x.next == null ? 1 : 0;
            }
        }
        return 0;
    }

    void swap() {
        Node x = new Node();
        x.touch();
        x = new Node();
        x.touch();
    }

    void guard(Node x) {
        try {
            x.touch();
        } catch (RuntimeException e) {
            return;
        }
    }
}
`

func TestInsertControlFlow(t *testing.T) {
	files := map[string]string{"Node.java": nodeSrc, "Flow.java": flowSrc}
	r := runCommand(t, Insert, files)
	if r.err != nil {
		t.Fatalf("insert: %v", r.err)
	}
	got := r.text(t, "Flow.java")
	for _, want := range []string{
		"case 1:\n                return 1;\n            default:\n                return 0;",
		"int rc$ret$0 = x.next == null ? 1 : 0;\n                x.release();\n                return rc$ret$0;",
		"        }\n        x.release();\n        return 0;",
		"x.touch();\n        if (x != null) x.release();\n        x = new Node();\n        x.touch();\n        if (x != null) x.release();",
		"} catch (RuntimeException e) {\n            return;\n        }\n        x.release();",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}

	again := runCommand(t, Insert, texts(t, r, files))
	if again.err != nil {
		t.Fatalf("second insert: %v", again.err)
	}
	if len(again.result.FilesChanged) != 0 {
		t.Errorf("second insert changed %v", again.result.FilesChanged)
	}
	removed := runCommand(t, Remove, texts(t, r, files))
	if removed.err != nil {
		t.Fatalf("remove: %v", removed.err)
	}
	if got := removed.text(t, "Flow.java"); got != flowSrc {
		t.Errorf("Flow.java does not round trip\ngot:\n%s\nwant:\n%s", got, flowSrc)
	}
}

func TestProgramWithoutRefCountingIsUntouched(t *testing.T) {
	files := map[string]string{"Plain.java": plainSrc}
	for _, command := range []string{Insert, Remove, Revert} {
		t.Run(command, func(t *testing.T) {
			r := runCommand(t, command, files)
			if r.err != nil {
				t.Fatalf("%s: %v", command, r.err)
			}
			if len(r.result.FilesChanged) != 0 {
				t.Errorf("%s changed %v", command, r.result.FilesChanged)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	files := program()
	r := runCommand(t, Verify, files)
	var ve *verify.Error
	if !errors.As(r.err, &ve) {
		t.Fatalf("verify on plain sources: err = %v, want *verify.Error", r.err)
	}
	kinds := make(map[models.Kind]bool)
	for _, f := range ve.Findings {
		kinds[f.Kind] = true
	}
	for _, k := range []models.Kind{models.KindMissingSupport, models.KindMissingRetain,
		models.KindMissingRelease, models.KindMissingExchange, models.KindUnwrappedCapture} {
		if !kinds[k] {
			t.Errorf("no %s finding", k)
		}
	}
	if len(r.result.FilesChanged) != 0 {
		t.Errorf("verify changed %v", r.result.FilesChanged)
	}

	inserted := runCommand(t, Insert, files)
	if inserted.err != nil {
		t.Fatalf("insert: %v", inserted.err)
	}
	clean := runCommand(t, Verify, texts(t, inserted, files))
	if clean.err != nil {
		t.Errorf("verify after insert: %v", clean.err)
	}
}

func TestRevertRemovesOnlySupportMethods(t *testing.T) {
	files := program()
	inserted := runCommand(t, Insert, files)
	if inserted.err != nil {
		t.Fatalf("insert: %v", inserted.err)
	}
	r := runCommand(t, Revert, texts(t, inserted, files))
	if r.err != nil {
		t.Fatalf("revert: %v", r.err)
	}
	node := r.text(t, "Node.java")
	for _, gone := range []string{"deallocate()", "public Node retain()", "retainAll(", "releaseAll("} {
		if strings.Contains(node, gone) {
			t.Errorf("revert kept %q:\n%s", gone, node)
		}
	}
	if !strings.Contains(node, "next = n.retain();") {
		t.Errorf("revert removed call-site instrumentation:\n%s", node)
	}
}

func TestConvergeBound(t *testing.T) {
	files := map[string]string{"Node.java": nodeSrc}
	var srcs []frontend.Source
	for path, text := range files {
		srcs = append(srcs, frontend.Source{Path: path, Text: []byte(text)})
	}
	s := New(Options{Conv: refcount.Default(), MaxIterations: 1, DryRun: true}, srcs, models.NewRunResult(Insert))
	err := Run(context.Background(), Insert, s)
	if !errors.Is(err, ErrNoFixedPoint) {
		t.Fatalf("err = %v, want ErrNoFixedPoint", err)
	}
}

func TestPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Node.java")
	if err := os.WriteFile(path, []byte(nodeSrc), 0600); err != nil {
		t.Fatal(err)
	}
	srcs := []frontend.Source{{Path: path, Text: []byte(nodeSrc)}}

	t.Run("format failure writes nothing", func(t *testing.T) {
		opts := Options{Conv: refcount.Default(), Formatter: printer.NewCommand("")}
		err := Run(context.Background(), Insert, New(opts, srcs, models.NewRunResult(Insert)))
		var fe *printer.FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("err = %v, want *printer.FormatError", err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != nodeSrc {
			t.Errorf("file rewritten despite the format failure:\n%s", data)
		}
	})

	t.Run("writes and keeps mode", func(t *testing.T) {
		result := models.NewRunResult(Insert)
		if err := Run(context.Background(), Insert, New(Options{Conv: refcount.Default()}, srcs, result)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "next = n.retain();") {
			t.Errorf("file not instrumented:\n%s", data)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("mode = %v, want 0600", info.Mode().Perm())
		}
		if len(result.FilesChanged) != 1 {
			t.Errorf("FilesChanged = %v", result.FilesChanged)
		}
		if _, err := os.Stat(path + ".refweaver.tmp"); !os.IsNotExist(err) {
			t.Errorf("temporary file left behind: %v", err)
		}
	})
}
