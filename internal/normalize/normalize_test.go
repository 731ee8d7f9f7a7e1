package normalize

import (
	"context"
	"strings"
	"testing"

	"refweaver/internal/frontend"
	"refweaver/internal/models"
	"refweaver/internal/pass"
	"refweaver/internal/printer"
	"refweaver/internal/refcount"
)

func apply(t *testing.T, fn pass.Func, src string) (string, *pass.Env) {
	t.Helper()
	prog, err := frontend.Parse(context.Background(), []frontend.Source{{Path: "A.java", Text: []byte(src)}}, 1, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := prog.Files[0]
	env := pass.NewEnv("test", f, prog, nil, refcount.Default(), nil)
	if err := fn(env); err != nil {
		t.Fatalf("pass: %v", err)
	}
	return string(printer.Print(f)), env
}

const instrumented = `class R extends RefCounted {
    R next;

    void link(R n) {
        if (next != null) next.release();
        next = n.retain();
    }

    void pass(R a, R[] all) {
        take(a.retain());
        R.retainAll(all);
        Runnable r = RefCapture.wrap(() -> take(a), a.retain());
        a.release();
    }

    void take(R r) {}

    @Override
    protected void deallocate() {
        if (this.next != null) this.next.release();
    }

    @Override
    public R retain() {
        super.retain();
        return this;
    }

    public static R[] retainAll(R[] items) {
        for (R item : items) {
            if (item != null) item.retain();
        }
        return items;
    }

    public static void releaseAll(R[] items) {
        for (R item : items) {
            if (item != null) item.release();
        }
    }
}
`

func TestRemoveRefs(t *testing.T) {
	got, _ := apply(t, RemoveRefs, instrumented)
	want := `class R extends RefCounted {
    R next;

    void link(R n) {
        next = n;
    }

    void pass(R a, R[] all) {
        take(a);
        Runnable r = () -> take(a);
    }

    void take(R r) {}
}
`
	if got != want {
		t.Errorf("RemoveRefs\ngot:\n%s\nwant:\n%s", got, want)
	}

	again, env := apply(t, RemoveRefs, got)
	if again != got || len(env.Edits()) != 0 {
		t.Errorf("second removal changed the file:\n%s", again)
	}
}

func TestRemoveRefsKeepsForeignCalls(t *testing.T) {
	src := `class Lock {
    Semaphore s;

    void done() {
        s.release();
        if (s != null) s.release();
    }

    void handBack(R r) {
        keep(r.retain());
    }

    void keep(R r) {}
}
class R extends RefCounted {
    protected void deallocate() {
        close();
    }

    void close() {}
}
`
	got, env := apply(t, RemoveRefs, src)
	for _, want := range []string{"s.release();\n        if (s != null) s.release();", "protected void deallocate() {\n        close();"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}
	if !strings.Contains(got, "keep(r);") {
		t.Errorf("retain not spliced:\n%s", got)
	}
	unresolved := false
	for _, f := range env.Findings() {
		if f.Kind == models.KindUnresolved {
			unresolved = true
		}
	}
	if !unresolved {
		t.Error("receiver of unknown type not reported")
	}
}

func TestRemoveRefsUnbracedBody(t *testing.T) {
	src := `class R extends RefCounted {
    void f(R a, boolean c) {
        if (c) a.release();
        while (c) a.release();
    }
}
`
	got, _ := apply(t, RemoveRefs, src)
	if !strings.Contains(got, "if (c) {}\n        while (c) {}") {
		t.Errorf("unbraced bodies not emptied:\n%s", got)
	}
}

func TestInlineRefs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "temp assigned to field",
			body: "R rc$f$0 = make();\n        f = rc$f$0;",
			want: "f = make();",
		},
		{
			name: "temp returned",
			body: "R rc$ret$0 = make();\n        return rc$ret$0;",
			want: "return make();",
		},
		{
			name: "temp used twice stays",
			body: "R rc$f$0 = make();\n        f = rc$f$0;\n        use(rc$f$0);",
			want: "R rc$f$0 = make();\n        f = rc$f$0;",
		},
		{
			name: "user local stays",
			body: "R tmp = make();\n        f = tmp;",
			want: "R tmp = make();\n        f = tmp;",
		},
		{
			name: "user local returned stays",
			body: "R ret = make();\n        return ret;",
			want: "R ret = make();\n        return ret;",
		},
		{
			name: "nested single statement block collapses",
			body: "{\n            use(f);\n        }",
			want: "void m() {\n        use(f);\n    }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "class R extends RefCounted {\n    R f;\n\n    R make() {\n        return null;\n    }\n\n    void use(R r) {}\n\n    R m() {\n        " + tt.body + "\n    }\n}\n"
			if strings.Contains(tt.want, "void m()") {
				src = strings.Replace(src, "R m()", "void m()", 1)
			}
			got, _ := apply(t, InlineRefs, src)
			if !strings.Contains(got, tt.want) {
				t.Errorf("missing %q in\n%s", tt.want, got)
			}
		})
	}
}

func TestRevert(t *testing.T) {
	src := instrumented + `class User {
    void f(R[] rs) {
        R.releaseAll(rs);
    }
}
`
	got, env := apply(t, Revert, src)
	for _, gone := range []string{"deallocate", "public R retain()", "public static R[] retainAll", "public static void releaseAll"} {
		if strings.Contains(got, gone) {
			t.Errorf("Revert kept %q:\n%s", gone, got)
		}
	}
	if !strings.Contains(got, "next = n.retain();") {
		t.Errorf("Revert touched call sites:\n%s", got)
	}
	missing := 0
	for _, f := range env.Findings() {
		if f.Kind == models.KindMissingSupport {
			missing++
		}
	}
	// R.retainAll(all) in pass and R.releaseAll(rs) in User
	if missing != 2 {
		t.Errorf("got %d missing-support findings, want 2: %v", missing, env.Findings())
	}
}
