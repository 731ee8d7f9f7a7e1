package printer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"refweaver/internal/frontend"
)

func TestPrintCanonicalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "fields and methods",
			src: `package demo;

import java.util.List;

// Owner of a list.
public class A extends Base {
    private int n;
    List<String> names;

    @Override
    protected void deallocate() {
        // release
        if (names != null) names.clear();
        super.deallocate();
    }
}
`,
		},
		{
			name: "statements",
			src: `class B {
    int sum(int[] xs) {
        int total = 0;
        for (int i = 0; i < xs.length; i++) {
            total += xs[i];
        }
        for (int x : xs) total -= x;
        while (total > 10) total--;
        if (total == 0) {
            return -1;
        } else if (total < 0) return 1;
        return total;
    }
}
`,
		},
		{
			name: "compound statements",
			src: `class E {
    int f(Object lock, int k) {
        do k--; while (k > 10);
        do {
            k++;
        } while (k < 0);
        outer: for (int i = 0; i < k; i++) {
            while (true) continue outer;
        }
        synchronized (lock) {
            k = k * 2;
        }
        try (java.io.Reader r = open(); java.io.Reader s = open()) {
            k = r.read();
        } catch (java.io.IOException | RuntimeException e) {
            return -1;
        } finally {
            close();
        }
        switch (k) {
            case 1:
            case 2:
                k = 0;
                break;
            default:
                return k;
        }
        switch (k) {
            case 0 -> k++;
            case 1, 2 -> {
                return 1;
            }
            default -> throw new IllegalStateException();
        }
        return k;
    }
}
`,
		},
		{
			name: "expressions",
			src: `class C {
    Runnable r = () -> {};

    Object f(Object o) {
        Object[] arr = new Object[] {o, null};
        String s = o instanceof String ? (String) o : "none";
        java.util.function.Function<Object, Object> id = x -> x;
        return new Object() {
            public String toString() {
                return s;
            }
        };
    }
}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := frontend.ParseFile(1, "X.java", tt.src)
			if err != nil {
				t.Fatalf("ParseFile: %v", err)
			}
			got := string(Print(f))
			if got != tt.src {
				t.Errorf("Print mismatch\ngot:\n%s\nwant:\n%s", got, tt.src)
			}
		})
	}
}

func TestPrintIsStable(t *testing.T) {
	src := `class D{void f(){if(a)if(b)g();else h();int  x=1;}}`
	f, err := frontend.ParseFile(1, "D.java", src)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	once := Print(f)
	again, err := frontend.ParseFile(1, "D.java", string(once))
	if err != nil {
		t.Fatalf("re-parse printed output: %v\n%s", err, once)
	}
	if twice := Print(again); string(twice) != string(once) {
		t.Errorf("printing is not stable\nfirst:\n%s\nsecond:\n%s", once, twice)
	}
	// the else binds to the inner if, so braces must keep it there
	if !strings.Contains(string(once), "if (a) if (b) g();") {
		t.Errorf("nested if lost its shape:\n%s", once)
	}
}

func TestCanonicalFormat(t *testing.T) {
	got, err := Canonical{}.Format(context.Background(), "A.java", []byte("class A {}  \n\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "class A {}\n" {
		t.Errorf("Format = %q", got)
	}
}

func TestRenderWrapsFormatterErrors(t *testing.T) {
	_, err := Render(context.Background(), NewCommand(""), "A.java", []byte("class A {}"))
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FormatError", err)
	}
	if fe.Path != "A.java" {
		t.Errorf("Path = %q", fe.Path)
	}
}
