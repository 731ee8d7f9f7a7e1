package verify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"refweaver/internal/frontend"
	"refweaver/internal/index"
	"refweaver/internal/models"
	"refweaver/internal/pass"
	"refweaver/internal/refcount"
)

func check(t *testing.T, src string) []models.Finding {
	t.Helper()
	prog, err := frontend.Parse(context.Background(), []frontend.Source{{Path: "A.java", Text: []byte(src)}}, 1, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ix, err := index.Build(prog.Files, index.Options{})
	if err != nil {
		t.Fatal(err)
	}
	env := pass.NewEnv("verify", prog.Files[0], prog, ix, refcount.Default(), nil)
	if err := Check(env); err != nil {
		t.Fatalf("Check: %v", err)
	}
	return env.Findings()
}

func countKinds(fs []models.Finding) map[models.Kind]int {
	out := make(map[models.Kind]int)
	for _, f := range fs {
		out[f.Kind]++
	}
	return out
}

func TestCheckReportsMissingInstrumentation(t *testing.T) {
	got := countKinds(check(t, `class R extends RefCounted {
    R next;

    void link(R n) {
        next = n;
    }
}`))
	for _, k := range []models.Kind{models.KindMissingSupport, models.KindMissingExchange} {
		if got[k] == 0 {
			t.Errorf("no %s in %v", k, got)
		}
	}
}

func TestCheckInstrumentedIsClean(t *testing.T) {
	fs := check(t, `class R extends RefCounted {
    void touch(R other) {
        other.release();
    }

    @Override
    protected void deallocate() {}

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
}`)
	if err := Join(fs); err != nil {
		t.Errorf("instrumented class failed verification: %v", err)
	}
}

func TestPlainOwner(t *testing.T) {
	fs := check(t, `class R extends RefCounted {}
class Holder {
    R r;
}`)
	got := countKinds(fs)
	if got[models.KindPlainOwner] != 1 {
		t.Errorf("plain owner findings = %d, want 1: %v", got[models.KindPlainOwner], fs)
	}
	if got[models.KindInstrumentFailure] != 0 {
		t.Errorf("plain owner reported twice: %v", fs)
	}
	for _, f := range fs {
		if f.Pass != "verify" {
			t.Errorf("finding from pass %q", f.Pass)
		}
	}
}

func TestJoin(t *testing.T) {
	low := models.Finding{Kind: models.KindUnresolved, Severity: models.SeverityLow, File: "A.java", Line: 1}
	high := models.Finding{Kind: models.KindMissingRelease, Severity: models.SeverityHigh, File: "A.java", Line: 4, Column: 9, Message: "missing_release: would release"}

	if err := Join([]models.Finding{low}); err != nil {
		t.Errorf("Join(low) = %v, want nil", err)
	}

	err := Join([]models.Finding{low, high, high})
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("Join = %v, want *Error", err)
	}
	if len(ve.Findings) != 2 {
		t.Errorf("kept %d findings, want 2", len(ve.Findings))
	}
	var v *Violation
	if !errors.As(err, &v) || v.Line != 4 {
		t.Errorf("violation not reachable through Unwrap: %v", v)
	}
	if !strings.Contains(err.Error(), "2 violation(s)") || !strings.Contains(err.Error(), "A.java:4:9") {
		t.Errorf("Error() = %q", err.Error())
	}
}
