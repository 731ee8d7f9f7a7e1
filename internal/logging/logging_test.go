package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"chatty", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelInfo, false)

	log.Debug("hidden")
	log.With("pass", "release-last-uses").WithGroup("pos").Info("edit applied", "line", 3, "note", "two words")
	log.Warn("skipped", slog.Group("span", "start", "1:2"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	want := []string{
		`INFO  edit applied pass=release-last-uses pos.line=3 pos.note="two words"`,
		`WARN  skipped span.start=1:2`,
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestWithAttrsAfterGroup(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelDebug, false)
	log.WithGroup("file").With("path", "A.java").Debug("parsed", "types", 2)
	got := strings.TrimSpace(buf.String())
	if got != "DEBUG parsed file.path=A.java file.types=2" {
		t.Errorf("got %q", got)
	}
}
