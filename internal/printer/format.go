package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Formatter turns printed source into its final on-disk form.
type Formatter interface {
	Format(ctx context.Context, path string, src []byte) ([]byte, error)
}

// FormatError reports that a file could not be formatted. It is fatal for
// the run because the rewritten text cannot be persisted.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format %s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Canonical strips trailing whitespace and ends the file with exactly one
// newline.
type Canonical struct{}

func (Canonical) Format(_ context.Context, _ string, src []byte) ([]byte, error) {
	lines := bytes.Split(src, []byte("\n"))
	for i, l := range lines {
		lines[i] = bytes.TrimRight(l, " \t\r")
	}
	out := bytes.TrimRight(bytes.Join(lines, []byte("\n")), "\n")
	return append(out, '\n'), nil
}

// Command pipes source through an external formatter. The command reads
// the source on stdin and writes the result on stdout; "{file}" in an
// argument is replaced by the path being formatted.
type Command struct {
	Argv []string
}

// NewCommand splits a command line on whitespace.
func NewCommand(line string) *Command {
	return &Command{Argv: strings.Fields(line)}
}

func (c *Command) Format(ctx context.Context, path string, src []byte) ([]byte, error) {
	if len(c.Argv) == 0 {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("empty formatter command")}
	}
	args := make([]string, len(c.Argv)-1)
	for i, a := range c.Argv[1:] {
		args[i] = strings.ReplaceAll(a, "{file}", path)
	}
	cmd := exec.CommandContext(ctx, c.Argv[0], args...)
	cmd.Stdin = bytes.NewReader(src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &FormatError{Path: path, Err: err}
	}
	if stdout.Len() == 0 && len(src) > 0 {
		return nil, &FormatError{Path: path, Err: fmt.Errorf("formatter produced no output")}
	}
	return stdout.Bytes(), nil
}

// Render runs printed source through f and reports failures as
// *FormatError.
func Render(ctx context.Context, f Formatter, path string, src []byte) ([]byte, error) {
	if f == nil {
		f = Canonical{}
	}
	out, err := f.Format(ctx, path, src)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FormatError{Path: path, Err: err}
	}
	return out, nil
}
