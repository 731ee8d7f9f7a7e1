package syntax

import (
	"fmt"

	"fortio.org/safecast"
)

// FileID identifies a source file within one parsed program.
type FileID uint32

// Pos is a 1-based line/column pair. The zero Pos marks synthesized nodes.
type Pos struct {
	Line uint32
	Col  uint32
}

// Before reports whether p sorts strictly before q.
func (p Pos) Before(q Pos) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// MakePos converts lexer offsets into a Pos.
func MakePos(line, col int) Pos {
	l, err := safecast.Conv[uint32](line)
	if err != nil {
		l = 0
	}
	c, err := safecast.Conv[uint32](col)
	if err != nil {
		c = 0
	}
	return Pos{Line: l, Col: c}
}

// Span is a half-open source range inside one file.
type Span struct {
	File  FileID
	Start Pos
	End   Pos
}

// IsZero reports whether the span belongs to a synthesized node.
func (s Span) IsZero() bool {
	return s.Start == (Pos{}) && s.End == (Pos{})
}

// Contains reports whether other nests lexically inside s: other does not
// start before s and does not end after it.
func (s Span) Contains(other Span) bool {
	if s.File != other.File {
		return false
	}
	return !other.Start.Before(s.Start) && !s.End.Before(other.End)
}

// Cover returns the smallest span enclosing both s and other.
func (s Span) Cover(other Span) Span {
	if s.IsZero() {
		return other
	}
	if other.IsZero() || s.File != other.File {
		return s
	}
	if other.Start.Before(s.Start) {
		s.Start = other.Start
	}
	if s.End.Before(other.End) {
		s.End = other.End
	}
	return s
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%s-%s", s.File, s.Start, s.End)
}
