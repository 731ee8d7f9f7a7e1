package lifetime

import (
	"context"
	"fmt"
	"testing"

	"refweaver/internal/frontend"
	"refweaver/internal/syntax"
)

// method parses body as the body of "void m(Object x, boolean c)".
func method(t *testing.T, body string) (*syntax.Block, *syntax.Symbol) {
	t.Helper()
	src := fmt.Sprintf(`class T {
    void foo(Object o) {}
    void bar() {}
    Object wrap(Object o) { return o; }
    Object m(Object x, boolean c) %s
}`, body)
	prog, err := frontend.Parse(context.Background(), []frontend.Source{{Path: "T.java", Text: []byte(src)}}, 1, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := prog.Files[0].Types[0].Members[3].(*syntax.MethodDecl)
	return m.Body, m.Params[0].Sym
}

func TestLastMentions(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     []int
		returns  []bool
		terminal []bool
	}{
		{
			name:     "straight line keeps the last statement",
			body:     `{ foo(x); bar(); foo(x); bar(); return null; }`,
			want:     []int{2},
			returns:  []bool{false},
			terminal: []bool{false},
		},
		{
			name:     "early return and fall through",
			body:     `{ if (c) return x; foo(x); return null; }`,
			want:     []int{0, 1},
			returns:  []bool{true, false},
			terminal: []bool{false, false},
		},
		{
			name:     "fall-through branch tracks the if",
			body:     `{ if (c) { foo(x); } bar(); return null; }`,
			want:     []int{0},
			returns:  []bool{false},
			terminal: []bool{false},
		},
		{
			name:     "condition mention tracks the if",
			body:     `{ if (x == null) bar(); return null; }`,
			want:     []int{0},
			returns:  []bool{false},
			terminal: []bool{false},
		},
		{
			name:     "use before an early exit is terminal",
			body:     `{ if (c) { foo(x); return null; } bar(); return null; }`,
			want:     []int{0},
			returns:  []bool{false},
			terminal: []bool{true},
		},
		{
			name:     "complex return",
			body:     `{ return wrap(x); }`,
			want:     []int{0},
			returns:  []bool{true},
			terminal: []bool{false},
		},
		{
			name:     "return inside a loop",
			body:     `{ while (c) { if (c) return wrap(x); } return null; }`,
			want:     []int{0, 0},
			returns:  []bool{true, false},
			terminal: []bool{false, false},
		},
		{
			name:     "use before a throw inside a loop",
			body:     `{ while (c) { foo(x); throw null; } return null; }`,
			want:     []int{0, 0},
			returns:  []bool{false, false},
			terminal: []bool{true, false},
		},
		{
			name:     "break hides uses inside the loop",
			body:     `{ while (c) { foo(x); break; } return null; }`,
			want:     []int{0},
			returns:  []bool{false},
			terminal: []bool{false},
		},
		{
			name:     "endless loop is not tracked",
			body:     `{ while (true) { if (c) return x; } }`,
			want:     []int{0},
			returns:  []bool{true},
			terminal: []bool{false},
		},
		{
			name:     "return in a switch case",
			body:     `{ switch (1) { case 1: return wrap(x); default: foo(x); } return null; }`,
			want:     []int{0, 0},
			returns:  []bool{true, false},
			terminal: []bool{false, false},
		},
		{
			name:     "return in a try body",
			body:     `{ try { return wrap(x); } catch (RuntimeException e) { foo(x); } return null; }`,
			want:     []int{0, 0},
			returns:  []bool{true, false},
			terminal: []bool{false, false},
		},
		{
			name:     "exit path without a use",
			body:     `{ if (c) return null; foo(x); return null; }`,
			want:     []int{1},
			returns:  []bool{false},
			terminal: []bool{false},
		},
		{
			name: "unused",
			body: `{ bar(); return null; }`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, sym := method(t, tt.body)
			got := LastMentions(body, sym)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d mentions, want %d", len(got), len(tt.want))
			}
			for i, m := range got {
				if m.Index != tt.want[i] {
					t.Errorf("mention %d index = %d, want %d", i, m.Index, tt.want[i])
				}
				if m.IsReturn != tt.returns[i] {
					t.Errorf("mention %d IsReturn = %v, want %v", i, m.IsReturn, tt.returns[i])
				}
				if m.Terminal != tt.terminal[i] {
					t.Errorf("mention %d Terminal = %v, want %v", i, m.Terminal, tt.terminal[i])
				}
			}
		})
	}
}

func TestComplexReturn(t *testing.T) {
	body, sym := method(t, `{ return wrap(x); }`)
	got := LastMentions(body, sym)
	if len(got) != 1 || !got[0].IsComplexReturn {
		t.Fatalf("got %+v, want one complex return", got)
	}
	body, sym = method(t, `{ return (x); }`)
	got = LastMentions(body, sym)
	if len(got) != 1 || got[0].IsComplexReturn {
		t.Fatalf("got %+v, want one bare return", got)
	}
}

func TestResolveWrapsUnbracedBranch(t *testing.T) {
	body, sym := method(t, `{ if (c) foo(x); else bar(); return null; }`)
	ifs := body.Stmts[0].(*syntax.If)
	_, fallsThrough := branches(ifs, sym)
	if !fallsThrough {
		t.Fatal("unbraced then branch should fall through")
	}

	m := Mention{Slot: &ifs.Then}
	blk, i := m.Resolve()
	if i != 0 || len(blk.Stmts) != 1 {
		t.Fatalf("Resolve = %d in %d statements", i, len(blk.Stmts))
	}
	if _, ok := ifs.Then.(*syntax.Block); !ok {
		t.Errorf("then = %T, want *syntax.Block", ifs.Then)
	}
}

func TestCanCompleteNormally(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{ bar(); }`, true},
		{`{ return null; }`, false},
		{`{ if (c) return null; else throw null; }`, false},
		{`{ if (c) return null; }`, true},
		{`{ while (true) { bar(); } }`, false},
		{`{ while (true) { if (c) break; } }`, true},
		{`{ for (;;) { bar(); } }`, false},
		{`{ do { bar(); } while (true); }`, false},
		{`{ do { bar(); } while (c); }`, true},
		{`{ do { if (c) continue; return null; } while (c); }`, true},
		{`{ switch (1) { case 1: return null; default: throw null; } }`, false},
		{`{ switch (1) { case 1: break; default: return null; } }`, true},
		{`{ switch (1) { case 1: return null; } }`, true},
		{`{ switch (1) { case 1 -> throw null; default -> { return null; } } }`, false},
		{`{ try { return null; } finally { bar(); } }`, false},
		{`{ try { return null; } catch (RuntimeException e) { bar(); } }`, true},
		{`{ try { bar(); } finally { return null; } }`, false},
		{`{ synchronized (x) { return null; } }`, false},
		{`{ outer: while (true) { while (c) { break outer; } } }`, true},
		{`{ outer: while (true) { while (c) { break; } } }`, false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			body, _ := method(t, tt.body)
			if got := CanCompleteNormally(body); got != tt.want {
				t.Errorf("CanCompleteNormally = %v, want %v", got, tt.want)
			}
		})
	}
}
