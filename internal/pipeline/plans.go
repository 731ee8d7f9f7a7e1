package pipeline

import (
	"context"
	"fmt"

	"refweaver/internal/instrument"
	"refweaver/internal/normalize"
	"refweaver/internal/pass"
	"refweaver/internal/verify"
)

// Commands.
const (
	Insert = "insert"
	Remove = "remove"
	Verify = "verify"
	Revert = "revert"
)

// Commands lists every command in help order.
var Commands = []string{Insert, Remove, Verify, Revert}

// NormalizePasses strip instrumentation and fold generated temporaries.
func NormalizePasses() []pass.Pass {
	return []pass.Pass{
		{Name: "remove-refs", Run: normalize.RemoveRefs},
		{Name: "inline-refs", Run: normalize.InlineRefs},
	}
}

// Run executes the pass plan of command. Insert first normalizes the
// program so it always instruments from the same baseline. Verify works
// on the in-memory tree only and never persists.
func Run(ctx context.Context, command string, s *Scheduler) error {
	switch command {
	case Insert:
		if err := s.Converge(ctx, "normalize", NormalizePasses()...); err != nil {
			return err
		}
		if err := s.Converge(ctx, "instrument", instrument.Passes()...); err != nil {
			return err
		}
	case Remove:
		if err := s.Converge(ctx, "normalize", NormalizePasses()...); err != nil {
			return err
		}
	case Verify:
		check := pass.Pass{Name: "verify", NeedsIndex: true, Run: verify.Check}
		if err := s.Once(ctx, "verify", check); err != nil {
			return err
		}
		return verify.Join(s.result.Findings)
	case Revert:
		if err := s.Once(ctx, "revert", pass.Pass{Name: "revert", Run: normalize.Revert}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return s.Persist(ctx)
}
