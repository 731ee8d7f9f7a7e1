// Package instrument inserts retain and release calls into reference-counted
// code. Each sub-pass is idempotent: running it on its own output changes
// nothing.
package instrument

import "refweaver/internal/pass"

// Passes returns the instrumentation sub-passes in the order they must run.
func Passes() []pass.Pass {
	return []pass.Pass{
		{Name: "synthesize", Run: Synthesize},
		{Name: "retain-arguments", Run: RetainArguments},
		{Name: "exchange-fields", Run: ExchangeFields},
		{Name: "release-last-uses", Run: ReleaseLastUses},
		{Name: "wrap-captures", NeedsIndex: true, Run: WrapCaptures},
	}
}
