package cse

import "github.com/bnb-chain/asmcse/metrics"

// blocksCounter and optimizedCounter mirror the teacher's
// compiler/optimized registered counter: a running total, read by whatever
// metrics sink the host process wires up, of how many basic blocks this
// process has run through the CSE and how many of them were rewritten.
var (
	blocksCounter    = metrics.NewRegisteredCounter("cse/blocks", nil)
	optimizedCounter = metrics.NewRegisteredCounter("cse/optimized", nil)
)

// RecordBlock increments the per-process block counters. changed indicates
// whether the generated sequence differs from the original.
func RecordBlock(changed bool) {
	blocksCounter.Inc(1)
	if changed {
		optimizedCounter.Inc(1)
	}
}
