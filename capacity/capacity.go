// Package capacity implements the necessary-but-not-sufficient
// pre-check of §4.3: before search begins, reject any demand set that
// provably cannot fit the fabric's trunk capacity.
package capacity

import (
	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/demand"
)

// BlockLoad is a single block's diagnostic: how many distinct inputs
// contend for it versus the fabric's per-block capacity.
type BlockLoad struct {
	Block    int // 0-based block index
	Load     int // distinct inputs observed
	Capacity int // N
}

// Report carries the full per-block diagnostics the original
// implementation's print_unsat_reason produced, restructured as data
// (§6: "fields, not format") instead of printed text.
type Report struct {
	// Egress holds one entry per egress block with load > 0.
	Egress []BlockLoad
	// Ingress holds one entry per ingress block with load > 0.
	Ingress []BlockLoad
}

// Check verifies the two necessary conditions of §4.3 and always
// returns a Report (even when feasible, for observability); ok is
// false iff either condition is violated.
func Check(cfg config.Config, set demand.Set) (ok bool, report Report) {
	n := cfg.N()
	blocks := cfg.TotalBlocks()

	egressLoad := make([]int, blocks)
	for _, in := range set.ActiveInputs {
		for e := 0; e < blocks; e++ {
			if set.NeedBlocks.Test(in, e) {
				egressLoad[e]++
			}
		}
	}

	ingressLoad := make([]int, blocks)
	for _, in := range set.ActiveInputs {
		ingressLoad[cfg.Block(in)]++
	}

	ok = true
	for e, load := range egressLoad {
		if load == 0 {
			continue
		}
		report.Egress = append(report.Egress, BlockLoad{Block: e, Load: load, Capacity: n})
		if load > n {
			ok = false
		}
	}
	for b, load := range ingressLoad {
		if load == 0 {
			continue
		}
		report.Ingress = append(report.Ingress, BlockLoad{Block: b, Load: load, Capacity: n})
		if load > n {
			ok = false
		}
	}

	return ok, report
}
