// Package stats computes the per-commit fabric diagnostics and the
// cumulative stability metrics reported alongside a committed state
// (§4.7), grounded on clos_mult_router.c's compute_fabric_stats and
// the cumulative counters threaded through repack_fabric_and_commit.
package stats

import (
	"time"

	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/fabric"
)

// Snapshot is the per-commit fabric diagnostic, recomputed fresh from
// the realized state after every successful solve.
type Snapshot struct {
	RoutesActive    int
	RoutesPreserved int // same spine as the previous commit
	RoutesNew       int // no previous assignment
	RoutesRemoved   int // had a previous spine, now disconnected

	InputsWithMulticast int // inputs owning 2+ output ports
	InputsMultiSpine    int // inputs whose ports span 2+ spines
	EgressWithMulticast int // egress blocks serving 2+ distinct inputs

	MaxEgressLoad  int // highest distinct-input count across egress blocks
	MaxEgressBlock int // 1-indexed block achieving MaxEgressLoad, 0 if none

	ActiveSpines int // spines carrying at least one route

	// TotalBranches is the sum, over active inputs, of the number of
	// distinct spines that input's committed routes use — a fan-out
	// metric, unrelated to solver.Result.Branches (the search tree's
	// branch count).
	TotalBranches int
}

// Compute derives a Snapshot from st's just-committed realized state,
// comparing against prevSpine (the realized spine vector before this
// commit; indexed like st's port axis) when havePrevious is true.
func Compute(cfg config.Config, st *fabric.State, prevSpine []int, havePrevious bool) Snapshot {
	maxPorts := cfg.MaxPorts()
	var snap Snapshot

	outputsPerInput := make([]int, maxPorts+1)
	spinesPerInput := make([]map[int]struct{}, maxPorts+1)

	for p := 1; p <= maxPorts; p++ {
		owner := st.Owner(p)
		spine := st.Spine(p)
		if owner <= 0 || spine < 0 {
			continue
		}

		snap.RoutesActive++
		outputsPerInput[owner]++
		if spinesPerInput[owner] == nil {
			spinesPerInput[owner] = make(map[int]struct{})
		}
		spinesPerInput[owner][spine] = struct{}{}

		if havePrevious {
			prev := prevSpine[p]
			switch {
			case prev < 0:
				snap.RoutesNew++
			case prev == spine:
				snap.RoutesPreserved++
			}
		} else {
			snap.RoutesNew++
		}
	}

	if havePrevious {
		for p := 1; p <= maxPorts; p++ {
			if prevSpine[p] >= 0 && st.Spine(p) < 0 {
				snap.RoutesRemoved++
			}
		}
	}

	for in := 1; in <= maxPorts; in++ {
		if outputsPerInput[in] >= 2 {
			snap.InputsWithMulticast++
		}
		spineCount := len(spinesPerInput[in])
		if spineCount >= 2 {
			snap.InputsMultiSpine++
		}
		snap.TotalBranches += spineCount
	}

	blocks := cfg.TotalBlocks()
	for e := 0; e < blocks; e++ {
		inputsInBlock := 0
		for s := 0; s < cfg.N(); s++ {
			if st.S2.Get(s, e) != 0 {
				inputsInBlock++
			}
		}
		if inputsInBlock >= 2 {
			snap.EgressWithMulticast++
		}
		if inputsInBlock > snap.MaxEgressLoad {
			snap.MaxEgressLoad = inputsInBlock
			snap.MaxEgressBlock = e + 1
		}
	}

	for s := 0; s < cfg.N(); s++ {
		active := false
		for e := 0; e < blocks; e++ {
			if st.S2.Get(s, e) != 0 {
				active = true
				break
			}
		}
		if active {
			snap.ActiveSpines++
		}
	}

	return snap
}

// ReroutedOutputs counts output ports whose realized spine changed
// from a non-empty previous assignment — a port-level counterpart to
// the solver's demand-level stability cost.
func ReroutedOutputs(prevSpine, spine []int) int {
	count := 0
	for p := range spine {
		if p >= len(prevSpine) {
			break
		}
		if prevSpine[p] >= 0 && spine[p] >= 0 && spine[p] != prevSpine[p] {
			count++
		}
	}
	return count
}

// Accountant tracks cumulative reroute and solve-time metrics across
// the lifetime of a fabric — counters that persist across many
// Route/Clear edits, not reset by any single solve.
type Accountant struct {
	trackedInitial    bool
	initialRouteCount int

	cumulativeReroutes       int
	cumulativeOutputReroutes int
	repackCount              int

	totalSolveTime time.Duration
	lastSolveTime  time.Duration
}

// NewAccountant returns a zeroed Accountant.
func NewAccountant() *Accountant { return &Accountant{} }

// TrackInitial captures the route count of the first previous state
// this fabric ever saw, the baseline stability_reuse_pct is measured
// against. It is a no-op after the first call.
func (a *Accountant) TrackInitial(prevSpine []int, havePrevious bool) {
	if a.trackedInitial || !havePrevious {
		return
	}
	for _, s := range prevSpine {
		if s >= 0 {
			a.initialRouteCount++
		}
	}
	a.trackedInitial = true
}

// RecordSolve accumulates a solve's wall-clock duration.
func (a *Accountant) RecordSolve(d time.Duration) {
	a.lastSolveTime = d
	a.totalSolveTime += d
	a.repackCount++
}

// RecordRepack folds a completed repack's stability cost and
// rerouted-output count into the cumulative counters.
func (a *Accountant) RecordRepack(stabilityCost, reroutedOutputs int) {
	a.cumulativeReroutes += stabilityCost
	a.cumulativeOutputReroutes += reroutedOutputs
}

// StabilityReusePct reports the percentage of the initial route count
// still intact, per clos_mult_router.c's write_state_json formula.
// Fabrics with no tracked initial state report 100%.
func (a *Accountant) StabilityReusePct() float64 {
	if a.initialRouteCount <= 0 {
		return 100.0
	}
	kept := a.initialRouteCount - a.cumulativeReroutes
	if kept < 0 {
		kept = 0
	}
	return float64(kept) * 100.0 / float64(a.initialRouteCount)
}

// RepackCount returns the number of solves this Accountant has recorded.
func (a *Accountant) RepackCount() int { return a.repackCount }

// CumulativeReroutes returns the running total of demand-level
// stability cost across every recorded repack.
func (a *Accountant) CumulativeReroutes() int { return a.cumulativeReroutes }

// CumulativeOutputReroutes returns the running total of port-level
// reroutes across every recorded repack.
func (a *Accountant) CumulativeOutputReroutes() int { return a.cumulativeOutputReroutes }

// TotalSolveTime returns the cumulative wall-clock time spent solving.
func (a *Accountant) TotalSolveTime() time.Duration { return a.totalSolveTime }

// LastSolveTime returns the most recently recorded solve's duration.
func (a *Accountant) LastSolveTime() time.Duration { return a.lastSolveTime }
