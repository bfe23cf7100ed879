// Package report defines the JSON-tagged wire shapes an external
// encoder marshals a committed fabric state, a prior state, and a lock
// table into (§6). Reading and writing the JSON itself — to a file,
// a socket, wherever — is owned by an invoking layer (§1); this
// package only defines the in-memory shapes and how to build them from
// the rest of the module.
package report

import (
	"time"

	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/fabric"
	"github.com/closmesh/fabric/lockstore"
	"github.com/closmesh/fabric/solver"
	"github.com/closmesh/fabric/stats"
)

// Version is the wire-format version stamped into every FabricState.
const Version = 1

// LockConflict is a rejected or colliding lock tuple, ready to marshal.
type LockConflict struct {
	InputID     int    `json:"input_id"`
	EgressBlock int    `json:"egress_block"`
	Spine       int    `json:"spine"`
	Reason      string `json:"reason"`
}

// FabricState is the full committed-state report of §6: the realized
// topology, the declared intent it satisfies, and every diagnostic
// counter a caller might want without re-deriving them.
type FabricState struct {
	Version     int `json:"version"`
	N           int `json:"N"`
	TotalBlocks int `json:"TOTAL_BLOCKS"`
	MaxPorts    int `json:"MAX_PORTS"`

	S1ToS2 [][]int `json:"s1_to_s2"` // [ingress block][spine] -> input identity
	S2ToS3 [][]int `json:"s2_to_s3"` // [spine][egress block] -> input identity

	S3PortOwner []int `json:"s3_port_owner"`
	S3PortSpine []int `json:"s3_port_spine"`

	DesiredOwner []int `json:"desired_owner"`

	StrictStability bool           `json:"strict_stability"`
	LockConflicts   []LockConflict `json:"lock_conflicts"`

	SolveMS      float64 `json:"solve_ms"`
	SolveTotalMS float64 `json:"solve_total_ms"`
	RepackCount  int     `json:"repack_count"`

	ReroutesDemands int `json:"reroutes_demands"`
	ReroutesOutputs int `json:"reroutes_outputs"`

	LockedDemands int `json:"locked_demands"`
	LockedOutputs int `json:"locked_outputs"`

	RoutesActive    int `json:"routes_active"`
	RoutesPreserved int `json:"routes_preserved"`
	RoutesNew       int `json:"routes_new"`
	RoutesRemoved   int `json:"routes_removed"`

	// StabilityChanges is the per-solve demand-level stability cost of
	// the most recent repack; StabilityReroutes is the cumulative total
	// across every repack this fabric has recorded.
	StabilityChanges  int     `json:"stability_changes"`
	StabilityReroutes int     `json:"stability_reroutes"`
	StabilityReusePct float64 `json:"stability_reuse_pct"`
	InputsWithMult    int     `json:"inputs_with_mult"`
	InputsMultiSpine  int     `json:"inputs_multi_spine"`
	EgressWithMult    int     `json:"egress_with_mult"`
	MaxEgressLoad     int     `json:"max_egress_load"`
	MaxEgressBlock    int     `json:"max_egress_block"`
	ActiveSpines      int     `json:"active_spines"`
	TotalBranches     int     `json:"total_branches"`
}

// PriorState is the shape a caller restoring a saved fabric (see
// engine.Restore) reads back to recover the previous spine assignment; only
// the field the stability comparison actually needs is carried.
type PriorState struct {
	S3PortSpine []int `json:"s3_port_spine"`
}

// Locks is the wire shape of an already-parsed lock table, for a
// caller that wants to echo back what it loaded.
type Locks struct {
	Entries []LockEntry `json:"locks"`
}

// LockEntry is one (input, egress-block, spine) pin.
type LockEntry struct {
	InputID     int `json:"input_id"`
	EgressBlock int `json:"egress_block"`
	Spine       int `json:"spine"`
}

// BuildParams bundles everything Build needs to assemble a FabricState
// without re-deriving it from smaller pieces at every call site.
type BuildParams struct {
	Config      config.Config
	State       *fabric.State
	Locks       *lockstore.Store
	LockCounts  lockstore.Counts
	Snapshot    stats.Snapshot
	Accountant  *stats.Accountant
	SolveResult solver.Result
	SolveMS     float64

	// ReroutedOutputs is the port-level reroute count of the most
	// recent repack alone (txn.Result.ReroutedOutputs), distinct from
	// the Accountant's cumulative total.
	ReroutedOutputs int
}

// Build assembles the full wire report from a just-committed fabric
// and its accompanying diagnostics.
func Build(p BuildParams) FabricState {
	cfg := p.Config
	st := p.State

	s1 := gridRows(st.S1)
	s2 := gridRows(st.S2)

	var lockConflicts []LockConflict
	if p.Locks != nil {
		for _, c := range p.Locks.LoadConflicts() {
			lockConflicts = append(lockConflicts, LockConflict{
				InputID:     c.InputID,
				EgressBlock: c.EgressBlock,
				Spine:       c.Spine,
				Reason:      c.Reason.String(),
			})
		}
	}

	fs := FabricState{
		Version:     Version,
		N:           cfg.N(),
		TotalBlocks: cfg.TotalBlocks(),
		MaxPorts:    cfg.MaxPorts(),

		S1ToS2: s1,
		S2ToS3: s2,

		S3PortOwner: st.OwnerSnapshot(),
		S3PortSpine: st.SpineSnapshot(),

		DesiredOwner: st.DeclaredSnapshot(),

		StrictStability: cfg.StrictStability(),
		LockConflicts:   lockConflicts,

		SolveMS: p.SolveMS,

		LockedDemands: p.LockCounts.LockedDemands,
		LockedOutputs: p.LockCounts.LockedOutputs,

		ReroutesDemands: p.SolveResult.StabilityCost,
		ReroutesOutputs: p.ReroutedOutputs,

		StabilityChanges: p.SolveResult.StabilityCost,

		RoutesActive:    p.Snapshot.RoutesActive,
		RoutesPreserved: p.Snapshot.RoutesPreserved,
		RoutesNew:       p.Snapshot.RoutesNew,
		RoutesRemoved:   p.Snapshot.RoutesRemoved,

		InputsWithMult:   p.Snapshot.InputsWithMulticast,
		InputsMultiSpine: p.Snapshot.InputsMultiSpine,
		EgressWithMult:   p.Snapshot.EgressWithMulticast,
		MaxEgressLoad:    p.Snapshot.MaxEgressLoad,
		MaxEgressBlock:   p.Snapshot.MaxEgressBlock,
		ActiveSpines:     p.Snapshot.ActiveSpines,
		TotalBranches:    p.Snapshot.TotalBranches,

		StabilityReusePct: 100.0,
	}

	if p.Accountant != nil {
		fs.SolveTotalMS = durationMS(p.Accountant.TotalSolveTime())
		fs.RepackCount = p.Accountant.RepackCount()
		fs.StabilityReroutes = p.Accountant.CumulativeReroutes()
		fs.StabilityReusePct = p.Accountant.StabilityReusePct()
	}

	return fs
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func gridRows(g interface {
	Rows() int
	Cols() int
	Get(int, int) int
}) [][]int {
	rows := make([][]int, g.Rows())
	for r := 0; r < g.Rows(); r++ {
		row := make([]int, g.Cols())
		for c := 0; c < g.Cols(); c++ {
			row[c] = g.Get(r, c)
		}
		rows[r] = row
	}
	return rows
}
