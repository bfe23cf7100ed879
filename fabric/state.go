// Package fabric owns the declared and realized state of a C(N,N,N)
// Clos fabric (§3) and validates the five cross-stage invariants that
// every committed state must satisfy.
package fabric

import (
	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/trunkgrid"
)

// State holds the declared-state vector (the intent the engine tries
// to realize) and the realized matrices/vectors (what is actually
// wired). Indices on the output-port / input-identity axis are
// 1-based to match §6's external reports; block and spine indices
// are 0-based.
type State struct {
	cfg config.Config

	// declared[p] is the desired owner of output port p, or 0.
	declared []int

	// S1[b][s]: input identity owning ingress block b's trunk to
	// spine s, or 0 if free.
	S1 *trunkgrid.Grid
	// S2[s][e]: input identity owning spine s's trunk to egress
	// block e, or 0 if free.
	S2 *trunkgrid.Grid

	// owner[p] mirrors declared[p] once realized.
	owner []int
	// spine[p] is the spine used to reach output port p, or -1.
	spine []int
}

// New allocates a zeroed State: declared/owner all 0, spine all -1,
// S1/S2 all free, per §4.1.
func New(cfg config.Config) (*State, error) {
	n, blocks, maxPorts := cfg.N(), cfg.TotalBlocks(), cfg.MaxPorts()

	s1, err := trunkgrid.New(blocks, n)
	if err != nil {
		return nil, err
	}
	s2, err := trunkgrid.New(n, blocks)
	if err != nil {
		return nil, err
	}

	spine := make([]int, maxPorts+1)
	for p := range spine {
		spine[p] = -1
	}

	return &State{
		cfg:      cfg,
		declared: make([]int, maxPorts+1),
		S1:       s1,
		S2:       s2,
		owner:    make([]int, maxPorts+1),
		spine:    spine,
	}, nil
}

// Config returns the fabric's size configuration.
func (s *State) Config() config.Config { return s.cfg }

// Declared returns the owner declared for output port p (0 if none).
// Callers must only pass valid ports; §3's zero value means
// "disconnected," not "does not exist."
func (s *State) Declared(p int) int { return s.declared[p] }

// SetDeclared sets the declared owner of output port p. It is the
// Transaction Manager's responsibility (package txn) to validate p
// and the edit's legality before calling this.
func (s *State) SetDeclared(p, owner int) { s.declared[p] = owner }

// DeclaredSnapshot returns a copy of the full declared-state vector,
// indexed 0..MaxPorts (index 0 unused).
func (s *State) DeclaredSnapshot() []int {
	out := make([]int, len(s.declared))
	copy(out, s.declared)
	return out
}

// Owner returns the realized owner of output port p.
func (s *State) Owner(p int) int { return s.owner[p] }

// Spine returns the realized spine used by output port p, or -1.
func (s *State) Spine(p int) int { return s.spine[p] }

// OwnerSnapshot returns a copy of the realized owner vector.
func (s *State) OwnerSnapshot() []int {
	out := make([]int, len(s.owner))
	copy(out, s.owner)
	return out
}

// SpineSnapshot returns a copy of the realized spine vector.
func (s *State) SpineSnapshot() []int {
	out := make([]int, len(s.spine))
	copy(out, s.spine)
	return out
}

// Materialization is the output of a successful solve: a complete
// replacement for S1, S2, owner, and spine, built from scratch so a
// mid-search transient can never leak into committed state (§4.5).
type Materialization struct {
	S1    *trunkgrid.Grid
	S2    *trunkgrid.Grid
	Owner []int
	Spine []int
}

// Commit overwrites the live matrices wholesale with m. Per §4.5 this
// is the only way realized state changes — there is no incremental
// mutation path.
func (s *State) Commit(m Materialization) {
	s.S1 = m.S1
	s.S2 = m.S2
	s.owner = m.Owner
	s.spine = m.Spine
}

