// Package lockstore implements the pinning table of §4.6: callers may
// hard-pin an (input, egress-block) demand to a specific spine before
// a solve, and the solver must honor it or fail with UNSAT(LOCK).
//
// Parsing a locks file is explicitly out of scope (§1, owned by an
// invoking layer); this package accepts already-parsed tuples.
package lockstore

import (
	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/demand"
	"github.com/closmesh/fabric/fabric"
	"github.com/closmesh/fabric/trunkgrid"
)

// Reason names a lock that was rejected at load time.
type Reason int

const (
	// Range means the tuple referenced an out-of-range input, egress
	// block, or spine.
	Range Reason = iota
	// Conflict means the tuple disagreed with an already-loaded lock,
	// or collided with another lock's trunk usage once validated
	// against the demand set.
	Conflict
)

func (r Reason) String() string {
	switch r {
	case Range:
		return "RANGE"
	case Conflict:
		return "CONFLICT"
	default:
		return "UNKNOWN"
	}
}

// Conflict is one rejected or colliding lock, returned for diagnostics
// rather than printed — mirroring §6's "fields, not format."
type Conflict struct {
	InputID     int
	EgressBlock int
	Spine       int
	Reason      Reason
}

// Store holds the sparse (input, egress-block) -> spine pin table.
// Unlocked entries read -1.
type Store struct {
	cfg       config.Config
	spineFor  *trunkgrid.Grid // row = input identity, col = egress block
	any       bool
	conflicts []Conflict
}

// New allocates an all-unlocked Store.
func New(cfg config.Config) (*Store, error) {
	g, err := trunkgrid.New(cfg.MaxPorts()+1, cfg.TotalBlocks())
	if err != nil {
		return nil, err
	}
	g.Fill(-1)
	return &Store{cfg: cfg, spineFor: g}, nil
}

// Add registers a lock tuple. On success it returns (nil, true). A
// tuple outside the valid input/egress/spine ranges, or one that
// disagrees with an already-registered lock for the same
// (input, egress), is rejected and recorded as a Conflict rather than
// applied, per §4.6.
func (s *Store) Add(inputID, egressBlock, spine int) (*Conflict, bool) {
	if !s.cfg.ValidPort(inputID) || egressBlock < 0 || egressBlock >= s.cfg.TotalBlocks() ||
		spine < 0 || spine >= s.cfg.N() {
		c := Conflict{InputID: inputID, EgressBlock: egressBlock, Spine: spine, Reason: Range}
		s.conflicts = append(s.conflicts, c)
		return &c, false
	}

	existing := s.spineFor.Get(inputID, egressBlock)
	if existing >= 0 && existing != spine {
		c := Conflict{InputID: inputID, EgressBlock: egressBlock, Spine: spine, Reason: Conflict}
		s.conflicts = append(s.conflicts, c)
		return &c, false
	}

	s.spineFor.Put(inputID, egressBlock, spine)
	s.any = true
	return nil, true
}

// Spine returns the spine locked for (inputID, egressBlock), or -1 if
// unlocked.
func (s *Store) Spine(inputID, egressBlock int) int {
	return s.spineFor.Get(inputID, egressBlock)
}

// Any reports whether at least one lock is registered.
func (s *Store) Any() bool { return s.any }

// LoadConflicts returns the conflicts recorded by Add calls so far.
func (s *Store) LoadConflicts() []Conflict {
	out := make([]Conflict, len(s.conflicts))
	copy(out, s.conflicts)
	return out
}

// ValidateAgainstDemands checks every registered lock that applies to
// an actual demand (locks on non-existent demands are silently
// ignored, per §4.6) for trunk-ownership collisions against every
// other applicable lock, grounded on
// clos_mult_router.c's validate_locks_against_demands. It returns ok
// and the set of newly discovered conflicts; load-time conflicts from
// Add are not repeated here. If Add has recorded any conflict at all,
// it returns false (with no conflicts) without checking the demands.
func (s *Store) ValidateAgainstDemands(set demand.Set) (bool, []Conflict) {
	if len(s.conflicts) > 0 {
		return false, nil
	}
	if !s.any {
		return true, nil
	}

	n, blocks := s.cfg.N(), s.cfg.TotalBlocks()
	lockedS2, err := trunkgrid.New(n, blocks) // [spine][egress] -> input
	if err != nil {
		return false, nil
	}
	lockedS1, err := trunkgrid.New(blocks, n) // [ingress][spine] -> input
	if err != nil {
		return false, nil
	}

	ok := true
	var found []Conflict
	for in := 1; in <= s.cfg.MaxPorts(); in++ {
		for e := 0; e < blocks; e++ {
			spine := s.spineFor.Get(in, e)
			if spine < 0 {
				continue
			}
			if !set.NeedBlocks.Test(in, e) {
				continue
			}

			ingress := s.cfg.Block(in)

			s2Owner := lockedS2.Get(spine, e)
			if s2Owner != 0 && s2Owner != in {
				found = append(found, Conflict{InputID: in, EgressBlock: e, Spine: spine, Reason: Conflict})
				ok = false
			} else {
				lockedS2.Put(spine, e, in)
			}

			s1Owner := lockedS1.Get(ingress, spine)
			if s1Owner != 0 && s1Owner != in {
				found = append(found, Conflict{InputID: in, EgressBlock: e, Spine: spine, Reason: Conflict})
				ok = false
			} else {
				lockedS1.Put(ingress, spine, in)
			}
		}
	}

	return ok, found
}

// Counts reports, per clos_mult_router.c's compute_lock_counts: the
// number of demands with an applicable lock (LockedDemands), and the
// number of declared output ports whose owning input holds a lock on
// that port's egress block (LockedOutputs).
type Counts struct {
	LockedDemands int
	LockedOutputs int
}

// Counts computes the lock-coverage diagnostics for set's demands
// against st's declared output ports.
func (s *Store) Counts(st *fabric.State, set demand.Set) Counts {
	if !s.any {
		return Counts{}
	}

	var c Counts
	for in := 1; in <= s.cfg.MaxPorts(); in++ {
		for e := 0; e < s.cfg.TotalBlocks(); e++ {
			if s.spineFor.Get(in, e) < 0 {
				continue
			}
			if set.NeedBlocks.Test(in, e) {
				c.LockedDemands++
			}
		}
	}

	for p := 1; p <= s.cfg.MaxPorts(); p++ {
		owner := st.Declared(p)
		if owner <= 0 {
			continue
		}
		e := s.cfg.Block(p)
		if s.spineFor.Get(owner, e) >= 0 {
			c.LockedOutputs++
		}
	}

	return c
}
