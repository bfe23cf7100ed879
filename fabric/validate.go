package fabric

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is the sentinel wrapped by every invariant
// failure Validate reports; callers needing the specific invariant
// number should inspect the returned *Violation via errors.As.
var ErrInvariantViolation = errors.New("fabric: invariant violated")

// Violation describes exactly which of the five §3 invariants failed
// and where, for diagnostics (this is INTERNAL per §7 — a committed
// state should never actually fail validation).
type Violation struct {
	Invariant int // 1..5, matching §3's numbering
	Detail    string
}

// Error implements the error interface.
func (v *Violation) Error() string {
	return fmt.Sprintf("fabric: invariant %d violated: %s", v.Invariant, v.Detail)
}

// Unwrap lets callers match ErrInvariantViolation via errors.Is.
func (v *Violation) Unwrap() error { return ErrInvariantViolation }

// Validate checks all five invariants of §3 against the State's
// current realized matrices, the declared vector, and cfg. It returns
// the first violation found, or nil if the state is consistent.
func Validate(s *State) error {
	n := s.cfg.N()
	blocks := s.cfg.TotalBlocks()
	maxPorts := s.cfg.MaxPorts()

	// Invariant 1: every populated S2[s,e]=i implies S1[block(i),s]=i.
	for sp := 0; sp < n; sp++ {
		for e := 0; e < blocks; e++ {
			in := s.S2.Get(sp, e)
			if in == 0 {
				continue
			}
			if in < 1 || in > maxPorts {
				return &Violation{1, fmt.Sprintf("S2[%d][%d]=%d out of range", sp, e, in)}
			}
			ingress := s.cfg.Block(in)
			if s.S1.Get(ingress, sp) != in {
				return &Violation{1, fmt.Sprintf(
					"S2[%d][%d]=%d but S1[%d][%d]=%d", sp, e, in, ingress, sp, s.S1.Get(ingress, sp))}
			}
		}
	}

	// Invariant 2: every owned output port agrees with S2 and has a
	// valid input/spine.
	for p := 1; p <= maxPorts; p++ {
		owner := s.owner[p]
		sp := s.spine[p]

		if owner == 0 {
			if sp != -1 {
				return &Violation{2, fmt.Sprintf("port %d owner=0 but spine=%d", p, sp)}
			}
			continue
		}

		if owner < 1 || owner > maxPorts || sp < 0 || sp >= n {
			return &Violation{2, fmt.Sprintf("port %d has invalid owner/spine (%d/%d)", p, owner, sp)}
		}

		e := s.cfg.Block(p)
		if s.S2.Get(sp, e) != owner {
			return &Violation{2, fmt.Sprintf(
				"port %d wants (spine %d,egress %d) but trunk holds %d", p, sp, e, s.S2.Get(sp, e))}
		}
	}

	// Invariant 3: owner[p] == declared[p] for all p, post-commit.
	for p := 1; p <= maxPorts; p++ {
		if s.declared[p] != s.owner[p] {
			return &Violation{3, fmt.Sprintf(
				"declared[%d]=%d but owner[%d]=%d", p, s.declared[p], p, s.owner[p])}
		}
	}

	// Invariant 4: each (s,e) trunk has at most one owner — guaranteed
	// by construction (a single int cell), but checked for range.
	for sp := 0; sp < n; sp++ {
		for e := 0; e < blocks; e++ {
			in := s.S2.Get(sp, e)
			if in != 0 && (in < 1 || in > maxPorts) {
				return &Violation{4, fmt.Sprintf("S2[%d][%d]=%d out of range", sp, e, in)}
			}
		}
	}

	// Invariant 5: each (b,s) trunk has at most one owner — same
	// construction guarantee, range-checked.
	for b := 0; b < blocks; b++ {
		for sp := 0; sp < n; sp++ {
			in := s.S1.Get(b, sp)
			if in != 0 && (in < 1 || in > maxPorts) {
				return &Violation{5, fmt.Sprintf("S1[%d][%d]=%d out of range", b, sp, in)}
			}
		}
	}

	return nil
}
