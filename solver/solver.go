// Package solver implements the backtracking search at the heart of
// the repacking engine (§4.4's Search phase): given a demand set, it
// finds a spine assignment that satisfies every trunk-ownership
// constraint while minimizing stability cost — the number of demands
// whose chosen spine differs from a previously committed one.
//
// The search itself is grounded directly on the reference
// implementation's backtrack/domain_size pair: minimum-remaining-
// values (MRV) variable ordering, three-pass value ordering (prefer
// the previous spine, then spines already reused by this input, then
// the rest), and branch-and-bound on stability cost. The engine shape
// — a dedicated struct instead of closures, explicit commit/undo pairs
// around every trial assignment — follows the teacher's bbEngine
// pattern (tsp/bb.go).
package solver

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/closmesh/fabric/bitset"
	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/demand"
	"github.com/closmesh/fabric/fabric"
	"github.com/closmesh/fabric/lockstore"
	"github.com/closmesh/fabric/trunkgrid"
)

// ErrNoSolution indicates the demand set has no assignment that
// satisfies the fabric's trunk constraints — UNSAT(SEARCH) at the
// caller's discretion.
var ErrNoSolution = errors.New("solver: no assignment satisfies trunk constraints")

// ErrStrictStability indicates a feasible assignment exists, but every
// one requires rerouting at least one previously committed connection,
// which config.WithStrictStability forbids — UNSAT(STRICT) at the
// caller's discretion.
var ErrStrictStability = errors.New("solver: every feasible assignment reroutes an existing connection")

// ErrMissingAssignment indicates a declared output port's owner had a
// demand in this egress block but no spine was recorded for it — a
// solver-internal invariant break, never caller-triggerable.
var ErrMissingAssignment = errors.New("solver: no spine assignment recorded for a declared port's demand")

// Result is a successful solve: a ready-to-commit Materialization plus
// the diagnostics the stats package needs.
type Result struct {
	Materialization fabric.Materialization
	StabilityCost   int
	Branches        int64
}

// Option configures a Solve call.
type Option func(*options)

type options struct {
	logger    zerolog.Logger
	heartbeat time.Duration
}

// WithLogger attaches a logger for the search's progress heartbeat.
// The default is zerolog.Nop() — silent unless a caller opts in.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHeartbeat overrides the default 5-second progress-log interval
// (mainly for tests, which don't want to wait 5 seconds to observe it).
func WithHeartbeat(d time.Duration) Option {
	return func(o *options) { o.heartbeat = d }
}

// Solve derives a spine assignment for set, honoring any locks already
// validated against it, and preferring previously committed spines (as
// read from st) to minimize stability cost.
//
// Locks are assumed already validated for conflicts (§4.4 hoists that
// to the engine's LockCheck phase); Solve still consults locks to pin
// a demand's domain to its locked spine during search.
func Solve(cfg config.Config, st *fabric.State, set demand.Set, locks *lockstore.Store, opts ...Option) (Result, error) {
	n, blocks, maxPorts := cfg.N(), cfg.TotalBlocks(), cfg.MaxPorts()

	if len(set.Demands) == 0 {
		return Result{Materialization: emptyMaterialization(blocks, n, maxPorts)}, nil
	}

	o := options{logger: zerolog.Nop(), heartbeat: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	e, err := newSearchEngine(cfg, st, set, locks, o)
	if err != nil {
		return Result{}, err
	}

	e.search(0)

	if e.bestStabilityCost > e.numDemands {
		return Result{}, ErrNoSolution
	}
	if cfg.StrictStability() && e.bestStabilityCost > 0 {
		return Result{}, ErrStrictStability
	}

	mat, err := e.buildMaterialization()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Materialization: mat,
		StabilityCost:   e.bestStabilityCost,
		Branches:        e.branches,
	}, nil
}

func emptyMaterialization(blocks, n, maxPorts int) fabric.Materialization {
	s1, _ := trunkgrid.New(blocks, n)
	s2, _ := trunkgrid.New(n, blocks)
	owner := make([]int, maxPorts+1)
	spine := make([]int, maxPorts+1)
	for p := range spine {
		spine[p] = -1
	}
	return fabric.Materialization{S1: s1, S2: s2, Owner: owner, Spine: spine}
}

// searchEngine holds all search data and policy — a dedicated struct
// (not closures) so every piece of mutable state and its undo path is
// explicit and easy to reason about under recursion.
type searchEngine struct {
	cfg    config.Config
	st     *fabric.State
	n      int
	blocks int

	demands    []demand.Demand // mutable: MRV reorders positions [depth, numDemands)
	numDemands int

	// tmpS2[spine][egress] / tmpS1Owner[ingress][spine]: partial
	// trunk-ownership state during search (0 = free).
	tmpS2      *trunkgrid.Grid
	tmpS1Owner *trunkgrid.Grid

	// usedSpines(inputID) tracks which spines this input has already
	// committed to elsewhere in the partial solution, for pass-1
	// value ordering.
	usedSpines *bitset.Grid

	// assignment[i] is the spine chosen for demands[i] along the
	// current path; bestAssignment/bestDemands snapshot together
	// whenever a strictly better leaf is found, so the final mapping
	// from position to demand is never ambiguous regardless of how
	// much further reordering the search does afterward.
	assignment     []int
	bestAssignment []int
	bestDemands    []demand.Demand

	// prevSpineFor(inputID, egressBlock): the spine the fabric was
	// using for this output before this solve, where applicable —
	// built from st's declared owner (the new intent) paired with its
	// current realized spine (the old wiring), per
	// clos_mult_router.c's prev_spine_for construction.
	prevSpineFor *trunkgrid.Grid

	locks *lockstore.Store

	stabilityCost     int
	bestStabilityCost int

	logger     zerolog.Logger
	heartbeat  time.Duration
	lastReport time.Time
	attempts   int64
	branches   int64
}

func newSearchEngine(cfg config.Config, st *fabric.State, set demand.Set, locks *lockstore.Store, o options) (*searchEngine, error) {
	n, blocks, maxPorts := cfg.N(), cfg.TotalBlocks(), cfg.MaxPorts()

	tmpS2, err := trunkgrid.New(n, blocks)
	if err != nil {
		return nil, err
	}
	tmpS1Owner, err := trunkgrid.New(blocks, n)
	if err != nil {
		return nil, err
	}
	prevSpineFor, err := trunkgrid.New(maxPorts+1, blocks)
	if err != nil {
		return nil, err
	}
	prevSpineFor.Fill(-1)

	for p := 1; p <= maxPorts; p++ {
		inID := st.Declared(p)
		prevSpine := st.Spine(p)
		if inID > 0 && prevSpine >= 0 {
			prevSpineFor.Put(inID, cfg.Block(p), prevSpine)
		}
	}

	demands := make([]demand.Demand, len(set.Demands))
	copy(demands, set.Demands)
	numDemands := len(demands)

	e := &searchEngine{
		cfg:               cfg,
		st:                st,
		n:                 n,
		blocks:            blocks,
		demands:           demands,
		numDemands:        numDemands,
		tmpS2:             tmpS2,
		tmpS1Owner:        tmpS1Owner,
		usedSpines:        bitset.NewGrid(maxPorts+1, n),
		assignment:        make([]int, numDemands),
		bestAssignment:    make([]int, numDemands),
		bestDemands:       make([]demand.Demand, numDemands),
		prevSpineFor:      prevSpineFor,
		locks:             locks,
		bestStabilityCost: numDemands + 1, // sentinel: "no solution yet", never a real cost
		logger:            o.logger,
		heartbeat:         o.heartbeat,
	}
	return e, nil
}

// domainSize returns the number of spines still available to d given
// the current partial assignment, per domain_size. A lock pins the
// domain to exactly that spine (size 1) if still legal, or 0 if the
// lock now conflicts with committed trunk state.
func (e *searchEngine) domainSize(d demand.Demand) int {
	if e.locks != nil && e.locks.Any() {
		if locked := e.locks.Spine(d.InputID, d.EgressBlock); locked >= 0 {
			if e.tmpS2.Get(locked, d.EgressBlock) != 0 && e.tmpS2.Get(locked, d.EgressBlock) != d.InputID {
				return 0
			}
			if owner := e.tmpS1Owner.Get(d.IngressBlock, locked); owner != 0 && owner != d.InputID {
				return 0
			}
			return 1
		}
	}

	size := 0
	for s := 0; s < e.n; s++ {
		if e.tmpS2.Get(s, d.EgressBlock) != 0 && e.tmpS2.Get(s, d.EgressBlock) != d.InputID {
			continue
		}
		if owner := e.tmpS1Owner.Get(d.IngressBlock, s); owner != 0 && owner != d.InputID {
			continue
		}
		size++
	}
	return size
}

// reportProgress logs a heartbeat at most once per heartbeat interval.
func (e *searchEngine) reportProgress(depth int) {
	e.attempts++
	if e.heartbeat <= 0 {
		return
	}
	now := time.Now()
	if e.lastReport.IsZero() || now.Sub(e.lastReport) >= e.heartbeat {
		e.logger.Info().
			Int64("attempts", e.attempts).
			Int("depth", depth).
			Int("num_demands", e.numDemands).
			Int("best_cost", e.bestStabilityCost).
			Msg("solver progress")
		e.lastReport = now
	}
}

// recordBest snapshots the current leaf as the new best solution.
func (e *searchEngine) recordBest() {
	e.bestStabilityCost = e.stabilityCost
	copy(e.bestAssignment, e.assignment)
	copy(e.bestDemands, e.demands)
}

// search is the recursive backtracking core, mirroring backtrack: MRV
// variable selection with forward-checking, three-pass value ordering,
// branch-and-bound on stability cost. It returns true only when a
// zero-cost (perfectly stable) solution has been found, at which point
// every caller up the stack stops immediately without undoing partial
// state — the search is simply over.
func (e *searchEngine) search(depth int) bool {
	e.reportProgress(depth)

	if e.stabilityCost >= e.bestStabilityCost {
		return false
	}

	if depth == e.numDemands {
		if e.stabilityCost < e.bestStabilityCost {
			e.recordBest()
		}
		return e.bestStabilityCost == 0
	}

	bestIdx := -1
	bestDom := e.n + 1
	for i := depth; i < e.numDemands; i++ {
		dom := e.domainSize(e.demands[i])
		if dom == 0 {
			return false
		}
		if dom < bestDom {
			bestDom = dom
			bestIdx = i
			if dom == 1 {
				break
			}
		}
	}

	if bestIdx != depth {
		e.demands[depth], e.demands[bestIdx] = e.demands[bestIdx], e.demands[depth]
		e.assignment[depth], e.assignment[bestIdx] = e.assignment[bestIdx], e.assignment[depth]
	}

	d := e.demands[depth]
	prevSpine := e.prevSpineFor.Get(d.InputID, d.EgressBlock)

	lockedSpine := -1
	if e.locks != nil && e.locks.Any() {
		lockedSpine = e.locks.Spine(d.InputID, d.EgressBlock)
	}

	if lockedSpine >= 0 {
		e.branches++
		return e.tryAssign(depth, d, lockedSpine, prevSpine)
	}

	for pass := 0; pass < 3; pass++ {
		for s := 0; s < e.n; s++ {
			isPrev := prevSpine >= 0 && s == prevSpine
			alreadyUsed := e.usedSpines.Test(d.InputID, s)

			switch pass {
			case 0:
				if !isPrev {
					continue
				}
			case 1:
				if isPrev || !alreadyUsed {
					continue
				}
			case 2:
				if isPrev || alreadyUsed {
					continue
				}
			}

			e.branches++
			if done := e.tryAssign(depth, d, s, prevSpine); done {
				return true
			}
		}
	}

	return false
}

// tryAssign commits demand d to spine s, recurses, then undoes the
// commit — the explicit commit/undo pairing the teacher's bbEngine
// uses around every trial move.
func (e *searchEngine) tryAssign(depth int, d demand.Demand, s, prevSpine int) bool {
	if e.tmpS2.Get(s, d.EgressBlock) != 0 && e.tmpS2.Get(s, d.EgressBlock) != d.InputID {
		return false
	}
	if owner := e.tmpS1Owner.Get(d.IngressBlock, s); owner != 0 && owner != d.InputID {
		return false
	}

	prevS2 := e.tmpS2.Get(s, d.EgressBlock)
	prevS1 := e.tmpS1Owner.Get(d.IngressBlock, s)
	word, wordIndex := e.usedSpines.WordAt(d.InputID, s)
	alreadyUsed := e.usedSpines.Test(d.InputID, s)
	prevStabilityCost := e.stabilityCost

	e.tmpS2.Put(s, d.EgressBlock, d.InputID)
	e.tmpS1Owner.Put(d.IngressBlock, s, d.InputID)
	e.assignment[depth] = s

	if !alreadyUsed {
		e.usedSpines.Set(d.InputID, s)
	}
	if prevSpine >= 0 && s != prevSpine {
		e.stabilityCost++
	}

	done := e.search(depth + 1)
	if done && e.bestStabilityCost == 0 {
		return true
	}

	e.tmpS2.Put(s, d.EgressBlock, prevS2)
	e.tmpS1Owner.Put(d.IngressBlock, s, prevS1)
	e.usedSpines.SetWord(d.InputID, wordIndex, word)
	e.stabilityCost = prevStabilityCost

	return false
}

// buildMaterialization rebuilds the full S1/S2/owner/spine state from
// bestAssignment, a clean rebuild independent of any solver-internal
// transient state (§4.5).
func (e *searchEngine) buildMaterialization() (fabric.Materialization, error) {
	s1, err := trunkgrid.New(e.blocks, e.n)
	if err != nil {
		return fabric.Materialization{}, err
	}
	s2, err := trunkgrid.New(e.n, e.blocks)
	if err != nil {
		return fabric.Materialization{}, err
	}

	maxPorts := e.cfg.MaxPorts()
	owner := make([]int, maxPorts+1)
	spine := make([]int, maxPorts+1)
	for p := range spine {
		spine[p] = -1
	}

	spineFor, err := trunkgrid.New(maxPorts+1, e.blocks)
	if err != nil {
		return fabric.Materialization{}, err
	}
	spineFor.Fill(-1)

	for i := 0; i < e.numDemands; i++ {
		d := e.bestDemands[i]
		s := e.bestAssignment[i]
		s2.Put(s, d.EgressBlock, d.InputID)
		s1.Put(d.IngressBlock, s, d.InputID)
		spineFor.Put(d.InputID, d.EgressBlock, s)
	}

	for p := 1; p <= maxPorts; p++ {
		inID := e.st.Declared(p)
		if inID == 0 {
			continue
		}
		egress := e.cfg.Block(p)
		s := spineFor.Get(inID, egress)
		if s < 0 {
			return fabric.Materialization{}, ErrMissingAssignment
		}
		owner[p] = inID
		spine[p] = s
	}

	return fabric.Materialization{S1: s1, S2: s2, Owner: owner, Spine: spine}, nil
}
