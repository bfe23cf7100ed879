// Package engine wires the C1-C9 components into the
// Init -> DemandBuild -> CapacityCheck -> LockCheck -> Search ->
// Materialise -> Validate -> Commit pipeline (§4.4) behind a single
// type a caller actually imports, instead of assembling config,
// fabric, lockstore, txn, stats and report by hand.
package engine

import (
	"errors"
	"fmt"

	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/demand"
	"github.com/closmesh/fabric/fabric"
	"github.com/closmesh/fabric/fabricerr"
	"github.com/closmesh/fabric/lockstore"
	"github.com/closmesh/fabric/report"
	"github.com/closmesh/fabric/solver"
	"github.com/closmesh/fabric/stats"
	"github.com/closmesh/fabric/trunkgrid"
	"github.com/closmesh/fabric/txn"
)

// ErrPriorStateLength indicates a restored spine vector's length
// doesn't match the configuration's port count.
var ErrPriorStateLength = errors.New("engine: prior state spine vector has the wrong length")

// Engine owns one fabric's full lifecycle: its declared/realized
// state, its lock table, its cumulative stability accounting, and the
// Transaction Manager that applies edits against all three together.
type Engine struct {
	cfg        config.Config
	state      *fabric.State
	locks      *lockstore.Store
	accountant *stats.Accountant
	manager    *txn.Manager
	last       txn.Result
}

// New allocates a fresh, empty Engine: no declared routes, no locks,
// a zeroed accountant.
func New(cfg config.Config, opts ...solver.Option) (*Engine, error) {
	st, err := fabric.New(cfg)
	if err != nil {
		return nil, err
	}
	locks, err := lockstore.New(cfg)
	if err != nil {
		return nil, err
	}
	acct := stats.NewAccountant()
	return &Engine{
		cfg:        cfg,
		state:      st,
		locks:      locks,
		accountant: acct,
		manager:    txn.NewManager(cfg, locks, acct, opts...),
	}, nil
}

// restoreInto seeds e's declared and realized state directly from a
// previous (owner, spine) snapshot, reconstructing S1/S2 by hand
// rather than solving — restoring is not itself a solve — and running
// fabric.Validate once to catch a corrupt snapshot before it's trusted.
func (e *Engine) restoreInto(priorOwner, priorSpine []int) error {
	maxPorts := e.cfg.MaxPorts()
	if len(priorOwner) != maxPorts+1 || len(priorSpine) != maxPorts+1 {
		return ErrPriorStateLength
	}

	n, blocks := e.cfg.N(), e.cfg.TotalBlocks()
	s1, err := trunkgrid.New(blocks, n)
	if err != nil {
		return err
	}
	s2, err := trunkgrid.New(n, blocks)
	if err != nil {
		return err
	}

	owner := make([]int, maxPorts+1)
	spine := make([]int, maxPorts+1)
	for p := range spine {
		spine[p] = -1
	}

	for p := 1; p <= maxPorts; p++ {
		in := priorOwner[p]
		if in != 0 && !e.cfg.ValidPort(in) {
			return fmt.Errorf("engine: port %d has out-of-range owner %d", p, in)
		}
		e.state.SetDeclared(p, in)
		if in == 0 {
			continue
		}
		sp := priorSpine[p]
		if sp < 0 || sp >= n {
			return fmt.Errorf("engine: port %d has owner %d but no valid prior spine", p, in)
		}
		ingress := e.cfg.Block(in)
		egress := e.cfg.Block(p)
		s1.Put(ingress, sp, in)
		s2.Put(sp, egress, in)
		owner[p] = in
		spine[p] = sp
	}

	e.state.Commit(fabric.Materialization{S1: s1, S2: s2, Owner: owner, Spine: spine})
	if err := fabric.Validate(e.state); err != nil {
		return err
	}

	e.accountant.TrackInitial(priorSpine, true)
	return nil
}

// Restore builds an Engine whose declared and realized state mirror a
// previously committed fabric, per PriorState's shape: priorOwner
// becomes the declared vector and prior.S3PortSpine becomes the
// realized spine assignment, both feeding directly into the solver's
// stability preference on the first repack this Engine performs.
func Restore(cfg config.Config, priorOwner []int, prior report.PriorState, opts ...solver.Option) (*Engine, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.restoreInto(priorOwner, prior.S3PortSpine); err != nil {
		return nil, fmt.Errorf("engine: restoring prior state: %w", err)
	}
	return e, nil
}

// AddLock registers a hard pin before any solve relying on it runs.
func (e *Engine) AddLock(inputID, egressBlock, spine int) (*lockstore.Conflict, bool) {
	return e.locks.Add(inputID, egressBlock, spine)
}

// LockConflicts returns every lock rejected at load time so far.
func (e *Engine) LockConflicts() []lockstore.Conflict {
	return e.locks.LoadConflicts()
}

// Route declares inputID as the owner of every port in targets and
// repacks the fabric, per §4.7.
func (e *Engine) Route(inputID int, targets []int) (txn.Result, error) {
	res, err := e.manager.Route(e.state, inputID, targets)
	if err != nil {
		return txn.Result{}, err
	}
	e.last = res
	return res, nil
}

// Clear removes inputID's ownership of every port it currently owns
// and repacks the fabric, per §4.7.
func (e *Engine) Clear(inputID int) (txn.Result, error) {
	res, err := e.manager.Clear(e.state, inputID)
	if err != nil {
		return txn.Result{}, err
	}
	e.last = res
	return res, nil
}

// State exposes the fabric's current declared/realized state for
// read-only inspection (e.g. by a caller building its own report).
func (e *Engine) State() *fabric.State { return e.state }

// Config returns the fabric's size configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// Report assembles the full wire-level report of the fabric's current
// committed state, using the diagnostics from the most recent
// successful Route or Clear. solveMS is the caller's measured wall
// time of that call, since the Engine itself doesn't own a clock.
func (e *Engine) Report(solveMS float64) (report.FabricState, error) {
	set, err := demand.Build(e.cfg, e.state)
	if err != nil {
		return report.FabricState{}, fabricerr.Wrap(fabricerr.Internal, err)
	}

	return report.Build(report.BuildParams{
		Config:          e.cfg,
		State:           e.state,
		Locks:           e.locks,
		LockCounts:      e.locks.Counts(e.state, set),
		Snapshot:        e.last.Snapshot,
		Accountant:      e.accountant,
		SolveResult:     e.last.Solve,
		SolveMS:         solveMS,
		ReroutedOutputs: e.last.ReroutedOutputs,
	}), nil
}
