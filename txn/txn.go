// Package txn implements the Transaction Manager of §4.7: a Route or
// Clear edit to the declared state is staged, repacked through the
// full solve pipeline, and either committed or rolled back — restoring
// the prior declared state and re-solving so the realized fabric
// always matches what's actually declared, win or lose.
package txn

import (
	"errors"
	"fmt"
	"time"

	"github.com/closmesh/fabric/capacity"
	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/demand"
	"github.com/closmesh/fabric/fabric"
	"github.com/closmesh/fabric/fabricerr"
	"github.com/closmesh/fabric/lockstore"
	"github.com/closmesh/fabric/solver"
	"github.com/closmesh/fabric/stats"
)

// ErrEmptyTargets indicates a Route request named no ports.
var ErrEmptyTargets = errors.New("txn: request names no target ports")

// ErrPortOwned indicates a Route request's target port is already
// declared for a different input.
var ErrPortOwned = errors.New("txn: target port is declared for a different input")

// ErrPortNotOwned indicates a Clear request's input has no output port
// currently declared for it.
var ErrPortNotOwned = errors.New("txn: target port is not declared for this input")

// Result carries the outcome of a committed Route or Clear.
type Result struct {
	Materialization fabric.Materialization
	Snapshot        stats.Snapshot
	Solve           solver.Result

	// ReroutedOutputs is the port-level reroute count for this repack
	// alone, not the accountant's cumulative total.
	ReroutedOutputs int
}

// Manager applies Route/Clear edits against a single fabric's declared
// state, holding the lock table and accountant that persist across
// every edit it processes.
type Manager struct {
	cfg        config.Config
	locks      *lockstore.Store
	accountant *stats.Accountant
	opts       []solver.Option
}

// NewManager builds a Manager. locks and accountant may be nil; a nil
// locks is treated as an always-empty store, a nil accountant simply
// isn't updated.
func NewManager(cfg config.Config, locks *lockstore.Store, accountant *stats.Accountant, opts ...solver.Option) *Manager {
	return &Manager{cfg: cfg, locks: locks, accountant: accountant, opts: opts}
}

type portEdit struct {
	port      int
	prevOwner int
}

// Route declares inputID as the owner of every port in targets, then
// repacks the fabric. On failure the declared state is restored to
// what it was before the call and repacked again, so the realized
// fabric never drifts from its own desired_owner vector.
func (m *Manager) Route(st *fabric.State, inputID int, targets []int) (Result, error) {
	if len(targets) == 0 {
		return Result{}, fabricerr.New(fabricerr.InvalidInput, ErrEmptyTargets.Error())
	}
	if !m.cfg.ValidPort(inputID) {
		return Result{}, fabricerr.New(fabricerr.InvalidInput, fmt.Sprintf("input %d out of range", inputID))
	}

	// Validate every target before mutating anything: a declined edit
	// must leave the fabric exactly as it found it.
	for _, p := range targets {
		if !m.cfg.ValidPort(p) {
			return Result{}, fabricerr.New(fabricerr.InvalidInput, fmt.Sprintf("port %d out of range", p))
		}
		if owner := st.Declared(p); owner != 0 && owner != inputID {
			return Result{}, fabricerr.New(fabricerr.InvalidInput, fmt.Sprintf("%v: port %d owned by input %d", ErrPortOwned, p, owner))
		}
	}

	edits := make([]portEdit, 0, len(targets))
	for _, p := range targets {
		owner := st.Declared(p)
		if owner == inputID {
			continue // no-op edit, nothing to stage or undo
		}
		edits = append(edits, portEdit{port: p, prevOwner: owner})
		st.SetDeclared(p, inputID)
	}

	return m.applyStaged(st, edits)
}

// Clear stages every port currently declared for inputID with previous
// owner inputID, sets them to 0, and repacks — mirroring
// apply_clear_request's scan of desired_owner for every port matching
// the requested input, rather than requiring the caller to name them.
func (m *Manager) Clear(st *fabric.State, inputID int) (Result, error) {
	if !m.cfg.ValidPort(inputID) {
		return Result{}, fabricerr.New(fabricerr.InvalidInput, fmt.Sprintf("input %d out of range", inputID))
	}

	declared := st.DeclaredSnapshot()
	edits := make([]portEdit, 0)
	for p := 1; p < len(declared); p++ {
		if declared[p] == inputID {
			edits = append(edits, portEdit{port: p, prevOwner: inputID})
		}
	}
	if len(edits) == 0 {
		return Result{}, fabricerr.New(fabricerr.InvalidInput, fmt.Sprintf("%v: input %d", ErrPortNotOwned, inputID))
	}

	for _, e := range edits {
		st.SetDeclared(e.port, 0)
	}

	return m.applyStaged(st, edits)
}

// applyStaged repacks the fabric with the already-applied edits in
// place. On a recoverable failure it restores every edit's previous
// owner and repacks again so the realized state matches the restored
// declared state; an error from that second repack is folded into an
// Internal error, since the fabric can no longer be trusted to match
// its own desired_owner vector.
func (m *Manager) applyStaged(st *fabric.State, edits []portEdit) (Result, error) {
	res, err := m.repack(st)
	if err == nil {
		return res, nil
	}

	var fe *fabricerr.Error
	if !errors.As(err, &fe) || !fe.Kind.Recoverable() {
		return Result{}, err
	}

	for _, e := range edits {
		st.SetDeclared(e.port, e.prevOwner)
	}
	if _, rollbackErr := m.repack(st); rollbackErr != nil {
		return Result{}, fabricerr.Wrap(fabricerr.Internal,
			fmt.Errorf("rollback repack failed after %w: %v", err, rollbackErr))
	}

	return Result{}, err
}

// repack runs the full Init -> DemandBuild -> CapacityCheck ->
// LockCheck -> Search -> Materialise -> Validate -> Commit pipeline
// against st's current declared state and, on success, updates the
// manager's accountant and returns the fresh diagnostics.
func (m *Manager) repack(st *fabric.State) (Result, error) {
	cfg := m.cfg

	set, err := demand.Build(cfg, st)
	if err != nil {
		return Result{}, fabricerr.Wrap(fabricerr.Internal, err)
	}

	if ok, capReport := capacity.Check(cfg, set); !ok {
		return Result{}, fabricerr.New(fabricerr.UnsatCapacity, capacityMessage(capReport))
	}

	locks := m.locks
	if locks == nil {
		var lerr error
		locks, lerr = lockstore.New(cfg)
		if lerr != nil {
			return Result{}, fabricerr.Wrap(fabricerr.Internal, lerr)
		}
	}
	if ok, conflicts := locks.ValidateAgainstDemands(set); !ok {
		return Result{}, fabricerr.New(fabricerr.UnsatLock, fmt.Sprintf("%d lock conflict(s)", len(conflicts)))
	}

	prevSpine := st.SpineSnapshot()

	start := time.Now()
	solveRes, err := solver.Solve(cfg, st, set, locks, m.opts...)
	elapsed := time.Since(start)
	if m.accountant != nil {
		m.accountant.RecordSolve(elapsed)
	}
	if err != nil {
		switch {
		case errors.Is(err, solver.ErrNoSolution):
			return Result{}, fabricerr.Wrap(fabricerr.UnsatSearch, err)
		case errors.Is(err, solver.ErrStrictStability):
			return Result{}, fabricerr.Wrap(fabricerr.UnsatStrict, err)
		default:
			return Result{}, fabricerr.Wrap(fabricerr.Internal, err)
		}
	}

	st.Commit(solveRes.Materialization)

	if verr := fabric.Validate(st); verr != nil {
		return Result{}, fabricerr.Wrap(fabricerr.Internal, verr)
	}

	reroutedOutputs := stats.ReroutedOutputs(prevSpine, st.SpineSnapshot())
	if m.accountant != nil {
		m.accountant.TrackInitial(prevSpine, true)
		m.accountant.RecordRepack(solveRes.StabilityCost, reroutedOutputs)
	}

	snap := stats.Compute(cfg, st, prevSpine, true)
	return Result{
		Materialization: solveRes.Materialization,
		Snapshot:        snap,
		Solve:           solveRes,
		ReroutedOutputs: reroutedOutputs,
	}, nil
}

func capacityMessage(r capacity.Report) string {
	return fmt.Sprintf("%d egress block(s), %d ingress block(s) over capacity", len(overloaded(r.Egress)), len(overloaded(r.Ingress)))
}

func overloaded(loads []capacity.BlockLoad) []capacity.BlockLoad {
	var out []capacity.BlockLoad
	for _, l := range loads {
		if l.Load > l.Capacity {
			out = append(out, l)
		}
	}
	return out
}
