// Package demand derives the solver's variable set — one (input,
// egress-block) demand per distinct requirement implied by a
// declared-state vector (§4.2).
package demand

import (
	"errors"
	"fmt"

	"github.com/closmesh/fabric/bitset"
	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/fabric"
)

// ErrOverflow indicates the demand builder emitted more demands than
// the theoretical maximum (MaxPorts * TotalBlocks) — always an
// internal logic error, never a caller-triggerable condition.
var ErrOverflow = errors.New("demand: emitted more demands than the theoretical maximum")

// Demand is one (input, ingress-block, egress-block) triple the
// solver must assign a spine to.
type Demand struct {
	InputID      int
	IngressBlock int
	EgressBlock  int
}

// Set is the result of Build: the ordered demand list, the set of
// active inputs (inputs with at least one demand), and a bitset.Grid
// recording, per input identity, which egress blocks it needs — the
// structure both the capacity pre-check and the lock store's
// validation and counts consume.
type Set struct {
	Demands      []Demand
	ActiveInputs []int
	NeedBlocks   *bitset.Grid // row = input identity, bit = egress block
}

// Build derives the demand set from st's declared state, per §4.2:
//
//  1. For each declared output port, mark its egress block in the
//     owning input's need mask.
//  2. Active inputs are those with a non-empty mask.
//  3. Emit one demand per (input, egress-block) set bit, in ascending
//     (input_id, egress_block) order.
func Build(cfg config.Config, st *fabric.State) (Set, error) {
	maxPorts := cfg.MaxPorts()
	blocks := cfg.TotalBlocks()

	need := bitset.NewGrid(maxPorts+1, blocks)

	for p := 1; p <= maxPorts; p++ {
		in := st.Declared(p)
		if in == 0 {
			continue
		}
		need.Set(in, cfg.Block(p))
	}

	var active []int
	for in := 1; in <= maxPorts; in++ {
		if need.Any(in) {
			active = append(active, in)
		}
	}

	maxDemands := maxPorts * blocks
	demands := make([]Demand, 0, len(active))
	for _, in := range active {
		ingress := cfg.Block(in)
		for e := 0; e < blocks; e++ {
			if !need.Test(in, e) {
				continue
			}
			if len(demands) >= maxDemands {
				return Set{}, fmt.Errorf("%w: %d >= %d", ErrOverflow, len(demands), maxDemands)
			}
			demands = append(demands, Demand{InputID: in, IngressBlock: ingress, EgressBlock: e})
		}
	}

	return Set{Demands: demands, ActiveInputs: active, NeedBlocks: need}, nil
}
