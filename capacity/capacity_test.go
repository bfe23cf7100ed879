package capacity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closmesh/fabric/bitset"
	"github.com/closmesh/fabric/capacity"
	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/demand"
	"github.com/closmesh/fabric/fabric"
)

func TestCheck_Passes(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(10)
	require.NoError(t, err)
	st, err := fabric.New(cfg)
	require.NoError(t, err)

	st.SetDeclared(1, 1)
	st.SetDeclared(2, 1)

	set, err := demand.Build(cfg, st)
	require.NoError(t, err)

	ok, report := capacity.Check(cfg, set)
	assert.True(t, ok)
	require.Len(t, report.Egress, 1)
	assert.Equal(t, 1, report.Egress[0].Load)
	assert.Equal(t, 10, report.Egress[0].Capacity)
}

// TestCheck_EgressOverload exercises the overload branch directly.
// A block has exactly N ports, so demand.Build itself can never emit
// more than N distinct inputs for one egress block — the violation is
// a property of Check's counting logic, not of any reachable declared
// state, so it's driven with a hand-built demand.Set the way a
// validator is tested against synthetic malformed input.
func TestCheck_EgressOverload(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(10)
	require.NoError(t, err)

	need := bitset.NewGrid(cfg.MaxPorts()+1, cfg.TotalBlocks())
	active := make([]int, 0, 11)
	for in := 1; in <= 11; in++ {
		need.Set(in, 3)
		active = append(active, in)
	}
	set := demand.Set{ActiveInputs: active, NeedBlocks: need}

	ok, report := capacity.Check(cfg, set)
	assert.False(t, ok)
	require.Len(t, report.Egress, 1)
	assert.Equal(t, 3, report.Egress[0].Block)
	assert.Equal(t, 11, report.Egress[0].Load)
	assert.Equal(t, 10, report.Egress[0].Capacity)
}

// TestCheck_IngressOverload drives the ingress branch past N the same
// way: an ingress block only ever owns N input identities in a real
// declared state, so this violation is likewise only reachable via a
// synthetic Set.
func TestCheck_IngressOverload(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(11)
	require.NoError(t, err)

	need := bitset.NewGrid(cfg.MaxPorts()+1, cfg.TotalBlocks())
	active := make([]int, 0, 11)
	for i := 0; i < 11; i++ {
		in := i + 1 // identities 1..11 all fall in ingress block 0 when N=11
		need.Set(in, i%cfg.TotalBlocks())
		active = append(active, in)
	}
	set := demand.Set{ActiveInputs: active, NeedBlocks: need}

	ok, report := capacity.Check(cfg, set)
	assert.False(t, ok)
	require.Len(t, report.Ingress, 1)
	assert.Equal(t, 0, report.Ingress[0].Block)
	assert.Equal(t, 11, report.Ingress[0].Load)
	assert.Equal(t, 11, report.Ingress[0].Capacity)
}
