package demand_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/demand"
	"github.com/closmesh/fabric/fabric"
)

func TestBuild_Empty(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(4)
	require.NoError(t, err)
	st, err := fabric.New(cfg)
	require.NoError(t, err)

	set, err := demand.Build(cfg, st)
	require.NoError(t, err)
	assert.Empty(t, set.Demands)
	assert.Empty(t, set.ActiveInputs)
}

func TestBuild_SingleInputMultipleOutputsSameBlock(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(10)
	require.NoError(t, err)
	st, err := fabric.New(cfg)
	require.NoError(t, err)

	// Outputs 1,2,3 are all in egress block 0 and all owned by input 1.
	st.SetDeclared(1, 1)
	st.SetDeclared(2, 1)
	st.SetDeclared(3, 1)

	set, err := demand.Build(cfg, st)
	require.NoError(t, err)

	require.Len(t, set.Demands, 1)
	assert.Equal(t, demand.Demand{InputID: 1, IngressBlock: 0, EgressBlock: 0}, set.Demands[0])
	assert.Equal(t, []int{1}, set.ActiveInputs)
}

func TestBuild_MultipleInputsMultipleBlocks(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(10)
	require.NoError(t, err)
	st, err := fabric.New(cfg)
	require.NoError(t, err)

	st.SetDeclared(1, 1)    // input 1, egress block 0
	st.SetDeclared(11, 1)   // input 1, egress block 1
	st.SetDeclared(21, 11)  // input 11, egress block 2

	set, err := demand.Build(cfg, st)
	require.NoError(t, err)

	require.Len(t, set.Demands, 3)
	assert.Equal(t, []int{1, 11}, set.ActiveInputs)

	// Ascending (input_id, egress_block) order.
	assert.Equal(t, demand.Demand{InputID: 1, IngressBlock: 0, EgressBlock: 0}, set.Demands[0])
	assert.Equal(t, demand.Demand{InputID: 1, IngressBlock: 0, EgressBlock: 1}, set.Demands[1])
	assert.Equal(t, demand.Demand{InputID: 11, IngressBlock: 1, EgressBlock: 2}, set.Demands[2])

	assert.True(t, set.NeedBlocks.Test(1, 0))
	assert.True(t, set.NeedBlocks.Test(1, 1))
	assert.True(t, set.NeedBlocks.Test(11, 2))
	assert.False(t, set.NeedBlocks.Test(11, 0))
}
