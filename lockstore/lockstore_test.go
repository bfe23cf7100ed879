package lockstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closmesh/fabric/config"
	"github.com/closmesh/fabric/demand"
	"github.com/closmesh/fabric/fabric"
	"github.com/closmesh/fabric/lockstore"
)

func mustConfig(t *testing.T, n int) config.Config {
	t.Helper()
	cfg, err := config.New(n)
	require.NoError(t, err)
	return cfg
}

func TestStore_AddAndSpine(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, 4)
	st, err := lockstore.New(cfg)
	require.NoError(t, err)

	assert.Equal(t, -1, st.Spine(1, 0))

	conflict, ok := st.Add(1, 0, 2)
	assert.True(t, ok)
	assert.Nil(t, conflict)
	assert.Equal(t, 2, st.Spine(1, 0))
	assert.True(t, st.Any())

	// Re-adding the identical lock is not a conflict.
	conflict, ok = st.Add(1, 0, 2)
	assert.True(t, ok)
	assert.Nil(t, conflict)
}

func TestStore_Add_RangeRejected(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, 4)
	st, err := lockstore.New(cfg)
	require.NoError(t, err)

	conflict, ok := st.Add(1, 0, 99) // spine out of range
	assert.False(t, ok)
	require.NotNil(t, conflict)
	assert.Equal(t, lockstore.Range, conflict.Reason)
	assert.Len(t, st.LoadConflicts(), 1)
}

func TestStore_Add_ConflictRejected(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, 4)
	st, err := lockstore.New(cfg)
	require.NoError(t, err)

	_, ok := st.Add(1, 0, 2)
	require.True(t, ok)

	conflict, ok := st.Add(1, 0, 3) // disagrees with the first lock
	assert.False(t, ok)
	require.NotNil(t, conflict)
	assert.Equal(t, lockstore.Conflict, conflict.Reason)
	assert.Equal(t, 2, st.Spine(1, 0)) // unchanged
}

func TestStore_ValidateAgainstDemands_NoLocksPasses(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, 4)
	fst, err := fabric.New(cfg)
	require.NoError(t, err)
	fst.SetDeclared(1, 1)
	set, err := demand.Build(cfg, fst)
	require.NoError(t, err)

	st, err := lockstore.New(cfg)
	require.NoError(t, err)

	ok, conflicts := st.ValidateAgainstDemands(set)
	assert.True(t, ok)
	assert.Empty(t, conflicts)
}

func TestStore_ValidateAgainstDemands_IgnoresLockOnNonexistentDemand(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, 4)
	fst, err := fabric.New(cfg)
	require.NoError(t, err)
	// input 1 has no declared ports at all: its lock applies to no demand.
	set, err := demand.Build(cfg, fst)
	require.NoError(t, err)

	st, err := lockstore.New(cfg)
	require.NoError(t, err)
	_, ok := st.Add(1, 0, 0)
	require.True(t, ok)

	ok2, conflicts := st.ValidateAgainstDemands(set)
	assert.True(t, ok2)
	assert.Empty(t, conflicts)
}

func TestStore_ValidateAgainstDemands_DetectsSpineCollision(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, 4)
	fst, err := fabric.New(cfg)
	require.NoError(t, err)
	// Inputs 1 and 5 are in different ingress blocks (block 0 and 1) but
	// both demand egress block 0 — locking them to the same spine
	// collides on the S2 (spine, egress) trunk.
	fst.SetDeclared(1, 1)
	fst.SetDeclared(2, 5)
	set, err := demand.Build(cfg, fst)
	require.NoError(t, err)

	st, err := lockstore.New(cfg)
	require.NoError(t, err)
	_, ok := st.Add(1, 0, 0)
	require.True(t, ok)
	_, ok = st.Add(5, 0, 0)
	require.True(t, ok)

	ok2, conflicts := st.ValidateAgainstDemands(set)
	assert.False(t, ok2)
	assert.NotEmpty(t, conflicts)
}

func TestStore_Counts(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, 4)
	fst, err := fabric.New(cfg)
	require.NoError(t, err)
	fst.SetDeclared(1, 1)
	fst.SetDeclared(2, 1)
	set, err := demand.Build(cfg, fst)
	require.NoError(t, err)

	st, err := lockstore.New(cfg)
	require.NoError(t, err)
	_, ok := st.Add(1, 0, 2)
	require.True(t, ok)

	counts := st.Counts(fst, set)
	assert.Equal(t, 1, counts.LockedDemands)
	assert.Equal(t, 2, counts.LockedOutputs) // both ports 1 and 2 are owned by input 1
}

func TestStore_Counts_NoLocks(t *testing.T) {
	t.Parallel()

	cfg := mustConfig(t, 4)
	fst, err := fabric.New(cfg)
	require.NoError(t, err)
	set, err := demand.Build(cfg, fst)
	require.NoError(t, err)

	st, err := lockstore.New(cfg)
	require.NoError(t, err)

	assert.Equal(t, lockstore.Counts{}, st.Counts(fst, set))
}
