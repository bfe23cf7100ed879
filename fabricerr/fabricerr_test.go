package fabricerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/closmesh/fabric/fabricerr"
)

func TestKind_String(t *testing.T) {
	t.Parallel()

	cases := map[fabricerr.Kind]string{
		fabricerr.InvalidInput:  "INVALID_INPUT",
		fabricerr.UnsatCapacity: "UNSAT(CAPACITY)",
		fabricerr.UnsatLock:     "UNSAT(LOCK)",
		fabricerr.UnsatSearch:   "UNSAT(SEARCH)",
		fabricerr.UnsatStrict:   "UNSAT(STRICT)",
		fabricerr.Internal:      "INTERNAL",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("leaf: boom")
	err := fabricerr.Wrap(fabricerr.UnsatSearch, cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "UNSAT(SEARCH)")
	assert.Contains(t, err.Error(), "boom")
}

func TestKind_Recoverable(t *testing.T) {
	t.Parallel()

	assert.True(t, fabricerr.UnsatCapacity.Recoverable())
	assert.True(t, fabricerr.UnsatLock.Recoverable())
	assert.True(t, fabricerr.UnsatSearch.Recoverable())
	assert.True(t, fabricerr.UnsatStrict.Recoverable())
	assert.True(t, fabricerr.InvalidInput.Recoverable())
	assert.False(t, fabricerr.Internal.Recoverable())
}
