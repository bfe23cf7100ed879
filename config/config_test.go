package config_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/closmesh/fabric/config"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		n       int
		wantErr error
	}{
		{"too small", 1, config.ErrInvalidSize},
		{"zero", 0, config.ErrInvalidSize},
		{"negative", -5, config.ErrInvalidSize},
		{"minimum valid", 2, nil},
		{"typical", 10, nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := config.New(tt.n)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.n, cfg.N())
			assert.Equal(t, tt.n, cfg.TotalBlocks())
			assert.Equal(t, tt.n*tt.n, cfg.MaxPorts())
		})
	}
}

func TestConfig_BlockAndValidPort(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(10)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Block(1))
	assert.Equal(t, 0, cfg.Block(10))
	assert.Equal(t, 1, cfg.Block(11))
	assert.Equal(t, 9, cfg.Block(100))

	assert.True(t, cfg.ValidPort(1))
	assert.True(t, cfg.ValidPort(100))
	assert.False(t, cfg.ValidPort(0))
	assert.False(t, cfg.ValidPort(101))
}

func TestConfig_WithStrictStability(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(10)
	require.NoError(t, err)
	assert.False(t, cfg.StrictStability())

	cfg, err = config.New(10, config.WithStrictStability())
	require.NoError(t, err)
	assert.True(t, cfg.StrictStability())
}
