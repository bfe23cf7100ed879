// Package config validates the single runtime parameter that shapes a
// Clos fabric: its size N. It also carries the strict-stability flag
// (WithStrictStability); everything else the engine needs (paths,
// other flags) is owned by the invoking layer, not this module.
package config

import "errors"

// ErrInvalidSize indicates N is too small to form a C(N,N,N) fabric.
var ErrInvalidSize = errors.New("config: N must be >= 2")

// Config is the validated, immutable description of a fabric's size.
type Config struct {
	n               int
	totalBlocks     int
	maxPorts        int
	strictStability bool
}

// Option configures a Config before it is validated and frozen.
type Option func(*options)

type options struct {
	strictStability bool
}

// WithStrictStability records that solves in this configuration should
// fail (UNSAT(STRICT)) whenever a feasible assignment has non-zero
// stability cost. It is carried here, rather than threaded through
// every call, so callers configure it once alongside N.
func WithStrictStability() Option {
	return func(o *options) { o.strictStability = true }
}

// New validates n and returns a Config with TotalBlocks == n and
// MaxPorts == n*n, per §3 of the specification.
func New(n int, opts ...Option) (Config, error) {
	if n < 2 {
		return Config{}, ErrInvalidSize
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return Config{
		n:               n,
		totalBlocks:     n,
		maxPorts:        n * n,
		strictStability: o.strictStability,
	}, nil
}

// N returns the fabric size.
func (c Config) N() int { return c.n }

// TotalBlocks returns the number of ingress (== egress) blocks.
func (c Config) TotalBlocks() int { return c.totalBlocks }

// MaxPorts returns N².
func (c Config) MaxPorts() int { return c.maxPorts }

// Block returns the 0-based block index of a 1-based port or input
// identity: block(p) = floor((p-1)/N).
func (c Config) Block(p int) int { return (p - 1) / c.n }

// ValidPort reports whether p is a legal 1-based port/input identity.
func (c Config) ValidPort(p int) bool { return p >= 1 && p <= c.maxPorts }

// StrictStability reports whether solves under this configuration must
// fail when a feasible assignment has non-zero stability cost.
func (c Config) StrictStability() bool { return c.strictStability }
