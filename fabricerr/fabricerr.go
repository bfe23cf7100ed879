// Package fabricerr centralizes the error-kind taxonomy of §7: every
// edit failure the engine surfaces is one of a small fixed set of
// kinds, each with its own recovery disposition. Leaf packages keep
// their own local sentinels (so a caller can errors.Is against a
// specific cause); engine and txn wrap those into a *fabricerr.Error
// so callers can switch on Kind without string matching.
package fabricerr

import "fmt"

// Kind enumerates the disposition classes of §7.
type Kind int

const (
	// InvalidInput: port or input out of range, target port owned by
	// another input, empty target list. The edit is declined.
	InvalidInput Kind = iota
	// UnsatCapacity: egress fan-in or ingress fan-out limit exceeded.
	UnsatCapacity
	// UnsatLock: a lock is infeasible against the current demand set.
	UnsatLock
	// UnsatSearch: capacity passed but search exhausted without a
	// feasible assignment.
	UnsatSearch
	// UnsatStrict: a feasible assignment exists but has non-zero
	// stability cost under strict-stability mode.
	UnsatStrict
	// Internal: a post-commit invariant failed, or the demand builder
	// overflowed. Fatal — the caller should abort, not retry.
	Internal
)

// String renders the Kind the way §7's table names it.
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "INVALID_INPUT"
	case UnsatCapacity:
		return "UNSAT(CAPACITY)"
	case UnsatLock:
		return "UNSAT(LOCK)"
	case UnsatSearch:
		return "UNSAT(SEARCH)"
	case UnsatStrict:
		return "UNSAT(STRICT)"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Error is the typed error the engine and txn packages return for any
// failed edit or fatal internal condition.
type Error struct {
	Kind    Kind
	Message string
	// Cause is the underlying leaf-package sentinel, when one exists,
	// preserved so errors.Is/errors.As still reach it through this
	// wrapper.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes Cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// New builds a fabricerr.Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a fabricerr.Error around an existing leaf-package error.
func Wrap(kind Kind, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Recoverable reports whether a txn edit that fails with this kind
// should trigger rollback-then-resolve (§4.7) rather than being
// treated as fatal. Only Internal is unrecoverable (§7).
func (k Kind) Recoverable() bool { return k != Internal }
