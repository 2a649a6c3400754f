// Package herrors defines the unified error taxonomy surfaced at every
// horus package boundary.
package herrors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error so callers can branch without string matching.
type Kind int

const (
	// Unknown is the zero value; never returned intentionally.
	Unknown Kind = iota
	// Communication covers transport failure, serialization failure,
	// queue-full, and torn-read-exhausted conditions.
	Communication
	// SharedMemory covers failure to create/open/map a region.
	SharedMemory
	// Timeout covers a bounded wait that elapsed.
	Timeout
	// InvalidInput covers malformed topic names, type mismatches, and
	// non-POD types used with PodLink.
	InvalidInput
	// NotFound covers absent parameters or topics.
	NotFound
	// Initialization covers node init failures and scheduler
	// misconfiguration.
	Initialization
	// Permission covers OS-refused operations.
	Permission
)

func (k Kind) String() string {
	switch k {
	case Communication:
		return "communication"
	case SharedMemory:
		return "shared_memory"
	case Timeout:
		return "timeout"
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Initialization:
		return "initialization"
	case Permission:
		return "permission"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across horus package
// boundaries. It carries enough context to be actionable in logs without
// leaking implementation details (no raw syscall errno strings bubble up
// past the Err field unless the caller unwraps).
type Error struct {
	Kind  Kind
	Topic string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("horus: %s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("horus: %s: %s(%s): %v", e.Kind, e.Op, e.Topic, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error with the given kind, operation, topic, and
// wrapped cause.
func New(kind Kind, op, topic string, err error) *Error {
	return &Error{Kind: kind, Op: op, Topic: topic, Err: err}
}

// Is reports whether err is a horus Error of the given kind.
func Is(err error, kind Kind) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind == kind
	}
	return false
}
