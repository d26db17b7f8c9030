package axe

import (
	"errors"
	"fmt"
)

// Registration errors
var (
	// ErrStrategyAlreadyRegistered indicates a strategy id collision on registration
	ErrStrategyAlreadyRegistered = errors.New("strategy already registered")

	// ErrStrategyNotRegistered indicates the strategy id is not registered
	ErrStrategyNotRegistered = errors.New("strategy not registered")
)

// Contention errors
var (
	// ErrBoundaryAlreadyLocked indicates another action already holds the boundary
	ErrBoundaryAlreadyLocked = errors.New("boundary already locked")

	// ErrActionAlreadyRunning indicates the same action is already running in the boundary
	ErrActionAlreadyRunning = errors.New("action already running")

	// ErrHigherPriorityExists indicates a higher-priority action holds the boundary
	ErrHigherPriorityExists = errors.New("higher priority lock exists")

	// ErrSamePriorityConflict indicates an equal-priority exclusive action holds the boundary
	ErrSamePriorityConflict = errors.New("same priority lock is exclusive")

	// ErrPrecededByHigherPriority marks a grant that displaced a lower-priority holder
	ErrPrecededByHigherPriority = errors.New("preceded by higher priority request")

	// ErrPrecededBySamePriority marks a grant that displaced a replaceable equal-priority holder
	ErrPrecededBySamePriority = errors.New("preceded by same priority request")

	// ErrLeaderCannotJoinNonEmptyGroup indicates a leader tried to join an occupied group
	ErrLeaderCannotJoinNonEmptyGroup = errors.New("leader cannot join non-empty group")

	// ErrMemberCannotJoinEmptyGroup indicates a member tried to join an empty group
	ErrMemberCannotJoinEmptyGroup = errors.New("member cannot join empty group")

	// ErrActionAlreadyInGroup indicates the action is already present in a target group
	ErrActionAlreadyInGroup = errors.New("action already in group")

	// ErrConcurrencyLimitReached indicates the concurrency bound for the key is exhausted
	ErrConcurrencyLimitReached = errors.New("concurrency limit reached")
)

// Composite errors
var (
	// ErrCompositeStrategyCount indicates an invalid number of sub-strategies (must be 2-5)
	ErrCompositeStrategyCount = errors.New("composite strategy requires 2 to 5 sub-strategies")

	// ErrCompositeInfoMismatch indicates the composite info does not match the composite strategy
	ErrCompositeInfoMismatch = errors.New("composite info does not match composite strategy")
)

// Misuse errors
var (
	// ErrInfoTypeMismatch indicates a lock info of the wrong kind was passed to a strategy
	ErrInfoTypeMismatch = errors.New("lock info type mismatch")
)

// Config errors
var (
	// ErrInvalidConfig indicates the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConflictError is the typed payload carried inside a Cancel result when a
// held entry blocks the requested one. It unwraps to one of the contention
// sentinels so callers can match with errors.Is.
type ConflictError struct {
	// Reason is the contention sentinel describing the conflict.
	Reason error
	// Boundary is the boundary in which the conflict occurred.
	Boundary BoundaryID
	// Requested is the lock info that was rejected.
	Requested Info
	// Existing is the held lock info that caused the rejection. May be nil
	// when the conflict is not tied to a single entry.
	Existing Info
}

// Error returns the human-readable description of the conflict.
func (e *ConflictError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("%v: action %q rejected in boundary %v (held by %q)",
			e.Reason, e.Requested.ActionID(), e.Boundary, e.Existing.ActionID())
	}
	return fmt.Sprintf("%v: action %q rejected in boundary %v",
		e.Reason, e.Requested.ActionID(), e.Boundary)
}

// Unwrap returns the contention sentinel.
func (e *ConflictError) Unwrap() error {
	return e.Reason
}

// GroupConflictError is a ConflictError variant that names the group in which
// the coordination rule was violated.
type GroupConflictError struct {
	// Reason is the contention sentinel describing the violation.
	Reason error
	// Boundary is the boundary in which the violation occurred.
	Boundary BoundaryID
	// Group is the group the request was rejected from.
	Group GroupID
	// Requested is the lock info that was rejected.
	Requested Info
}

// Error returns the human-readable description of the violation.
func (e *GroupConflictError) Error() string {
	return fmt.Sprintf("%v: action %q rejected from group %q in boundary %v",
		e.Reason, e.Requested.ActionID(), e.Group, e.Boundary)
}

// Unwrap returns the contention sentinel.
func (e *GroupConflictError) Unwrap() error {
	return e.Reason
}

// CancellationError names a previously-granted entry that must be released
// and its work cancelled because a new request displaced it. It is carried
// inside a SuccessWithPrecedingCancellation result.
type CancellationError struct {
	// Reason is the sentinel describing why the entry was displaced.
	Reason error
	// Boundary is the boundary the cancelled entry was held in.
	Boundary BoundaryID
	// Cancelled is the displaced lock info. The caller must release it
	// immediately and cancel its associated work.
	Cancelled Info
}

// Error returns the human-readable description of the required cancellation.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("%v: action %q in boundary %v must be cancelled",
		e.Reason, e.Cancelled.ActionID(), e.Boundary)
}

// Unwrap returns the displacement sentinel.
func (e *CancellationError) Unwrap() error {
	return e.Reason
}

// PrecedingCancellations extracts every CancellationError from err, walking
// wrapped and joined error trees. Returns nil when err carries none.
func PrecedingCancellations(err error) []*CancellationError {
	if err == nil {
		return nil
	}
	var out []*CancellationError
	collectCancellations(err, &out)
	return out
}

func collectCancellations(err error, out *[]*CancellationError) {
	if err == nil {
		return
	}
	if ce, ok := err.(*CancellationError); ok {
		*out = append(*out, ce)
		return
	}
	switch x := err.(type) {
	case interface{ Unwrap() []error }:
		for _, sub := range x.Unwrap() {
			collectCancellations(sub, out)
		}
	case interface{ Unwrap() error }:
		collectCancellations(x.Unwrap(), out)
	}
}
