package axe

import "fmt"

// Strategy is a pluggable policy deciding admission and conflict outcomes
// for lock requests of one payload kind.
//
// CanLock never mutates held state and is non-blocking: every decision is
// immediate, there is no queuing or waiting inside a strategy. Lock must only
// be called after a granted CanLock for the same info, with the boundary's
// exclusive section held — the coordinator's Acquire does this. Unlock is
// idempotent: releasing an entry that is not held is a no-op.
type Strategy[I Info] interface {
	// ID returns the stable id the strategy registers under.
	ID() StrategyID

	// CanLock decides whether the request may proceed. It performs no
	// mutation and no I/O.
	CanLock(boundaryID BoundaryID, info I) Result

	// Lock records the granted request in the held-lock table.
	Lock(boundaryID BoundaryID, info I)

	// Unlock releases the granted request. No-op when not held.
	Unlock(boundaryID BoundaryID, info I)

	// CurrentLocks returns the held infos in the boundary, in grant order.
	CurrentLocks(boundaryID BoundaryID) []Info

	// CleanUp drops all held state.
	CleanUp()

	// CleanUpBoundary drops the boundary's held state.
	CleanUpBoundary(boundaryID BoundaryID)
}

// AnyStrategy is the type-erased handle the registry stores, so strategies
// with heterogeneous info kinds share one map. The erasure is a closure
// wrapper rather than runtime any-casting in callers: the single type
// assertion lives here, and a mismatched info degrades to a Cancel result
// (for CanLock) or a no-op (for Lock/Unlock) instead of panicking.
type AnyStrategy struct {
	id              StrategyID
	canLock         func(BoundaryID, Info) Result
	lock            func(BoundaryID, Info)
	unlock          func(BoundaryID, Info)
	currentLocks    func(BoundaryID) []Info
	cleanUp         func()
	cleanUpBoundary func(BoundaryID)
}

// EraseStrategy wraps a typed strategy into the type-erased registry handle.
func EraseStrategy[I Info](s Strategy[I]) *AnyStrategy {
	return &AnyStrategy{
		id: s.ID(),
		canLock: func(boundaryID BoundaryID, info Info) Result {
			typed, ok := info.(I)
			if !ok {
				return Cancel(fmt.Errorf("%w: strategy %q expects %T, got %T",
					ErrInfoTypeMismatch, s.ID(), *new(I), info))
			}
			return s.CanLock(boundaryID, typed)
		},
		lock: func(boundaryID BoundaryID, info Info) {
			if typed, ok := info.(I); ok {
				s.Lock(boundaryID, typed)
			}
		},
		unlock: func(boundaryID BoundaryID, info Info) {
			if typed, ok := info.(I); ok {
				s.Unlock(boundaryID, typed)
			}
		},
		currentLocks:    s.CurrentLocks,
		cleanUp:         s.CleanUp,
		cleanUpBoundary: s.CleanUpBoundary,
	}
}

// ID returns the stable id of the wrapped strategy.
func (s *AnyStrategy) ID() StrategyID {
	return s.id
}

// CanLock decides whether the request may proceed. An info of the wrong kind
// yields a Cancel result carrying ErrInfoTypeMismatch.
func (s *AnyStrategy) CanLock(boundaryID BoundaryID, info Info) Result {
	return s.canLock(boundaryID, info)
}

// Lock records the granted request. An info of the wrong kind is ignored.
func (s *AnyStrategy) Lock(boundaryID BoundaryID, info Info) {
	s.lock(boundaryID, info)
}

// Unlock releases the granted request. An info of the wrong kind is ignored.
func (s *AnyStrategy) Unlock(boundaryID BoundaryID, info Info) {
	s.unlock(boundaryID, info)
}

// CurrentLocks returns the held infos in the boundary, in grant order.
func (s *AnyStrategy) CurrentLocks(boundaryID BoundaryID) []Info {
	return s.currentLocks(boundaryID)
}

// CleanUp drops all held state.
func (s *AnyStrategy) CleanUp() {
	s.cleanUp()
}

// CleanUpBoundary drops the boundary's held state.
func (s *AnyStrategy) CleanUpBoundary(boundaryID BoundaryID) {
	s.cleanUpBoundary(boundaryID)
}
