package axe

import "errors"

// PriorityBasedStrategy lets a higher-priority request preempt held
// lower-priority entries. The comparison is against the highest
// currently-held priority in the boundary:
//
//   - higher: granted with a preceding cancellation naming every held entry
//     of lower priority — the caller must release them immediately;
//   - equal: granted (displacing the holder) when the held entry is
//     replaceable, cancelled when it is exclusive;
//   - lower: cancelled.
//
// PriorityLevelNone requests bypass tracking entirely.
type PriorityBasedStrategy struct {
	id    StrategyID
	table *lockTable[PriorityInfo]
}

var _ Strategy[PriorityInfo] = (*PriorityBasedStrategy)(nil)

// NewPriorityBasedStrategy creates a priority-based strategy registered under
// the given id.
func NewPriorityBasedStrategy(id StrategyID) *PriorityBasedStrategy {
	return &PriorityBasedStrategy{
		id:    id,
		table: newLockTable[PriorityInfo](),
	}
}

// ID returns the strategy id.
func (s *PriorityBasedStrategy) ID() StrategyID {
	return s.id
}

// CanLock compares the incoming priority against the highest held priority in
// the boundary. It never mutates the table: displaced entries are named in
// the result and released by the caller.
func (s *PriorityBasedStrategy) CanLock(boundaryID BoundaryID, info PriorityInfo) Result {
	if info.Priority().Level() == PriorityLevelNone {
		return Success()
	}

	held := s.table.snapshot(boundaryID)
	if len(held) == 0 {
		return Success()
	}

	highest := held[0]
	for _, h := range held[1:] {
		if h.Priority().Level() > highest.Priority().Level() {
			highest = h
		}
	}

	incoming := info.Priority().Level()
	switch {
	case incoming > highest.Priority().Level():
		// Name every held entry below the incoming level so none of them
		// outlives the preemption.
		var cancellations []error
		for _, h := range held {
			if h.Priority().Level() < incoming {
				cancellations = append(cancellations, &CancellationError{
					Reason:    ErrPrecededByHigherPriority,
					Boundary:  boundaryID,
					Cancelled: h,
				})
			}
		}
		return SuccessWithPrecedingCancellation(errors.Join(cancellations...))

	case incoming == highest.Priority().Level():
		if highest.Priority().Behavior() == BehaviorReplaceable {
			return SuccessWithPrecedingCancellation(&CancellationError{
				Reason:    ErrPrecededBySamePriority,
				Boundary:  boundaryID,
				Cancelled: highest,
			})
		}
		return Cancel(&ConflictError{
			Reason:    ErrSamePriorityConflict,
			Boundary:  boundaryID,
			Requested: info,
			Existing:  highest,
		})

	default:
		return Cancel(&ConflictError{
			Reason:    ErrHigherPriorityExists,
			Boundary:  boundaryID,
			Requested: info,
			Existing:  highest,
		})
	}
}

// Lock records the grant. PriorityLevelNone grants are not tracked.
func (s *PriorityBasedStrategy) Lock(boundaryID BoundaryID, info PriorityInfo) {
	if info.Priority().Level() == PriorityLevelNone {
		return
	}
	s.table.add(boundaryID, info)
}

// Unlock releases the grant identified by the info's unique id.
func (s *PriorityBasedStrategy) Unlock(boundaryID BoundaryID, info PriorityInfo) {
	s.table.removeByUniqueID(boundaryID, info.UniqueID())
}

// CurrentLocks returns the held infos in the boundary, in grant order.
func (s *PriorityBasedStrategy) CurrentLocks(boundaryID BoundaryID) []Info {
	return s.table.currentLocks(boundaryID)
}

// CleanUp drops all held state.
func (s *PriorityBasedStrategy) CleanUp() {
	s.table.cleanUp()
}

// CleanUpBoundary drops the boundary's held state.
func (s *PriorityBasedStrategy) CleanUpBoundary(boundaryID BoundaryID) {
	s.table.cleanUpBoundary(boundaryID)
}
