package axe

// SingleExecutionStrategy admits at most one running action per boundary or
// per (boundary, action) pair, depending on the mode carried by each request.
// Disabled-mode requests always pass and are never tracked.
type SingleExecutionStrategy struct {
	id    StrategyID
	table *lockTable[SingleExecutionInfo]
}

var _ Strategy[SingleExecutionInfo] = (*SingleExecutionStrategy)(nil)

// NewSingleExecutionStrategy creates a single-execution strategy registered
// under the given id.
func NewSingleExecutionStrategy(id StrategyID) *SingleExecutionStrategy {
	return &SingleExecutionStrategy{
		id:    id,
		table: newLockTable[SingleExecutionInfo](),
	}
}

// ID returns the strategy id.
func (s *SingleExecutionStrategy) ID() StrategyID {
	return s.id
}

// CanLock scans the boundary for a conflicting held entry under the request's
// mode and cancels when one exists.
func (s *SingleExecutionStrategy) CanLock(boundaryID BoundaryID, info SingleExecutionInfo) Result {
	switch info.Mode() {
	case ModeDisabled:
		return Success()
	case ModePerBoundary:
		if held := s.table.snapshot(boundaryID); len(held) > 0 {
			return Cancel(&ConflictError{
				Reason:    ErrBoundaryAlreadyLocked,
				Boundary:  boundaryID,
				Requested: info,
				Existing:  held[0],
			})
		}
		return Success()
	case ModePerAction:
		for _, held := range s.table.snapshot(boundaryID) {
			if held.ActionID() == info.ActionID() {
				return Cancel(&ConflictError{
					Reason:    ErrActionAlreadyRunning,
					Boundary:  boundaryID,
					Requested: info,
					Existing:  held,
				})
			}
		}
		return Success()
	default:
		return Success()
	}
}

// Lock records the grant. Disabled-mode grants are not tracked.
func (s *SingleExecutionStrategy) Lock(boundaryID BoundaryID, info SingleExecutionInfo) {
	if info.Mode() == ModeDisabled {
		return
	}
	s.table.add(boundaryID, info)
}

// Unlock releases the grant identified by the info's unique id.
func (s *SingleExecutionStrategy) Unlock(boundaryID BoundaryID, info SingleExecutionInfo) {
	s.table.removeByUniqueID(boundaryID, info.UniqueID())
}

// CurrentLocks returns the held infos in the boundary, in grant order.
func (s *SingleExecutionStrategy) CurrentLocks(boundaryID BoundaryID) []Info {
	return s.table.currentLocks(boundaryID)
}

// CleanUp drops all held state.
func (s *SingleExecutionStrategy) CleanUp() {
	s.table.cleanUp()
}

// CleanUpBoundary drops the boundary's held state.
func (s *SingleExecutionStrategy) CleanUpBoundary(boundaryID BoundaryID) {
	s.table.cleanUpBoundary(boundaryID)
}
