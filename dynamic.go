package axe

// DynamicConditionStrategy admits a request based on a caller-supplied
// predicate evaluated at lock time. The strategy does not interpret the
// predicate's error; it is passed through to the caller unchanged.
//
// Unlock deliberately differs from every other strategy: it releases every
// held entry sharing the request's action id in the boundary, not only the
// exact unique id passed in. Concurrent instances of the same
// dynamic-condition action release together.
type DynamicConditionStrategy struct {
	id    StrategyID
	table *lockTable[DynamicInfo]
}

var _ Strategy[DynamicInfo] = (*DynamicConditionStrategy)(nil)

// NewDynamicConditionStrategy creates a dynamic-condition strategy registered
// under the given id.
func NewDynamicConditionStrategy(id StrategyID) *DynamicConditionStrategy {
	return &DynamicConditionStrategy{
		id:    id,
		table: newLockTable[DynamicInfo](),
	}
}

// ID returns the strategy id.
func (s *DynamicConditionStrategy) ID() StrategyID {
	return s.id
}

// CanLock evaluates the request's predicate. A nil predicate admits.
func (s *DynamicConditionStrategy) CanLock(boundaryID BoundaryID, info DynamicInfo) Result {
	condition := info.Condition()
	if condition == nil {
		return Success()
	}
	if err := condition(); err != nil {
		return Cancel(err)
	}
	return Success()
}

// Lock records the grant.
func (s *DynamicConditionStrategy) Lock(boundaryID BoundaryID, info DynamicInfo) {
	s.table.add(boundaryID, info)
}

// Unlock releases every held entry sharing the request's action id in the
// boundary.
func (s *DynamicConditionStrategy) Unlock(boundaryID BoundaryID, info DynamicInfo) {
	s.table.removeByActionID(boundaryID, info.ActionID())
}

// CurrentLocks returns the held infos in the boundary, in grant order.
func (s *DynamicConditionStrategy) CurrentLocks(boundaryID BoundaryID) []Info {
	return s.table.currentLocks(boundaryID)
}

// CleanUp drops all held state.
func (s *DynamicConditionStrategy) CleanUp() {
	s.table.cleanUp()
}

// CleanUpBoundary drops the boundary's held state.
func (s *DynamicConditionStrategy) CleanUpBoundary(boundaryID BoundaryID) {
	s.table.cleanUpBoundary(boundaryID)
}
