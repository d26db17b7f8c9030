package axe

// ConcurrencyLimitedStrategy bounds how many entries sharing a concurrency
// key may be held in a boundary at once. Admission is first-come
// first-served up to the request's limit; there are no priority semantics.
type ConcurrencyLimitedStrategy struct {
	id    StrategyID
	table *lockTable[ConcurrencyInfo]
}

var _ Strategy[ConcurrencyInfo] = (*ConcurrencyLimitedStrategy)(nil)

// NewConcurrencyLimitedStrategy creates a concurrency-limited strategy
// registered under the given id.
func NewConcurrencyLimitedStrategy(id StrategyID) *ConcurrencyLimitedStrategy {
	return &ConcurrencyLimitedStrategy{
		id:    id,
		table: newLockTable[ConcurrencyInfo](),
	}
}

// ID returns the strategy id.
func (s *ConcurrencyLimitedStrategy) ID() StrategyID {
	return s.id
}

// CanLock counts held entries sharing the request's key within the boundary
// and cancels when the request's limit is exhausted.
func (s *ConcurrencyLimitedStrategy) CanLock(boundaryID BoundaryID, info ConcurrencyInfo) Result {
	held := s.table.snapshot(boundaryID)
	count := 0
	var existing Info
	for _, h := range held {
		if h.Key() == info.Key() {
			count++
			if existing == nil {
				existing = h
			}
		}
	}
	if !info.Limit().Allows(count) {
		return Cancel(&ConflictError{
			Reason:    ErrConcurrencyLimitReached,
			Boundary:  boundaryID,
			Requested: info,
			Existing:  existing,
		})
	}
	return Success()
}

// Lock records the grant against the request's key.
func (s *ConcurrencyLimitedStrategy) Lock(boundaryID BoundaryID, info ConcurrencyInfo) {
	s.table.add(boundaryID, info)
}

// Unlock releases the grant identified by the info's unique id, freeing one
// slot for the key.
func (s *ConcurrencyLimitedStrategy) Unlock(boundaryID BoundaryID, info ConcurrencyInfo) {
	s.table.removeByUniqueID(boundaryID, info.UniqueID())
}

// CurrentLocks returns the held infos in the boundary, in grant order.
func (s *ConcurrencyLimitedStrategy) CurrentLocks(boundaryID BoundaryID) []Info {
	return s.table.currentLocks(boundaryID)
}

// CleanUp drops all held state.
func (s *ConcurrencyLimitedStrategy) CleanUp() {
	s.table.cleanUp()
}

// CleanUpBoundary drops the boundary's held state.
func (s *ConcurrencyLimitedStrategy) CleanUpBoundary(boundaryID BoundaryID) {
	s.table.cleanUpBoundary(boundaryID)
}
