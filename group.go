package axe

// GroupCoordinationStrategy admits an action into its target groups under
// leader/member rules. All target groups are evaluated atomically under the
// strategy's single table: admission is all-or-nothing, there is no partial
// join.
type GroupCoordinationStrategy struct {
	id    StrategyID
	table *lockTable[GroupInfo]
}

var _ Strategy[GroupInfo] = (*GroupCoordinationStrategy)(nil)

// NewGroupCoordinationStrategy creates a group-coordination strategy
// registered under the given id.
func NewGroupCoordinationStrategy(id StrategyID) *GroupCoordinationStrategy {
	return &GroupCoordinationStrategy{
		id:    id,
		table: newLockTable[GroupInfo](),
	}
}

// ID returns the strategy id.
func (s *GroupCoordinationStrategy) ID() StrategyID {
	return s.id
}

// CanLock checks every target group of the request against the boundary's
// current group occupancy:
//
//   - a leader may not join a non-empty group;
//   - a member may not join an empty group;
//   - an action id already present anywhere in the target group set is
//     rejected.
func (s *GroupCoordinationStrategy) CanLock(boundaryID BoundaryID, info GroupInfo) Result {
	held := s.table.snapshot(boundaryID)

	// Occupancy of each target group, derived from the held entries.
	occupancy := make(map[GroupID][]GroupInfo, len(info.Groups()))
	for _, h := range held {
		for _, g := range h.Groups() {
			occupancy[g] = append(occupancy[g], h)
		}
	}

	for _, g := range info.Groups() {
		occupants := occupancy[g]

		switch info.Role() {
		case RoleLeader:
			if len(occupants) > 0 {
				return Cancel(&GroupConflictError{
					Reason:    ErrLeaderCannotJoinNonEmptyGroup,
					Boundary:  boundaryID,
					Group:     g,
					Requested: info,
				})
			}
		case RoleMember:
			if len(occupants) == 0 {
				return Cancel(&GroupConflictError{
					Reason:    ErrMemberCannotJoinEmptyGroup,
					Boundary:  boundaryID,
					Group:     g,
					Requested: info,
				})
			}
		}

		for _, occupant := range occupants {
			if occupant.ActionID() == info.ActionID() {
				return Cancel(&GroupConflictError{
					Reason:    ErrActionAlreadyInGroup,
					Boundary:  boundaryID,
					Group:     g,
					Requested: info,
				})
			}
		}
	}

	return Success()
}

// Lock records the grant, joining the action into every target group.
func (s *GroupCoordinationStrategy) Lock(boundaryID BoundaryID, info GroupInfo) {
	s.table.add(boundaryID, info)
}

// Unlock releases the grant, leaving every target group at once.
func (s *GroupCoordinationStrategy) Unlock(boundaryID BoundaryID, info GroupInfo) {
	s.table.removeByUniqueID(boundaryID, info.UniqueID())
}

// CurrentLocks returns the held infos in the boundary, in grant order.
func (s *GroupCoordinationStrategy) CurrentLocks(boundaryID BoundaryID) []Info {
	return s.table.currentLocks(boundaryID)
}

// CleanUp drops all held state.
func (s *GroupCoordinationStrategy) CleanUp() {
	s.table.cleanUp()
}

// CleanUpBoundary drops the boundary's held state.
func (s *GroupCoordinationStrategy) CleanUpBoundary(boundaryID BoundaryID) {
	s.table.cleanUpBoundary(boundaryID)
}
