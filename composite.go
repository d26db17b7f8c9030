package axe

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CompositeStrategy combines 2 to 5 sub-strategies behind the
// single-strategy interface. Admission is unanimous and atomic: CanLock
// queries every sub-strategy, any Cancel cancels the whole request and
// nothing is acquired; only when all sub-strategies grant does Lock register
// the request with each of them.
//
// The composite keeps its own held-lock table alongside the sub-strategies'
// tables so a preceding cancellation raised by a sub-strategy can be mapped
// back to the full composite entry it belongs to. Releasing that composite
// entry then releases every sub-entry, never just the one that conflicted.
type CompositeStrategy struct {
	id    StrategyID
	subs  []*AnyStrategy
	table *lockTable[CompositeInfo]
}

var _ Strategy[CompositeInfo] = (*CompositeStrategy)(nil)

// NewCompositeStrategy creates a composite over the given sub-strategies.
// Between 2 and 5 sub-strategies are required.
func NewCompositeStrategy(id StrategyID, subs ...*AnyStrategy) (*CompositeStrategy, error) {
	if len(subs) < 2 || len(subs) > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrCompositeStrategyCount, len(subs))
	}
	return &CompositeStrategy{
		id:    id,
		subs:  subs,
		table: newLockTable[CompositeInfo](),
	}, nil
}

// ID returns the strategy id.
func (s *CompositeStrategy) ID() StrategyID {
	return s.id
}

// match pairs the composite info's sub-infos with the sub-strategies by
// position, validating strategy ids.
func (s *CompositeStrategy) match(info CompositeInfo) ([]Info, error) {
	subs := info.Subs()
	if len(subs) != len(s.subs) {
		return nil, fmt.Errorf("%w: %d sub-infos for %d sub-strategies",
			ErrCompositeInfoMismatch, len(subs), len(s.subs))
	}
	for n, sub := range subs {
		if sub.StrategyID() != s.subs[n].ID() {
			return nil, fmt.Errorf("%w: sub-info %d targets %q, sub-strategy is %q",
				ErrCompositeInfoMismatch, n, sub.StrategyID(), s.subs[n].ID())
		}
	}
	return subs, nil
}

// CanLock queries every sub-strategy in order. Any Cancel wins and nothing is
// acquired. Preceding cancellations raised by sub-strategies are joined into
// a single result; when the displaced entry belongs to a held composite
// grant, the cancellation names that composite entry instead of the bare
// sub-entry.
func (s *CompositeStrategy) CanLock(boundaryID BoundaryID, info CompositeInfo) Result {
	subs, err := s.match(info)
	if err != nil {
		return Cancel(err)
	}

	var cancellations []error
	seen := make(map[uuid.UUID]struct{})

	for n, sub := range subs {
		res := s.subs[n].CanLock(boundaryID, sub)
		switch res.Kind() {
		case KindCancel:
			return res
		case KindSuccessWithPrecedingCancellation:
			for _, ce := range PrecedingCancellations(res.Err()) {
				mapped := s.mapCancellation(ce)
				id := mapped.Cancelled.UniqueID()
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				cancellations = append(cancellations, mapped)
			}
		}
	}

	if len(cancellations) > 0 {
		return SuccessWithPrecedingCancellation(errors.Join(cancellations...))
	}
	return Success()
}

// mapCancellation rewrites a sub-strategy cancellation to name the held
// composite entry sharing the displaced unique id, when there is one.
func (s *CompositeStrategy) mapCancellation(ce *CancellationError) *CancellationError {
	comp, ok := s.table.findByUniqueID(ce.Boundary, ce.Cancelled.UniqueID())
	if !ok {
		return ce
	}
	return &CancellationError{
		Reason:    ce.Reason,
		Boundary:  ce.Boundary,
		Cancelled: comp,
	}
}

// Lock registers the grant with every sub-strategy and in the composite's own
// table.
func (s *CompositeStrategy) Lock(boundaryID BoundaryID, info CompositeInfo) {
	subs, err := s.match(info)
	if err != nil {
		return
	}
	for n, sub := range subs {
		s.subs[n].Lock(boundaryID, sub)
	}
	s.table.add(boundaryID, info)
}

// Unlock releases the grant from every sub-strategy, in reverse registration
// order, and from the composite's own table.
func (s *CompositeStrategy) Unlock(boundaryID BoundaryID, info CompositeInfo) {
	subs, err := s.match(info)
	if err != nil {
		return
	}
	for n := len(subs) - 1; n >= 0; n-- {
		s.subs[n].Unlock(boundaryID, subs[n])
	}
	s.table.removeByUniqueID(boundaryID, info.UniqueID())
}

// CurrentLocks returns the composite's held infos in the boundary, in grant
// order.
func (s *CompositeStrategy) CurrentLocks(boundaryID BoundaryID) []Info {
	return s.table.currentLocks(boundaryID)
}

// CleanUp drops the composite's state and forwards to every sub-strategy.
func (s *CompositeStrategy) CleanUp() {
	for _, sub := range s.subs {
		sub.CleanUp()
	}
	s.table.cleanUp()
}

// CleanUpBoundary drops the boundary's state and forwards to every
// sub-strategy.
func (s *CompositeStrategy) CleanUpBoundary(boundaryID BoundaryID) {
	for _, sub := range s.subs {
		sub.CleanUpBoundary(boundaryID)
	}
	s.table.cleanUpBoundary(boundaryID)
}
