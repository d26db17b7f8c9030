package axe

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// lockEntry is one held grant in a strategy's table.
type lockEntry[I Info] struct {
	info       I
	acquiredAt time.Time
}

// lockTable is the per-strategy held-lock state: boundary id to the ordered
// list of granted entries. Each strategy instance owns exactly one table
// behind its own mutex; tables are never shared across strategies.
//
// A boundary's list is removed from the map as soon as it becomes empty, so
// the table is empty iff nothing is granted.
type lockTable[I Info] struct {
	mu   sync.RWMutex
	held map[BoundaryID][]lockEntry[I]
}

func newLockTable[I Info]() *lockTable[I] {
	return &lockTable[I]{
		held: make(map[BoundaryID][]lockEntry[I]),
	}
}

// add appends a granted entry to the boundary's list.
func (t *lockTable[I]) add(boundaryID BoundaryID, info I) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held[boundaryID] = append(t.held[boundaryID], lockEntry[I]{
		info:       info,
		acquiredAt: time.Now(),
	})
}

// removeByUniqueID removes the entry with the given unique id. Removing an
// absent entry is a no-op.
func (t *lockTable[I]) removeByUniqueID(boundaryID BoundaryID, id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries, ok := t.held[boundaryID]
	if !ok {
		return
	}
	for n, e := range entries {
		if e.info.UniqueID() == id {
			t.replace(boundaryID, append(entries[:n:n], entries[n+1:]...))
			return
		}
	}
}

// removeByActionID removes every entry sharing the action id. Removing with
// no matches is a no-op.
func (t *lockTable[I]) removeByActionID(boundaryID BoundaryID, actionID ActionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries, ok := t.held[boundaryID]
	if !ok {
		return
	}
	kept := entries[:0:0]
	for _, e := range entries {
		if e.info.ActionID() != actionID {
			kept = append(kept, e)
		}
	}
	t.replace(boundaryID, kept)
}

// replace installs the boundary's new list, deleting it when empty.
// Callers must hold t.mu.
func (t *lockTable[I]) replace(boundaryID BoundaryID, entries []lockEntry[I]) {
	if len(entries) == 0 {
		delete(t.held, boundaryID)
		return
	}
	t.held[boundaryID] = entries
}

// snapshot returns a copy of the boundary's held infos in grant order.
func (t *lockTable[I]) snapshot(boundaryID BoundaryID) []I {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := t.held[boundaryID]
	if len(entries) == 0 {
		return nil
	}
	out := make([]I, len(entries))
	for n, e := range entries {
		out[n] = e.info
	}
	return out
}

// findByUniqueID returns the held info with the given unique id.
func (t *lockTable[I]) findByUniqueID(boundaryID BoundaryID, id uuid.UUID) (I, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.held[boundaryID] {
		if e.info.UniqueID() == id {
			return e.info, true
		}
	}
	var zero I
	return zero, false
}

// size returns the number of held entries in the boundary.
func (t *lockTable[I]) size(boundaryID BoundaryID) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.held[boundaryID])
}

// currentLocks returns the boundary's held infos as the exported Info type.
func (t *lockTable[I]) currentLocks(boundaryID BoundaryID) []Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := t.held[boundaryID]
	if len(entries) == 0 {
		return nil
	}
	out := make([]Info, len(entries))
	for n, e := range entries {
		out[n] = e.info
	}
	return out
}

// cleanUp drops every boundary's state.
func (t *lockTable[I]) cleanUp() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.held = make(map[BoundaryID][]lockEntry[I])
}

// cleanUpBoundary drops one boundary's state.
func (t *lockTable[I]) cleanUpBoundary(boundaryID BoundaryID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, boundaryID)
}
