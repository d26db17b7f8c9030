package axe

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"
)

// boundaryLatch is the boundary-keyed exclusive section behind
// WithBoundaryLock. Distinct boundary ids proceed fully in parallel and may
// nest inside one another; re-entering the same boundary's section from its
// own body deadlocks, like sync.Mutex — the context deadline is the escape
// hatch for that misuse.
//
// Entries are reference-counted and removed as soon as the last waiter is
// gone, so the latch holds no state for idle boundaries.
type boundaryLatch struct {
	seed   maphash.Seed
	shards []latchShard
}

type latchShard struct {
	mu      sync.Mutex
	entries map[BoundaryID]*latchEntry
}

type latchEntry struct {
	// ch is a one-slot semaphore: sending acquires, receiving releases.
	// A channel rather than sync.Mutex so acquisition can observe context
	// cancellation.
	ch   chan struct{}
	refs int
}

// newBoundaryLatch creates a latch with the given shard count, which must be
// a power of two.
func newBoundaryLatch(shards int) *boundaryLatch {
	l := &boundaryLatch{
		seed:   maphash.MakeSeed(),
		shards: make([]latchShard, shards),
	}
	for n := range l.shards {
		l.shards[n].entries = make(map[BoundaryID]*latchEntry)
	}
	return l
}

// shardFor picks the shard holding the boundary's entry. Sharding only
// spreads map contention; correctness comes from the per-boundary entry.
func (l *boundaryLatch) shardFor(boundaryID BoundaryID) *latchShard {
	h := maphash.String(l.seed, fmt.Sprintf("%T/%v", boundaryID, boundaryID))
	return &l.shards[h&uint64(len(l.shards)-1)]
}

// acquire takes the boundary's exclusive section, blocking until it is free
// or ctx is done. On success the returned release function must be called
// exactly once.
func (l *boundaryLatch) acquire(ctx context.Context, boundaryID BoundaryID) (release func(), err error) {
	shard := l.shardFor(boundaryID)

	shard.mu.Lock()
	e, ok := shard.entries[boundaryID]
	if !ok {
		e = &latchEntry{ch: make(chan struct{}, 1)}
		shard.entries[boundaryID] = e
	}
	e.refs++
	shard.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(shard, boundaryID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(shard, boundaryID, e)
		})
	}, nil
}

func (l *boundaryLatch) unref(shard *latchShard, boundaryID BoundaryID, e *latchEntry) {
	shard.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(shard.entries, boundaryID)
	}
	shard.mu.Unlock()
}
