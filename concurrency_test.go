package axe

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestConcurrency_AdmitsUpToLimit(t *testing.T) {
	s := NewConcurrencyLimitedStrategy("concurrency")
	limit := Limited(2)

	first := NewConcurrencyInfo("concurrency", "download", "network", limit)
	second := NewConcurrencyInfo("concurrency", "download", "network", limit)
	for _, info := range []ConcurrencyInfo{first, second} {
		if res := s.CanLock("b", info); !res.Granted() {
			t.Fatalf("expected grant under the bound, got %v", res)
		}
		s.Lock("b", info)
	}

	third := NewConcurrencyInfo("concurrency", "download", "network", limit)
	res := s.CanLock("b", third)
	if !errors.Is(res.Err(), ErrConcurrencyLimitReached) {
		t.Fatalf("expected ErrConcurrencyLimitReached at the bound, got %v", res.Err())
	}

	// Releasing one slot admits the next request.
	s.Unlock("b", first)
	if res := s.CanLock("b", third); !res.Granted() {
		t.Errorf("expected grant after a release, got %v", res)
	}
}

func TestConcurrency_KeysAreIndependent(t *testing.T) {
	s := NewConcurrencyLimitedStrategy("concurrency")
	limit := Limited(1)

	held := NewConcurrencyInfo("concurrency", "download", "network", limit)
	s.Lock("b", held)

	// A different key has its own count.
	disk := NewConcurrencyInfo("concurrency", "compress", "disk", limit)
	if res := s.CanLock("b", disk); !res.Granted() {
		t.Errorf("expected independent key admitted, got %v", res)
	}

	// So does the same key in a different boundary.
	other := NewConcurrencyInfo("concurrency", "download", "network", limit)
	if res := s.CanLock("other", other); !res.Granted() {
		t.Errorf("expected other boundary admitted, got %v", res)
	}
}

func TestConcurrency_UnlimitedNeverRejects(t *testing.T) {
	s := NewConcurrencyLimitedStrategy("concurrency")

	for n := 0; n < 100; n++ {
		info := NewConcurrencyInfo("concurrency", "log", "logs", Unlimited())
		if res := s.CanLock("b", info); !res.Granted() {
			t.Fatalf("expected unlimited key admitted at %d held, got %v", n, res)
		}
		s.Lock("b", info)
	}
}

func TestConcurrency_LimitIsPerRequest(t *testing.T) {
	s := NewConcurrencyLimitedStrategy("concurrency")

	// The limit travels with the request, not the key: a stricter request
	// sees the same held count but applies its own bound.
	s.Lock("b", NewConcurrencyInfo("concurrency", "download", "network", Limited(3)))

	strict := NewConcurrencyInfo("concurrency", "download", "network", Limited(1))
	if res := s.CanLock("b", strict); res.Granted() {
		t.Error("expected the stricter request rejected at its own bound")
	}
}

// Bound property: with limit n, the n+1th concurrent request for a key is
// always cancelled, and releasing any one admits the next.
func TestConcurrency_BoundProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(rt, "limit")
		s := NewConcurrencyLimitedStrategy("concurrency")
		limit := Limited(n)

		held := make([]ConcurrencyInfo, 0, n)
		for i := 0; i < n; i++ {
			info := NewConcurrencyInfo("concurrency", "download", "network", limit)
			if res := s.CanLock("b", info); !res.Granted() {
				rt.Fatalf("expected grant below the bound, got %v", res)
			}
			s.Lock("b", info)
			held = append(held, info)
		}

		over := NewConcurrencyInfo("concurrency", "download", "network", limit)
		if res := s.CanLock("b", over); res.Granted() {
			rt.Fatalf("expected the %dth request rejected at limit %d", n+1, n)
		}

		victim := rapid.IntRange(0, n-1).Draw(rt, "victim")
		s.Unlock("b", held[victim])
		if res := s.CanLock("b", over); !res.Granted() {
			rt.Fatalf("expected grant after a release, got %v", res)
		}
	})
}
