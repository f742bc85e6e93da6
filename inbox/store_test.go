package inbox_test

import (
	"sync"
	"testing"
	"time"

	"github.com/eventmux-dispatch/dispatchkit/core"
	"github.com/eventmux-dispatch/dispatchkit/inbox"
)

func TestCreateEntry_DuplicateRejected(t *testing.T) {
	s := inbox.NewStore()
	defer s.Dispose()

	if err := s.CreateEntry("m1", "h1", "OrderCreated", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.CreateEntry("m1", "h1", "OrderCreated", nil, nil)
	if kind, ok := core.KindOf(err); !ok || kind != core.Duplicate {
		t.Fatalf("expected Duplicate, got %v", err)
	}
}

func TestCreateEntry_ConcurrentExactlyOneWins(t *testing.T) {
	s := inbox.NewStore()
	defer s.Dispose()

	const n = 50
	var wg sync.WaitGroup
	successes := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			successes[i] = s.CreateEntry("m1", "h1", "T", nil, nil) == nil
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range successes {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", count)
	}
}

func TestMarkProcessed_ThenAgainFails(t *testing.T) {
	s := inbox.NewStore()
	defer s.Dispose()

	_ = s.CreateEntry("m1", "h1", "T", nil, nil)
	if err := s.MarkProcessed("m1", "h1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.MarkProcessed("m1", "h1")
	if kind, ok := core.KindOf(err); !ok || kind != core.InvalidTransition {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
}

func TestMarkFailed_OverridesProcessed(t *testing.T) {
	s := inbox.NewStore()
	defer s.Dispose()

	_ = s.CreateEntry("m1", "h1", "T", nil, nil)
	_ = s.MarkProcessed("m1", "h1")
	if err := s.MarkFailed("m1", "h1", "downstream exploded"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := s.GetEntry("m1", "h1")
	if entry.Status() != inbox.Failed {
		t.Fatalf("expected Failed, got %v", entry.Status())
	}
}

func TestMarkProcessed_NotFound(t *testing.T) {
	s := inbox.NewStore()
	defer s.Dispose()

	err := s.MarkProcessed("missing", "h1")
	if kind, ok := core.KindOf(err); !ok || kind != core.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGetStatistics_InvariantHolds(t *testing.T) {
	s := inbox.NewStore()
	defer s.Dispose()

	_ = s.CreateEntry("m1", "h1", "T", nil, nil)
	_ = s.CreateEntry("m2", "h1", "T", nil, nil)
	_ = s.CreateEntry("m3", "h1", "T", nil, nil)
	_ = s.MarkProcessed("m1", "h1")
	_ = s.MarkFailed("m2", "h1", "boom")

	stats := s.GetStatistics()
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.Pending+stats.Processed+stats.Failed > stats.Total {
		t.Fatalf("sum of statuses exceeds total: %+v", stats)
	}
	if stats.Processed != 1 || stats.Failed != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected breakdown: %+v", stats)
	}
}

func TestCleanup_RemovesOnlyStaleTerminalEntries(t *testing.T) {
	s := inbox.NewStore()
	defer s.Dispose()

	_ = s.CreateEntry("m1", "h1", "T", nil, nil) // stays Pending
	_ = s.CreateEntry("m2", "h1", "T", nil, nil)
	_ = s.MarkProcessed("m2", "h1")

	removed, err := s.Cleanup(0) // everything terminal is immediately stale
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected to remove 1 entry, removed %d", removed)
	}
	if e := s.GetEntry("m1", "h1"); e == nil {
		t.Fatal("pending entry must never be removed by cleanup")
	}
	if e := s.GetEntry("m2", "h1"); e != nil {
		t.Fatal("expected processed+stale entry to be removed")
	}
}

func TestDispose_IsIdempotentAndBlocksFurtherWrites(t *testing.T) {
	s := inbox.NewStore()
	s.Dispose()
	s.Dispose() // must not panic or block

	err := s.CreateEntry("m1", "h1", "T", nil, nil)
	if kind, ok := core.KindOf(err); !ok || kind != core.Disposed {
		t.Fatalf("expected Disposed, got %v", err)
	}
}

func TestAutomaticCleanup_RunsOnTicker(t *testing.T) {
	s := inbox.NewStore(inbox.WithAutomaticCleanup(5*time.Millisecond, 0))
	defer s.Dispose()

	_ = s.CreateEntry("m1", "h1", "T", nil, nil)
	_ = s.MarkProcessed("m1", "h1")

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if s.GetEntry("m1", "h1") == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected automatic cleanup to remove the stale processed entry")
}
