package cost

import (
	"sync"
	"testing"
)

func TestTracker_ReserveCommit(t *testing.T) {
	tr := NewTracker(1.00)

	if !tr.TryReserve(0.40) {
		t.Fatal("Expected first reservation to succeed")
	}
	// 0.40 reserved; another 0.70 would cross the ceiling.
	if tr.TryReserve(0.70) {
		t.Error("Expected reservation past the ceiling to fail")
	}

	actual := tr.Commit(0.40, "gpt-4o-mini", 100_000, 10_000, "extract")
	want := (100_000*0.15 + 10_000*0.60) / 1_000_000
	if actual != want {
		t.Errorf("Expected committed cost %f, got %f", want, actual)
	}
	if tr.Spent() != want {
		t.Errorf("Expected spent %f, got %f", want, tr.Spent())
	}

	// After commit the reservation is gone, so the 0.70 call fits now.
	if !tr.TryReserve(0.70) {
		t.Error("Expected reservation to succeed after the commit freed headroom")
	}
}

func TestTracker_HardStop(t *testing.T) {
	tr := NewTracker(1.00)

	// Three calls at ~$0.30 worst-case each fit; the fourth must be refused.
	granted := 0
	for i := 0; i < 4; i++ {
		if tr.TryReserve(0.30) {
			granted++
			tr.Commit(0.30, "gpt-4o", 100_000, 5_000, "extract")
		}
	}
	if granted != 3 {
		t.Errorf("Expected exactly 3 calls under a $1.00 ceiling, got %d", granted)
	}
	if tr.Spent() > tr.Limit() {
		t.Errorf("Recorded spend %f exceeds ceiling %f", tr.Spent(), tr.Limit())
	}
}

func TestTracker_Release(t *testing.T) {
	tr := NewTracker(0.50)

	if !tr.TryReserve(0.50) {
		t.Fatal("Expected reservation to succeed")
	}
	if tr.TryReserve(0.01) {
		t.Error("Expected no headroom while reserved")
	}

	tr.Release(0.50)
	if !tr.TryReserve(0.50) {
		t.Error("Expected full headroom after release")
	}
	if tr.Spent() != 0 {
		t.Errorf("Release must not record spend, got %f", tr.Spent())
	}
}

func TestTracker_FailedCallsStillCommit(t *testing.T) {
	tr := NewTracker(1.00)

	// A dispatched call that errors still consumed its input tokens.
	tr.TryReserve(0.10)
	tr.Commit(0.10, "gpt-4o-mini", 20_000, 0, "extract")

	if tr.Spent() == 0 {
		t.Error("Expected failed call to record input-token spend")
	}

	s := tr.Snapshot()
	if s.Calls != 1 {
		t.Errorf("Expected 1 call in snapshot, got %d", s.Calls)
	}
	if s.OutputTokens != 0 {
		t.Errorf("Expected 0 output tokens, got %d", s.OutputTokens)
	}
	if s.ByStage["extract"] != tr.Spent() {
		t.Errorf("Expected stage total %f, got %f", tr.Spent(), s.ByStage["extract"])
	}
}

func TestTracker_Unlimited(t *testing.T) {
	tr := NewTracker(0)

	for i := 0; i < 100; i++ {
		if !tr.TryReserve(1000) {
			t.Fatal("Expected unlimited tracker to always reserve")
		}
		tr.Release(1000)
	}
}

func TestTracker_ConcurrentCeiling(t *testing.T) {
	tr := NewTracker(1.00)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.TryReserve(0.10) {
				tr.Commit(0.10, "gpt-4o", 40_000, 0, "extract")
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if granted > 10 {
		t.Errorf("Ceiling admitted %d reservations of $0.10 under a $1.00 limit", granted)
	}
	if tr.Spent() > tr.Limit() {
		t.Errorf("Recorded spend %f exceeds ceiling %f", tr.Spent(), tr.Limit())
	}
}

func TestPriceFor_UnknownModelFallsBack(t *testing.T) {
	p := PriceFor("some-model-nobody-priced")
	if p != defaultPricing {
		t.Errorf("Expected default pricing for unknown model, got %+v", p)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(4000); got != 1000 {
		t.Errorf("Expected 1000 tokens for 4000 chars, got %d", got)
	}
}
