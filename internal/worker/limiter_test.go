package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if l.defaultRate != 2 {
		t.Errorf("expected default rate 2, got %v", l.defaultRate)
	}
	if l.defaultBurst != 1 {
		t.Errorf("expected default burst 1, got %d", l.defaultBurst)
	}
}

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(1, 1)

	if !l.Allow("anthropic") {
		t.Error("expected first request allowed")
	}
	if l.Allow("anthropic") {
		t.Error("expected second immediate request denied at 1 rps")
	}
	// Providers are limited independently.
	if !l.Allow("openai") {
		t.Error("expected a different provider to have its own bucket")
	}
}

func TestLimiter_SetProviderRate(t *testing.T) {
	l := NewLimiter(1, 1)
	l.SetProviderRate("ollama", 1000, 10)

	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("ollama") {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("expected custom burst to allow 5 requests, got %d", allowed)
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := NewLimiter(0.001, 1)
	l.Allow("anthropic") // drain the bucket

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "anthropic"); err == nil {
		t.Error("expected Wait to fail when the context expires first")
	}
}
