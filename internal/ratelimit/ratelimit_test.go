package ratelimit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/synapse-ai/synapse/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestLimiter(start time.Time) (*FixedWindow, *time.Time) {
	now := start
	f := NewFixedWindow(log.NewNop())
	f.now = func() time.Time { return now }
	return f, &now
}

func TestAllowWithinBudget(t *testing.T) {
	f, _ := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		res := f.Allow("user-1", TierSync)
		if !res.OK {
			t.Fatalf("request %d rejected", i+1)
		}
		if res.Limit != 5 {
			t.Errorf("limit = %d, want 5", res.Limit)
		}
		if res.Remaining != 5-(i+1) {
			t.Errorf("remaining = %d, want %d", res.Remaining, 5-(i+1))
		}
	}

	res := f.Allow("user-1", TierSync)
	if res.OK {
		t.Fatal("request over budget admitted")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
}

func TestWindowReset(t *testing.T) {
	f, now := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		f.Allow("user-1", TierSync)
	}
	if f.Allow("user-1", TierSync).OK {
		t.Fatal("over budget admitted")
	}

	*now = now.Add(61 * time.Second)
	res := f.Allow("user-1", TierSync)
	if !res.OK {
		t.Fatal("request after window expiry rejected")
	}
	if res.Remaining != 4 {
		t.Errorf("remaining after reset = %d, want 4", res.Remaining)
	}
}

func TestTiersAreIsolated(t *testing.T) {
	f, _ := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		f.Allow("user-1", TierSync)
	}
	if f.Allow("user-1", TierSync).OK {
		t.Fatal("sync budget should be exhausted")
	}
	if !f.Allow("user-1", TierChat).OK {
		t.Fatal("chat budget must be independent of sync")
	}
}

func TestKeysAreIsolated(t *testing.T) {
	f, _ := newTestLimiter(time.Unix(1000, 0))

	for i := 0; i < 5; i++ {
		f.Allow("user-1", TierSync)
	}
	if !f.Allow("user-2", TierSync).OK {
		t.Fatal("another user's budget must be unaffected")
	}
}

func TestUnknownTierUsesDefault(t *testing.T) {
	f, _ := newTestLimiter(time.Unix(1000, 0))
	res := f.Allow("user-1", Tier("bogus"))
	if !res.OK || res.Limit != 60 {
		t.Fatalf("result = %+v, want default tier limit 60", res)
	}
}

func TestResetAt(t *testing.T) {
	start := time.Unix(1000, 0)
	f, _ := newTestLimiter(start)
	res := f.Allow("user-1", TierChat)
	if want := start.Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("resetAt = %v, want %v", res.ResetAt, want)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	f, now := newTestLimiter(time.Unix(1000, 0))

	f.Allow("user-1", TierChat)
	f.Allow("user-2", TierChat)
	*now = now.Add(2 * time.Minute)
	f.sweep()

	f.mu.Lock()
	remaining := len(f.entries)
	f.mu.Unlock()
	if remaining != 0 {
		t.Errorf("entries after sweep = %d, want 0", remaining)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	f := NewFixedWindow(log.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	f.Start(ctx)
	cancel()
	// goleak in TestMain fails the run if the sweeper goroutine survives.
	time.Sleep(10 * time.Millisecond)
}
