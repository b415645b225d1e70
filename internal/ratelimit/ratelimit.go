// Package ratelimit provides a per-user fixed-window request limiter.
//
// The limiter is injected into the HTTP layer rather than reached through
// package state, so tests and future multi-instance deployments can swap
// the implementation.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tier selects a limit profile. Expensive endpoints get tighter budgets.
type Tier string

const (
	TierChat    Tier = "chat"
	TierSync    Tier = "sync"
	TierUpload  Tier = "upload"
	TierDefault Tier = "default"
)

// tierConfig is a per-tier window budget.
type tierConfig struct {
	window time.Duration
	max    int
}

var tiers = map[Tier]tierConfig{
	TierChat:    {window: time.Minute, max: 20},
	TierSync:    {window: time.Minute, max: 5},
	TierUpload:  {window: time.Minute, max: 10},
	TierDefault: {window: time.Minute, max: 60},
}

// Result reports one admission decision.
type Result struct {
	OK        bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects a request identified by key under a tier's
// budget.
type Limiter interface {
	Allow(key string, tier Tier) Result
}

type entry struct {
	count   int
	resetAt time.Time
}

// FixedWindow is an in-memory fixed-window Limiter. The counter for a key
// resets when its window expires; there is no sliding behavior, so up to
// 2x the budget can pass across a window boundary.
//
// FixedWindow is safe for concurrent use by multiple goroutines.
type FixedWindow struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	logger  *slog.Logger
}

// NewFixedWindow creates a FixedWindow limiter. A nil logger falls back to
// slog.Default.
func NewFixedWindow(logger *slog.Logger) *FixedWindow {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixedWindow{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger,
	}
}

// Allow counts one request for key under the tier's budget. Unknown tiers
// fall back to the default tier. Counters are keyed by tier and key
// together, so the same user draws from separate budgets per tier.
func (f *FixedWindow) Allow(key string, tier Tier) Result {
	cfg, ok := tiers[tier]
	if !ok {
		cfg = tiers[TierDefault]
	}
	mapKey := string(tier) + ":" + key
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[mapKey]
	if !ok || !e.resetAt.After(now) {
		e = &entry{count: 1, resetAt: now.Add(cfg.window)}
		f.entries[mapKey] = e
		return Result{OK: true, Limit: cfg.max, Remaining: cfg.max - 1, ResetAt: e.resetAt}
	}

	if e.count >= cfg.max {
		return Result{OK: false, Limit: cfg.max, Remaining: 0, ResetAt: e.resetAt}
	}

	e.count++
	return Result{OK: true, Limit: cfg.max, Remaining: cfg.max - e.count, ResetAt: e.resetAt}
}

// Start sweeps expired entries every minute until ctx is canceled.
func (f *FixedWindow) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.sweep()
			}
		}
	}()
}

func (f *FixedWindow) sweep() {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for key, e := range f.entries {
		if !e.resetAt.After(now) {
			delete(f.entries, key)
			removed++
		}
	}
	if removed > 0 {
		f.logger.Debug("swept expired rate limit entries", "removed", removed, "remaining", len(f.entries))
	}
}
