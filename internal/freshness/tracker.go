// Package freshness tracks how stale the account roster is. Two independent
// wall-clock windows gate different operations: the data-expiry window decides
// whether a fetch is needed, the validation-cooldown window decides whether a
// full validation sweep is due. Data can be fresh while validation is due,
// and vice versa.
package freshness

import (
	"sync"
	"time"
)

// Default window sizes. The expiry window follows the typical lifetime of
// stored platform credentials; the cooldown keeps full sweeps apart.
const (
	DefaultExpiryWindow   = 30 * time.Minute
	DefaultCooldownWindow = 5 * time.Minute
)

// Tracker is the singleton staleness state. All methods are safe for
// concurrent use.
type Tracker struct {
	mu               sync.Mutex
	expiryWindow     time.Duration
	cooldownWindow   time.Duration
	lastFetchAt      time.Time
	lastValidationAt time.Time
	expired          bool
	now              func() time.Time
}

// TrackerConfig holds construction options for the tracker.
type TrackerConfig struct {
	// ExpiryWindow is the maximum age of fetched data. Default: 30 minutes.
	ExpiryWindow time.Duration
	// CooldownWindow is the minimum interval between two full validation
	// sweeps. Default: 5 minutes.
	CooldownWindow time.Duration
	// Now overrides the wall clock, for tests. Optional.
	Now func() time.Time
}

// NewTracker creates a tracker with nothing fetched or validated yet.
func NewTracker(cfg *TrackerConfig) *Tracker {
	if cfg == nil {
		cfg = &TrackerConfig{}
	}
	expiry := cfg.ExpiryWindow
	if expiry <= 0 {
		expiry = DefaultExpiryWindow
	}
	cooldown := cfg.CooldownWindow
	if cooldown <= 0 {
		cooldown = DefaultCooldownWindow
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		expiryWindow:   expiry,
		cooldownWindow: cooldown,
		now:            now,
	}
}

// CheckDataExpiry reports whether the roster data is stale, updating the
// expired flag as a side effect. Data that was never fetched is stale.
func (t *Tracker) CheckDataExpiry() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastFetchAt.IsZero() {
		t.expired = true
		return true
	}
	t.expired = t.now().Sub(t.lastFetchAt) > t.expiryWindow
	return t.expired
}

// MarkFetched records that the roster is current as of now. Every roster
// mutation funnels here, so staleness is mutation-driven rather than purely
// fetch-driven.
func (t *Tracker) MarkFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastFetchAt = t.now()
	t.expired = false
}

// NeedsValidation reports whether a full validation sweep is due: true when
// no sweep ever completed or the cooldown window has elapsed since the last
// one.
func (t *Tracker) NeedsValidation() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastValidationAt.IsZero() {
		return true
	}
	return t.now().Sub(t.lastValidationAt) > t.cooldownWindow
}

// MarkValidationCompleted records a finished full validation sweep, starting
// the cooldown window.
func (t *Tracker) MarkValidationCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastValidationAt = t.now()
}

// State is a read-only snapshot of the tracker, for status reporting.
type State struct {
	ExpiryWindow     time.Duration `json:"expiryWindowMs"`
	CooldownWindow   time.Duration `json:"cooldownWindowMs"`
	LastFetchAt      time.Time     `json:"lastFetchAt"`
	LastValidationAt time.Time     `json:"lastValidationAt"`
	IsExpired        bool          `json:"isExpired"`
}

// Snapshot returns the current tracker state without mutating it.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		ExpiryWindow:     t.expiryWindow,
		CooldownWindow:   t.cooldownWindow,
		LastFetchAt:      t.lastFetchAt,
		LastValidationAt: t.lastValidationAt,
		IsExpired:        t.expired,
	}
}
