// Package orchestrator coordinates every operation that reads or mutates the
// account roster against the remote validation service: quick load, debounced
// full load, the cancellable background validation sweep, the exception-retry
// sweep, and user-initiated batch/force refreshes.
//
// The orchestrator owns the only cancellation token and the only global
// sweep-in-progress flag; a shared minimum-interval throttle spaces out the
// quick-fetch, debounced-fetch and background-sweep entry points.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/account-reconciler/internal/backoff"
	"github.com/account-reconciler/internal/cache"
	"github.com/account-reconciler/internal/freshness"
	"github.com/account-reconciler/internal/logging"
	"github.com/account-reconciler/internal/roster"
	"github.com/account-reconciler/internal/types"
	"github.com/account-reconciler/internal/validator"
	"github.com/google/uuid"
)

// Default intervals. The throttle and debounce windows match: bursts of UI
// activity collapse into at most one remote call per window.
const (
	DefaultMinRefreshInterval = 2 * time.Second
	DefaultDebounceDelay      = 2 * time.Second
)

// Cache keys for the two roster snapshots. The quick key holds an
// unvalidated snapshot; the valid key holds a fully validated one.
const (
	KeyValidAccounts = "/account-management/valid"
	KeyQuickAccounts = "/account-management/quick"
)

// RefreshResult is returned by the user-initiated entry points. Failures
// surface here as a flag, never as a panic or a propagated error.
type RefreshResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Notifier receives transient user-facing outcome messages. Presentation is
// an external concern; the default implementation drops everything.
type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

type noopNotifier struct{}

func (noopNotifier) Success(string) {}
func (noopNotifier) Error(string)   {}
func (noopNotifier) Info(string)    {}

// sweepToken is the cooperative cancellation handle for one background
// sweep. Closures capture the token at sweep start and compare against it at
// every checkpoint, so a superseding sweep's fresh token never confuses an
// older sweep's abandonment logic.
type sweepToken struct {
	id        uuid.UUID
	cancelled atomic.Bool
}

func newSweepToken() *sweepToken {
	return &sweepToken{id: uuid.New()}
}

// Orchestrator is the single long-lived refresh coordinator for a session.
type Orchestrator struct {
	repo      *roster.Repository
	tracker   *freshness.Tracker
	scheduler *backoff.Scheduler
	cache     *cache.Cache
	client    validator.Client
	notifier  Notifier
	logger    *logging.Logger
	now       func() time.Time

	minInterval time.Duration
	debouncer   *Debouncer

	mu            sync.Mutex
	lastRefreshAt time.Time // shared throttle, stamped at completion only
	sweeping      bool
	token         *sweepToken
}

// Config holds construction options for the orchestrator.
type Config struct {
	Repository *roster.Repository  // required
	Tracker    *freshness.Tracker  // required
	Scheduler  *backoff.Scheduler  // required
	Cache      *cache.Cache        // required
	Client     validator.Client    // required
	Notifier   Notifier            // optional
	Logger     *logging.Logger     // optional

	// MinRefreshInterval is the shared throttle window. Default: 2s.
	MinRefreshInterval time.Duration
	// DebounceDelay is the trailing delay of the debounced fetch. Default: 2s.
	DebounceDelay time.Duration
	// Now overrides the wall clock, for tests. Optional.
	Now func() time.Time
}

// New creates an orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Repository == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("freshness tracker cannot be nil")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("backoff scheduler cannot be nil")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("result cache cannot be nil")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("validator client cannot be nil")
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	minInterval := cfg.MinRefreshInterval
	if minInterval <= 0 {
		minInterval = DefaultMinRefreshInterval
	}
	debounceDelay := cfg.DebounceDelay
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounceDelay
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		repo:        cfg.Repository,
		tracker:     cfg.Tracker,
		scheduler:   cfg.Scheduler,
		cache:       cfg.Cache,
		client:      cfg.Client,
		notifier:    notifier,
		logger:      logger.WithField("component", "orchestrator"),
		now:         now,
		minInterval: minInterval,
		debouncer:   NewDebouncer(debounceDelay),
	}, nil
}

// ResetState cancels any in-flight background sweep and clears the global
// sweep flag. In-flight requests are not interrupted; their results are
// simply discarded when they land.
func (o *Orchestrator) ResetState() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sweeping = false
	if o.token != nil {
		o.token.cancelled.Store(true)
		o.token = nil
	}
}

// Close stops the debounce timer. Pending debounced work is dropped.
func (o *Orchestrator) Close() {
	o.debouncer.Stop()
}

// withinThrottle reports whether the shared minimum interval since the last
// completed refresh has not yet elapsed.
func (o *Orchestrator) withinThrottle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.lastRefreshAt.IsZero() && o.now().Sub(o.lastRefreshAt) < o.minInterval
}

// stampRefresh records a completed refresh for the shared throttle.
func (o *Orchestrator) stampRefresh() {
	o.mu.Lock()
	o.lastRefreshAt = o.now()
	o.mu.Unlock()
}

// tokenCancelled reports whether the captured token was cancelled or
// superseded by a newer sweep.
func (o *Orchestrator) tokenCancelled(token *sweepToken) bool {
	if token.cancelled.Load() {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.token != token
}

// withVerifyingStatus copies rows with their validation state cleared, so
// ingesting them yields verifying placeholders. Cached snapshots are always
// considered stale on the quick path.
func withVerifyingStatus(rows []types.Row) []types.Row {
	pending := make([]types.Row, len(rows))
	for i, row := range rows {
		row.Flag = nil
		row.StatusText = ""
		pending[i] = row
	}
	return pending
}

// QuickFetch loads the roster without validating it. Errors are contained:
// on any failure the roster keeps its previous state.
//
// Inside the validation cooldown a previously validated snapshot is adopted
// as-is when cached, and a non-empty roster is left untouched rather than
// regressed to placeholders. Otherwise the quick snapshot (cache or remote)
// loads with every status forced to verifying. This path never stamps the
// shared throttle.
func (o *Orchestrator) QuickFetch(ctx context.Context) {
	if o.withinThrottle() {
		o.logger.Debug("Refresh interval not elapsed, skipping quick fetch")
		return
	}

	if !o.tracker.NeedsValidation() {
		var validRows []types.Row
		found, err := o.cache.Get(ctx, KeyValidAccounts, nil, &validRows)
		if err != nil {
			o.logger.WithError(err).Warn("Failed to read validated snapshot from cache")
		}
		if found {
			o.logger.Debug("Validation cooldown active, adopting validated snapshot")
			o.repo.SetAccounts(validRows)
			return
		}
		if o.repo.Len() > 0 {
			o.logger.Debug("Validation cooldown active, keeping current roster")
			return
		}
	}

	var quickRows []types.Row
	found, err := o.cache.Get(ctx, KeyQuickAccounts, nil, &quickRows)
	if err != nil {
		o.logger.WithError(err).Warn("Failed to read quick snapshot from cache")
	}
	if found {
		o.repo.SetAccounts(withVerifyingStatus(quickRows))
		return
	}

	resp, err := o.client.ListAccounts(ctx)
	if err != nil {
		o.logger.WithError(err).Error("Quick account fetch failed")
		return
	}
	if !resp.OK() || resp.Data == nil {
		o.logger.WithField("code", resp.Code).Error("Quick account fetch returned failure code")
		return
	}

	if err := o.cache.Set(ctx, KeyQuickAccounts, resp.Data, 0, nil); err != nil {
		o.logger.WithError(err).Warn("Failed to cache quick snapshot")
	}
	o.repo.SetAccounts(withVerifyingStatus(resp.Data))
}

// FetchAccounts schedules a validated roster fetch behind the debounce
// window; bursts of calls collapse to one trailing execution.
func (o *Orchestrator) FetchAccounts() {
	o.debouncer.Trigger(func() {
		o.fetchAccountsNow(context.Background())
	})
}

// fetchAccountsNow is the debounced fetch body. Skip paths resolve
// immediately with success so callers never hang on a fetch that decided not
// to run.
func (o *Orchestrator) fetchAccountsNow(ctx context.Context) *RefreshResult {
	if !o.tracker.CheckDataExpiry() && o.repo.Len() > 0 {
		o.logger.Debug("Roster data not expired, skipping fetch")
		return &RefreshResult{Success: true}
	}
	if o.withinThrottle() {
		o.logger.Debug("Refresh interval not elapsed, skipping fetch")
		return &RefreshResult{Success: true}
	}

	var validRows []types.Row
	found, err := o.cache.Get(ctx, KeyValidAccounts, nil, &validRows)
	if err != nil {
		o.logger.WithError(err).Warn("Failed to read validated snapshot from cache")
	}
	if found && !o.tracker.CheckDataExpiry() {
		o.repo.SetAccounts(validRows)
		o.notifier.Success("account data loaded")
		o.stampRefresh()
		return &RefreshResult{Success: true}
	}

	o.repo.StartRefresh()
	defer func() {
		o.repo.EndRefresh()
		o.stampRefresh()
	}()

	resp, err := o.client.ListValidatedAccounts(ctx, nil)
	if err != nil {
		o.logger.WithError(err).Error("Validated account fetch failed")
		o.notifier.Error("failed to load account data")
		return &RefreshResult{Success: false, Error: err.Error()}
	}
	if !resp.OK() || resp.Data == nil {
		o.logger.WithField("code", resp.Code).Error("Validated account fetch returned failure code")
		o.notifier.Error("failed to load account data")
		return &RefreshResult{Success: false, Error: fmt.Sprintf("validator returned code %d", resp.Code)}
	}

	if err := o.cache.Set(ctx, KeyValidAccounts, resp.Data, 0, nil); err != nil {
		o.logger.WithError(err).Warn("Failed to cache validated snapshot")
	}
	o.repo.SetAccounts(resp.Data)
	o.notifier.Success("account data loaded")
	return &RefreshResult{Success: true}
}
