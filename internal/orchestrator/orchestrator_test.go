package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/account-reconciler/internal/backoff"
	"github.com/account-reconciler/internal/cache"
	"github.com/account-reconciler/internal/freshness"
	"github.com/account-reconciler/internal/roster"
	"github.com/account-reconciler/internal/types"
	"github.com/account-reconciler/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements validator.Client with per-method function hooks and
// call counters.
type mockClient struct {
	mu             sync.Mutex
	listCalls      int
	validatedCalls int
	validatedIDs   []*int64
	deleteCalls    int

	listFn      func(ctx context.Context) (*validator.Response, error)
	validatedFn func(ctx context.Context, id *int64) (*validator.Response, error)
	deleteFn    func(ctx context.Context, id int64) (*validator.Response, error)
}

func (m *mockClient) ListAccounts(ctx context.Context) (*validator.Response, error) {
	m.mu.Lock()
	m.listCalls++
	fn := m.listFn
	m.mu.Unlock()
	if fn == nil {
		return &validator.Response{Code: validator.CodeOK}, nil
	}
	return fn(ctx)
}

func (m *mockClient) ListValidatedAccounts(ctx context.Context, id *int64) (*validator.Response, error) {
	m.mu.Lock()
	m.validatedCalls++
	m.validatedIDs = append(m.validatedIDs, id)
	fn := m.validatedFn
	m.mu.Unlock()
	if fn == nil {
		return &validator.Response{Code: validator.CodeOK}, nil
	}
	return fn(ctx, id)
}

func (m *mockClient) DeleteAccount(ctx context.Context, id int64) (*validator.Response, error) {
	m.mu.Lock()
	m.deleteCalls++
	fn := m.deleteFn
	m.mu.Unlock()
	if fn == nil {
		return &validator.Response{Code: validator.CodeOK}, nil
	}
	return fn(ctx, id)
}

func (m *mockClient) counts() (list, validated, deleted int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls, m.validatedCalls, m.deleteCalls
}

// recordingNotifier captures the notification stream.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) record(kind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, kind+": "+message)
}

func (n *recordingNotifier) Success(message string) { n.record("success", message) }
func (n *recordingNotifier) Error(message string)   { n.record("error", message) }
func (n *recordingNotifier) Info(message string)    { n.record("info", message) }

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	orchestrator *Orchestrator
	repo         *roster.Repository
	tracker      *freshness.Tracker
	scheduler    *backoff.Scheduler
	cache        *cache.Cache
	client       *mockClient
	notifier     *recordingNotifier
	clock        *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: time.Unix(1700000000, 0)}
	client := &mockClient{}
	notifier := &recordingNotifier{}

	tracker := freshness.NewTracker(&freshness.TrackerConfig{Now: clock.Now})
	repo := roster.NewRepository(&roster.RepositoryConfig{
		FetchMarker: tracker,
		Now:         clock.Now,
	})
	scheduler, err := backoff.NewScheduler(&backoff.SchedulerConfig{
		Repository: repo,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	resultCache := cache.New(&cache.Config{Now: clock.Now})

	orch, err := New(&Config{
		Repository: repo,
		Tracker:    tracker,
		Scheduler:  scheduler,
		Cache:      resultCache,
		Client:     client,
		Notifier:   notifier,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(orch.Close)

	return &fixture{
		orchestrator: orch,
		repo:         repo,
		tracker:      tracker,
		scheduler:    scheduler,
		cache:        resultCache,
		client:       client,
		notifier:     notifier,
		clock:        clock,
	}
}

func row(id int64, platform types.PlatformType, name string, flag *int) types.Row {
	return types.Row{
		ID:       id,
		Type:     platform,
		FilePath: fmt.Sprintf("/creds/%d.json", id),
		Name:     name,
		Flag:     flag,
	}
}

func flagOf(v int) *int { return &v }

func okResponse(rows ...types.Row) *validator.Response {
	return &validator.Response{Code: validator.CodeOK, Data: rows}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil repository", func(c *Config) { c.Repository = nil }},
		{"nil tracker", func(c *Config) { c.Tracker = nil }},
		{"nil scheduler", func(c *Config) { c.Scheduler = nil }},
		{"nil cache", func(c *Config) { c.Cache = nil }},
		{"nil client", func(c *Config) { c.Client = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name+" is rejected", func(t *testing.T) {
			repo := roster.NewRepository(nil)
			scheduler, err := backoff.NewScheduler(&backoff.SchedulerConfig{Repository: repo})
			require.NoError(t, err)
			cfg := &Config{
				Repository: repo,
				Tracker:    freshness.NewTracker(nil),
				Scheduler:  scheduler,
				Cache:      cache.New(nil),
				Client:     &mockClient{},
			}
			tt.mutate(cfg)
			orch, err := New(cfg)
			assert.Error(t, err)
			assert.Nil(t, orch)
		})
	}

	t.Run("nil config is rejected", func(t *testing.T) {
		orch, err := New(nil)
		assert.Error(t, err)
		assert.Nil(t, orch)
	})
}

func TestQuickFetch(t *testing.T) {
	ctx := context.Background()

	t.Run("loads the roster with every status forced to verifying", func(t *testing.T) {
		f := newFixture(t)
		f.client.listFn = func(context.Context) (*validator.Response, error) {
			return okResponse(
				row(1, types.PlatformDouyin, "alice", flagOf(1)),
				row(2, types.PlatformBilibili, "bob", flagOf(0)),
			), nil
		}

		f.orchestrator.QuickFetch(ctx)

		list, _, _ := f.client.counts()
		assert.Equal(t, 1, list)
		require.Equal(t, 2, f.repo.Len())
		for _, account := range f.repo.Accounts() {
			assert.Equal(t, types.StatusVerifying, account.Status)
		}
	})

	t.Run("caches the quick snapshot and reuses it", func(t *testing.T) {
		f := newFixture(t)
		f.client.listFn = func(context.Context) (*validator.Response, error) {
			return okResponse(row(1, types.PlatformDouyin, "alice", flagOf(1))), nil
		}

		f.orchestrator.QuickFetch(ctx)
		f.orchestrator.QuickFetch(ctx)

		list, _, _ := f.client.counts()
		assert.Equal(t, 1, list, "second call must be served from cache")
		assert.Equal(t, 1, f.repo.Len())
	})

	t.Run("never stamps the shared throttle", func(t *testing.T) {
		f := newFixture(t)
		f.orchestrator.QuickFetch(ctx)
		assert.False(t, f.orchestrator.withinThrottle())
	})

	t.Run("throttled call is a no-op", func(t *testing.T) {
		f := newFixture(t)
		f.orchestrator.stampRefresh()
		f.clock.Advance(time.Second)

		f.orchestrator.QuickFetch(ctx)

		list, _, _ := f.client.counts()
		assert.Equal(t, 0, list)
	})

	t.Run("adopts the validated snapshot during the cooldown", func(t *testing.T) {
		f := newFixture(t)
		f.tracker.MarkValidationCompleted()
		require.NoError(t, f.cache.Set(ctx, KeyValidAccounts, []types.Row{
			row(1, types.PlatformDouyin, "alice", flagOf(1)),
		}, 0, nil))

		f.orchestrator.QuickFetch(ctx)

		list, _, _ := f.client.counts()
		assert.Equal(t, 0, list)
		require.Equal(t, 1, f.repo.Len())
		assert.Equal(t, types.StatusNormal, f.repo.ByID(1).Status, "validated statuses are adopted as-is")
	})

	t.Run("keeps a non-empty roster during the cooldown", func(t *testing.T) {
		f := newFixture(t)
		f.repo.SetAccounts([]types.Row{row(1, types.PlatformDouyin, "alice", flagOf(1))})
		f.tracker.MarkValidationCompleted()

		f.orchestrator.QuickFetch(ctx)

		list, _, _ := f.client.counts()
		assert.Equal(t, 0, list)
		assert.Equal(t, types.StatusNormal, f.repo.ByID(1).Status)
	})

	t.Run("remote failure leaves the roster untouched", func(t *testing.T) {
		f := newFixture(t)
		f.repo.SetAccounts([]types.Row{row(1, types.PlatformDouyin, "alice", flagOf(1))})
		f.client.listFn = func(context.Context) (*validator.Response, error) {
			return nil, fmt.Errorf("connection refused")
		}

		f.orchestrator.QuickFetch(ctx)

		assert.Equal(t, 1, f.repo.Len())
		assert.Equal(t, types.StatusNormal, f.repo.ByID(1).Status)
	})

	t.Run("failure code leaves the roster untouched", func(t *testing.T) {
		f := newFixture(t)
		f.repo.SetAccounts([]types.Row{row(1, types.PlatformDouyin, "alice", flagOf(1))})
		f.client.listFn = func(context.Context) (*validator.Response, error) {
			return &validator.Response{Code: 500}, nil
		}

		f.orchestrator.QuickFetch(ctx)

		assert.Equal(t, 1, f.repo.Len())
	})
}

func TestFetchAccountsNow(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches, caches and ingests the validated roster", func(t *testing.T) {
		f := newFixture(t)
		f.client.validatedFn = func(_ context.Context, id *int64) (*validator.Response, error) {
			assert.Nil(t, id, "full fetch must be unscoped")
			return okResponse(row(1, types.PlatformDouyin, "alice", flagOf(1))), nil
		}

		result := f.orchestrator.fetchAccountsNow(ctx)

		require.True(t, result.Success)
		assert.Equal(t, types.StatusNormal, f.repo.ByID(1).Status)
		assert.True(t, f.orchestrator.withinThrottle(), "completed fetch stamps the throttle")
		assert.False(t, f.repo.RefreshStatus().IsRefreshing)
		assert.Contains(t, f.notifier.all(), "success: account data loaded")

		var cached []types.Row
		found, err := f.cache.Get(ctx, KeyValidAccounts, nil, &cached)
		require.NoError(t, err)
		assert.True(t, found)
		require.Len(t, cached, 1)
	})

	t.Run("skips when data is fresh and the roster is non-empty", func(t *testing.T) {
		f := newFixture(t)
		f.repo.SetAccounts([]types.Row{row(1, types.PlatformDouyin, "alice", flagOf(1))})

		result := f.orchestrator.fetchAccountsNow(ctx)

		assert.True(t, result.Success)
		_, validated, _ := f.client.counts()
		assert.Equal(t, 0, validated)
	})

	t.Run("skips inside the throttle window", func(t *testing.T) {
		f := newFixture(t)
		f.orchestrator.stampRefresh()

		result := f.orchestrator.fetchAccountsNow(ctx)

		assert.True(t, result.Success)
		_, validated, _ := f.client.counts()
		assert.Equal(t, 0, validated)
	})

	t.Run("adopts a fresh cached snapshot without a remote call", func(t *testing.T) {
		f := newFixture(t)
		f.tracker.MarkFetched() // data fresh, roster empty
		require.NoError(t, f.cache.Set(ctx, KeyValidAccounts, []types.Row{
			row(1, types.PlatformDouyin, "alice", flagOf(1)),
		}, 0, nil))

		result := f.orchestrator.fetchAccountsNow(ctx)

		assert.True(t, result.Success)
		_, validated, _ := f.client.counts()
		assert.Equal(t, 0, validated)
		assert.Equal(t, 1, f.repo.Len())
		assert.True(t, f.orchestrator.withinThrottle())
	})

	t.Run("remote error fails the result and still ends the refresh", func(t *testing.T) {
		f := newFixture(t)
		f.client.validatedFn = func(context.Context, *int64) (*validator.Response, error) {
			return nil, fmt.Errorf("connection refused")
		}

		result := f.orchestrator.fetchAccountsNow(ctx)

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "connection refused")
		assert.False(t, f.repo.RefreshStatus().IsRefreshing)
		assert.True(t, f.orchestrator.withinThrottle(), "even a failed fetch stamps the throttle")
		assert.Contains(t, f.notifier.all(), "error: failed to load account data")
	})

	t.Run("failure code fails the result", func(t *testing.T) {
		f := newFixture(t)
		f.client.validatedFn = func(context.Context, *int64) (*validator.Response, error) {
			return &validator.Response{Code: 500}, nil
		}

		result := f.orchestrator.fetchAccountsNow(ctx)

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "500")
	})
}

func TestFetchAccountsDebounce(t *testing.T) {
	f := newFixture(t)

	fired := make(chan struct{}, 4)
	f.client.validatedFn = func(context.Context, *int64) (*validator.Response, error) {
		fired <- struct{}{}
		return okResponse(row(1, types.PlatformDouyin, "alice", flagOf(1))), nil
	}

	// Shrink the debounce window so the test does not sleep for seconds.
	f.orchestrator.debouncer = NewDebouncer(20 * time.Millisecond)

	f.orchestrator.FetchAccounts()
	f.orchestrator.FetchAccounts()
	f.orchestrator.FetchAccounts()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced fetch never fired")
	}

	// The burst must collapse to exactly one execution.
	time.Sleep(100 * time.Millisecond)
	_, validated, _ := f.client.counts()
	assert.Equal(t, 1, validated)
}
