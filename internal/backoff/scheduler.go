// Package backoff decides when exception accounts become eligible for
// automatic re-validation. Each failure doubles the wait (60s, 120s, 240s,
// ...) until a retry ceiling stops automatic attempts entirely.
package backoff

import (
	"fmt"
	"math"
	"time"

	"github.com/account-reconciler/internal/logging"
	"github.com/account-reconciler/internal/models"
	"github.com/account-reconciler/internal/roster"
	"github.com/account-reconciler/internal/types"
)

// Default retry policy. Three attempts keeps a dead credential from being
// hammered forever; the 60s base keeps validation traffic low.
const (
	DefaultMaxRetryCount = 3
	DefaultBaseBackoff   = 60 * time.Second
)

// Scheduler computes per-account retry eligibility. The retry counter and
// next-eligible instant live on the roster records themselves; the scheduler
// owns the policy around them.
type Scheduler struct {
	repo          *roster.Repository
	maxRetryCount int
	baseBackoff   time.Duration
	logger        *logging.Logger
	now           func() time.Time
}

// SchedulerConfig holds construction options for the scheduler.
type SchedulerConfig struct {
	// Repository is the roster holding the retry state. Required.
	Repository *roster.Repository
	// MaxRetryCount is the failure ceiling. Default: 3.
	MaxRetryCount int
	// BaseBackoff is the delay after the first failure. Default: 60s.
	BaseBackoff time.Duration
	// Logger for retry scheduling notices. Optional.
	Logger *logging.Logger
	// Now overrides the wall clock, for tests. Optional.
	Now func() time.Time
}

// NewScheduler creates a retry scheduler over the given roster.
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	if cfg == nil || cfg.Repository == nil {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	maxRetry := cfg.MaxRetryCount
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetryCount
	}
	base := cfg.BaseBackoff
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		repo:          cfg.Repository,
		maxRetryCount: maxRetry,
		baseBackoff:   base,
		logger:        logger.WithField("component", "backoff"),
		now:           now,
	}, nil
}

// IncrementRetryCount records one more consecutive failure for the account
// and schedules the next eligible retry instant exponentially further out.
// Returns the new counter value, or 0 when the id is unknown.
func (s *Scheduler) IncrementRetryCount(id int64) int {
	account := s.repo.ByID(id)
	if account == nil {
		return 0
	}

	count := account.RetryCount + 1
	delay := time.Duration(float64(s.baseBackoff) * math.Pow(2, float64(count-1)))
	nextRetryAt := s.now().Add(delay)
	s.repo.SetRetryState(id, count, nextRetryAt)

	s.logger.WithFields(map[string]interface{}{
		"id":          id,
		"name":        account.Name,
		"retryCount":  count,
		"nextRetryAt": nextRetryAt,
	}).Info("Validation failed, backoff advanced")

	return count
}

// ResetRetryCount clears the failure counter and scheduled retry instant.
// Called when a validation succeeds.
func (s *Scheduler) ResetRetryCount(id int64) {
	s.repo.SetRetryState(id, 0, time.Time{})
}

// ShouldRetry reports whether the account qualifies for an automatic retry:
// below the failure ceiling and past its scheduled backoff instant.
func (s *Scheduler) ShouldRetry(account *models.Account) bool {
	if account == nil {
		return false
	}
	if account.RetryCount >= s.maxRetryCount {
		return false
	}
	if !account.NextRetryAt.IsZero() && s.now().Before(account.NextRetryAt) {
		return false
	}
	return true
}

// AccountsForRetry returns the working set for the exception-retry sweep:
// every exception account currently eligible for another attempt.
func (s *Scheduler) AccountsForRetry() []*models.Account {
	var eligible []*models.Account
	for _, account := range s.repo.Accounts() {
		if account.Status == types.StatusException && s.ShouldRetry(account) {
			eligible = append(eligible, account)
		}
	}
	return eligible
}

// MaxRetryCount returns the configured failure ceiling.
func (s *Scheduler) MaxRetryCount() int {
	return s.maxRetryCount
}
