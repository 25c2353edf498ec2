// Package roster implements the in-memory account repository: the reconciled
// set of publishing accounts plus the refresh bookkeeping around it.
//
// The repository is pure data: it performs no I/O and never initiates
// validation on its own. Staleness and retry timing live in the freshness and
// backoff packages.
package roster

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/account-reconciler/internal/logging"
	"github.com/account-reconciler/internal/models"
	"github.com/account-reconciler/internal/types"
)

// FetchMarker is notified whenever a mutation leaves the roster current.
// The freshness tracker satisfies it.
type FetchMarker interface {
	MarkFetched()
}

// Repository is the singleton in-memory account store. All methods are safe
// for concurrent use.
type Repository struct {
	mu       sync.RWMutex
	accounts []*models.Account
	status   models.RefreshStatus

	marker FetchMarker
	logger *logging.Logger
	now    func() time.Time
}

// RepositoryConfig holds construction options for the repository.
type RepositoryConfig struct {
	// FetchMarker receives MarkFetched on every roster mutation. Optional.
	FetchMarker FetchMarker
	// Logger for dedup warnings and invalid-input notices. Optional.
	Logger *logging.Logger
	// Now overrides the wall clock, for tests. Optional.
	Now func() time.Time
}

// NewRepository creates an empty account repository.
func NewRepository(cfg *RepositoryConfig) *Repository {
	if cfg == nil {
		cfg = &RepositoryConfig{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Repository{
		marker: cfg.FetchMarker,
		logger: logger.WithField("component", "roster"),
		now:    now,
	}
}

func (r *Repository) markFetched() {
	if r.marker != nil {
		r.marker.MarkFetched()
	}
}

func dedupKey(account *models.Account) string {
	return fmt.Sprintf("%s_%s", account.Name, account.Platform)
}

// SetAccounts replaces the roster with the normalized, deduplicated form of
// the given rows. This is replace-and-dedupe, not plain replacement: the
// surviving set may be smaller than the input.
//
// Dedup rule: among records sharing a (name, platform) key the best status
// wins (normal > exception > verifying); ties keep the highest id.
func (r *Repository) SetAccounts(rows []types.Row) {
	normalized := make([]*models.Account, 0, len(rows))
	for _, row := range rows {
		normalized = append(normalized, models.FromRow(row))
	}

	// Stable sort descending by (status priority, id), then a single
	// left-to-right pass keeps the first record per key.
	sort.SliceStable(normalized, func(i, j int) bool {
		pi, pj := normalized[i].Status.Priority(), normalized[j].Status.Priority()
		if pi != pj {
			return pi > pj
		}
		return normalized[i].ID > normalized[j].ID
	})

	seen := make(map[string]struct{}, len(normalized))
	unique := make([]*models.Account, 0, len(normalized))
	for _, account := range normalized {
		key := dedupKey(account)
		if _, dup := seen[key]; dup {
			r.logger.WithFields(map[string]interface{}{
				"name":     account.Name,
				"platform": account.Platform,
				"id":       account.ID,
			}).Warn("Duplicate account discarded, keeping the better-status record")
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, account)
	}

	r.mu.Lock()
	r.accounts = unique
	r.mu.Unlock()

	r.markFetched()
}

// AddAccount inserts a single account, or updates the existing record when
// the id is already present. Invalid input (nil or zero id) is ignored.
func (r *Repository) AddAccount(account *models.Account) {
	if account == nil || account.ID == 0 {
		r.logger.Warn("Ignoring invalid account data on add")
		return
	}

	record := account.Clone()
	if record.Platform == "" {
		record.Platform = record.Type.DisplayName()
	}
	if record.Avatar == "" {
		record.Avatar = models.DefaultAvatar
	}
	record.IsRefreshing = false

	r.mu.Lock()
	if idx := r.indexOf(record.ID); idx >= 0 {
		r.logger.WithField("id", record.ID).Warn("Account already exists, updating in place")
		r.accounts[idx] = record
	} else {
		r.accounts = append(r.accounts, record)
	}
	r.mu.Unlock()

	r.markFetched()
}

// AccountPatch is a sparse update applied by UpdateAccount; nil fields are
// left untouched.
type AccountPatch struct {
	Name         *string
	FilePath     *string
	Status       *types.AccountStatus
	IsRefreshing *bool
	GroupID      *int64
	Avatar       *string
}

// UpdateAccount merges a sparse patch into the record with the given id.
// A lookup miss is a no-op, not an error.
func (r *Repository) UpdateAccount(id int64, patch AccountPatch) {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	account := r.accounts[idx]
	if patch.Name != nil {
		account.Name = *patch.Name
	}
	if patch.FilePath != nil {
		account.FilePath = *patch.FilePath
	}
	if patch.Status != nil {
		account.Status = *patch.Status
	}
	if patch.IsRefreshing != nil {
		account.IsRefreshing = *patch.IsRefreshing
	}
	if patch.GroupID != nil {
		groupID := *patch.GroupID
		account.GroupID = &groupID
	}
	if patch.Avatar != nil {
		account.Avatar = *patch.Avatar
	}
	r.mu.Unlock()

	r.markFetched()
}

// UpdateAccountStatus sets the status and refreshing flag of one account and
// maintains the refresh progress counters. It returns a transition
// descriptor only when the status actually changed and the record is not
// entering the refreshing state; otherwise nil. A lookup miss is a no-op.
func (r *Repository) UpdateAccountStatus(id int64, status types.AccountStatus, isRefreshing bool) *models.StatusTransition {
	r.mu.Lock()
	idx := r.indexOf(id)
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}
	account := r.accounts[idx]
	oldStatus := account.Status
	account.Status = status
	account.IsRefreshing = isRefreshing

	if isRefreshing && !containsID(r.status.RefreshingIDs, id) {
		r.status.RefreshingIDs = append(r.status.RefreshingIDs, id)
		r.status.TotalCount++
	} else if !isRefreshing && containsID(r.status.RefreshingIDs, id) {
		r.status.RefreshingIDs = removeID(r.status.RefreshingIDs, id)
		r.status.CompletedCount++
	}

	var transition *models.StatusTransition
	if oldStatus != status && !isRefreshing {
		transition = &models.StatusTransition{
			ID:        id,
			OldStatus: oldStatus,
			NewStatus: status,
			Account:   account.Clone(),
		}
	}
	r.mu.Unlock()

	r.markFetched()
	return transition
}

// Delete removes the account with the given id and purges it from the
// refresh bookkeeping. A missing id is a no-op.
func (r *Repository) Delete(id int64) {
	r.mu.Lock()
	if idx := r.indexOf(id); idx >= 0 {
		r.accounts = append(r.accounts[:idx], r.accounts[idx+1:]...)
	}
	if containsID(r.status.RefreshingIDs, id) {
		r.status.RefreshingIDs = removeID(r.status.RefreshingIDs, id)
		r.status.TotalCount--
	}
	r.mu.Unlock()

	r.markFetched()
}

// ByID returns a copy of the account with the given id, or nil on a miss.
func (r *Repository) ByID(id int64) *models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := r.indexOf(id); idx >= 0 {
		return r.accounts[idx].Clone()
	}
	return nil
}

// ByPlatform returns copies of all accounts on the given platform display
// name.
func (r *Repository) ByPlatform(platform string) []*models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []*models.Account
	for _, account := range r.accounts {
		if account.Platform == platform {
			matched = append(matched, account.Clone())
		}
	}
	return matched
}

// Accounts returns a snapshot copy of the whole roster.
func (r *Repository) Accounts() []*models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make([]*models.Account, len(r.accounts))
	for i, account := range r.accounts {
		snapshot[i] = account.Clone()
	}
	return snapshot
}

// Len returns the number of accounts in the roster.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

// SetRetryState stores the retry counter and next-eligible instant for one
// account. Used by the backoff scheduler; reports whether the id was found.
func (r *Repository) SetRetryState(id int64, count int, nextRetryAt time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOf(id)
	if idx < 0 {
		return false
	}
	r.accounts[idx].RetryCount = count
	r.accounts[idx].NextRetryAt = nextRetryAt
	return true
}

// indexOf must be called with the lock held.
func (r *Repository) indexOf(id int64) int {
	for i, account := range r.accounts {
		if account.ID == id {
			return i
		}
	}
	return -1
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func removeID(ids []int64, id int64) []int64 {
	filtered := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			filtered = append(filtered, candidate)
		}
	}
	return filtered
}
