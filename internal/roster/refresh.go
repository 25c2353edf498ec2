package roster

import (
	"github.com/account-reconciler/internal/models"
	"github.com/account-reconciler/internal/types"
)

// StartRefresh marks the beginning of a refresh pass and resets the progress
// counters.
func (r *Repository) StartRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.IsRefreshing = true
	r.status.RefreshingIDs = nil
	r.status.TotalCount = 0
	r.status.CompletedCount = 0
	r.status.LastRefreshTime = r.now()
}

// EndRefresh marks the end of a refresh pass. The roster is considered
// current afterwards regardless of per-account outcomes.
func (r *Repository) EndRefresh() {
	r.mu.Lock()
	r.status.IsRefreshing = false
	r.status.LastRefreshTime = r.now()
	r.mu.Unlock()

	r.markFetched()
}

// ResetRefreshStatus clears the refresh bookkeeping without touching the
// accounts themselves.
func (r *Repository) ResetRefreshStatus() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.IsRefreshing = false
	r.status.RefreshingIDs = nil
	r.status.TotalCount = 0
	r.status.CompletedCount = 0
}

// SetAllRefreshing flips the refreshing flag on every account. Turning it on
// also forces every status to verifying and rebuilds the progress counters,
// so the UI shows a verifying roster the instant a force refresh begins.
// Turning it off leaves statuses alone: the authoritative status only lands
// with the remote response via a later update call.
func (r *Repository) SetAllRefreshing(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.IsRefreshing = on

	for _, account := range r.accounts {
		account.IsRefreshing = on
		if on {
			account.Status = types.StatusVerifying
		}
	}

	if on {
		r.status.TotalCount = len(r.accounts)
		r.status.CompletedCount = 0
		ids := make([]int64, len(r.accounts))
		for i, account := range r.accounts {
			ids[i] = account.ID
		}
		r.status.RefreshingIDs = ids
	}
}

// RefreshStatus returns a snapshot of the refresh progress.
func (r *Repository) RefreshStatus() models.RefreshStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := r.status
	snapshot.RefreshingIDs = append([]int64(nil), r.status.RefreshingIDs...)
	return snapshot
}
