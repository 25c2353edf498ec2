package models

import (
	"time"

	"github.com/account-reconciler/internal/types"
)

// RefreshStatus reports the progress of the current refresh/validation pass.
// It is owned by the roster; callers read snapshots and never mutate it.
type RefreshStatus struct {
	IsRefreshing    bool      `json:"isRefreshing"`
	RefreshingIDs   []int64   `json:"refreshingIds"`
	TotalCount      int       `json:"totalCount"`
	CompletedCount  int       `json:"completedCount"`
	LastRefreshTime time.Time `json:"lastRefreshTime"`
}

// Progress returns the completion percentage of the current pass, rounded to
// the nearest whole percent. Zero total means zero progress.
func (s *RefreshStatus) Progress() int {
	if s.TotalCount == 0 {
		return 0
	}
	return int(float64(s.CompletedCount)/float64(s.TotalCount)*100 + 0.5)
}

// StatusTransition describes a terminal status change on one account. The
// roster returns it from a status update only when the status actually
// changed and the record is not entering the refreshing state, which is the
// signal presentation layers use to react to e.g. verifying -> exception.
type StatusTransition struct {
	ID        int64               `json:"id"`
	OldStatus types.AccountStatus `json:"oldStatus"`
	NewStatus types.AccountStatus `json:"newStatus"`
	Account   *Account            `json:"account"`
}
