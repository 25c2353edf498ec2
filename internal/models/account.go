// Package models defines the data structures owned by the account roster.
package models

import (
	"time"

	"github.com/account-reconciler/internal/types"
)

// DefaultAvatar is the placeholder avatar assigned to every ingested account.
const DefaultAvatar = "/static/avatar-default.svg"

// Account represents a reconciled publishing account record.
type Account struct {
	ID       int64               `json:"id"`
	Type     types.PlatformType  `json:"type"`
	Platform string              `json:"platform"` // display name derived from Type
	Name     string              `json:"name"`
	FilePath string              `json:"filePath"` // opaque credential reference
	Status   types.AccountStatus `json:"status"`
	GroupID  *int64              `json:"groupId,omitempty"`
	Avatar   string              `json:"avatar"`

	// IsRefreshing is true while a validation request for this account is
	// outstanding.
	IsRefreshing bool `json:"isRefreshing"`

	// RetryCount is the number of consecutive validation failures since the
	// last success. NextRetryAt is the earliest instant an automatic retry
	// may run; the zero time means no backoff is scheduled.
	RetryCount  int       `json:"retryCount"`
	NextRetryAt time.Time `json:"nextRetryAt"`
}

// FromRow normalizes a remote row into an account record.
func FromRow(row types.Row) *Account {
	return &Account{
		ID:       row.ID,
		Type:     row.Type,
		Platform: row.Type.DisplayName(),
		Name:     row.Name,
		FilePath: row.FilePath,
		Status:   row.Status(),
		GroupID:  row.GroupID,
		Avatar:   DefaultAvatar,
	}
}

// Row re-encodes the account as a remote row, mapping the status back onto
// the numeric validation flag (verifying has no flag).
func (a *Account) Row() types.Row {
	var flag *int
	switch a.Status {
	case types.StatusNormal:
		v := 1
		flag = &v
	case types.StatusException:
		v := 0
		flag = &v
	}
	return types.Row{
		ID:       a.ID,
		Type:     a.Type,
		FilePath: a.FilePath,
		Name:     a.Name,
		Flag:     flag,
		GroupID:  a.GroupID,
	}
}

// Clone returns a copy of the account so callers can hand records across
// goroutine boundaries without aliasing roster-owned memory.
func (a *Account) Clone() *Account {
	clone := *a
	if a.GroupID != nil {
		groupID := *a.GroupID
		clone.GroupID = &groupID
	}
	return &clone
}
