package models

import (
	"testing"

	"github.com/account-reconciler/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRow(t *testing.T) {
	flag := 1
	groupID := int64(4)
	row := types.Row{
		ID:       11,
		Type:     types.PlatformKuaishou,
		FilePath: "/creds/11.json",
		Name:     "alice",
		Flag:     &flag,
		GroupID:  &groupID,
	}

	account := FromRow(row)
	assert.Equal(t, int64(11), account.ID)
	assert.Equal(t, "kuaishou", account.Platform)
	assert.Equal(t, types.StatusNormal, account.Status)
	assert.Equal(t, DefaultAvatar, account.Avatar)
	require.NotNil(t, account.GroupID)
	assert.Equal(t, int64(4), *account.GroupID)
	assert.False(t, account.IsRefreshing)
	assert.Zero(t, account.RetryCount)
}

func TestAccountRow(t *testing.T) {
	tests := []struct {
		name     string
		status   types.AccountStatus
		wantFlag *int
	}{
		{"normal maps to flag 1", types.StatusNormal, intPtr(1)},
		{"exception maps to flag 0", types.StatusException, intPtr(0)},
		{"verifying has no flag", types.StatusVerifying, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := &Account{ID: 1, Status: tt.status}
			row := account.Row()
			if tt.wantFlag == nil {
				assert.Nil(t, row.Flag)
			} else {
				require.NotNil(t, row.Flag)
				assert.Equal(t, *tt.wantFlag, *row.Flag)
			}
		})
	}
}

func TestAccountClone(t *testing.T) {
	groupID := int64(7)
	original := &Account{ID: 1, Name: "alice", GroupID: &groupID}

	clone := original.Clone()
	clone.Name = "bob"
	*clone.GroupID = 8

	assert.Equal(t, "alice", original.Name)
	assert.Equal(t, int64(7), *original.GroupID)
}

func TestRefreshStatusProgress(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		completed int
		want      int
	}{
		{"zero total means zero progress", 0, 0, 0},
		{"half done", 10, 5, 50},
		{"rounds to nearest", 3, 1, 33},
		{"complete", 4, 4, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := RefreshStatus{TotalCount: tt.total, CompletedCount: tt.completed}
			assert.Equal(t, tt.want, status.Progress())
		})
	}
}

func intPtr(v int) *int { return &v }
