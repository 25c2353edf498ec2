package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowUnmarshalJSON(t *testing.T) {
	t.Run("decodes array row with flag", func(t *testing.T) {
		var row Row
		err := json.Unmarshal([]byte(`[12, 3, "/creds/12.json", "alice", 1]`), &row)
		require.NoError(t, err)

		assert.Equal(t, int64(12), row.ID)
		assert.Equal(t, PlatformDouyin, row.Type)
		assert.Equal(t, "/creds/12.json", row.FilePath)
		assert.Equal(t, "alice", row.Name)
		require.NotNil(t, row.Flag)
		assert.Equal(t, 1, *row.Flag)
		assert.Nil(t, row.GroupID)
		assert.Empty(t, row.StatusText)
	})

	t.Run("decodes array row with group id", func(t *testing.T) {
		var row Row
		err := json.Unmarshal([]byte(`[7, 1, "/creds/7.json", "bob", 0, 42]`), &row)
		require.NoError(t, err)

		require.NotNil(t, row.GroupID)
		assert.Equal(t, int64(42), *row.GroupID)
	})

	t.Run("decodes array row with null flag", func(t *testing.T) {
		var row Row
		err := json.Unmarshal([]byte(`[3, 2, "/creds/3.json", "carol", null]`), &row)
		require.NoError(t, err)

		assert.Nil(t, row.Flag)
		assert.Equal(t, StatusVerifying, row.Status())
	})

	t.Run("tolerates free text in the flag slot", func(t *testing.T) {
		var row Row
		err := json.Unmarshal([]byte(`[3, 2, "/creds/3.json", "carol", "pending"]`), &row)
		require.NoError(t, err)

		assert.Nil(t, row.Flag)
		assert.Equal(t, StatusVerifying, row.Status())
	})

	t.Run("decodes four-field array row", func(t *testing.T) {
		var row Row
		err := json.Unmarshal([]byte(`[5, 4, "/creds/5.json", "dave"]`), &row)
		require.NoError(t, err)

		assert.Equal(t, int64(5), row.ID)
		assert.Nil(t, row.Flag)
	})

	t.Run("rejects short array row", func(t *testing.T) {
		var row Row
		err := json.Unmarshal([]byte(`[5, 4, "/creds/5.json"]`), &row)
		assert.Error(t, err)
	})

	t.Run("decodes object row", func(t *testing.T) {
		var row Row
		err := json.Unmarshal([]byte(`{"id": 8, "type": 5, "filePath": "/creds/8.json", "userName": "erin", "statusText": "normal"}`), &row)
		require.NoError(t, err)

		assert.Equal(t, int64(8), row.ID)
		assert.Equal(t, PlatformBilibili, row.Type)
		assert.Equal(t, "erin", row.Name)
		assert.Equal(t, "normal", row.StatusText)
		assert.Nil(t, row.Flag)
	})

	t.Run("both encodings of one record resolve identically", func(t *testing.T) {
		var fromArray, fromObject Row
		require.NoError(t, json.Unmarshal([]byte(`[9, 1, "/creds/9.json", "frank", 0]`), &fromArray))
		require.NoError(t, json.Unmarshal([]byte(`{"id": 9, "type": 1, "filePath": "/creds/9.json", "userName": "frank", "statusText": "exception"}`), &fromObject))

		assert.Equal(t, fromArray.ID, fromObject.ID)
		assert.Equal(t, fromArray.Type, fromObject.Type)
		assert.Equal(t, fromArray.Name, fromObject.Name)
		assert.Equal(t, fromArray.Status(), fromObject.Status())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		var row Row
		assert.Error(t, row.UnmarshalJSON([]byte("  ")))
	})
}

func TestRowMarshalJSON(t *testing.T) {
	t.Run("round-trips through the array form", func(t *testing.T) {
		flag := 1
		groupID := int64(3)
		original := Row{
			ID:       12,
			Type:     PlatformDouyin,
			FilePath: "/creds/12.json",
			Name:     "alice",
			Flag:     &flag,
			GroupID:  &groupID,
		}

		data, err := json.Marshal(original)
		require.NoError(t, err)

		var decoded Row
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, original, decoded)
	})
}

func TestRowStatus(t *testing.T) {
	flagOf := func(v int) *int { return &v }

	tests := []struct {
		name string
		row  Row
		want AccountStatus
	}{
		{"status text wins over flag", Row{StatusText: "exception", Flag: flagOf(1)}, StatusException},
		{"unknown status text means verifying", Row{StatusText: "中文状态"}, StatusVerifying},
		{"flag one is normal", Row{Flag: flagOf(1)}, StatusNormal},
		{"flag zero is exception", Row{Flag: flagOf(0)}, StatusException},
		{"unexpected flag is verifying", Row{Flag: flagOf(7)}, StatusVerifying},
		{"missing flag is verifying", Row{}, StatusVerifying},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.row.Status())
		})
	}
}

func TestAccountStatusPriority(t *testing.T) {
	assert.Greater(t, StatusNormal.Priority(), StatusException.Priority())
	assert.Greater(t, StatusException.Priority(), StatusVerifying.Priority())
	assert.Greater(t, StatusVerifying.Priority(), AccountStatus("garbage").Priority())
}

func TestParseAccountStatus(t *testing.T) {
	status, ok := ParseAccountStatus("normal")
	assert.True(t, ok)
	assert.Equal(t, StatusNormal, status)

	status, ok = ParseAccountStatus("unheard-of")
	assert.False(t, ok)
	assert.Equal(t, StatusVerifying, status)
}

func TestPlatformTypeDisplayName(t *testing.T) {
	assert.Equal(t, "xiaohongshu", PlatformXiaohongshu.DisplayName())
	assert.Equal(t, "wechat-channels", PlatformWeChatChannels.DisplayName())
	assert.Equal(t, "douyin", PlatformDouyin.DisplayName())
	assert.Equal(t, "kuaishou", PlatformKuaishou.DisplayName())
	assert.Equal(t, "bilibili", PlatformBilibili.DisplayName())
	assert.Equal(t, PlatformUnknownName, PlatformType(99).DisplayName())
	assert.Equal(t, PlatformUnknownName, PlatformType(0).DisplayName())
}

func TestAllPlatforms(t *testing.T) {
	platforms := AllPlatforms()
	assert.Len(t, platforms, 5)
	seen := make(map[PlatformType]bool)
	for _, p := range platforms {
		assert.False(t, seen[p], "platform %d listed twice", p)
		seen[p] = true
		assert.NotEqual(t, PlatformUnknownName, p.DisplayName())
	}
}
