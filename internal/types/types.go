// Package types provides common type definitions for the account reconciler.
package types

// AccountStatus represents the validation state of a publishing account.
type AccountStatus string

const (
	// StatusVerifying represents an account whose validity is not yet known
	StatusVerifying AccountStatus = "verifying"
	// StatusNormal represents an account that passed its last validation
	StatusNormal AccountStatus = "normal"
	// StatusException represents an account that failed its last validation
	StatusException AccountStatus = "exception"
)

// Priority returns the dedup priority of a status. Higher wins when two
// records collide on the same (name, platform) key.
func (s AccountStatus) Priority() int {
	switch s {
	case StatusNormal:
		return 3
	case StatusException:
		return 2
	case StatusVerifying:
		return 1
	default:
		return 0
	}
}

// ParseAccountStatus parses a status text into an AccountStatus.
// Unrecognized text yields (StatusVerifying, false).
func ParseAccountStatus(text string) (AccountStatus, bool) {
	switch AccountStatus(text) {
	case StatusVerifying, StatusNormal, StatusException:
		return AccountStatus(text), true
	default:
		return StatusVerifying, false
	}
}

// StatusFromFlag maps the remote validation flag to a status.
// 1 means valid, 0 means invalid, anything else (including absent) is unknown.
func StatusFromFlag(flag *int) AccountStatus {
	if flag == nil {
		return StatusVerifying
	}
	switch *flag {
	case 1:
		return StatusNormal
	case 0:
		return StatusException
	default:
		return StatusVerifying
	}
}

// PlatformType represents a supported publishing platform.
// The remote service encodes platforms as small integer codes.
type PlatformType int

const (
	// PlatformXiaohongshu is the Xiaohongshu (RED) platform
	PlatformXiaohongshu PlatformType = 1
	// PlatformWeChatChannels is the WeChat Channels platform
	PlatformWeChatChannels PlatformType = 2
	// PlatformDouyin is the Douyin platform
	PlatformDouyin PlatformType = 3
	// PlatformKuaishou is the Kuaishou platform
	PlatformKuaishou PlatformType = 4
	// PlatformBilibili is the Bilibili platform
	PlatformBilibili PlatformType = 5
)

// PlatformUnknownName is the display name used for unrecognized platform codes.
const PlatformUnknownName = "unknown"

var platformNames = map[PlatformType]string{
	PlatformXiaohongshu:    "xiaohongshu",
	PlatformWeChatChannels: "wechat-channels",
	PlatformDouyin:         "douyin",
	PlatformKuaishou:       "kuaishou",
	PlatformBilibili:       "bilibili",
}

// DisplayName returns the human-readable platform name, or the unknown
// sentinel for codes outside the supported set.
func (p PlatformType) DisplayName() string {
	if name, ok := platformNames[p]; ok {
		return name
	}
	return PlatformUnknownName
}

// AllPlatforms returns the closed set of supported platform codes.
func AllPlatforms() []PlatformType {
	return []PlatformType{
		PlatformXiaohongshu,
		PlatformWeChatChannels,
		PlatformDouyin,
		PlatformKuaishou,
		PlatformBilibili,
	}
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
