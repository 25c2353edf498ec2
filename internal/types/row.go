package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is a single account row as returned by the validation service.
//
// The service emits two encodings for the same logical record: a positional
// array [id, type, filePath, name, flag, groupId?] and an object
// {id, type, filePath, userName, statusText}. Both decode into this one
// canonical shape so that nothing past the ingest boundary has to care which
// encoding arrived.
type Row struct {
	ID         int64
	Type       PlatformType
	FilePath   string
	Name       string
	Flag       *int   // validation flag from array rows, nil when absent
	StatusText string // status text from object rows, empty when absent
	GroupID    *int64
}

// Status resolves the row's effective account status. Object rows carry a
// textual status, array rows carry the numeric validation flag; an
// unrecognized or missing value means the account still needs verification.
func (r Row) Status() AccountStatus {
	if r.StatusText != "" {
		status, _ := ParseAccountStatus(r.StatusText)
		return status
	}
	return StatusFromFlag(r.Flag)
}

// rowObject mirrors the object encoding of a row.
type rowObject struct {
	ID         int64  `json:"id"`
	Type       int    `json:"type"`
	FilePath   string `json:"filePath"`
	UserName   string `json:"userName"`
	StatusText string `json:"statusText"`
}

// UnmarshalJSON decodes either row encoding.
func (r *Row) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty row")
	}

	if trimmed[0] == '{' {
		var obj rowObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return fmt.Errorf("failed to decode object row: %w", err)
		}
		*r = Row{
			ID:         obj.ID,
			Type:       PlatformType(obj.Type),
			FilePath:   obj.FilePath,
			Name:       obj.UserName,
			StatusText: obj.StatusText,
		}
		return nil
	}

	var fields []json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return fmt.Errorf("failed to decode array row: %w", err)
	}
	if len(fields) < 4 {
		return fmt.Errorf("array row has %d fields, want at least 4", len(fields))
	}

	var row Row
	if err := json.Unmarshal(fields[0], &row.ID); err != nil {
		return fmt.Errorf("invalid row id: %w", err)
	}
	var platformCode int
	if err := json.Unmarshal(fields[1], &platformCode); err != nil {
		return fmt.Errorf("invalid platform code: %w", err)
	}
	row.Type = PlatformType(platformCode)
	if err := json.Unmarshal(fields[2], &row.FilePath); err != nil {
		return fmt.Errorf("invalid credential path: %w", err)
	}
	if err := json.Unmarshal(fields[3], &row.Name); err != nil {
		return fmt.Errorf("invalid account name: %w", err)
	}

	// The flag slot may hold a number, null, or free text. Anything that is
	// not a number counts as "unknown" and the status resolves to verifying.
	if len(fields) >= 5 {
		var flag int
		if err := json.Unmarshal(fields[4], &flag); err == nil {
			row.Flag = &flag
		}
	}
	if len(fields) >= 6 {
		var groupID int64
		if err := json.Unmarshal(fields[5], &groupID); err == nil {
			row.GroupID = &groupID
		}
	}

	*r = row
	return nil
}

// MarshalJSON re-encodes the row in the positional array form.
func (r Row) MarshalJSON() ([]byte, error) {
	fields := []interface{}{r.ID, int(r.Type), r.FilePath, r.Name, r.Flag}
	if r.GroupID != nil {
		fields = append(fields, *r.GroupID)
	}
	return json.Marshal(fields)
}
