package api

import (
	"github.com/ssargent/sysconf/pkg/store"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
	// SnapshotKeep is the number of snapshots retained after each write.
	// Zero keeps all of them.
	SnapshotKeep int
}

// EntryView is the JSON form of a SYSCONF entry
type EntryView struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Value  string `json:"value"`
}

// SetEntryRequest is the body of PUT /entries/{name}. Kind defaults to the
// natural kind of the entry's class.
type SetEntryRequest struct {
	Kind  string `json:"kind,omitempty"`
	Value string `json:"value"`
}

// SetEntryResponse reports a replaced entry
type SetEntryResponse struct {
	Entry      EntryView `json:"entry"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
}

// CheckResponse reports the result of a structural check
type CheckResponse struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

func newEntryView(e store.Entry) EntryView {
	return EntryView{
		Name:   e.Name,
		Type:   e.Type,
		Offset: e.Offset,
		Length: len(e.Value),
		Value:  store.FormatValue(e),
	}
}
