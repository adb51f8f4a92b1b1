package models

import (
	"encoding/json"
	"time"
)

// DatasetLoad is one derivation of the normalized table, keyed by content hash.
type DatasetLoad struct {
	ID           string    `json:"id"`
	ContentKey   string    `json:"content_key"`
	Source       string    `json:"source"`
	Rows         int       `json:"rows"`
	UnmappedRows int       `json:"unmapped_rows"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// ExportRecord is one file handed out by an export endpoint or tool.
type ExportRecord struct {
	ID        string          `json:"id"`
	LoadID    string          `json:"load_id,omitempty"`
	Filename  string          `json:"filename"`
	Format    string          `json:"format"`
	Rows      int             `json:"rows"`
	Selection json.RawMessage `json:"selection"`
	CreatedAt time.Time       `json:"created_at"`
}
