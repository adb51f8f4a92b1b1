package dataset

import (
	"encoding/json"
	"fmt"
	"time"

	"triplebillion/internal/region"
	"triplebillion/pkg/models"
)

// Table is the normalized, read-only indicator table. Nothing mutates it after
// construction, so one instance can be shared by every request.
type Table struct {
	key         string
	source      string
	loadedAt    time.Time
	rows        []models.Indicator
	unmapped    []models.UnmappedGeography
	blankCounts int
}

// FromRows builds a table from already-normalized rows. Every region must be one
// of region.All().
func FromRows(source string, rows []models.Indicator) (*Table, error) {
	for i, r := range rows {
		if !region.IsKnown(r.Region) {
			return nil, fmt.Errorf("row %d: unknown region %q", i, r.Region)
		}
	}
	cp := make([]models.Indicator, len(rows))
	copy(cp, rows)
	return &Table{source: source, loadedAt: time.Now(), rows: cp}, nil
}

func (t *Table) Key() string { return t.key }
func (t *Table) Source() string { return t.source }
func (t *Table) LoadedAt() time.Time { return t.loadedAt }
func (t *Table) Len() int { return len(t.rows) }
func (t *Table) BlankCounts() int { return t.blankCounts }

// At returns row i by value.
func (t *Table) At(i int) models.Indicator { return t.rows[i] }

// Rows returns a copy of every row.
func (t *Table) Rows() []models.Indicator {
	out := make([]models.Indicator, len(t.rows))
	copy(out, t.rows)
	return out
}

// Unmapped lists geography names that classified as Other, most frequent first.
func (t *Table) Unmapped() []models.UnmappedGeography {
	out := make([]models.UnmappedGeography, len(t.unmapped))
	copy(out, t.unmapped)
	return out
}

// UnmappedRows is the number of rows whose geography fell through to Other.
func (t *Table) UnmappedRows() int {
	n := 0
	for _, u := range t.unmapped {
		n += u.Rows
	}
	return n
}

type tableWire struct {
	Key         string                     `json:"key"`
	Source      string                     `json:"source"`
	LoadedAt    time.Time                  `json:"loaded_at"`
	Rows        []models.Indicator         `json:"rows"`
	Unmapped    []models.UnmappedGeography `json:"unmapped,omitempty"`
	BlankCounts int                        `json:"blank_counts,omitempty"`
}

// EncodeTable serializes a table for the remote cache tier.
func EncodeTable(t *Table) ([]byte, error) {
	return json.Marshal(tableWire{
		Key:         t.key,
		Source:      t.source,
		LoadedAt:    t.loadedAt,
		Rows:        t.rows,
		Unmapped:    t.unmapped,
		BlankCounts: t.blankCounts,
	})
}

// DecodeTable is the inverse of EncodeTable; it re-checks the region invariant.
func DecodeTable(b []byte) (*Table, error) {
	var w tableWire
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	t, err := FromRows(w.Source, w.Rows)
	if err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	t.key = w.Key
	t.loadedAt = w.LoadedAt
	t.unmapped = w.Unmapped
	t.blankCounts = w.BlankCounts
	return t, nil
}
