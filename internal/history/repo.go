// Package history keeps the audit ledger of dataset loads and exports.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"triplebillion/internal/dataset"
	"triplebillion/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// RecordLoad stores one derived table.
func (r *Repo) RecordLoad(ctx context.Context, t *dataset.Table) (models.DatasetLoad, error) {
	load := models.DatasetLoad{
		ID:           uuid.NewString(),
		ContentKey:   t.Key(),
		Source:       t.Source(),
		Rows:         t.Len(),
		UnmappedRows: t.UnmappedRows(),
		LoadedAt:     time.Now().UTC(),
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO dataset_loads (id, content_key, source, rows, unmapped_rows, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, load.ID, load.ContentKey, load.Source, load.Rows, load.UnmappedRows, load.LoadedAt)
	if err != nil {
		return models.DatasetLoad{}, fmt.Errorf("insert dataset load: %w", err)
	}
	return load, nil
}

// LatestLoadID returns the newest load of contentKey, or "" when none is recorded.
func (r *Repo) LatestLoadID(ctx context.Context, contentKey string) (string, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `
		SELECT id FROM dataset_loads
		WHERE content_key = ?
		ORDER BY loaded_at DESC
		LIMIT 1
	`, contentKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest dataset load: %w", err)
	}
	return id, nil
}

// RecordExport stores one export. selection is stored as JSON.
func (r *Repo) RecordExport(ctx context.Context, loadID, filename, format string, rows int, selection any) (models.ExportRecord, error) {
	sel, err := json.Marshal(selection)
	if err != nil {
		return models.ExportRecord{}, fmt.Errorf("encode selection: %w", err)
	}

	rec := models.ExportRecord{
		ID:        uuid.NewString(),
		LoadID:    loadID,
		Filename:  filename,
		Format:    format,
		Rows:      rows,
		Selection: sel,
		CreatedAt: time.Now().UTC(),
	}

	var load any
	if loadID != "" {
		load = loadID
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO exports (id, load_id, filename, format, rows, selection, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, load, rec.Filename, rec.Format, rec.Rows, string(sel), rec.CreatedAt)
	if err != nil {
		return models.ExportRecord{}, fmt.Errorf("insert export: %w", err)
	}
	return rec, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListLoads returns loads newest first, plus the total count.
func (r *Repo) ListLoads(ctx context.Context, limit, offset int) ([]models.DatasetLoad, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM dataset_loads`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dataset loads: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, content_key, source, rows, unmapped_rows, loaded_at
		FROM dataset_loads
		ORDER BY loaded_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list dataset loads: %w", err)
	}
	defer rows.Close()

	out := make([]models.DatasetLoad, 0, limit)
	for rows.Next() {
		var l models.DatasetLoad
		if err := rows.Scan(&l.ID, &l.ContentKey, &l.Source, &l.Rows, &l.UnmappedRows, &l.LoadedAt); err != nil {
			return nil, 0, fmt.Errorf("scan dataset load: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows dataset loads: %w", err)
	}
	return out, total, nil
}

// ListExports returns exports newest first, plus the total count.
func (r *Repo) ListExports(ctx context.Context, limit, offset int) ([]models.ExportRecord, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM exports`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count exports: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, load_id, filename, format, rows, selection, created_at
		FROM exports
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	out := make([]models.ExportRecord, 0, limit)
	for rows.Next() {
		var (
			e      models.ExportRecord
			loadID sql.NullString
			sel    string
		)
		if err := rows.Scan(&e.ID, &loadID, &e.Filename, &e.Format, &e.Rows, &sel, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan export: %w", err)
		}
		e.LoadID = loadID.String
		e.Selection = json.RawMessage(sel)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows exports: %w", err)
	}
	return out, total, nil
}
