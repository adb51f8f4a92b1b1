package engine

import (
	"triplebillion/internal/dataset"
	"triplebillion/pkg/models"
)

// View is a filtered subset of a Table: an index list into the parent rows.
// The parent is never copied or mutated.
type View struct {
	table   *dataset.Table
	indices []int
}

// All returns a view over every row of t.
func All(t *dataset.Table) View {
	idx := make([]int, t.Len())
	for i := range idx {
		idx[i] = i
	}
	return View{table: t, indices: idx}
}

func (v View) Len() int { return len(v.indices) }

// At returns the i-th row of the view.
func (v View) At(i int) models.Indicator { return v.table.At(v.indices[i]) }

// Rows copies the view's rows out.
func (v View) Rows() []models.Indicator {
	out := make([]models.Indicator, len(v.indices))
	for i, idx := range v.indices {
		out[i] = v.table.At(idx)
	}
	return out
}

// Page returns at most limit rows starting at offset.
func (v View) Page(offset, limit int) []models.IndicatorRow {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(v.indices) || limit <= 0 {
		return []models.IndicatorRow{}
	}
	end := offset + limit
	if end > len(v.indices) {
		end = len(v.indices)
	}
	out := make([]models.IndicatorRow, 0, end-offset)
	for _, idx := range v.indices[offset:end] {
		out = append(out, v.table.At(idx).Row())
	}
	return out
}

// SumMillions totals CountMillions across the view.
func (v View) SumMillions() float64 {
	var total float64
	for _, idx := range v.indices {
		total += v.table.At(idx).CountMillions()
	}
	return total
}
