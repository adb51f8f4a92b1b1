package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/biter777/countries"

	"triplebillion/internal/region"
	"triplebillion/pkg/models"
)

// Logical columns and the header names accepted for each, lower-cased.
var requiredColumns = []struct {
	name    string
	aliases []string
}{
	{"category", []string{"triple_billion", "category"}},
	{"tracer", []string{"triple_billion_tracer", "tracer"}},
	{"geography", []string{"geo_name_short", "geography", "who_region"}},
	{"time", []string{"dim_time", "time", "year"}},
	{"count", []string{"count_n", "count"}},
}

// OptionalColumns are dropped when present. Their absence is never an error.
var OptionalColumns = []string{
	"RATE_PER_100_NL", "RATE_PER_100_NU", "RATE_PER_100_N",
	"IND_PER_CODE", "IND_UUID", "IND_ID", "IND_NAME", "IND_CODE",
}

// Load reads src and normalizes it without consulting any cache.
func Load(src Source) (*Table, error) {
	data, err := readAll(src)
	if err != nil {
		return nil, err
	}
	return Parse(src.Name(), data)
}

// Parse normalizes CSV bytes into a Table keyed by their content hash.
func Parse(source string, data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, malformed(source, "empty file: no header row")
		}
		return nil, malformed(source, "read header: %v", err)
	}
	dropOptional(header)

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, &DataError{Kind: ErrMalformed, Source: source, Err: err}
	}

	t := &Table{
		key:      ContentKey(data),
		source:   source,
		loadedAt: time.Now(),
	}
	unmapped := make(map[string]int)

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed(source, "read row: %v", err)
		}
		line, _ := r.FieldPos(0)

		year, err := parseYear(valueAt(cols, row, "time"))
		if err != nil {
			return nil, malformed(source, "line %d: column time: %v", line, err)
		}

		raw := valueAt(cols, row, "count")
		var count float64
		if raw == "" {
			t.blankCounts++
		} else if count, err = parseCount(raw); err != nil {
			return nil, malformed(source, "line %d: column count: %v", line, err)
		}

		geo := valueAt(cols, row, "geography")
		reg := region.Classify(geo)
		if reg == region.Other {
			unmapped[geo]++
		}

		t.rows = append(t.rows, models.Indicator{
			Category: valueAt(cols, row, "category"),
			Tracer:   valueAt(cols, row, "tracer"),
			Region:   reg,
			Year:     year,
			Count:    count,
		})
	}

	t.unmapped = unmappedReport(unmapped)
	return t, nil
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		if idx == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func dropOptional(header map[string]int) {
	for _, name := range OptionalColumns {
		delete(header, strings.ToLower(name))
	}
}

// resolveColumns maps each logical column to its index, listing every missing one.
func resolveColumns(header map[string]int) (map[string]int, error) {
	cols := make(map[string]int, len(requiredColumns))
	var missing []string
	for _, rc := range requiredColumns {
		found := false
		for _, alias := range rc.aliases {
			if idx, ok := header[alias]; ok {
				cols[rc.name] = idx
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, fmt.Sprintf("%s (%s)", rc.name, strings.Join(rc.aliases, "|")))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func valueAt(cols map[string]int, row []string, key string) string {
	idx, ok := cols[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseYear accepts "2019" and integral floats like "2019.0".
func parseYear(raw string) (int, error) {
	if raw == "" {
		return 0, errors.New("empty year")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid year %q", raw)
	}
	return int(f), nil
}

func parseCount(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid count %q", raw)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative count %q", raw)
	}
	return f, nil
}

func unmappedReport(counts map[string]int) []models.UnmappedGeography {
	if len(counts) == 0 {
		return nil
	}
	out := make([]models.UnmappedGeography, 0, len(counts))
	for name, n := range counts {
		u := models.UnmappedGeography{Name: name, Rows: n}
		if name != "" {
			if c := countries.ByName(name); c != countries.Unknown {
				u.Alpha3 = c.Alpha3()
			}
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rows != out[j].Rows {
			return out[i].Rows > out[j].Rows
		}
		return out[i].Name < out[j].Name
	})
	return out
}
