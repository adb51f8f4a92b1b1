// Package export writes a filtered view to CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"triplebillion/internal/engine"
)

// Prefix is the default export file name prefix.
const Prefix = "who_triple_billion_filtered"

// SheetName is the worksheet holding exported rows.
const SheetName = "filtered"

// Header lists the exported columns.
var Header = []string{"TRIPLE_BILLION", "TRIPLE_BILLION_TRACER", "WHO_Region", "Year", "COUNT_N", "COUNT_N_Millions"}

// Format is an export file type.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case CSV, XLSX:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filename renders <prefix>_<YYYYMMDD>_<HHMMSS>.<ext> from the local time now.
func Filename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), ext)
}

// Write dispatches on f.
func Write(w io.Writer, f Format, v engine.View) error {
	switch f {
	case CSV:
		return WriteCSV(w, v)
	case XLSX:
		return WriteXLSX(w, v)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// WriteCSV writes the header and every row of v.
func WriteCSV(w io.Writer, v engine.View) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		r := v.At(i)
		if err := cw.Write([]string{
			r.Category,
			r.Tracer,
			r.Region,
			strconv.Itoa(r.Year),
			formatFloat(r.Count),
			formatFloat(r.CountMillions()),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes the same columns as WriteCSV into one worksheet.
func WriteXLSX(w io.Writer, v engine.View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}

	head := make([]interface{}, len(Header))
	for i, h := range Header {
		head[i] = h
	}
	if err := sw.SetRow("A1", head); err != nil {
		return err
	}

	for i := 0; i < v.Len(); i++ {
		r := v.At(i)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, []interface{}{
			r.Category, r.Tracer, r.Region, r.Year, r.Count, r.CountMillions(),
		}); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
