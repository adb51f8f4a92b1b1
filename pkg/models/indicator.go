package models

// Indicator is one normalized row of the Triple Billion table.
type Indicator struct {
	Category string  `json:"category"`
	Tracer   string  `json:"tracer"`
	Region   string  `json:"region"`
	Year     int     `json:"year"`
	Count    float64 `json:"count"`
}

// CountMillions is Count scaled to millions. It is always derived, never stored.
func (i Indicator) CountMillions() float64 {
	return i.Count / 1_000_000
}

// IndicatorRow is the wire form of an Indicator, with the derived column filled in.
type IndicatorRow struct {
	Indicator
	CountMillions float64 `json:"count_millions"`
}

func (i Indicator) Row() IndicatorRow {
	return IndicatorRow{Indicator: i, CountMillions: i.CountMillions()}
}

// UnmappedGeography reports a geography name that classified as Other.
type UnmappedGeography struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
	// Alpha3 is set when the name is recognisable as a country missing from the region table.
	Alpha3 string `json:"alpha3,omitempty"`
}
