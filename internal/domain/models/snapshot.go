package models

import "time"

// Snapshot is the fixed-shape market-context record built fresh on every
// tick. It doubles as the query key against the historical corpus.
type Snapshot struct {
	Minute             int          `json:"minute"` // 5-minute bucket offset into the current bar
	CurrColor          ColorLabel   `json:"currColor"`
	PrevColor1         ColorLabel   `json:"prevColor_1"`
	PrevColor2         ColorLabel   `json:"prevColor_2"`
	Session            SessionLabel `json:"session"`
	RangeBin           RangeBin     `json:"range_bin"`
	PDHighTaken        bool         `json:"pdHighTaken"`
	PDLowTaken         bool         `json:"pdLowTaken"`
	PriceAboveNYOpen   bool         `json:"priceAboveNYOpen"`
	PriceAbovePDNYOpen bool         `json:"priceAbovePDNYOpen"`
}

// CorpusRow is one labeled historical observation: the snapshot context, the
// color the bar ultimately resolved to, and the identity of the bar it was
// observed inside.
type CorpusRow struct {
	Snapshot
	TrueColor ColorLabel
	BarStart  time.Time
	RelRange  float64
}

// Filter names accepted in a FilterSet. Any other name is matched by plain
// field equality against the snapshot.
const (
	FilterLiveUpdates        = "liveUpdates"
	FilterPrevColor2         = "prevColor_2"
	FilterSession            = "session"
	FilterRangeBin           = "range_bin"
	FilterPDHL               = "pdHL"
	FilterPriceAboveNYOpen   = "priceAboveNYOpen"
	FilterPriceAbovePDNYOpen = "priceAbovePDNYOpen"
	FilterMinute             = "minute"
)

// FilterSet maps filter names to enabled flags. Disabled entries contribute
// no predicate; the prevColor_1 predicate is always applied regardless.
type FilterSet map[string]bool

// DefaultFilterSet returns the filter configuration used until a subscriber
// replaces it.
func DefaultFilterSet() FilterSet {
	return FilterSet{
		FilterLiveUpdates:        true,
		FilterPrevColor2:         true,
		FilterSession:            true,
		FilterRangeBin:           false,
		FilterPDHL:               false,
		FilterPriceAboveNYOpen:   false,
		FilterPriceAbovePDNYOpen: false,
	}
}

// Clone returns an independent copy so concurrent readers never observe a
// half-replaced set.
func (fs FilterSet) Clone() FilterSet {
	out := make(FilterSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// ColorCount is one entry of a frequency table, kept in descending order.
type ColorCount struct {
	Color ColorLabel `json:"color"`
	Count int        `json:"count"`
}

// Distribution is the outcome of a corpus match: raw counts ordered by
// frequency and the normalized probabilities. Both are empty when nothing
// matched.
type Distribution struct {
	Counts []ColorCount           `json:"counts"`
	Probs  map[ColorLabel]float64 `json:"probs"`
}

// SessionQuantiles holds the per-session relative-range tercile thresholds
// derived from the corpus.
type SessionQuantiles struct {
	Q1 float64 `json:"q1"`
	Q2 float64 `json:"q2"`
}
