package models

// EventProb is one compound event probability anchored to a prior-bar price.
type EventProb struct {
	Pct   int     `json:"pct"`
	Level float64 `json:"level"`
	Text  string  `json:"text"`
}

// EventProbs groups the four overlapping compound event probabilities
// derived from a color distribution and the previous bar's extremes.
type EventProbs struct {
	BreakOverHigh   EventProb `json:"break_over_high"`
	BreakUnderLow   EventProb `json:"break_under_low"`
	CloseOverClose  EventProb `json:"close_over_close"`
	CloseUnderClose EventProb `json:"close_under_close"`
}

// TickPayload is the full per-bar output pushed to subscribers.
type TickPayload struct {
	Type         string                 `json:"type"` // "1min_tick"
	Timestamp    string                 `json:"timestamp"`
	Contract     string                 `json:"contract"`
	OHLC         OHLC                   `json:"ohlc"`
	Interactions []LevelInteraction     `json:"interactions"`
	Snapshot4H   *Snapshot              `json:"snapshot_4h"`
	Snapshot1H   *Snapshot              `json:"snapshot_1h"`
	Counts4H     []ColorCount           `json:"counts_4h"`
	Probs4H      map[ColorLabel]float64 `json:"probs_4h"`
	Counts1H     []ColorCount           `json:"counts_1h"`
	Probs1H      map[ColorLabel]float64 `json:"probs_1h"`
	Events4H     *EventProbs            `json:"events_4h"`
	Events1H     *EventProbs            `json:"events_1h"`
	DailyLevels  *LevelSet              `json:"daily_levels"`
	RangeCurr4H  float64                `json:"rangeCurr_4h"`
	RangeCurr1H  float64                `json:"rangeCurr_1h"`
}

// RangePrediction carries the external regression outputs, refreshed at the
// top of each 5-minute boundary after a new bucket opens.
type RangePrediction struct {
	Type        string  `json:"type"` // "range_prediction"
	RangePred1H float64 `json:"rangePred_1h"`
	RangePred4H float64 `json:"rangePred_4h"`
}

// FilterRequest is the inbound subscriber message replacing a timeframe's
// active filter set.
type FilterRequest struct {
	Type           string          `json:"type"` // "filter_request_1h" | "filter_request_4h"
	FiltersEnabled map[string]bool `json:"filters_enabled"`
}

// FilterUpdate answers a FilterRequest with distributions recomputed against
// the last-known snapshot.
type FilterUpdate struct {
	Type     string                 `json:"type"` // "filter_update_1h" | "filter_update_4h"
	Snapshot *Snapshot              `json:"snapshot"`
	Counts   []ColorCount           `json:"counts"`
	Probs    map[ColorLabel]float64 `json:"probs"`
	Events   *EventProbs            `json:"events"`
}
