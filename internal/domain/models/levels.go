package models

// LevelSet holds the named reference price levels tracked across the trading
// day. A nil slot means the level is not currently set. Within an active
// accumulation window the High slots only move up and the Low slots only move
// down; scheduled resets are the only way back.
type LevelSet struct {
	PDHigh        *float64 `json:"pdHigh"`
	PDLow         *float64 `json:"pdLow"`
	PDClose       *float64 `json:"pdClose"`
	PDOpen        *float64 `json:"pdOpen"`
	Open          *float64 `json:"open"`
	High          *float64 `json:"High"`
	Low           *float64 `json:"Low"`
	OvernightHigh *float64 `json:"overnightHigh"`
	OvernightLow  *float64 `json:"overnightLow"`
	VWAP          *float64 `json:"vwap"`
	RollingHigh   *float64 `json:"rollingHigh"`
	RollingLow    *float64 `json:"rollingLow"`
}

// Each returns the named slots in a stable order for iteration.
func (ls *LevelSet) Each() []NamedLevel {
	return []NamedLevel{
		{"pdHigh", ls.PDHigh},
		{"pdLow", ls.PDLow},
		{"pdClose", ls.PDClose},
		{"pdOpen", ls.PDOpen},
		{"open", ls.Open},
		{"High", ls.High},
		{"Low", ls.Low},
		{"overnightHigh", ls.OvernightHigh},
		{"overnightLow", ls.OvernightLow},
		{"vwap", ls.VWAP},
		{"rollingHigh", ls.RollingHigh},
		{"rollingLow", ls.RollingLow},
	}
}

// NamedLevel pairs a level slot name with its current price, if set.
type NamedLevel struct {
	Name  string
	Price *float64
}

// VWAPState is the running accumulator paired with the vwap slot.
type VWAPState struct {
	PriceVolumeSum float64 `json:"pv"`
	VolumeSum      float64 `json:"vol"`
}

// LevelInteraction records a level whose price the current bar traded through.
type LevelInteraction struct {
	Level       string           `json:"level"`
	Interaction InteractionLabel `json:"interaction"`
}
