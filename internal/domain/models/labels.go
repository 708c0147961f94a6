package models

// ColorLabel is the discrete candle classification relative to the prior bar.
type ColorLabel string

const (
	ColorPurple  ColorLabel = "purple"
	ColorMaroon  ColorLabel = "maroon"
	ColorGreen   ColorLabel = "green"
	ColorYellow  ColorLabel = "yellow"
	ColorBlue    ColorLabel = "blue"
	ColorRed     ColorLabel = "red"
	ColorGray    ColorLabel = "gray"
	ColorUnknown ColorLabel = "unknown"
)

// Colors lists every defined color label.
func Colors() []ColorLabel {
	return []ColorLabel{
		ColorPurple, ColorMaroon, ColorGreen, ColorYellow,
		ColorBlue, ColorRed, ColorGray, ColorUnknown,
	}
}

// InteractionLabel describes how a bar traded through a price level.
type InteractionLabel string

const (
	InteractionUpCross      InteractionLabel = "up_cross"
	InteractionDownCross    InteractionLabel = "down_cross"
	InteractionUpBounce     InteractionLabel = "up_bounce"
	InteractionDownBounce   InteractionLabel = "down_bounce"
	InteractionStraddleDoji InteractionLabel = "straddle_doji"
)

// SessionLabel names a fixed hour-of-day partition of the trading day.
type SessionLabel string

const (
	SessionLondon SessionLabel = "London"
	SessionPmkt   SessionLabel = "Pmkt"
	SessionCore   SessionLabel = "Core"
	SessionClose  SessionLabel = "Close"
	SessionEve    SessionLabel = "Eve"
	SessionAsia   SessionLabel = "Asia"
)

// RangeBin buckets the current bar's relative range against session terciles.
type RangeBin string

const (
	RangeLow    RangeBin = "low"
	RangeMedium RangeBin = "medium"
	RangeHigh   RangeBin = "high"
)
