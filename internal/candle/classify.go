package candle

import (
	"time"

	"LevelCast/internal/domain/models"
)

// ClassifyMarkov labels a bar by its range relationship to the prior bar
// crossed with close-vs-open direction. Pure and total; every input maps to
// one of the eight defined labels.
func ClassifyMarkov(bar, prev models.Bar) models.ColorLabel {
	higherHigh := bar.High > prev.High
	lowerLow := bar.Low < prev.Low

	switch {
	case higherHigh && lowerLow:
		if bar.Bullish() {
			return models.ColorPurple
		}
		return models.ColorMaroon
	case higherHigh && !lowerLow:
		if bar.Bullish() {
			return models.ColorGreen
		}
		return models.ColorYellow
	case !higherHigh && lowerLow:
		if bar.Bullish() {
			return models.ColorBlue
		}
		return models.ColorRed
	case !higherHigh && !lowerLow:
		return models.ColorGray
	}
	return models.ColorUnknown
}

// ClassifyInteraction labels how a bar traded through a price level. The
// second return is false when the level lies outside [low, high]; otherwise
// exactly one label applies.
func ClassifyInteraction(bar models.Bar, level float64) (models.InteractionLabel, bool) {
	if level < bar.Low || level > bar.High {
		return "", false
	}
	switch {
	case bar.Open < level && bar.Close > level:
		return models.InteractionUpCross, true
	case bar.Open > level && bar.Close < level:
		return models.InteractionDownCross, true
	case bar.Open > level && bar.Close > bar.Open:
		return models.InteractionUpBounce, true
	case bar.Open < level && bar.Close < bar.Open:
		return models.InteractionDownBounce, true
	default:
		return models.InteractionStraddleDoji, true
	}
}

// ClassifySession maps a timestamp's local hour to its session. The six
// ranges partition the full day: [2,6) London, [6,10) Pmkt, [10,14) Core,
// [14,18) Close, [18,22) Eve, the rest Asia.
func ClassifySession(t time.Time) models.SessionLabel {
	switch h := t.Hour(); {
	case h >= 2 && h < 6:
		return models.SessionLondon
	case h >= 6 && h < 10:
		return models.SessionPmkt
	case h >= 10 && h < 14:
		return models.SessionCore
	case h >= 14 && h < 18:
		return models.SessionClose
	case h >= 18 && h < 22:
		return models.SessionEve
	default:
		return models.SessionAsia
	}
}
