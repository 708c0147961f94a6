package markov

import (
	"fmt"
	"math"

	"LevelCast/internal/domain/models"
)

// BuildEventProbs combines a color distribution with the previous bar's
// extremes into four compound event probabilities. The events overlap by
// construction; they are not a partition. Colors absent from probs count as
// zero.
func BuildEventProbs(probs map[models.ColorLabel]float64, prev models.Bar) *models.EventProbs {
	p := func(c models.ColorLabel) float64 { return probs[c] }

	breakHigh := p(models.ColorGreen) + p(models.ColorYellow) + p(models.ColorPurple) + p(models.ColorMaroon)
	breakLow := p(models.ColorBlue) + p(models.ColorRed) + p(models.ColorPurple) + p(models.ColorMaroon)
	closeUp := p(models.ColorGreen) + p(models.ColorBlue) + p(models.ColorPurple) + p(models.ColorGray)/2
	closeDown := p(models.ColorYellow) + p(models.ColorRed) + p(models.ColorMaroon) + p(models.ColorGray)/2

	return &models.EventProbs{
		BreakOverHigh:   event(breakHigh, "break over", prev.High),
		BreakUnderLow:   event(breakLow, "break under", prev.Low),
		CloseOverClose:  event(closeUp, "close over", prev.Close),
		CloseUnderClose: event(closeDown, "close under", prev.Close),
	}
}

func event(prob float64, verb string, level float64) models.EventProb {
	pct := int(math.Round(prob * 100))
	return models.EventProb{
		Pct:   pct,
		Level: level,
		Text:  fmt.Sprintf("%d%% %s %.2f", pct, verb, level),
	}
}
