package markov

import (
	"testing"

	"LevelCast/internal/domain/models"
)

func TestBuildEventProbs(t *testing.T) {
	probs := map[models.ColorLabel]float64{
		models.ColorGray:  0.5,
		models.ColorGreen: 0.3,
		models.ColorBlue:  0.2,
	}
	prev := models.Bar{High: 100, Low: 95, Close: 97}

	ev := BuildEventProbs(probs, prev)

	if ev.BreakOverHigh.Pct != 30 || ev.BreakOverHigh.Level != 100 {
		t.Fatalf("break over high: %+v", ev.BreakOverHigh)
	}
	if ev.BreakUnderLow.Pct != 20 || ev.BreakUnderLow.Level != 95 {
		t.Fatalf("break under low: %+v", ev.BreakUnderLow)
	}
	// green + blue + gray/2 = 0.75
	if ev.CloseOverClose.Pct != 75 || ev.CloseOverClose.Level != 97 {
		t.Fatalf("close over close: %+v", ev.CloseOverClose)
	}
	// gray/2 only
	if ev.CloseUnderClose.Pct != 25 || ev.CloseUnderClose.Level != 97 {
		t.Fatalf("close under close: %+v", ev.CloseUnderClose)
	}

	if ev.CloseOverClose.Text != "75% close over 97.00" {
		t.Fatalf("unexpected text %q", ev.CloseOverClose.Text)
	}
	if ev.BreakOverHigh.Text != "30% break over 100.00" {
		t.Fatalf("unexpected text %q", ev.BreakOverHigh.Text)
	}
}

func TestBuildEventProbsEmptyDistribution(t *testing.T) {
	ev := BuildEventProbs(map[models.ColorLabel]float64{}, models.Bar{High: 10, Low: 9, Close: 9.5})
	if ev.BreakOverHigh.Pct != 0 || ev.BreakUnderLow.Pct != 0 ||
		ev.CloseOverClose.Pct != 0 || ev.CloseUnderClose.Pct != 0 {
		t.Fatalf("expected all zero pcts: %+v", ev)
	}
}

func TestBuildEventProbsOverlappingOutsideBar(t *testing.T) {
	// An outside bar contributes to both break events.
	probs := map[models.ColorLabel]float64{models.ColorPurple: 1}
	ev := BuildEventProbs(probs, models.Bar{High: 100, Low: 95, Close: 97})
	if ev.BreakOverHigh.Pct != 100 || ev.BreakUnderLow.Pct != 100 {
		t.Fatalf("outside bar should break both extremes: %+v", ev)
	}
}
