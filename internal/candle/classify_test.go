package candle

import (
	"testing"
	"time"

	"LevelCast/internal/domain/models"
)

func bar(o, h, l, c float64) models.Bar {
	return models.Bar{Open: o, High: h, Low: l, Close: c}
}

func TestClassifyMarkov(t *testing.T) {
	prev := bar(100, 110, 90, 105)

	cases := []struct {
		name string
		bar  models.Bar
		want models.ColorLabel
	}{
		{"outside bullish", bar(95, 115, 85, 100), models.ColorPurple},
		{"outside bearish", bar(100, 115, 85, 95), models.ColorMaroon},
		{"higher high bullish", bar(100, 115, 95, 112), models.ColorGreen},
		{"higher high bearish", bar(112, 115, 95, 100), models.ColorYellow},
		{"lower low bullish", bar(88, 105, 85, 100), models.ColorBlue},
		{"lower low bearish", bar(100, 105, 85, 88), models.ColorRed},
		{"inside", bar(95, 105, 92, 100), models.ColorGray},
		{"inside doji", bar(100, 105, 92, 100), models.ColorGray},
	}
	for _, tc := range cases {
		if got := ClassifyMarkov(tc.bar, prev); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestClassifyMarkovEqualExtremesAreNotBreaks(t *testing.T) {
	prev := bar(100, 110, 90, 105)
	// Matching the prior high/low exactly is not a break
	if got := ClassifyMarkov(bar(95, 110, 90, 100), prev); got != models.ColorGray {
		t.Fatalf("equal extremes: got %s want gray", got)
	}
}

func TestClassifyInteraction(t *testing.T) {
	cases := []struct {
		name  string
		bar   models.Bar
		level float64
		want  models.InteractionLabel
		ok    bool
	}{
		{"untouched above", bar(100, 105, 95, 102), 110, "", false},
		{"untouched below", bar(100, 105, 95, 102), 90, "", false},
		{"up cross", bar(98, 105, 95, 104), 100, models.InteractionUpCross, true},
		{"down cross", bar(104, 105, 95, 98), 100, models.InteractionDownCross, true},
		{"up bounce", bar(101, 105, 99, 104), 100, models.InteractionUpBounce, true},
		{"down bounce", bar(99, 101, 95, 96), 100, models.InteractionDownBounce, true},
		{"straddle doji", bar(100, 105, 95, 100), 100, models.InteractionStraddleDoji, true},
	}
	for _, tc := range cases {
		got, ok := ClassifyInteraction(tc.bar, tc.level)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: got (%s,%v) want (%s,%v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestClassifySessionPartitionsTheDay(t *testing.T) {
	want := map[int]models.SessionLabel{
		0: models.SessionAsia, 1: models.SessionAsia,
		2: models.SessionLondon, 5: models.SessionLondon,
		6: models.SessionPmkt, 9: models.SessionPmkt,
		10: models.SessionCore, 13: models.SessionCore,
		14: models.SessionClose, 17: models.SessionClose,
		18: models.SessionEve, 21: models.SessionEve,
		22: models.SessionAsia, 23: models.SessionAsia,
	}
	for h, expect := range want {
		ts := time.Date(2025, 6, 2, h, 30, 0, 0, time.UTC)
		if got := ClassifySession(ts); got != expect {
			t.Fatalf("hour %d: got %s want %s", h, got, expect)
		}
	}
}
