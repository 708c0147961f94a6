package markov

import (
	"math"
	"testing"
	"time"

	"LevelCast/internal/domain/models"
)

func corpusRow(barStart time.Time, minute int, prev1, curr, truth models.ColorLabel) models.CorpusRow {
	return models.CorpusRow{
		Snapshot: models.Snapshot{
			Minute:     minute,
			CurrColor:  curr,
			PrevColor1: prev1,
			PrevColor2: models.ColorGray,
			Session:    models.SessionCore,
		},
		TrueColor: truth,
		BarStart:  barStart,
	}
}

func TestMatchPrevColorIsMandatory(t *testing.T) {
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	rows := []models.CorpusRow{
		corpusRow(t0, 0, models.ColorGreen, models.ColorGray, models.ColorGreen),
		corpusRow(t0.Add(time.Hour), 0, models.ColorRed, models.ColorGray, models.ColorBlue),
	}
	e := NewEngine(rows, nil)

	snap := &models.Snapshot{PrevColor1: models.ColorGreen, PrevColor2: models.ColorGray, Session: models.SessionCore}
	dist := e.Match(snap, models.FilterSet{})
	if len(dist.Counts) != 1 || dist.Counts[0].Color != models.ColorGreen {
		t.Fatalf("expected only green-matching row, got %+v", dist.Counts)
	}
	if dist.Probs[models.ColorGreen] != 1 {
		t.Fatalf("expected prob 1, got %v", dist.Probs)
	}
}

func TestMatchEmptyCorpusYieldsEmptyDistribution(t *testing.T) {
	e := NewEngine(nil, nil)
	dist := e.Match(&models.Snapshot{PrevColor1: models.ColorGreen}, models.DefaultFilterSet())
	if len(dist.Counts) != 0 || len(dist.Probs) != 0 {
		t.Fatalf("expected empty distribution, got %+v", dist)
	}
}

func TestMatchProbsSumToOneAndCountsDescend(t *testing.T) {
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	var rows []models.CorpusRow
	outcomes := []models.ColorLabel{
		models.ColorGreen, models.ColorGreen, models.ColorGreen,
		models.ColorRed, models.ColorRed,
		models.ColorGray,
	}
	for i, c := range outcomes {
		rows = append(rows, corpusRow(t0.Add(time.Duration(i)*time.Hour), 0, models.ColorBlue, models.ColorGray, c))
	}
	e := NewEngine(rows, nil)

	dist := e.Match(&models.Snapshot{PrevColor1: models.ColorBlue}, models.FilterSet{})
	if len(dist.Counts) != 3 {
		t.Fatalf("expected 3 distinct colors, got %d", len(dist.Counts))
	}
	for i := 1; i < len(dist.Counts); i++ {
		if dist.Counts[i].Count > dist.Counts[i-1].Count {
			t.Fatalf("counts not descending: %+v", dist.Counts)
		}
	}
	if dist.Counts[0].Color != models.ColorGreen || dist.Counts[0].Count != 3 {
		t.Fatalf("expected green x3 first, got %+v", dist.Counts[0])
	}
	sum := 0.0
	for _, p := range dist.Probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probs sum %v, want 1", sum)
	}
}

func TestMatchLiveUpdatesFilterAddsMinuteAndCurrColor(t *testing.T) {
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	rows := []models.CorpusRow{
		corpusRow(t0, 5, models.ColorBlue, models.ColorGreen, models.ColorGreen),
		corpusRow(t0.Add(time.Hour), 10, models.ColorBlue, models.ColorGreen, models.ColorRed),
		corpusRow(t0.Add(2*time.Hour), 5, models.ColorBlue, models.ColorRed, models.ColorGray),
	}
	e := NewEngine(rows, nil)

	snap := &models.Snapshot{Minute: 5, CurrColor: models.ColorGreen, PrevColor1: models.ColorBlue}
	dist := e.Match(snap, models.FilterSet{models.FilterLiveUpdates: true})
	if len(dist.Counts) != 1 || dist.Counts[0].Color != models.ColorGreen {
		t.Fatalf("expected single green match at minute 5, got %+v", dist.Counts)
	}
}

func TestMatchDedupesPerBarOnlyWhenMinuteExplicitlyDisabled(t *testing.T) {
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	// Same historical bar observed at three intra-bar offsets.
	rows := []models.CorpusRow{
		corpusRow(t0, 0, models.ColorBlue, models.ColorGray, models.ColorGreen),
		corpusRow(t0, 5, models.ColorBlue, models.ColorGray, models.ColorGreen),
		corpusRow(t0, 10, models.ColorBlue, models.ColorGray, models.ColorGreen),
		corpusRow(t0.Add(time.Hour), 0, models.ColorBlue, models.ColorGray, models.ColorRed),
	}
	e := NewEngine(rows, nil)
	snap := &models.Snapshot{PrevColor1: models.ColorBlue}

	dist := e.Match(snap, models.FilterSet{models.FilterMinute: false})
	if dist.Counts[0].Count+dist.Counts[1].Count != 2 {
		t.Fatalf("expected one observation per bar after dedup, got %+v", dist.Counts)
	}
	if dist.Probs[models.ColorGreen] != 0.5 || dist.Probs[models.ColorRed] != 0.5 {
		t.Fatalf("expected 50/50 split, got %v", dist.Probs)
	}

	// With the minute key absent there is no dedup: each offset counts.
	dist = e.Match(snap, models.FilterSet{})
	if dist.Probs[models.ColorGreen] != 0.75 {
		t.Fatalf("expected 0.75 green without dedup, got %v", dist.Probs)
	}
}

func TestRangeBinForTerciles(t *testing.T) {
	q := map[models.SessionLabel]models.SessionQuantiles{
		models.SessionCore: {Q1: 0.5, Q2: 1.0},
	}
	e := NewEngine(nil, q)

	cases := []struct {
		rel  float64
		want models.RangeBin
	}{
		{0.2, models.RangeLow},
		{0.7, models.RangeMedium},
		{1.5, models.RangeHigh},
	}
	for _, tc := range cases {
		got, ok := e.RangeBinFor(models.SessionCore, tc.rel, true)
		if !ok || got != tc.want {
			t.Fatalf("rel %v: got (%s,%v) want %s", tc.rel, got, ok, tc.want)
		}
	}

	if _, ok := e.RangeBinFor(models.SessionCore, 0.7, false); ok {
		t.Fatalf("undefined relative range must not bin")
	}
	if _, ok := e.RangeBinFor(models.SessionAsia, 0.7, true); ok {
		t.Fatalf("session without thresholds must not bin")
	}
}

func TestComputeSessionQuantiles(t *testing.T) {
	t0 := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	var rows []models.CorpusRow
	for i, rel := range []float64{1, 2, 3} {
		r := corpusRow(t0.Add(time.Duration(i)*time.Hour), 0, models.ColorBlue, models.ColorGray, models.ColorGreen)
		r.RelRange = rel
		rows = append(rows, r)
	}
	q := ComputeSessionQuantiles(rows)
	got, ok := q[models.SessionCore]
	if !ok {
		t.Fatalf("expected quantiles for Core session")
	}
	// 33%/66% of {1,2,3} with linear interpolation.
	if math.Abs(got.Q1-1.66) > 1e-9 || math.Abs(got.Q2-2.32) > 1e-9 {
		t.Fatalf("unexpected quantiles: %+v", got)
	}
}
