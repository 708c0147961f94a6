package features

import (
	"errors"
	"testing"
	"time"

	"LevelCast/internal/domain/models"
)

func hourly(start time.Time, ohlc ...[4]float64) []models.Bar {
	bars := make([]models.Bar, len(ohlc))
	for i, v := range ohlc {
		bars[i] = models.Bar{
			Time: start.Add(time.Duration(i) * time.Hour),
			Open: v[0], High: v[1], Low: v[2], Close: v[3],
		}
	}
	return bars
}

func minutes(start time.Time, n int, hi, lo float64) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		bars[i] = models.Bar{
			Time: start.Add(time.Duration(i) * time.Minute),
			Open: lo, High: hi, Low: lo, Close: hi,
		}
	}
	return bars
}

func TestBuildRowEmptyHistory(t *testing.T) {
	if _, err := BuildRow(nil, nil, []string{"range"}); !errors.Is(err, ErrNoBars) {
		t.Fatalf("expected ErrNoBars, got %v", err)
	}
}

func TestBuildRowBasicFeatures(t *testing.T) {
	// Monday 2025-06-02, hours 10..12.
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	coarse := hourly(start,
		[4]float64{100, 110, 95, 105}, // range 15
		[4]float64{105, 112, 104, 106},
		[4]float64{106, 109, 103, 104}, // current: range 6, bearish
	)
	minute := minutes(start.Add(2*time.Hour), 5, 104.5, 103.5)

	names := []string{"range", "side", "session", "dayofweek", "range_m1", "range_m2", "side_m1", "range_5min"}
	row, err := BuildRow(coarse, minute, names)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	want := []float64{6, 0, 12, 0, 8, 15, 1, 1}
	for i, name := range names {
		if row[i] != want[i] {
			t.Fatalf("%s: got %v want %v", name, row[i], want[i])
		}
	}
}

func TestBuildRowLagPastHistoryStartIsNaN(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	coarse := hourly(start, [4]float64{100, 110, 95, 105}, [4]float64{105, 112, 104, 106})
	minute := minutes(start.Add(time.Hour), 5, 106, 105)

	_, err := BuildRow(coarse, minute, []string{"range", "range_m5"})
	var nanErr *NaNFeaturesError
	if !errors.As(err, &nanErr) {
		t.Fatalf("expected NaNFeaturesError, got %v", err)
	}
	if len(nanErr.Columns) != 1 || nanErr.Columns[0] != "range_m5" {
		t.Fatalf("unexpected columns %v", nanErr.Columns)
	}
}

func TestBuildRowUnknownFeatureName(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	coarse := hourly(start, [4]float64{100, 110, 95, 105}, [4]float64{105, 112, 104, 106})
	minute := minutes(start.Add(time.Hour), 5, 106, 105)

	_, err := BuildRow(coarse, minute, []string{"range", "garbage_feature"})
	var missErr *MissingFeaturesError
	if !errors.As(err, &missErr) {
		t.Fatalf("expected MissingFeaturesError, got %v", err)
	}
	if len(missErr.Columns) != 1 || missErr.Columns[0] != "garbage_feature" {
		t.Fatalf("unexpected columns %v", missErr.Columns)
	}
}

func TestBuildRowMissingOpeningMinutes(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	coarse := hourly(start, [4]float64{100, 110, 95, 105}, [4]float64{105, 112, 104, 106})
	// Minute bars exist but none inside the current bar's first five minutes.
	minute := minutes(start, 5, 101, 100)

	if _, err := BuildRow(coarse, minute, []string{"range"}); !errors.Is(err, ErrNoOpeningBars) {
		t.Fatalf("expected ErrNoOpeningBars, got %v", err)
	}
}

func TestBuildRowPatternDummiesDropReferenceCategory(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	// bar1 -> bar2: higher high, no lower low, bullish => green
	// bar2 -> bar3: inside => gray
	coarse := hourly(start,
		[4]float64{100, 110, 95, 105},
		[4]float64{105, 112, 104, 111},
		[4]float64{111, 112, 105, 106},
	)
	minute := minutes(start.Add(2*time.Hour), 5, 106.5, 105.5)

	// Categories present: {green, gray}; "gray" sorts first and is dropped.
	names := []string{"pat_green", "pat_gray", "pat_green_m1", "pat_purple"}
	row, err := BuildRow(coarse, minute, names)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if row[0] != 0 { // current pattern is gray, not green
		t.Fatalf("pat_green: got %v want 0", row[0])
	}
	if row[1] != 0 { // reference category always zero
		t.Fatalf("pat_gray (reference): got %v want 0", row[1])
	}
	if row[2] != 1 { // one bar back the pattern was green
		t.Fatalf("pat_green_m1: got %v want 1", row[2])
	}
	if row[3] != 0 { // absent category fills zero
		t.Fatalf("pat_purple (absent): got %v want 0", row[3])
	}
}

func TestBuildRowSessionAndWeekdayDummies(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) // Monday
	coarse := hourly(start,
		[4]float64{100, 110, 95, 105},
		[4]float64{105, 112, 104, 106},
	)
	minute := minutes(start.Add(time.Hour), 5, 106, 105)

	// Hours present: {10, 11}; 10 is the dropped reference.
	names := []string{"sess_10", "sess_11", "sess_23", "dow_0"}
	row, err := BuildRow(coarse, minute, names)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if row[0] != 0 {
		t.Fatalf("sess_10 (reference): got %v want 0", row[0])
	}
	if row[1] != 1 { // current bar is the 11:00 bar
		t.Fatalf("sess_11: got %v want 1", row[1])
	}
	if row[2] != 0 {
		t.Fatalf("sess_23 (absent): got %v want 0", row[2])
	}
	// Only Monday present, so dow 0 is the dropped reference.
	if row[3] != 0 {
		t.Fatalf("dow_0 (reference): got %v want 0", row[3])
	}
}

func TestBuildRowStrongCandle(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	// prev bar body 10 of range 11: strong.
	coarse := hourly(start,
		[4]float64{100, 111, 100, 110},
		[4]float64{110, 112, 109, 111},
	)
	minute := minutes(start.Add(time.Hour), 5, 111, 110)

	row, err := BuildRow(coarse, minute, []string{"is_strong_candle"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if row[0] != 1 {
		t.Fatalf("is_strong_candle: got %v want 1", row[0])
	}
}
