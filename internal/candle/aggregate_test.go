package candle

import (
	"testing"
	"time"

	"LevelCast/internal/domain/models"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 3, hour, min, 0, 0, time.UTC)
}

func TestBucketAnchorGrid(t *testing.T) {
	cases := []struct {
		hour     int
		wantHour int
		prevDay  bool
	}{
		{2, 2, false},
		{3, 2, false},
		{5, 2, false},
		{6, 6, false},
		{9, 6, false},
		{10, 10, false},
		{14, 14, false},
		{18, 18, false},
		{21, 18, false},
		{22, 22, false},
		{23, 22, false},
		{0, 22, true},
		{1, 22, true},
	}
	for _, tc := range cases {
		got := bucketAnchor(at(tc.hour, 17))
		if got.Hour() != tc.wantHour {
			t.Fatalf("hour %d: anchored to hour %d, want %d", tc.hour, got.Hour(), tc.wantHour)
		}
		wantDay := 3
		if tc.prevDay {
			wantDay = 2
		}
		if got.Day() != wantDay {
			t.Fatalf("hour %d: anchored to day %d, want %d", tc.hour, got.Day(), wantDay)
		}
		if got.Minute() != 0 || got.Second() != 0 {
			t.Fatalf("hour %d: anchor not on the hour: %v", tc.hour, got)
		}
	}
}

func TestAggregateTo4H(t *testing.T) {
	bars := []models.Bar{
		// second bucket (06:00), out of order on purpose
		{Time: at(7, 0), Open: 104, High: 109, Low: 103, Close: 108, Volume: 3},
		{Time: at(6, 0), Open: 102, High: 106, Low: 101, Close: 104, Volume: 2},
		// first bucket (02:00)
		{Time: at(2, 0), Open: 100, High: 105, Low: 99, Close: 101, Volume: 1},
		{Time: at(3, 0), Open: 101, High: 103, Low: 98, Close: 102, Volume: 1},
	}

	out := AggregateTo4H(bars)
	if len(out) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out))
	}

	// Descending: index 0 is the newest bucket.
	newest := out[0]
	if newest.Time.Hour() != 6 {
		t.Fatalf("newest bucket anchored at hour %d, want 6", newest.Time.Hour())
	}
	if newest.Open != 102 || newest.Close != 108 || newest.High != 109 || newest.Low != 101 {
		t.Fatalf("unexpected newest OHLC: %+v", newest)
	}
	if newest.Volume != 5 {
		t.Fatalf("newest volume %v, want 5", newest.Volume)
	}

	oldest := out[1]
	if oldest.Time.Hour() != 2 {
		t.Fatalf("oldest bucket anchored at hour %d, want 2", oldest.Time.Hour())
	}
	if oldest.Open != 100 || oldest.Close != 102 || oldest.High != 105 || oldest.Low != 98 {
		t.Fatalf("unexpected oldest OHLC: %+v", oldest)
	}
}

func TestAggregateTo4HMidnightBarsJoinPreviousDayBucket(t *testing.T) {
	bars := []models.Bar{
		{Time: time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 1, Close: 2, Volume: 1},
		{Time: time.Date(2025, 6, 3, 0, 30, 0, 0, time.UTC), Open: 2, High: 3, Low: 1, Close: 3, Volume: 1},
		{Time: time.Date(2025, 6, 3, 1, 30, 0, 0, time.UTC), Open: 3, High: 4, Low: 2, Close: 4, Volume: 1},
	}
	out := AggregateTo4H(bars)
	if len(out) != 1 {
		t.Fatalf("expected a single 22:00 bucket, got %d", len(out))
	}
	b := out[0]
	if b.Time.Day() != 2 || b.Time.Hour() != 22 {
		t.Fatalf("bucket anchored at %v, want Jun 2 22:00", b.Time)
	}
	if b.Open != 1 || b.Close != 4 || b.High != 4 || b.Low != 1 || b.Volume != 3 {
		t.Fatalf("unexpected merged bucket: %+v", b)
	}
}
