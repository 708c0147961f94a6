package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"LevelCast/internal/candle"
	"LevelCast/internal/domain/models"
)

var (
	// ErrNoBars is returned when either bar series handed to BuildRow is empty.
	ErrNoBars = errors.New("features: bar history is empty")
	// ErrNoOpeningBars is returned when the minute series has no bars inside
	// the first five minutes of the current coarse bar.
	ErrNoOpeningBars = errors.New("features: missing first five minutes of current bar")
)

// MissingFeaturesError reports feature names the builder cannot derive at all.
// Dummy-style names (pat_/sess_/dow_ prefixes) are never missing; they fill
// with zero instead.
type MissingFeaturesError struct {
	Columns []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("features: missing required features: %v", e.Columns)
}

// NaNFeaturesError reports features whose value is undefined for the current
// row, typically lags reaching past the start of the history.
type NaNFeaturesError struct {
	Columns []string
}

func (e *NaNFeaturesError) Error() string {
	return fmt.Sprintf("features: NaN values in feature row: %v", e.Columns)
}

// BuildRow derives one ordered feature row for the newest bar of a coarse
// series (hourly or four-hourly), matching the layout the range regression
// was trained on. The minute series must cover the first five minutes of
// that newest bar; its high-low spread becomes range_5min.
//
// One-hot columns follow reference-category encoding: per dummy family the
// first category present in the history (alphabetical for patterns, numeric
// for sessions and weekdays) carries no column, so a requested dummy for an
// absent or reference category resolves to zero.
func BuildRow(coarse, minute []models.Bar, names []string) ([]float64, error) {
	if len(coarse) == 0 || len(minute) == 0 {
		return nil, ErrNoBars
	}

	bars := sortedCopy(coarse)
	last := len(bars) - 1
	cur := bars[last]

	// patterns[0] stays empty, there is no prior bar to compare against.
	patterns := make([]models.ColorLabel, len(bars))
	for i := 1; i < len(bars); i++ {
		patterns[i] = candle.ClassifyMarkov(bars[i], bars[i-1])
	}

	patCats := patternCategories(patterns)
	sessCats := intCategories(bars, func(b models.Bar) int { return b.Time.Hour() })
	dowCats := intCategories(bars, func(b models.Bar) int { return dayOfWeek(b.Time) })

	range5, err := openingRange(sortedCopy(minute), cur.Time)
	if err != nil {
		return nil, err
	}

	value := func(name string) (float64, bool) {
		switch name {
		case "range":
			return cur.Range(), true
		case "side":
			return indicator(cur.Close >= cur.Open), true
		case "dayofweek":
			return float64(dayOfWeek(cur.Time)), true
		case "session":
			return float64(cur.Time.Hour()), true
		case "is_strong_candle":
			if last == 0 {
				return math.NaN(), true
			}
			prev := bars[last-1]
			return indicator(math.Abs(prev.Close-prev.Open) > 0.7*prev.Range()), true
		case "range_5min":
			return range5, true
		}

		if k, ok := lagOf(name, "range_m"); ok {
			if last-k < 0 {
				return math.NaN(), true
			}
			return bars[last-k].Range(), true
		}
		if k, ok := lagOf(name, "side_m"); ok {
			if last-k < 0 {
				return math.NaN(), true
			}
			b := bars[last-k]
			return indicator(b.Close >= b.Open), true
		}

		if color, k, ok := patternDummy(name); ok {
			if !patCats[color] {
				return 0, true
			}
			if last-k < 0 {
				return math.NaN(), true
			}
			return indicator(patterns[last-k] == color), true
		}
		if h, ok := intDummy(name, "sess_"); ok {
			if !sessCats[h] {
				return 0, true
			}
			return indicator(cur.Time.Hour() == h), true
		}
		if d, ok := intDummy(name, "dow_"); ok {
			if !dowCats[d] {
				return 0, true
			}
			return indicator(dayOfWeek(cur.Time) == d), true
		}
		return 0, false
	}

	row := make([]float64, len(names))
	var missing, nans []string
	for i, name := range names {
		v, ok := value(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		if math.IsNaN(v) {
			nans = append(nans, name)
		}
		row[i] = v
	}
	if len(missing) > 0 {
		return nil, &MissingFeaturesError{Columns: missing}
	}
	if len(nans) > 0 {
		return nil, &NaNFeaturesError{Columns: nans}
	}
	return row, nil
}

// openingRange measures the high-low spread of minute bars within the first
// five minutes of the bar starting at start.
func openingRange(minute []models.Bar, start time.Time) (float64, error) {
	end := start.Add(5 * time.Minute)
	var hi, lo float64
	seen := false
	for _, b := range minute {
		if b.Time.Before(start) || !b.Time.Before(end) {
			continue
		}
		if !seen {
			hi, lo = b.High, b.Low
			seen = true
			continue
		}
		if b.High > hi {
			hi = b.High
		}
		if b.Low < lo {
			lo = b.Low
		}
	}
	if !seen {
		return 0, ErrNoOpeningBars
	}
	return hi - lo, nil
}

// patternCategories collects pattern labels present in the history and drops
// the alphabetically first one as the reference category.
func patternCategories(patterns []models.ColorLabel) map[models.ColorLabel]bool {
	present := make(map[models.ColorLabel]bool)
	for _, p := range patterns[1:] {
		present[p] = true
	}
	names := make([]string, 0, len(present))
	for p := range present {
		names = append(names, string(p))
	}
	sort.Strings(names)
	if len(names) > 0 {
		delete(present, models.ColorLabel(names[0]))
	}
	return present
}

// intCategories does the same for integer-valued dummies, dropping the
// smallest value present.
func intCategories(bars []models.Bar, f func(models.Bar) int) map[int]bool {
	present := make(map[int]bool)
	min := 0
	for i, b := range bars {
		v := f(b)
		present[v] = true
		if i == 0 || v < min {
			min = v
		}
	}
	delete(present, min)
	return present
}

// patternDummy parses pat_<color> and pat_<color>_m<k> names. k is zero for
// the unlagged form.
func patternDummy(name string) (models.ColorLabel, int, bool) {
	rest, ok := strings.CutPrefix(name, "pat_")
	if !ok {
		return "", 0, false
	}
	k := 0
	if i := strings.LastIndex(rest, "_m"); i >= 0 {
		if lag, err := strconv.Atoi(rest[i+2:]); err == nil && lag > 0 {
			k = lag
			rest = rest[:i]
		}
	}
	return models.ColorLabel(rest), k, true
}

func intDummy(name, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lagOf(name, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, false
	}
	k, err := strconv.Atoi(rest)
	if err != nil || k < 1 {
		return 0, false
	}
	return k, true
}

// dayOfWeek maps to Monday=0 .. Sunday=6.
func dayOfWeek(t time.Time) int { return (int(t.Weekday()) + 6) % 7 }

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func sortedCopy(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
