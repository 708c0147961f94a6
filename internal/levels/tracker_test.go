package levels

import (
	"errors"
	"sync"
	"testing"
	"time"

	"LevelCast/internal/domain/models"
	domrepo "LevelCast/internal/domain/repository"
)

func fixedClock(t time.Time) domrepo.Clock {
	return domrepo.ClockFunc(func() time.Time { return t })
}

func mk(t time.Time, o, h, l, c, v float64) models.Bar {
	return models.Bar{Time: t, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestInitializeEmptyHistory(t *testing.T) {
	tr := New(fixedClock(time.Now()), time.UTC, nil)
	if err := tr.Initialize(nil); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
	if tr.Ready() {
		t.Fatalf("tracker must not be ready after failed bootstrap")
	}
}

func TestInitializePriorDayAndOpens(t *testing.T) {
	now := time.Date(2025, 6, 3, 11, 0, 0, 0, time.UTC)
	tr := New(fixedClock(now), time.UTC, nil)

	yd := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	td := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		// yesterday regular session
		mk(yd.Add(9*time.Hour+30*time.Minute), 100, 101, 99, 100.5, 10),
		mk(yd.Add(12*time.Hour), 100.5, 104, 100, 103, 10),
		mk(yd.Add(15*time.Hour+55*time.Minute), 103, 103.5, 98, 99, 10),
		// today regular session
		mk(td.Add(9*time.Hour+30*time.Minute), 99.5, 100, 99, 99.8, 10),
		mk(td.Add(10*time.Hour+30*time.Minute), 99.8, 105, 99.2, 104, 10),
	}

	if err := tr.Initialize(bars); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	lv := tr.Levels()

	if lv.PDHigh == nil || *lv.PDHigh != 104 {
		t.Fatalf("pdHigh: %v", lv.PDHigh)
	}
	if lv.PDLow == nil || *lv.PDLow != 98 {
		t.Fatalf("pdLow: %v", lv.PDLow)
	}
	// pdClose comes from the first bar of the prior session as scanned.
	if lv.PDClose == nil || *lv.PDClose != 100.5 {
		t.Fatalf("pdClose: %v", lv.PDClose)
	}
	if lv.PDOpen == nil || *lv.PDOpen != 100 {
		t.Fatalf("pdOpen: %v", lv.PDOpen)
	}
	if lv.Open == nil || *lv.Open != 99.5 {
		t.Fatalf("open: %v", lv.Open)
	}
	if lv.High == nil || *lv.High != 105 {
		t.Fatalf("today high: %v", lv.High)
	}
	if lv.RollingHigh == nil || *lv.RollingHigh != 105 {
		t.Fatalf("rolling high: %v", lv.RollingHigh)
	}
}

func TestInitializeOvernightWindowDependsOnEvaluationTime(t *testing.T) {
	yd := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	td := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		mk(yd.Add(19*time.Hour), 90, 92, 89, 91, 5),   // yesterday evening
		mk(td.Add(3*time.Hour), 91, 95, 90.5, 94, 5),  // today pre-market
		mk(td.Add(19*time.Hour), 94, 99, 93.5, 98, 5), // today evening
	}

	// Morning evaluation: yesterday evening plus today's pre-06:00 bars.
	morning := New(fixedClock(td.Add(11*time.Hour)), time.UTC, nil)
	if err := morning.Initialize(bars); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	lv := morning.Levels()
	if lv.OvernightHigh == nil || *lv.OvernightHigh != 95 {
		t.Fatalf("morning overnight high: %v", lv.OvernightHigh)
	}
	if lv.OvernightLow == nil || *lv.OvernightLow != 89 {
		t.Fatalf("morning overnight low: %v", lv.OvernightLow)
	}

	// Evening evaluation: only today's post-18:00 bars.
	evening := New(fixedClock(td.Add(20*time.Hour)), time.UTC, nil)
	if err := evening.Initialize(bars); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	lv = evening.Levels()
	if lv.OvernightHigh == nil || *lv.OvernightHigh != 99 {
		t.Fatalf("evening overnight high: %v", lv.OvernightHigh)
	}
	if lv.OvernightLow == nil || *lv.OvernightLow != 93.5 {
		t.Fatalf("evening overnight low: %v", lv.OvernightLow)
	}
}

func TestOnBarWidensOnly(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tr := New(fixedClock(day.Add(11*time.Hour)), time.UTC, nil)

	tr.OnBar(mk(day.Add(10*time.Hour), 100, 105, 95, 102, 10))
	tr.OnBar(mk(day.Add(10*time.Hour+time.Minute), 102, 103, 99, 101, 10))

	lv := tr.Levels()
	if lv.High == nil || *lv.High != 105 {
		t.Fatalf("high must not shrink: %v", lv.High)
	}
	if lv.Low == nil || *lv.Low != 95 {
		t.Fatalf("low must not rise: %v", lv.Low)
	}
	if lv.RollingHigh == nil || *lv.RollingHigh != 105 {
		t.Fatalf("rolling high: %v", lv.RollingHigh)
	}
}

func TestOnBarSessionOpenShiftsOpens(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tr := New(fixedClock(day.Add(10*time.Hour)), time.UTC, nil)

	tr.OnBar(mk(day.AddDate(0, 0, -1).Add(9*time.Hour+30*time.Minute), 90, 91, 89, 90.5, 10))
	tr.OnBar(mk(day.Add(9*time.Hour+30*time.Minute), 100, 101, 99, 100.5, 10))

	lv := tr.Levels()
	if lv.PDOpen == nil || *lv.PDOpen != 90 {
		t.Fatalf("pdOpen should shift from previous open: %v", lv.PDOpen)
	}
	if lv.Open == nil || *lv.Open != 100 {
		t.Fatalf("open: %v", lv.Open)
	}
}

func TestOnBarOvernightResetAt1800(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tr := New(fixedClock(day.Add(19*time.Hour)), time.UTC, nil)

	tr.OnBar(mk(day.Add(2*time.Hour), 100, 120, 80, 101, 10))
	lv := tr.Levels()
	if lv.OvernightHigh == nil || *lv.OvernightHigh != 120 {
		t.Fatalf("pre-reset overnight high: %v", lv.OvernightHigh)
	}

	// The 18:00 bar resets the window before widening with its own extremes.
	tr.OnBar(mk(day.Add(18*time.Hour), 100, 104, 97, 103, 10))
	lv = tr.Levels()
	if lv.OvernightHigh == nil || *lv.OvernightHigh != 104 {
		t.Fatalf("post-reset overnight high: %v", lv.OvernightHigh)
	}
	if lv.OvernightLow == nil || *lv.OvernightLow != 97 {
		t.Fatalf("post-reset overnight low: %v", lv.OvernightLow)
	}
}

func TestOnBarMidnightResetsRollingAfterWiden(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tr := New(fixedClock(day.Add(time.Minute)), time.UTC, nil)

	tr.OnBar(mk(day, 100, 101, 99, 100.5, 10))
	lv := tr.Levels()
	if lv.RollingHigh != nil || lv.RollingLow != nil {
		t.Fatalf("midnight bar must not pre-seed the new day: %+v", lv)
	}

	tr.OnBar(mk(day.Add(time.Minute), 100.5, 102, 100, 101, 10))
	lv = tr.Levels()
	if lv.RollingHigh == nil || *lv.RollingHigh != 102 {
		t.Fatalf("rolling high after midnight: %v", lv.RollingHigh)
	}
}

func TestOnBarVWAPAccumulatesAndResets(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tr := New(fixedClock(day.Add(19*time.Hour)), time.UTC, nil)

	b1 := mk(day.Add(10*time.Hour), 100, 100, 100, 100, 10)
	b2 := mk(day.Add(10*time.Hour+time.Minute), 104, 104, 104, 104, 10)
	tr.OnBar(b1)
	tr.OnBar(b2)

	lv := tr.Levels()
	if lv.VWAP == nil || *lv.VWAP != 102 {
		t.Fatalf("vwap: %v", lv.VWAP)
	}

	// 18:00 resets the accumulator; the new VWAP is just the 18:00 bar.
	tr.OnBar(mk(day.Add(18*time.Hour), 200, 200, 200, 200, 5))
	lv = tr.Levels()
	if lv.VWAP == nil || *lv.VWAP != 200 {
		t.Fatalf("vwap after 18:00 reset: %v", lv.VWAP)
	}
}

func TestConcurrentBarUpdatesAndReads(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tr := New(fixedClock(day.Add(11*time.Hour)), time.UTC, nil)

	yd := day.AddDate(0, 0, -1)
	if err := tr.Initialize([]models.Bar{
		mk(yd.Add(10*time.Hour), 100, 104, 98, 103, 10),
		mk(day.Add(10*time.Hour), 103, 105, 102, 104, 10),
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			bar := mk(day.Add(10*time.Hour+time.Duration(i)*time.Minute), 103, 105+float64(i)*0.01, 102, 104, 10)
			tr.OnBar(bar)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = tr.Ready()
			_ = tr.Levels()
			_ = tr.PDHighTaken()
			_ = tr.PDLowTaken()
		}
	}()
	wg.Wait()

	lv := tr.Levels()
	if lv.RollingHigh == nil || *lv.RollingHigh < 105 {
		t.Fatalf("rolling high after updates: %v", lv.RollingHigh)
	}
}

func TestPDTakenFlags(t *testing.T) {
	now := time.Date(2025, 6, 3, 11, 0, 0, 0, time.UTC)
	tr := New(fixedClock(now), time.UTC, nil)
	if tr.PDHighTaken() || tr.PDLowTaken() {
		t.Fatalf("unset slots must report false")
	}

	yd := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	td := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		mk(yd.Add(10*time.Hour), 100, 104, 98, 103, 10),
		mk(td.Add(10*time.Hour), 103, 105, 102, 104, 10),
	}
	if err := tr.Initialize(bars); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !tr.PDHighTaken() {
		t.Fatalf("today's 105 exceeds yesterday's 104")
	}
	if tr.PDLowTaken() {
		t.Fatalf("today's 102 has not broken yesterday's 98")
	}
}
