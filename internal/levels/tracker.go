package levels

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"LevelCast/internal/domain/models"
	domrepo "LevelCast/internal/domain/repository"
	applogger "LevelCast/pkg/logger"
)

// Session boundaries as minutes of the local day.
const (
	rthStartMin       = 9*60 + 30 // 09:30
	rthEndMin         = 16 * 60   // 16:00
	overnightStartMin = 18 * 60   // 18:00
	overnightEndMin   = rthStartMin
	preMarketEndMin   = 6 * 60 // bootstrap overnight cutoff, 06:00
)

// ErrNoHistory is returned when bootstrap receives no bars. The level set
// stays fully unset; the caller decides whether to retry.
var ErrNoHistory = errors.New("levels: bootstrap received no bars")

// Tracker owns the mutable set of named reference levels for one instrument.
// Writes are strictly sequential (Initialize once, then OnBar per new bar),
// but the HTTP handlers read level state concurrently with the stream loop,
// so all access goes through the RWMutex.
type Tracker struct {
	clock domrepo.Clock
	loc   *time.Location
	l     *applogger.Logger

	mu     sync.RWMutex
	levels models.LevelSet
	vwap   models.VWAPState
	ready  bool
}

// New creates a tracker. The clock is injected so the bootstrap's
// evaluation-time-dependent overnight window is deterministic under test.
func New(clock domrepo.Clock, loc *time.Location, l *applogger.Logger) *Tracker {
	return &Tracker{clock: clock, loc: loc, l: l}
}

// Ready reports whether bootstrap completed.
func (tr *Tracker) Ready() bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.ready
}

// Levels returns an independent copy of the current level set.
func (tr *Tracker) Levels() *models.LevelSet {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	cp := models.LevelSet{}
	src := tr.levels.Each()
	dst := []**float64{
		&cp.PDHigh, &cp.PDLow, &cp.PDClose, &cp.PDOpen, &cp.Open, &cp.High,
		&cp.Low, &cp.OvernightHigh, &cp.OvernightLow, &cp.VWAP,
		&cp.RollingHigh, &cp.RollingLow,
	}
	for i, nl := range src {
		if nl.Price != nil {
			v := *nl.Price
			*dst[i] = &v
		}
	}
	return &cp
}

// VWAPState returns the running accumulator paired with the vwap slot.
func (tr *Tracker) VWAPState() models.VWAPState {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.vwap
}

// PDHighTaken reports whether today's rolling high has exceeded the prior
// day high. Unset slots yield false.
func (tr *Tracker) PDHighTaken() bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.levels.RollingHigh != nil && tr.levels.PDHigh != nil &&
		*tr.levels.RollingHigh > *tr.levels.PDHigh
}

// PDLowTaken reports whether today's rolling low has broken the prior day low.
func (tr *Tracker) PDLowTaken() bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.levels.RollingLow != nil && tr.levels.PDLow != nil &&
		*tr.levels.RollingLow < *tr.levels.PDLow
}

// PriceAboveOpen reports whether price is above today's regular-session open.
func (tr *Tracker) PriceAboveOpen(price float64) bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.levels.Open != nil && price > *tr.levels.Open
}

// PriceAbovePDOpen reports whether price is above the prior regular-session open.
func (tr *Tracker) PriceAbovePDOpen(price float64) bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.levels.PDOpen != nil && price > *tr.levels.PDOpen
}

// Initialize bootstraps the level set from a multi-day history of fine bars
// (a 3+ trading-day lookback of 5m bars). The overnight window selection
// depends on the injected clock's current time: at or after 18:00 it covers
// today's post-18:00 bars only; before that, yesterday's post-18:00 bars
// plus today's pre-06:00 bars. That asymmetry is long-standing observed
// behavior and is kept as is.
func (tr *Tracker) Initialize(bars []models.Bar) error {
	if len(bars) == 0 {
		return ErrNoHistory
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	now := tr.clock.Now().In(tr.loc)
	today := dateOf(now)
	eveningEval := minuteOfDay(now) >= overnightStartMin

	byDate := make(map[time.Time][]models.Bar)
	for _, b := range bars {
		d := dateOf(b.Time.In(tr.loc))
		byDate[d] = append(byDate[d], b)
	}

	// Prior-day regular session: scan back up to 4 calendar days.
	var pdRTH []models.Bar
	for offset := 1; offset <= 4; offset++ {
		check := today.AddDate(0, 0, -offset)
		var session []models.Bar
		for _, b := range byDate[check] {
			if m := minuteOfDay(b.Time.In(tr.loc)); m >= rthStartMin && m <= rthEndMin {
				session = append(session, b)
			}
		}
		if len(session) > 0 {
			pdRTH = session
			break
		}
	}
	if len(pdRTH) > 0 {
		tr.levels.PDHigh = ptr(maxHigh(pdRTH))
		tr.levels.PDLow = ptr(minLow(pdRTH))
		tr.levels.PDClose = ptr(pdRTH[0].Close)
	}

	// Session opens: the two most recent 09:30 bars give pdOpen and open.
	var opens []models.Bar
	for _, b := range bars {
		if minuteOfDay(b.Time.In(tr.loc)) == rthStartMin {
			opens = append(opens, b)
		}
	}
	sortByTime(opens)
	if n := len(opens); n >= 2 {
		tr.levels.PDOpen = ptr(opens[n-2].Open)
		tr.levels.Open = ptr(opens[n-1].Open)
	} else if n == 1 {
		tr.levels.Open = ptr(opens[0].Open)
	}

	var overnight, todayRTH, todayAll []models.Bar
	yesterday := today.AddDate(0, 0, -1)
	for _, b := range bars {
		t := b.Time.In(tr.loc)
		d := dateOf(t)
		m := minuteOfDay(t)

		if eveningEval {
			if d.Equal(today) && m >= overnightStartMin {
				overnight = append(overnight, b)
			}
		} else if (d.Equal(yesterday) && m >= overnightStartMin) ||
			(d.Equal(today) && m < preMarketEndMin) {
			overnight = append(overnight, b)
		}

		if d.Equal(today) {
			todayAll = append(todayAll, b)
			if m >= rthStartMin && m <= rthEndMin {
				todayRTH = append(todayRTH, b)
			}
		}
	}

	if len(overnight) > 0 {
		tr.levels.OvernightHigh = ptr(maxHigh(overnight))
		tr.levels.OvernightLow = ptr(minLow(overnight))
	}
	if len(todayRTH) > 0 {
		tr.levels.High = ptr(maxHigh(todayRTH))
		tr.levels.Low = ptr(minLow(todayRTH))
	}

	vwapBars := overnight
	if !eveningEval {
		vwapBars = append(append([]models.Bar{}, overnight...), todayRTH...)
	}
	for _, b := range vwapBars {
		tr.vwap.PriceVolumeSum += b.TypicalPrice() * b.Volume
		tr.vwap.VolumeSum += b.Volume
	}
	if tr.vwap.VolumeSum > 0 {
		tr.levels.VWAP = ptr(round2(tr.vwap.PriceVolumeSum / tr.vwap.VolumeSum))
	}

	if len(todayAll) > 0 {
		tr.levels.RollingHigh = ptr(maxHigh(todayAll))
		tr.levels.RollingLow = ptr(minLow(todayAll))
	}

	tr.ready = true
	if tr.l != nil {
		tr.l.Info("daily levels initialized",
			applogger.Int("history_bars", len(bars)),
			applogger.Int("prior_rth_bars", len(pdRTH)),
			applogger.Int("overnight_bars", len(overnight)),
		)
	}
	return nil
}

// OnBar applies one complete bar to the level set. Order matters: regular
// session first, then overnight (reset before widen at 18:00), then rolling
// (reset after widen at midnight so the midnight bar does not pre-seed the
// new day), then the VWAP accumulator.
func (tr *Tracker) OnBar(bar models.Bar) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	t := bar.Time.In(tr.loc)
	m := minuteOfDay(t)
	today := dateOf(tr.clock.Now().In(tr.loc))

	if m >= rthStartMin && m <= rthEndMin {
		tr.levels.High = widenUp(tr.levels.High, bar.High)
		tr.levels.Low = widenDown(tr.levels.Low, bar.Low)
		if m == rthStartMin {
			tr.levels.PDOpen = tr.levels.Open
			tr.levels.Open = ptr(bar.Open)
		}
	}

	if m >= overnightStartMin || m < overnightEndMin {
		if m == overnightStartMin {
			tr.levels.OvernightHigh = nil
			tr.levels.OvernightLow = nil
		}
		tr.levels.OvernightHigh = widenUp(tr.levels.OvernightHigh, bar.High)
		tr.levels.OvernightLow = widenDown(tr.levels.OvernightLow, bar.Low)
	}

	if dateOf(t).Equal(today) {
		tr.levels.RollingHigh = widenUp(tr.levels.RollingHigh, bar.High)
		tr.levels.RollingLow = widenDown(tr.levels.RollingLow, bar.Low)
	}
	if m == 0 {
		tr.levels.RollingHigh = nil
		tr.levels.RollingLow = nil
	}

	if m == overnightStartMin {
		tr.vwap = models.VWAPState{}
	}
	tr.vwap.PriceVolumeSum += bar.TypicalPrice() * bar.Volume
	tr.vwap.VolumeSum += bar.Volume
	if tr.vwap.VolumeSum > 0 {
		tr.levels.VWAP = ptr(round2(tr.vwap.PriceVolumeSum / tr.vwap.VolumeSum))
	} else {
		tr.levels.VWAP = nil
	}
}

func widenUp(cur *float64, v float64) *float64 {
	if cur == nil || v > *cur {
		return &v
	}
	return cur
}

func widenDown(cur *float64, v float64) *float64 {
	if cur == nil || v < *cur {
		return &v
	}
	return cur
}

func maxHigh(bars []models.Bar) float64 {
	m := bars[0].High
	for _, b := range bars[1:] {
		if b.High > m {
			m = b.High
		}
	}
	return m
}

func minLow(bars []models.Bar) float64 {
	m := bars[0].Low
	for _, b := range bars[1:] {
		if b.Low < m {
			m = b.Low
		}
	}
	return m
}

func sortByTime(bars []models.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
}

func minuteOfDay(t time.Time) int { return t.Hour()*60 + t.Minute() }

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func ptr(v float64) *float64 { return &v }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
