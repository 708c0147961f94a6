package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"LevelCast/internal/domain/models"
	drepo "LevelCast/internal/domain/repository"
	"LevelCast/internal/levels"
	"LevelCast/internal/markov"
	mid "LevelCast/internal/middleware"
	applogger "LevelCast/pkg/logger"
)

type fakeFeed struct {
	m1     []models.Bar
	h1     []models.Bar
	latest *models.Bar
}

func (f *fakeFeed) RetrieveBars(_ context.Context, p drepo.RetrieveParams) ([]models.Bar, error) {
	switch p.Unit {
	case drepo.TF1m, drepo.TF5m:
		return f.m1, nil
	case drepo.TF1h:
		return f.h1, nil
	}
	return nil, nil
}

func (f *fakeFeed) Latest(context.Context, drepo.Timeframe) (*models.Bar, error) {
	return f.latest, nil
}

func (f *fakeFeed) Health(context.Context) error { return nil }

type fakeMetrics struct {
	mu    sync.Mutex
	ticks int
	errs  map[string]int
}

func (m *fakeMetrics) RecordTick(string) {
	m.mu.Lock()
	m.ticks++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	if m.errs == nil {
		m.errs = map[string]int{}
	}
	m.errs[kind]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordLastPrice(float64)      {}
func (m *fakeMetrics) RecordLatency(string, float64) {}
func (m *fakeMetrics) RecordMatchSize(string, int)  {}

type fakeArchiver struct {
	mu   sync.Mutex
	rows []*models.CorpusRow
	tfs  []drepo.Timeframe
}

func (a *fakeArchiver) Archive(_ context.Context, tf drepo.Timeframe, row *models.CorpusRow) error {
	a.mu.Lock()
	a.rows = append(a.rows, row)
	a.tfs = append(a.tfs, tf)
	a.mu.Unlock()
	return nil
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func hb(t time.Time, o, h, l, c float64) models.Bar {
	return models.Bar{Time: t, Open: o, High: h, Low: l, Close: c, Volume: 1}
}

// hourlyHistory yields a rising staircase of hourly bars where every bar makes
// a higher high on a higher low close, classifying green against its prior.
func hourlyHistory(day time.Time, hours ...int) []models.Bar {
	out := make([]models.Bar, 0, len(hours))
	for i, h := range hours {
		base := float64(100 + i)
		out = append(out, hb(day.Add(time.Duration(h)*time.Hour), base, base+10, base-5, base+8))
	}
	return out
}

func newTestOrchestrator(t *testing.T, feed *fakeFeed, arch drepo.SnapshotArchiver, fm *fakeMetrics, now time.Time) *StreamOrchestrator {
	t.Helper()
	clock := drepo.ClockFunc(func() time.Time { return now })
	tracker := levels.New(clock, time.UTC, nil)
	hub := mid.NewBroadcaster(fm)
	return NewStreamOrchestrator(
		feed, tracker,
		markov.NewEngine(nil, nil), markov.NewEngine(nil, nil),
		nil, nil,
		nil, arch, fm, hub, clock, testLogger(t), "CON.F.US.MNQ.U25", time.UTC,
	)
}

func TestProcessBarBuildsPayload(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	prev := day.AddDate(0, 0, -1)

	feed := &fakeFeed{
		// Minute history spanning four 4h buckets.
		m1: []models.Bar{
			hb(prev.Add(23*time.Hour), 90, 95, 85, 92),
			hb(day.Add(3*time.Hour), 92, 97, 88, 95),
			hb(day.Add(7*time.Hour), 95, 101, 91, 99),
			hb(day.Add(10*time.Hour+7*time.Minute), 99, 104, 95, 103),
		},
		h1: hourlyHistory(day, 6, 7, 8, 9, 10),
	}
	fm := &fakeMetrics{}
	o := newTestOrchestrator(t, feed, nil, fm, day.Add(10*time.Hour+7*time.Minute))

	sub := o.Hub().Subscribe()
	bar := hb(day.Add(10*time.Hour+7*time.Minute), 103, 104, 102, 103.5)
	if err := o.ProcessBar(context.Background(), bar); err != nil {
		t.Fatalf("process: %v", err)
	}

	payload := o.LatestPayload()
	if payload == nil {
		t.Fatalf("expected a payload")
	}
	if payload.Type != "1min_tick" {
		t.Fatalf("type %q", payload.Type)
	}
	if payload.Timestamp != "2025-06-03 10:07:00" {
		t.Fatalf("timestamp %q", payload.Timestamp)
	}
	if payload.Snapshot1H == nil || payload.Snapshot4H == nil {
		t.Fatalf("missing snapshots")
	}
	if payload.Snapshot1H.PrevColor1 != models.ColorGreen {
		t.Fatalf("1h prevColor_1 %s, want green", payload.Snapshot1H.PrevColor1)
	}
	if payload.Snapshot1H.Session != models.SessionCore {
		t.Fatalf("session %s, want Core", payload.Snapshot1H.Session)
	}
	if payload.Snapshot1H.Minute != 5 { // 10:07 falls in the 5..9 bucket
		t.Fatalf("1h minute %d, want 5", payload.Snapshot1H.Minute)
	}

	// Empty corpus: distributions empty but events still present.
	if len(payload.Probs1H) != 0 || payload.Events1H == nil {
		t.Fatalf("unexpected distribution shape")
	}

	select {
	case got := <-sub.C:
		if got.(*models.TickPayload) != payload {
			t.Fatalf("subscriber received a different payload")
		}
	default:
		t.Fatalf("subscriber received nothing")
	}

	if fm.ticks != 1 {
		t.Fatalf("tick metric %d, want 1", fm.ticks)
	}
}

func TestProcessBarSkipsOnThinHistory(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		m1: []models.Bar{ // only two 4h buckets
			hb(day.Add(7*time.Hour), 95, 101, 91, 99),
			hb(day.Add(10*time.Hour), 99, 104, 95, 103),
		},
		h1: hourlyHistory(day, 6, 7, 8, 9, 10),
	}
	o := newTestOrchestrator(t, feed, nil, &fakeMetrics{}, day.Add(10*time.Hour))

	bar := hb(day.Add(10*time.Hour+7*time.Minute), 103, 104, 102, 103.5)
	if err := o.ProcessBar(context.Background(), bar); err != nil {
		t.Fatalf("process: %v", err)
	}
	if o.LatestPayload() != nil {
		t.Fatalf("thin history must not produce a payload")
	}
}

func TestArchiveFlushOnBarRollover(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	prev := day.AddDate(0, 0, -1)

	m1 := []models.Bar{
		hb(prev.Add(23*time.Hour), 90, 95, 85, 92),
		hb(day.Add(3*time.Hour), 92, 97, 88, 95),
		hb(day.Add(7*time.Hour), 95, 101, 91, 99),
		hb(day.Add(10*time.Hour+7*time.Minute), 99, 104, 95, 103),
	}
	feed := &fakeFeed{m1: m1, h1: hourlyHistory(day, 6, 7, 8, 9, 10)}
	arch := &fakeArchiver{}
	o := newTestOrchestrator(t, feed, arch, &fakeMetrics{}, day.Add(10*time.Hour+7*time.Minute))

	bar1 := hb(day.Add(10*time.Hour+7*time.Minute), 103, 104, 102, 103.5)
	if err := o.ProcessBar(context.Background(), bar1); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(arch.rows) != 0 {
		t.Fatalf("nothing should flush while the bar is forming, got %d", len(arch.rows))
	}

	// A new hourly bar opens; the 10:00 observation resolves.
	feed.h1 = hourlyHistory(day, 6, 7, 8, 9, 10, 11)
	feed.m1 = append(m1, hb(day.Add(11*time.Hour+2*time.Minute), 104, 106, 103, 105))

	bar2 := hb(day.Add(11*time.Hour+2*time.Minute), 104, 106, 103, 105)
	if err := o.ProcessBar(context.Background(), bar2); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(arch.rows) != 1 {
		t.Fatalf("expected one flushed observation, got %d", len(arch.rows))
	}
	if arch.tfs[0] != drepo.TF1h {
		t.Fatalf("flushed tf %s, want 1h", arch.tfs[0])
	}
	row := arch.rows[0]
	if !row.BarStart.Equal(day.Add(10 * time.Hour)) {
		t.Fatalf("flushed bar start %v", row.BarStart)
	}
	// The staircase history classifies every completed hourly bar green.
	if row.TrueColor != models.ColorGreen {
		t.Fatalf("resolved color %s, want green", row.TrueColor)
	}
}

func TestSetFiltersBeforeFirstBar(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	o := newTestOrchestrator(t, &fakeFeed{}, nil, &fakeMetrics{}, day)

	update, err := o.SetFilters(drepo.TF1h, map[string]bool{models.FilterSession: true})
	if err != nil {
		t.Fatalf("set filters: %v", err)
	}
	if update != nil {
		t.Fatalf("no snapshot yet, update must be nil")
	}
	fs := o.Filters(drepo.TF1h)
	if !fs[models.FilterSession] || fs[models.FilterPrevColor2] {
		t.Fatalf("filter set not replaced: %v", fs)
	}

	if _, err := o.SetFilters("7h", nil); err == nil {
		t.Fatalf("unknown timeframe must error")
	}
}

func TestSetFiltersRecomputesAfterBar(t *testing.T) {
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	prev := day.AddDate(0, 0, -1)
	feed := &fakeFeed{
		m1: []models.Bar{
			hb(prev.Add(23*time.Hour), 90, 95, 85, 92),
			hb(day.Add(3*time.Hour), 92, 97, 88, 95),
			hb(day.Add(7*time.Hour), 95, 101, 91, 99),
			hb(day.Add(10*time.Hour+7*time.Minute), 99, 104, 95, 103),
		},
		h1: hourlyHistory(day, 6, 7, 8, 9, 10),
	}
	o := newTestOrchestrator(t, feed, nil, &fakeMetrics{}, day.Add(10*time.Hour+7*time.Minute))

	bar := hb(day.Add(10*time.Hour+7*time.Minute), 103, 104, 102, 103.5)
	if err := o.ProcessBar(context.Background(), bar); err != nil {
		t.Fatalf("process: %v", err)
	}

	update, err := o.SetFilters(drepo.TF1h, map[string]bool{})
	if err != nil {
		t.Fatalf("set filters: %v", err)
	}
	if update == nil || update.Type != "filter_update_1h" {
		t.Fatalf("unexpected update %+v", update)
	}
	if update.Snapshot == nil || update.Events == nil {
		t.Fatalf("update missing snapshot or events")
	}
}
