package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"LevelCast/internal/candle"
	"LevelCast/internal/domain/models"
	drepo "LevelCast/internal/domain/repository"
	domsvc "LevelCast/internal/domain/service"
	"LevelCast/internal/features"
	"LevelCast/internal/levels"
	"LevelCast/internal/markov"
	mid "LevelCast/internal/middleware"
	applogger "LevelCast/pkg/logger"
)

// History window sizes, matching what the probability corpus and the range
// models were built from.
const (
	bootstrapLookback = 5 * 24 * time.Hour
	bootstrapLimit    = 5000

	tickMinuteLookback = 1000 * time.Minute
	tickMinuteLimit    = 1000
	tickHourLookback   = 24 * time.Hour
	tickHourLimit      = 24

	predMinuteLookback = 10000 * time.Minute
	predMinuteLimit    = 20000
	predHourLookback   = 100 * time.Hour
	predHourLimit      = 5000

	// minBars is the context depth every snapshot needs: current bar plus
	// three predecessors for the two-step color chain.
	minBars = 4
)

// tfState carries everything the orchestrator tracks per timeframe.
type tfState struct {
	engine  *markov.Engine
	filters models.FilterSet
	snap    *models.Snapshot
	prevBar *models.Bar

	// observations of the still-forming bar, archived once it completes
	pendingStart time.Time
	pendingRows  []*models.CorpusRow
}

// StreamOrchestrator drives the whole engine: it bootstraps daily levels,
// polls one fresh minute bar per minute, rebuilds both timeframe snapshots,
// queries the corpus, and fans the resulting payloads out to subscribers and
// the message bus.
type StreamOrchestrator struct {
	feed     drepo.BarFeed
	tracker  *levels.Tracker
	pred1h   domsvc.RangePredictor
	pred4h   domsvc.RangePredictor
	pub      drepo.TickPublisher
	archiver drepo.SnapshotArchiver
	metrics  drepo.Metrics
	hub      *mid.Broadcaster
	clock    drepo.Clock
	l        *applogger.Logger
	contract string
	loc      *time.Location

	mu          sync.Mutex
	tfs         map[drepo.Timeframe]*tfState
	lastBarTime time.Time
	lastPayload *models.TickPayload
	lastPred    *models.RangePrediction
}

// NewStreamOrchestrator wires the orchestrator. Either predictor may be nil
// when the model sidecar is not deployed; range predictions are then skipped.
// The archiver may likewise be nil.
func NewStreamOrchestrator(
	feed drepo.BarFeed,
	tracker *levels.Tracker,
	engine1h, engine4h *markov.Engine,
	pred1h, pred4h domsvc.RangePredictor,
	pub drepo.TickPublisher,
	archiver drepo.SnapshotArchiver,
	metrics drepo.Metrics,
	hub *mid.Broadcaster,
	clock drepo.Clock,
	l *applogger.Logger,
	contract string,
	loc *time.Location,
) *StreamOrchestrator {
	return &StreamOrchestrator{
		feed:     feed,
		tracker:  tracker,
		pred1h:   pred1h,
		pred4h:   pred4h,
		pub:      pub,
		archiver: archiver,
		metrics:  metrics,
		hub:      hub,
		clock:    clock,
		l:        l,
		contract: contract,
		loc:      loc,
		tfs: map[drepo.Timeframe]*tfState{
			drepo.TF1h: {engine: engine1h, filters: models.DefaultFilterSet()},
			drepo.TF4h: {engine: engine4h, filters: models.DefaultFilterSet()},
		},
	}
}

// Hub exposes the subscriber fan-out for the WebSocket handler.
func (o *StreamOrchestrator) Hub() *mid.Broadcaster { return o.hub }

// Ready reports whether bootstrap completed.
func (o *StreamOrchestrator) Ready() bool { return o.tracker.Ready() }

// Levels returns a copy of the current daily level set.
func (o *StreamOrchestrator) Levels() *models.LevelSet { return o.tracker.Levels() }

// LatestPayload returns the most recent tick payload, or nil before the
// first processed bar.
func (o *StreamOrchestrator) LatestPayload() *models.TickPayload {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastPayload
}

// LatestPrediction returns the most recent range prediction, or nil.
func (o *StreamOrchestrator) LatestPrediction() *models.RangePrediction {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastPred
}

// Filters returns a copy of the active filter set for a timeframe.
func (o *StreamOrchestrator) Filters(tf drepo.Timeframe) models.FilterSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.tfs[tf]; ok {
		return st.filters.Clone()
	}
	return nil
}

// Bootstrap seeds the daily level tracker from a five-day window of 5-minute
// bars.
func (o *StreamOrchestrator) Bootstrap(ctx context.Context) error {
	bars, err := o.feed.RetrieveBars(ctx, drepo.RetrieveParams{
		Unit:     drepo.TF5m,
		Lookback: bootstrapLookback,
		Limit:    bootstrapLimit,
	})
	if err != nil {
		return fmt.Errorf("bootstrap history: %w", err)
	}
	if err := o.tracker.Initialize(bars); err != nil {
		return fmt.Errorf("initialize levels: %w", err)
	}
	return nil
}

// Run bootstraps and then processes one bar per minute until the context is
// canceled. Transient feed errors are logged and retried on the next minute.
func (o *StreamOrchestrator) Run(ctx context.Context) error {
	if err := o.Bootstrap(ctx); err != nil {
		return err
	}

	if _, err := o.RunRangePredictions(ctx); err != nil {
		o.l.Warn("initial range prediction failed", applogger.Error(err))
	}

	o.pollOnce(ctx)
	for {
		wait := time.Duration(60-o.clock.Now().Second()) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			o.pollOnce(ctx)
		}
	}
}

func (o *StreamOrchestrator) pollOnce(ctx context.Context) {
	bar, err := o.feed.Latest(ctx, drepo.TF1m)
	if err != nil {
		o.metrics.RecordError("feed_latest")
		o.l.Warn("latest bar fetch failed", applogger.Error(err))
		return
	}
	if bar == nil {
		return
	}

	o.mu.Lock()
	dup := !bar.Time.After(o.lastBarTime)
	if !dup {
		o.lastBarTime = bar.Time
	}
	o.mu.Unlock()
	if dup {
		return
	}

	if err := o.ProcessBar(ctx, *bar); err != nil {
		o.metrics.RecordError("process_bar")
		o.l.Error("bar processing failed", applogger.Error(err))
	}
}

// ProcessBar applies one fresh minute bar: level updates, snapshot rebuilds
// for both timeframes, corpus matches, and payload fan-out.
func (o *StreamOrchestrator) ProcessBar(ctx context.Context, bar models.Bar) error {
	start := time.Now()
	o.tracker.OnBar(bar)

	m1, err := o.feed.RetrieveBars(ctx, drepo.RetrieveParams{
		Unit:     drepo.TF1m,
		Lookback: tickMinuteLookback,
		Limit:    tickMinuteLimit,
	})
	if err != nil {
		return fmt.Errorf("minute history: %w", err)
	}
	h1, err := o.feed.RetrieveBars(ctx, drepo.RetrieveParams{
		Unit:           drepo.TF1h,
		Lookback:       tickHourLookback,
		Limit:          tickHourLimit,
		IncludePartial: true,
	})
	if err != nil {
		return fmt.Errorf("hour history: %w", err)
	}
	h4 := candle.AggregateTo4H(m1)
	sortNewestFirst(h1)

	if len(h4) < minBars || len(h1) < minBars {
		o.l.Warn("insufficient bar context, skipping tick",
			applogger.Int("h4", len(h4)), applogger.Int("h1", len(h1)))
		return nil
	}

	session := candle.ClassifySession(bar.Time.In(o.loc))

	o.mu.Lock()
	defer o.mu.Unlock()

	snap4, rel4 := o.buildSnapshot(drepo.TF4h, bar, h4, session)
	snap1, rel1 := o.buildSnapshot(drepo.TF1h, bar, h1, session)

	st4, st1 := o.tfs[drepo.TF4h], o.tfs[drepo.TF1h]
	dist4 := st4.engine.Match(snap4, st4.filters)
	dist1 := st1.engine.Match(snap1, st1.filters)
	o.metrics.RecordMatchSize(string(drepo.TF4h), len(dist4.Counts))
	o.metrics.RecordMatchSize(string(drepo.TF1h), len(dist1.Counts))

	o.archiveObservation(ctx, drepo.TF4h, snap4, h4, rel4)
	o.archiveObservation(ctx, drepo.TF1h, snap1, h1, rel1)

	levelSet := o.tracker.Levels()
	var interactions []models.LevelInteraction
	for _, nl := range levelSet.Each() {
		if nl.Price == nil {
			continue
		}
		if label, ok := candle.ClassifyInteraction(bar, *nl.Price); ok {
			interactions = append(interactions, models.LevelInteraction{
				Level:       nl.Name,
				Interaction: label,
			})
		}
	}

	payload := &models.TickPayload{
		Type:         "1min_tick",
		Timestamp:    bar.Time.In(o.loc).Format("2006-01-02 15:04:05"),
		Contract:     o.contract,
		OHLC:         bar.PriceView(),
		Interactions: interactions,
		Snapshot4H:   snap4,
		Snapshot1H:   snap1,
		Counts4H:     dist4.Counts,
		Probs4H:      dist4.Probs,
		Counts1H:     dist1.Counts,
		Probs1H:      dist1.Probs,
		Events4H:     markov.BuildEventProbs(dist4.Probs, h4[1]),
		Events1H:     markov.BuildEventProbs(dist1.Probs, h1[1]),
		DailyLevels:  levelSet,
		RangeCurr4H:  h4[0].Range(),
		RangeCurr1H:  h1[0].Range(),
	}
	o.lastPayload = payload

	o.hub.Publish(payload)
	if o.pub != nil {
		if err := o.pub.PublishTick(ctx, payload); err != nil {
			o.metrics.RecordError("publish_tick")
			o.l.Warn("tick publish failed", applogger.Error(err))
		}
	}

	o.metrics.RecordTick("1m")
	o.metrics.RecordLastPrice(bar.Close)
	o.metrics.RecordLatency("process_bar", time.Since(start).Seconds())

	if bar.Time.In(o.loc).Minute() == 5 {
		go func() {
			if _, err := o.RunRangePredictions(ctx); err != nil {
				o.l.Warn("range prediction failed", applogger.Error(err))
			}
		}()
	}
	return nil
}

// buildSnapshot assembles the corpus query key for one timeframe from
// newest-first coarse bars. Callers hold o.mu.
func (o *StreamOrchestrator) buildSnapshot(tf drepo.Timeframe, bar models.Bar, coarse []models.Bar, session models.SessionLabel) (*models.Snapshot, float64) {
	st := o.tfs[tf]

	prev2 := candle.ClassifyMarkov(coarse[2], coarse[3])
	prev1 := candle.ClassifyMarkov(coarse[1], coarse[2])
	curr := candle.ClassifyMarkov(coarse[0], coarse[1])

	prevRange := coarse[1].Range()
	relRange := 0.0
	defined := prevRange > 0
	if defined {
		relRange = coarse[0].Range() / prevRange
	}
	rangeBin, _ := st.engine.RangeBinFor(session, relRange, defined)

	var minute int
	if tf == drepo.TF1h {
		minute = (bar.Time.In(o.loc).Minute() / 5) * 5
	} else {
		minute = int(bar.Time.Sub(coarse[0].Time).Minutes()/5) * 5
	}

	snap := &models.Snapshot{
		Minute:             minute,
		CurrColor:          curr,
		PrevColor1:         prev1,
		PrevColor2:         prev2,
		Session:            session,
		RangeBin:           rangeBin,
		PDHighTaken:        o.tracker.PDHighTaken(),
		PDLowTaken:         o.tracker.PDLowTaken(),
		PriceAboveNYOpen:   o.tracker.PriceAboveOpen(bar.Close),
		PriceAbovePDNYOpen: o.tracker.PriceAbovePDOpen(bar.Close),
	}

	st.snap = snap
	pb := coarse[1]
	st.prevBar = &pb
	return snap, relRange
}

// archiveObservation buffers the current observation and, when the coarse bar
// rolls over, flushes the completed bar's observations with their resolved
// color. prevColor_1 at rollover is exactly the completed bar's final color.
// Callers hold o.mu.
func (o *StreamOrchestrator) archiveObservation(ctx context.Context, tf drepo.Timeframe, snap *models.Snapshot, coarse []models.Bar, relRange float64) {
	if o.archiver == nil {
		return
	}
	st := o.tfs[tf]
	barStart := coarse[0].Time

	if !st.pendingStart.Equal(barStart) {
		resolved := snap.PrevColor1
		for _, row := range st.pendingRows {
			row.TrueColor = resolved
			if err := o.archiver.Archive(ctx, tf, row); err != nil {
				o.metrics.RecordError("archive")
				o.l.Warn("snapshot archive failed", applogger.Error(err))
				break
			}
		}
		st.pendingStart = barStart
		st.pendingRows = st.pendingRows[:0]
	}

	st.pendingRows = append(st.pendingRows, &models.CorpusRow{
		Snapshot: *snap,
		BarStart: barStart,
		RelRange: relRange,
	})
}

// RunRangePredictions rebuilds feature rows from deep history, scores both
// range models, and fans the result out. Returns the prediction for callers
// that want it synchronously.
func (o *StreamOrchestrator) RunRangePredictions(ctx context.Context) (*models.RangePrediction, error) {
	if o.pred1h == nil || o.pred4h == nil {
		return nil, nil
	}

	m1, err := o.feed.RetrieveBars(ctx, drepo.RetrieveParams{
		Unit:     drepo.TF1m,
		Lookback: predMinuteLookback,
		Limit:    predMinuteLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("prediction minute history: %w", err)
	}
	h1, err := o.feed.RetrieveBars(ctx, drepo.RetrieveParams{
		Unit:     drepo.TF1h,
		Lookback: predHourLookback,
		Limit:    predHourLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("prediction hour history: %w", err)
	}
	h4 := candle.AggregateTo4H(m1)

	pred4, err := o.scoreRange(ctx, o.pred4h, h4, m1)
	if err != nil {
		return nil, fmt.Errorf("4h range: %w", err)
	}
	pred1, err := o.scoreRange(ctx, o.pred1h, h1, m1)
	if err != nil {
		return nil, fmt.Errorf("1h range: %w", err)
	}

	pred := &models.RangePrediction{
		Type:        "range_prediction",
		RangePred1H: pred1,
		RangePred4H: pred4,
	}

	o.mu.Lock()
	o.lastPred = pred
	o.mu.Unlock()

	o.hub.Publish(pred)
	return pred, nil
}

func (o *StreamOrchestrator) scoreRange(ctx context.Context, p domsvc.RangePredictor, coarse, minute []models.Bar) (float64, error) {
	names, err := p.FeatureNames(ctx)
	if err != nil {
		return 0, err
	}
	row, err := features.BuildRow(coarse, minute, names)
	if err != nil {
		return 0, err
	}
	v, err := p.Predict(ctx, row)
	if err != nil {
		return 0, err
	}
	return math.Round(v*100) / 100, nil
}

// SetFilters replaces a timeframe's active filter set and immediately
// recomputes the distribution against the last-known snapshot. The returned
// update is nil when no snapshot exists yet.
func (o *StreamOrchestrator) SetFilters(tf drepo.Timeframe, enabled map[string]bool) (*models.FilterUpdate, error) {
	st, ok := o.tfs[tf]
	if !ok {
		return nil, fmt.Errorf("unknown timeframe %q", tf)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	st.filters = models.FilterSet(enabled).Clone()
	if st.snap == nil {
		return nil, nil
	}

	dist := st.engine.Match(st.snap, st.filters)
	update := &models.FilterUpdate{
		Type:     "filter_update_" + string(tf),
		Snapshot: st.snap,
		Counts:   dist.Counts,
		Probs:    dist.Probs,
	}
	if st.prevBar != nil {
		update.Events = markov.BuildEventProbs(dist.Probs, *st.prevBar)
	}
	return update, nil
}

// Distribution recomputes the current distribution for a timeframe under its
// active filters. Returns nil before the first processed bar.
func (o *StreamOrchestrator) Distribution(tf drepo.Timeframe) (*models.Snapshot, *models.Distribution, *models.EventProbs) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.tfs[tf]
	if !ok || st.snap == nil {
		return nil, nil, nil
	}
	dist := st.engine.Match(st.snap, st.filters)
	var events *models.EventProbs
	if st.prevBar != nil {
		events = markov.BuildEventProbs(dist.Probs, *st.prevBar)
	}
	return st.snap, dist, events
}

func sortNewestFirst(bars []models.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.After(bars[j].Time) })
}

// Close detaches every subscriber. The shared Kafka producer behind the
// publisher and the archiver is closed by the application, not here.
func (o *StreamOrchestrator) Close() {
	o.hub.Close()
}
