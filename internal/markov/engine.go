package markov

import (
	"sort"

	"LevelCast/internal/domain/models"
)

// Engine matches a live snapshot against a static historical corpus under a
// caller-supplied filter set and produces the outcome distribution. The
// corpus is immutable for the engine's lifetime.
type Engine struct {
	table     *Table
	quantiles map[models.SessionLabel]models.SessionQuantiles
}

// NewEngine builds an engine over a loaded corpus.
func NewEngine(rows []models.CorpusRow, quantiles map[models.SessionLabel]models.SessionQuantiles) *Engine {
	if quantiles == nil {
		quantiles = ComputeSessionQuantiles(rows)
	}
	return &Engine{table: NewTable(rows), quantiles: quantiles}
}

// CorpusSize returns the number of rows in the corpus.
func (e *Engine) CorpusSize() int { return e.table.Len() }

// RangeBinFor buckets a relative range into the session's terciles. The
// second return is false when the session has no thresholds or the relative
// range is undefined (zero previous range upstream).
func (e *Engine) RangeBinFor(session models.SessionLabel, relRange float64, defined bool) (models.RangeBin, bool) {
	q, ok := e.quantiles[session]
	if !ok || !defined {
		return "", false
	}
	switch {
	case relRange < q.Q1:
		return models.RangeLow, true
	case relRange < q.Q2:
		return models.RangeMedium, true
	default:
		return models.RangeHigh, true
	}
}

// filterOrder fixes predicate evaluation order so queries are deterministic.
var filterOrder = []string{
	models.FilterLiveUpdates,
	models.FilterPrevColor2,
	models.FilterSession,
	models.FilterRangeBin,
	models.FilterPDHL,
	models.FilterPriceAboveNYOpen,
	models.FilterPriceAbovePDNYOpen,
	models.FilterMinute,
}

// Match filters the corpus by the mandatory prevColor_1 predicate plus one
// predicate per enabled filter, then counts outcome colors. When the minute
// filter is explicitly disabled, matches are deduplicated per bar_start
// keeping the observation with the latest minute, so one historical bar seen
// at several intra-bar offsets counts once. An empty match set yields empty
// outputs.
func (e *Engine) Match(snap *models.Snapshot, fs models.FilterSet) *models.Distribution {
	t := e.table

	preds := []predicate{t.fieldPredicate("prevColor_1", snap)}
	for _, name := range filterOrder {
		if !fs[name] {
			continue
		}
		switch name {
		case models.FilterPDHL:
			preds = append(preds,
				t.fieldPredicate("pdHighTaken", snap),
				t.fieldPredicate("pdLowTaken", snap),
			)
		case models.FilterLiveUpdates:
			preds = append(preds,
				t.fieldPredicate(models.FilterMinute, snap),
				t.fieldPredicate("currColor", snap),
			)
		default:
			if p := t.fieldPredicate(name, snap); p != nil {
				preds = append(preds, p)
			}
		}
	}

	matched := make([]int, 0, 64)
rows:
	for i := 0; i < t.n; i++ {
		for _, p := range preds {
			if !p(i) {
				continue rows
			}
		}
		matched = append(matched, i)
	}

	if v, ok := fs[models.FilterMinute]; ok && !v {
		matched = e.dedupeByBarStart(matched)
	}

	dist := &models.Distribution{Probs: map[models.ColorLabel]float64{}}
	if len(matched) == 0 {
		return dist
	}

	counts := make(map[models.ColorLabel]int)
	order := make([]models.ColorLabel, 0, 8)
	for _, i := range matched {
		c := t.trueColor[i]
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })

	total := float64(len(matched))
	for _, c := range order {
		dist.Counts = append(dist.Counts, models.ColorCount{Color: c, Count: counts[c]})
		dist.Probs[c] = float64(counts[c]) / total
	}
	return dist
}

// dedupeByBarStart keeps, per bar_start, the matched row with the greatest
// minute value (ties resolve to the later row).
func (e *Engine) dedupeByBarStart(matched []int) []int {
	best := make(map[int64]int, len(matched))
	keys := make([]int64, 0, len(matched))
	for _, i := range matched {
		k := e.table.barStart[i].UnixNano()
		if j, ok := best[k]; !ok {
			best[k] = i
			keys = append(keys, k)
		} else if e.table.minute[i] >= e.table.minute[j] {
			best[k] = i
		}
	}
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		out = append(out, best[k])
	}
	return out
}
