package markov

import (
	"sort"
	"time"

	"LevelCast/internal/domain/models"
)

// Table stores the historical corpus column-wise. It is built once at load
// time and never mutated afterwards; queries only read.
type Table struct {
	n           int
	minute      []int
	currColor   []models.ColorLabel
	prevColor1  []models.ColorLabel
	prevColor2  []models.ColorLabel
	trueColor   []models.ColorLabel
	session     []models.SessionLabel
	rangeBin    []models.RangeBin
	pdHighTaken []bool
	pdLowTaken  []bool
	aboveOpen   []bool
	abovePDOpen []bool
	barStart    []time.Time
}

// NewTable converts corpus rows into columnar form.
func NewTable(rows []models.CorpusRow) *Table {
	t := &Table{
		n:           len(rows),
		minute:      make([]int, len(rows)),
		currColor:   make([]models.ColorLabel, len(rows)),
		prevColor1:  make([]models.ColorLabel, len(rows)),
		prevColor2:  make([]models.ColorLabel, len(rows)),
		trueColor:   make([]models.ColorLabel, len(rows)),
		session:     make([]models.SessionLabel, len(rows)),
		rangeBin:    make([]models.RangeBin, len(rows)),
		pdHighTaken: make([]bool, len(rows)),
		pdLowTaken:  make([]bool, len(rows)),
		aboveOpen:   make([]bool, len(rows)),
		abovePDOpen: make([]bool, len(rows)),
		barStart:    make([]time.Time, len(rows)),
	}
	for i, r := range rows {
		t.minute[i] = r.Minute
		t.currColor[i] = r.CurrColor
		t.prevColor1[i] = r.PrevColor1
		t.prevColor2[i] = r.PrevColor2
		t.trueColor[i] = r.TrueColor
		t.session[i] = r.Session
		t.rangeBin[i] = r.RangeBin
		t.pdHighTaken[i] = r.PDHighTaken
		t.pdLowTaken[i] = r.PDLowTaken
		t.aboveOpen[i] = r.PriceAboveNYOpen
		t.abovePDOpen[i] = r.PriceAbovePDNYOpen
		t.barStart[i] = r.BarStart
	}
	return t
}

// Len returns the number of corpus rows.
func (t *Table) Len() int { return t.n }

// predicate answers whether corpus row i satisfies one equality constraint.
type predicate func(i int) bool

// fieldPredicate builds an equality predicate for a named snapshot field.
// Unknown names yield nil and are skipped by the caller.
func (t *Table) fieldPredicate(name string, s *models.Snapshot) predicate {
	switch name {
	case models.FilterMinute:
		return func(i int) bool { return t.minute[i] == s.Minute }
	case "currColor":
		return func(i int) bool { return t.currColor[i] == s.CurrColor }
	case "prevColor_1":
		return func(i int) bool { return t.prevColor1[i] == s.PrevColor1 }
	case models.FilterPrevColor2:
		return func(i int) bool { return t.prevColor2[i] == s.PrevColor2 }
	case models.FilterSession:
		return func(i int) bool { return t.session[i] == s.Session }
	case models.FilterRangeBin:
		return func(i int) bool { return t.rangeBin[i] == s.RangeBin }
	case "pdHighTaken":
		return func(i int) bool { return t.pdHighTaken[i] == s.PDHighTaken }
	case "pdLowTaken":
		return func(i int) bool { return t.pdLowTaken[i] == s.PDLowTaken }
	case models.FilterPriceAboveNYOpen:
		return func(i int) bool { return t.aboveOpen[i] == s.PriceAboveNYOpen }
	case models.FilterPriceAbovePDNYOpen:
		return func(i int) bool { return t.abovePDOpen[i] == s.PriceAbovePDNYOpen }
	default:
		return nil
	}
}

// ComputeSessionQuantiles derives the 33%/66% relative-range thresholds per
// session from corpus rows, with linear interpolation between order
// statistics.
func ComputeSessionQuantiles(rows []models.CorpusRow) map[models.SessionLabel]models.SessionQuantiles {
	bySession := make(map[models.SessionLabel][]float64)
	for _, r := range rows {
		bySession[r.Session] = append(bySession[r.Session], r.RelRange)
	}
	out := make(map[models.SessionLabel]models.SessionQuantiles, len(bySession))
	for s, xs := range bySession {
		sort.Float64s(xs)
		out[s] = models.SessionQuantiles{
			Q1: quantile(xs, 0.33),
			Q2: quantile(xs, 0.66),
		}
	}
	return out
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
