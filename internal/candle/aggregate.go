package candle

import (
	"sort"
	"time"

	"LevelCast/internal/domain/models"
)

// anchorHour is the hour-of-day the 4h grid is pinned to.
const anchorHour = 2

// AggregateTo4H regroups fine bars into 4-hour buckets anchored at 02:00
// local time. The input may arrive in any order. Buckets are returned sorted
// by anchor time DESCENDING: index 0 is the current (possibly forming)
// bucket, index 1 the previous, and so on. Downstream classification indexes
// by position, so the ordering must hold.
func AggregateTo4H(bars []models.Bar) []models.Bar {
	grouped := make(map[time.Time][]models.Bar)
	for _, b := range bars {
		grouped[bucketAnchor(b.Time)] = append(grouped[bucketAnchor(b.Time)], b)
	}

	anchors := make([]time.Time, 0, len(grouped))
	for a := range grouped {
		anchors = append(anchors, a)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].After(anchors[j]) })

	out := make([]models.Bar, 0, len(anchors))
	for _, a := range anchors {
		group := grouped[a]
		sort.Slice(group, func(i, j int) bool { return group[i].Time.Before(group[j].Time) })

		agg := models.Bar{
			Time:  a,
			Open:  group[0].Open,
			High:  group[0].High,
			Low:   group[0].Low,
			Close: group[len(group)-1].Close,
		}
		for _, b := range group {
			if b.High > agg.High {
				agg.High = b.High
			}
			if b.Low < agg.Low {
				agg.Low = b.Low
			}
			agg.Volume += b.Volume
		}
		out = append(out, agg)
	}
	return out
}

// bucketAnchor snaps a bar time down to the largest 4h anchor <= t. When the
// snap underflows past midnight the bucket belongs to the previous calendar
// day.
func bucketAnchor(t time.Time) time.Time {
	delta := (t.Hour() - anchorHour) % 4
	if delta < 0 {
		delta += 4
	}
	hour := t.Hour() - delta
	day := t
	if hour < 0 {
		hour += 24
		day = t.AddDate(0, 0, -1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, t.Location())
}
