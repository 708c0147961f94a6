package repository

import (
	"context"
	"time"

	"LevelCast/internal/domain/models"
)

// BarFeed retrieves bars from the market-data collaborator.
type BarFeed interface {
	// RetrieveBars fetches up to Limit bars of the given unit size ending now.
	RetrieveBars(ctx context.Context, p RetrieveParams) ([]models.Bar, error)
	// Latest returns the most recent single bar of the given unit.
	Latest(ctx context.Context, unit Timeframe) (*models.Bar, error)
	Health(ctx context.Context) error
}

// RetrieveParams describes a history window request.
type RetrieveParams struct {
	Unit           Timeframe
	Lookback       time.Duration
	Limit          int
	IncludePartial bool
}

// CorpusStore loads the read-only historical snapshot corpus for a timeframe
// together with its per-session relative-range quantiles.
type CorpusStore interface {
	Load(ctx context.Context, tf Timeframe) ([]models.CorpusRow, map[models.SessionLabel]models.SessionQuantiles, error)
}

// SnapshotArchiver appends live observations so the corpus keeps growing.
// The underlying producer is shared and owned by the application lifecycle.
type SnapshotArchiver interface {
	Archive(ctx context.Context, tf Timeframe, row *models.CorpusRow) error
}

// TickPublisher pushes per-tick payloads to the message bus. The underlying
// producer is shared and owned by the application lifecycle.
type TickPublisher interface {
	PublishTick(ctx context.Context, p *models.TickPayload) error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordTick(tf string)
	RecordError(kind string)
	RecordLastPrice(price float64)
	RecordLatency(op string, seconds float64)
	RecordMatchSize(tf string, n int)
}

// Clock supplies the current wall-clock time in the market timezone. The
// level bootstrap's overnight-window branch depends on it, so it is injected
// rather than read ambiently.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
