package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"LevelCast/internal/domain/models"
	domrepo "LevelCast/internal/domain/repository"
	"LevelCast/internal/markov"
	pkgch "LevelCast/pkg/clickhouse"
	applogger "LevelCast/pkg/logger"
)

// CHCorpusStore implements CorpusStore backed by ClickHouse. It also carries
// the insert path used by the archive consumer, so live observations land in
// the same tables the next process start loads from.
type CHCorpusStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHCorpusStore(ch *pkgch.Client) *CHCorpusStore {
	return &CHCorpusStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHCorpusStore) SetLogger(l *applogger.Logger) { s.l = l }

// SchemaStatements returns idempotent DDL for the snapshot tables.
func SchemaStatements() []string {
	stmts := []string{"CREATE DATABASE IF NOT EXISTS levelcast"}
	for _, tf := range []domrepo.Timeframe{domrepo.TF1h, domrepo.TF4h} {
		table, _ := snapshotTable(tf)
		stmts = append(stmts, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            bar_start DateTime('America/New_York'),
            minute Int32,
            curr_color LowCardinality(String),
            prev_color_1 LowCardinality(String),
            prev_color_2 LowCardinality(String),
            session LowCardinality(String),
            range_bin LowCardinality(String),
            pd_high_taken UInt8,
            pd_low_taken UInt8,
            price_above_ny_open UInt8,
            price_above_pd_ny_open UInt8,
            true_color LowCardinality(String),
            rel_range Float64
        ) ENGINE = MergeTree()
        ORDER BY (bar_start, minute)
    `, table))
	}
	return stmts
}

// Load reads the whole corpus for a timeframe and derives the per-session
// relative-range quantiles from it.
func (s *CHCorpusStore) Load(ctx context.Context, tf domrepo.Timeframe) ([]models.CorpusRow, map[models.SessionLabel]models.SessionQuantiles, error) {
	start := time.Now()
	table, err := snapshotTable(tf)
	if err != nil {
		return nil, nil, err
	}
	const qtpl = `
        SELECT bar_start, minute, curr_color, prev_color_1, prev_color_2,
               session, range_bin, pd_high_taken, pd_low_taken,
               price_above_ny_open, price_above_pd_ny_open, true_color, rel_range
        FROM %s
        ORDER BY bar_start ASC, minute ASC
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse corpus query error",
				applogger.String("table", table),
				applogger.Error(err),
			)
		}
		return nil, nil, fmt.Errorf("load corpus: %w", err)
	}
	defer rows.Close()

	out := make([]models.CorpusRow, 0, 4096)
	for rows.Next() {
		var (
			r                                     models.CorpusRow
			currColor, prev1, prev2               string
			session, rangeBin, trueColor          string
			pdHigh, pdLow, aboveOpen, abovePDOpen uint8
		)
		if err := rows.Scan(&r.BarStart, &r.Minute, &currColor, &prev1, &prev2,
			&session, &rangeBin, &pdHigh, &pdLow, &aboveOpen, &abovePDOpen,
			&trueColor, &r.RelRange); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse corpus scan error",
					applogger.String("table", table),
					applogger.Error(err),
				)
			}
			return nil, nil, fmt.Errorf("scan corpus row: %w", err)
		}
		r.CurrColor = models.ColorLabel(currColor)
		r.PrevColor1 = models.ColorLabel(prev1)
		r.PrevColor2 = models.ColorLabel(prev2)
		r.Session = models.SessionLabel(session)
		r.RangeBin = models.RangeBin(rangeBin)
		r.TrueColor = models.ColorLabel(trueColor)
		r.PDHighTaken = pdHigh != 0
		r.PDLowTaken = pdLow != 0
		r.PriceAboveNYOpen = aboveOpen != 0
		r.PriceAbovePDNYOpen = abovePDOpen != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("corpus rows: %w", err)
	}

	quantiles := markov.ComputeSessionQuantiles(out)
	if s.l != nil {
		s.l.Info("corpus loaded",
			applogger.String("table", table),
			applogger.Int("rows", len(out)),
			applogger.Int("sessions", len(quantiles)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, quantiles, nil
}

// InsertRows appends resolved observations. Used by the archive consumer.
func (s *CHCorpusStore) InsertRows(ctx context.Context, tf domrepo.Timeframe, batch []*models.CorpusRow) error {
	if len(batch) == 0 {
		return nil
	}
	table, err := snapshotTable(tf)
	if err != nil {
		return err
	}

	values := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*13)
	for _, r := range batch {
		if r == nil {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.BarStart,
			r.Minute,
			string(r.CurrColor),
			string(r.PrevColor1),
			string(r.PrevColor2),
			string(r.Session),
			string(r.RangeBin),
			boolU8(r.PDHighTaken),
			boolU8(r.PDLowTaken),
			boolU8(r.PriceAboveNYOpen),
			boolU8(r.PriceAbovePDNYOpen),
			string(r.TrueColor),
			r.RelRange,
		)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (bar_start, minute, curr_color, prev_color_1, prev_color_2,
        session, range_bin, pd_high_taken, pd_low_taken, price_above_ny_open,
        price_above_pd_ny_open, true_color, rel_range) VALUES %s`,
		table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert corpus rows: %w", err)
	}
	return nil
}

// Health performs a connectivity check.
func (s *CHCorpusStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func snapshotTable(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1h:
		return "levelcast.snapshots_1h", nil
	case domrepo.TF4h:
		return "levelcast.snapshots_4h", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

func boolU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
