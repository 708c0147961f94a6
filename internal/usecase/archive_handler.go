package usecase

import (
	"context"
	"encoding/json"
	"time"

	"LevelCast/internal/domain/models"
	domrepo "LevelCast/internal/domain/repository"
	"LevelCast/internal/repository"
	pkgkafka "LevelCast/pkg/kafka"
)

// SnapshotArchiveHandler consumes archived observations off Kafka and writes
// them into the ClickHouse snapshot tables.
type SnapshotArchiveHandler struct {
	topic   string
	store   *repository.CHCorpusStore
	metrics domrepo.Metrics
}

func NewSnapshotArchiveHandler(topic string, store *repository.CHCorpusStore, metrics domrepo.Metrics) *SnapshotArchiveHandler {
	return &SnapshotArchiveHandler{topic: topic, store: store, metrics: metrics}
}

func (h *SnapshotArchiveHandler) Topic() string { return h.topic }

func (h *SnapshotArchiveHandler) Handle(ctx context.Context, b []byte) error {
	var env repository.SnapshotEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		h.metrics.RecordError("archive_unmarshal")
		return err
	}

	tf := domrepo.Timeframe(env.Timeframe)
	row := &models.CorpusRow{
		Snapshot:  env.Snapshot,
		TrueColor: env.TrueColor,
		BarStart:  env.BarStart,
		RelRange:  env.RelRange,
	}

	start := time.Now()
	err := h.store.InsertRows(ctx, tf, []*models.CorpusRow{row})
	h.metrics.RecordLatency("corpus_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("archive_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*SnapshotArchiveHandler)(nil)
