package repository

import (
	"context"
	"fmt"
	"time"

	"LevelCast/internal/domain/models"
	"LevelCast/internal/domain/repository"
	pkgkafka "LevelCast/pkg/kafka"
)

// KafkaTickPublisher implements TickPublisher for Kafka. Payloads are keyed
// by contract so one instrument stays on one partition.
type KafkaTickPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaTickPublisher creates a Kafka tick publisher.
func NewKafkaTickPublisher(producer *pkgkafka.Producer, topic string) repository.TickPublisher {
	return &KafkaTickPublisher{producer: producer, topic: topic}
}

func (p *KafkaTickPublisher) PublishTick(ctx context.Context, payload *models.TickPayload) error {
	if payload == nil {
		return fmt.Errorf("tick payload is nil")
	}
	return p.producer.Publish(ctx, p.topic, []byte(payload.Contract), payload)
}

// SnapshotEnvelope is the wire form of one archived observation.
type SnapshotEnvelope struct {
	Timeframe string `json:"tf"`
	models.Snapshot
	TrueColor models.ColorLabel `json:"trueColor"`
	BarStart  time.Time         `json:"bar_start"`
	RelRange  float64           `json:"rel_range"`
}

// KafkaSnapshotArchiver implements SnapshotArchiver by publishing resolved
// observations to the archive topic; the archive consumer drains them into
// ClickHouse.
type KafkaSnapshotArchiver struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSnapshotArchiver creates a Kafka snapshot archiver.
func NewKafkaSnapshotArchiver(producer *pkgkafka.Producer, topic string) repository.SnapshotArchiver {
	return &KafkaSnapshotArchiver{producer: producer, topic: topic}
}

func (a *KafkaSnapshotArchiver) Archive(ctx context.Context, tf repository.Timeframe, row *models.CorpusRow) error {
	if row == nil {
		return fmt.Errorf("corpus row is nil")
	}
	env := SnapshotEnvelope{
		Timeframe: string(tf),
		Snapshot:  row.Snapshot,
		TrueColor: row.TrueColor,
		BarStart:  row.BarStart,
		RelRange:  row.RelRange,
	}
	key := fmt.Sprintf("%s-%d", tf, row.BarStart.Unix())
	return a.producer.Publish(ctx, a.topic, []byte(key), env)
}

// LogPublisher adapts the shared producer to the logger's aggregated-log
// sink.
type LogPublisher struct {
	producer *pkgkafka.Producer
}

// NewLogPublisher creates a publisher for aggregated error logs.
func NewLogPublisher(producer *pkgkafka.Producer) *LogPublisher {
	return &LogPublisher{producer: producer}
}

func (p *LogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
