package logger

import (
	"context"
	"testing"
	"time"
)

type capturePublisher struct {
	ch chan []AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	logs, _ := payload.([]AggregatedLogEntry)
	p.ch <- logs
	return nil
}

func TestCollectorAggregatesAndFlushesOnThreshold(t *testing.T) {
	l, err := New(&Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	pub := &capturePublisher{ch: make(chan []AggregatedLogEntry, 1)}
	l.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer l.RemoveCollector()

	// Same call site twice: one entry, count 2.
	for i := 0; i < 2; i++ {
		l.Error("db down", String("dsn", "x"))
	}
	// Second unique entry crosses the threshold and triggers a flush.
	l.Error("feed stalled")

	select {
	case logs := <-pub.ch:
		if len(logs) != 2 {
			t.Fatalf("flushed %d entries, want 2", len(logs))
		}
		var dbDown *AggregatedLogEntry
		for i := range logs {
			if logs[i].Message == "db down" {
				dbDown = &logs[i]
			}
		}
		if dbDown == nil {
			t.Fatalf("aggregated entry missing: %+v", logs)
		}
		if dbDown.Count != 2 {
			t.Fatalf("count %d, want 2", dbDown.Count)
		}
		if dbDown.Fields["dsn"] != "x" {
			t.Fatalf("fields %v", dbDown.Fields)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no flush after crossing the count threshold")
	}
}
