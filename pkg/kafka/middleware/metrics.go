package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"stayhub/pkg/kafka"
	"stayhub/pkg/logger"
)

// Metrics holds producer counters. Safe for concurrent use.
type Metrics struct {
	published     atomic.Int64
	failed        atomic.Int64
	durationTotal atomic.Int64 // Nanoseconds
}

type Snapshot struct {
	Published          int64
	Failed             int64
	AvgPublishDuration time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() Snapshot {
	published := m.published.Load()
	failed := m.failed.Load()
	s := Snapshot{Published: published, Failed: failed}
	if total := published + failed; total > 0 {
		s.AvgPublishDuration = time.Duration(m.durationTotal.Load() / total)
	}
	return s
}

// LogMetrics writes the current counters, typically on shutdown.
func (m *Metrics) LogMetrics(log *logger.Logger) {
	s := m.Snapshot()
	log.Info("Kafka producer metrics",
		"published", s.Published,
		"failed", s.Failed,
		"avg_publish_duration", s.AvgPublishDuration,
	)
}

// MetricsProducerMiddleware tracks producer metrics
func MetricsProducerMiddleware(m *Metrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		m.durationTotal.Add(int64(time.Since(start)))
		if err != nil {
			m.failed.Add(1)
		} else {
			m.published.Add(1)
		}

		return err
	}
}
