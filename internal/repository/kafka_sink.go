package repository

import (
	"context"
	"fmt"
	"time"

	"OptForge/internal/domain/models"
	drepo "OptForge/internal/domain/repository"
	pkgkafka "OptForge/pkg/kafka"
	applogger "OptForge/pkg/logger"
)

// KafkaSink implements Sink by publishing each feature row as one message.
// Messages are keyed by the logical table name so a partition sees a table's
// rows in write order.
type KafkaSink struct {
	producer *pkgkafka.Producer
	topic    string
	metrics  drepo.Metrics // optional
	l        *applogger.Logger
}

// kafkaEnvelope frames one row with its addressing metadata.
type kafkaEnvelope struct {
	Group string            `json:"group"`
	Table string            `json:"table"`
	Row   models.FeatureRow `json:"row"`
}

// NewKafkaSink creates a sink publishing to topic. mode suffixes the topic,
// mirroring the output database split of the ClickHouse backend.
func NewKafkaSink(producer *pkgkafka.Producer, topic, mode string) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic + "." + mode,
		l:        applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (s *KafkaSink) SetLogger(l *applogger.Logger) { s.l = l }

// SetMetrics injects a metrics recorder.
func (s *KafkaSink) SetMetrics(m drepo.Metrics) { s.metrics = m }

func (s *KafkaSink) WriteTable(ctx context.Context, group, table string, rows []models.FeatureRow) error {
	start := time.Now()

	msgs := make([]pkgkafka.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, pkgkafka.Message{
			Key:   []byte(table),
			Value: kafkaEnvelope{Group: group, Table: table, Row: row},
		})
	}
	if err := s.producer.PublishBatch(ctx, s.topic, msgs); err != nil {
		return fmt.Errorf("publish table %s: %w", table, err)
	}

	if s.metrics != nil {
		s.metrics.RecordRowsWritten("kafka", table, len(rows))
	}
	s.l.Debug("kafka table published",
		applogger.String("topic", s.topic),
		applogger.String("table", table),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *KafkaSink) Close() error { return s.producer.Close() }
