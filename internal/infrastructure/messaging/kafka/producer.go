// Package kafka publishes pipeline output rows to a Kafka topic.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/domain/result"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.CodeMessageQueueError, "producer closed")

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RowPublisher is a result.Sink that publishes one message per row, keyed
// by the row's merge key so that updates of a row land on one partition.
type RowPublisher struct {
	writer WriterInterface
	topic  string
	logger logging.Logger
	closed atomic.Bool
	sent   atomic.Int64
	now    func() time.Time
}

var _ result.Sink = (*RowPublisher)(nil)

// NewRowPublisher builds a publisher for cfg.
func NewRowPublisher(cfg config.KafkaConfig, logger logging.Logger) (*RowPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.InvalidParam("kafka brokers required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            maxAttempts,
		BatchSize:              batchSize,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Transport:              &kafka.Transport{DialTimeout: 10 * time.Second},
	}
	return NewRowPublisherWithWriter(writer, topic, logger), nil
}

// NewRowPublisherWithWriter wraps an existing writer.
func NewRowPublisherWithWriter(w WriterInterface, topic string, logger logging.Logger) *RowPublisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RowPublisher{writer: w, topic: topic, logger: logger.Named("kafka"), now: time.Now}
}

// Name implements result.Sink.
func (p *RowPublisher) Name() string { return "kafka" }

// Write publishes every row of t in one batch.
func (p *RowPublisher) Write(ctx context.Context, t *result.Table) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if t.Len() == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, t.Len())
	for _, row := range t.Rows {
		env := NewRowEnvelope(t, row, p.now())
		value, err := env.Encode()
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(env.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "pipeline", Value: []byte(t.Name)},
				{Key: "schema_version", Value: []byte(SchemaVersion)},
			},
			Time: env.Timestamp,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		failed := len(msgs)
		if writeErrs, ok := err.(kafka.WriteErrors); ok {
			failed = writeErrs.Count()
		}
		p.sent.Add(int64(len(msgs) - failed))
		return errors.Wrap(err, errors.CodeMessageQueueError, "publish failed").
			WithDetail(t.Name)
	}
	p.sent.Add(int64(len(msgs)))
	p.logger.Info("rows published",
		logging.String("topic", p.topic), logging.String("pipeline", t.Name), logging.Int("rows", len(msgs)))
	return nil
}

// Sent returns the number of rows published so far.
func (p *RowPublisher) Sent() int64 {
	return p.sent.Load()
}

// Close flushes and closes the writer once.
func (p *RowPublisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka publisher closed", logging.Int64("sent", p.sent.Load()))
	return err
}
