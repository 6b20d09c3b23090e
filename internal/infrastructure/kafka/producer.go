package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.New(errors.ErrCodeMessageQueueError, "kafka producer is closed")

// writerInterface abstracts kafka.Writer for tests.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes envelopes.  Messages are keyed by document id so one
// document's events stay ordered within a partition.
type Producer struct {
	writer writerInterface
	source string
	log    logging.Logger
	closed atomic.Bool
}

// NewProducer builds a Producer over the configured brokers.  source names
// the publishing process in envelopes ("apiserver", "worker").
func NewProducer(cfg config.KafkaConfig, source string, log logging.Logger) *Producer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.ProducerRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer, source: source, log: log.Named("kafka_producer")}
}

// Publish wraps payload in an envelope and writes it to topic, keyed by key.
func (p *Producer) Publish(ctx context.Context, topic, key string, eventType string, payload interface{}) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	envelope, err := NewEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode event envelope")
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  envelope.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, errors.ErrCodeMessageQueueError, "publish %s to %s", eventType, topic)
	}

	p.log.Debug("event published",
		logging.String("topic", topic),
		logging.String("event_type", eventType),
		logging.String("key", key))
	return nil
}

// Close flushes and shuts down the writer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
