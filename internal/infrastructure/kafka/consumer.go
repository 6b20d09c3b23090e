package kafka

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"io"

	"github.com/segmentio/kafka-go"

	"github.com/leaselens/leaselens/internal/config"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// Handler processes one decoded envelope.  A returned error leaves the
// message uncommitted so it is redelivered.
type Handler func(ctx context.Context, envelope *EventEnvelope) error

// readerInterface abstracts kafka.Reader for tests.
type readerInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic within a consumer group and dispatches each
// message to a Handler.
type Consumer struct {
	reader readerInterface
	log    logging.Logger
}

// NewConsumer builds a Consumer for topic in the configured group.
func NewConsumer(cfg config.KafkaConfig, topic string, log logging.Logger) *Consumer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	startOffset := kafka.LastOffset
	if cfg.AutoOffsetReset == "earliest" {
		startOffset = kafka.FirstOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       topic,
		StartOffset: startOffset,
	})
	return &Consumer{reader: reader, log: log.Named("kafka_consumer")}
}

// Run fetches and handles messages until ctx is canceled or the reader is
// closed.  Undecodable messages are logged and committed so they do not
// wedge the partition; handler failures stay uncommitted for redelivery.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if goerrors.Is(err, context.Canceled) || goerrors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeMessageQueueError, "fetch message")
		}

		var envelope EventEnvelope
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			c.log.Error("dropping undecodable message",
				logging.String("topic", msg.Topic),
				logging.Int("partition", msg.Partition),
				logging.Err(err))
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return errors.Wrap(err, errors.ErrCodeMessageQueueError, "commit poison message")
			}
			continue
		}

		if err := handle(ctx, &envelope); err != nil {
			c.log.Error("handler failed, message will be redelivered",
				logging.String("topic", msg.Topic),
				logging.String("event_id", envelope.EventID),
				logging.Err(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, errors.ErrCodeMessageQueueError, "commit message")
		}
	}
}

// Close shuts down the underlying reader, which also unblocks Run.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
