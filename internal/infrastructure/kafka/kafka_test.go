package kafka

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaselens/leaselens/internal/domain/document"
	"github.com/leaselens/leaselens/internal/infrastructure/logging"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerPublishWrapsEnvelope(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, source: "apiserver", log: logging.NewNopLogger()}

	payload := AnalyzeTaskPayload{
		DocumentID: "doc-1",
		Metadata:   document.LeaseMetadata{MonthlyRent: "$2,400"},
	}
	require.NoError(t, p.Publish(context.Background(), TopicDocumentAnalyze, "doc-1", "analysis.requested", payload))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, TopicDocumentAnalyze, msg.Topic)
	assert.Equal(t, "doc-1", string(msg.Key))

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.Value, &envelope))
	assert.Equal(t, "analysis.requested", envelope.EventType)
	assert.Equal(t, "apiserver", envelope.Source)
	assert.Equal(t, "1.0", envelope.SchemaVersion)
	assert.NotEmpty(t, envelope.EventID)

	var decoded AnalyzeTaskPayload
	require.NoError(t, envelope.DecodePayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestProducerPublishAfterClose(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, source: "apiserver", log: logging.NewNopLogger()}
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), TopicDocumentAnalyze, "doc-1", "analysis.requested", AnalyzeTaskPayload{})
	assert.ErrorIs(t, err, ErrProducerClosed)
}

type fakeReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	pos       int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.pos >= len(r.queue) {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[r.pos]
	r.pos++
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func envelopeMessage(t *testing.T, eventType string, payload interface{}) kafka.Message {
	t.Helper()
	envelope, err := NewEnvelope(eventType, "test", payload)
	require.NoError(t, err)
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	return kafka.Message{Topic: TopicDocumentAnalyze, Value: data}
}

func TestConsumerDispatchesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		envelopeMessage(t, "analysis.requested", AnalyzeTaskPayload{DocumentID: "doc-1"}),
		envelopeMessage(t, "analysis.requested", AnalyzeTaskPayload{DocumentID: "doc-2"}),
	}}
	c := &Consumer{reader: reader, log: logging.NewNopLogger()}

	var seen []string
	err := c.Run(context.Background(), func(ctx context.Context, envelope *EventEnvelope) error {
		var task AnalyzeTaskPayload
		if err := envelope.DecodePayload(&task); err != nil {
			return err
		}
		seen = append(seen, task.DocumentID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1", "doc-2"}, seen)
	assert.Len(t, reader.committed, 2)
}

func TestConsumerLeavesFailedMessagesUncommitted(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		envelopeMessage(t, "analysis.requested", AnalyzeTaskPayload{DocumentID: "doc-1"}),
	}}
	c := &Consumer{reader: reader, log: logging.NewNopLogger()}

	err := c.Run(context.Background(), func(ctx context.Context, envelope *EventEnvelope) error {
		return goerrors.New("transient failure")
	})
	require.NoError(t, err)
	assert.Empty(t, reader.committed)
}

func TestConsumerCommitsPoisonMessages(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: TopicDocumentAnalyze, Value: []byte("not json")},
	}}
	c := &Consumer{reader: reader, log: logging.NewNopLogger()}

	var handled int
	err := c.Run(context.Background(), func(ctx context.Context, envelope *EventEnvelope) error {
		handled++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, handled, "poison message must not reach the handler")
	assert.Len(t, reader.committed, 1)
}
