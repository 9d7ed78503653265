package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"

	"github.com/adiva-s/ResourceRite/internal/checkout"
)

type mockSource struct {
	events      []*checkout.OutboxEvent
	fetchErr    error
	markErr     error
	processedID int64
	markCalls   int
}

func (m *mockSource) GetUnprocessedEvents(_ context.Context, _ int) ([]*checkout.OutboxEvent, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	events := m.events
	m.events = nil
	return events, nil
}

func (m *mockSource) MarkEventAsProcessed(_ context.Context, id int64) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.markCalls++
	m.processedID = id
	return nil
}

type mockWriter struct {
	messages []kafkaGo.Message
	err      error
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func TestProcessUnpublishedEvents(t *testing.T) {
	source := &mockSource{events: []*checkout.OutboxEvent{
		{
			ID:          1,
			AggregateID: "checkout-123",
			EventType:   "purchase.committed",
			Payload:     json.RawMessage(`{"checkout_id":"checkout-123"}`),
			CreatedAt:   time.Now(),
		},
	}}
	writer := &mockWriter{}
	poller := &OutboxPoller{tick: time.Second, repo: source, writer: writer, logger: zap.NewNop()}

	poller.processUnpublishedEvents(context.Background())

	require.Len(t, writer.messages, 1)
	assert.Equal(t, "checkout-123", string(writer.messages[0].Key))
	assert.Equal(t, int64(1), source.processedID)
}

func TestPublishFailureLeavesEventUnprocessed(t *testing.T) {
	source := &mockSource{events: []*checkout.OutboxEvent{
		{ID: 1, AggregateID: "checkout-123", EventType: "purchase.committed", Payload: []byte(`{}`)},
	}}
	writer := &mockWriter{err: errors.New("broker unreachable")}
	poller := &OutboxPoller{tick: time.Second, repo: source, writer: writer, logger: zap.NewNop()}

	poller.processUnpublishedEvents(context.Background())

	assert.Zero(t, source.markCalls, "unpublished event must stay unprocessed for retry")
}

func TestFetchFailureIsNonFatal(t *testing.T) {
	source := &mockSource{fetchErr: errors.New("database connection error")}
	poller := &OutboxPoller{tick: time.Second, repo: source, writer: &mockWriter{}, logger: zap.NewNop()}

	poller.processUnpublishedEvents(context.Background())

	assert.Zero(t, source.markCalls)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}
	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPollerPublishesToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}

	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, "purchase-events")
	time.Sleep(5 * time.Second)

	source := &mockSource{events: []*checkout.OutboxEvent{
		{
			ID:          1,
			AggregateID: "checkout-123",
			EventType:   "purchase.committed",
			Payload:     json.RawMessage(`{"checkout_id":"checkout-123","user_id":"user-456"}`),
			CreatedAt:   time.Now(),
		},
	}}

	poller := NewOutboxPoller(source, "purchase-events", zap.NewNop(), brokerAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    "purchase-events",
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)

	assert.Equal(t, "checkout-123", string(msg.Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "checkout-123", payload["checkout_id"])
	assert.Equal(t, "user-456", payload["user_id"])
	assert.Equal(t, int64(1), source.processedID)
}
