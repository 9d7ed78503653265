package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adiva-s/ResourceRite/internal/domain"
	"github.com/adiva-s/ResourceRite/internal/ledger"
)

type fakeReader struct {
	messages []kafka.Message
	err      error
}

func (r *fakeReader) ReadMessage(_ context.Context) (kafka.Message, error) {
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.messages[0]
	r.messages = r.messages[1:]
	return m, nil
}

func (r *fakeReader) Close() error { return nil }

type fakeLedger struct {
	updates   map[uuid.UUID]domain.DeliveryStatus
	updateErr error
}

func (l *fakeLedger) AppendPurchases(context.Context, string, uuid.UUID, []domain.PurchaseRecord) error {
	return nil
}

func (l *fakeLedger) ListByUser(context.Context, string) ([]domain.PurchaseRecord, error) {
	return nil, nil
}

func (l *fakeLedger) UpdateDeliveryStatus(_ context.Context, purchaseID uuid.UUID, status domain.DeliveryStatus) error {
	if l.updateErr != nil {
		return l.updateErr
	}
	if l.updates == nil {
		l.updates = make(map[uuid.UUID]domain.DeliveryStatus)
	}
	l.updates[purchaseID] = status
	return nil
}

func (l *fakeLedger) RunMigrations(*ledger.Credentials) error { return nil }
func (l *fakeLedger) Close() error                            { return nil }

func message(t *testing.T, event DeliveryEvent) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.PurchaseID), Value: payload}
}

func TestProcessMessageUpdatesDeliveryStatus(t *testing.T) {
	purchaseID := uuid.New()
	led := &fakeLedger{}
	c := &Consumer{
		ledger: led,
		reader: &fakeReader{messages: []kafka.Message{
			message(t, DeliveryEvent{PurchaseID: purchaseID.String(), Status: "Shipped"}),
		}},
		logger: zap.NewNop(),
	}

	c.processMessage(context.Background())

	assert.Equal(t, domain.DeliveryStatusShipped, led.updates[purchaseID])
}

func TestProcessMessageSkipsMalformedPayload(t *testing.T) {
	led := &fakeLedger{}
	c := &Consumer{
		ledger: led,
		reader: &fakeReader{messages: []kafka.Message{
			{Value: []byte(`{not json`)},
		}},
		logger: zap.NewNop(),
	}

	c.processMessage(context.Background())

	assert.Empty(t, led.updates)
}

func TestProcessMessageSkipsInvalidPurchaseID(t *testing.T) {
	led := &fakeLedger{}
	c := &Consumer{
		ledger: led,
		reader: &fakeReader{messages: []kafka.Message{
			message(t, DeliveryEvent{PurchaseID: "not-a-uuid", Status: "Shipped"}),
		}},
		logger: zap.NewNop(),
	}

	c.processMessage(context.Background())

	assert.Empty(t, led.updates)
}

func TestProcessMessageSkipsUnknownStatus(t *testing.T) {
	led := &fakeLedger{}
	c := &Consumer{
		ledger: led,
		reader: &fakeReader{messages: []kafka.Message{
			message(t, DeliveryEvent{PurchaseID: uuid.NewString(), Status: "TELEPORTED"}),
		}},
		logger: zap.NewNop(),
	}

	c.processMessage(context.Background())

	assert.Empty(t, led.updates)
}

func TestProcessMessageToleratesUnknownPurchase(t *testing.T) {
	led := &fakeLedger{updateErr: ledger.ErrPurchaseNotFound}
	c := &Consumer{
		ledger: led,
		reader: &fakeReader{messages: []kafka.Message{
			message(t, DeliveryEvent{PurchaseID: uuid.NewString(), Status: "Delivered"}),
		}},
		logger: zap.NewNop(),
	}

	// must not panic or retry forever
	c.processMessage(context.Background())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Consumer{
		ledger: &fakeLedger{},
		reader: &fakeReader{err: errors.New("should not be read")},
		logger: zap.NewNop(),
	}

	// returns immediately on a cancelled context
	c.Run(ctx)
}
