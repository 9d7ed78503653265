// Package fulfillment applies delivery-status updates coming from the
// external fulfillment pipeline. It is the only writer of delivery status;
// everything else about a purchase record is immutable after commit.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/adiva-s/ResourceRite/internal/domain"
	"github.com/adiva-s/ResourceRite/internal/ledger"
)

// DeliveryEvent is the Kafka payload shape published by the fulfillment
// pipeline when a shipment advances.
type DeliveryEvent struct {
	PurchaseID string `json:"purchase_id"`
	Status     string `json:"status"`
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	ledger ledger.Ledger
	reader messageReader
	logger *zap.Logger
}

func NewConsumer(led ledger.Ledger, topic, groupID string, logger *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{ledger: led, reader: reader, logger: logger}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("error reading delivery event", zap.Error(err))
		return
	}

	var event DeliveryEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.logger.Error("error parsing delivery event", zap.Error(err))
		return
	}

	purchaseID, err := uuid.Parse(event.PurchaseID)
	if err != nil {
		c.logger.Error("invalid purchase id in delivery event",
			zap.String("purchase_id", event.PurchaseID), zap.Error(err))
		return
	}

	status := domain.DeliveryStatus(event.Status)
	if !status.Valid() {
		c.logger.Error("unknown delivery status in event",
			zap.String("status", event.Status))
		return
	}

	if err := c.ledger.UpdateDeliveryStatus(ctx, purchaseID, status); err != nil {
		if errors.Is(err, ledger.ErrPurchaseNotFound) {
			c.logger.Warn("delivery event for unknown purchase, skipping",
				zap.Stringer("purchase_id", purchaseID))
			return
		}
		c.logger.Error("failed to update delivery status",
			zap.Stringer("purchase_id", purchaseID), zap.Error(err))
		return
	}

	c.logger.Info("delivery status updated",
		zap.Stringer("purchase_id", purchaseID),
		zap.String("status", event.Status))
}
