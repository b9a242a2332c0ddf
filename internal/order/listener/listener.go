package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/glambeauty/order-service/internal/model"
	"github.com/glambeauty/order-service/internal/order"
	"github.com/glambeauty/order-service/internal/order/dto"
	"github.com/glambeauty/order-service/internal/platform/broker"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentListener consumes PaymentRecorded events from the payments
// service and applies them to orders, which is how confirmed orders
// become shippable without an operator touching the API.
type PaymentListener struct {
	consumer *broker.KafkaConsumer
	orders   order.UseCase
	logger   *zap.Logger
}

func NewPaymentListener(consumer *broker.KafkaConsumer, orders order.UseCase, logger *zap.Logger) *PaymentListener {
	return &PaymentListener{
		consumer: consumer,
		orders:   orders,
		logger:   logger,
	}
}

type eventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type paymentRecordedPayload struct {
	OrderID          string           `json:"order_id"`
	OwnerID          string           `json:"owner_id"`
	Amount           decimal.Decimal  `json:"amount"`
	TotalPaid        *decimal.Decimal `json:"total_paid"`
	PaymentStatus    string           `json:"payment_status"`
	PaymentReference string           `json:"payment_reference"`
}

// Run blocks reading messages until ctx is cancelled.
func (l *PaymentListener) Run(ctx context.Context) {
	l.logger.Info("payment listener started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("payment listener stopped")
			return
		default:
		}

		msg, err := l.consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("payment listener stopped")
				return
			}
			l.logger.Error("read payment message", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if err := l.processMessage(ctx, msg); err != nil {
			l.logger.Error("process payment message",
				zap.String("key", string(msg.Key)), zap.Error(err))
		}
	}
}

func (l *PaymentListener) processMessage(ctx context.Context, msg kafka.Message) error {
	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return err
	}
	if envelope.EventType != "PaymentRecorded" {
		l.logger.Debug("skipping event", zap.String("event_type", envelope.EventType))
		return nil
	}

	var payload paymentRecordedPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return err
	}

	input := &dto.UpdatePaymentInput{
		OwnerID:          payload.OwnerID,
		OrderID:          payload.OrderID,
		PaymentStatus:    model.PaymentStatus(payload.PaymentStatus),
		PaymentReference: payload.PaymentReference,
	}
	if payload.TotalPaid != nil {
		input.AmountPaid = payload.TotalPaid
	} else if payload.Amount.IsPositive() {
		input.AmountPaid = &payload.Amount
	}

	o, err := l.orders.UpdatePayment(ctx, input)
	if err != nil {
		return err
	}

	l.logger.Info("payment applied",
		zap.String("event_id", envelope.EventID),
		zap.String("order_id", o.ID),
		zap.String("payment_status", string(o.PaymentStatus)))
	return nil
}
