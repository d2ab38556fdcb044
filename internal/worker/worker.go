package worker

import (
	"context"

	"checkout-core/internal/broker"
	"checkout-core/internal/models"
	"checkout-core/internal/util"

	"go.uber.org/zap"
)

// EventLog records which events have already been handled.
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// NotificationWorker consumes order lifecycle events and emits customer
// notifications. The processed-event log makes redelivered messages no-ops.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	eventLog     EventLog
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, eventLog EventLog) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		eventLog: eventLog,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderPaid(w.handleOrderPaid)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// alreadyHandled checks and records the event in the processed log.
func (w *NotificationWorker) alreadyHandled(ctx context.Context, base models.BaseEvent) (bool, error) {
	processed, err := w.eventLog.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return false, err
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", base.EventID))
		return true, nil
	}
	return false, w.eventLog.MarkEventProcessed(ctx, base.EventID, base.EventType)
}

func (w *NotificationWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	done, err := w.alreadyHandled(ctx, event.BaseEvent)
	if err != nil || done {
		return err
	}

	w.logger.Info("Notify: order confirmation",
		zap.Int64("user_id", event.UserID),
		zap.String("order_number", event.OrderNumber),
		zap.Int64("total_amount", event.TotalAmount),
		zap.String("payment_method", string(event.PaymentMethod)))
	return nil
}

func (w *NotificationWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	done, err := w.alreadyHandled(ctx, event.BaseEvent)
	if err != nil || done {
		return err
	}

	w.logger.Info("Notify: payment received",
		zap.Int64("user_id", event.UserID),
		zap.String("order_number", event.OrderNumber),
		zap.Int64("amount", event.Amount))
	return nil
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	done, err := w.alreadyHandled(ctx, event.BaseEvent)
	if err != nil || done {
		return err
	}

	w.logger.Info("Notify: order cancelled",
		zap.Int64("user_id", event.UserID),
		zap.String("order_number", event.OrderNumber),
		zap.String("reason", event.Reason))
	return nil
}
