package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"checkout-core/internal/models"
	"checkout-core/internal/util"

	"go.uber.org/zap"
)

// PaymentStore is the slice of persistence the reconciler needs.
type PaymentStore interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	MarkOrderPaid(ctx context.Context, orderID int64, providerOrderRef, providerPaymentRef string) (bool, error)
	ClearCart(ctx context.Context, userID int64) error
}

// PaymentPublisher emits payment outcome events.
type PaymentPublisher interface {
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}

// PaymentService reconciles external payment confirmations against pending
// orders. Each order's payment state transitions exactly once; replays of a
// valid confirmation are absorbed as no-ops.
type PaymentService struct {
	store     PaymentStore
	publisher PaymentPublisher
	secret    []byte
	logger    *zap.Logger
}

// NewPaymentService creates a new payment reconciler
func NewPaymentService(store PaymentStore, publisher PaymentPublisher, webhookSecret string) *PaymentService {
	return &PaymentService{
		store:     store,
		publisher: publisher,
		secret:    []byte(webhookSecret),
		logger:    util.GetLogger(),
	}
}

// ComputeSignature returns the hex HMAC-SHA256 over
// "providerOrderRef|providerPaymentRef" with the shared secret. Exported so
// tests and tooling can build valid payloads.
func (ps *PaymentService) ComputeSignature(providerOrderRef, providerPaymentRef string) string {
	mac := hmac.New(sha256.New, ps.secret)
	mac.Write([]byte(providerOrderRef + "|" + providerPaymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyOnlinePayment validates the gateway confirmation and transitions the
// order to PAID/PROCESSING. The signature is checked in constant time before
// any state is touched; the PAID transition itself is a conditional write so
// two concurrent verifications cannot both take effect.
func (ps *PaymentService) VerifyOnlinePayment(ctx context.Context, orderID int64, providerOrderRef, providerPaymentRef, signature string) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "PaymentService.VerifyOnlinePayment", orderID)
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	expected := ps.ComputeSignature(providerOrderRef, providerPaymentRef)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		util.PaymentsRejectedTotal.WithLabelValues("invalid_signature").Inc()
		// Logged as a potential tampering attempt; the client only ever sees
		// a generic verification failure.
		ps.logger.Warn("Payment signature mismatch",
			zap.Int64("order_id", orderID),
			zap.String("provider_order_ref", providerOrderRef))

		failed := &models.PaymentFailedEvent{
			BaseEvent: newBaseEvent(models.EventTypePaymentFailed),
			OrderID:   orderID,
			Reason:    "signature verification failed",
		}
		if pubErr := ps.publisher.PublishPaymentFailed(ctx, failed); pubErr != nil {
			ps.logger.Error("Failed to publish PaymentFailed event", zap.Error(pubErr))
		}
		return nil, models.ErrInvalidSignature
	}

	if order.PaymentMethod != models.PaymentMethodOnline {
		return nil, fmt.Errorf("%w: order %d is not an online payment", models.ErrInvalidStatus, orderID)
	}

	// A cancelled order has its stock released already; a late gateway
	// callback must not record money against it.
	if order.Status == models.OrderStatusCancelled {
		util.PaymentsRejectedTotal.WithLabelValues("order_cancelled").Inc()
		ps.logger.Warn("Payment confirmation for cancelled order rejected",
			zap.Int64("order_id", orderID),
			zap.String("provider_payment_ref", providerPaymentRef))
		return nil, fmt.Errorf("%w: order %d is cancelled", models.ErrInvalidStatus, orderID)
	}

	paid, err := ps.store.MarkOrderPaid(ctx, orderID, providerOrderRef, providerPaymentRef)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	if !paid {
		// Lost the conditional write. A replay of a valid confirmation lands
		// here and must succeed without any further effect.
		current, err := ps.store.GetOrderByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.PaymentStatus == models.PaymentStatusPaid {
			ps.logger.Info("Payment already verified, replay absorbed",
				zap.Int64("order_id", orderID))
			return current, nil
		}
		if current.Status == models.OrderStatusCancelled {
			util.PaymentsRejectedTotal.WithLabelValues("order_cancelled").Inc()
			return nil, fmt.Errorf("%w: order %d is cancelled", models.ErrInvalidStatus, orderID)
		}
		util.PaymentsRejectedTotal.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("%w: order %d payment is %s", models.ErrConflict, orderID, current.PaymentStatus)
	}

	// Online carts survive until payment confirms, then go.
	if err := ps.store.ClearCart(ctx, order.UserID); err != nil {
		ps.logger.Error("Failed to clear cart after payment",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}

	util.PaymentsVerifiedTotal.Inc()
	ps.logger.Info("Payment verified",
		zap.Int64("order_id", orderID),
		zap.String("provider_payment_ref", providerPaymentRef))

	event := &models.OrderPaidEvent{
		BaseEvent:          newBaseEvent(models.EventTypeOrderPaid),
		OrderID:            orderID,
		OrderNumber:        order.OrderNumber,
		UserID:             order.UserID,
		Amount:             order.TotalAmount,
		ProviderPaymentRef: providerPaymentRef,
	}
	if err := ps.publisher.PublishOrderPaid(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	return ps.store.GetOrderByID(ctx, orderID)
}

// ConfirmCODPayment records cash collection for a COD order, transitioning
// payment state PENDING -> PAID exactly once. Confirming an already-paid
// order is a no-op.
func (ps *PaymentService) ConfirmCODPayment(ctx context.Context, orderID int64) error {
	ctx, span := util.StartOrderSpan(ctx, "PaymentService.ConfirmCODPayment", orderID)
	defer span.End()

	order, err := ps.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.PaymentMethod != models.PaymentMethodCOD {
		return fmt.Errorf("%w: order %d is not cash on delivery", models.ErrInvalidStatus, orderID)
	}

	paid, err := ps.store.MarkOrderPaid(ctx, orderID, "", "")
	if err != nil {
		return fmt.Errorf("failed to mark order paid: %w", err)
	}
	if !paid {
		current, err := ps.store.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if current.PaymentStatus == models.PaymentStatusPaid {
			return nil
		}
		return fmt.Errorf("%w: order %d payment is %s", models.ErrConflict, orderID, current.PaymentStatus)
	}

	util.PaymentsVerifiedTotal.Inc()
	ps.logger.Info("COD payment confirmed", zap.Int64("order_id", orderID))

	event := &models.OrderPaidEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPaid),
		OrderID:     orderID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Amount:      order.TotalAmount,
	}
	if err := ps.publisher.PublishOrderPaid(ctx, event); err != nil {
		ps.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	return nil
}
