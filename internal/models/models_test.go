package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancelled, true},

		{OrderStatusShipped, OrderStatusProcessing, false},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusCancelled, OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, OrderStatusDelivered.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatusPending.Terminal())
	assert.False(t, OrderStatusShipped.Terminal())
}

func TestInsufficientStockErrorUnwraps(t *testing.T) {
	err := &InsufficientStockError{ProductName: "Widget"}
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "insufficient stock for Widget", err.Error())
}

func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		allowed  bool
	}{
		{PaymentStatusPending, PaymentStatusPaid, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusFailed, PaymentStatusPaid, true},
		{PaymentStatusPaid, PaymentStatusRefunded, true},

		{PaymentStatusPaid, PaymentStatusPending, false},
		{PaymentStatusPaid, PaymentStatusFailed, false},
		{PaymentStatusRefunded, PaymentStatusPaid, false},
		{PaymentStatusRefunded, PaymentStatusPending, false},
		{PaymentStatusPaid, PaymentStatusPaid, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestPaymentMethodValid(t *testing.T) {
	assert.True(t, PaymentMethodOnline.Valid())
	assert.True(t, PaymentMethodCOD.Valid())
	assert.False(t, PaymentMethod("WIRE").Valid())
}
