package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"palmshell-dispatch/internal/domain"
)

func TestOrderStatus_CanTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to domain.OrderStatus
		ok       bool
	}{
		{domain.OrderPendingPayment, domain.OrderPending, true},
		{domain.OrderPendingPayment, domain.OrderConfirmed, false},
		{domain.OrderPending, domain.OrderConfirmed, true},
		{domain.OrderConfirmed, domain.OrderOnDelivery, true},
		{domain.OrderOnDelivery, domain.OrderCompleted, true},
		{domain.OrderOnDelivery, domain.OrderConfirmed, true},
		{domain.OrderOnDelivery, domain.OrderCancelled, false},
		{domain.OrderCompleted, domain.OrderCancelled, false},
		{domain.OrderCancelled, domain.OrderPending, false},
		{domain.OrderPending, domain.OrderCompleted, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatus_Cancellable(t *testing.T) {
	t.Parallel()

	require.True(t, domain.OrderPendingPayment.Cancellable())
	require.True(t, domain.OrderPending.Cancellable())
	require.True(t, domain.OrderConfirmed.Cancellable())
	require.False(t, domain.OrderOnDelivery.Cancellable())
	require.False(t, domain.OrderCompleted.Cancellable())
	require.False(t, domain.OrderCancelled.Cancellable())
}

func TestOrderStatus_Display(t *testing.T) {
	t.Parallel()

	require.Equal(t, "on_the_way", domain.OrderOnDelivery.Display())
	require.Equal(t, "delivered", domain.OrderCompleted.Display())
	require.Equal(t, "pending", domain.OrderPending.Display())
}

func TestDeliveryStatus_Transitions(t *testing.T) {
	t.Parallel()

	require.True(t, domain.DeliveryAssigned.CanTransition(domain.DeliveryOnTheWay))
	require.True(t, domain.DeliveryOnTheWay.CanTransition(domain.DeliveryPickedUp))
	require.True(t, domain.DeliveryPickedUp.CanTransition(domain.DeliveryCancelled))
	require.True(t, domain.DeliveryAssigned.CanTransition(domain.DeliveryDelivered))
	require.False(t, domain.DeliveryOnDelivery.CanTransition(domain.DeliveryOnTheWay))
	require.False(t, domain.DeliveryDelivered.CanTransition(domain.DeliveryCancelled))
	require.False(t, domain.DeliveryCancelled.CanTransition(domain.DeliveryAssigned))
	require.False(t, domain.DeliveryAssigned.CanTransition("arrived"))
}

func TestDeliveryStatus_OrderMapping(t *testing.T) {
	t.Parallel()

	require.Equal(t, domain.OrderOnDelivery, domain.DeliveryAssigned.OrderStatus())
	require.Equal(t, domain.OrderOnDelivery, domain.DeliveryPickedUp.OrderStatus())
	require.Equal(t, domain.OrderCompleted, domain.DeliveryDelivered.OrderStatus())
	require.Equal(t, domain.OrderConfirmed, domain.DeliveryCancelled.OrderStatus())
}

func TestSumTotal(t *testing.T) {
	t.Parallel()

	items := []domain.OrderItem{
		domain.NewOrderItem(1, "A", 100000, 2),
		domain.NewOrderItem(2, "B", 50000, 1),
	}
	require.Equal(t, int64(200000), items[0].Subtotal)
	require.Equal(t, int64(250000), domain.SumTotal(items))
}

func TestUser_Eligible(t *testing.T) {
	t.Parallel()

	require.True(t, domain.User{Role: domain.RoleDriver, Availability: domain.AvailabilityAvailable}.Eligible())
	require.False(t, domain.User{Role: domain.RoleDriver, Availability: domain.AvailabilityBusy}.Eligible())
	require.False(t, domain.User{Role: domain.RoleMitra, Availability: domain.AvailabilityAvailable}.Eligible())
}
