package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/domain"
)

func TestCreateOrder_TwoProducts(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p1 := e.seedProduct(t, ctx, "Aspirin", "2.50", 10)
	p2 := e.seedProduct(t, ctx, "Ibuprofen", "4", 7)

	order, err := e.lifecycle.CreateOrder(ctx, p1.ClientID, []ItemRequest{
		{ProductID: p1.ID, Quantity: 4},
		{ProductID: p2.ID, Quantity: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	require.Len(t, order.Items, 2)
	assert.True(t, order.Total.Equal(mustDec(t, "18")), "2.50*4 + 4*2, got %s", order.Total)
	assert.EqualValues(t, 6, e.stockOf(t, ctx, p1.ID))
	assert.EqualValues(t, 5, e.stockOf(t, ctx, p2.ID))
}

func TestCreateOrder_Validation(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "2", 10)

	_, err := e.lifecycle.CreateOrder(ctx, 0, []ItemRequest{{ProductID: p.ID, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = e.lifecycle.CreateOrder(ctx, p.ClientID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = e.lifecycle.CreateOrder(ctx, p.ClientID, []ItemRequest{{ProductID: p.ID, Quantity: -1}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = e.lifecycle.CreateOrder(ctx, 999, []ItemRequest{{ProductID: p.ID, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// откат транзакции: вторая позиция не проходит по остатку, заказ и
// списание по первой позиции должны исчезнуть целиком
func TestCreateOrder_RollbackOnInsufficientStock(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p1 := e.seedProduct(t, ctx, "Aspirin", "2", 10)
	p2 := e.seedProduct(t, ctx, "Ibuprofen", "4", 1)

	_, err := e.lifecycle.CreateOrder(ctx, p1.ClientID, []ItemRequest{
		{ProductID: p1.ID, Quantity: 4},
		{ProductID: p2.ID, Quantity: 3},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.EqualValues(t, 10, e.stockOf(t, ctx, p1.ID), "first reservation rolled back")
	assert.EqualValues(t, 1, e.stockOf(t, ctx, p2.ID))

	_, err = e.lifecycle.GetOrder(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound, "order shell rolled back")
}

func TestCancelOrder_RestocksAllItems(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p1 := e.seedProduct(t, ctx, "Aspirin", "2", 10)
	p2 := e.seedProduct(t, ctx, "Ibuprofen", "4", 7)
	order, err := e.lifecycle.CreateOrder(ctx, p1.ClientID, []ItemRequest{
		{ProductID: p1.ID, Quantity: 4},
		{ProductID: p2.ID, Quantity: 2},
	})
	require.NoError(t, err)

	cancelled, err := e.lifecycle.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.EqualValues(t, 10, e.stockOf(t, ctx, p1.ID))
	assert.EqualValues(t, 7, e.stockOf(t, ctx, p2.ID))

	// позиции остаются для истории
	got, err := e.lifecycle.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	// повторная отмена ничего не возвращает повторно
	_, err = e.lifecycle.CancelOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyCancelled)
	assert.EqualValues(t, 10, e.stockOf(t, ctx, p1.ID))
	assert.EqualValues(t, 7, e.stockOf(t, ctx, p2.ID))
}

func TestCancelOrder_NotFound(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, err := e.lifecycle.CancelOrder(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "2", 10)

	newOrder := func(t *testing.T) *domain.Order {
		o, err := e.lifecycle.CreateOrder(ctx, p.ClientID, []ItemRequest{{ProductID: p.ID, Quantity: 1}})
		require.NoError(t, err)
		return o
	}

	t.Run("created to invoiced", func(t *testing.T) {
		o := newOrder(t)
		got, err := e.lifecycle.UpdateStatus(ctx, o.ID, domain.OrderStatusInvoiced)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusInvoiced, got.Status)
	})

	t.Run("invoiced is terminal", func(t *testing.T) {
		o := newOrder(t)
		_, err := e.lifecycle.UpdateStatus(ctx, o.ID, domain.OrderStatusInvoiced)
		require.NoError(t, err)
		_, err = e.lifecycle.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = e.lifecycle.UpdateStatus(ctx, o.ID, domain.OrderStatusInvoiced)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("no way back to created", func(t *testing.T) {
		o := newOrder(t)
		_, err := e.lifecycle.UpdateStatus(ctx, o.ID, domain.OrderStatusCreated)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("unknown status", func(t *testing.T) {
		o := newOrder(t)
		_, err := e.lifecycle.UpdateStatus(ctx, o.ID, domain.OrderStatus("SHIPPED"))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("cancel path restocks", func(t *testing.T) {
		before := e.stockOf(t, ctx, p.ID)
		o := newOrder(t)
		require.EqualValues(t, before-1, e.stockOf(t, ctx, p.ID))
		got, err := e.lifecycle.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, got.Status)
		assert.EqualValues(t, before, e.stockOf(t, ctx, p.ID))
	})
}

func TestIssueInvoice(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "2.50", 10)
	order, err := e.lifecycle.CreateOrder(ctx, p.ClientID, []ItemRequest{{ProductID: p.ID, Quantity: 4}})
	require.NoError(t, err)

	inv, err := e.invoices.IssueInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, inv.Number)
	assert.Equal(t, order.ID, inv.OrderID)
	assert.True(t, inv.Total.Equal(mustDec(t, "10")))

	got, err := e.lifecycle.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusInvoiced, got.Status)

	// повторная выписка запрещена: заказ уже не в CREATED
	_, err = e.invoices.IssueInvoice(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	byOrder, err := e.invoices.GetByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byOrder.ID)
	byID, err := e.invoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, byID.Number)
}

func TestGetOrder_RecomputesTotal(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "2.50", 10)
	order, err := e.lifecycle.CreateOrder(ctx, p.ClientID, []ItemRequest{{ProductID: p.ID, Quantity: 4}})
	require.NoError(t, err)

	// портим сохранённую сумму напрямую в хранилище
	order.Total = mustDec(t, "777")
	require.NoError(t, e.orders.Update(ctx, order))

	got, err := e.lifecycle.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(mustDec(t, "10")), "total derived from items, got %s", got.Total)
}

// сквозной сценарий: продажа, правка позиции, отмена с полным возвратом
func TestOrderFlow_UpdateThenCancel(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "3", 10)

	order, err := e.lifecycle.CreateOrder(ctx, p.ClientID, []ItemRequest{{ProductID: p.ID, Quantity: 4}})
	require.NoError(t, err)
	require.EqualValues(t, 6, e.stockOf(t, ctx, p.ID))
	assert.True(t, order.Items[0].Amount.Equal(mustDec(t, "12")))

	_, err = e.items.UpdateItem(ctx, order.Items[0].ID, p.ID, 6, order.Items[0].SellingPrice)
	require.NoError(t, err)
	require.EqualValues(t, 4, e.stockOf(t, ctx, p.ID))

	cancelled, err := e.lifecycle.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.EqualValues(t, 10, e.stockOf(t, ctx, p.ID))
}

// сквозной сценарий: продажа, правка позиции, счёт, попытка отмены
func TestOrderFlow_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "3", 10)

	order, err := e.lifecycle.CreateOrder(ctx, p.ClientID, []ItemRequest{{ProductID: p.ID, Quantity: 4}})
	require.NoError(t, err)
	require.EqualValues(t, 6, e.stockOf(t, ctx, p.ID))

	item := order.Items[0]
	_, err = e.items.UpdateItem(ctx, item.ID, p.ID, 6, item.SellingPrice)
	require.NoError(t, err)
	require.EqualValues(t, 4, e.stockOf(t, ctx, p.ID))

	inv, err := e.invoices.IssueInvoice(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, inv.Total.Equal(mustDec(t, "18")))

	_, err = e.lifecycle.CancelOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.EqualValues(t, 4, e.stockOf(t, ctx, p.ID))
}
