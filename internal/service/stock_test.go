package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/domain"
)

func TestStockLedger_AddRemoveSet(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "10", 10)

	rec, err := e.ledger.AddStock(ctx, p.ID, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 15, rec.Quantity)

	rec, err = e.ledger.RemoveStock(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 12, rec.Quantity)

	rec, err = e.ledger.SetStock(ctx, p.ID, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 7, rec.Quantity)

	// set to zero is a legal correction
	rec, err = e.ledger.SetStock(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rec.Quantity)
}

func TestStockLedger_InvalidQuantities(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "10", 10)

	for _, qty := range []int64{0, -1} {
		_, err := e.ledger.AddStock(ctx, p.ID, qty)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = e.ledger.RemoveStock(ctx, p.ID, qty)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}
	_, err := e.ledger.SetStock(ctx, p.ID, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	// rejected calls leave the quantity alone
	assert.EqualValues(t, 10, e.stockOf(t, ctx, p.ID))
}

func TestStockLedger_UnknownProduct(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, err := e.ledger.AddStock(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.ledger.RemoveStock(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.ledger.SetStock(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.ledger.GetByProductID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.ledger.Movements(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStockLedger_RemoveBoundary(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "10", 3)

	// exact drain succeeds and leaves zero
	rec, err := e.ledger.RemoveStock(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rec.Quantity)

	_, err = e.ledger.SetStock(ctx, p.ID, 3)
	require.NoError(t, err)

	// one over fails and reports both numbers
	_, err = e.ledger.RemoveStock(ctx, p.ID, 4)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.EqualValues(t, 3, e.stockOf(t, ctx, p.ID))

	_, err = e.ledger.RemoveStock(ctx, p.ID, 5)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "available 3")
	assert.Contains(t, err.Error(), "requested 5")
}

func TestStockLedger_Movements(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "10", 10)

	_, err := e.ledger.AddStock(ctx, p.ID, 2)
	require.NoError(t, err)
	_, err = e.ledger.RemoveStock(ctx, p.ID, 5)
	require.NoError(t, err)
	_, err = e.ledger.SetStock(ctx, p.ID, 4)
	require.NoError(t, err)

	moves, err := e.ledger.Movements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, moves, 4)

	assert.Equal(t, domain.MovementIn, moves[0].Type) // initial seed
	assert.EqualValues(t, 10, moves[0].Delta)
	assert.Equal(t, "initial", moves[0].Reference)

	assert.Equal(t, domain.MovementIn, moves[1].Type)
	assert.EqualValues(t, 2, moves[1].Delta)
	assert.EqualValues(t, 12, moves[1].Resulting)

	assert.Equal(t, domain.MovementOut, moves[2].Type)
	assert.EqualValues(t, -5, moves[2].Delta)
	assert.EqualValues(t, 7, moves[2].Resulting)

	assert.Equal(t, domain.MovementAdjust, moves[3].Type)
	assert.EqualValues(t, -3, moves[3].Delta)
	assert.EqualValues(t, 4, moves[3].Resulting)
}

func TestStockLedger_NeverNegative(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	p := e.seedProduct(t, ctx, "Aspirin", "10", 5)

	// interleave accepted and rejected calls; quantity must stay >= 0
	updates := []struct {
		op  string
		qty int64
	}{
		{"remove", 2}, {"remove", 10}, {"add", 1}, {"remove", 4},
		{"remove", 1}, {"set", 2}, {"remove", 3}, {"remove", 2},
	}
	for _, u := range updates {
		switch u.op {
		case "add":
			_, _ = e.ledger.AddStock(ctx, p.ID, u.qty)
		case "remove":
			_, _ = e.ledger.RemoveStock(ctx, p.ID, u.qty)
		case "set":
			_, _ = e.ledger.SetStock(ctx, p.ID, u.qty)
		}
		require.GreaterOrEqual(t, e.stockOf(t, ctx, p.ID), int64(0))
	}
	assert.EqualValues(t, 0, e.stockOf(t, ctx, p.ID))
}
