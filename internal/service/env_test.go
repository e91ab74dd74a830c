package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kassa/internal/domain"
	"kassa/internal/repository"
)

// env полный граф сервисов поверх in-memory хранилища
type env struct {
	store     *repository.MemoryStore
	orders    repository.OrderRepository
	products  repository.ProductRepository
	inventory repository.InventoryRepository

	clientsSvc  *ClientService
	productsSvc *ProductService
	ledger      *StockLedger
	items       *OrderItemManager
	lifecycle   *OrderLifecycle
	invoices    *InvoiceService
}

func setup(t *testing.T) *env {
	t.Helper()
	store := repository.NewMemoryStore()
	clientsRepo := repository.NewMemoryClients(store)
	inventoryRepo := repository.NewMemoryInventory(store)
	ordersRepo := repository.NewMemoryOrders(store)
	itemsRepo := repository.NewMemoryOrderItems(store)
	invoicesRepo := repository.NewMemoryInvoices(store)
	tx := repository.NewMemoryTx(store)
	log := zap.NewNop()

	catalog := NewCatalogGateway(store, clientsRepo)
	ledger := NewStockLedger(inventoryRepo, tx, log)
	items := NewOrderItemManager(catalog, ledger, ordersRepo, itemsRepo, inventoryRepo, tx, log)
	lifecycle := NewOrderLifecycle(catalog, items, ordersRepo, itemsRepo, tx, log)

	return &env{
		store:       store,
		orders:      ordersRepo,
		products:    store,
		inventory:   inventoryRepo,
		clientsSvc:  NewClientService(clientsRepo, log),
		productsSvc: NewProductService(store, inventoryRepo, itemsRepo, catalog, ledger, tx, log),
		ledger:      ledger,
		items:       items,
		lifecycle:   lifecycle,
		invoices:    NewInvoiceService(lifecycle, invoicesRepo, tx, log),
	}
}

// seedProduct клиент + товар с начальным остатком
func (e *env) seedProduct(t *testing.T, ctx context.Context, name string, price string, stock int64) *domain.Product {
	t.Helper()
	client, err := e.clientsSvc.Create(ctx, domain.Client{Name: name + " brand"})
	require.NoError(t, err)
	p, err := e.productsSvc.Create(ctx, domain.Product{
		ClientID: client.ID,
		Name:     name,
		SKU:      "SKU-" + name,
		Price:    mustDec(t, price),
	}, stock)
	require.NoError(t, err)
	return p
}

func (e *env) stockOf(t *testing.T, ctx context.Context, productID int64) int64 {
	t.Helper()
	rec, err := e.ledger.GetByProductID(ctx, productID)
	require.NoError(t, err)
	return rec.Quantity
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
