package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kassa/internal/domain"
	"kassa/internal/repository"
)

// OrderItemManager управляет жизненным циклом позиций заказа: снимок
// цены, списание/возврат остатка через StockLedger, пересчёт суммы
// заказа. Каждая операция — одна транзакция, всё или ничего.
type OrderItemManager struct {
	catalog   *CatalogGateway
	ledger    *StockLedger
	orders    repository.OrderRepository
	items     repository.OrderItemRepository
	inventory repository.InventoryRepository
	tx        repository.TxManager
	log       *zap.Logger
}

func NewOrderItemManager(
	catalog *CatalogGateway,
	ledger *StockLedger,
	orders repository.OrderRepository,
	items repository.OrderItemRepository,
	inventory repository.InventoryRepository,
	tx repository.TxManager,
	log *zap.Logger,
) *OrderItemManager {
	return &OrderItemManager{
		catalog:   catalog,
		ledger:    ledger,
		orders:    orders,
		items:     items,
		inventory: inventory,
		tx:        tx,
		log:       log,
	}
}

func orderRef(orderID int64) string { return fmt.Sprintf("order:%d", orderID) }

// AddItem добавляет позицию: цена берётся снимком из каталога, остаток
// списывается атомарно с созданием позиции
func (m *OrderItemManager) AddItem(ctx context.Context, orderID, productID, quantity int64) (*domain.OrderItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", quantity, domain.ErrInvalidArgument)
	}
	var created *domain.OrderItem
	err := m.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := m.orders.GetByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %d: %w", orderID, err)
		}
		if err := requireEditable(order); err != nil {
			return err
		}
		product, err := m.catalog.RequireSellable(ctx, productID)
		if err != nil {
			return err
		}
		// отсутствие записи остатка — отдельная ошибка, не out-of-stock
		rec, err := m.inventory.GetByProductID(ctx, productID)
		if err != nil {
			return fmt.Errorf("no inventory record for product %d: %w", productID, err)
		}
		if err := checkAvailable(productID, rec.Quantity, quantity); err != nil {
			return err
		}
		if _, err := m.ledger.remove(ctx, productID, quantity, orderRef(orderID)); err != nil {
			return err
		}
		item := &domain.OrderItem{
			OrderID:      orderID,
			ProductID:    productID,
			Quantity:     quantity,
			SellingPrice: product.Price,
			Amount:       product.Price.Mul(decimal.NewFromInt(quantity)),
		}
		if err := m.items.Create(ctx, item); err != nil {
			return err
		}
		if err := m.recomputeTotal(ctx, orderID); err != nil {
			return err
		}
		m.log.Info("order item added",
			zap.Int64("order_id", orderID),
			zap.Int64("product_id", productID),
			zap.Int64("quantity", quantity))
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateItem меняет товар/количество/цену позиции. Политика — вернуть
// старое резервирование, затем списать новое; обе операции под одной
// транзакцией и одной блокировкой остатка, снаружи промежуточное
// состояние не видно.
func (m *OrderItemManager) UpdateItem(ctx context.Context, itemID, newProductID, newQuantity int64, newPrice decimal.Decimal) (*domain.OrderItem, error) {
	if newQuantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", newQuantity, domain.ErrInvalidArgument)
	}
	if newPrice.IsNegative() {
		return nil, fmt.Errorf("price must be non-negative, got %s: %w", newPrice, domain.ErrInvalidArgument)
	}
	var updated *domain.OrderItem
	err := m.tx.WithTransaction(ctx, func(ctx context.Context) error {
		item, err := m.items.GetByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("order item %d: %w", itemID, err)
		}
		order, err := m.orders.GetByID(ctx, item.OrderID)
		if err != nil {
			return fmt.Errorf("order %d: %w", item.OrderID, err)
		}
		if err := requireEditable(order); err != nil {
			return err
		}
		if _, err := m.catalog.RequireSellable(ctx, newProductID); err != nil {
			return err
		}
		rec, err := m.inventory.GetByProductID(ctx, newProductID)
		if err != nil {
			return fmt.Errorf("no inventory record for product %d: %w", newProductID, err)
		}
		// старое резервирование "возвращается" перед повторной проверкой,
		// но только если товар не меняется
		available := rec.Quantity
		if newProductID == item.ProductID {
			available += item.Quantity
		}
		if err := checkAvailable(newProductID, available, newQuantity); err != nil {
			return err
		}
		if _, err := m.ledger.add(ctx, item.ProductID, item.Quantity, orderRef(item.OrderID)); err != nil {
			return err
		}
		if _, err := m.ledger.remove(ctx, newProductID, newQuantity, orderRef(item.OrderID)); err != nil {
			return err
		}
		item.ProductID = newProductID
		item.Quantity = newQuantity
		item.SellingPrice = newPrice
		item.Amount = newPrice.Mul(decimal.NewFromInt(newQuantity))
		if err := m.items.Update(ctx, item); err != nil {
			return err
		}
		if err := m.recomputeTotal(ctx, item.OrderID); err != nil {
			return err
		}
		m.log.Info("order item updated",
			zap.Int64("item_id", itemID),
			zap.Int64("product_id", newProductID),
			zap.Int64("quantity", newQuantity))
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteItem удаляет позицию и возвращает её количество на остаток
func (m *OrderItemManager) DeleteItem(ctx context.Context, itemID int64) error {
	return m.tx.WithTransaction(ctx, func(ctx context.Context) error {
		item, err := m.items.GetByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("order item %d: %w", itemID, err)
		}
		order, err := m.orders.GetByID(ctx, item.OrderID)
		if err != nil {
			return fmt.Errorf("order %d: %w", item.OrderID, err)
		}
		if err := requireEditable(order); err != nil {
			return err
		}
		if _, err := m.ledger.add(ctx, item.ProductID, item.Quantity, orderRef(item.OrderID)); err != nil {
			return err
		}
		if err := m.items.Delete(ctx, itemID); err != nil {
			return err
		}
		if err := m.recomputeTotal(ctx, item.OrderID); err != nil {
			return err
		}
		m.log.Info("order item deleted",
			zap.Int64("item_id", itemID),
			zap.Int64("order_id", item.OrderID))
		return nil
	})
}

// restoreItemStock компенсирующее пополнение при отмене заказа;
// позиция при этом сохраняется для истории
func (m *OrderItemManager) restoreItemStock(ctx context.Context, item domain.OrderItem) error {
	_, err := m.ledger.add(ctx, item.ProductID, item.Quantity, orderRef(item.OrderID)+":cancel")
	return err
}

// recomputeTotal пересчитывает сумму заказа из текущих позиций
func (m *OrderItemManager) recomputeTotal(ctx context.Context, orderID int64) error {
	items, err := m.items.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	order, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	order.Total = total
	return m.orders.Update(ctx, order)
}

// requireEditable позиции меняются только у заказа в статусе CREATED
func requireEditable(order *domain.Order) error {
	if order.Status != domain.OrderStatusCreated {
		return fmt.Errorf("order %d is %s, items are frozen: %w",
			order.ID, order.Status, domain.ErrInvalidTransition)
	}
	return nil
}
