package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kassa/internal/domain"
	"kassa/internal/repository"
)

// OrderLifecycle владеет агрегатом заказа: машина статусов, создание
// с позициями и компенсирующий возврат остатков при отмене.
//
// Разрешённые переходы: CREATED -> INVOICED, CREATED -> CANCELLED.
// CANCELLED — терминальный; INVOICED отменить нельзя.
type OrderLifecycle struct {
	catalog *CatalogGateway
	itemMgr *OrderItemManager
	orders  repository.OrderRepository
	items   repository.OrderItemRepository
	tx      repository.TxManager
	log     *zap.Logger
}

func NewOrderLifecycle(
	catalog *CatalogGateway,
	itemMgr *OrderItemManager,
	orders repository.OrderRepository,
	items repository.OrderItemRepository,
	tx repository.TxManager,
	log *zap.Logger,
) *OrderLifecycle {
	return &OrderLifecycle{
		catalog: catalog,
		itemMgr: itemMgr,
		orders:  orders,
		items:   items,
		tx:      tx,
		log:     log,
	}
}

// ItemRequest запрос позиции при создании заказа
type ItemRequest struct {
	ProductID int64
	Quantity  int64
}

func canTransition(from, to domain.OrderStatus) bool {
	if from != domain.OrderStatusCreated {
		return false
	}
	return to == domain.OrderStatusInvoiced || to == domain.OrderStatusCancelled
}

// CreateOrder создаёт заказ в два прохода: сначала оболочка со статусом
// CREATED и нулевой суммой, затем позиции (каждая списывает остаток),
// итоговая сумма записывается последней
func (l *OrderLifecycle) CreateOrder(ctx context.Context, clientID int64, items []ItemRequest) (*domain.Order, error) {
	if clientID <= 0 || len(items) == 0 {
		return nil, fmt.Errorf("client id and at least one item are required: %w", domain.ErrInvalidArgument)
	}
	for _, it := range items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return nil, fmt.Errorf("item product id and quantity must be positive: %w", domain.ErrInvalidArgument)
		}
	}
	var created *domain.Order
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := l.catalog.RequireActiveClient(ctx, clientID); err != nil {
			return err
		}
		order := &domain.Order{
			ClientID: clientID,
			Status:   domain.OrderStatusCreated,
		}
		if err := l.orders.Create(ctx, order); err != nil {
			return err
		}
		for _, it := range items {
			if _, err := l.itemMgr.AddItem(ctx, order.ID, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		out, err := l.orders.GetByID(ctx, order.ID)
		if err != nil {
			return err
		}
		l.log.Info("order created",
			zap.Int64("order_id", out.ID),
			zap.Int64("client_id", clientID),
			zap.Int("items", len(out.Items)),
			zap.String("total", out.Total.String()))
		created = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetOrder возвращает заказ; сумма пересчитывается из позиций, а не
// берётся из хранилища
func (l *OrderLifecycle) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, fmt.Errorf("order id must be positive: %w", domain.ErrInvalidArgument)
	}
	o, err := l.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", id, err)
	}
	o.Total = o.ItemsTotal()
	return o, nil
}

// CancelOrder возвращает остаток по каждой позиции и ставит CANCELLED.
// Позиции сохраняются для истории. Вся компенсация плюс смена статуса —
// одна транзакция.
func (l *OrderLifecycle) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if id <= 0 {
		return nil, fmt.Errorf("order id must be positive: %w", domain.ErrInvalidArgument)
	}
	var updated *domain.Order
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := l.orders.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
		if o.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("order %d: %w", id, domain.ErrAlreadyCancelled)
		}
		if !canTransition(o.Status, domain.OrderStatusCancelled) {
			return fmt.Errorf("order %d is %s, cannot cancel: %w", id, o.Status, domain.ErrInvalidTransition)
		}
		for _, it := range o.Items {
			if err := l.itemMgr.restoreItemStock(ctx, it); err != nil {
				return err
			}
		}
		o.Status = domain.OrderStatusCancelled
		if err := l.orders.Update(ctx, o); err != nil {
			return err
		}
		l.log.Info("order cancelled",
			zap.Int64("order_id", id),
			zap.Int("items_restocked", len(o.Items)))
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateStatus общий вход смены статуса; путь в CANCELLED выполняет тот
// же компенсирующий цикл, что и CancelOrder
func (l *OrderLifecycle) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown order status %q: %w", status, domain.ErrInvalidArgument)
	}
	if status == domain.OrderStatusCancelled {
		return l.CancelOrder(ctx, id)
	}
	var updated *domain.Order
	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := l.orders.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
		if o.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("order %d is cancelled: %w", id, domain.ErrInvalidTransition)
		}
		if !canTransition(o.Status, status) {
			return fmt.Errorf("order %d: %s -> %s: %w", id, o.Status, status, domain.ErrInvalidTransition)
		}
		o.Status = status
		if err := l.orders.Update(ctx, o); err != nil {
			return err
		}
		l.log.Info("order status updated",
			zap.Int64("order_id", id),
			zap.String("status", string(status)))
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
