package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"kassa/internal/domain"
)

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
	ClientID      *int64
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
}

// ClientRepository интерфейс репозитория клиентов (брендов)
type ClientRepository interface {
	Create(ctx context.Context, c *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	Update(ctx context.Context, c *domain.Client) error
	List(ctx context.Context) ([]domain.Client, error)
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
}

// InventoryRepository хранит остатки и журнал движений.
// GetForUpdate обязан удерживать запись под блокировкой до конца
// транзакции: read-check-write в StockLedger опирается на это.
type InventoryRepository interface {
	Create(ctx context.Context, r *domain.InventoryRecord) error
	GetByProductID(ctx context.Context, productID int64) (*domain.InventoryRecord, error)
	GetForUpdate(ctx context.Context, productID int64) (*domain.InventoryRecord, error)
	Update(ctx context.Context, r *domain.InventoryRecord) error
	Delete(ctx context.Context, productID int64) error
	AppendMovement(ctx context.Context, m *domain.StockMovement) error
	Movements(ctx context.Context, productID int64) ([]domain.StockMovement, error)
}

// OrderRepository интерфейс репозитория заказов.
// Update переписывает только изменяемые поля (status, total);
// позициями управляет OrderItemRepository.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
}

// OrderItemRepository интерфейс репозитория позиций заказа
type OrderItemRepository interface {
	Create(ctx context.Context, it *domain.OrderItem) error
	GetByID(ctx context.Context, id int64) (*domain.OrderItem, error)
	Update(ctx context.Context, it *domain.OrderItem) error
	Delete(ctx context.Context, id int64) error
	ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	ExistsByProduct(ctx context.Context, productID int64) (bool, error)
}

// InvoiceRepository интерфейс репозитория счетов
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id int64) (*domain.Invoice, error)
	GetByOrderID(ctx context.Context, orderID int64) (*domain.Invoice, error)
}

// TxManager абстракция транзакции. Вложенный вызов присоединяется к
// уже открытой транзакции из контекста. Для in-memory — глобальная
// блокировка записи, для postgres — *sql.Tx.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
