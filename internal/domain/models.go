package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client представляет бренд — владельца товаров
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product товар каталога. Остаток хранится отдельно — в InventoryRecord.
type Product struct {
	ID       int64           `json:"id"`
	ClientID int64           `json:"client_id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
}

// InventoryRecord текущий остаток товара; Quantity никогда не уходит в минус
type InventoryRecord struct {
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	Version   int64     `json:"version"` // optimistic locking
	UpdatedAt time.Time `json:"updated_at"`
}

// MovementType тип движения остатка
type MovementType string

const (
	MovementIn     MovementType = "in"
	MovementOut    MovementType = "out"
	MovementAdjust MovementType = "adjust"
)

// StockMovement запись аудита движения остатков (append-only)
type StockMovement struct {
	ID        string       `json:"id"`
	ProductID int64        `json:"product_id"`
	Type      MovementType `json:"type"`
	Delta     int64        `json:"delta"`
	Resulting int64        `json:"resulting_quantity"`
	Reference string       `json:"reference,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusInvoiced  OrderStatus = "INVOICED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid сообщает, является ли значение известным статусом
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusInvoiced, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem позиция заказа: количество и цена-снимок на момент добавления
type OrderItem struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ProductID    int64           `json:"product_id"`
	Quantity     int64           `json:"quantity"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Amount       decimal.Decimal `json:"amount"`
}

// Order сущность заказа
type Order struct {
	ID        int64           `json:"id"`
	ClientID  int64           `json:"client_id"`
	Status    OrderStatus     `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderItem     `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ItemsTotal сумма позиций; Total всегда пересчитывается отсюда,
// а не читается из хранилища
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Amount)
	}
	return total
}

// Invoice счёт, выставленный по заказу
type Invoice struct {
	ID       int64           `json:"id"`
	OrderID  int64           `json:"order_id"`
	Number   string          `json:"number"`
	Total    decimal.Decimal `json:"total"`
	IssuedAt time.Time       `json:"issued_at"`
}
