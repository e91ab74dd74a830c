package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kassa/internal/domain"
)

// PGStore хранилище поверх postgres (драйвер pgx). Блокировка строки
// остатка берётся через SELECT ... FOR UPDATE в GetForUpdate, поэтому
// конкурирующие списания одного товара сериализуются на уровне строки.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PGStore{db: db}, nil
}

func (s *PGStore) Close() error {
	return s.db.Close()
}

// transaction carried via context
type pgTxKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PGStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(pgTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

var _ TxManager = (*PGStore)(nil)

// WithTransaction открывает транзакцию; вложенный вызов присоединяется
// к транзакции из контекста
func (s *PGStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(pgTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func notFoundIfNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClientRepository
type PGClients struct{ store *PGStore }

func NewPGClients(store *PGStore) *PGClients { return &PGClients{store: store} }

var _ ClientRepository = (*PGClients)(nil)

func (r *PGClients) Create(ctx context.Context, c *domain.Client) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return r.store.q(ctx).QueryRowContext(ctx, `
		INSERT INTO clients (name, email, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.Name, c.Email, c.Active, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
}

func (r *PGClients) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	var c domain.Client
	err := r.store.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, email, active, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return &c, nil
}

func (r *PGClients) Update(ctx context.Context, c *domain.Client) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE clients
		SET name = $2, email = $3, active = $4, updated_at = $5
		WHERE id = $1
	`, c.ID, c.Name, c.Email, c.Active, c.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGClients) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx, `
		SELECT id, name, email, active, created_at, updated_at
		FROM clients
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Client, 0)
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ProductRepository
type PGProducts struct{ store *PGStore }

func NewPGProducts(store *PGStore) *PGProducts { return &PGProducts{store: store} }

var _ ProductRepository = (*PGProducts)(nil)

func (r *PGProducts) Create(ctx context.Context, p *domain.Product) error {
	return r.store.q(ctx).QueryRowContext(ctx, `
		INSERT INTO products (client_id, name, sku, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, p.ClientID, p.Name, p.SKU, p.Price).Scan(&p.ID)
}

func (r *PGProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.store.q(ctx).QueryRowContext(ctx, `
		SELECT id, client_id, name, sku, price
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.ClientID, &p.Name, &p.SKU, &p.Price)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return &p, nil
}

func (r *PGProducts) Update(ctx context.Context, p *domain.Product) error {
	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE products
		SET name = $2, price = $3
		WHERE id = $1
	`, p.ID, p.Name, p.Price)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGProducts) Delete(ctx context.Context, id int64) error {
	res, err := r.store.q(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGProducts) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	query := `
		SELECT id, client_id, name, sku, price
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2::bigint IS NULL OR client_id = $2)
		  AND ($3::numeric IS NULL OR price >= $3)
		  AND ($4::numeric IS NULL OR price <= $4)
		ORDER BY id
	`
	var minPrice, maxPrice any
	if f.MinPrice != nil {
		minPrice = *f.MinPrice
	}
	if f.MaxPrice != nil {
		maxPrice = *f.MaxPrice
	}
	var clientID any
	if f.ClientID != nil {
		clientID = *f.ClientID
	}
	rows, err := r.store.q(ctx).QueryContext(ctx, query, f.NameSubstring, clientID, minPrice, maxPrice)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name, &p.SKU, &p.Price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InventoryRepository
type PGInventory struct{ store *PGStore }

func NewPGInventory(store *PGStore) *PGInventory { return &PGInventory{store: store} }

var _ InventoryRepository = (*PGInventory)(nil)

func (r *PGInventory) Create(ctx context.Context, rec *domain.InventoryRecord) error {
	rec.Version = 1
	rec.UpdatedAt = time.Now().UTC()
	_, err := r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO inventory (product_id, quantity, version, updated_at)
		VALUES ($1, $2, $3, $4)
	`, rec.ProductID, rec.Quantity, rec.Version, rec.UpdatedAt)
	return err
}

func (r *PGInventory) GetByProductID(ctx context.Context, productID int64) (*domain.InventoryRecord, error) {
	return r.get(ctx, productID, false)
}

// GetForUpdate держит строку остатка под row lock до конца транзакции
func (r *PGInventory) GetForUpdate(ctx context.Context, productID int64) (*domain.InventoryRecord, error) {
	return r.get(ctx, productID, true)
}

func (r *PGInventory) get(ctx context.Context, productID int64, forUpdate bool) (*domain.InventoryRecord, error) {
	query := `
		SELECT product_id, quantity, version, updated_at
		FROM inventory
		WHERE product_id = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var rec domain.InventoryRecord
	err := r.store.q(ctx).QueryRowContext(ctx, query, productID).
		Scan(&rec.ProductID, &rec.Quantity, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return &rec, nil
}

// Update сверяет version: проигравший конкурентный писатель получает
// NotFound вместо тихой перезаписи
func (r *PGInventory) Update(ctx context.Context, rec *domain.InventoryRecord) error {
	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE inventory
		SET quantity = $2, version = version + 1, updated_at = $3
		WHERE product_id = $1 AND version = $4
	`, rec.ProductID, rec.Quantity, time.Now().UTC(), rec.Version)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("inventory for product %d changed concurrently: %w", rec.ProductID, err)
	}
	rec.Version++
	return nil
}

func (r *PGInventory) Delete(ctx context.Context, productID int64) error {
	res, err := r.store.q(ctx).ExecContext(ctx, `DELETE FROM inventory WHERE product_id = $1`, productID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGInventory) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	m.CreatedAt = time.Now().UTC()
	_, err := r.store.q(ctx).ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, type, delta, resulting_quantity, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.ProductID, m.Type, m.Delta, m.Resulting, m.Reference, m.CreatedAt)
	return err
}

func (r *PGInventory) Movements(ctx context.Context, productID int64) ([]domain.StockMovement, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx, `
		SELECT id, product_id, type, delta, resulting_quantity, reference, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at, id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StockMovement, 0)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Delta, &m.Resulting, &m.Reference, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// OrderRepository
type PGOrders struct{ store *PGStore }

func NewPGOrders(store *PGStore) *PGOrders { return &PGOrders{store: store} }

var _ OrderRepository = (*PGOrders)(nil)

func (r *PGOrders) Create(ctx context.Context, o *domain.Order) error {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	return r.store.q(ctx).QueryRowContext(ctx, `
		INSERT INTO orders (client_id, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, o.ClientID, o.Status, o.Total, o.CreatedAt, o.UpdatedAt).Scan(&o.ID)
}

func (r *PGOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.store.q(ctx).QueryRowContext(ctx, `
		SELECT id, client_id, status, total, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.ClientID, &o.Status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	items, err := NewPGOrderItems(r.store).ListByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *PGOrders) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now().UTC()
	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE orders
		SET status = $2, total = $3, updated_at = $4
		WHERE id = $1
	`, o.ID, o.Status, o.Total, o.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// OrderItemRepository
type PGOrderItems struct{ store *PGStore }

func NewPGOrderItems(store *PGStore) *PGOrderItems { return &PGOrderItems{store: store} }

var _ OrderItemRepository = (*PGOrderItems)(nil)

func (r *PGOrderItems) Create(ctx context.Context, it *domain.OrderItem) error {
	return r.store.q(ctx).QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, selling_price, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, it.OrderID, it.ProductID, it.Quantity, it.SellingPrice, it.Amount).Scan(&it.ID)
}

func (r *PGOrderItems) GetByID(ctx context.Context, id int64) (*domain.OrderItem, error) {
	var it domain.OrderItem
	err := r.store.q(ctx).QueryRowContext(ctx, `
		SELECT id, order_id, product_id, quantity, selling_price, amount
		FROM order_items
		WHERE id = $1
	`, id).Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.SellingPrice, &it.Amount)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return &it, nil
}

func (r *PGOrderItems) Update(ctx context.Context, it *domain.OrderItem) error {
	res, err := r.store.q(ctx).ExecContext(ctx, `
		UPDATE order_items
		SET product_id = $2, quantity = $3, selling_price = $4, amount = $5
		WHERE id = $1
	`, it.ID, it.ProductID, it.Quantity, it.SellingPrice, it.Amount)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGOrderItems) Delete(ctx context.Context, id int64) error {
	res, err := r.store.q(ctx).ExecContext(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PGOrderItems) ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.store.q(ctx).QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, selling_price, amount
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.OrderItem, 0)
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.SellingPrice, &it.Amount); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PGOrderItems) ExistsByProduct(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := r.store.q(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)
	`, productID).Scan(&exists)
	return exists, err
}

// InvoiceRepository
type PGInvoices struct{ store *PGStore }

func NewPGInvoices(store *PGStore) *PGInvoices { return &PGInvoices{store: store} }

var _ InvoiceRepository = (*PGInvoices)(nil)

func (r *PGInvoices) Create(ctx context.Context, inv *domain.Invoice) error {
	inv.IssuedAt = time.Now().UTC()
	return r.store.q(ctx).QueryRowContext(ctx, `
		INSERT INTO invoices (order_id, number, total, issued_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, inv.OrderID, inv.Number, inv.Total, inv.IssuedAt).Scan(&inv.ID)
}

func (r *PGInvoices) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.store.q(ctx).QueryRowContext(ctx, `
		SELECT id, order_id, number, total, issued_at
		FROM invoices
		WHERE id = $1
	`, id).Scan(&inv.ID, &inv.OrderID, &inv.Number, &inv.Total, &inv.IssuedAt)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return &inv, nil
}

func (r *PGInvoices) GetByOrderID(ctx context.Context, orderID int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.store.q(ctx).QueryRowContext(ctx, `
		SELECT id, order_id, number, total, issued_at
		FROM invoices
		WHERE order_id = $1
	`, orderID).Scan(&inv.ID, &inv.OrderID, &inv.Number, &inv.Total, &inv.IssuedAt)
	if err != nil {
		return nil, notFoundIfNoRows(err)
	}
	return &inv, nil
}
