package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kassa/internal/domain"
)

// MemoryStore объединённое in-memory хранилище и простой генератор ID
type MemoryStore struct {
	mu            sync.RWMutex
	nextClientID  int64
	nextProdID    int64
	nextOrderID   int64
	nextItemID    int64
	nextInvoiceID int64

	clientsByID        map[int64]domain.Client
	productsByID       map[int64]domain.Product
	inventoryByProduct map[int64]domain.InventoryRecord
	movementsByProduct map[int64][]domain.StockMovement
	ordersByID         map[int64]domain.Order
	itemsByID          map[int64]domain.OrderItem
	invoicesByID       map[int64]domain.Invoice
	invoiceIDByOrder   map[int64]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextClientID:       1,
		nextProdID:         1,
		nextOrderID:        1,
		nextItemID:         1,
		nextInvoiceID:      1,
		clientsByID:        make(map[int64]domain.Client),
		productsByID:       make(map[int64]domain.Product),
		inventoryByProduct: make(map[int64]domain.InventoryRecord),
		movementsByProduct: make(map[int64][]domain.StockMovement),
		ordersByID:         make(map[int64]domain.Order),
		itemsByID:          make(map[int64]domain.OrderItem),
		invoicesByID:       make(map[int64]domain.Invoice),
		invoiceIDByOrder:   make(map[int64]int64),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var _ ProductRepository = (*MemoryStore)(nil)

// остальные репозитории реализованы типами-обёртками над MemoryStore

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p.ID = m.nextProdID
	m.nextProdID++
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[p.ID]; !ok {
		return domain.ErrNotFound
	}
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.productsByID, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if !containsIgnoreCase(p.Name, f.NameSubstring) {
			continue
		}
		if f.ClientID != nil && p.ClientID != *f.ClientID {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ClientRepository implementation on wrapper type
type MemoryClients struct{ store *MemoryStore }

func NewMemoryClients(store *MemoryStore) *MemoryClients { return &MemoryClients{store: store} }

var _ ClientRepository = (*MemoryClients)(nil)

func (mc *MemoryClients) Create(ctx context.Context, c *domain.Client) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	c.ID = mc.store.nextClientID
	mc.store.nextClientID++
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	mc.store.clientsByID[c.ID] = *c
	return nil
}

func (mc *MemoryClients) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	c, ok := mc.store.clientsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (mc *MemoryClients) Update(ctx context.Context, c *domain.Client) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	if _, ok := mc.store.clientsByID[c.ID]; !ok {
		return domain.ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	mc.store.clientsByID[c.ID] = *c
	return nil
}

func (mc *MemoryClients) List(ctx context.Context) ([]domain.Client, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]domain.Client, 0, len(mc.store.clientsByID))
	for _, c := range mc.store.clientsByID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// InventoryRepository implementation on wrapper type
type MemoryInventory struct{ store *MemoryStore }

func NewMemoryInventory(store *MemoryStore) *MemoryInventory { return &MemoryInventory{store: store} }

var _ InventoryRepository = (*MemoryInventory)(nil)

func (mi *MemoryInventory) Create(ctx context.Context, r *domain.InventoryRecord) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	r.Version = 1
	r.UpdatedAt = time.Now().UTC()
	mi.store.inventoryByProduct[r.ProductID] = *r
	return nil
}

func (mi *MemoryInventory) GetByProductID(ctx context.Context, productID int64) (*domain.InventoryRecord, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	r, ok := mi.store.inventoryByProduct[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := r
	return &cp, nil
}

// GetForUpdate для in-memory эквивалентен GetByProductID: транзакция
// уже держит глобальную блокировку записи, отдельный row lock не нужен
func (mi *MemoryInventory) GetForUpdate(ctx context.Context, productID int64) (*domain.InventoryRecord, error) {
	return mi.GetByProductID(ctx, productID)
}

func (mi *MemoryInventory) Update(ctx context.Context, r *domain.InventoryRecord) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	if _, ok := mi.store.inventoryByProduct[r.ProductID]; !ok {
		return domain.ErrNotFound
	}
	r.Version++
	r.UpdatedAt = time.Now().UTC()
	mi.store.inventoryByProduct[r.ProductID] = *r
	return nil
}

func (mi *MemoryInventory) Delete(ctx context.Context, productID int64) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	if _, ok := mi.store.inventoryByProduct[productID]; !ok {
		return domain.ErrNotFound
	}
	delete(mi.store.inventoryByProduct, productID)
	delete(mi.store.movementsByProduct, productID)
	return nil
}

func (mi *MemoryInventory) AppendMovement(ctx context.Context, mv *domain.StockMovement) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	mv.CreatedAt = time.Now().UTC()
	mi.store.movementsByProduct[mv.ProductID] = append(mi.store.movementsByProduct[mv.ProductID], *mv)
	return nil
}

func (mi *MemoryInventory) Movements(ctx context.Context, productID int64) ([]domain.StockMovement, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	src := mi.store.movementsByProduct[productID]
	out := make([]domain.StockMovement, len(src))
	copy(out, src)
	return out, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o.ID = mo.store.nextOrderID
	mo.store.nextOrderID++
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	stored := *o
	stored.Items = nil // позиции живут в itemsByID
	mo.store.ordersByID[o.ID] = stored
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := o
	cp.Items = mo.store.itemsOfOrder(id)
	return &cp, nil
}

func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	stored, ok := mo.store.ordersByID[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	// replace known-mutable fields only
	stored.Status = o.Status
	stored.Total = o.Total
	stored.UpdatedAt = time.Now().UTC()
	mo.store.ordersByID[o.ID] = stored
	o.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *MemoryStore) itemsOfOrder(orderID int64) []domain.OrderItem {
	items := make([]domain.OrderItem, 0)
	for _, it := range m.itemsByID {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// OrderItemRepository implementation on wrapper type
type MemoryOrderItems struct{ store *MemoryStore }

func NewMemoryOrderItems(store *MemoryStore) *MemoryOrderItems {
	return &MemoryOrderItems{store: store}
}

var _ OrderItemRepository = (*MemoryOrderItems)(nil)

func (mi *MemoryOrderItems) Create(ctx context.Context, it *domain.OrderItem) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	if _, ok := mi.store.ordersByID[it.OrderID]; !ok {
		return domain.ErrNotFound
	}
	it.ID = mi.store.nextItemID
	mi.store.nextItemID++
	mi.store.itemsByID[it.ID] = *it
	return nil
}

func (mi *MemoryOrderItems) GetByID(ctx context.Context, id int64) (*domain.OrderItem, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	it, ok := mi.store.itemsByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := it
	return &cp, nil
}

func (mi *MemoryOrderItems) Update(ctx context.Context, it *domain.OrderItem) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	if _, ok := mi.store.itemsByID[it.ID]; !ok {
		return domain.ErrNotFound
	}
	mi.store.itemsByID[it.ID] = *it
	return nil
}

func (mi *MemoryOrderItems) Delete(ctx context.Context, id int64) error {
	mi.store.wlock(ctx)
	defer mi.store.wunlock(ctx)
	if _, ok := mi.store.itemsByID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(mi.store.itemsByID, id)
	return nil
}

func (mi *MemoryOrderItems) ListByOrder(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	return mi.store.itemsOfOrder(orderID), nil
}

func (mi *MemoryOrderItems) ExistsByProduct(ctx context.Context, productID int64) (bool, error) {
	mi.store.rlock(ctx)
	defer mi.store.runlock(ctx)
	for _, it := range mi.store.itemsByID {
		if it.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

// InvoiceRepository implementation on wrapper type
type MemoryInvoices struct{ store *MemoryStore }

func NewMemoryInvoices(store *MemoryStore) *MemoryInvoices { return &MemoryInvoices{store: store} }

var _ InvoiceRepository = (*MemoryInvoices)(nil)

func (mv *MemoryInvoices) Create(ctx context.Context, inv *domain.Invoice) error {
	mv.store.wlock(ctx)
	defer mv.store.wunlock(ctx)
	inv.ID = mv.store.nextInvoiceID
	mv.store.nextInvoiceID++
	inv.IssuedAt = time.Now().UTC()
	mv.store.invoicesByID[inv.ID] = *inv
	mv.store.invoiceIDByOrder[inv.OrderID] = inv.ID
	return nil
}

func (mv *MemoryInvoices) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	mv.store.rlock(ctx)
	defer mv.store.runlock(ctx)
	inv, ok := mv.store.invoicesByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := inv
	return &cp, nil
}

func (mv *MemoryInvoices) GetByOrderID(ctx context.Context, orderID int64) (*domain.Invoice, error) {
	mv.store.rlock(ctx)
	defer mv.store.runlock(ctx)
	id, ok := mv.store.invoiceIDByOrder[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	inv := mv.store.invoicesByID[id]
	cp := inv
	return &cp, nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// вложенный вызов присоединяется к уже идущей транзакции
	if isTx(ctx) {
		return fn(ctx)
	}
	// Для in-memory используем блокировку записи и помечаем контекст,
	// чтобы репозитории пропускали внутренние локи. Снимок до начала
	// даёт откат: операция либо применяется целиком, либо никак.
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snap := tx.store.snapshot()
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	nextClientID  int64
	nextProdID    int64
	nextOrderID   int64
	nextItemID    int64
	nextInvoiceID int64

	clientsByID        map[int64]domain.Client
	productsByID       map[int64]domain.Product
	inventoryByProduct map[int64]domain.InventoryRecord
	movementsByProduct map[int64][]domain.StockMovement
	ordersByID         map[int64]domain.Order
	itemsByID          map[int64]domain.OrderItem
	invoicesByID       map[int64]domain.Invoice
	invoiceIDByOrder   map[int64]int64
}

// caller must hold mu
func (m *MemoryStore) snapshot() *memSnapshot {
	movements := make(map[int64][]domain.StockMovement, len(m.movementsByProduct))
	for k, v := range m.movementsByProduct {
		cp := make([]domain.StockMovement, len(v))
		copy(cp, v)
		movements[k] = cp
	}
	return &memSnapshot{
		nextClientID:       m.nextClientID,
		nextProdID:         m.nextProdID,
		nextOrderID:        m.nextOrderID,
		nextItemID:         m.nextItemID,
		nextInvoiceID:      m.nextInvoiceID,
		clientsByID:        cloneMap(m.clientsByID),
		productsByID:       cloneMap(m.productsByID),
		inventoryByProduct: cloneMap(m.inventoryByProduct),
		movementsByProduct: movements,
		ordersByID:         cloneMap(m.ordersByID),
		itemsByID:          cloneMap(m.itemsByID),
		invoicesByID:       cloneMap(m.invoicesByID),
		invoiceIDByOrder:   cloneMap(m.invoiceIDByOrder),
	}
}

// caller must hold mu
func (m *MemoryStore) restore(s *memSnapshot) {
	m.nextClientID = s.nextClientID
	m.nextProdID = s.nextProdID
	m.nextOrderID = s.nextOrderID
	m.nextItemID = s.nextItemID
	m.nextInvoiceID = s.nextInvoiceID
	m.clientsByID = s.clientsByID
	m.productsByID = s.productsByID
	m.inventoryByProduct = s.inventoryByProduct
	m.movementsByProduct = s.movementsByProduct
	m.ordersByID = s.ordersByID
	m.itemsByID = s.itemsByID
	m.invoicesByID = s.invoicesByID
	m.invoiceIDByOrder = s.invoiceIDByOrder
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
