package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"kassa/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMemoryStore_ProductCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := domain.Product{ClientID: 1, Name: "A", SKU: "S1", Price: dec("10")}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == 0 {
		t.Fatalf("no id")
	}

	got, err := store.GetByID(ctx, p.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("get: %v", err)
	}

	p.Price = dec("12")
	if err := store.Update(ctx, &p); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryTx_TransactionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	orders := NewMemoryOrders(store)
	inventory := NewMemoryInventory(store)

	p := domain.Product{ClientID: 1, Name: "A", SKU: "S1", Price: dec("10")}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}
	if err := inventory.Create(ctx, &domain.InventoryRecord{ProductID: p.ID, Quantity: 5}); err != nil {
		t.Fatal(err)
	}

	// атомарно: списание остатка + создание заказа
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := inventory.GetForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		rec.Quantity -= 3
		if err := inventory.Update(ctx, rec); err != nil {
			return err
		}
		o := domain.Order{ClientID: 1, Status: domain.OrderStatusCreated}
		return orders.Create(ctx, &o)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	rec, _ := inventory.GetByProductID(context.Background(), p.ID)
	if rec.Quantity != 2 {
		t.Fatalf("quantity expected 2, got %v", rec.Quantity)
	}
	if rec.Version != 2 {
		t.Fatalf("version expected 2, got %v", rec.Version)
	}
}

func TestMemoryTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	inventory := NewMemoryInventory(store)

	p := domain.Product{ClientID: 1, Name: "A", SKU: "S1", Price: dec("10")}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}
	if err := inventory.Create(ctx, &domain.InventoryRecord{ProductID: p.ID, Quantity: 5}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := inventory.GetForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		rec.Quantity = 0
		if err := inventory.Update(ctx, rec); err != nil {
			return err
		}
		p2 := domain.Product{ClientID: 1, Name: "B", SKU: "S2", Price: dec("1")}
		if err := store.Create(ctx, &p2); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	// всё откатилось, включая счётчик ID
	rec, _ := inventory.GetByProductID(ctx, p.ID)
	if rec.Quantity != 5 {
		t.Fatalf("quantity expected 5 after rollback, got %v", rec.Quantity)
	}
	if _, err := store.GetByID(ctx, p.ID+1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected second product rolled back, got %v", err)
	}
	p3 := domain.Product{ClientID: 1, Name: "C", SKU: "S3", Price: dec("1")}
	if err := store.Create(ctx, &p3); err != nil {
		t.Fatal(err)
	}
	if p3.ID != p.ID+1 {
		t.Fatalf("id counter not restored: got %d", p3.ID)
	}
}

func TestMemoryTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)

	// вложенный WithTransaction не должен брать блокировку повторно
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		return tx.WithTransaction(ctx, func(ctx context.Context) error {
			p := domain.Product{ClientID: 1, Name: "A", SKU: "S1", Price: dec("1")}
			return store.Create(ctx, &p)
		})
	})
	if err != nil {
		t.Fatalf("nested tx: %v", err)
	}
	if _, err := store.GetByID(ctx, 1); err != nil {
		t.Fatalf("expected product committed: %v", err)
	}

	// ошибка внутри вложенного уровня откатывает весь внешний
	boom := errors.New("boom")
	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		p := domain.Product{ClientID: 1, Name: "B", SKU: "S2", Price: dec("1")}
		if err := store.Create(ctx, &p); err != nil {
			return err
		}
		return tx.WithTransaction(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.GetByID(ctx, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected rollback of outer tx, got %v", err)
	}
}

func TestList_Filtering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	add := func(n string, price string, clientID int64) {
		p := domain.Product{ClientID: clientID, Name: n, SKU: n, Price: dec(price)}
		if err := store.Create(ctx, &p); err != nil {
			t.Fatal(err)
		}
	}
	add("Aspirin", "100", 1)
	add("Paracetamol", "50", 1)
	add("Ibuprofen", "150", 2)

	// name contains
	list, _ := store.List(ctx, ProductFilter{NameSubstring: "in"})
	if len(list) == 0 {
		t.Fatalf("name filter empty")
	}

	// min
	min := dec("100")
	list, _ = store.List(ctx, ProductFilter{MinPrice: &min})
	for _, p := range list {
		if p.Price.LessThan(min) {
			t.Fatalf("min filter fail")
		}
	}

	// max
	max := dec("100")
	list, _ = store.List(ctx, ProductFilter{MaxPrice: &max})
	for _, p := range list {
		if p.Price.GreaterThan(max) {
			t.Fatalf("max filter fail")
		}
	}

	// client
	cid := int64(2)
	list, _ = store.List(ctx, ProductFilter{ClientID: &cid})
	if len(list) != 1 || list[0].Name != "Ibuprofen" {
		t.Fatalf("client filter fail: %+v", list)
	}
}

func TestMemoryOrders_ItemsAssembly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)
	items := NewMemoryOrderItems(store)

	o := domain.Order{ClientID: 1, Status: domain.OrderStatusCreated}
	if err := orders.Create(ctx, &o); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		it := domain.OrderItem{OrderID: o.ID, ProductID: int64(i + 1), Quantity: 1, SellingPrice: dec("1"), Amount: dec("1")}
		if err := items.Create(ctx, &it); err != nil {
			t.Fatal(err)
		}
	}

	got, err := orders.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got.Items))
	}
	for i := 1; i < len(got.Items); i++ {
		if got.Items[i-1].ID > got.Items[i].ID {
			t.Fatalf("items not sorted by id")
		}
	}

	// позиция чужого заказа не подмешивается
	if err := items.Create(ctx, &domain.OrderItem{OrderID: 999, ProductID: 1, Quantity: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown order, got %v", err)
	}

	// Update переписывает только статус и сумму
	got.Status = domain.OrderStatusInvoiced
	got.Total = dec("3")
	got.ClientID = 42
	if err := orders.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	after, _ := orders.GetByID(ctx, o.ID)
	if after.Status != domain.OrderStatusInvoiced || !after.Total.Equal(dec("3")) {
		t.Fatalf("mutable fields not applied: %+v", after)
	}
	if after.ClientID != 1 {
		t.Fatalf("client id must be immutable, got %d", after.ClientID)
	}
}

func TestMemoryInvoices_ByOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := NewMemoryOrders(store)
	invoices := NewMemoryInvoices(store)

	o := domain.Order{ClientID: 1, Status: domain.OrderStatusInvoiced}
	if err := orders.Create(ctx, &o); err != nil {
		t.Fatal(err)
	}
	inv := domain.Invoice{OrderID: o.ID, Number: "INV-1", Total: dec("10")}
	if err := invoices.Create(ctx, &inv); err != nil {
		t.Fatal(err)
	}

	byOrder, err := invoices.GetByOrderID(ctx, o.ID)
	if err != nil || byOrder.ID != inv.ID {
		t.Fatalf("get by order: %v", err)
	}
	if _, err := invoices.GetByOrderID(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryInventory_MovementsJournal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	inventory := NewMemoryInventory(store)

	if err := inventory.Create(ctx, &domain.InventoryRecord{ProductID: 1, Quantity: 0}); err != nil {
		t.Fatal(err)
	}
	for i, typ := range []domain.MovementType{domain.MovementIn, domain.MovementOut} {
		mv := domain.StockMovement{ProductID: 1, Type: typ, Delta: int64(i + 1), Resulting: int64(i)}
		if err := inventory.AppendMovement(ctx, &mv); err != nil {
			t.Fatal(err)
		}
	}

	moves, err := inventory.Movements(ctx, 1)
	if err != nil {
		t.Fatalf("movements: %v", err)
	}
	if len(moves) != 2 || moves[0].Type != domain.MovementIn || moves[1].Type != domain.MovementOut {
		t.Fatalf("journal order broken: %+v", moves)
	}

	// удаление записи остатка чистит и журнал
	if err := inventory.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	moves, _ = inventory.Movements(ctx, 1)
	if len(moves) != 0 {
		t.Fatalf("expected empty journal, got %d", len(moves))
	}
}
