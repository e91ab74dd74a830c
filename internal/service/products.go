package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kassa/internal/domain"
	"kassa/internal/repository"
)

// ProductService инкапсулирует бизнес-логику вокруг товаров. Остаток
// товара живёт в InventoryRecord и меняется только через StockLedger;
// здесь создаётся запись остатка и начальное пополнение.
type ProductService struct {
	repo      repository.ProductRepository
	inventory repository.InventoryRepository
	items     repository.OrderItemRepository
	catalog   *CatalogGateway
	ledger    *StockLedger
	tx        repository.TxManager
	log       *zap.Logger
}

func NewProductService(
	repo repository.ProductRepository,
	inventory repository.InventoryRepository,
	items repository.OrderItemRepository,
	catalog *CatalogGateway,
	ledger *StockLedger,
	tx repository.TxManager,
	log *zap.Logger,
) *ProductService {
	return &ProductService{
		repo:      repo,
		inventory: inventory,
		items:     items,
		catalog:   catalog,
		ledger:    ledger,
		tx:        tx,
		log:       log,
	}
}

// Create заводит товар вместе с записью остатка; initialStock > 0
// проводится через леджер и попадает в журнал движений
func (s *ProductService) Create(ctx context.Context, p domain.Product, initialStock int64) (*domain.Product, error) {
	if p.Name == "" || p.SKU == "" || p.Price.IsNegative() {
		return nil, fmt.Errorf("name, sku and non-negative price are required: %w", domain.ErrInvalidArgument)
	}
	if initialStock < 0 {
		return nil, fmt.Errorf("initial stock must be non-negative, got %d: %w", initialStock, domain.ErrInvalidArgument)
	}
	cp := p
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.catalog.RequireActiveClient(ctx, p.ClientID); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, &cp); err != nil {
			return err
		}
		if err := s.inventory.Create(ctx, &domain.InventoryRecord{ProductID: cp.ID}); err != nil {
			return err
		}
		if initialStock > 0 {
			if _, err := s.ledger.add(ctx, cp.ID, initialStock, "initial"); err != nil {
				return err
			}
		}
		s.log.Info("product created",
			zap.Int64("product_id", cp.ID),
			zap.Int64("client_id", cp.ClientID),
			zap.Int64("initial_stock", initialStock))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("product id must be positive: %w", domain.ErrInvalidArgument)
	}
	return s.catalog.GetProduct(ctx, id)
}

// Update меняет имя и цену; остаток здесь не редактируется
func (s *ProductService) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID <= 0 || p.Name == "" || p.Price.IsNegative() {
		return nil, fmt.Errorf("id, name and non-negative price are required: %w", domain.ErrInvalidArgument)
	}
	var updated *domain.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("product %d: %w", p.ID, err)
		}
		existing.Name = p.Name
		existing.Price = p.Price
		if err := s.repo.Update(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete запрещён, пока на товар ссылаются позиции заказов; вместе с
// товаром удаляется его запись остатка
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("product id must be positive: %w", domain.ErrInvalidArgument)
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		referenced, err := s.items.ExistsByProduct(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("product %d is referenced by order items: %w", id, domain.ErrInvalidArgument)
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("product %d: %w", id, err)
		}
		// записи остатка может не быть, если товар заведён в обход сервиса
		if err := s.inventory.Delete(ctx, id); err != nil && !isNotFound(err) {
			return err
		}
		return nil
	})
}

func (s *ProductService) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	return s.repo.List(ctx, f)
}
