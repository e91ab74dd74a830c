package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kassa/internal/domain"
	"kassa/internal/repository"
)

// StockLedger единственная точка изменения остатков. Каждая мутация —
// read-check-write под блокировкой записи остатка (GetForUpdate) внутри
// транзакции, плюс запись в журнал движений.
type StockLedger struct {
	inventory repository.InventoryRepository
	tx        repository.TxManager
	log       *zap.Logger
}

func NewStockLedger(inventory repository.InventoryRepository, tx repository.TxManager, log *zap.Logger) *StockLedger {
	return &StockLedger{inventory: inventory, tx: tx, log: log}
}

// checkAvailable общая проверка достаточности остатка; используется и
// леджером, и операциями с позициями заказа
func checkAvailable(productID, available, requested int64) error {
	if requested > available {
		return fmt.Errorf("product %d: available %d, requested %d: %w",
			productID, available, requested, domain.ErrInsufficientStock)
	}
	return nil
}

// AddStock увеличивает остаток товара на qty (> 0)
func (s *StockLedger) AddStock(ctx context.Context, productID, qty int64) (*domain.InventoryRecord, error) {
	return s.add(ctx, productID, qty, "manual")
}

// RemoveStock уменьшает остаток товара на qty (> 0); остаток не может
// уйти в минус
func (s *StockLedger) RemoveStock(ctx context.Context, productID, qty int64) (*domain.InventoryRecord, error) {
	return s.remove(ctx, productID, qty, "manual")
}

// SetStock выставляет остаток товара в qty (>= 0) безусловно; ручная
// корректировка, без сверки с открытыми заказами
func (s *StockLedger) SetStock(ctx context.Context, productID, qty int64) (*domain.InventoryRecord, error) {
	if qty < 0 {
		return nil, fmt.Errorf("quantity must be non-negative, got %d: %w", qty, domain.ErrInvalidArgument)
	}
	var out *domain.InventoryRecord
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.inventory.GetForUpdate(ctx, productID)
		if err != nil {
			return fmt.Errorf("inventory for product %d: %w", productID, err)
		}
		delta := qty - rec.Quantity
		rec.Quantity = qty
		if err := s.inventory.Update(ctx, rec); err != nil {
			return err
		}
		if err := s.appendMovement(ctx, productID, domain.MovementAdjust, delta, rec.Quantity, "adjust"); err != nil {
			return err
		}
		s.log.Info("stock set",
			zap.Int64("product_id", productID),
			zap.Int64("quantity", qty),
			zap.Int64("delta", delta))
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetByProductID читает текущий остаток
func (s *StockLedger) GetByProductID(ctx context.Context, productID int64) (*domain.InventoryRecord, error) {
	rec, err := s.inventory.GetByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("inventory for product %d: %w", productID, err)
	}
	return rec, nil
}

// Movements возвращает журнал движений остатка
func (s *StockLedger) Movements(ctx context.Context, productID int64) ([]domain.StockMovement, error) {
	if _, err := s.inventory.GetByProductID(ctx, productID); err != nil {
		return nil, fmt.Errorf("inventory for product %d: %w", productID, err)
	}
	return s.inventory.Movements(ctx, productID)
}

// add внутренний путь пополнения; reference попадает в журнал движений
func (s *StockLedger) add(ctx context.Context, productID, qty int64, reference string) (*domain.InventoryRecord, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", qty, domain.ErrInvalidArgument)
	}
	var out *domain.InventoryRecord
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.inventory.GetForUpdate(ctx, productID)
		if err != nil {
			return fmt.Errorf("inventory for product %d: %w", productID, err)
		}
		rec.Quantity += qty
		if err := s.inventory.Update(ctx, rec); err != nil {
			return err
		}
		if err := s.appendMovement(ctx, productID, domain.MovementIn, qty, rec.Quantity, reference); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// remove внутренний путь списания с проверкой достаточности
func (s *StockLedger) remove(ctx context.Context, productID, qty int64, reference string) (*domain.InventoryRecord, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", qty, domain.ErrInvalidArgument)
	}
	var out *domain.InventoryRecord
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		rec, err := s.inventory.GetForUpdate(ctx, productID)
		if err != nil {
			return fmt.Errorf("inventory for product %d: %w", productID, err)
		}
		if err := checkAvailable(productID, rec.Quantity, qty); err != nil {
			return err
		}
		rec.Quantity -= qty
		if err := s.inventory.Update(ctx, rec); err != nil {
			return err
		}
		if err := s.appendMovement(ctx, productID, domain.MovementOut, -qty, rec.Quantity, reference); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StockLedger) appendMovement(ctx context.Context, productID int64, typ domain.MovementType, delta, resulting int64, reference string) error {
	return s.inventory.AppendMovement(ctx, &domain.StockMovement{
		ID:        uuid.NewString(),
		ProductID: productID,
		Type:      typ,
		Delta:     delta,
		Resulting: resulting,
		Reference: reference,
	})
}
