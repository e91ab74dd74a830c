package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kassa/internal/domain"
	"kassa/internal/repository"
)

// InvoiceService выставляет счета. Выставление счёта и есть переход
// CREATED -> INVOICED; один счёт на заказ.
type InvoiceService struct {
	lifecycle *OrderLifecycle
	invoices  repository.InvoiceRepository
	tx        repository.TxManager
	log       *zap.Logger
}

func NewInvoiceService(lifecycle *OrderLifecycle, invoices repository.InvoiceRepository, tx repository.TxManager, log *zap.Logger) *InvoiceService {
	return &InvoiceService{lifecycle: lifecycle, invoices: invoices, tx: tx, log: log}
}

// IssueInvoice снимает сумму заказа снимком и переводит его в INVOICED
func (s *InvoiceService) IssueInvoice(ctx context.Context, orderID int64) (*domain.Invoice, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("order id must be positive: %w", domain.ErrInvalidArgument)
	}
	var created *domain.Invoice
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.lifecycle.UpdateStatus(ctx, orderID, domain.OrderStatusInvoiced)
		if err != nil {
			return err
		}
		inv := &domain.Invoice{
			OrderID: orderID,
			Number:  uuid.NewString(),
			Total:   order.ItemsTotal(),
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}
		s.log.Info("invoice issued",
			zap.Int64("order_id", orderID),
			zap.String("number", inv.Number),
			zap.String("total", inv.Total.String()))
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *InvoiceService) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invoice id must be positive: %w", domain.ErrInvalidArgument)
	}
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("invoice %d: %w", id, err)
	}
	return inv, nil
}

func (s *InvoiceService) GetByOrder(ctx context.Context, orderID int64) (*domain.Invoice, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("order id must be positive: %w", domain.ErrInvalidArgument)
	}
	inv, err := s.invoices.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("invoice for order %d: %w", orderID, err)
	}
	return inv, nil
}
