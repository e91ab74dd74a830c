package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"kassa/internal/domain"
	"kassa/internal/repository"
)

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

// ClientService CRUD вокруг клиентов (брендов); деактивация клиента
// блокирует операции с его товарами
type ClientService struct {
	repo repository.ClientRepository
	log  *zap.Logger
}

func NewClientService(repo repository.ClientRepository, log *zap.Logger) *ClientService {
	return &ClientService{repo: repo, log: log}
}

func (s *ClientService) Create(ctx context.Context, c domain.Client) (*domain.Client, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("client name is required: %w", domain.ErrInvalidArgument)
	}
	cp := c
	cp.Active = true
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	s.log.Info("client created", zap.Int64("client_id", cp.ID), zap.String("name", cp.Name))
	return &cp, nil
}

func (s *ClientService) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	if id <= 0 {
		return nil, fmt.Errorf("client id must be positive: %w", domain.ErrInvalidArgument)
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("client %d: %w", id, err)
	}
	return c, nil
}

// Update меняет имя, почту и флаг активности
func (s *ClientService) Update(ctx context.Context, c domain.Client) (*domain.Client, error) {
	if c.ID <= 0 || c.Name == "" {
		return nil, fmt.Errorf("client id and name are required: %w", domain.ErrInvalidArgument)
	}
	existing, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("client %d: %w", c.ID, err)
	}
	existing.Name = c.Name
	existing.Email = c.Email
	existing.Active = c.Active
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *ClientService) List(ctx context.Context) ([]domain.Client, error) {
	return s.repo.List(ctx)
}
