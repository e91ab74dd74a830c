package service

import (
	"context"
	"fmt"

	"kassa/internal/domain"
	"kassa/internal/repository"
)

// CatalogGateway read-only доступ к каталогу для валидации операций:
// существование товара, цена, активность клиента-владельца
type CatalogGateway struct {
	products repository.ProductRepository
	clients  repository.ClientRepository
}

func NewCatalogGateway(products repository.ProductRepository, clients repository.ClientRepository) *CatalogGateway {
	return &CatalogGateway{products: products, clients: clients}
}

func (g *CatalogGateway) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := g.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", id, err)
	}
	return p, nil
}

func (g *CatalogGateway) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := g.clients.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("client %d: %w", id, err)
	}
	return c, nil
}

// RequireActiveClient отклоняет операции против неактивного клиента
func (g *CatalogGateway) RequireActiveClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := g.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, fmt.Errorf("client %d: %w", id, domain.ErrClientInactive)
	}
	return c, nil
}

// RequireSellable товар существует и его клиент-владелец активен
func (g *CatalogGateway) RequireSellable(ctx context.Context, productID int64) (*domain.Product, error) {
	p, err := g.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := g.RequireActiveClient(ctx, p.ClientID); err != nil {
		return nil, err
	}
	return p, nil
}
