// Package storefront provides the typed service layer of the client: auth,
// catalog, cart, and orders. Every service calls the backend through the
// shared request pipeline, which handles authentication gating, caching,
// retries, and error normalization.
package storefront

import (
	"fmt"

	"github.com/brightbasket/storefront-client/pkg/api"
	"github.com/brightbasket/storefront-client/pkg/session"
	"github.com/brightbasket/storefront-client/pkg/token"
)

// Services bundles all typed services over one shared pipeline.
type Services struct {
	Auth    *AuthService
	Catalog *CatalogService
	Cart    *CartService
	Orders  *OrderService
}

// NewServices creates the full service bundle.
func NewServices(client *api.Client, manager *token.Manager, store session.Store) (*Services, error) {
	if client == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("token manager is required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	return &Services{
		Auth:    NewAuthService(client, manager, store),
		Catalog: NewCatalogService(client),
		Cart:    NewCartService(client),
		Orders:  NewOrderService(client),
	}, nil
}
