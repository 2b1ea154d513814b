package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brightbasket/storefront-client/pkg/api"
)

// CartService manages the shopper's cart. Every mutation returns the updated
// cart as computed by the backend; cart state is never cached locally.
type CartService struct {
	client *api.Client
	logger zerolog.Logger
}

// NewCartService creates the cart service.
func NewCartService(client *api.Client) *CartService {
	return &CartService{
		client: client,
		logger: log.With().Str("component", "storefront-cart").Logger(),
	}
}

type cartLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Get fetches the current cart.
func (s *CartService) Get(ctx context.Context) (Cart, error) {
	var cart Cart
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/cart",
	}, &cart)
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// AddItem adds quantity units of an item to the cart.
func (s *CartService) AddItem(ctx context.Context, itemID string, quantity int) (Cart, error) {
	if itemID == "" {
		return Cart{}, fmt.Errorf("item ID is required")
	}
	if quantity < 1 {
		return Cart{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	var cart Cart
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/cart/items",
		Body:   cartLineRequest{ItemID: itemID, Quantity: quantity},
	}, &cart)
	if err != nil {
		return Cart{}, err
	}

	s.logger.Debug().
		Str("item_id", itemID).
		Int("quantity", quantity).
		Msg("Added item to cart")
	return cart, nil
}

// UpdateItem sets the quantity of an item already in the cart.
func (s *CartService) UpdateItem(ctx context.Context, itemID string, quantity int) (Cart, error) {
	if itemID == "" {
		return Cart{}, fmt.Errorf("item ID is required")
	}
	if quantity < 1 {
		return Cart{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	var cart Cart
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodPut,
		Path:   "/cart/items/" + url.PathEscape(itemID),
		Body:   cartLineRequest{ItemID: itemID, Quantity: quantity},
	}, &cart)
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// RemoveItem removes an item from the cart entirely.
func (s *CartService) RemoveItem(ctx context.Context, itemID string) (Cart, error) {
	if itemID == "" {
		return Cart{}, fmt.Errorf("item ID is required")
	}

	var cart Cart
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   "/cart/items/" + url.PathEscape(itemID),
	}, &cart)
	if err != nil {
		return Cart{}, err
	}
	return cart, nil
}
