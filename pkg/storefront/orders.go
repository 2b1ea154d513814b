package storefront

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brightbasket/storefront-client/pkg/api"
)

// OrderService submits and lists orders.
type OrderService struct {
	client *api.Client
	logger zerolog.Logger
}

// NewOrderService creates the order service.
func NewOrderService(client *api.Client) *OrderService {
	return &OrderService{
		client: client,
		logger: log.With().Str("component", "storefront-orders").Logger(),
	}
}

// Submit places an order from the current cart. The checkout confirmation
// comes from the payment widget and is forwarded to the backend unmodified.
func (s *OrderService) Submit(ctx context.Context, confirmation CheckoutConfirmation) (Order, error) {
	if confirmation.Token == "" {
		return Order{}, fmt.Errorf("checkout confirmation token is required")
	}

	var order Order
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/orders",
		Body:   confirmation,
	}, &order)
	if err != nil {
		return Order{}, err
	}

	s.logger.Info().
		Str("order_id", order.ID).
		Str("status", order.Status).
		Int64("total_cents", order.TotalCents).
		Msg("Order submitted")
	return order, nil
}

// List fetches the shopper's order history.
func (s *OrderService) List(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/orders",
	}, &orders)
	if err != nil {
		return nil, err
	}
	return orders, nil
}
