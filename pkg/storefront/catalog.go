package storefront

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/brightbasket/storefront-client/pkg/api"
)

// defaultFanOut bounds concurrent page fetches in ListAllItems.
const defaultFanOut = 5

// CatalogService reads the item catalog and price data. All of its GET
// endpoints are public and cacheable, so repeated reads within the TTL are
// served locally.
type CatalogService struct {
	client *api.Client
	logger zerolog.Logger
	fanOut int
}

// NewCatalogService creates the catalog service.
func NewCatalogService(client *api.Client) *CatalogService {
	return &CatalogService{
		client: client,
		logger: log.With().Str("component", "storefront-catalog").Logger(),
		fanOut: defaultFanOut,
	}
}

// ListItems fetches one page of the catalog listing. Pages start at 1.
func (s *CatalogService) ListItems(ctx context.Context, page int) (ItemPage, error) {
	if page < 1 {
		page = 1
	}

	var result ItemPage
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/catalog/items",
		Query:  url.Values{"page": {strconv.Itoa(page)}},
	}, &result)
	if err != nil {
		return ItemPage{}, err
	}
	return result, nil
}

// ListAllItems fetches the complete catalog. The first page determines the
// total page count; remaining pages are fetched concurrently and stitched
// back together in page order.
func (s *CatalogService) ListAllItems(ctx context.Context) ([]Item, error) {
	first, err := s.ListItems(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch page 1: %w", err)
	}
	if first.TotalPages <= 1 {
		return first.Items, nil
	}

	pages := make([][]Item, first.TotalPages+1)
	pages[1] = first.Items

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for page := 2; page <= first.TotalPages; page++ {
		page := page // per-iteration copy: required under the go 1.21 language version
		g.Go(func() error {
			result, err := s.ListItems(ctx, page)
			if err != nil {
				return fmt.Errorf("fetch page %d: %w", page, err)
			}
			pages[page] = result.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []Item
	for _, page := range pages[1:] {
		items = append(items, page...)
	}

	s.logger.Debug().
		Int("pages", first.TotalPages).
		Int("items", len(items)).
		Msg("Fetched full catalog")
	return items, nil
}

// GetItem fetches a single catalog item by ID.
func (s *CatalogService) GetItem(ctx context.Context, itemID string) (Item, error) {
	if itemID == "" {
		return Item{}, fmt.Errorf("item ID is required")
	}

	var item Item
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/catalog/items/" + url.PathEscape(itemID),
	}, &item)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// LivePrices fetches current prices for the given item IDs. The ID list is
// sorted before it becomes a query parameter, so the same set of items always
// produces the same cache key regardless of caller ordering.
func (s *CatalogService) LivePrices(ctx context.Context, itemIDs []string) ([]Price, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	sorted := make([]string, len(itemIDs))
	copy(sorted, itemIDs)
	sort.Strings(sorted)

	var prices []Price
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/prices/live",
		Query:  url.Values{"ids": {strings.Join(sorted, ",")}},
	}, &prices)
	if err != nil {
		return nil, err
	}
	return prices, nil
}

// PriceHistory fetches the price history of one item over the given number
// of days.
func (s *CatalogService) PriceHistory(ctx context.Context, itemID string, days int) ([]PricePoint, error) {
	if itemID == "" {
		return nil, fmt.Errorf("item ID is required")
	}
	if days < 1 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	var points []PricePoint
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/prices/history",
		Query: url.Values{
			"item_id": {itemID},
			"days":    {strconv.Itoa(days)},
		},
	}, &points)
	if err != nil {
		return nil, err
	}
	return points, nil
}

// UploadItemImage uploads a product image for an item as a multipart form.
// Requires an authenticated session with admin rights on the backend.
func (s *CatalogService) UploadItemImage(ctx context.Context, itemID, filename string, file io.Reader) error {
	if itemID == "" {
		return fmt.Errorf("item ID is required")
	}

	_, err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/admin/items/" + url.PathEscape(itemID) + "/image",
		Multipart: &api.Multipart{
			FileField: "image",
			FileName:  filename,
			File:      file,
		},
	})
	return err
}
