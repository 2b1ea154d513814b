package storefront

import "time"

// User is the authenticated shopper as returned by the backend.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Item is a single catalog entry. Monetary amounts are integer cents.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	InStock     bool   `json:"in_stock"`
}

// ItemPage is one page of the catalog listing. The page metadata travels in
// the body so it survives response caching, which keeps only the payload.
type ItemPage struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
}

// Price is the current price of a single item.
type Price struct {
	ItemID      string    `json:"item_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PricePoint is one historical price observation.
type PricePoint struct {
	Timestamp   time.Time `json:"timestamp"`
	AmountCents int64     `json:"amount_cents"`
}

// CartLine is one entry in the shopping cart.
type CartLine struct {
	ItemID         string `json:"item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Cart is the shopper's current cart as computed by the backend.
type Cart struct {
	Lines      []CartLine `json:"lines"`
	TotalCents int64      `json:"total_cents"`
	Currency   string     `json:"currency"`
}

// CheckoutConfirmation is the opaque signed payload produced by the payment
// widget. It is forwarded to the backend wholesale and never interpreted
// client-side.
type CheckoutConfirmation struct {
	Token     string `json:"token"`
	Signature string `json:"signature"`
}

// Order is a submitted order.
type Order struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Lines      []CartLine `json:"lines"`
	TotalCents int64      `json:"total_cents"`
	Currency   string     `json:"currency"`
	CreatedAt  time.Time  `json:"created_at"`
}
