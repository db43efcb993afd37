package platform

import (
	"context"
	"time"
)

// Fulfillment is the update pushed back to the e-commerce platform once a
// carrier shipment exists.
type Fulfillment struct {
	TrackingNumber  string
	TrackingCompany string
	NotifyCustomer  bool
	LocationID      int64
	LineItems       []FulfillmentLineItem
}

type FulfillmentLineItem struct {
	ID       int64
	Quantity int
}

type OrderLineItem struct {
	Title    string
	Quantity int
}

// OrderSummary is the trimmed order shape exposed by the orders
// passthrough endpoint.
type OrderSummary struct {
	ID             int64
	Name           string
	TotalPrice     string
	Currency       string
	OrderStatusURL string
	CustomerName   string
	CustomerEmail  string
	LineItems      []OrderLineItem
	CreatedAt      time.Time
}

type Client interface {
	CreateFulfillment(ctx context.Context, shopDomain, accessToken string, orderID int64, f Fulfillment) error
	ExchangeToken(ctx context.Context, shopDomain, code string) (string, error)
	ListOrders(ctx context.Context, shopDomain, accessToken, status string, limit int) ([]OrderSummary, error)
}
