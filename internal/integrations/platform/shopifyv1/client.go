package shopifyv1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/platform"
	"github.com/pkg/errors"
)

// Client implements the Shopify Admin REST surface we need: fulfillment
// creation, access-token exchange and the order listing passthrough.
type Client struct {
	apiVersion string
	apiKey     string
	apiSecret  string

	// baseURL overrides the per-shop https://{shop} host. Test hook.
	baseURL string

	httpc *http.Client
}

func New(apiVersion, apiKey, apiSecret string) *Client {
	if apiVersion == "" {
		apiVersion = "2025-10"
	}
	return &Client{
		apiVersion: apiVersion,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithBaseURL points every shop at a fixed host instead of
// https://{shopDomain}. Only tests use this.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

func (c *Client) hostFor(shopDomain string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + shopDomain
}

type fulfillmentBody struct {
	Fulfillment fulfillmentFields `json:"fulfillment"`
}

type fulfillmentFields struct {
	LocationID      int64                 `json:"location_id,omitempty"`
	TrackingNumber  string                `json:"tracking_number"`
	TrackingCompany string                `json:"tracking_company,omitempty"`
	NotifyCustomer  bool                  `json:"notify_customer"`
	LineItems       []fulfillmentLineItem `json:"line_items,omitempty"`
}

type fulfillmentLineItem struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}

func (c *Client) CreateFulfillment(ctx context.Context, shopDomain, accessToken string, orderID int64, f platform.Fulfillment) error {
	items := make([]fulfillmentLineItem, 0, len(f.LineItems))
	for _, li := range f.LineItems {
		items = append(items, fulfillmentLineItem{ID: li.ID, Quantity: li.Quantity})
	}
	body := fulfillmentBody{Fulfillment: fulfillmentFields{
		LocationID:      f.LocationID,
		TrackingNumber:  f.TrackingNumber,
		TrackingCompany: f.TrackingCompany,
		NotifyCustomer:  f.NotifyCustomer,
		LineItems:       items,
	}}

	u := fmt.Sprintf("%s/admin/api/%s/orders/%d/fulfillments.json", c.hostFor(shopDomain), c.apiVersion, orderID)
	return c.post(ctx, u, accessToken, body, nil)
}

type tokenExchangeReq struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

type tokenExchangeResp struct {
	AccessToken string `json:"access_token"`
}

func (c *Client) ExchangeToken(ctx context.Context, shopDomain, code string) (string, error) {
	u := c.hostFor(shopDomain) + "/admin/oauth/access_token"
	var r tokenExchangeResp
	err := c.post(ctx, u, "", tokenExchangeReq{ClientID: c.apiKey, ClientSecret: c.apiSecret, Code: code}, &r)
	if err != nil {
		return "", err
	}
	if r.AccessToken == "" {
		return "", errs.Platform("shopify token exchange returned no access_token", nil, nil)
	}
	return r.AccessToken, nil
}

type ordersResp struct {
	Orders []struct {
		ID             int64     `json:"id"`
		Name           string    `json:"name"`
		TotalPrice     string    `json:"total_price"`
		Currency       string    `json:"currency"`
		OrderStatusURL string    `json:"order_status_url"`
		CreatedAt      time.Time `json:"created_at"`
		LineItems      []struct {
			Title    string `json:"title"`
			Quantity int    `json:"quantity"`
		} `json:"line_items"`
		Customer *struct {
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Email     string `json:"email"`
		} `json:"customer"`
	} `json:"orders"`
}

func (c *Client) ListOrders(ctx context.Context, shopDomain, accessToken, status string, limit int) ([]platform.OrderSummary, error) {
	if status == "" {
		status = "open"
	}
	if limit <= 0 {
		limit = 20
	}
	u := fmt.Sprintf("%s/admin/api/%s/orders.json?status=%s&limit=%d", c.hostFor(shopDomain), c.apiVersion, status, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("X-Shopify-Access-Token", accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errs.Platform("shopify list orders", nil, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Platform("shopify list orders read body", nil, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, errs.Platform(fmt.Sprintf("shopify list orders http %d", resp.StatusCode), b, nil)
	}

	var r ordersResp
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errs.Platform("shopify list orders decode", b, err)
	}

	out := make([]platform.OrderSummary, 0, len(r.Orders))
	for _, o := range r.Orders {
		s := platform.OrderSummary{
			ID:             o.ID,
			Name:           o.Name,
			TotalPrice:     o.TotalPrice,
			Currency:       o.Currency,
			OrderStatusURL: o.OrderStatusURL,
			CreatedAt:      o.CreatedAt,
			CustomerName:   "Anonim",
			CustomerEmail:  "-",
		}
		if o.Customer != nil {
			s.CustomerName = o.Customer.FirstName + " " + o.Customer.LastName
			if o.Customer.Email != "" {
				s.CustomerEmail = o.Customer.Email
			}
		}
		for _, li := range o.LineItems {
			s.LineItems = append(s.LineItems, platform.OrderLineItem{Title: li.Title, Quantity: li.Quantity})
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, url, accessToken string, body, result any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("X-Shopify-Access-Token", accessToken)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errs.Platform("shopify post", nil, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Platform("shopify read body", nil, err)
	}
	if resp.StatusCode/100 != 2 {
		return errs.Platform(fmt.Sprintf("shopify http %d", resp.StatusCode), respBody, nil)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return errs.Platform("shopify decode", respBody, err)
		}
	}
	return nil
}
