package webhook_api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DenizBir/KargoGate/config"
	"github.com/DenizBir/KargoGate/internal/api/httpx"
	"github.com/DenizBir/KargoGate/internal/broker/messages"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/platform"
	"github.com/DenizBir/KargoGate/internal/metrics"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/DenizBir/KargoGate/internal/services/shipments"
)

const (
	hmacHeader       = "X-Shopify-Hmac-Sha256"
	shopDomainHeader = "X-Shopify-Shop-Domain"

	courierName = "MNG Kargo"
)

type ShopStore interface {
	GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error)
}

type ShipmentCreator interface {
	Create(ctx context.Context, shop *models.Shop, orderID, courier string, data models.OrderData) (*shipments.Result, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Handler ingests platform order-creation webhooks: verify the HMAC,
// find the merchant, derive a recipient, create the carrier shipment,
// push the fulfillment back. The fulfillment push-back and the kafka
// event are best-effort; the shipment already exists by then.
type Handler struct {
	cfg config.ShopifyConfig

	shops     ShopStore
	shipments ShipmentCreator
	platform  platform.Client

	rl          RateLimiter
	rlPerMinute int64

	producer Producer
	topic    string
}

func New(cfg config.ShopifyConfig, shops ShopStore, svc ShipmentCreator, pf platform.Client, rl RateLimiter, rlPerMinute int, producer Producer, topic string) *Handler {
	return &Handler{
		cfg:         cfg,
		shops:       shops,
		shipments:   svc,
		platform:    pf,
		rl:          rl,
		rlPerMinute: int64(rlPerMinute),
		producer:    producer,
		topic:       topic,
	}
}

// orderPayload is the platform's orders/create webhook body, trimmed to
// the fields this flow reads.
type orderPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`

	// Recipient is an optional explicit carrier-recipient block for
	// merchants shipping to a registered carrier customer id.
	Recipient *struct {
		CustomerID    string `json:"customerId"`
		RefCustomerID string `json:"refCustomerId"`
	} `json:"recipient"`

	ShippingAddress *address `json:"shipping_address"`
	Customer        *struct {
		FirstName      string   `json:"first_name"`
		LastName       string   `json:"last_name"`
		Phone          string   `json:"phone"`
		DefaultAddress *address `json:"default_address"`
	} `json:"customer"`

	LineItems []struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Quantity int    `json:"quantity"`
	} `json:"line_items"`
}

type address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	District  string `json:"district"`
	Phone     string `json:"phone"`
}

type webhookResponse struct {
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
	Barcode        string `json:"barcode,omitempty"`
	LabelURL       string `json:"label_url,omitempty"`
	Status         string `json:"status"`
}

func (h *Handler) HandleOrdersCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(r.Body)
	if err != nil || len(raw) == 0 {
		metrics.WebhookEvents.WithLabelValues("auth_failed").Inc()
		httpx.Error(w, r, errs.Auth("missing request body"))
		return
	}

	if !h.verifySignature(raw, r.Header.Get(hmacHeader)) {
		metrics.WebhookEvents.WithLabelValues("auth_failed").Inc()
		httpx.Error(w, r, errs.Auth("webhook signature mismatch"))
		return
	}

	shopDomain := r.Header.Get(shopDomainHeader)
	if shopDomain == "" {
		metrics.WebhookEvents.WithLabelValues("bad_request").Inc()
		httpx.Error(w, r, errs.Validation("%s header is required", shopDomainHeader))
		return
	}

	if h.rl != nil && h.rlPerMinute > 0 {
		key := fmt.Sprintf("rl:webhook:%s:%s", shopDomain, time.Now().UTC().Format("200601021504"))
		allowed, _, rlErr := h.rl.Allow(ctx, key, h.rlPerMinute, 70*time.Second)
		if rlErr == nil && !allowed {
			metrics.WebhookEvents.WithLabelValues("rate_limited").Inc()
			httpx.JSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
	}

	shop, err := h.shops.GetShopByDomain(ctx, shopDomain)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown_shop").Inc()
		httpx.Error(w, r, err)
		return
	}

	var payload orderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		metrics.WebhookEvents.WithLabelValues("bad_request").Inc()
		httpx.Error(w, r, errs.Validation("malformed order payload: %v", err))
		return
	}
	if payload.ID == 0 {
		metrics.WebhookEvents.WithLabelValues("bad_request").Inc()
		httpx.Error(w, r, errs.Validation("order id is required"))
		return
	}

	data, err := h.buildOrderData(payload)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("bad_request").Inc()
		httpx.Error(w, r, err)
		return
	}

	orderID := strconv.FormatInt(payload.ID, 10)
	res, err := h.shipments.Create(ctx, shop, orderID, courierName, data)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("failed").Inc()
		httpx.Error(w, r, err)
		return
	}
	metrics.WebhookEvents.WithLabelValues("ok").Inc()
	metrics.ShipmentsCreated.WithLabelValues(courierName).Inc()

	if res.TrackingNumber != "" {
		h.pushFulfillment(ctx, shop, payload, res)
	}
	h.publishCreated(ctx, shop, orderID, res)

	httpx.JSON(w, http.StatusOK, webhookResponse{
		OrderID:        orderID,
		TrackingNumber: res.TrackingNumber,
		Barcode:        res.Barcode,
		LabelURL:       res.LabelURL,
		Status:         models.ShipmentStatusCreated,
	})
}

func (h *Handler) verifySignature(raw []byte, got string) bool {
	if h.cfg.HMACBypass {
		return true
	}
	if got == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.cfg.SharedSecret))
	mac.Write(raw)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(got))
}

func (h *Handler) buildOrderData(p orderPayload) (models.OrderData, error) {
	data := models.OrderData{
		InternalID: strconv.FormatInt(p.ID, 10),
		Content:    lineItemContent(p),
	}
	if p.Name != "" {
		data.ReferenceID = p.Name
	}

	if p.Recipient != nil && p.Recipient.CustomerID != "" {
		data.Recipient = models.Recipient{Customer: &models.CustomerRef{
			CustomerID:    p.Recipient.CustomerID,
			RefCustomerID: p.Recipient.RefCustomerID,
		}}
		return data, nil
	}

	addr := p.ShippingAddress
	if addr == nil && p.Customer != nil {
		addr = p.Customer.DefaultAddress
	}

	postal := &models.PostalAddress{Email: p.Email}
	if addr != nil {
		postal.FullName = fullName(addr, p)
		postal.Address = strings.TrimSpace(addr.Address1 + " " + addr.Address2)
		postal.CityName = addr.City
		postal.DistrictName = addr.District
		if postal.DistrictName == "" {
			postal.DistrictName = addr.Province
		}
		postal.MobilePhone = firstNonEmpty(addr.Phone, p.Phone, customerPhone(p))
	}

	if postal.FullName == "" || postal.Address == "" || postal.CityName == "" || postal.DistrictName == "" {
		if !h.cfg.ForceDummyRecipient && !h.cfg.HMACBypass {
			return models.OrderData{}, errs.Validation("order has no resolvable recipient address")
		}
		postal = h.dummyRecipient()
	}

	data.Recipient = models.Recipient{Postal: postal}
	return data, nil
}

// dummyRecipient is the test-only placeholder used when the flag allows
// shipping an order with no usable address.
func (h *Handler) dummyRecipient() *models.PostalAddress {
	return &models.PostalAddress{
		FullName:     firstNonEmpty(h.cfg.DummyFullName, "Test Alıcı"),
		Address:      firstNonEmpty(h.cfg.DummyAddress, "Test Mahallesi Test Sk 1"),
		CityName:     firstNonEmpty(h.cfg.DummyCity, "İstanbul"),
		DistrictName: firstNonEmpty(h.cfg.DummyDistrict, "Kadıköy"),
		MobilePhone:  firstNonEmpty(h.cfg.DummyPhone, "5550000000"),
		Email:        firstNonEmpty(h.cfg.DummyEmail, "test@example.com"),
	}
}

func (h *Handler) pushFulfillment(ctx context.Context, shop *models.Shop, p orderPayload, res *shipments.Result) {
	f := platform.Fulfillment{
		TrackingNumber:  res.TrackingNumber,
		TrackingCompany: courierName,
		NotifyCustomer:  true,
		LocationID:      h.cfg.LocationID,
	}
	for _, li := range p.LineItems {
		f.LineItems = append(f.LineItems, platform.FulfillmentLineItem{ID: li.ID, Quantity: li.Quantity})
	}
	if err := h.platform.CreateFulfillment(ctx, shop.ShopDomain, shop.AccessToken, p.ID, f); err != nil {
		// shipment already exists at the carrier, never fail the webhook here
		slog.Error("fulfillment push-back failed", "shop", shop.ShopDomain, "order_id", p.ID, "error", err.Error())
	}
}

func (h *Handler) publishCreated(ctx context.Context, shop *models.Shop, orderID string, res *shipments.Result) {
	if h.producer == nil || h.topic == "" {
		return
	}
	msg := messages.ShipmentCreated{
		OrderID:        orderID,
		ShopDomain:     shop.ShopDomain,
		Courier:        courierName,
		TrackingNumber: res.TrackingNumber,
		Barcode:        res.Barcode,
		LabelURL:       res.LabelURL,
		CreatedAt:      time.Now().UTC(),
	}
	b, _ := json.Marshal(msg)
	if err := h.producer.Publish(ctx, h.topic, []byte(orderID), b); err != nil {
		slog.Error("publish shipment.created", "order_id", orderID, "error", err.Error())
	}
}

func lineItemContent(p orderPayload) string {
	titles := make([]string, 0, len(p.LineItems))
	for _, li := range p.LineItems {
		if li.Title == "" {
			continue
		}
		if li.Quantity > 1 {
			titles = append(titles, fmt.Sprintf("%s x%d", li.Title, li.Quantity))
		} else {
			titles = append(titles, li.Title)
		}
	}
	if len(titles) == 0 {
		return "Sipariş"
	}
	return strings.Join(titles, ", ")
}

func fullName(addr *address, p orderPayload) string {
	if addr.Name != "" {
		return addr.Name
	}
	n := strings.TrimSpace(addr.FirstName + " " + addr.LastName)
	if n != "" {
		return n
	}
	if p.Customer != nil {
		return strings.TrimSpace(p.Customer.FirstName + " " + p.Customer.LastName)
	}
	return ""
}

func customerPhone(p orderPayload) string {
	if p.Customer != nil {
		return p.Customer.Phone
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
