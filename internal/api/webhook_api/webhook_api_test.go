package webhook_api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DenizBir/KargoGate/config"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier/fake"
	"github.com/DenizBir/KargoGate/internal/integrations/platform"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/DenizBir/KargoGate/internal/services/shipments"
	"github.com/stretchr/testify/require"
)

const testSecret = "shh"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type fakeShops struct {
	shops map[string]*models.Shop
	calls int
}

func (f *fakeShops) GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error) {
	f.calls++
	if s, ok := f.shops[shopDomain]; ok {
		return s, nil
	}
	return nil, errs.NotFound("shop not found: %s", shopDomain)
}

type fakeGeo struct {
	calls int
}

func (g *fakeGeo) Resolve(ctx context.Context, cityName, districtName string) (int, int, error) {
	g.calls++
	return 34, 960, nil
}

type fakeTokens struct{ calls int }

func (f *fakeTokens) Get(ctx context.Context, creds carrier.Credentials) (string, error) {
	f.calls++
	return "jwt-1", nil
}

type fakePlatform struct {
	calls       int
	lastShop    string
	lastOrderID int64
	lastF       platform.Fulfillment
	err         error
}

func (f *fakePlatform) CreateFulfillment(ctx context.Context, shopDomain, accessToken string, orderID int64, fl platform.Fulfillment) error {
	f.calls++
	f.lastShop, f.lastOrderID, f.lastF = shopDomain, orderID, fl
	return f.err
}

func (f *fakePlatform) ExchangeToken(ctx context.Context, shopDomain, code string) (string, error) {
	return "", nil
}

func (f *fakePlatform) ListOrders(ctx context.Context, shopDomain, accessToken, status string, limit int) ([]platform.OrderSummary, error) {
	return nil, nil
}

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	calls int
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.calls++
	p.topic, p.key, p.value = topic, key, value
	return nil
}

type fakeRL struct{ allowed bool }

func (r fakeRL) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	return r.allowed, 1, nil
}

type fixture struct {
	h       *Handler
	carrier *fake.Client
	geo     *fakeGeo
	tokens  *fakeTokens
	shops   *fakeShops
	pf      *fakePlatform
	prod    *fakeProducer
}

func newFixture(cfg config.ShopifyConfig) *fixture {
	if cfg.SharedSecret == "" {
		cfg.SharedSecret = testSecret
	}
	fc := fake.New()
	fc.BarcodeResp = carrier.BarcodeResponse{
		ShipmentID: "TRK-100",
		Barcodes:   []carrier.BarcodeValue{{Value: "B1"}},
		LabelURL:   "https://labels/100.pdf",
	}
	geo := &fakeGeo{}
	tokens := &fakeTokens{}
	svc := shipments.New(fc, tokens, shipments.NewBuilder(geo), nil, nil, 0, carrier.Credentials{CustomerNumber: "fallback"})
	shops := &fakeShops{shops: map[string]*models.Shop{
		"demo.myshopify.com": {ShopDomain: "demo.myshopify.com", AccessToken: "shpat_x", CustomerNumber: "100500"},
	}}
	pf := &fakePlatform{}
	prod := &fakeProducer{}
	h := New(cfg, shops, svc, pf, nil, 0, prod, "shipment.created")
	return &fixture{h: h, carrier: fc, geo: geo, tokens: tokens, shops: shops, pf: pf, prod: prod}
}

func doWebhook(t *testing.T, h *Handler, body []byte, sig, shopDomain string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders-create", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set(hmacHeader, sig)
	}
	if shopDomain != "" {
		req.Header.Set(shopDomainHeader, shopDomain)
	}
	rec := httptest.NewRecorder()
	h.HandleOrdersCreate(rec, req)
	return rec
}

func orderBody() []byte {
	return []byte(`{"id":1001,"shipping_address":{"city":"İstanbul","province":"Kadıköy","address1":"Test Sk 1","phone":"5551234567","first_name":"Ali","last_name":"Veli"},"line_items":[{"id":11,"title":"Shirt","quantity":2}]}`)
}

func TestWebhook_EndToEnd(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{LocationID: 77})
	body := orderBody()

	rec := doWebhook(t, fx.h, body, sign(body), "demo.myshopify.com")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "1001", resp.OrderID)
	require.Equal(t, "TRK-100", resp.TrackingNumber)
	require.Equal(t, "created", resp.Status)

	// exactly one of each outbound call
	require.Equal(t, 1, fx.geo.calls)
	require.Equal(t, 1, fx.tokens.calls)
	require.Equal(t, 1, fx.carrier.OrderCalls)
	require.Equal(t, 1, fx.carrier.BarcodeCalls)

	// recipient came from the shipping address, district from province
	require.Equal(t, "İstanbul", fx.carrier.LastOrder.Recipient.CityName)
	require.Equal(t, "Kadıköy", fx.carrier.LastOrder.Recipient.DistrictName)
	require.Equal(t, 34, fx.carrier.LastOrder.Recipient.CityCode)
	require.Equal(t, "Ali Veli", fx.carrier.LastOrder.Recipient.FullName)
	require.Equal(t, "Shirt x2", fx.carrier.LastOrder.Order.Content)

	// fulfillment push-back got the tracking number
	require.Equal(t, 1, fx.pf.calls)
	require.Equal(t, "demo.myshopify.com", fx.pf.lastShop)
	require.Equal(t, int64(1001), fx.pf.lastOrderID)
	require.Equal(t, "TRK-100", fx.pf.lastF.TrackingNumber)
	require.Equal(t, "MNG Kargo", fx.pf.lastF.TrackingCompany)
	require.True(t, fx.pf.lastF.NotifyCustomer)
	require.Equal(t, int64(77), fx.pf.lastF.LocationID)

	require.Equal(t, 1, fx.prod.calls)
	require.Equal(t, "shipment.created", fx.prod.topic)
	require.Equal(t, []byte("1001"), fx.prod.key)
}

func TestWebhook_TamperedSignatureRejected(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	body := orderBody()
	sig := sign(body)
	tampered := append([]byte(nil), body...)
	tampered[2] = 'X'

	rec := doWebhook(t, fx.h, tampered, sig, "demo.myshopify.com")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, fx.carrier.OrderCalls)
	require.Zero(t, fx.tokens.calls)
	require.Zero(t, fx.shops.calls)
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	body := orderBody()
	rec := doWebhook(t, fx.h, body, "", "demo.myshopify.com")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_BypassSkipsSignature(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{HMACBypass: true})
	body := orderBody()
	rec := doWebhook(t, fx.h, body, "not-a-signature", "demo.myshopify.com")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_MissingShopHeader(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	body := orderBody()
	rec := doWebhook(t, fx.h, body, sign(body), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_UnknownShop(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	body := orderBody()
	rec := doWebhook(t, fx.h, body, sign(body), "absent.myshopify.com")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Zero(t, fx.carrier.OrderCalls)
}

func TestWebhook_NoRecipientRejected(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	body := []byte(`{"id":1001,"line_items":[{"title":"Shirt","quantity":1}]}`)
	rec := doWebhook(t, fx.h, body, sign(body), "demo.myshopify.com")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, fx.carrier.OrderCalls)
}

func TestWebhook_DummyRecipientFlag(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{ForceDummyRecipient: true, DummyCity: "Ankara", DummyDistrict: "Çankaya"})
	body := []byte(`{"id":1001}`)
	rec := doWebhook(t, fx.h, body, sign(body), "demo.myshopify.com")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ankara", fx.carrier.LastOrder.Recipient.CityName)
	require.Equal(t, "Çankaya", fx.carrier.LastOrder.Recipient.DistrictName)
}

func TestWebhook_ExplicitCustomerRecipient(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	body := []byte(`{"id":1001,"recipient":{"customerId":"CUST-9","refCustomerId":"EXT-9"}}`)
	rec := doWebhook(t, fx.h, body, sign(body), "demo.myshopify.com")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, fx.geo.calls)
	require.Equal(t, "CUST-9", fx.carrier.LastOrder.Recipient.CustomerID)
}

func TestWebhook_CarrierFailureIs500(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	fx.carrier.OrderErr = errs.Carrier("createOrder rejected", []byte(`{"msg":"bad"}`), nil)
	body := orderBody()
	rec := doWebhook(t, fx.h, body, sign(body), "demo.myshopify.com")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, fx.pf.calls)
	require.Zero(t, fx.prod.calls)
}

func TestWebhook_FulfillmentFailureStill200(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	fx.pf.err = errs.Platform("fulfillment rejected", nil, nil)
	body := orderBody()
	rec := doWebhook(t, fx.h, body, sign(body), "demo.myshopify.com")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, fx.pf.calls)
}

func TestWebhook_RateLimited(t *testing.T) {
	fx := newFixture(config.ShopifyConfig{})
	fx.h.rl = fakeRL{allowed: false}
	fx.h.rlPerMinute = 10
	body := orderBody()
	rec := doWebhook(t, fx.h, body, sign(body), "demo.myshopify.com")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Zero(t, fx.carrier.OrderCalls)
}
