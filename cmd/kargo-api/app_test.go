package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DenizBir/KargoGate/config"
	"github.com/DenizBir/KargoGate/internal/api/cbs_api"
	"github.com/DenizBir/KargoGate/internal/api/orders_api"
	"github.com/DenizBir/KargoGate/internal/api/returns_api"
	"github.com/DenizBir/KargoGate/internal/api/settings_api"
	"github.com/DenizBir/KargoGate/internal/api/shipments_api"
	"github.com/DenizBir/KargoGate/internal/api/webhook_api"
	"github.com/DenizBir/KargoGate/internal/broker/messages"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier/fake"
	"github.com/DenizBir/KargoGate/internal/integrations/platform/shopifyv1"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/DenizBir/KargoGate/internal/services/geocode"
	"github.com/DenizBir/KargoGate/internal/services/returns"
	"github.com/DenizBir/KargoGate/internal/services/shipments"
	"github.com/DenizBir/KargoGate/internal/services/tokens"
	"github.com/DenizBir/KargoGate/internal/storage/pgstore"
	"github.com/stretchr/testify/require"
)

func fakeCreds() carrier.Credentials {
	return carrier.Credentials{
		CustomerNumber: "100500",
		Password:       "pw",
		IdentityType:   1,
	}
}

type fakeShops struct{}

func (s *fakeShops) GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error) {
	return nil, errs.NotFound("shop %q is not registered", shopDomain)
}

func (s *fakeShops) UpsertShop(ctx context.Context, in models.ShopUpsertInput) (*models.Shop, error) {
	return &models.Shop{ShopDomain: in.ShopDomain}, nil
}

func testDeps() apiDeps {
	fc := fake.New()
	shops := &fakeShops{}

	tokenMgr := tokens.New(fc, nil, "static-token")
	geo := geocode.New(fc, nil, time.Hour)
	builder := shipments.NewBuilder(geo)
	shipSvc := shipments.New(fc, tokenMgr, builder, nil, nil, time.Minute, fakeCreds())
	returnsSvc := returns.New(fc, tokenMgr, nil, "CUST-1", fakeCreds())
	shopify := shopifyv1.New("2024-01", "key", "secret")

	return apiDeps{
		webhook:  webhook_api.New(config.ShopifyConfig{SharedSecret: "shh"}, shops, shipSvc, shopify, nil, 0, nil, "shipment.created"),
		cbs:      cbs_api.New(geo),
		ship:     shipments_api.New(shops, shipSvc),
		settings: settings_api.New(shops, tokenMgr),
		returns:  returns_api.New(shops, returnsSvc),
		orders:   orders_api.New(shops, shopify),
		svc:      shipSvc,
	}
}

func TestRunKargoAPI_SwaggerServed(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := kargoAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runKargoAPI(ctx, opts, testDeps(), fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "\"swagger\"")

	resp2, err := http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, 200, resp2.StatusCode)

	resp3, err := http.Get("http://" + httpAddr + "/metrics")
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, 200, resp3.StatusCode)

	// unknown shop on a wired route, straight through the real handler
	resp4, err := http.Get("http://" + httpAddr + "/settings/missing.myshopify.com")
	require.NoError(t, err)
	defer resp4.Body.Close()
	require.Equal(t, 404, resp4.StatusCode)

	cancel()
	require.Error(t, <-errCh)
}

func TestRunKargoAPI_MissingSwaggerFails(t *testing.T) {
	err := runKargoAPI(context.Background(), kargoAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: "/nonexistent/swagger.json",
	}, testDeps(), nil)
	require.Error(t, err)
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

type crashingConsumer struct {
	calls int32
}

func (c *crashingConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	atomic.AddInt32(&c.calls, 1)
	return errors.New("broker gone")
}

type statusRepo struct {
	updates []pgstore.ShipmentStatusUpdate
	err     error
}

func (r *statusRepo) UpsertShipment(ctx context.Context, in models.ShipmentUpsertInput) (*models.Shipment, error) {
	return &models.Shipment{OrderID: in.OrderID}, nil
}

func (r *statusRepo) GetShipmentByOrderID(ctx context.Context, orderID string) (*models.Shipment, error) {
	return &models.Shipment{OrderID: orderID}, nil
}

func (r *statusRepo) ListShipmentsByShop(ctx context.Context, shopDomain string, limit, offset int) ([]*models.Shipment, error) {
	return []*models.Shipment{}, nil
}

func (r *statusRepo) ApplyShipmentStatus(ctx context.Context, upd pgstore.ShipmentStatusUpdate) error {
	r.updates = append(r.updates, upd)
	return r.err
}

func TestStatusUpdateHandler_SkipsMalformed(t *testing.T) {
	repo := &statusRepo{}
	svc := shipments.New(fake.New(), nil, nil, repo, nil, 0, fakeCreds())
	h := statusUpdateHandler(context.Background(), svc)

	// undecodable payload is dropped, not returned as an error, so the
	// consumer commits past it
	require.NoError(t, h(nil, []byte(`{not json`)))
	require.Empty(t, repo.updates)

	msg, _ := json.Marshal(messages.ShipmentStatusChanged{OrderID: "1001", Status: "in_transit"})
	require.NoError(t, h(nil, msg))
	require.Len(t, repo.updates, 1)
	require.Equal(t, "1001", repo.updates[0].OrderID)

	repo.err = errors.New("db down")
	require.Error(t, h(nil, msg))
}

func TestRunKargoAPI_SurvivesConsumerFailure(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := kargoAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: sw,
		onListen:    func(httpAddr string) { addrCh <- httpAddr },
	}

	cons := &crashingConsumer{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- runKargoAPI(ctx, opts, testDeps(), cons)
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.GreaterOrEqual(t, atomic.LoadInt32(&cons.calls), int32(1))

	cancel()
	require.Error(t, <-errCh)
}
