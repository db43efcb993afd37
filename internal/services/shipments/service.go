package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DenizBir/KargoGate/internal/broker/messages"
	"github.com/DenizBir/KargoGate/internal/cache"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/DenizBir/KargoGate/internal/storage/pgstore"
)

// TokenSource hands out a valid carrier bearer token for a credential
// set, caching behind the scenes.
type TokenSource interface {
	Get(ctx context.Context, creds carrier.Credentials) (string, error)
}

type Repository interface {
	UpsertShipment(ctx context.Context, in models.ShipmentUpsertInput) (*models.Shipment, error)
	GetShipmentByOrderID(ctx context.Context, orderID string) (*models.Shipment, error)
	ListShipmentsByShop(ctx context.Context, shopDomain string, limit, offset int) ([]*models.Shipment, error)
	ApplyShipmentStatus(ctx context.Context, upd pgstore.ShipmentStatusUpdate) error
}

// Result is what a successful shipment creation hands back to callers:
// the tracking number for the platform fulfillment plus label info.
type Result struct {
	ReferenceID    string
	TrackingNumber string
	Barcode        string
	LabelURL       string
	OrderInvoiceID string
}

// Service orchestrates shipment creation: build the request, get a
// token, createOrder, createbarcode, persist. A barcode failure after a
// successful createOrder is returned as-is; the carrier order is left
// standing and the webhook retry will upsert over it.
type Service struct {
	carrier carrier.Client
	tokens  TokenSource
	builder *Builder
	repo    Repository

	cache      cache.BytesCache
	currentTTL time.Duration

	// fallback credentials from config, for shops installed before
	// per-merchant credentials existed
	fallback carrier.Credentials
}

func New(c carrier.Client, tokens TokenSource, builder *Builder, repo Repository, bc cache.BytesCache, currentTTL time.Duration, fallback carrier.Credentials) *Service {
	return &Service{
		carrier:    c,
		tokens:     tokens,
		builder:    builder,
		repo:       repo,
		cache:      bc,
		currentTTL: currentTTL,
		fallback:   fallback,
	}
}

func (s *Service) Create(ctx context.Context, shop *models.Shop, orderID, courier string, data models.OrderData) (*Result, error) {
	if orderID == "" {
		return nil, errs.Validation("orderId is required")
	}
	if courier == "" {
		return nil, errs.Validation("courier is required")
	}

	req, err := s.builder.Build(ctx, data)
	if err != nil {
		return nil, err
	}

	creds := s.credsFor(shop)
	token, err := s.tokens.Get(ctx, creds)
	if err != nil {
		return nil, err
	}

	orderResp, err := s.carrier.CreateOrder(ctx, creds, token, req)
	if err != nil {
		return nil, err
	}

	bcResp, err := s.carrier.CreateBarcode(ctx, creds, token, carrier.BarcodeRequest{
		ReferenceID:    req.Order.ReferenceID,
		BillOfLadingID: req.Order.BillOfLadingID,
		OrderPieceList: req.OrderPieceList,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		ReferenceID:    req.Order.ReferenceID,
		TrackingNumber: trackingNumber(bcResp),
		Barcode:        joinBarcodes(bcResp),
		LabelURL:       bcResp.LabelURL,
		OrderInvoiceID: orderResp.OrderInvoiceID,
	}

	if s.repo != nil {
		sh, err := s.repo.UpsertShipment(ctx, models.ShipmentUpsertInput{
			OrderID:        orderID,
			ShopDomain:     shop.ShopDomain,
			Courier:        courier,
			ReferenceID:    res.ReferenceID,
			TrackingNumber: res.TrackingNumber,
			Barcode:        res.Barcode,
			LabelURL:       res.LabelURL,
			Status:         models.ShipmentStatusCreated,
		})
		if err != nil {
			return nil, err
		}
		s.cacheShipment(ctx, sh)
	}

	return res, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*models.Shipment, error) {
	if orderID == "" {
		return nil, errs.Validation("orderId is required")
	}

	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, currentKey(orderID)); err == nil && ok {
			var sh models.Shipment
			if json.Unmarshal(b, &sh) == nil {
				return &sh, nil
			}
		}
	}

	sh, err := s.repo.GetShipmentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.cacheShipment(ctx, sh)
	return sh, nil
}

func (s *Service) ListByShop(ctx context.Context, shopDomain string, limit, offset int) ([]*models.Shipment, error) {
	if shopDomain == "" {
		return nil, errs.Validation("shop is required")
	}
	return s.repo.ListShipmentsByShop(ctx, shopDomain, limit, offset)
}

// ApplyKafkaUpdate applies one status message from the worker and
// refreshes the cached snapshot.
func (s *Service) ApplyKafkaUpdate(ctx context.Context, msg messages.ShipmentStatusChanged) error {
	if msg.OrderID == "" {
		return errs.Validation("order_id is required")
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = time.Now().UTC()
	}
	if msg.NextCheckAt.IsZero() {
		msg.NextCheckAt = msg.CheckedAt.Add(60 * time.Minute)
	}

	err := s.repo.ApplyShipmentStatus(ctx, pgstore.ShipmentStatusUpdate{
		OrderID:     msg.OrderID,
		CheckedAt:   msg.CheckedAt,
		Status:      msg.Status,
		NextCheckAt: msg.NextCheckAt,
		Error:       msg.Error,
	})
	if err != nil {
		return err
	}

	if sh, err := s.repo.GetShipmentByOrderID(ctx, msg.OrderID); err == nil {
		s.cacheShipment(ctx, sh)
	}
	return nil
}

func (s *Service) credsFor(shop *models.Shop) carrier.Credentials {
	return CredentialsFor(shop, s.fallback)
}

func (s *Service) cacheShipment(ctx context.Context, sh *models.Shipment) {
	if s.cache == nil || s.currentTTL <= 0 || sh == nil {
		return
	}
	b, _ := json.Marshal(sh)
	_ = s.cache.Set(ctx, currentKey(sh.OrderID), b, s.currentTTL)
}

// trackingNumber prefers the carrier shipment id and falls back to the
// first piece barcode.
func trackingNumber(resp carrier.BarcodeResponse) string {
	if resp.ShipmentID != "" {
		return resp.ShipmentID
	}
	if len(resp.Barcodes) > 0 {
		return resp.Barcodes[0].Value
	}
	return ""
}

func joinBarcodes(resp carrier.BarcodeResponse) string {
	vals := make([]string, 0, len(resp.Barcodes))
	for _, b := range resp.Barcodes {
		if b.Value != "" {
			vals = append(vals, b.Value)
		}
	}
	return strings.Join(vals, ",")
}

func currentKey(orderID string) string {
	return fmt.Sprintf("shipment:%s:current", orderID)
}
