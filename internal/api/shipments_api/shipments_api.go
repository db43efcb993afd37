package shipments_api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/DenizBir/KargoGate/internal/api/httpx"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/DenizBir/KargoGate/internal/services/shipments"
	"github.com/go-chi/chi/v5"
)

type ShopStore interface {
	GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error)
}

type Service interface {
	Create(ctx context.Context, shop *models.Shop, orderID, courier string, data models.OrderData) (*shipments.Result, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Shipment, error)
	ListByShop(ctx context.Context, shopDomain string, limit, offset int) ([]*models.Shipment, error)
}

// Handler is the manual shipment surface: merchants create shipments
// directly instead of through the webhook, and read them back.
type Handler struct {
	shops ShopStore
	svc   Service
}

func New(shops ShopStore, svc Service) *Handler {
	return &Handler{shops: shops, svc: svc}
}

type createRequest struct {
	ShopDomain string `json:"shop"`
	OrderID    string `json:"orderId"`

	ReferenceID string `json:"referenceId,omitempty"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`

	IsCOD     int     `json:"isCOD,omitempty"`
	CODAmount float64 `json:"codAmount,omitempty"`

	Recipient struct {
		CustomerID    string `json:"customerId,omitempty"`
		RefCustomerID string `json:"refCustomerId,omitempty"`

		FullName     string `json:"fullName,omitempty"`
		Address      string `json:"address,omitempty"`
		MobilePhone  string `json:"mobilePhone,omitempty"`
		Email        string `json:"email,omitempty"`
		CityName     string `json:"city,omitempty"`
		DistrictName string `json:"district,omitempty"`
	} `json:"recipient"`

	Pieces []struct {
		Barcode string `json:"barcode,omitempty"`
		Desi    int    `json:"desi,omitempty"`
		Kg      int    `json:"kg,omitempty"`
		Content string `json:"content,omitempty"`
	} `json:"pieces,omitempty"`
}

type createResponse struct {
	OrderID        string `json:"order_id"`
	ReferenceID    string `json:"reference_id"`
	TrackingNumber string `json:"tracking_number"`
	Barcode        string `json:"barcode,omitempty"`
	LabelURL       string `json:"label_url,omitempty"`
	Status         string `json:"status"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, r, errs.Validation("malformed request body: %v", err))
		return
	}
	if req.ShopDomain == "" {
		httpx.Error(w, r, errs.Validation("shop is required"))
		return
	}
	if req.OrderID == "" {
		httpx.Error(w, r, errs.Validation("orderId is required"))
		return
	}

	shop, err := h.shops.GetShopByDomain(ctx, req.ShopDomain)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	res, err := h.svc.Create(ctx, shop, req.OrderID, "MNG Kargo", toOrderData(req))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, createResponse{
		OrderID:        req.OrderID,
		ReferenceID:    res.ReferenceID,
		TrackingNumber: res.TrackingNumber,
		Barcode:        res.Barcode,
		LabelURL:       res.LabelURL,
		Status:         models.ShipmentStatusCreated,
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sh, err := h.svc.GetByOrderID(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sh)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), 100)
	offset := intParam(q.Get("offset"), 0)

	list, err := h.svc.ListByShop(r.Context(), q.Get("shop"), limit, offset)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Shipment{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func toOrderData(req createRequest) models.OrderData {
	data := models.OrderData{
		ReferenceID: req.ReferenceID,
		InternalID:  req.OrderID,
		Content:     req.Content,
		Description: req.Description,
		IsCOD:       req.IsCOD,
		CODAmount:   req.CODAmount,
	}

	if req.Recipient.CustomerID != "" {
		data.Recipient = models.Recipient{Customer: &models.CustomerRef{
			CustomerID:    req.Recipient.CustomerID,
			RefCustomerID: req.Recipient.RefCustomerID,
		}}
	} else {
		data.Recipient = models.Recipient{Postal: &models.PostalAddress{
			FullName:     req.Recipient.FullName,
			Address:      req.Recipient.Address,
			MobilePhone:  req.Recipient.MobilePhone,
			Email:        req.Recipient.Email,
			CityName:     req.Recipient.CityName,
			DistrictName: req.Recipient.DistrictName,
		}}
	}

	for _, p := range req.Pieces {
		data.Pieces = append(data.Pieces, models.Piece{
			Barcode: p.Barcode,
			Desi:    p.Desi,
			Kg:      p.Kg,
			Content: p.Content,
		})
	}
	return data
}

func intParam(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
