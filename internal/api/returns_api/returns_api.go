package returns_api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/DenizBir/KargoGate/internal/api/httpx"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/DenizBir/KargoGate/internal/services/returns"
	"github.com/go-chi/chi/v5"
)

type ShopStore interface {
	GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error)
}

type Handler struct {
	shops ShopStore
	svc   *returns.Service
}

func New(shops ShopStore, svc *returns.Service) *Handler {
	return &Handler{shops: shops, svc: svc}
}

type shipRequest struct {
	ShopDomain string `json:"shop"`
	ReturnID   string `json:"returnId"`
	Reason     string `json:"reason,omitempty"`
	Content    string `json:"content,omitempty"`

	Pieces []struct {
		Barcode string `json:"barcode,omitempty"`
		Desi    int    `json:"desi,omitempty"`
		Kg      int    `json:"kg,omitempty"`
		Content string `json:"content,omitempty"`
	} `json:"pieces,omitempty"`
}

type shipResponse struct {
	ReturnID       string `json:"return_id"`
	OrderInvoiceID string `json:"order_invoice_id,omitempty"`
	LabelURL       string `json:"label_url,omitempty"`
	Status         string `json:"status"`
}

func (h *Handler) HandleShip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req shipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, r, errs.Validation("malformed request body: %v", err))
		return
	}
	if req.ShopDomain == "" {
		httpx.Error(w, r, errs.Validation("shop is required"))
		return
	}

	shop, err := h.shops.GetShopByDomain(ctx, req.ShopDomain)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	in := returns.Input{ReturnID: req.ReturnID, Reason: req.Reason, Content: req.Content}
	for _, p := range req.Pieces {
		in.Pieces = append(in.Pieces, models.Piece{Barcode: p.Barcode, Desi: p.Desi, Kg: p.Kg, Content: p.Content})
	}

	res, err := h.svc.CreateReturn(ctx, shop, in)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, shipResponse{
		ReturnID:       res.ReturnID,
		OrderInvoiceID: res.OrderInvoiceID,
		LabelURL:       res.LabelURL,
		Status:         models.ShipmentStatusCreated,
	})
}

type checkRequest struct {
	ShopDomain string          `json:"shop"`
	Criteria   json.RawMessage `json:"criteria"`
}

// HandleCheck forwards the merchant's return query to the carrier and
// returns the carrier's answer verbatim.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, r, errs.Validation("malformed request body: %v", err))
		return
	}
	if req.ShopDomain == "" {
		httpx.Error(w, r, errs.Validation("shop is required"))
		return
	}

	shop, err := h.shops.GetShopByDomain(ctx, req.ShopDomain)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	out, err := h.svc.CheckReturn(ctx, shop, req.Criteria)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ret, err := h.svc.GetReturn(r.Context(), chi.URLParam(r, "returnId"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}
