package orders_api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/DenizBir/KargoGate/internal/api/httpx"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/platform"
	"github.com/DenizBir/KargoGate/internal/models"
)

type ShopStore interface {
	GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error)
}

// Handler is a thin read-through to the platform's order list, for
// merchant dashboards that want orders and shipments side by side.
type Handler struct {
	shops    ShopStore
	platform platform.Client
}

func New(shops ShopStore, pf platform.Client) *Handler {
	return &Handler{shops: shops, platform: pf}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	shopDomain := q.Get("shop")
	if shopDomain == "" {
		httpx.Error(w, r, errs.Validation("shop is required"))
		return
	}

	shop, err := h.shops.GetShopByDomain(ctx, shopDomain)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	status := q.Get("status")
	if status == "" {
		status = "any"
	}
	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 250 {
		limit = n
	}

	orders, err := h.platform.ListOrders(ctx, shop.ShopDomain, shop.AccessToken, status, limit)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if orders == nil {
		orders = []platform.OrderSummary{}
	}
	httpx.JSON(w, http.StatusOK, orders)
}
