package settings_api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/DenizBir/KargoGate/internal/api/httpx"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/go-chi/chi/v5"
)

type ShopStore interface {
	UpsertShop(ctx context.Context, in models.ShopUpsertInput) (*models.Shop, error)
	GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error)
}

type TokenInvalidator interface {
	Invalidate(ctx context.Context, customerNumber string) error
}

// Handler manages per-merchant carrier credentials. Updating a
// credential set drops the cached carrier token for that customer
// number so the next call authenticates fresh.
type Handler struct {
	shops  ShopStore
	tokens TokenInvalidator
}

func New(shops ShopStore, tokens TokenInvalidator) *Handler {
	return &Handler{shops: shops, tokens: tokens}
}

type updateRequest struct {
	ShopDomain string `json:"shop"`

	AccessToken string `json:"accessToken,omitempty"`

	CustomerNumber string `json:"customerNumber,omitempty"`
	Password       string `json:"password,omitempty"`
	IdentityType   int    `json:"identityType,omitempty"`

	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`

	OrderClientID     string `json:"orderClientId,omitempty"`
	OrderClientSecret string `json:"orderClientSecret,omitempty"`

	CarrierCustomerID string `json:"carrierCustomerId,omitempty"`
}

// shopView hides secrets; the read endpoint reports which credentials
// are present, never their values.
type shopView struct {
	ShopDomain        string `json:"shop"`
	CustomerNumber    string `json:"customerNumber,omitempty"`
	IdentityType      int    `json:"identityType,omitempty"`
	CarrierCustomerID string `json:"carrierCustomerId,omitempty"`

	HasAccessToken     bool `json:"hasAccessToken"`
	HasPassword        bool `json:"hasPassword"`
	HasClientPair      bool `json:"hasClientPair"`
	HasOrderClientPair bool `json:"hasOrderClientPair"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, r, errs.Validation("malformed request body: %v", err))
		return
	}
	if req.ShopDomain == "" {
		httpx.Error(w, r, errs.Validation("shop is required"))
		return
	}

	shop, err := h.shops.UpsertShop(ctx, models.ShopUpsertInput{
		ShopDomain:        req.ShopDomain,
		AccessToken:       req.AccessToken,
		CustomerNumber:    req.CustomerNumber,
		Password:          req.Password,
		IdentityType:      req.IdentityType,
		ClientID:          req.ClientID,
		ClientSecret:      req.ClientSecret,
		OrderClientID:     req.OrderClientID,
		OrderClientSecret: req.OrderClientSecret,
		CarrierCustomerID: req.CarrierCustomerID,
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}

	// rotated credentials invalidate the cached token
	if h.tokens != nil && shop.CustomerNumber != "" {
		_ = h.tokens.Invalidate(ctx, shop.CustomerNumber)
	}

	httpx.JSON(w, http.StatusOK, toView(shop))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	shop, err := h.shops.GetShopByDomain(r.Context(), chi.URLParam(r, "shop"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(shop))
}

func toView(s *models.Shop) shopView {
	return shopView{
		ShopDomain:         s.ShopDomain,
		CustomerNumber:     s.CustomerNumber,
		IdentityType:       s.IdentityType,
		CarrierCustomerID:  s.CarrierCustomerID,
		HasAccessToken:     s.AccessToken != "",
		HasPassword:        s.Password != "",
		HasClientPair:      s.ClientID != "" && s.ClientSecret != "",
		HasOrderClientPair: s.OrderClientID != "" && s.OrderClientSecret != "",
	}
}
