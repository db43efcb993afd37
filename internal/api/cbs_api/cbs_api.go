package cbs_api

import (
	"net/http"
	"strconv"

	"github.com/DenizBir/KargoGate/internal/api/httpx"
	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/services/geocode"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the carrier's geographic reference data: thin reads
// through the resolver's cached city/district fetch.
type Handler struct {
	geo *geocode.Resolver
}

func New(geo *geocode.Resolver) *Handler {
	return &Handler{geo: geo}
}

func (h *Handler) HandleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.geo.Cities(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cities)
}

func (h *Handler) HandleDistricts(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(chi.URLParam(r, "cityCode"))
	if err != nil {
		httpx.Error(w, r, errs.Validation("cityCode must be an integer"))
		return
	}

	districts, err := h.geo.Districts(r.Context(), code)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, districts)
}
