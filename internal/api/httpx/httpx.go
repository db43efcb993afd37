package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DenizBir/KargoGate/internal/errs"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps the error taxonomy onto a status code and a small JSON
// body. Internal failures get logged here so handlers don't have to.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	}
	JSON(w, code, errorBody{Error: err.Error(), Kind: string(errs.KindOf(err))})
}
