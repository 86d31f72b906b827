package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fluxo-dev/fluxo/internal/model"
	"github.com/fluxo-dev/fluxo/internal/projection"
	"github.com/fluxo-dev/fluxo/internal/tenant"
	"github.com/fluxo-dev/fluxo/internal/validation"
)

// errBadRequest marks malformed requests (bad JSON, unparsable params).
var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrArityMismatch),
		errors.Is(err, model.ErrInvalidCount),
		errors.Is(err, model.ErrInvalidTransfer),
		errors.Is(err, model.ErrInvalidType),
		errors.Is(err, validation.ErrInvalidInput),
		errors.Is(err, projection.ErrInvalidRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tenant.ErrInvalidTenant), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.deps.Log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
