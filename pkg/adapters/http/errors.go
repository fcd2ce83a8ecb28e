package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/concierge/pkg/domain"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	statusReady   = "ready"
)

// StatusResponse is the body of every non-resource reply.
type StatusResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Stage   domain.Stage `json:"stage,omitempty"`
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrJobNotPending):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = "Error processing request"
	} else {
		s.logger.Warn("Request rejected", "method", r.Method, "path", r.URL.Path, "status", code, "err", err)
	}
	writeJSON(w, s.logger, code, StatusResponse{Status: statusError, Message: msg})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
