// Package handler provides HTTP handlers for the application.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/dveiga/dealerflow/internal/errors"
)

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError maps an application error onto an HTTP status and writes
// the error envelope. Unclassified errors become 500s with a generic
// message so internals never leak to the caller.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		respondJSON(w, logger, appErr.HTTPStatus(), errorResponse{
			Error: appErr.Message,
			Code:  string(appErr.Code),
		})
		return
	}

	logger.Error("unclassified handler error", zap.Error(err))
	respondJSON(w, logger, http.StatusInternalServerError, errorResponse{
		Error: "internal error",
	})
}
