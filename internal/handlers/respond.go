package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/krabiTim/knownothing-creative-rag/internal/utils"
)

func respondJSON(w http.ResponseWriter, logger *utils.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError maps structured AppErrors to their status and payload;
// anything else becomes a generic 500 with no internal detail leaked.
func respondError(w http.ResponseWriter, logger *utils.Logger, err error) {
	appErr, ok := err.(*utils.AppError)
	if !ok {
		logger.Error("Unhandled internal error", "error", err)
		appErr = utils.NewInternalError("Internal server error")
	}

	logger.Error("Request failed", "status", appErr.StatusCode, "code", appErr.Code, "error", appErr.Message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)
	if encodeErr := json.NewEncoder(w).Encode(appErr); encodeErr != nil {
		logger.Error("Failed to encode error response", "error", encodeErr)
	}
}
