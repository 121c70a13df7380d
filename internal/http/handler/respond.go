package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"paworker/internal/common"
	"paworker/internal/logging"
	"paworker/internal/requests"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service errors onto status codes. Anything unclassified is
// logged and reported as a 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, requests.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		if log != nil {
			log.Error("request failed", zap.String(logging.FieldErrorKind, string(common.KindOf(err))), zap.Error(err))
		}
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
