package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"paworker/internal/store"
)

type DeadLetterHandler struct {
	Store  *store.DeadLetters
	Logger *zap.Logger
}

type deadLetterDTO struct {
	JobUUID    string          `json:"job_uuid"`
	DocumentID int64           `json:"document_id"`
	Reason     string          `json:"reason"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// List shows the newest dead-lettered jobs for operators.
func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rows, err := h.Store.List(r.Context(), limit)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	out := make([]deadLetterDTO, 0, len(rows))
	for _, d := range rows {
		out = append(out, deadLetterDTO{
			JobUUID:    d.JobUUID,
			DocumentID: d.DocumentID,
			Reason:     d.Reason,
			Payload:    d.Payload,
			CreatedAt:  d.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}
