package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paworker/internal/auth"
	"paworker/internal/requests"
	"paworker/internal/store"
)

type PARequestHandler struct {
	Svc    *requests.Service
	Logger *zap.Logger
}

type packDTO struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	Decision  *string   `json:"decision"`
	CreatedAt time.Time `json:"created_at"`
}

type paRequestDTO struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	LatestEvidencePack *packDTO  `json:"latest_evidence_pack"`
}

func toRequestDTO(d requests.Detail) paRequestDTO {
	out := paRequestDTO{
		ID:        d.Request.RequestUUID,
		Status:    d.Request.Status,
		CreatedAt: d.Request.CreatedAt,
	}
	if p := d.LatestPack; p != nil {
		out.LatestEvidencePack = &packDTO{
			ID:        p.ID,
			Status:    p.Status,
			Decision:  p.Decision,
			CreatedAt: p.CreatedAt,
		}
	}
	return out
}

func (h *PARequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := h.Svc.Create(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(requests.Detail{Request: req}))
}

func (h *PARequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.Svc.Get(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(d))
}

type uploadReq struct {
	DocumentText string `json:"document_text"`
}

// UploadDocument answers 201 for a new document and 200 when the
// Idempotency-Key matched an earlier upload.
func (h *PARequestHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	var req uploadReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	var idem *string
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		idem = &k
	}

	res, err := h.Svc.Upload(r.Context(), requests.UploadInput{
		RequestUUID:    chi.URLParam(r, "uuid"),
		Text:           req.DocumentText,
		IdempotencyKey: idem,
		Actor:          auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"document_id": res.DocumentUUID,
		"status":      res.Status,
	})
}

func (h *PARequestHandler) Audit(w http.ResponseWriter, r *http.Request) {
	q, ok := parseAuditQuery(w, r)
	if !ok {
		return
	}

	rows, err := h.Svc.Audit(r.Context(), chi.URLParam(r, "uuid"), q)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if rows == nil {
		rows = []store.AuditLog{}
	}

	q = q.Normalize()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows,
		"limit": q.Limit,
		"page":  q.Page,
	})
}

func parseAuditQuery(w http.ResponseWriter, r *http.Request) (store.AuditQuery, bool) {
	var q store.AuditQuery
	v := r.URL.Query()

	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return q, false
		}
		q.Limit = n
	}
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return q, false
		}
		q.Page = n
	}
	for _, a := range strings.Split(v.Get("action"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			q.Actions = append(q.Actions, a)
		}
	}
	return q, true
}
