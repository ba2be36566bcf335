package settings

import (
	"context"
	"encoding/json"
	"net/http"

	"textvault/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"data": s})
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if s.MaxTokensPerChunk <= 0 {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "max_tokens_per_chunk must be positive", http.StatusBadRequest)
		return
	}
	if s.OverlapTokens < 0 || s.OverlapTokens >= s.MaxTokensPerChunk {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "overlap_tokens must be smaller than max_tokens_per_chunk", http.StatusBadRequest)
		return
	}

	// The vector class is created once at bootstrap, so the collection name
	// is immutable here. Accepting a new name would leave chunks writing to
	// a class that no longer matches the stored setting.
	current, err := h.svc.Get(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if s.Collection == "" {
		s.Collection = current.Collection
	} else if s.Collection != current.Collection {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "collection cannot be changed after bootstrap", http.StatusBadRequest)
		return
	}

	if err := h.svc.Update(r.Context(), &s); err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	json.NewEncoder(w).Encode(resp)
}
