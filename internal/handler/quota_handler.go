package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"lumashot/internal/auth"
	"lumashot/internal/domain"
	"lumashot/internal/service"
)

type QuotaHandler struct {
	quota    *service.QuotaService
	validate *validator.Validate
}

func NewQuotaHandler(quota *service.QuotaService) *QuotaHandler {
	return &QuotaHandler{
		quota:    quota,
		validate: validator.New(),
	}
}

// GetQuota возвращает свежий снимок использования хранилища.
// Использование пересчитывается по требованию, счётчик нигде
// не персистится.
func (h *QuotaHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	info, err := h.quota.GetQuotaInfo(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

type updateLimitRequest struct {
	LimitBytes int64 `json:"limit_bytes" validate:"required,min=1"`
}

func (h *QuotaHandler) UpdateLimit(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req updateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	if err := h.quota.UpdateQuotaLimit(r.Context(), userID, req.LimitBytes); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "updated",
		"limit_bytes": req.LimitBytes,
	})
}
