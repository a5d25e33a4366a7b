package handler

import (
	"net/http"

	"lumashot/internal/auth"
	"lumashot/internal/service"
)

type DiagnosticsHandler struct {
	diagnostics *service.DiagnosticsService
}

func NewDiagnosticsHandler(diagnostics *service.DiagnosticsService) *DiagnosticsHandler {
	return &DiagnosticsHandler{diagnostics: diagnostics}
}

// Run запускает батарею проверок от имени вызывающего пользователя
func (h *DiagnosticsHandler) Run(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	report, err := h.diagnostics.Run(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
