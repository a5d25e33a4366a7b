package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"lumashot/internal/domain"
)

// devMode управляет степенью детализации ошибок в ответах:
// в проде наружу уходит только категория и безопасное сообщение
var devMode bool

// SetDevMode включает отдачу технических деталей ошибок клиенту
func SetDevMode(enabled bool) {
	devMode = enabled
}

type errorResponse struct {
	Error  string           `json:"error"`
	Kind   domain.ErrorKind `json:"kind"`
	Detail string           `json:"detail,omitempty"`
}

// safeMessage — сообщения, пригодные для показа пользователю,
// по категории ошибки
func safeMessage(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindInvalidInput:
		return "Request parameters are invalid"
	case domain.KindInvalidName:
		return "The provided name is not allowed"
	case domain.KindUnauthorized:
		return "Authentication required"
	case domain.KindSecurityViolation:
		return "Access to this path is denied"
	case domain.KindNotFound:
		return "Requested item does not exist"
	case domain.KindQuotaExceeded:
		return "Storage quota exceeded"
	case domain.KindCompressionFailed:
		return "The image could not be processed"
	case domain.KindStorageUnavailable:
		return "Storage backend is temporarily unavailable"
	case domain.KindVerificationFailed:
		return "Upload could not be verified"
	default:
		return "Internal server error"
	}
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput, domain.KindInvalidName:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindSecurityViolation:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindQuotaExceeded:
		return http.StatusRequestEntityTooLarge
	case domain.KindCompressionFailed:
		return http.StatusUnprocessableEntity
	case domain.KindStorageUnavailable, domain.KindVerificationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError категоризирует ошибку и отвечает соответствующим
// статусом. Техническая причина логируется всегда, клиенту уходит
// только в dev-режиме.
func respondError(w http.ResponseWriter, err error) {
	kind := domain.Categorize(err)
	status := statusFor(kind)

	if status >= http.StatusInternalServerError {
		log.Printf("[Handler] %s: %v", kind, err)
	}

	resp := errorResponse{
		Error: safeMessage(kind),
		Kind:  kind,
	}
	// Отказ по квоте обязан называть пользователю лимит и текущее
	// использование, поэтому его причина уходит наружу и вне dev-режима
	if kind == domain.KindQuotaExceeded {
		resp.Error = err.Error()
	}
	if devMode {
		resp.Detail = err.Error()
	}

	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[Handler] Ошибка кодирования ответа: %v", err)
	}
}
