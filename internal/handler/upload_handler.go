package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"lumashot/internal/auth"
	"lumashot/internal/domain"
	"lumashot/internal/service"
)

// maxUploadForm — лимит парсинга multipart-формы, с запасом над
// лимитом исходника
const maxUploadForm = 12 << 20

type UploadHandler struct {
	uploads  *service.UploadService
	validate *validator.Validate
}

func NewUploadHandler(uploads *service.UploadService) *UploadHandler {
	return &UploadHandler{
		uploads:  uploads,
		validate: validator.New(),
	}
}

type settingsRequest struct {
	Quality   int    `json:"quality" validate:"required,min=1,max=100"`
	MaxWidth  int    `json:"max_width" validate:"required,min=1"`
	MaxHeight int    `json:"max_height" validate:"required,min=1"`
	Format    string `json:"format" validate:"required,oneof=webp jpeg png"`
}

// SelectFile принимает multipart-форму с исходным изображением и
// регистрирует попытку загрузки
func (h *UploadHandler) SelectFile(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadForm); err != nil {
		respondError(w, fmt.Errorf("%w: cannot parse form: %v", domain.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, fmt.Errorf("%w: file field is required", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, fmt.Errorf("%w: cannot read file: %v", domain.ErrInvalidInput, err))
		return
	}

	subPath := r.FormValue("sub_path")
	contentType := header.Header.Get("Content-Type")

	view, err := h.uploads.SelectFile(r.Context(), userID, header.Filename, contentType, data, subPath)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, view)
}

func (h *UploadHandler) attemptID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid attempt id", domain.ErrInvalidInput)
	}
	return id, nil
}

// UpdateSettings пересобирает превью с новыми параметрами кодирования
func (h *UploadHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := h.attemptID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	format, err := domain.ParseImageFormat(req.Format)
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := h.uploads.UpdateSettings(r.Context(), userID, id, domain.CompressionSettings{
		Quality:   req.Quality,
		MaxWidth:  req.MaxWidth,
		MaxHeight: req.MaxHeight,
		Format:    format,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Commit запускает финальное кодирование, проверку квоты и запись
func (h *UploadHandler) Commit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.uploads.Commit)
}

// ConfirmOversize подтверждает сохранение выросшего артефакта
func (h *UploadHandler) ConfirmOversize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.uploads.ConfirmOversize)
}

// CancelOversize возвращает попытку к готовому превью
func (h *UploadHandler) CancelOversize(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.uploads.CancelOversize)
}

// transition — общий каркас переходов без тела запроса
func (h *UploadHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, userID string, id uuid.UUID) (*service.AttemptView, error),
) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := h.attemptID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := op(r.Context(), userID, id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// GetAttempt возвращает текущее состояние попытки
func (h *UploadHandler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := h.attemptID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	view, err := h.uploads.Get(r.Context(), userID, id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}
