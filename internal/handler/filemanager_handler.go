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

type FileManagerHandler struct {
	files    *service.FileManagerService
	validate *validator.Validate
}

func NewFileManagerHandler(files *service.FileManagerService) *FileManagerHandler {
	return &FileManagerHandler{
		files:    files,
		validate: validator.New(),
	}
}

type listResponse struct {
	Path   string               `json:"path"`
	Assets []domain.StoredAsset `json:"assets"`
}

// List отдаёт содержимое каталога песочницы: сначала папки, потом
// файлы, внутри группы — лексикографический порядок
func (h *FileManagerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		path = domain.SandboxRoot(userID)
	}

	assets, err := h.files.List(r.Context(), userID, path)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, listResponse{Path: path, Assets: assets})
}

type createFolderRequest struct {
	Path string `json:"path" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (h *FileManagerHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	folder, err := h.files.CreateFolder(r.Context(), userID, req.Path, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, folder)
}

type renameRequest struct {
	Path    string `json:"path" validate:"required"`
	NewName string `json:"new_name" validate:"required"`
}

func (h *FileManagerHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	if err := h.files.Rename(r.Context(), userID, req.Path, req.NewName); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

type moveRequest struct {
	Path     string `json:"path" validate:"required"`
	DestPath string `json:"dest_path" validate:"required"`
}

func (h *FileManagerHandler) Move(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	if err := h.files.Move(r.Context(), userID, req.Path, req.DestPath); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (h *FileManagerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		respondError(w, err)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, fmt.Errorf("%w: path is required", domain.ErrInvalidInput))
		return
	}
	recursive := r.URL.Query().Get("recursive") == "true"

	if err := h.files.Delete(r.Context(), userID, path, recursive); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
