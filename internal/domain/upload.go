package domain

import "strconv"

// UploadState — именованное состояние попытки загрузки. Переходы
// выполняет оркестратор; UI только отображает текущее состояние.
type UploadState string

const (
	StateIdle                    UploadState = "idle"
	StateFileSelected            UploadState = "file_selected"
	StatePreviewCompressing      UploadState = "preview_compressing"
	StatePreviewReady            UploadState = "preview_ready"
	StateCommitCompressing       UploadState = "commit_compressing"
	StateQuotaExceeded           UploadState = "quota_exceeded"
	StateSizeConfirmationPending UploadState = "size_confirmation_pending"
	StatePersisting              UploadState = "persisting"
	StateVerifying               UploadState = "verifying"
	StateDone                    UploadState = "done"
	StateFailed                  UploadState = "failed"
)

// Terminal сообщает, завершена ли попытка
func (s UploadState) Terminal() bool {
	switch s {
	case StateQuotaExceeded, StateDone, StateFailed:
		return true
	}
	return false
}

// UploadMetadata — метаданные, прикрепляемые к сохранённому артефакту
type UploadMetadata struct {
	OriginalName     string `json:"original_name"`
	OriginalSize     int64  `json:"original_size"`
	CompressedSize   int64  `json:"compressed_size"`
	CompressionRatio string `json:"compression_ratio"`
	Quality          string `json:"quality"`
	MaxWidth         string `json:"max_width"`
	MaxHeight        string `json:"max_height"`
	UploadedBy       string `json:"uploaded_by"`
	UploadedAt       string `json:"uploaded_at"`
}

// ToMap отдаёт метаданные в виде, пригодном для заголовков объекта S3
func (m UploadMetadata) ToMap() map[string]string {
	return map[string]string{
		"original-name":     m.OriginalName,
		"original-size":     strconv.FormatInt(m.OriginalSize, 10),
		"compressed-size":   strconv.FormatInt(m.CompressedSize, 10),
		"compression-ratio": m.CompressionRatio,
		"quality":           m.Quality,
		"max-width":         m.MaxWidth,
		"max-height":        m.MaxHeight,
		"uploaded-by":       m.UploadedBy,
		"uploaded-at":       m.UploadedAt,
	}
}
