package domain

import (
	"fmt"
	"math"
)

// ImageFormat — выходной формат кодека
type ImageFormat string

const (
	FormatWebP ImageFormat = "webp"
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
)

// ParseImageFormat проверяет и нормализует формат
func ParseImageFormat(s string) (ImageFormat, error) {
	switch ImageFormat(s) {
	case FormatWebP, FormatJPEG, FormatPNG:
		return ImageFormat(s), nil
	default:
		return "", fmt.Errorf("%w: unsupported output format %q", ErrInvalidInput, s)
	}
}

// CompressionSettings — параметры кодирования одной попытки загрузки
type CompressionSettings struct {
	Quality   int         `json:"quality"`
	MaxWidth  int         `json:"max_width"`
	MaxHeight int         `json:"max_height"`
	Format    ImageFormat `json:"format"`
}

// DefaultCompressionSettings — настройки, применяемые сразу после выбора файла
func DefaultCompressionSettings() CompressionSettings {
	return CompressionSettings{
		Quality:   80,
		MaxWidth:  1920,
		MaxHeight: 1080,
		Format:    FormatWebP,
	}
}

// Validate проверяет инварианты настроек при создании, а не в момент использования
func (s CompressionSettings) Validate() error {
	if s.Quality < 1 || s.Quality > 100 {
		return fmt.Errorf("%w: quality must be in [1,100], got %d", ErrInvalidInput, s.Quality)
	}
	if s.MaxWidth <= 0 || s.MaxHeight <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidInput, s.MaxWidth, s.MaxHeight)
	}
	if _, err := ParseImageFormat(string(s.Format)); err != nil {
		return err
	}
	return nil
}

// CompressionRequest — эфемерный запрос на кодирование. Живёт в пределах
// одной попытки загрузки и никогда не сохраняется.
type CompressionRequest struct {
	Source   []byte
	Settings CompressionSettings
}

// NewCompressionRequest создаёт запрос, проверяя инварианты входа.
// Пустой источник отклоняется здесь, чтобы исключить деление на ноль
// при вычислении коэффициента сжатия.
func NewCompressionRequest(source []byte, settings CompressionSettings) (*CompressionRequest, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("%w: source image is empty", ErrInvalidInput)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &CompressionRequest{Source: source, Settings: settings}, nil
}

// CompressionResult — результат кодирования
type CompressionResult struct {
	Data               []byte  `json:"-"`
	SizeBytes          int64   `json:"size_bytes"`
	OriginalSizeBytes  int64   `json:"original_size_bytes"`
	CompressionRatio   float64 `json:"compression_ratio"`
	IsLargerThanSource bool    `json:"is_larger_than_source"`
}

// NewCompressionResult валидирует выход кодека. Нулевой блоб или
// неконечный размер — жёсткая ошибка, а не молчаливое приведение к 0.
func NewCompressionResult(data []byte, originalSize int64) (*CompressionResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: codec returned no data", ErrCompressionFailed)
	}
	if originalSize <= 0 {
		return nil, fmt.Errorf("%w: original size must be positive, got %d", ErrInvalidInput, originalSize)
	}

	size := int64(len(data))
	ratio := math.Abs(float64(size-originalSize)) / float64(originalSize) * 100
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		ratio = 0
	}

	return &CompressionResult{
		Data:               data,
		SizeBytes:          size,
		OriginalSizeBytes:  originalSize,
		CompressionRatio:   ratio,
		IsLargerThanSource: size > originalSize,
	}, nil
}
