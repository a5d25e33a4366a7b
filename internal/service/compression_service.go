package service

import (
	"fmt"

	"lumashot/internal/codec"
	"lumashot/internal/domain"
)

// CompressionService оборачивает кодек контрактом пайплайна: вход и выход
// проверяются здесь, а не доверяются вызывающему или кодеку.
type CompressionService struct {
	codec codec.Codec
}

func NewCompressionService(c codec.Codec) *CompressionService {
	return &CompressionService{codec: c}
}

// Compress выполняет одно кодирование. Детерминирован при одинаковом
// входе и версии кодека. Вызывается и для превью, и в момент коммита —
// финальный артефакт всегда кодируется заново с актуальными настройками.
func (s *CompressionService) Compress(req *domain.CompressionRequest) (*domain.CompressionResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: compression request is required", domain.ErrInvalidInput)
	}
	if len(req.Source) == 0 {
		return nil, fmt.Errorf("%w: source image is empty", domain.ErrInvalidInput)
	}
	if err := req.Settings.Validate(); err != nil {
		return nil, err
	}

	data, err := s.codec.Encode(req.Source, codec.EncodeOptions{
		Quality:   req.Settings.Quality,
		MaxWidth:  req.Settings.MaxWidth,
		MaxHeight: req.Settings.MaxHeight,
		Format:    req.Settings.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCompressionFailed, err)
	}

	return domain.NewCompressionResult(data, int64(len(req.Source)))
}

// SupportedFormats возвращает форматы, доступные у кодека
func (s *CompressionService) SupportedFormats() []domain.ImageFormat {
	var formats []domain.ImageFormat
	for _, f := range []domain.ImageFormat{domain.FormatWebP, domain.FormatJPEG, domain.FormatPNG} {
		if s.codec.Supports(f) {
			formats = append(formats, f)
		}
	}
	return formats
}
