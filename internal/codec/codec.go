package codec

import "lumashot/internal/domain"

// EncodeOptions — параметры одного кодирования
type EncodeOptions struct {
	Quality   int
	MaxWidth  int
	MaxHeight int
	Format    domain.ImageFormat
}

// Codec перекодирует изображение. Реализация на libvips живёт в bimg.go;
// тесты подставляют детерминированную заглушку.
type Codec interface {
	Encode(data []byte, opts EncodeOptions) ([]byte, error)
	Supports(format domain.ImageFormat) bool
}
