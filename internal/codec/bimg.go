package codec

import (
	"fmt"

	"github.com/h2non/bimg"

	"lumashot/internal/domain"
)

// BimgCodec кодирует изображения через libvips
type BimgCodec struct{}

func NewBimgCodec() *BimgCodec {
	return &BimgCodec{}
}

func imageType(format domain.ImageFormat) (bimg.ImageType, error) {
	switch format {
	case domain.FormatWebP:
		return bimg.WEBP, nil
	case domain.FormatJPEG:
		return bimg.JPEG, nil
	case domain.FormatPNG:
		return bimg.PNG, nil
	default:
		return bimg.UNKNOWN, fmt.Errorf("unsupported format: %s", format)
	}
}

// Encode перекодирует изображение с ограничением размеров и качеством.
// Изображение не увеличивается: если оно уже помещается в рамки,
// меняются только качество и формат.
func (c *BimgCodec) Encode(data []byte, opts EncodeOptions) ([]byte, error) {
	imgType, err := imageType(opts.Format)
	if err != nil {
		return nil, err
	}

	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := boundedDimensions(size.Width, size.Height, opts.MaxWidth, opts.MaxHeight)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: opts.Quality,
		Type:    imgType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// Supports сообщает, умеет ли кодек кодировать в указанный формат
func (c *BimgCodec) Supports(format domain.ImageFormat) bool {
	_, err := imageType(format)
	return err == nil
}

// boundedDimensions вычисляет новые размеры с сохранением пропорций
func boundedDimensions(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}

	wRatio := float64(maxWidth) / float64(width)
	hRatio := float64(maxHeight) / float64(height)
	ratio := wRatio
	if hRatio < wRatio {
		ratio = hRatio
	}

	newWidth := int(float64(width) * ratio)
	newHeight := int(float64(height) * ratio)
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}
	return newWidth, newHeight
}
