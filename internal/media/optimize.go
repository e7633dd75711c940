package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	// Register webp decoding for image.Decode / DecodeConfig
	_ "golang.org/x/image/webp"
)

// jpegQuality is used when a downscaled image has to be re-encoded as JPEG.
const jpegQuality = 85

// Fit returns data unchanged when both sides are within maxDim, otherwise
// a downscaled copy preserving aspect ratio. PNG stays PNG; JPEG and WebP
// come back as JPEG since webp is decode-only here. maxDim <= 0 disables
// resizing.
func Fit(data []byte, maxDim int) (*ImageData, error) {
	mimeType := DetectMIME(data)
	if !IsSupported(mimeType) {
		return nil, fmt.Errorf("unsupported image type: %s", mimeType)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	if maxDim <= 0 || (cfg.Width <= maxDim && cfg.Height <= maxDim) {
		return &ImageData{Data: data, MimeType: mimeType, Width: cfg.Width, Height: cfg.Height}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	encoded, outMime, err := encodeImage(resized, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := resized.Bounds()
	return &ImageData{
		Data:     encoded,
		MimeType: outMime,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Resized:  true,
	}, nil
}

// encodeImage encodes an image in the specified format
func encodeImage(img image.Image, format string) ([]byte, string, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		err := png.Encode(&buf, img)
		return buf.Bytes(), "image/png", err
	default:
		err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
		return buf.Bytes(), "image/jpeg", err
	}
}
