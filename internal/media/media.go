// Package media provides image utilities for browser screenshots:
// MIME detection from magic bytes, downscaling oversized captures and a
// directory store for saved captures.
package media

import (
	"encoding/base64"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxDimension bounds the longest side of a returned image.
const DefaultMaxDimension = 2000

// SupportedMIMETypes are the image types a capture may come back as.
var SupportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ImageData is an encoded image with its decoded dimensions.
type ImageData struct {
	Data     []byte // Raw image bytes
	MimeType string // MIME type (e.g., "image/png")
	Width    int
	Height   int
	Resized  bool // true if the image was downscaled
}

// Base64 returns the image data as a base64-encoded string
func (img *ImageData) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// DetectMIME returns the MIME type from magic bytes (not file extension)
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsSupported returns true if the MIME type is a supported image type
func IsSupported(mimeType string) bool {
	return SupportedMIMETypes[mimeType]
}
