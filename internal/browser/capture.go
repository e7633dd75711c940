package browser

import (
	"context"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/roelfdiedericks/goclaw-browser/internal/media"
)

// ScreenshotOptions selects what and how to capture.
type ScreenshotOptions struct {
	FullPage bool
	Format   string // png (default), jpeg or webp
	Quality  int    // 0-100, jpeg/webp only
}

// Screenshot is an encoded capture ready for the wire.
type Screenshot struct {
	Format   string `json:"format"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
	FullPage bool   `json:"full_page"`
	MimeType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func captureFormat(name string) (proto.PageCaptureScreenshotFormat, string, error) {
	switch strings.ToLower(name) {
	case "", "png":
		return proto.PageCaptureScreenshotFormatPng, "png", nil
	case "jpeg", "jpg":
		return proto.PageCaptureScreenshotFormatJpeg, "jpeg", nil
	case "webp":
		return proto.PageCaptureScreenshotFormatWebp, "webp", nil
	default:
		return "", "", invalidParams("screenshot", "unsupported format %q (use png, jpeg or webp)", name)
	}
}

// Screenshot captures the viewport, or the whole scrollable page, and
// returns it base64-encoded. Captures larger than the configured maximum
// dimension are downscaled.
func (s *Session) Screenshot(ctx context.Context, opts ScreenshotOptions) (Screenshot, error) {
	format, name, err := captureFormat(opts.Format)
	if err != nil {
		return Screenshot{}, err
	}
	if opts.Quality < 0 || opts.Quality > 100 {
		return Screenshot{}, invalidParams("screenshot", "quality must be between 0 and 100")
	}

	page, err := s.activePage(ctx, "screenshot")
	if err != nil {
		return Screenshot{}, err
	}

	req := &proto.PageCaptureScreenshot{Format: format}
	if opts.Quality > 0 && format != proto.PageCaptureScreenshotFormatPng {
		q := opts.Quality
		req.Quality = &q
	}
	raw, err := page.Screenshot(opts.FullPage, req)
	if err != nil {
		return Screenshot{}, execErr("screenshot", "capture failed", err)
	}

	img, err := media.Fit(raw, s.cfg.ScreenshotMaxDimension)
	if err != nil {
		return Screenshot{}, execErr("screenshot", "failed to process capture", err)
	}
	if img.Resized {
		name = strings.TrimPrefix(img.MimeType, "image/")
	}

	return Screenshot{
		Format:   name,
		Encoding: "base64",
		Data:     img.Base64(),
		FullPage: opts.FullPage,
		MimeType: img.MimeType,
		Width:    img.Width,
		Height:   img.Height,
	}, nil
}
