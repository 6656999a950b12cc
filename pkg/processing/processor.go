package processing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/types"
)

const (
	DefaultMaxDim     = 1536
	DefaultQuality    = 90
	DefaultMinSide    = 32
	maxDownloadBytes  = 32 << 20
	downloadUserAgent = "TidyOrMessy/1.0 (+https://tidyormessy.com)"
)

// DefaultEncodeOptions returns the options used when the caller sets none
func DefaultEncodeOptions() types.EncodeOptions {
	return types.EncodeOptions{
		MaxDim:  DefaultMaxDim,
		Quality: DefaultQuality,
		MinSide: DefaultMinSide,
	}
}

// Processor loads source images and turns them into JPEG payloads.
// Every error it returns matches predict.ErrEncodingFailure.
type Processor struct {
	httpClient *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadImageFromURL downloads and decodes an image
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, encodingErr("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, encodingErr("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, http.NoBody)
	if err != nil {
		return nil, encodingErr("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, encodingErr("failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, encodingErr("failed to download image: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, encodingErr("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, encodingErr("failed to read image data: %v", err)
	}

	return p.DecodeBytes(data)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders), honouring EXIF orientation
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, encodingErr("failed to read image file: %v", err)
	}
	img, err := p.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// DecodeBytes decodes an image from byte data with WebP support
func (p *Processor) DecodeBytes(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	// Explicit WebP decode for files the registered decoder rejects
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, encodingErr("unknown or unsupported image format")
}

// ValidateImage checks that both sides reach minSide pixels
func (p *Processor) ValidateImage(img image.Image, minSide int) error {
	if img == nil {
		return encodingErr("no image")
	}
	b := img.Bounds()
	if b.Dx() < minSide || b.Dy() < minSide {
		return encodingErr("image too small: %dx%d (minimum: %d)", b.Dx(), b.Dy(), minSide)
	}
	return nil
}

// EncodeJPEG downsizes img to opts.MaxDim on the long side and encodes it as JPEG
func (p *Processor) EncodeJPEG(img image.Image, opts types.EncodeOptions) ([]byte, error) {
	if err := p.ValidateImage(img, opts.MinSide); err != nil {
		return nil, err
	}

	quality := opts.Quality
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	if opts.MaxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > opts.MaxDim || h > opts.MaxDim {
			if w >= h {
				img = imaging.Resize(img, opts.MaxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, opts.MaxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, encodingErr("jpeg encode: %v", err)
	}
	return buf.Bytes(), nil
}

// PrepareSource loads source (path or URL) and returns the JPEG payload
func (p *Processor) PrepareSource(ctx context.Context, source string, opts types.EncodeOptions) ([]byte, error) {
	img, err := p.LoadImageSmart(ctx, source)
	if err != nil {
		return nil, err
	}
	return p.EncodeJPEG(img, opts)
}

func encodingErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", predict.ErrEncodingFailure, fmt.Sprintf(format, args...))
}
