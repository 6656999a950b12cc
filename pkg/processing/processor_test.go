package processing

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/types"
)

// createTestImage creates a gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEncodeJPEG(t *testing.T) {
	p := NewProcessor()

	tests := []struct {
		name          string
		width, height int
		maxDim        int
		wantW, wantH  int
	}{
		{"landscape downsized", 800, 400, 200, 200, 100},
		{"portrait downsized", 300, 600, 150, 75, 150},
		{"small image untouched", 120, 80, 200, 120, 80},
		{"no limit", 640, 480, 0, 640, 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := p.EncodeJPEG(createTestImage(tt.width, tt.height), types.EncodeOptions{
				MaxDim:  tt.maxDim,
				Quality: 80,
				MinSide: 1,
			})
			require.NoError(t, err)

			decoded, err := jpeg.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, decoded.Bounds().Dx())
			assert.Equal(t, tt.wantH, decoded.Bounds().Dy())
		})
	}
}

func TestEncodeJPEG_TooSmall(t *testing.T) {
	p := NewProcessor()

	_, err := p.EncodeJPEG(createTestImage(10, 10), DefaultEncodeOptions())

	assert.ErrorIs(t, err, predict.ErrEncodingFailure)
	assert.Contains(t, err.Error(), "too small")
}

func TestDecodeBytes(t *testing.T) {
	p := NewProcessor()
	src := createTestImage(64, 48)

	t.Run("png", func(t *testing.T) {
		img, err := p.DecodeBytes(pngBytes(t, src))
		require.NoError(t, err)
		assert.Equal(t, 64, img.Bounds().Dx())
	})

	t.Run("webp", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, webp.Encode(&buf, src, &webp.Options{Lossless: true}))

		img, err := p.DecodeBytes(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, 48, img.Bounds().Dy())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := p.DecodeBytes([]byte("definitely not an image"))
		assert.ErrorIs(t, err, predict.ErrEncodingFailure)
	})
}

func TestLoadImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()

	path := filepath.Join(dir, "room.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, createTestImage(100, 50)), 0o644))

	img, err := p.LoadImageSmart(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())

	_, err = p.LoadImage(filepath.Join(dir, "missing.jpg"))
	assert.ErrorIs(t, err, predict.ErrEncodingFailure)
}

func TestLoadImageFromURL(t *testing.T) {
	p := NewProcessor()
	data := pngBytes(t, createTestImage(80, 60))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/room.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(data)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	t.Run("image", func(t *testing.T) {
		img, err := p.LoadImageSmart(context.Background(), server.URL+"/room.png")
		require.NoError(t, err)
		assert.Equal(t, 80, img.Bounds().Dx())
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := p.LoadImageFromURL(context.Background(), server.URL+"/page")
		assert.ErrorIs(t, err, predict.ErrEncodingFailure)
		assert.Contains(t, err.Error(), "text/html")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := p.LoadImageFromURL(context.Background(), server.URL+"/missing")
		assert.ErrorIs(t, err, predict.ErrEncodingFailure)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := p.LoadImageFromURL(context.Background(), "ftp://example.com/a.png")
		assert.ErrorIs(t, err, predict.ErrEncodingFailure)
	})
}

func TestPrepareSource(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "room.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, createTestImage(400, 200)), 0o644))

	data, err := p.PrepareSource(context.Background(), path, types.EncodeOptions{MaxDim: 100, Quality: 90, MinSide: 8})
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}
