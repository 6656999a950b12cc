package tidyormessy

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/retry"
	"github.com/menta2k/tidyormessy/pkg/types"
)

// createTestImage creates a bright square on a dark background
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

// predictServer decodes the uploaded JPEG and replies Tidy with its width as quote
func predictServer(t *testing.T, failFirst int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		file, _, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()

		cfg, err := jpeg.DecodeConfig(file)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prediction":"Tidy","quote":"` + strconv.Itoa(cfg.Width) + `"}`))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestClassifyImage(t *testing.T) {
	server, calls := predictServer(t, 0)
	c := New(predict.NewClient(server.URL)).WithEncodeOptions(types.EncodeOptions{MaxDim: 100, Quality: 80, MinSide: 8})

	result, err := c.ClassifyImage(context.Background(), createTestImage(400, 300))

	require.NoError(t, err)
	assert.Equal(t, "Tidy", result.Prediction)
	assert.Equal(t, "100", result.Quote)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassifyFile(t *testing.T) {
	server, _ := predictServer(t, 0)
	path := filepath.Join(t.TempDir(), "room.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, createTestImage(200, 200)))
	require.NoError(t, f.Close())

	result, err := New(predict.NewClient(server.URL)).ClassifyFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "200", result.Quote)
}

func TestClassifyFile_EncodingFailure(t *testing.T) {
	server, calls := predictServer(t, 0)

	_, err := New(predict.NewClient(server.URL)).ClassifyFile(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))

	assert.ErrorIs(t, err, predict.ErrEncodingFailure)
	assert.Zero(t, calls.Load())
}

func TestClassifyBytes_Retry(t *testing.T) {
	server, calls := predictServer(t, 2)
	data, err := New(nil).processor.EncodeJPEG(createTestImage(64, 64), types.EncodeOptions{Quality: 80, MinSide: 8})
	require.NoError(t, err)

	t.Run("without retry the failure surfaces", func(t *testing.T) {
		_, err := New(predict.NewClient(server.URL)).ClassifyBytes(context.Background(), data)
		assert.ErrorIs(t, err, predict.ErrNetworkFailure)
	})

	t.Run("with retry the call succeeds", func(t *testing.T) {
		c := New(predict.NewClient(server.URL)).WithRetry(retry.NewPolicy(3, time.Millisecond))

		result, err := c.ClassifyBytes(context.Background(), data)

		require.NoError(t, err)
		assert.Equal(t, "Tidy", result.Prediction)
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
