package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/tidyormessy/pkg/detection"
	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// classifierFunc adapts a function to client.Classifier
type classifierFunc func(context.Context, []byte) (*types.ClassificationResult, error)

func (f classifierFunc) Classify(ctx context.Context, image []byte) (*types.ClassificationResult, error) {
	return f(ctx, image)
}

func newTestServer(t *testing.T, classifier classifierFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewRouter(NewHandler(classifier, nil, 1<<20)))
	t.Cleanup(server.Close)
	return server
}

func TestPredict_EndToEnd(t *testing.T) {
	image := []byte("fake jpeg bytes")

	server := newTestServer(t, func(_ context.Context, got []byte) (*types.ClassificationResult, error) {
		assert.Equal(t, image, got)
		return detection.StaticClassifier{Label: types.LabelTidy}.Classify(context.Background(), got)
	})

	result, err := predict.NewClient(server.URL+"/predict").Classify(context.Background(), image)

	require.NoError(t, err)
	assert.Equal(t, types.LabelTidy, result.Prediction)
	assert.NotEmpty(t, result.Quote)
}

func TestPredict_MissingImage(t *testing.T) {
	server := newTestServer(t, func(context.Context, []byte) (*types.ClassificationResult, error) {
		t.Fatal("classifier must not be called")
		return nil, nil
	})

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("photo", "nope"))
	require.NoError(t, w.Close())

	resp, err := http.Post(server.URL+"/predict", w.FormDataContentType(), body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Contains(t, errResp.Error, "image")
}

func TestPredict_TooLarge(t *testing.T) {
	router := NewRouter(NewHandler(classifierFunc(func(context.Context, []byte) (*types.ClassificationResult, error) {
		t.Fatal("classifier must not be called")
		return nil, nil
	}), nil, 1024))

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(predict.FieldName, predict.FileName)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xAB}, 8<<10))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.JSONEq(t, `{"error":"image too large"}`, w.Body.String())
}

func TestPredict_WithinLimit(t *testing.T) {
	var got []byte
	router := NewRouter(NewHandler(classifierFunc(func(_ context.Context, image []byte) (*types.ClassificationResult, error) {
		got = image
		return &types.ClassificationResult{Prediction: types.LabelMessy, Quote: "q"}, nil
	}), nil, 1024))

	image := bytes.Repeat([]byte{0xAB}, 256)
	body, contentType, err := predict.EncodeImageForm(image, predict.NewBoundary())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, image, got)
	assert.JSONEq(t, `{"prediction":"Messy","quote":"q"}`, w.Body.String())
}

func TestPredict_ClassifierFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"upstream down", &predict.NetworkError{Err: errors.New("connection refused")}, http.StatusBadGateway},
		{"bad model reply", predict.ErrMalformedResponse, http.StatusBadGateway},
		{"undecodable image", predict.ErrEncodingFailure, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(context.Context, []byte) (*types.ClassificationResult, error) {
				return nil, tt.err
			})

			_, err := predict.NewClient(server.URL+"/predict").Classify(context.Background(), []byte("img"))

			var netErr *predict.NetworkError
			require.ErrorAs(t, err, &netErr)
			assert.Equal(t, tt.wantStatus, netErr.StatusCode)
		})
	}
}

func TestHealth(t *testing.T) {
	router := NewRouter(NewHandler(detection.StaticClassifier{}, nil, 0))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}
