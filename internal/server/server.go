// Package server is a reference implementation of the prediction endpoint,
// used for local development and end-to-end tests of the client.
package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/menta2k/tidyormessy/internal/utils"
	"github.com/menta2k/tidyormessy/pkg/client"
	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/types"
)

const requestIDHeader = "X-Request-ID"

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves prediction requests
type Handler struct {
	classifier     client.Classifier
	log            *zap.Logger
	maxUploadBytes int64
}

// NewHandler creates a handler backed by classifier
func NewHandler(classifier client.Classifier, log *zap.Logger, maxUploadBytes int64) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{classifier: classifier, log: log, maxUploadBytes: maxUploadBytes}
}

// NewRouter builds the gin engine with all routes
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(h.log))

	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)

	return r
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Predict accepts a multipart form with one "image" file and answers with
// {"prediction": ..., "quote": ...}
func (h *Handler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fileHeader, err := c.FormFile(predict.FieldName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "image too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing \"image\" form file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable image part"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable image part"})
		return
	}

	h.log.Debug("image received",
		zap.String("request_id", c.GetString(requestIDHeader)),
		zap.String("size", utils.FormatFileSize(int64(len(data)))))

	result, err := h.classifier.Classify(c.Request.Context(), data)
	if err != nil {
		status := statusFor(err)
		h.log.Warn("classification failed",
			zap.String("request_id", c.GetString(requestIDHeader)),
			zap.String("kind", predict.KindOf(err).String()),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Error: predict.KindOf(err).String()})
		return
	}

	c.JSON(http.StatusOK, types.ClassificationResult{
		Prediction: result.Prediction,
		Quote:      result.Quote,
	})
}

func statusFor(err error) int {
	switch predict.KindOf(err) {
	case predict.KindEncodingFailure:
		return http.StatusBadRequest
	case predict.KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

// RequestID propagates or assigns an X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Logger logs one line per request
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDHeader)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			log.Warn("request failed", fields...)
		} else {
			log.Info("request processed", fields...)
		}
	}
}
