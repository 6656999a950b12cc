package client

import (
	"context"

	"github.com/menta2k/tidyormessy/pkg/types"
)

// Classifier turns an encoded JPEG into a tidy/messy prediction.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*types.ClassificationResult, error)
}

// VisionClient sends a prompt plus a raw image to a vision model and returns its text reply.
type VisionClient interface {
	Query(ctx context.Context, model, prompt string, image []byte) (string, error)
}
