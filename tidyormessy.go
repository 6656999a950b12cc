// Package tidyormessy classifies photos of rooms as "Tidy" or "Messy".
//
// The classification itself happens on a remote service: the image is
// uploaded as multipart/form-data and the service answers with a label and
// a quote. This package wires image preparation (loading, downsizing, JPEG
// encoding) to that client.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/tidyormessy"
//		"github.com/menta2k/tidyormessy/pkg/predict"
//	)
//
//	func main() {
//		c := tidyormessy.New(predict.NewClient(predict.DefaultEndpoint))
//
//		result, err := c.ClassifyFile(context.Background(), "bedroom.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%s: %s\n", result.Prediction, result.Quote)
//	}
//
// The package consists of these components:
//
//  1. Predict (pkg/predict): the multipart upload client and its error taxonomy
//  2. Processing (pkg/processing): image loading and JPEG encoding
//  3. Retry (pkg/retry): optional caller-side retry of network failures
//  4. Session (pkg/session): presentation state driven by classification results
//
// Failures are always returned as errors matching one of the predict.Err*
// sentinels; nothing is logged and dropped.
package tidyormessy

import (
	"context"
	"image"

	"github.com/menta2k/tidyormessy/pkg/client"
	"github.com/menta2k/tidyormessy/pkg/processing"
	"github.com/menta2k/tidyormessy/pkg/retry"
	"github.com/menta2k/tidyormessy/pkg/types"
)

// Version of the tidyormessy library
const Version = "1.0.0"

// Classifier prepares images and sends them to a client.Classifier
type Classifier struct {
	client    client.Classifier
	processor *processing.Processor
	encode    types.EncodeOptions
	retry     retry.Policy
}

// New creates a Classifier with default encoding and no retries
func New(c client.Classifier) *Classifier {
	return &Classifier{
		client:    c,
		processor: processing.NewProcessor(),
		encode:    processing.DefaultEncodeOptions(),
		retry:     retry.None,
	}
}

// WithEncodeOptions sets how images are encoded before upload
func (c *Classifier) WithEncodeOptions(opts types.EncodeOptions) *Classifier {
	c.encode = opts
	return c
}

// WithRetry sets the retry policy applied around each upload
func (c *Classifier) WithRetry(p retry.Policy) *Classifier {
	c.retry = p
	return c
}

// ClassifyBytes classifies an already encoded JPEG
func (c *Classifier) ClassifyBytes(ctx context.Context, jpeg []byte) (*types.ClassificationResult, error) {
	return retry.Do(ctx, c.retry, func(ctx context.Context) (*types.ClassificationResult, error) {
		return c.client.Classify(ctx, jpeg)
	})
}

// ClassifyImage encodes img as JPEG and classifies it
func (c *Classifier) ClassifyImage(ctx context.Context, img image.Image) (*types.ClassificationResult, error) {
	data, err := c.processor.EncodeJPEG(img, c.encode)
	if err != nil {
		return nil, err
	}
	return c.ClassifyBytes(ctx, data)
}

// ClassifyFile loads a file path or http(s) URL and classifies it
func (c *Classifier) ClassifyFile(ctx context.Context, source string) (*types.ClassificationResult, error) {
	data, err := c.processor.PrepareSource(ctx, source, c.encode)
	if err != nil {
		return nil, err
	}
	return c.ClassifyBytes(ctx, data)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
