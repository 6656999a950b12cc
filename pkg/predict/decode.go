package predict

import (
	"encoding/json"
	"fmt"

	"github.com/menta2k/tidyormessy/pkg/types"
)

// ParseResult decodes a prediction reply. The body must be a JSON object
// with string fields "prediction" and "quote"; other fields are ignored.
func ParseResult(body []byte) (*types.ClassificationResult, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	// "null" decodes into a nil map without error
	if obj == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}

	prediction, ok := obj["prediction"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing or non-string \"prediction\"", ErrIncompleteResponse)
	}
	quote, ok := obj["quote"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing or non-string \"quote\"", ErrIncompleteResponse)
	}

	return &types.ClassificationResult{
		Prediction: prediction,
		Quote:      quote,
	}, nil
}
