package detection

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/types"
)

var tidyQuotes = []string{
	"A tidy room is a tidy mind.",
	"Order is the shape upon which beauty depends.",
	"Everything in its place, and a place for everything.",
	"Clear space, clear thoughts.",
	"Well done! Your future self says thank you.",
}

var messyQuotes = []string{
	"Out of clutter, find simplicity.",
	"Start with one shelf. Momentum does the rest.",
	"The best time to tidy up was yesterday. The next best time is now.",
	"Ten minutes of tidying beats an hour of searching.",
	"A little progress each day adds up to big results.",
}

// PickQuote returns a random quote for label
func PickQuote(label string) string {
	quotes := quotesFor(label)
	return quotes[rand.Intn(len(quotes))]
}

func quotesFor(label string) []string {
	if label == types.LabelTidy {
		return tidyQuotes
	}
	return messyQuotes
}

// StaticClassifier labels every image without a model. The label is fixed
// when set, otherwise derived from a hash of the image bytes so the same
// image always gets the same answer.
type StaticClassifier struct {
	Label string
}

// Classify implements client.Classifier
func (s StaticClassifier) Classify(ctx context.Context, image []byte) (*types.ClassificationResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", predict.ErrEncodingFailure)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", predict.ErrCancelled, err)
	}

	h := fnv.New32a()
	_, _ = h.Write(image)
	sum := h.Sum32()

	label := s.Label
	if label == "" {
		label = types.LabelMessy
		if sum%2 == 0 {
			label = types.LabelTidy
		}
	}

	quotes := quotesFor(label)
	return &types.ClassificationResult{
		Prediction: label,
		Quote:      quotes[int(sum/2)%len(quotes)],
	}, nil
}
