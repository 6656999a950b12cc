package detection

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/menta2k/tidyormessy/pkg/client"
	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/types"
)

// DefaultPrompt asks a vision model for the same JSON the prediction service returns
const DefaultPrompt = `You are judging how tidy a room is.

Return JSON only:
{"prediction": "Tidy" or "Messy", "quote": "one short motivational sentence (<= 20 words)"}

HARD RULES
- prediction is exactly "Tidy" or "Messy".
- If the image does not show a room, judge whatever space is visible.
- The quote should praise a tidy room or gently encourage cleaning a messy one.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// RoomClassifier classifies rooms by prompting a vision model
type RoomClassifier struct {
	client client.VisionClient
	model  string
	prompt string
}

// NewRoomClassifier creates a classifier that queries model through vc
func NewRoomClassifier(vc client.VisionClient, model string) *RoomClassifier {
	return &RoomClassifier{
		client: vc,
		model:  model,
		prompt: DefaultPrompt,
	}
}

// WithPrompt replaces the default prompt
func (c *RoomClassifier) WithPrompt(prompt string) *RoomClassifier {
	if prompt != "" {
		c.prompt = prompt
	}
	return c
}

// Classify implements client.Classifier
func (c *RoomClassifier) Classify(ctx context.Context, image []byte) (*types.ClassificationResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", predict.ErrEncodingFailure)
	}

	raw, err := c.client.Query(ctx, c.model, c.prompt, image)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %v", predict.ErrCancelled, err)
		}
		return nil, &predict.NetworkError{Err: fmt.Errorf("vision model query: %w", err)}
	}

	result, err := predict.ParseResult([]byte(sanitizeModelJSON(raw)))
	if err != nil {
		return nil, err
	}

	label, ok := NormalizeLabel(result.Prediction)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected prediction %q", predict.ErrIncompleteResponse, result.Prediction)
	}
	result.Prediction = label

	// Models sometimes leave the quote empty
	if strings.TrimSpace(result.Quote) == "" {
		result.Quote = PickQuote(label)
	}
	return result, nil
}

var tidyWords = map[string]bool{
	"tidy": true, "clean": true, "neat": true, "organized": true,
	"organised": true, "orderly": true, "spotless": true,
}

var messyWords = map[string]bool{
	"messy": true, "untidy": true, "cluttered": true, "dirty": true,
	"disorganized": true, "disorganised": true, "unorganized": true,
	"unclean": true, "unkempt": true, "chaotic": true, "disorderly": true,
	"filthy": true,
}

var negations = map[string]bool{"not": true, "no": true, "non": true, "never": true, "hardly": true}

// NormalizeLabel maps free-form model labels onto Tidy or Messy. Words are
// matched whole; the first decisive word wins and a preceding negation
// ("not tidy", "isn't messy") flips it.
func NormalizeLabel(label string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	negated := false
	for _, w := range words {
		switch {
		case negations[w] || strings.HasSuffix(w, "n't"):
			negated = !negated
		case tidyWords[w]:
			if negated {
				return types.LabelMessy, true
			}
			return types.LabelTidy, true
		case messyWords[w], isNegatedTidy(w):
			if negated {
				return types.LabelTidy, true
			}
			return types.LabelMessy, true
		}
	}
	return "", false
}

// isNegatedTidy reports words like "unneat" or "nonorganized" built on a tidy word
func isNegatedTidy(w string) bool {
	for _, prefix := range []string{"un", "dis", "non"} {
		if rest, ok := strings.CutPrefix(w, prefix); ok && tidyWords[rest] {
			return true
		}
	}
	return false
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from a model reply
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
