// Package session holds presentation state for a single classification
// screen: the current prediction, the quote overlay and the loading flag.
// State changes only through the result or error of a classification call.
package session

import (
	"sync"
	"time"

	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/types"
)

// DefaultQuoteDuration is how long the quote overlay stays visible
const DefaultQuoteDuration = 2 * time.Second

// Status of the screen
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusResult
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusResult:
		return "result"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is an immutable snapshot for rendering
type View struct {
	Status       Status
	Prediction   string
	Quote        string
	QuoteVisible bool
	Tidy         bool
	Message      string
	ErrKind      predict.Kind
}

// Session is safe for concurrent use.
type Session struct {
	mu            sync.Mutex
	quoteDuration time.Duration
	now           func() time.Time

	status     Status
	result     *types.ClassificationResult
	quoteUntil time.Time
	errKind    predict.Kind
	message    string
	generation uint64
}

// New creates a session; a non-positive quoteDuration uses the default
func New(quoteDuration time.Duration) *Session {
	if quoteDuration <= 0 {
		quoteDuration = DefaultQuoteDuration
	}
	return &Session{quoteDuration: quoteDuration, now: time.Now}
}

// Begin marks a classification as in flight and returns a token that
// Finish must present. A newer Begin or Reset invalidates older tokens so
// late replies cannot overwrite fresh state.
func (s *Session) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.status = StatusLoading
	s.result = nil
	s.errKind = predict.KindNone
	s.message = ""
	s.quoteUntil = time.Time{}
	return s.generation
}

// Finish records the outcome of the call started with token.
// It reports false when the token is stale.
func (s *Session) Finish(token uint64, result *types.ClassificationResult, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.generation || s.status != StatusLoading {
		return false
	}

	if err != nil {
		s.status = StatusFailed
		s.errKind = predict.KindOf(err)
		s.message = UserMessage(err)
		return true
	}
	if result == nil {
		s.status = StatusFailed
		s.errKind = predict.KindIncompleteResponse
		s.message = UserMessage(predict.ErrIncompleteResponse)
		return true
	}

	s.status = StatusResult
	s.result = result
	s.quoteUntil = s.now().Add(s.quoteDuration)
	return true
}

// Reset clears the prediction, e.g. after a new image was picked
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.status = StatusIdle
	s.result = nil
	s.errKind = predict.KindNone
	s.message = ""
	s.quoteUntil = time.Time{}
}

// Snapshot returns the view as of now
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Status:  s.status,
		Message: s.message,
		ErrKind: s.errKind,
	}
	if s.result != nil {
		v.Prediction = s.result.Prediction
		v.Quote = s.result.Quote
		v.Tidy = s.result.IsTidy()
		v.QuoteVisible = s.now().Before(s.quoteUntil)
	}
	return v
}

// UserMessage maps an error onto a message suitable for end users
func UserMessage(err error) string {
	switch predict.KindOf(err) {
	case predict.KindNone:
		return ""
	case predict.KindInvalidEndpoint:
		return "The prediction service is not configured correctly."
	case predict.KindEncodingFailure:
		return "That image could not be read. Try another one."
	case predict.KindNetworkFailure:
		return "Could not reach the prediction service. Check your connection and try again."
	case predict.KindCancelled:
		return "Prediction cancelled."
	default:
		return "Something went wrong while predicting. Please try again."
	}
}
