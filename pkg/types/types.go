package types

// Well-known prediction labels returned by the classification service
const (
	LabelTidy  = "Tidy"
	LabelMessy = "Messy"
)

// ClassificationResult is the outcome of a single classification round-trip
type ClassificationResult struct {
	Prediction string `json:"prediction"`
	Quote      string `json:"quote"`
}

// IsTidy reports whether the prediction is the tidy label
func (r ClassificationResult) IsTidy() bool {
	return r.Prediction == LabelTidy
}

// EncodeOptions controls how a source image is turned into the JPEG payload
type EncodeOptions struct {
	MaxDim  int // long side limit in pixels, 0 keeps the original size
	Quality int // JPEG quality 1-100
	MinSide int // reject images with a shorter side
}
