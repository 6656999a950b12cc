package server

import (
	"fmt"

	"github.com/menta2k/tidyormessy/internal/config"
	"github.com/menta2k/tidyormessy/pkg/client"
	"github.com/menta2k/tidyormessy/pkg/detection"
	"github.com/menta2k/tidyormessy/pkg/llamacpp"
	"github.com/menta2k/tidyormessy/pkg/ollama"
	"github.com/menta2k/tidyormessy/pkg/types"
)

// NewClassifier builds the classifier selected by cfg.Backend
func NewClassifier(cfg config.VisionConfig) (client.Classifier, error) {
	var vc client.VisionClient
	var err error

	switch cfg.Backend {
	case "", "static":
		label := ""
		if cfg.Label != "" {
			l, ok := detection.NormalizeLabel(cfg.Label)
			if !ok {
				return nil, fmt.Errorf("unknown static label %q (use %s or %s)", cfg.Label, types.LabelTidy, types.LabelMessy)
			}
			label = l
		}
		return detection.StaticClassifier{Label: label}, nil
	case "ollama":
		vc, err = ollama.NewClient(cfg.URL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case "llamacpp":
		vc, err = llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s (use static, ollama or llamacpp)", cfg.Backend)
	}

	return detection.NewRoomClassifier(vc, cfg.Model), nil
}
