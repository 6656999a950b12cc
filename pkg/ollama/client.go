package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultURL is where a local ollama listens
const DefaultURL = "http://localhost:11434"

const defaultTimeout = 300 * time.Second

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string, httpClient *http.Client) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", ollamaURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// Drop any path like /api/chat, the SDK adds its own
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{client: api.NewClient(baseURL, httpClient)}, nil
}

// Query sends one user message with the image attached and returns the reply text
func (c *Client) Query(ctx context.Context, model, prompt string, image []byte) (string, error) {
	// Add timeout if context doesn't have one (vision models on CPU are slow)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	msg := api.Message{
		Role:    "user",
		Content: prompt,
	}
	if len(image) > 0 {
		msg.Images = []api.ImageData{api.ImageData(image)}
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{msg},
		Stream:   &streamFalse,
		Options:  modelOptions(model),
	}

	var reply strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}

	if reply.Len() == 0 {
		return "", fmt.Errorf("empty response from ollama")
	}
	return reply.String(), nil
}

// modelOptions returns sampling options for models that need tuning
func modelOptions(model string) map[string]any {
	options := map[string]any{"temperature": 0.2}

	m := strings.ToLower(model)
	if strings.Contains(m, "minicpm-v4") || strings.Contains(m, "minicpm-v-4") || strings.Contains(m, "minicpmv4") {
		options["top_p"] = 0.8
		options["num_ctx"] = 4096
	}
	return options
}
