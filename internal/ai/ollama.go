package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaDescriber describes images with a local vision model.
type OllamaDescriber struct {
	Model  string
	client *api.Client
}

func NewOllamaDescriber(baseURL, model string) (*OllamaDescriber, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llava:latest"
	}
	u, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base url: %w", err)
	}
	return &OllamaDescriber{
		Model:  model,
		client: api.NewClient(u, &http.Client{Timeout: 90 * time.Second}),
	}, nil
}

func (d *OllamaDescriber) DescribeImage(ctx context.Context, image []byte, instruction string) (string, error) {
	if d.client == nil {
		return "", errors.New("ollama: client is nil")
	}
	if len(image) == 0 {
		return "", errors.New("ollama: image is empty")
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  d.Model,
		Prompt: instruction,
		Images: []api.ImageData{image},
		Stream: &stream,
	}

	var b strings.Builder
	err := d.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: generate: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
