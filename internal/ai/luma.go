package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LumaProvider drives Luma Dream Machine generations.
type LumaProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewLumaProvider(baseURL, apiKey, model string) *LumaProvider {
	if baseURL == "" {
		baseURL = "https://api.lumalabs.ai/dream-machine/v1"
	}
	if model == "" {
		model = "ray-2"
	}
	return &LumaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type lumaGenerationReq struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Duration    string `json:"duration,omitempty"`
}

type lumaGeneration struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Assets        *struct {
		Video string `json:"video"`
	} `json:"assets"`
}

func (p *LumaProvider) Name() string { return "luma" }

func (p *LumaProvider) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.APIKey}
}

func (p *LumaProvider) Submit(ctx context.Context, prompt Prompt) (string, error) {
	if p.Client == nil {
		return "", errors.New("luma: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", &HTTPError{Provider: p.Name(), Op: "submit", StatusCode: http.StatusUnauthorized, Message: "api key is required"}
	}

	body := lumaGenerationReq{
		Prompt:      prompt.Text,
		Model:       p.Model,
		AspectRatio: prompt.AspectRatio,
	}
	if prompt.DurationSeconds > 0 {
		body.Duration = fmt.Sprintf("%ds", prompt.DurationSeconds)
	}

	var gen lumaGeneration
	if err := doJSON(ctx, p.Client, p.Name(), "submit", http.MethodPost, p.BaseURL+"/generations", p.headers(), body, &gen); err != nil {
		return "", err
	}
	if gen.ID == "" {
		return "", errors.New("luma: no generation id returned")
	}
	return gen.ID, nil
}

func (p *LumaProvider) Poll(ctx context.Context, handle string) (JobStatus, error) {
	if p.Client == nil {
		return JobStatus{}, errors.New("luma: http client is nil")
	}

	var gen lumaGeneration
	u := p.BaseURL + "/generations/" + url.PathEscape(handle)
	if err := doJSON(ctx, p.Client, p.Name(), "poll", http.MethodGet, u, p.headers(), nil, &gen); err != nil {
		return JobStatus{}, err
	}

	st := JobStatus{State: gen.State}
	switch gen.State {
	case "completed":
		st.Done = true
		if gen.Assets != nil && gen.Assets.Video != "" {
			st.Artifacts = []string{gen.Assets.Video}
		}
	case "failed":
		st.Done = true
		st.Failed = true
		st.FailureReason = gen.FailureReason
	}
	return st, nil
}
