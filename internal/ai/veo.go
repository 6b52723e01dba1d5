package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// VeoProvider drives Google's Veo long-running video operations on the
// Generative Language API.
type VeoProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewVeoProvider(baseURL, apiKey, model string) *VeoProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "veo-2.0-generate-001"
	}
	return &VeoProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type veoInstance struct {
	Prompt string `json:"prompt"`
}

type veoParameters struct {
	AspectRatio      string `json:"aspectRatio,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty"`
}

type veoSubmitReq struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse *struct {
			GeneratedSamples []struct {
				Video *struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
			RAIMediaFilteredCount   int      `json:"raiMediaFilteredCount"`
			RAIMediaFilteredReasons []string `json:"raiMediaFilteredReasons"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

func (p *VeoProvider) Name() string { return "veo" }

func (p *VeoProvider) headers() map[string]string {
	return map[string]string{"x-goog-api-key": p.APIKey}
}

func (p *VeoProvider) Submit(ctx context.Context, prompt Prompt) (string, error) {
	if p.Client == nil {
		return "", errors.New("veo: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", &HTTPError{Provider: p.Name(), Op: "submit", StatusCode: http.StatusUnauthorized, Message: "api key is required"}
	}

	aspect := prompt.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}
	duration := prompt.DurationSeconds
	if duration <= 0 {
		duration = 8
	}
	body := veoSubmitReq{
		Instances: []veoInstance{{Prompt: prompt.Text}},
		Parameters: veoParameters{
			AspectRatio:      aspect,
			PersonGeneration: "dont_allow",
			DurationSeconds:  duration,
		},
	}

	var op veoOperation
	url := fmt.Sprintf("%s/models/%s:predictLongRunning", p.BaseURL, p.Model)
	if err := doJSON(ctx, p.Client, p.Name(), "submit", http.MethodPost, url, p.headers(), body, &op); err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", errors.New("veo: no operation name returned")
	}
	return op.Name, nil
}

func (p *VeoProvider) Poll(ctx context.Context, handle string) (JobStatus, error) {
	if p.Client == nil {
		return JobStatus{}, errors.New("veo: http client is nil")
	}

	var op veoOperation
	url := fmt.Sprintf("%s/%s", p.BaseURL, strings.TrimLeft(handle, "/"))
	if err := doJSON(ctx, p.Client, p.Name(), "poll", http.MethodGet, url, p.headers(), nil, &op); err != nil {
		return JobStatus{}, err
	}

	if !op.Done {
		return JobStatus{State: "running"}, nil
	}
	st := JobStatus{State: "done", Done: true}
	if op.Error != nil {
		st.Failed = true
		st.FailureReason = op.Error.Message
		return st, nil
	}
	if op.Response == nil || op.Response.GenerateVideoResponse == nil {
		return st, nil
	}
	gvr := op.Response.GenerateVideoResponse
	for _, s := range gvr.GeneratedSamples {
		if s.Video != nil && s.Video.URI != "" {
			st.Artifacts = append(st.Artifacts, s.Video.URI)
		}
	}
	st.FilteredCount = gvr.RAIMediaFilteredCount
	st.FilterReasons = gvr.RAIMediaFilteredReasons
	return st, nil
}
