package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Prompt is the exact input submitted to a generation provider.
type Prompt struct {
	Text            string
	AspectRatio     string
	DurationSeconds int
}

// JobStatus is one poll result, normalized across providers.
type JobStatus struct {
	// State is the provider's own state label, kept for logs.
	State string

	Done          bool
	Failed        bool
	FailureReason string

	Artifacts     []string
	FilteredCount int
	FilterReasons []string
}

// Provider is a long-running media generation backend.
type Provider interface {
	Name() string
	// Submit starts a job and returns the provider's handle for it.
	Submit(ctx context.Context, p Prompt) (string, error)
	// Poll reports the current state of the job behind handle.
	Poll(ctx context.Context, handle string) (JobStatus, error)
}

// HTTPError is a non-2xx answer from a provider endpoint.
type HTTPError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, msg)
}

// apiErrorBody covers the error envelopes of both Google and Luma.
type apiErrorBody struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func doJSON(ctx context.Context, client *http.Client, provider, op, method, url string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &HTTPError{
			Provider:   provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", provider, op, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var env apiErrorBody
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Error != nil && env.Error.Message != "" {
			return env.Error.Message
		}
		if env.Detail != "" {
			return env.Detail
		}
	}
	return strings.TrimSpace(string(raw))
}
