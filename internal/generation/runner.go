package generation

import (
	"context"
	"strings"
	"time"

	"github.com/suPer8Hu/fixo/internal/ai"
	"go.uber.org/zap"
)

// ProviderSettings is the polling profile of one provider.
type ProviderSettings struct {
	Model       string
	Interval    time.Duration
	MaxAttempts int
}

// JobSpec is one request for a video: free-text intent, an optional photo of
// the problem, and the provider to run it on.
type JobSpec struct {
	Provider        string
	Intent          string
	Image           []byte
	AspectRatio     string
	DurationSeconds int
	OnPoll          Observer
}

// Runner builds the prompt for a JobSpec, picks the provider and supervises
// the job. Runs share nothing but the registry and metrics.
type Runner struct {
	Registry        *ai.Registry
	Builder         ai.PromptBuilder
	Settings        map[string]ProviderSettings
	DefaultProvider string
	Log             *zap.Logger
	Metrics         *Metrics
}

func (r *Runner) Run(ctx context.Context, spec JobSpec) (Result, error) {
	name := strings.ToLower(strings.TrimSpace(spec.Provider))
	if name == "" {
		name = r.DefaultProvider
	}
	set := r.Settings[name]

	provider, err := r.Registry.Get(ctx, name, set.Model)
	if err != nil {
		return Result{Provider: name}, &Error{Kind: KindProviderUnavailable, Reason: "unknown provider " + name, Err: err}
	}

	text, err := r.Builder.Build(ctx, spec.Intent, spec.Image)
	if err != nil {
		return Result{Provider: name}, &Error{Kind: KindSubmission, Reason: "could not build prompt", Err: err}
	}

	sup := &Supervisor{
		Provider:    provider,
		Interval:    set.Interval,
		MaxAttempts: set.MaxAttempts,
		Log:         r.Log,
		Metrics:     r.Metrics,
		OnPoll:      spec.OnPoll,
	}
	return sup.Run(ctx, ai.Prompt{
		Text:            text,
		AspectRatio:     spec.AspectRatio,
		DurationSeconds: spec.DurationSeconds,
	})
}
