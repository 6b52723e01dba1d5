package generation

import (
	"context"
	"strings"
	"time"

	"github.com/suPer8Hu/fixo/internal/ai"
	"github.com/suPer8Hu/fixo/internal/logging"
	"go.uber.org/zap"
)

// Result is a completed job.
type Result struct {
	Provider  string
	Handle    string
	Artifact  string
	Artifacts []string
	Attempts  int
}

// Observer is told about every poll. It runs on the supervising goroutine.
type Observer func(attempt int, st ai.JobStatus)

// Supervisor runs one provider job to a terminal state: submit once, then
// poll every Interval up to MaxAttempts times.
type Supervisor struct {
	Provider    ai.Provider
	Interval    time.Duration
	MaxAttempts int
	Log         *zap.Logger
	Metrics     *Metrics
	OnPoll      Observer
}

// Run submits prompt and polls until the job completes, fails, times out
// or ctx is cancelled. Cancellation only stops polling; the provider job
// is left alone. Every failure is a *Error.
func (s *Supervisor) Run(ctx context.Context, prompt ai.Prompt) (Result, error) {
	log := logging.OrNop(s.Log)
	if s.Provider == nil {
		return Result{}, &Error{Kind: KindSubmission, Reason: "no provider configured"}
	}
	name := s.Provider.Name()
	log = log.With(zap.String("provider", name))

	s.Metrics.started()
	res, err := s.run(ctx, prompt, log)
	s.Metrics.finished(name, res.Attempts, err)
	return res, err
}

func (s *Supervisor) run(ctx context.Context, prompt ai.Prompt, log *zap.Logger) (Result, error) {
	res := Result{Provider: s.Provider.Name()}

	if strings.TrimSpace(prompt.Text) == "" {
		return res, &Error{Kind: KindSubmission, Reason: "prompt is empty"}
	}
	if err := ctx.Err(); err != nil {
		return res, &Error{Kind: KindCancelled, Err: err}
	}

	handle, err := s.Provider.Submit(ctx, prompt)
	if err != nil {
		ge := classify(err, phaseSubmit)
		log.Warn("generation submit failed", zap.String("kind", string(ge.Kind)), zap.Error(err))
		return res, ge
	}
	res.Handle = handle
	log.Info("generation submitted", zap.String("handle", handle))

	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			log.Info("generation cancelled", zap.String("handle", handle), zap.Int("attempts", res.Attempts))
			return res, &Error{Kind: KindCancelled, Err: ctx.Err()}
		case <-timer.C:
		}

		res.Attempts = attempt
		st, err := s.Provider.Poll(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return res, &Error{Kind: KindCancelled, Err: ctx.Err()}
			}
			ge := classify(err, phasePoll)
			log.Warn("generation poll failed",
				zap.String("handle", handle),
				zap.Int("attempt", attempt),
				zap.String("kind", string(ge.Kind)),
				zap.Error(err))
			return res, ge
		}
		if s.OnPoll != nil {
			s.OnPoll(attempt, st)
		}

		if st.Done {
			return s.finish(res, st, log)
		}
		timer.Reset(interval)
	}

	log.Warn("generation timed out", zap.String("handle", handle), zap.Int("attempts", res.Attempts))
	return res, &Error{Kind: KindTimeout, Reason: "job did not finish within the polling bound"}
}

func (s *Supervisor) finish(res Result, st ai.JobStatus, log *zap.Logger) (Result, error) {
	if st.Failed {
		reason := st.FailureReason
		if reason == "" {
			reason = "provider reported failure"
		}
		return res, &Error{Kind: KindProviderFailure, Reason: reason}
	}
	if len(st.Artifacts) == 0 {
		if st.FilteredCount > 0 || len(st.FilterReasons) > 0 {
			reason := strings.Join(st.FilterReasons, "; ")
			if reason == "" {
				reason = "all outputs were removed by the safety filter"
			}
			return res, &Error{Kind: KindSafetyFiltered, Reason: reason}
		}
		return res, &Error{Kind: KindProviderFailure, Reason: "job finished without an artifact"}
	}

	res.Artifacts = st.Artifacts
	res.Artifact = st.Artifacts[0]
	log.Info("generation completed",
		zap.String("handle", res.Handle),
		zap.Int("attempts", res.Attempts),
		zap.Int("filtered", st.FilteredCount))
	return res, nil
}
