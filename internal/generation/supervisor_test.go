package generation

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/fixo/internal/ai"
)

// scriptedProvider answers polls from a script; the last entry repeats.
type scriptedProvider struct {
	mu        sync.Mutex
	submitErr error
	polls     []pollAnswer
	calls     int
	prompts   []string
}

type pollAnswer struct {
	st  ai.JobStatus
	err error
}

func (p *scriptedProvider) Name() string { return "fake" }

func (p *scriptedProvider) Submit(ctx context.Context, prompt ai.Prompt) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt.Text)
	if p.submitErr != nil {
		return "", p.submitErr
	}
	return "job-1", nil
}

func (p *scriptedProvider) Poll(ctx context.Context, handle string) (ai.JobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.polls) {
		i = len(p.polls) - 1
	}
	p.calls++
	return p.polls[i].st, p.polls[i].err
}

func (p *scriptedProvider) pollCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func running() pollAnswer { return pollAnswer{st: ai.JobStatus{State: "running"}} }

func newSupervisor(p ai.Provider, interval time.Duration, maxAttempts int) *Supervisor {
	return &Supervisor{Provider: p, Interval: interval, MaxAttempts: maxAttempts}
}

func TestRun_CompletesAfterPolling(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{
		running(),
		running(),
		{st: ai.JobStatus{Done: true, Artifacts: []string{"https://v/1.mp4", "https://v/2.mp4"}}},
	}}
	var seen []int
	s := newSupervisor(p, time.Millisecond, 10)
	s.OnPoll = func(attempt int, st ai.JobStatus) { seen = append(seen, attempt) }

	res, err := s.Run(context.Background(), ai.Prompt{Text: "fix the tap"})
	require.NoError(t, err)
	assert.Equal(t, "https://v/1.mp4", res.Artifact)
	assert.Len(t, res.Artifacts, 2)
	assert.Equal(t, "job-1", res.Handle)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRun_TimesOutAtBoundNotBefore(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{running()}}
	interval := 20 * time.Millisecond
	attempts := 5

	start := time.Now()
	res, err := newSupervisor(p, interval, attempts).Run(context.Background(), ai.Prompt{Text: "x"})
	elapsed := time.Since(start)

	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, attempts, res.Attempts)
	assert.Equal(t, attempts, p.pollCount())
	assert.GreaterOrEqual(t, elapsed, time.Duration(attempts)*interval)
	assert.Less(t, elapsed, time.Duration(attempts)*interval+time.Second)
}

func TestRun_SafetyFilteredIsNeverCompleted(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{
		{st: ai.JobStatus{Done: true, FilteredCount: 1, FilterReasons: []string{"people detected"}}},
	}}
	res, err := newSupervisor(p, time.Millisecond, 3).Run(context.Background(), ai.Prompt{Text: "x"})

	var ge *Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, KindSafetyFiltered, ge.Kind)
	assert.Equal(t, "people detected", ge.Reason)
	assert.Empty(t, res.Artifact)
}

func TestRun_DoneWithoutArtifactIsProviderFailure(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{{st: ai.JobStatus{Done: true}}}}
	_, err := newSupervisor(p, time.Millisecond, 3).Run(context.Background(), ai.Prompt{Text: "x"})
	assert.Equal(t, KindProviderFailure, KindOf(err))
}

func TestRun_ExplicitFailure(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{
		running(),
		{st: ai.JobStatus{Done: true, Failed: true, FailureReason: "model overloaded"}},
	}}
	_, err := newSupervisor(p, time.Millisecond, 5).Run(context.Background(), ai.Prompt{Text: "x"})

	var ge *Error
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, KindProviderFailure, ge.Kind)
	assert.Equal(t, "model overloaded", ge.Reason)
}

func TestRun_SubmitErrorsAreClassifiedWithoutPolling(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limit", &ai.HTTPError{StatusCode: http.StatusTooManyRequests}, KindQuotaExceeded},
		{"quota message", &ai.HTTPError{StatusCode: http.StatusBadRequest, Message: "Quota exceeded for project"}, KindQuotaExceeded},
		{"unauthorized", &ai.HTTPError{StatusCode: http.StatusUnauthorized}, KindAuth},
		{"forbidden", &ai.HTTPError{StatusCode: http.StatusForbidden}, KindAuth},
		{"gated model", &ai.HTTPError{StatusCode: http.StatusNotFound}, KindProviderUnavailable},
		{"invalid key in message", &ai.HTTPError{StatusCode: http.StatusBadRequest, Message: "API key not valid. Please pass a valid API key."}, KindAuth},
		{"missing model in message", &ai.HTTPError{StatusCode: http.StatusBadRequest, Message: "models/veo-2.0-generate-001 is not found for API version v1beta"}, KindProviderUnavailable},
		{"bad request", &ai.HTTPError{StatusCode: http.StatusBadRequest, Message: "invalid prompt"}, KindSubmission},
		{"network", errors.New("connection refused"), KindSubmission},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &scriptedProvider{submitErr: tc.err, polls: []pollAnswer{running()}}
			_, err := newSupervisor(p, time.Millisecond, 3).Run(context.Background(), ai.Prompt{Text: "x"})
			assert.Equal(t, tc.want, KindOf(err))
			assert.ErrorIs(t, err, tc.err)
			assert.Zero(t, p.pollCount())
		})
	}
}

func TestRun_PollErrorEndsJobImmediately(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{
		running(),
		{err: &ai.HTTPError{StatusCode: http.StatusInternalServerError}},
		running(),
	}}
	res, err := newSupervisor(p, time.Millisecond, 10).Run(context.Background(), ai.Prompt{Text: "x"})
	assert.Equal(t, KindProviderFailure, KindOf(err))
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, p.pollCount())
}

func TestRun_PollRateLimit(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{{err: &ai.HTTPError{StatusCode: http.StatusTooManyRequests}}}}
	_, err := newSupervisor(p, time.Millisecond, 10).Run(context.Background(), ai.Prompt{Text: "x"})
	assert.Equal(t, KindQuotaExceeded, KindOf(err))
}

func TestRun_CancelStopsPolling(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{running()}}
	ctx, cancel := context.WithCancel(context.Background())
	s := newSupervisor(p, 5*time.Millisecond, 1000)
	s.OnPoll = func(attempt int, st ai.JobStatus) {
		if attempt == 2 {
			cancel()
		}
	}

	res, err := s.Run(ctx, ai.Prompt{Text: "x"})
	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, p.pollCount())
}

func TestRun_EmptyPrompt(t *testing.T) {
	p := &scriptedProvider{polls: []pollAnswer{running()}}
	_, err := newSupervisor(p, time.Millisecond, 1).Run(context.Background(), ai.Prompt{Text: "  "})
	assert.Equal(t, KindSubmission, KindOf(err))
	assert.Empty(t, p.prompts)
}

func TestRun_ConcurrentJobsDoNotInterfere(t *testing.T) {
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := &scriptedProvider{polls: []pollAnswer{
				running(),
				{st: ai.JobStatus{Done: true, Artifacts: []string{"a"}}},
			}}
			_, errs[i] = newSupervisor(p, time.Millisecond, 5).Run(context.Background(), ai.Prompt{Text: "x"})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	ok := &scriptedProvider{polls: []pollAnswer{{st: ai.JobStatus{Done: true, Artifacts: []string{"a"}}}}}
	s := newSupervisor(ok, time.Millisecond, 3)
	s.Metrics = m
	_, err := s.Run(context.Background(), ai.Prompt{Text: "x"})
	require.NoError(t, err)

	bad := &scriptedProvider{polls: []pollAnswer{running()}}
	s = newSupervisor(bad, time.Millisecond, 2)
	s.Metrics = m
	_, _ = s.Run(context.Background(), ai.Prompt{Text: "x"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("fake", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("fake", string(KindTimeout))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}

func TestUserMessage_DistinctPerKind(t *testing.T) {
	kinds := []Kind{KindSubmission, KindAuth, KindQuotaExceeded, KindProviderUnavailable,
		KindSafetyFiltered, KindTimeout, KindProviderFailure, KindCancelled}
	seen := map[string]Kind{}
	for _, k := range kinds {
		msg := UserMessage(k)
		prev, dup := seen[msg]
		assert.False(t, dup, "%s and %s share a message", k, prev)
		seen[msg] = k
	}
}
