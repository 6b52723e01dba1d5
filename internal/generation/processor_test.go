package generation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/fixo/internal/ai"
	"github.com/suPer8Hu/fixo/internal/db"
	"github.com/suPer8Hu/fixo/internal/repair"
	"github.com/suPer8Hu/fixo/internal/store/redisstore"
)

type processorEnv struct {
	jobs *redisstore.Store
	svc  *repair.Service
	req  *repair.Request
}

func newProcessorEnv(t *testing.T) processorEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	jobs := redisstore.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	t.Cleanup(func() { _ = jobs.Close() })

	gdb, err := db.Connect("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, repair.AutoMigrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	svc := repair.NewService(repair.NewRepo(gdb), nil, nil)
	req, err := svc.CreateRequest(context.Background(), "u1", repair.NewRequest{
		Type:  repair.TypeInstantHelp,
		Title: "Leaking tap",
	})
	require.NoError(t, err)
	return processorEnv{jobs: jobs, svc: svc, req: req}
}

func (e processorEnv) enqueue(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, e.jobs.CreateJob(context.Background(), &redisstore.Job{
		ID:          id,
		RequestID:   e.req.ID,
		RequesterID: "u1",
		Provider:    "fake",
		Intent:      "dripping tap",
	}))
}

func (e processorEnv) processor(p ai.Provider) *Processor {
	return &Processor{Runner: newRunner(p), Jobs: e.jobs, Messages: e.svc}
}

func TestProcess_CompletedJobPostsSystemMessage(t *testing.T) {
	env := newProcessorEnv(t)
	env.enqueue(t, "j1")
	p := &scriptedProvider{polls: []pollAnswer{
		running(),
		{st: ai.JobStatus{Done: true, Artifacts: []string{"https://v/1.mp4"}}},
	}}
	ctx := context.Background()

	require.NoError(t, env.processor(p).Process(ctx, "j1"))

	job, err := env.jobs.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, redisstore.JobCompleted, job.State)
	assert.Equal(t, "https://v/1.mp4", job.Artifact)
	assert.Equal(t, 2, job.Attempts)

	msgs, err := env.svc.GetConversation(ctx, env.req.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, repair.SenderSystem, msgs[0].SenderRole)
	assert.Contains(t, msgs[0].Text, "https://v/1.mp4")

	// redelivery of a finished job is a no-op
	require.NoError(t, env.processor(p).Process(ctx, "j1"))
	msgs, err = env.svc.GetConversation(ctx, env.req.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestProcess_FailureIsRecordedWithKind(t *testing.T) {
	env := newProcessorEnv(t)
	env.enqueue(t, "j1")
	p := &scriptedProvider{polls: []pollAnswer{
		{st: ai.JobStatus{Done: true, FilteredCount: 1, FilterReasons: []string{"people"}}},
	}}
	ctx := context.Background()

	require.NoError(t, env.processor(p).Process(ctx, "j1"))

	job, err := env.jobs.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, redisstore.JobFailed, job.State)
	assert.Equal(t, string(KindSafetyFiltered), job.ErrorKind)
	assert.Equal(t, UserMessage(KindSafetyFiltered), job.Error)

	msgs, err := env.svc.GetConversation(ctx, env.req.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestProcess_CancelledBeforeStart(t *testing.T) {
	env := newProcessorEnv(t)
	env.enqueue(t, "j1")
	ctx := context.Background()
	require.NoError(t, env.jobs.RequestCancel(ctx, "j1"))

	p := &scriptedProvider{polls: []pollAnswer{running()}}
	require.NoError(t, env.processor(p).Process(ctx, "j1"))

	job, err := env.jobs.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, redisstore.JobCancelled, job.State)
	assert.Empty(t, p.prompts)
}

func TestProcess_CancelDuringPolling(t *testing.T) {
	env := newProcessorEnv(t)
	env.enqueue(t, "j1")
	ctx := context.Background()

	p := &scriptedProvider{polls: []pollAnswer{running()}}
	proc := env.processor(p)
	proc.Runner.Settings["fake"] = ProviderSettings{Interval: 5 * time.Millisecond, MaxAttempts: 1000}

	done := make(chan error, 1)
	go func() { done <- proc.Process(ctx, "j1") }()

	require.Eventually(t, func() bool { return p.pollCount() >= 2 }, time.Second, time.Millisecond)
	require.NoError(t, env.jobs.RequestCancel(ctx, "j1"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop after cancel")
	}

	job, err := env.jobs.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, redisstore.JobCancelled, job.State)
	assert.Equal(t, string(KindCancelled), job.ErrorKind)
}

func TestProcess_MissingJobIsDropped(t *testing.T) {
	env := newProcessorEnv(t)
	p := &scriptedProvider{polls: []pollAnswer{running()}}
	assert.NoError(t, env.processor(p).Process(context.Background(), "gone"))
}
