package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/fixo/internal/ai"
	"github.com/suPer8Hu/fixo/internal/logging"
	"github.com/suPer8Hu/fixo/internal/repair"
	"github.com/suPer8Hu/fixo/internal/store/redisstore"
	"go.uber.org/zap"
)

// JobStore holds the ephemeral state of queued jobs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*redisstore.Job, error)
	UpdateJob(ctx context.Context, id string, fn func(j *redisstore.Job)) (*redisstore.Job, error)
	CancelRequested(ctx context.Context, id string) (bool, error)
}

// MessageSink receives the artifact of a completed job.
type MessageSink interface {
	AppendMessage(ctx context.Context, requestID string, role repair.SenderRole, senderName, text string) (*repair.Message, error)
}

const assistantName = "Repair video"

// Processor executes queued jobs: it runs the supervisor, mirrors progress
// into the job store and posts the finished video to the request's
// conversation.
type Processor struct {
	Runner   *Runner
	Jobs     JobStore
	Messages MessageSink
	Log      *zap.Logger
}

// Process runs job id to a terminal state. It returns an error only when the
// job could not be driven at all (store unreachable); generation failures
// are recorded on the job and are not errors here.
func (p *Processor) Process(ctx context.Context, id string) error {
	log := logging.OrNop(p.Log).With(zap.String("job_id", id))

	job, err := p.Jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, redisstore.ErrJobNotFound) {
			log.Warn("job expired before processing")
			return nil
		}
		return err
	}
	if job.State.Terminal() {
		return nil
	}
	if cancelled, err := p.Jobs.CancelRequested(ctx, id); err != nil {
		return err
	} else if cancelled {
		_, err := p.Jobs.UpdateJob(ctx, id, func(j *redisstore.Job) {
			j.State = redisstore.JobCancelled
			j.ErrorKind = string(KindCancelled)
			j.Error = UserMessage(KindCancelled)
		})
		return err
	}

	if _, err := p.Jobs.UpdateJob(ctx, id, func(j *redisstore.Job) { j.State = redisstore.JobRunning }); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	res, runErr := p.Runner.Run(runCtx, JobSpec{
		Provider: job.Provider,
		Intent:   job.Intent,
		Image:    job.Image,
		OnPoll: func(attempt int, st ai.JobStatus) {
			if _, err := p.Jobs.UpdateJob(ctx, id, func(j *redisstore.Job) { j.Attempts = attempt }); err != nil {
				log.Warn("record attempt failed", zap.Error(err))
			}
			if on, err := p.Jobs.CancelRequested(ctx, id); err == nil && on {
				cancel()
			}
		},
	})

	if runErr != nil {
		kind := KindOf(runErr)
		if kind == "" {
			return runErr
		}
		state := redisstore.JobFailed
		if kind == KindCancelled {
			state = redisstore.JobCancelled
		}
		_, err := p.Jobs.UpdateJob(ctx, id, func(j *redisstore.Job) {
			j.State = state
			j.Attempts = res.Attempts
			j.ErrorKind = string(kind)
			j.Error = UserMessage(kind)
		})
		log.Info("job finished",
			zap.String("state", string(state)),
			zap.String("kind", string(kind)),
			zap.Duration("cost", time.Since(start)),
			zap.NamedError("cause", runErr))
		return err
	}

	if _, err := p.Jobs.UpdateJob(ctx, id, func(j *redisstore.Job) {
		j.State = redisstore.JobCompleted
		j.Attempts = res.Attempts
		j.Artifact = res.Artifact
	}); err != nil {
		return err
	}
	log.Info("job finished",
		zap.String("state", string(redisstore.JobCompleted)),
		zap.Int("attempts", res.Attempts),
		zap.Duration("cost", time.Since(start)))

	if p.Messages != nil && job.RequestID != "" {
		text := fmt.Sprintf("Your repair video is ready: %s", res.Artifact)
		if _, err := p.Messages.AppendMessage(ctx, job.RequestID, repair.SenderSystem, assistantName, text); err != nil {
			// the job is already completed; a redelivery would not post again
			log.Warn("video not posted", zap.String("request_id", job.RequestID), zap.Error(err))
		}
	}
	return nil
}
