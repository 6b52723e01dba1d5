package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	maxWatchAttempts = 16
	watchBackoff     = 2 * time.Millisecond
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
	ErrJobBusy     = errors.New("job is being updated concurrently")
)

type JobState string

const (
	JobSubmitted JobState = "submitted"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job is the ephemeral record of one video generation request. It expires
// with the store TTL.
type Job struct {
	ID          string   `json:"job_id"`
	RequestID   string   `json:"request_id"`
	RequesterID string   `json:"requester_id"`
	Provider    string   `json:"provider"`
	Intent      string   `json:"intent,omitempty"`
	Image       []byte   `json:"image,omitempty"`
	State       JobState `json:"state"`
	Attempts    int      `json:"attempts"`
	Artifact    string   `json:"artifact,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	Error       string   `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func jobKey(id string) string    { return "gen:job:" + id }
func cancelKey(id string) string { return "gen:cancel:" + id }

func (s *Store) CreateJob(ctx context.Context, j *Job) error {
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.State == "" {
		j.State = JobSubmitted
	}
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, jobKey(j.ID), b, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrJobExists
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	b, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &j, nil
}

// UpdateJob applies fn to the stored job under WATCH so concurrent writers
// cannot lose each other's changes. Terminal jobs are left untouched and
// returned as is.
func (s *Store) UpdateJob(ctx context.Context, id string, fn func(j *Job)) (*Job, error) {
	key := jobKey(id)
	var out *Job
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrJobNotFound
			}
			return err
		}
		var j Job
		if err := json.Unmarshal(b, &j); err != nil {
			return fmt.Errorf("decode job %s: %w", id, err)
		}
		if j.State.Terminal() {
			out = &j
			return nil
		}
		fn(&j)
		j.UpdatedAt = time.Now().UTC()
		nb, err := json.Marshal(&j)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, nb, redis.KeepTTL)
			return nil
		})
		if err == nil {
			out = &j
		}
		return err
	}

	// a failed EXEC means another writer committed, so each caller wins
	// within as many attempts as there are concurrent writers
	for i := 0; i < maxWatchAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			if err := sleepJitter(ctx, i); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrJobBusy
}

// sleepJitter waits a random slice of a window that grows with attempt.
func sleepJitter(ctx context.Context, attempt int) error {
	window := watchBackoff * time.Duration(min(attempt+1, 8))
	t := time.NewTimer(rand.N(window) + time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RequestCancel flags the job for cooperative cancellation. The worker
// notices the flag at its next poll.
func (s *Store) RequestCancel(ctx context.Context, id string) error {
	n, err := s.rdb.Exists(ctx, jobKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return s.rdb.Set(ctx, cancelKey(id), "1", s.ttl).Err()
}

func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, cancelKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
