package handlers

import (
	"encoding/base64"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/generation"
	"github.com/suPer8Hu/fixo/internal/repair"
	"github.com/suPer8Hu/fixo/internal/store/rabbitmq"
	"github.com/suPer8Hu/fixo/internal/store/redisstore"
	"go.uber.org/zap"
)

const maxImageBytes = 5 << 20

type createVideoReq struct {
	Intent   string `json:"intent"`
	Image    string `json:"image"` // base64
	Provider string `json:"provider"`
}

type videoJobView struct {
	JobID     string              `json:"job_id"`
	RequestID string              `json:"request_id"`
	Provider  string              `json:"provider"`
	State     redisstore.JobState `json:"state"`
	Attempts  int                 `json:"attempts"`
	Artifact  string              `json:"artifact,omitempty"`
	ErrorKind string              `json:"error_kind,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func viewOf(j *redisstore.Job) videoJobView {
	return videoJobView{
		JobID:     j.ID,
		RequestID: j.RequestID,
		Provider:  j.Provider,
		State:     j.State,
		Attempts:  j.Attempts,
		Artifact:  j.Artifact,
		ErrorKind: j.ErrorKind,
		Error:     j.Error,
	}
}

// CreateVideo queues a repair video for a request the caller takes part in.
func (h *Handler) CreateVideo(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}
	var req createVideoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidJSON(c)
		return
	}

	var image []byte
	if req.Image != "" {
		b, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10005, "image must be base64")
			return
		}
		if len(b) > maxImageBytes {
			common.Fail(c, http.StatusRequestEntityTooLarge, 10006, "image too large")
			return
		}
		image = b
	}
	if strings.TrimSpace(req.Intent) == "" && len(image) == 0 {
		common.Fail(c, http.StatusBadRequest, 10007, "intent or image required")
		return
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider != "" && !slices.Contains(h.Providers, provider) {
		common.FailWithDetails(c, http.StatusBadRequest, 10008, "unknown provider", gin.H{"providers": h.Providers})
		return
	}

	ctx := c.Request.Context()
	r, err := h.Repair.GetRequest(ctx, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !r.IsParticipant(actor) {
		h.writeError(c, repair.ErrUnauthorized)
		return
	}

	id, err := common.NewULID()
	if err != nil {
		h.writeError(c, err)
		return
	}
	job := &redisstore.Job{
		ID:          id,
		RequestID:   r.ID,
		RequesterID: actor.ID,
		Provider:    provider,
		Intent:      req.Intent,
		Image:       image,
	}
	if err := h.Jobs.CreateJob(ctx, job); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Queue.PublishJob(ctx, rabbitmq.JobMessage{JobID: id, RequestID: r.ID}); err != nil {
		h.Log.Error("publish job failed", zap.String("job_id", id), zap.Error(err))
		if _, uerr := h.Jobs.UpdateJob(ctx, id, func(j *redisstore.Job) {
			j.State = redisstore.JobFailed
			j.ErrorKind = string(generation.KindProviderFailure)
			j.Error = "job queue unavailable"
		}); uerr != nil {
			h.Log.Warn("mark unpublished job failed", zap.String("job_id", id), zap.Error(uerr))
		}
		common.Fail(c, http.StatusServiceUnavailable, 50301, "job queue unavailable")
		return
	}
	h.Log.Info("video job queued", zap.String("job_id", id), zap.String("request_id", r.ID))

	c.JSON(http.StatusAccepted, gin.H{"code": 0, "message": "ok", "data": viewOf(job)})
}

func (h *Handler) GetVideo(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	data := gin.H{"job": viewOf(job)}
	if job.ErrorKind != "" {
		data["hint"] = generation.UserMessage(generation.Kind(job.ErrorKind))
	}
	common.OK(c, data)
}

// CancelVideo asks the worker to stop polling. The provider job itself keeps
// running.
func (h *Handler) CancelVideo(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	if job.State.Terminal() {
		common.OK(c, viewOf(job))
		return
	}
	if err := h.Jobs.RequestCancel(c.Request.Context(), job.ID); err != nil {
		h.writeError(c, err)
		return
	}
	common.OK(c, gin.H{"job_id": job.ID, "cancel_requested": true})
}

func (h *Handler) loadJob(c *gin.Context) (*redisstore.Job, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		unauthorized(c)
		return nil, false
	}
	ctx := c.Request.Context()
	job, err := h.Jobs.GetJob(ctx, c.Param("job_id"))
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	if job.RequesterID != actor.ID {
		r, err := h.Repair.GetRequest(ctx, job.RequestID)
		if err != nil || !r.IsParticipant(actor) {
			h.writeError(c, repair.ErrUnauthorized)
			return nil, false
		}
	}
	return job, true
}
