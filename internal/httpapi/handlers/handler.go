package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/httpapi/middleware"
	"github.com/suPer8Hu/fixo/internal/logging"
	"github.com/suPer8Hu/fixo/internal/repair"
	"github.com/suPer8Hu/fixo/internal/store/rabbitmq"
	"github.com/suPer8Hu/fixo/internal/store/redisstore"
	"go.uber.org/zap"
)

// VideoJobs is the ephemeral job state the video endpoints read and write.
type VideoJobs interface {
	CreateJob(ctx context.Context, j *redisstore.Job) error
	GetJob(ctx context.Context, id string) (*redisstore.Job, error)
	UpdateJob(ctx context.Context, id string, fn func(j *redisstore.Job)) (*redisstore.Job, error)
	RequestCancel(ctx context.Context, id string) error
}

// JobPublisher hands a queued job to the worker.
type JobPublisher interface {
	PublishJob(ctx context.Context, m rabbitmq.JobMessage) error
}

type Handler struct {
	Repair    *repair.Service
	Jobs      VideoJobs
	Queue     JobPublisher
	Providers []string
	Log       *zap.Logger
}

func NewHandler(svc *repair.Service, jobs VideoJobs, queue JobPublisher, providers []string, log *zap.Logger) *Handler {
	return &Handler{Repair: svc, Jobs: jobs, Queue: queue, Providers: providers, Log: logging.OrNop(log)}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func actorFromContext(c *gin.Context) (repair.Actor, bool) {
	id := c.GetString(middleware.ActorIDKey)
	if id == "" {
		return repair.Actor{}, false
	}
	return repair.Actor{ID: id, Role: repair.Party(c.GetString(middleware.ActorRoleKey))}, true
}
