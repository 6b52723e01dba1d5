package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/fixo/internal/common"
	"github.com/suPer8Hu/fixo/internal/httpapi/handlers"
	"github.com/suPer8Hu/fixo/internal/httpapi/middleware"
	"github.com/suPer8Hu/fixo/internal/logging"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, jwtSecret string, metrics http.Handler, log *zap.Logger) *gin.Engine {
	log = logging.OrNop(log)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metrics))

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(jwtSecret))

	// requests
	authGroup.POST("/requests", h.CreateRequest)
	authGroup.GET("/requests", h.ListMyRequests)
	authGroup.GET("/requests/available", h.ListAvailable)
	authGroup.GET("/requests/:id", h.GetRequest)
	authGroup.DELETE("/requests/:id", h.DeleteRequest)
	authGroup.POST("/requests/:id/accept", h.AcceptRequest)
	authGroup.POST("/requests/:id/advance", h.AdvanceRequest)
	authGroup.PUT("/requests/:id/status", h.SetStatus)
	authGroup.POST("/requests/:id/rating", h.RateRequest)

	// video call handshake
	authGroup.GET("/requests/:id/call", h.GetCall)
	authGroup.POST("/requests/:id/call/request", h.RequestCall)
	authGroup.POST("/requests/:id/call/approve", h.ApproveCall)
	authGroup.POST("/requests/:id/call/reset", h.ResetCall)

	// conversation
	authGroup.GET("/requests/:id/messages", h.ListMessages)
	authGroup.POST("/requests/:id/messages", h.PostMessage)

	// professionals
	authGroup.POST("/professionals", h.RegisterProfessional)
	authGroup.GET("/professionals", h.ListProfessionals)
	authGroup.GET("/professionals/me", h.GetMyProfessional)
	authGroup.PATCH("/professionals/me", h.UpdateProfile)
	authGroup.PUT("/professionals/me/availability", h.SetAvailability)
	authGroup.GET("/professionals/:id", h.GetProfessional)

	// onboarding review
	adminGroup := authGroup.Group("/admin")
	adminGroup.Use(middleware.AdminOnly())
	adminGroup.GET("/applications", h.ListPendingApplications)
	adminGroup.POST("/applications/:id/review", h.ReviewApplication)

	// generated repair videos
	authGroup.POST("/requests/:id/videos", h.CreateVideo)
	authGroup.GET("/videos/:job_id", h.GetVideo)
	authGroup.DELETE("/videos/:job_id", h.CancelVideo)
	return r
}
