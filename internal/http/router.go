package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/introvirght/engagement-backend/internal/http/handlers"
	httpMW "github.com/introvirght/engagement-backend/internal/http/middleware"
	"github.com/introvirght/engagement-backend/internal/observability"
	"github.com/introvirght/engagement-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	EngagementHandler  *httpH.EngagementHandler
	DiaryVectorHandler *httpH.DiaryVectorHandler
	DiaryHookHandler   *httpH.DiaryHookHandler
	HealthHandler      *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Engagement
		if cfg.EngagementHandler != nil {
			api.POST("/engagement/events", cfg.EngagementHandler.ProcessEvent)
			api.GET("/engagement/profiles/:user_id", cfg.EngagementHandler.GetProfile)
			api.GET("/engagement/profiles/:user_id/events", cfg.EngagementHandler.ListEvents)
		}

		// Diary recall
		if cfg.DiaryVectorHandler != nil {
			api.POST("/diary/vectors", cfg.DiaryVectorHandler.Store)
			api.POST("/diary/vectors/search", cfg.DiaryVectorHandler.Search)
			api.PUT("/diary/vectors/:entry_id", cfg.DiaryVectorHandler.Update)
			api.DELETE("/diary/vectors/:entry_id", cfg.DiaryVectorHandler.Delete)
		}

		// Collaborator hooks
		if cfg.DiaryHookHandler != nil {
			api.POST("/hooks/diary-entries", cfg.DiaryHookHandler.Notify)
		}
	}

	return r
}
