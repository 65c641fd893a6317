package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/progressfacts/internal/http/handlers"
	httpMW "github.com/yungbote/progressfacts/internal/http/middleware"
	"github.com/yungbote/progressfacts/internal/observability"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware  *httpMW.AuthMiddleware
	ProgressHandler *httpH.ProgressHandler
	JournalHandler  *httpH.JournalHandler
	HistoryHandler  *httpH.HistoryHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "progressd"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Progress facts
	if h := cfg.ProgressHandler; h != nil {
		p := api.Group("/progress")
		p.GET("", h.Dashboard)
		p.POST("/backfill", h.Backfill)
		p.POST("/intent", h.Intent())
		p.POST("/motivation", h.Motivation())
		p.POST("/evaluation", h.Evaluation())
		p.POST("/recommendation", h.Recommendation())
		p.POST("/quests", h.Quests())
		p.POST("/quests/complete", h.QuestComplete())
		p.POST("/practice/event", h.PracticeEvent())
		p.POST("/practice/session", h.PracticeSession())
		p.POST("/knowledge-quiz", h.KnowledgeQuiz())
		p.POST("/lessons", h.Lessons())
		p.POST("/omni", h.Omni())
		p.POST("/quick-assessment", h.QuickAssessment())
		p.POST("/ability/practice", h.AbilityPractice())
		p.POST("/ability/assessment", h.AbilityAssessment())
		p.POST("/consistency", h.Consistency())
		p.POST("/checkin", h.Checkin())
		p.POST("/text-signal", h.TextSignal())
		p.POST("/onboarding", h.Onboarding())
	}

	// Journal + activity logs
	if h := cfg.JournalHandler; h != nil {
		p := api.Group("/progress")
		p.POST("/journal", h.AppendEntry())
		p.DELETE("/journal", h.DeleteEntry())
		p.POST("/activity", h.Activity())
		p.POST("/habits/tick", h.HabitTick())
	}

	// History producers
	if h := cfg.HistoryHandler; h != nil {
		hist := api.Group("/history")
		hist.POST("/intent-snapshots", h.IntentSnapshot)
		hist.POST("/journeys", h.Journey)
		hist.POST("/knowledge-assessments", h.KnowledgeAssessment)
		hist.POST("/ability-assessments", h.AbilityAssessment)
	}

	return r
}
