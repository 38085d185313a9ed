// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fincore-agent-api/internal/config"
	"fincore-agent-api/internal/interfaces/http/handler"
	"fincore-agent-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Assistant *handler.AssistantHandler
	Document  *handler.DocumentHandler
	Pages     *handler.PageHandler
	Health    *handler.HealthHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器；limiter 为 nil 时不限流
func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if cfg.Server.HTTP.MaxMultipartMemory > 0 {
		engine.MaxMultipartMemory = cfg.Server.HTTP.MaxMultipartMemory
	}

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	r.engine.Use(middleware.AccessLog("/health", "/live", "/ready", r.cfg.Observability.Metrics.Path))
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	// 系统端点
	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// 页面
	r.engine.GET("/", h.Pages.Home)
	r.engine.GET("/login.html", h.Pages.Login)

	// 对话与批复函
	var rateLimit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if r.cfg.Security.RateLimit.Enabled {
		rateLimit = middleware.RateLimit(r.cfg.Security.RateLimit.RequestsPerSecond, r.limiter)
	}
	r.engine.POST("/process_audio", rateLimit, h.Assistant.ProcessAudio)
	r.engine.GET("/download_pdf", rateLimit, h.Document.Download)
}
