package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	"github.com/blueplan/noteshare-go/internal/noteshare/config"
	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
	"github.com/blueplan/noteshare-go/internal/noteshare/notes"
)

// Server HTTP 服务
type Server struct {
	engine     *gin.Engine
	handler    *Handler
	httpServer *http.Server
	config     *config.Config
	logger     *logx.Logger
}

// NewServer 创建服务并注册路由
func NewServer(cfg *config.Config, service *notes.Service, logger *logx.Logger) *Server {
	switch {
	case cfg.App.Debug:
		gin.SetMode(gin.DebugMode)
	case cfg.App.Environment == "production":
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = logx.NewNop()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = false

	if cfg.Monitoring.EnableMetrics {
		p := ginprometheus.NewPrometheus("gin")
		p.Use(engine)
	}

	cors := NewCORSMiddleware(cfg.API.CORSOrigins)
	engine.Use(RequestID())
	engine.Use(LogRequest(logger))
	engine.Use(Recovery(logger))
	engine.Use(cors.CORS())
	engine.Use(SecurityHeaders())
	engine.Use(LimitRequestSize(cfg.API.MaxRequestSize, logger))

	s := &Server{
		engine: engine,
		config: cfg,
		logger: logger,
	}
	s.handler = NewHandler(service, logger)
	s.setupRoutes(s.handler, cors)

	timeout := time.Duration(cfg.API.Timeout) * time.Second
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
		IdleTimeout:       2 * timeout,
	}
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(h *Handler, cors *CORSMiddleware) {
	api := s.engine.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/health/ready", h.Ready)

		notesGroup := api.Group("/notes")
		notesGroup.POST("", h.CreateNote)
		notesGroup.POST("/:id/unlock", h.UnlockNote)
		notesGroup.POST("/:id/summarize", h.SummarizeNote)
		notesGroup.GET("/:id/summarize/stream", NewStreamHandler(h, cors).StreamSummary)
	}

	s.engine.NoRoute(h.NoRoute)
}

// SetStoreHealth adds backend details to the readiness check.
func (s *Server) SetStoreHealth(fn HealthReporter) {
	s.handler.storeHealth = fn
}

// Handler exposes the gin engine, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "http server listening", logx.KV("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
