package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlaomota/V360/internal/aggregator"
	"github.com/charlaomota/V360/internal/domain"
	"github.com/charlaomota/V360/internal/metrics"
	"github.com/charlaomota/V360/internal/ratelimit"
)

// Server - HTTP вход агрегатора: запуск поиска, статус пулов
// ключей, сброс счетчиков ошибок
type Server struct {
	orchestrator *aggregator.Orchestrator
	limiter      *ratelimit.Limiter
	metrics      *metrics.Metrics
	logger       *zap.Logger
	httpServer   *http.Server
}

type Deps struct {
	Orchestrator *aggregator.Orchestrator
	Limiter      *ratelimit.Limiter
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Addr         string
}

type searchRequest struct {
	Query          string `json:"query" binding:"required"`
	ProductContext string `json:"product_context"`
}

type resetRequest struct {
	Provider string `json:"provider"`
}

func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	s := &Server{
		orchestrator: deps.Orchestrator,
		limiter:      deps.Limiter,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.Use(s.rateLimit())
	{
		api.POST("/search", s.handleSearch)
		api.GET("/search/status", s.handleStatus)
		api.POST("/search/reset", s.handleReset)
	}

	s.httpServer = &http.Server{
		Addr:              deps.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler отдает роутер напрямую. Для httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	report, err := s.orchestrator.Run(c.Request.Context(), req.Query, req.ProductContext)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, domain.ErrQueryTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrCallTimeout):
			// по аналогии с долгими запросами: клиент должен отличать
			// таймаут вызова от пустого результата
			c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		default:
			s.logger.Error("search failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) handleStatus(c *gin.Context) {
	if provider := c.Query("provider"); provider != "" {
		c.JSON(http.StatusOK, gin.H{provider: s.orchestrator.Status(provider)})
		return
	}
	c.JSON(http.StatusOK, s.orchestrator.StatusAll())
}

func (s *Server) handleReset(c *gin.Context) {
	var req resetRequest
	// пустое тело допустимо - сброс всех провайдеров
	_ = c.ShouldBindJSON(&req)

	s.orchestrator.ResetErrors(req.Provider)

	scope := req.Provider
	if scope == "" {
		scope = "all"
	}
	s.logger.Info("error counters reset", zap.String("scope", scope))
	c.JSON(http.StatusOK, gin.H{"reset": scope, "status": s.orchestrator.StatusAll()})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		clientID := c.ClientIP()
		if !s.limiter.Allow(clientID) {
			if s.metrics != nil {
				s.metrics.RecordRateLimitHit()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":     "rate limit exceeded",
				"retry_at":  s.limiter.ResetTime(clientID).UTC().Format(time.RFC3339),
				"remaining": 0,
			})
			return
		}
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
