// Package api exposes the pathway query surface over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/compath-server/internal/domain"
)

// QueryCache is the optional response cache consulted for gene-set
// queries. A nil cache disables caching.
type QueryCache interface {
	GetGeneSetQuery(ctx context.Context, symbols []string) (map[string]*domain.PathwayEnrichment, bool)
	SetGeneSetQuery(ctx context.Context, symbols []string, results map[string]*domain.PathwayEnrichment)
}

// Server is the HTTP server over an enrichment service.
type Server struct {
	cfg     *domain.Config
	service domain.EnrichmentService
	cache   QueryCache
	log     *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates an HTTP server. cache may be nil.
func NewServer(cfg *domain.Config, service domain.EnrichmentService, cache QueryCache, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	if cfg.Server.RateLimit > 0 {
		router.Use(rateLimitMiddleware(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst))
	}

	s := &Server{
		cfg:     cfg,
		service: service,
		cache:   cache,
		log:     logger,
		router:  router,
	}
	s.setupRoutes()

	return s
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.log.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/summary", s.handleSummary)
		v1.POST("/query/gene-set", s.handleQueryGeneSet)
		v1.GET("/query/gene/:symbol", s.handleQueryGene)
		v1.GET("/pathways/:id", s.handleGetPathway)
		v1.GET("/pathways", s.handleSearchPathways)
		v1.GET("/export/gene-sets", s.handleExportGeneSets)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

func rateLimitMiddleware(limit rate.Limit, burst int) gin.HandlerFunc {
	limiter := rate.NewLimiter(limit, burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
