// Package server exposes the search pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/FranksOps/metasearch/internal/metrics"
	"github.com/FranksOps/metasearch/internal/pipeline"
)

// Searcher is the pipeline as seen by the HTTP layer.
type Searcher interface {
	Search(ctx context.Context, query string, page int) (*pipeline.Page, error)
}

// Options configures a Server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	Logger          *slog.Logger
}

// Server serves /api/search, /healthz and /metrics.
type Server struct {
	searcher Searcher
	engine   *gin.Engine
	addr     string
	shutdown time.Duration
	logger   *slog.Logger
}

// New builds the router.
func New(searcher Searcher, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		searcher: searcher,
		addr:     opts.Addr,
		shutdown: opts.ShutdownTimeout,
		logger:   opts.Logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), s.accessLog())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.GET("/api/search", s.handleSearch)
	s.engine = engine
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")

	page := 0
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "page must be a non-negative integer"})
			return
		}
		page = n
	}

	result, err := s.searcher.Search(c.Request.Context(), query, page)
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "missing query parameter q"})
		return
	case errors.Is(err, pipeline.ErrInvalidPage):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.logger.Error("search failed", "query", query, "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}
