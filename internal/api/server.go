package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hl-basis-backtest/internal/app"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Service interface {
	RunBacktest(ctx context.Context, req app.BacktestRequest) (*app.BacktestReport, error)
	RunFunding(ctx context.Context, req app.FundingRequest) (*app.FundingReport, error)
}

type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

type Options struct {
	AllowedOrigins []string
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
	// Cache enables DELETE /api/v1/cache when non-nil.
	Cache          Purger
	RequestTimeout time.Duration
}

type Server struct {
	svc     Service
	opts    Options
	log     *zap.Logger
	handler http.Handler
}

func New(svc Service, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}
	s := &Server{svc: svc, opts: opts, log: log}

	router := gin.New()
	router.Use(requestLogger(log), recovery(log))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		router.GET(opts.MetricsPath, gin.WrapH(opts.Metrics))
	}
	v1 := router.Group("/api/v1")
	{
		v1.POST("/backtest", s.runBacktest)
		v1.GET("/funding/:coin", s.runFunding)
		v1.DELETE("/cache", s.purgeCache)
	}
	router.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         600,
	}).Handler(router)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
