// Package feedhttp serves the read-only market data API.
package feedhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"datafeeder/internal/credential"
	"datafeeder/internal/logger"
	"datafeeder/internal/market"
	"datafeeder/internal/store/fetchlog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const (
	ServiceName        = "datafeeder"
	RequestIDHeaderKey = "X-Request-ID"
	requestIDKey       = "request_id"
	shutdownTimeout    = 5 * time.Second
)

// CandleReader is the read side of the kline store.
type CandleReader interface {
	HasInstrument(instrument string) bool
	Instruments() []string
	Snapshot(instrument string) map[string][]market.Candle
	Stats() map[string]map[string]int
}

type UsageReporter interface {
	Stats() credential.Stats
}

type ReadinessChecker interface {
	Ready() bool
}

type FetchHistory interface {
	Recent(ctx context.Context, limit int) ([]fetchlog.Entry, error)
}

type ServerConfig struct {
	Addr      string
	Store     CandleReader
	Usage     UsageReporter
	Readiness ReadinessChecker
	// FetchLog is optional; /stats/fetches answers 404 without it.
	FetchLog FetchHistory
	Now      func() time.Time
}

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Usage == nil || cfg.Readiness == nil {
		return nil, errors.New("http server requires store, credential usage and readiness")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(), cors.New(corsConfig()))

	h := &handlers{cfg: cfg}
	h.register(router)
	return &Server{addr: cfg.Addr, router: router}, nil
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	cfg.AllowHeaders = append(cfg.AllowHeaders, RequestIDHeaderKey)
	cfg.ExposeHeaders = []string{RequestIDHeaderKey}
	return cfg
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("http: listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
