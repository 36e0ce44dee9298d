package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ecdpchain/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultWriteTimeout      = 15 * time.Second
)

// ServerConfig configures the JSON-RPC endpoint. An empty JWTSecret
// disables the admin methods.
type ServerConfig struct {
	JWTSecret          string
	JWTIssuer          string
	RateLimitPerSecond float64
	RateLimitBurst     int
	ReadHeaderTimeout  time.Duration
	WriteTimeout       time.Duration
	Logger             *slog.Logger
}

// Server exposes the node over JSON-RPC, a block stream and the metrics
// endpoint.
type Server struct {
	node    *core.Node
	cfg     ServerConfig
	logger  *slog.Logger
	auth    *authenticator
	limiter *clientLimiter
	blocks  *blockHub

	serverMu   sync.Mutex
	httpServer *http.Server
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	s := &Server{
		node:    node,
		cfg:     cfg,
		logger:  cfg.Logger,
		auth:    newAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter: newClientLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst, time.Now),
		blocks:  newBlockHub(),
	}
	if node != nil {
		node.OnBlock(s.blocks.publish)
	}
	return s
}

// Handler returns the routed, traced HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	r.Post("/rpc", s.handle)
	r.Get("/ws/blocks", s.handleBlocksWS)
	return otelhttp.NewHandler(r, "ecdp-rpc")
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("rpc: serving", "address", listener.Addr().String())
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Start listens on addr and serves until Shutdown.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.blocks.close()
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// clientSource identifies the caller for rate limiting. Forwarded headers
// are ignored.
func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
