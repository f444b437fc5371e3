package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/trailtail/internal/metrics"
	"github.com/loykin/trailtail/internal/tail"
)

// StatusSource is implemented by *tail.Loop.
type StatusSource interface {
	Snapshot() tail.Snapshot
}

// Router exposes a running tail over HTTP.
// Endpoints:
//
//	GET {basePath}/healthz   200 while the loop is alive, 503 once it failed
//	GET {basePath}/status    the latest tail.Snapshot as JSON
//	GET {basePath}/metrics   Prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      StatusSource
	basePath string
}

// NewRouter constructs a Router reading snapshots from src.
func NewRouter(src StatusSource, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealth)
	group.GET("/status", r.handleStatus)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// Server is a started status server.
type Server struct {
	srv  *http.Server
	addr string
	log  *slog.Logger
}

// NewServer binds addr and serves the router in the background. Bind errors
// are returned; later serve errors are logged.
func NewServer(addr, basePath string, src StatusSource, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		srv: &http.Server{
			Handler:           NewRouter(src, basePath).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		addr: ln.Addr().String(),
		log:  log,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server stopped", "addr", s.addr, "err", err)
		}
	}()
	s.log.Info("status server listening", "addr", s.addr)
	return s, nil
}

// Addr is the bound listen address, useful when addr had port 0.
func (s *Server) Addr() string { return s.addr }

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

type healthResp struct {
	Status string     `json:"status"`
	State  tail.State `json:"state"`
	Error  string     `json:"error,omitempty"`
}

func (r *Router) handleHealth(c *gin.Context) {
	snap := r.src.Snapshot()
	if snap.State == tail.StateFailed {
		writeJSON(c, http.StatusServiceUnavailable, healthResp{Status: "failed", State: snap.State, Error: snap.LastError})
		return
	}
	writeJSON(c, http.StatusOK, healthResp{Status: "ok", State: snap.State})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.src.Snapshot())
}
