// Package adminhttp is the engine's admin listener: /healthz and
// /metrics on a lean fasthttp server, the same shape as the teacher's
// cmd/health-fasthttp proof-of-concept server wired to the teacher's
// pkg/api/http.go pattern of bridging net/http's promhttp.Handler onto
// fasthttp with fasthttpadaptor.
package adminhttp

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"docstore/pkg/logger"

	"go.uber.org/zap"
)

// Readiness is consulted by the /readyz handler; /healthz ignores it.
type Readiness interface {
	Ready() bool
}

// Server is the admin HTTP listener.
type Server struct {
	Addr    string
	Version string
	Ready   Readiness

	srv *fasthttp.Server
}

// Start begins serving in a background goroutine and returns immediately.
// Errors from the listener are logged, not returned, matching the
// teacher's fire-and-forget health POC server.
func (s *Server) Start() {
	metricsHandler := wrapHTTPHandler(promhttp.Handler())

	handler := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/healthz":
			s.healthz(ctx)
		case "/readyz":
			s.readyz(ctx)
		case "/metrics":
			metricsHandler(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	s.srv = &fasthttp.Server{
		Handler:            handler,
		Name:               "docstore-admin",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}

	go func() {
		logger.Log.Info("admin_http_listening", zap.String("addr", s.Addr))
		if err := s.srv.ListenAndServe(s.Addr); err != nil {
			logger.Log.Error("admin_http_exit", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown()
}

func (s *Server) healthz(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ver := s.Version
	if ver == "" {
		ver = "dev"
	}
	_, _ = ctx.WriteString(fmt.Sprintf(`{"status":"ok","version":"%s"}`, ver))
}

func (s *Server) readyz(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Content-Type", "application/json")
	if s.Ready == nil || !s.Ready.Ready() {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		_, _ = ctx.WriteString(`{"status":"not ready"}`)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	_, _ = ctx.WriteString(`{"status":"ok"}`)
}

// wrapHTTPHandler bridges a net/http.Handler (promhttp's, specifically)
// onto fasthttp's request model.
func wrapHTTPHandler(h http.Handler) func(ctx *fasthttp.RequestCtx) {
	return func(ctx *fasthttp.RequestCtx) {
		fasthttpadaptor.NewFastHTTPHandler(h)(ctx)
	}
}
