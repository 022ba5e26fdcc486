package adminhttp

import (
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
)

type fakeReadiness struct{ ready bool }

func (f fakeReadiness) Ready() bool { return f.ready }

func TestHealthzAlwaysOK(t *testing.T) {
	s := &Server{Version: "1.2.3"}
	ctx := &fasthttp.RequestCtx{}
	s.healthz(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusOK)
	}
	body := string(ctx.Response.Body())
	if !strings.Contains(body, "1.2.3") {
		t.Errorf("body = %q, want it to contain the version", body)
	}
}

func TestHealthzDefaultsVersionToDev(t *testing.T) {
	s := &Server{}
	ctx := &fasthttp.RequestCtx{}
	s.healthz(ctx)
	if !strings.Contains(string(ctx.Response.Body()), "dev") {
		t.Errorf("body = %q, want it to default to dev", ctx.Response.Body())
	}
}

func TestReadyzReportsNotReadyWithNoReadinessSet(t *testing.T) {
	s := &Server{}
	ctx := &fasthttp.RequestCtx{}
	s.readyz(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", ctx.Response.StatusCode(), fasthttp.StatusServiceUnavailable)
	}
}

func TestReadyzReflectsReadinessCheck(t *testing.T) {
	s := &Server{Ready: fakeReadiness{ready: true}}
	ctx := &fasthttp.RequestCtx{}
	s.readyz(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want %d when Ready() reports true", ctx.Response.StatusCode(), fasthttp.StatusOK)
	}
}

func TestReadyzReflectsNotReady(t *testing.T) {
	s := &Server{Ready: fakeReadiness{ready: false}}
	ctx := &fasthttp.RequestCtx{}
	s.readyz(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d when Ready() reports false", ctx.Response.StatusCode(), fasthttp.StatusServiceUnavailable)
	}
}

func TestShutdownBeforeStartIsSafe(t *testing.T) {
	s := &Server{}
	if err := s.Shutdown(); err != nil {
		t.Errorf("Shutdown() before Start() = %v, want nil", err)
	}
}
