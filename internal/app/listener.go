package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/graphseer/internal/config"
	"github.com/MrWong99/graphseer/internal/health"
	"github.com/MrWong99/graphseer/internal/mcpserver"
	"github.com/MrWong99/graphseer/internal/observe"
)

const (
	// probeTTL caches embedder and LLM readiness probes between scrapes;
	// every uncached probe is a billable API call.
	probeTTL = 30 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// listener is the HTTP surface: liveness and readiness probes, the
// Prometheus metrics endpoint, and the optional MCP tool endpoint. The
// handler always exists; the server only when a listen address is set.
type listener struct {
	handler http.Handler
	server  *http.Server
	tls     *config.TLSConfig
}

// initListener builds the HTTP surface. With an empty listen address no
// server is created and the surface is only reachable through [App.Handler],
// for hosts that embed the App behind their own server.
func (a *App) initListener() error {
	mux := http.NewServeMux()
	health.New(a.healthCheckers()...).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	if a.cfg.MCP.Enabled {
		srv, err := mcpserver.New(a.engine)
		if err != nil {
			return err
		}
		path := a.cfg.MCP.Path
		if path == "" {
			path = "/mcp"
		}
		mux.Handle(path, srv.Handler())
		slog.Info("mcp endpoint mounted", "path", path)
	}

	l := &listener{handler: observe.Middleware(observe.DefaultMetrics())(mux)}
	if addr := a.cfg.Server.ListenAddr; addr != "" {
		l.server = &http.Server{
			Addr:              addr,
			Handler:           l.handler,
			ReadHeaderTimeout: readHeaderTimeout,
		}
		l.tls = a.cfg.Server.TLS
	}
	a.listener = l
	return nil
}

// healthCheckers assembles the readiness probe set: store pings, breaker
// states, and cached provider probes.
func (a *App) healthCheckers() []health.Checker {
	checkers := []health.Checker{
		health.Ping("graph", a.graph),
		health.Ping("vector", a.vectors),
		health.Breaker(a.graphBreaker),
		health.Breaker(a.vectorBreaker),
	}
	if a.embedder != nil {
		checkers = append(checkers, health.Cached(health.Embedder(a.embedder), probeTTL))
	}
	if a.llm != nil {
		checkers = append(checkers, health.Cached(health.LLM(a.llm), probeTTL))
	}
	return checkers
}

// Handler returns the HTTP surface carrying /healthz, /readyz, /metrics, and
// the MCP endpoint when enabled. Hosts embedding the App can mount it on
// their own server instead of letting Run bind a port.
func (a *App) Handler() http.Handler {
	if a.listener == nil {
		return nil
	}
	return a.listener.handler
}

// serve blocks on the HTTP server until shutdown closes it. A listener
// without a server returns immediately.
func (l *listener) serve() {
	if l.server == nil {
		return
	}
	var err error
	if l.tls != nil {
		err = l.server.ListenAndServeTLS(l.tls.CertFile, l.tls.KeyFile)
	} else {
		err = l.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http listener failed", "addr", l.server.Addr, "err", err)
	}
}

// shutdown drains in-flight requests within the ctx deadline.
func (l *listener) shutdown(ctx context.Context) error {
	if l.server == nil {
		return nil
	}
	return l.server.Shutdown(ctx)
}
