package main

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-session-guard/authapi"
	"github.com/jrsteele09/go-session-guard/client"
	"github.com/jrsteele09/go-session-guard/credentials"
	"github.com/jrsteele09/go-session-guard/guard"
	"github.com/jrsteele09/go-session-guard/internal/config"
	"github.com/jrsteele09/go-session-guard/internal/metrics"
	"github.com/jrsteele09/go-session-guard/navigation"
	"github.com/jrsteele09/go-session-guard/session"
	"github.com/jrsteele09/go-session-guard/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app wires one session guard for a single CLI invocation.
type app struct {
	store    *credentials.Store
	api      *authapi.Client
	tokens   *token.Service
	manager  *session.Manager
	client   *client.Client
	guard    *guard.Guard
	nav      *navigation.Service
	registry *prometheus.Registry
	tracer   *sdktrace.TracerProvider
	close    func() error
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	persister, closer, err := newPersister(c)
	if err != nil {
		return nil, err
	}

	a := &app{
		close:    closer,
		registry: prometheus.NewRegistry(),
		tracer:   newTracerProvider(),
	}
	m := metrics.New(a.registry)

	a.store = credentials.NewStore(persister, credentials.WithLogger(log.Logger))
	a.api = authapi.New(c)
	a.nav = navigation.New(navigation.WithLogger(log.Logger))
	a.nav.SetNavigateFunc(func(path string, _ navigation.NavigateOptions) {
		log.Debug().Str("path", path).Msg("navigate")
	})
	a.tokens = token.NewService(a.store, a.api,
		token.WithExpiryMargin(c.GetExpiryMargin()),
		token.WithLogger(log.Logger),
		token.WithMetrics(m),
	)
	a.manager = session.NewManager(a.store, a.api, a.nav, session.WithLogger(log.Logger))
	a.client = client.New(c.GetAPIBaseURL(), a.tokens, a.store, a.nav,
		client.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}),
		client.WithLogger(log.Logger),
		client.WithMetrics(m),
		client.WithTracer(a.tracer.Tracer("github.com/jrsteele09/go-session-guard/cmd/sessionguard")),
	)
	a.guard = guard.New(a.store, a.nav)

	if _, err := a.manager.Restore(ctx); err != nil {
		_ = closer()
		return nil, err
	}
	return a, nil
}

// Close flushes spans, logs the session counters at debug level and releases the store.
func (a *app) Close() {
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		log.Warn().Err(err).Msg("flushing traces")
	}
	if families, err := a.registry.Gather(); err == nil {
		for _, mf := range families {
			for _, metric := range mf.GetMetric() {
				log.Debug().Str("metric", mf.GetName()).Float64("value", metric.GetCounter().GetValue()).Msg("session counter")
			}
		}
	}
	if err := a.close(); err != nil {
		log.Warn().Err(err).Msg("closing session store")
	}
}
