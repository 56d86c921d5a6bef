package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trainsplorer/railcore/internal/logging"
	"github.com/trainsplorer/railcore/internal/railmetrics"
)

// requestTimeout is the deadline every request's context carries; a store
// transaction still open when it passes is rolled back.
const requestTimeout = 30 * time.Second

// newServiceRouter builds the chi router every serve-* subcommand starts
// from: panic recovery, request-id propagation, a requestTimeout deadline
// on each request, Prometheus request metrics, and the /healthz and
// /metrics endpoints every service exposes.
func newServiceRouter(service string, metrics *railmetrics.Registry) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
			defer cancel()
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Use(metrics.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

// runServer starts an HTTP server on listen and blocks until ctx is
// cancelled (SIGINT/SIGTERM), then shuts it down with a ten second grace
// period. Background workers passed in alongside it share the listener's
// cancellation context and surface errors through the same errgroup.
func runServer(ctx context.Context, service, listen string, handler http.Handler, workers ...func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: listen, Handler: handler}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting service", zap.String("service", service), zap.String("listen", listen))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Annotate(err, "serve http")
		}
		return nil
	})
	for _, w := range workers {
		w := w
		g.Go(func() error { return w(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Trace(srv.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func initLogging(service string) error {
	return logging.Init(&logging.Config{Level: logLevel, File: logFile, Service: service})
}
