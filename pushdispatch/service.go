// Package pushdispatch assembles the push-notification dispatch service.
package pushdispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinywideclouds/go-push-dispatch/internal/api"
	"github.com/tinywideclouds/go-push-dispatch/internal/fanout"
	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
	"github.com/tinywideclouds/go-push-dispatch/pushdispatch/config"
)

type Service struct {
	srv    *http.Server
	logger *slog.Logger
}

// New assembles the service from its collaborators. registry and audit may
// be nil when the Supabase environment is not configured; the notify
// handler then answers 500 missing_supabase_env per request, matching the
// behaviour of an unconfigured deployment without failing startup.
func New(
	cfg *config.Config,
	registry dispatch.DeviceRegistry,
	audit dispatch.AuditSink,
	apnsClient dispatch.ProviderClient,
	fcmClient dispatch.ProviderClient,
	logger *slog.Logger,
) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	coordinator := fanout.NewCoordinator(apnsClient, fcmClient, cfg.NumDispatchWorkers, logger)
	notifyAPI := api.NewNotifyAPI(registry, coordinator, audit, logger)

	mux := http.NewServeMux()
	// Method handling lives in the handler so 405 gets the JSON error body.
	mux.HandleFunc("/notify", notifyAPI.HandleNotify)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &Service{
		srv: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Handler exposes the route tree, mainly for tests.
func (s *Service) Handler() http.Handler {
	return s.srv.Handler
}

// Start blocks serving HTTP until the server is shut down.
func (s *Service) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down service components...")
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	s.logger.Info("Service shutdown complete.")
	return nil
}
