// Package server wires the governance gateway together: config, the two
// state pools, the capability registry, the upstream client, the lifecycle
// manager, the poller, and the HTTP facade. It exists in pkg/ so embedding
// applications can compose the gateway in-process instead of running the
// daemon.
package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/practiva/aigate/internal/api"
	"github.com/practiva/aigate/internal/api/handlers"
	"github.com/practiva/aigate/internal/availability"
	"github.com/practiva/aigate/internal/config"
	"github.com/practiva/aigate/internal/contextsync"
	"github.com/practiva/aigate/internal/lifecycle"
	"github.com/practiva/aigate/internal/registry"
	"github.com/practiva/aigate/internal/retry"
	"github.com/practiva/aigate/internal/runtime"
	"github.com/practiva/aigate/internal/statestore"
	"github.com/practiva/aigate/internal/status"
	"github.com/practiva/aigate/internal/telemetry"
	"github.com/practiva/aigate/internal/upstream"
)

// Server holds the initialized gateway.
type Server struct {
	// Handler is the HTTP facade with all routes and middleware.
	Handler http.Handler

	// Store is the persisted context-scoped state pool.
	Store *statestore.ContextStore

	// Runtime is the ephemeral state pool.
	Runtime *runtime.Store

	// Poller keeps status and pending actions fresh; run it in a goroutine.
	Poller *status.Poller

	// Port is the port the facade should listen on.
	Port int

	// ShutdownFunc flushes telemetry on graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New initializes all gateway components and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load()
	if err != nil {
		return nil, err
	}

	store := statestore.New()
	rt := runtime.New()
	observer := contextsync.New(rt, store)
	resolver := availability.New(reg)

	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.Upstream.Timeout)
	manager := lifecycle.New(client, store, rt, retry.Options{MaxAttempts: cfg.Retry.MaxAttempts})
	poller := status.New(client, store, manager, cfg.Polling.StatusInterval, cfg.Polling.PendingInterval)

	h := handlers.New(resolver, reg, manager, poller, store, rt)
	handler := api.NewRouter(cfg, h, observer)

	log.Info().
		Str("upstream", cfg.Upstream.BaseURL).
		Int("port", cfg.Port).
		Msg("Gateway initialized")

	return &Server{
		Handler:      handler,
		Store:        store,
		Runtime:      rt,
		Poller:       poller,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
