// Package status polls the AI service's health snapshot and the pending
// action list on independent schedules. Both polls are idempotent reads:
// each completed fetch replaces the previous snapshot wholesale (last write
// wins), so out-of-order completions never need merging. A manual refresh
// goes through the same replacement path.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/practiva/aigate/internal/lifecycle"
	"github.com/practiva/aigate/internal/statestore"
	"github.com/practiva/aigate/pkg/models"
)

// Source fetches the authoritative status snapshot.
type Source interface {
	Status(ctx context.Context) (*models.AIStatus, error)
}

// Poller keeps the local status snapshot and pending set fresh.
type Poller struct {
	source  Source
	store   *statestore.ContextStore
	manager *lifecycle.Manager

	statusInterval  time.Duration
	pendingInterval time.Duration
	cleanupInterval time.Duration

	mu            sync.RWMutex
	loading       bool
	errored       bool
	lastAvailable bool
	seenFirst     bool
}

// New creates a poller. Zero intervals fall back to 60s status, 30s
// pending, 1h cleanup.
func New(source Source, store *statestore.ContextStore, manager *lifecycle.Manager, statusInterval, pendingInterval time.Duration) *Poller {
	if statusInterval <= 0 {
		statusInterval = 60 * time.Second
	}
	if pendingInterval <= 0 {
		pendingInterval = 30 * time.Second
	}
	return &Poller{
		source:          source,
		store:           store,
		manager:         manager,
		statusInterval:  statusInterval,
		pendingInterval: pendingInterval,
		cleanupInterval: time.Hour,
		loading:         true,
	}
}

// Run polls until the context is cancelled. Intended to run in its own
// goroutine; an immediate first fetch happens before the tickers start.
func (p *Poller) Run(ctx context.Context) {
	p.RefreshStatus(ctx)
	p.RefreshPending(ctx)

	statusTick := time.NewTicker(p.statusInterval)
	pendingTick := time.NewTicker(p.pendingInterval)
	cleanupTick := time.NewTicker(p.cleanupInterval)
	defer statusTick.Stop()
	defer pendingTick.Stop()
	defer cleanupTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-statusTick.C:
			p.RefreshStatus(ctx)
		case <-pendingTick.C:
			p.RefreshPending(ctx)
		case <-cleanupTick.C:
			p.store.CleanupOldMessages()
		}
	}
}

// RefreshStatus fetches and installs a new status snapshot.
func (p *Poller) RefreshStatus(ctx context.Context) {
	snapshot, err := p.source.Status(ctx)

	p.mu.Lock()
	p.loading = false
	if err != nil {
		p.errored = true
		p.mu.Unlock()
		log.Warn().Err(err).Msg("Status poll failed")
		return
	}
	p.errored = false

	available := snapshot.Enabled && snapshot.Available && !snapshot.KillSwitch.Active()
	becameUnavailable := p.seenFirst && p.lastAvailable && !available
	p.lastAvailable = available
	p.seenFirst = true
	p.mu.Unlock()

	p.store.SetLastStatus(snapshot)

	// Exactly one notification per available→unavailable transition.
	if becameUnavailable {
		log.Warn().
			Str("phase", string(snapshot.Phase)).
			Bool("kill_switch", snapshot.KillSwitch.Active()).
			Msg("AI became unavailable")
	}
}

// RefreshPending replaces the pending set with the backend's view.
func (p *Poller) RefreshPending(ctx context.Context) {
	if err := p.manager.RefreshPending(ctx); err != nil {
		log.Warn().Err(err).Msg("Pending actions poll failed")
	}
}

// Snapshot returns the resolver's view of poll state: the latest status
// plus the loading/errored flags.
func (p *Poller) Snapshot() (status *models.AIStatus, loading, errored bool) {
	p.mu.RLock()
	loading = p.loading
	errored = p.errored
	p.mu.RUnlock()
	return p.store.LastStatus(), loading, errored
}
