// Package contextsync watches the ambient authentication/navigation context
// and invalidates both client state pools when the active tenant or party
// changes. The runtime store is cleared first, then the persisted store's
// own SetContext comparison performs the scoped wipe.
package contextsync

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/practiva/aigate/internal/runtime"
	"github.com/practiva/aigate/internal/statestore"
)

// partyKeys are the recognized navigation/selection parameter names a party
// id may arrive under.
var partyKeys = []string{"party_id", "patient_id", "client_id", "animal_id"}

// PartyFromParams extracts a party id from navigation parameters, matching
// the small fixed set of recognized key names.
func PartyFromParams(params map[string]string) string {
	for _, key := range partyKeys {
		if v, ok := params[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Observer compares each tick's (tenant, party) against the previous one
// and triggers store invalidation on change.
type Observer struct {
	mu         sync.Mutex
	runtime    *runtime.Store
	store      *statestore.ContextStore
	prevTenant string
	prevParty  string
}

// New creates an observer over the two stores.
func New(rt *runtime.Store, cs *statestore.ContextStore) *Observer {
	return &Observer{runtime: rt, store: cs}
}

// Sync runs one observation tick. Does nothing while unauthenticated. When
// a previously seen non-empty tenant or party differs from the current one,
// the runtime store is cleared immediately — before any other store
// mutation this tick — and the persisted store is then told the new pair
// (its own comparison performs the scoped reset). The snapshot for the next
// comparison is updated regardless of outcome.
func (o *Observer) Sync(authenticated bool, tenantID, partyID string) {
	if !authenticated {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	tenantChanged := o.prevTenant != "" && o.prevTenant != tenantID
	partyChanged := o.prevParty != "" && o.prevParty != partyID
	if tenantChanged || partyChanged {
		log.Info().
			Bool("tenant_changed", tenantChanged).
			Bool("party_changed", partyChanged).
			Msg("Ambient context changed, clearing runtime state")
		o.runtime.ClearRuntime()
	}

	o.store.SetContext(tenantID, partyID)

	o.prevTenant = tenantID
	o.prevParty = partyID
}
