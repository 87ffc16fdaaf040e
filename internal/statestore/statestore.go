// Package statestore holds the tenant/party-scoped client state: chat
// history, the session id, the last observed AIStatus, and the pending
// action set. State is valid only for the (tenant, party) pair recorded
// alongside it; a context change wipes everything before new writes are
// accepted. This is the store most exposed to cross-tenant leakage, so all
// mutation goes through the named operations here — no field access from
// outside.
//
// Contents persist as a JSON snapshot on disk (debounced writes, loaded on
// startup) so state survives a gateway restart within the same profile.
package statestore

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/practiva/aigate/pkg/models"
)

// MaxMessages caps chat history; oldest messages are evicted first.
const MaxMessages = 50

// MessageRetention is how long messages are kept irrespective of the count
// cap. CleanupOldMessages enforces it.
const MessageRetention = 24 * time.Hour

// PendingAction is one tracked plan plus the local content fingerprint
// computed when it was cached, used for drift detection at execute time.
type PendingAction struct {
	Plan        models.ActionPlan `json:"plan"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	AddedAt     time.Time         `json:"added_at"`
}

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	TenantID   string               `json:"tenant_id"`
	PartyID    string               `json:"party_id"`
	SessionID  string               `json:"session_id"`
	Messages   []models.ChatMessage `json:"messages"`
	Pending    []PendingAction      `json:"pending"`
	LastStatus *models.AIStatus     `json:"last_status,omitempty"`
}

// ContextStore is the persisted, context-scoped state container.
type ContextStore struct {
	mu         sync.RWMutex
	tenantID   string
	partyID    string
	sessionID  string
	messages   []models.ChatMessage
	pending    []PendingAction
	lastStatus *models.AIStatus

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{}

	now func() time.Time
}

// New creates a context store. If AIGATE_DATA_DIR is set, state is
// persisted to a JSON file in that directory; otherwise ~/.aigate is used.
// An unwritable directory disables persistence rather than failing.
func New() *ContextStore {
	s := &ContextStore{
		saveCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
		now:    func() time.Time { return time.Now().UTC() },
	}

	dataDir := os.Getenv("AIGATE_DATA_DIR")
	if dataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, ".aigate")
		}
	}
	if dataDir != "" {
		s.snapshotPath = filepath.Join(dataDir, "state.json")
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			s.snapshotPath = ""
		}
	}

	if s.snapshotPath != "" {
		s.loadSnapshot()
		go s.saveLoop()
	}

	log.Info().Str("snapshot", s.snapshotPath).Msg("Context store configured")
	return s
}

// ── Context scoping ──────────────────────────────────────────

// SetContext records the active (tenant, party) pair. If either component
// differs from a previously recorded non-empty value, the entire store is
// wiped first. An identical pair is a data no-op.
func (s *ContextStore) SetContext(tenantID, partyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenantChanged := s.tenantID != "" && s.tenantID != tenantID
	partyChanged := s.partyID != "" && s.partyID != partyID
	if tenantChanged || partyChanged {
		log.Info().
			Str("tenant", tenantID).
			Bool("tenant_changed", tenantChanged).
			Bool("party_changed", partyChanged).
			Msg("Context changed, wiping scoped state")
		s.wipeLocked()
	}
	s.tenantID = tenantID
	s.partyID = partyID
	s.requestSave()
}

// Context returns the active (tenant, party) pair.
func (s *ContextStore) Context() (tenantID, partyID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenantID, s.partyID
}

// ClearAll wipes everything including the context pair itself. Logout hook.
func (s *ContextStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wipeLocked()
	s.tenantID = ""
	s.partyID = ""
	s.requestSave()
}

// wipeLocked clears all scoped data. Caller holds mu.
func (s *ContextStore) wipeLocked() {
	s.messages = nil
	s.pending = nil
	s.sessionID = ""
	s.lastStatus = nil
}

// ── Chat history ─────────────────────────────────────────────

// AddMessage appends to chat history, evicting the oldest entries beyond
// MaxMessages.
func (s *ContextStore) AddMessage(msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages = append(s.messages, msg)
	if overflow := len(s.messages) - MaxMessages; overflow > 0 {
		s.messages = append([]models.ChatMessage(nil), s.messages[overflow:]...)
	}
	s.requestSave()
}

// Messages returns a copy of the chat history, oldest first.
func (s *ContextStore) Messages() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// CleanupOldMessages drops messages older than MessageRetention and returns
// how many were removed.
func (s *ContextStore) CleanupOldMessages() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-MessageRetention)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if !m.CreatedAt.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	removed := len(s.messages) - len(kept)
	s.messages = kept
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Evicted expired chat messages")
		s.requestSave()
	}
	return removed
}

// ── Session ──────────────────────────────────────────────────

// EnsureSession returns the session id, minting one if absent.
func (s *ContextStore) EnsureSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" {
		s.sessionID = ulid.MustNew(ulid.Timestamp(s.now()), rand.New(rand.NewSource(s.now().UnixNano()))).String()
		s.requestSave()
	}
	return s.sessionID
}

// SessionID returns the current session id, empty if none.
func (s *ContextStore) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// ── Last status ──────────────────────────────────────────────

// SetLastStatus replaces the last observed status snapshot (last write
// wins, no merging).
func (s *ContextStore) SetLastStatus(status *models.AIStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStatus = status
	s.requestSave()
}

// LastStatus returns the last observed status snapshot, nil if none.
func (s *ContextStore) LastStatus() *models.AIStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStatus
}

// ── Pending actions ──────────────────────────────────────────

// AddPendingAction tracks a plan awaiting approval/execution. Deduplicated
// by plan id: re-adding an already tracked plan is a no-op.
func (s *ContextStore) AddPendingAction(plan models.ActionPlan, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pending {
		if p.Plan.PlanID == plan.PlanID {
			return
		}
	}
	s.pending = append(s.pending, PendingAction{
		Plan:        plan,
		Fingerprint: fingerprint,
		AddedAt:     s.now(),
	})
	s.requestSave()
}

// RemovePendingAction stops tracking a plan. No-op if absent.
func (s *ContextStore) RemovePendingAction(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.pending {
		if p.Plan.PlanID == planID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.requestSave()
			return
		}
	}
}

// GetPendingAction returns a tracked plan by id.
func (s *ContextStore) GetPendingAction(planID string) (PendingAction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pending {
		if p.Plan.PlanID == planID {
			return p, true
		}
	}
	return PendingAction{}, false
}

// PendingActions returns a copy of the tracked set, insertion order.
func (s *ContextStore) PendingActions() []PendingAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PendingAction, len(s.pending))
	copy(out, s.pending)
	return out
}

// SyncPendingActions replaces the tracked set wholesale with the backend's
// view, trusting the server over local state. Fingerprints for plans we
// already track are carried over.
func (s *ContextStore) SyncPendingActions(plans []models.ActionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prints := make(map[string]string, len(s.pending))
	added := make(map[string]time.Time, len(s.pending))
	for _, p := range s.pending {
		prints[p.Plan.PlanID] = p.Fingerprint
		added[p.Plan.PlanID] = p.AddedAt
	}

	next := make([]PendingAction, 0, len(plans))
	for _, plan := range plans {
		at, ok := added[plan.PlanID]
		if !ok {
			at = s.now()
		}
		next = append(next, PendingAction{
			Plan:        plan,
			Fingerprint: prints[plan.PlanID],
			AddedAt:     at,
		})
	}
	s.pending = next
	s.requestSave()
}

// ── Persistence ──────────────────────────────────────────────

// requestSave signals the background goroutine to persist. Non-blocking:
// rapid writes coalesce into one disk flush.
func (s *ContextStore) requestSave() {
	if s.snapshotPath == "" {
		return
	}
	select {
	case s.saveCh <- struct{}{}:
	default:
	}
}

// saveLoop debounces save requests (max one write per 500ms).
func (s *ContextStore) saveLoop() {
	for {
		select {
		case <-s.doneCh:
			return
		case <-s.saveCh:
			time.Sleep(500 * time.Millisecond)
			s.saveSnapshot()
		}
	}
}

func (s *ContextStore) saveSnapshot() {
	s.mu.RLock()
	snap := snapshot{
		TenantID:   s.tenantID,
		PartyID:    s.partyID,
		SessionID:  s.sessionID,
		Messages:   s.messages,
		Pending:    s.pending,
		LastStatus: s.lastStatus,
	}
	s.mu.RUnlock()

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Cannot marshal state snapshot")
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		log.Warn().Err(err).Msg("Cannot write state snapshot")
		return
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		log.Warn().Err(err).Msg("Cannot replace state snapshot")
	}
}

func (s *ContextStore) loadSnapshot() {
	raw, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("Cannot read state snapshot")
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warn().Err(err).Msg("Corrupt state snapshot, starting fresh")
		return
	}

	s.mu.Lock()
	s.tenantID = snap.TenantID
	s.partyID = snap.PartyID
	s.sessionID = snap.SessionID
	s.messages = snap.Messages
	s.pending = snap.Pending
	s.lastStatus = snap.LastStatus
	s.mu.Unlock()

	log.Info().
		Int("messages", len(snap.Messages)).
		Int("pending", len(snap.Pending)).
		Msg("Loaded context state from disk")
}

// Close stops background persistence and flushes a final snapshot.
func (s *ContextStore) Close() error {
	select {
	case <-s.doneCh:
	default:
		close(s.doneCh)
	}
	if s.snapshotPath != "" {
		s.saveSnapshot()
	}
	return nil
}
