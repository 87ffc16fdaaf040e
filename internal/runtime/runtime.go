// Package runtime holds the ephemeral, single-slot UI/execution state:
// the current plan, live execution progress, and the typing/executing
// flags. Nothing here is persisted; the whole store clears on context
// change or when an action reaches a terminal outcome.
package runtime

import (
	"sync"

	"github.com/practiva/aigate/pkg/models"
)

// Store is the per-process ephemeral runtime state.
type Store struct {
	mu          sync.RWMutex
	currentPlan *models.ActionPlan
	progress    *models.ExecutionProgress
	typing      bool
	executing   bool
}

// New creates an empty runtime store.
func New() *Store {
	return &Store{}
}

// SetCurrentPlan records the plan the UI is focused on.
func (s *Store) SetCurrentPlan(plan *models.ActionPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPlan = plan
}

// CurrentPlan returns the focused plan, nil if none.
func (s *Store) CurrentPlan() *models.ActionPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPlan
}

// SetProgress records live execution progress.
func (s *Store) SetProgress(p *models.ExecutionProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = p
}

// Progress returns progress only if it belongs to the given plan. Stale
// progress for a different plan is never exposed.
func (s *Store) Progress(planID string) *models.ExecutionProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.progress == nil || s.progress.ActionID != planID {
		return nil
	}
	return s.progress
}

// SetTyping flips the typing indicator.
func (s *Store) SetTyping(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing = v
}

// Typing reports the typing indicator.
func (s *Store) Typing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.typing
}

// SetExecuting flips the executing flag.
func (s *Store) SetExecuting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executing = v
}

// Executing reports whether an execution is in flight.
func (s *Store) Executing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executing
}

// FinishExecution atomically clears the executing flag and progress, and —
// when terminal — the current plan. Keeping this a single operation means
// the UI never observes an executing flag pointing at cleared progress.
func (s *Store) FinishExecution(clearPlan bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executing = false
	s.progress = nil
	if clearPlan {
		s.currentPlan = nil
	}
}

// ClearRuntime resets all four fields. Idempotent; called on every context
// change.
func (s *Store) ClearRuntime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPlan = nil
	s.progress = nil
	s.typing = false
	s.executing = false
}
