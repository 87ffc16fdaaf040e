// Package lifecycle orchestrates AI action plans from creation through
// approval and execution: idempotency keys on every mutating call,
// client-side deduplication of pending plans, drift detection before
// execution, and the bookkeeping that keeps the persisted pending set and
// the ephemeral runtime state consistent with each other.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/practiva/aigate/internal/planhash"
	"github.com/practiva/aigate/internal/retry"
	"github.com/practiva/aigate/internal/runtime"
	"github.com/practiva/aigate/internal/statestore"
	"github.com/practiva/aigate/internal/upstream"
	"github.com/practiva/aigate/pkg/models"
)

// Backend is the slice of the upstream client the manager depends on.
// Narrow on purpose so tests can fake it.
type Backend interface {
	Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error)
	CreateAction(ctx context.Context, req models.CreateActionRequest) (*models.CreateActionResponse, error)
	Approve(ctx context.Context, planID, approvalToken string) (*models.ApproveResponse, error)
	Execute(ctx context.Context, planID string, req models.ExecuteRequest) (*models.ExecutionResult, error)
	GetAction(ctx context.Context, planID string) (*models.ActionPlan, error)
	ListPending(ctx context.Context, filter upstream.PendingFilter) ([]models.ActionPlan, error)
}

// DuplicateError reports that a pending plan already covers the requested
// action type; the existing plan is surfaced instead of creating another.
type DuplicateError struct {
	Existing models.ActionPlan
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("a pending plan already covers this action (plan %s)", e.Existing.PlanID)
}

// Manager drives the plan state machine client-side. The backend owns the
// authoritative status; the manager keeps the cached copy and the two state
// pools coherent.
type Manager struct {
	backend Backend
	store   *statestore.ContextStore
	runtime *runtime.Store

	retryOpts retry.Options
	newKey    func() string
	now       func() time.Time
}

// New creates a lifecycle manager. retryOpts applies only to the flows that
// retry by default (chat, plan creation); approval and execution never
// auto-retry.
func New(backend Backend, store *statestore.ContextStore, rt *runtime.Store, retryOpts retry.Options) *Manager {
	return &Manager{
		backend:   backend,
		store:     store,
		runtime:   rt,
		retryOpts: retryOpts,
		newKey:    func() string { return uuid.New().String() },
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ── Chat ─────────────────────────────────────────────────────

// Chat sends a prompt through the retried chat path, recording both the
// user message and the outcome (assistant reply or error entry) in the
// context-scoped history. Every failure is both recorded and returned —
// never silently swallowed.
func (m *Manager) Chat(ctx context.Context, aiCtx models.AIContext, prompt string) (*models.ChatResponse, error) {
	if !aiCtx.Valid() {
		return nil, models.NewAIError(models.ErrInvalidRequest, "missing tenant or role context")
	}

	m.store.AddMessage(models.ChatMessage{
		ID:      m.newKey(),
		Role:    models.ChatRoleUser,
		Content: prompt,
	})
	m.runtime.SetTyping(true)
	defer m.runtime.SetTyping(false)

	req := models.ChatRequest{
		Prompt:         prompt,
		Context:        aiCtx,
		IdempotencyKey: m.newKey(),
		SessionID:      m.store.EnsureSession(),
	}

	var resp *models.ChatResponse
	err := retry.Do(ctx, m.retryOpts, func(ctx context.Context) error {
		var callErr error
		resp, callErr = m.backend.Chat(ctx, req)
		return callErr
	})
	if err != nil {
		m.store.AddMessage(errorMessage(m.newKey(), err))
		return nil, err
	}

	content := resp.Response
	if resp.NeedsClarification && resp.ClarificationQuestion != "" {
		content = resp.ClarificationQuestion
	}
	m.store.AddMessage(models.ChatMessage{
		ID:      m.newKey(),
		Role:    models.ChatRoleAssistant,
		Content: content,
	})
	return resp, nil
}

// ── Plan creation ────────────────────────────────────────────

// CreateOptions tunes plan creation.
type CreateOptions struct {
	// ActionType enables the client-side duplicate guard when non-empty.
	ActionType string
	// IdempotencyKey overrides the generated key. Never reuse a key across
	// logically distinct submissions.
	IdempotencyKey string
}

// CreateAction asks the backend for a plan covering the intent. A fresh
// idempotency key is generated per call unless the caller supplies one. On
// success a plan that requires approval is inserted into the pending set
// (deduplicated by plan id) and mirrored as the runtime's current plan.
func (m *Manager) CreateAction(ctx context.Context, aiCtx models.AIContext, intent string, additional map[string]interface{}, opts CreateOptions) (*models.ActionPlan, error) {
	if !aiCtx.Valid() {
		return nil, models.NewAIError(models.ErrInvalidRequest, "missing tenant or role context")
	}

	if opts.ActionType != "" {
		if existing, found := FindDuplicate(m.store.PendingActions(), opts.ActionType); found {
			log.Info().
				Str("action_type", opts.ActionType).
				Str("existing_plan", existing.PlanID).
				Msg("Duplicate submission blocked")
			return nil, &DuplicateError{Existing: existing}
		}
	}

	key := opts.IdempotencyKey
	if key == "" {
		key = m.newKey()
	}
	req := models.CreateActionRequest{
		Intent:            intent,
		AdditionalContext: additional,
		Context:           aiCtx,
		IdempotencyKey:    key,
	}

	var resp *models.CreateActionResponse
	err := retry.Do(ctx, m.retryOpts, func(ctx context.Context) error {
		var callErr error
		resp, callErr = m.backend.CreateAction(ctx, req)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	plan := resp.Plan
	if plan.RequiresApproval {
		fingerprint, fpErr := planhash.Fingerprint(plan.Steps)
		if fpErr != nil {
			log.Warn().Err(fpErr).Str("plan", plan.PlanID).Msg("Cannot fingerprint plan, drift check disabled")
		}
		m.store.AddPendingAction(*plan, fingerprint)
	}
	m.runtime.SetCurrentPlan(plan)

	log.Info().
		Str("plan", plan.PlanID).
		Int("steps", len(plan.Steps)).
		Str("risk", string(plan.OverallRiskLevel)).
		Bool("requires_approval", plan.RequiresApproval).
		Msg("Action plan created")
	return plan, nil
}

// FindDuplicate scans the pending set for a plan already covering the
// action type, matching either a step's tool name exactly or its
// description by case-insensitive substring. Pure: same inputs, same
// verdict.
//
// The description match is a best-effort heuristic and can false-positive
// on unrelated actions sharing vocabulary; the backend independently
// enforces idempotency via the submitted key.
func FindDuplicate(pending []statestore.PendingAction, actionType string) (models.ActionPlan, bool) {
	needle := strings.ToLower(actionType)
	for _, p := range pending {
		for _, step := range p.Plan.Steps {
			if step.ToolName == actionType {
				return p.Plan, true
			}
			if needle != "" && strings.Contains(strings.ToLower(step.Description), needle) {
				return p.Plan, true
			}
		}
	}
	return models.ActionPlan{}, false
}

// ── Approval ─────────────────────────────────────────────────

// Approve submits the plan's approval token. No local status mutation: the
// next pending refresh observes the authoritative state. Backend rejection
// (expired/invalid token) propagates without local changes. Never retried.
func (m *Manager) Approve(ctx context.Context, planID, approvalToken string) error {
	if _, err := m.backend.Approve(ctx, planID, approvalToken); err != nil {
		return err
	}
	log.Info().Str("plan", planID).Msg("Plan approval submitted")
	return nil
}

// ── Execution ────────────────────────────────────────────────

// Execute runs (or simulates) a plan. Before calling the backend it
// validates step parameters against their tool schemas, checks the cached
// plan for content drift, marks the executing flag, and seeds execution
// progress when the plan is the runtime's current one.
//
// On success the plan leaves the pending set strictly before runtime state
// clears, so the UI never sees "no pending action" while the persisted
// store still lists one. On failure the plan stays pending for retry or
// inspection and the error surfaces. Execution is never auto-retried; the
// backend may already have applied side effects.
func (m *Manager) Execute(ctx context.Context, planID string, mode models.ExecutionMode, approvalToken string) (*models.ExecutionResult, error) {
	plan, fingerprint := m.cachedPlan(planID)

	if plan != nil {
		if err := validateSteps(plan.Steps); err != nil {
			return nil, err
		}
		drifted, err := planhash.Drifted(plan, fingerprint)
		if err != nil {
			log.Warn().Err(err).Str("plan", planID).Msg("Drift check failed, deferring to backend")
		} else if drifted {
			return nil, models.NewAIError(models.ErrPlanDrift, "plan content changed since approval")
		}
	}

	m.runtime.SetExecuting(true)
	if current := m.runtime.CurrentPlan(); current != nil && current.PlanID == planID {
		m.runtime.SetProgress(models.NewExecutionProgress(current, m.now()))
	}

	result, err := m.backend.Execute(ctx, planID, models.ExecuteRequest{
		Mode:          mode,
		ApprovalToken: approvalToken,
	})
	if err != nil {
		// Executing flag and progress clear together; the plan stays in
		// the pending set so the user can retry or inspect it.
		m.runtime.FinishExecution(false)
		log.Warn().Err(err).Str("plan", planID).Str("mode", string(mode)).Msg("Plan execution failed")
		return nil, err
	}

	if mode == models.ModeSimulate {
		// Dry run: no status transition, plan stays pending.
		m.runtime.FinishExecution(false)
		return result, nil
	}

	// Persisted-store mutation first, runtime clear strictly after.
	m.store.RemovePendingAction(planID)
	m.runtime.FinishExecution(true)

	log.Info().
		Str("plan", planID).
		Str("status", result.Status).
		Int64("duration_ms", result.TotalExecutionTimeMs).
		Msg("Plan executed")
	return result, nil
}

// cachedPlan returns the locally cached copy of a plan, preferring the
// pending set (which carries the fingerprint) over the runtime slot.
func (m *Manager) cachedPlan(planID string) (*models.ActionPlan, string) {
	if entry, ok := m.store.GetPendingAction(planID); ok {
		plan := entry.Plan
		return &plan, entry.Fingerprint
	}
	if current := m.runtime.CurrentPlan(); current != nil && current.PlanID == planID {
		return current, ""
	}
	return nil, ""
}

// GetAction fetches the authoritative copy of a plan from the backend.
func (m *Manager) GetAction(ctx context.Context, planID string) (*models.ActionPlan, error) {
	return m.backend.GetAction(ctx, planID)
}

// ── Refresh ──────────────────────────────────────────────────

// RefreshPending replaces the local pending set with the backend's view.
func (m *Manager) RefreshPending(ctx context.Context) error {
	tenantID, partyID := m.store.Context()
	plans, err := m.backend.ListPending(ctx, upstream.PendingFilter{
		Status:   models.PlanStatusPending,
		TenantID: tenantID,
		PartyID:  partyID,
	})
	if err != nil {
		return err
	}
	m.store.SyncPendingActions(plans)
	return nil
}

// errorMessage renders a failure as a chat history entry.
func errorMessage(id string, err error) models.ChatMessage {
	msg := models.ChatMessage{
		ID:      id,
		Role:    models.ChatRoleSystem,
		Content: err.Error(),
		IsError: true,
	}
	if aiErr, ok := err.(*models.AIError); ok {
		msg.ErrorCode = aiErr.Code
		msg.Content = aiErr.Message
	}
	return msg
}
