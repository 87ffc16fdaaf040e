// Package handlers implements the HTTP handlers of the local governance
// facade. Every AI operation is gated by the availability resolver before
// the lifecycle manager touches the backend; blocked verdicts come back as
// 403 with the reason code and its fixed message.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/practiva/aigate/internal/api/middleware"
	"github.com/practiva/aigate/internal/availability"
	"github.com/practiva/aigate/internal/lifecycle"
	"github.com/practiva/aigate/internal/registry"
	"github.com/practiva/aigate/internal/runtime"
	"github.com/practiva/aigate/internal/statestore"
	"github.com/practiva/aigate/internal/status"
	"github.com/practiva/aigate/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Resolver *availability.Resolver
	Registry *registry.Registry
	Manager  *lifecycle.Manager
	Poller   *status.Poller
	Store    *statestore.ContextStore
	Runtime  *runtime.Store
}

// New creates a Handlers instance.
func New(res *availability.Resolver, reg *registry.Registry, mgr *lifecycle.Manager, poller *status.Poller, store *statestore.ContextStore, rt *runtime.Store) *Handlers {
	return &Handlers{
		Resolver: res,
		Registry: reg,
		Manager:  mgr,
		Poller:   poller,
		Store:    store,
		Runtime:  rt,
	}
}

// ── Status & availability ────────────────────────────────────

// GetStatus returns the last observed status snapshot plus poll state.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, loading, errored := h.Poller.Snapshot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  snapshot,
		"loading": loading,
		"errored": errored,
	})
}

// CheckAvailability resolves a capability verdict for the caller.
func (h *Handlers) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	capability := models.Capability(r.URL.Query().Get("capability"))
	verdict := h.resolve(r, capability, r.URL.Query().Get("require_party") == "true")
	respondJSON(w, http.StatusOK, verdict)
}

// resolve builds the resolver input from the request and poll state.
func (h *Handlers) resolve(r *http.Request, capability models.Capability, requireParty bool) availability.Verdict {
	snapshot, loading, errored := h.Poller.Snapshot()
	aiCtx := middleware.GetAIContext(r.Context())
	return h.Resolver.Resolve(availability.Input{
		Status:              snapshot,
		Loading:             loading,
		Errored:             errored,
		Authenticated:       middleware.IsAuthenticated(r.Context()),
		Capability:          capability,
		Role:                aiCtx.Role,
		HasPartyContext:     aiCtx.PartyID != "",
		RequirePartyContext: requireParty,
	})
}

// gate resolves a capability and writes the blocked verdict if any.
// Returns true when the request may proceed.
func (h *Handlers) gate(w http.ResponseWriter, r *http.Request, capability models.Capability) bool {
	verdict := h.resolve(r, capability, false)
	if !verdict.Available {
		respondJSON(w, http.StatusForbidden, verdict)
		return false
	}
	return true
}

// ── Chat ─────────────────────────────────────────────────────

// Chat sends a prompt through the governed, retried chat path.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r, models.CapabilityChat) {
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	resp, err := h.Manager.Chat(r.Context(), middleware.GetAIContext(r.Context()), req.Prompt)
	if err != nil {
		respondAIError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// ChatHistory returns the context-scoped chat history, oldest first.
func (h *Handlers) ChatHistory(w http.ResponseWriter, r *http.Request) {
	messages := h.Store.Messages()
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	respondJSON(w, http.StatusOK, messages)
}

// ── Actions ──────────────────────────────────────────────────

// CreateAction asks for a plan covering an intent.
func (h *Handlers) CreateAction(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r, models.CapabilityActions) {
		return
	}

	var req struct {
		Intent            string                 `json:"intent"`
		ActionType        string                 `json:"action_type,omitempty"`
		AdditionalContext map[string]interface{} `json:"additional_context,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Intent == "" {
		respondError(w, http.StatusBadRequest, "intent is required")
		return
	}

	plan, err := h.Manager.CreateAction(r.Context(), middleware.GetAIContext(r.Context()), req.Intent, req.AdditionalContext, lifecycle.CreateOptions{
		ActionType: req.ActionType,
	})
	if err != nil {
		var dup *lifecycle.DuplicateError
		if errors.As(err, &dup) {
			respondJSON(w, http.StatusConflict, map[string]interface{}{
				"error":         dup.Error(),
				"existing_plan": dup.Existing,
			})
			return
		}
		respondAIError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, plan)
}

// ListPending returns the locally tracked pending actions.
func (h *Handlers) ListPending(w http.ResponseWriter, r *http.Request) {
	pending := h.Store.PendingActions()
	plans := make([]models.ActionPlan, 0, len(pending))
	for _, p := range pending {
		plans = append(plans, p.Plan)
	}
	respondJSON(w, http.StatusOK, plans)
}

// GetAction fetches the authoritative copy of a plan.
func (h *Handlers) GetAction(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	plan, err := h.Manager.GetAction(r.Context(), planID)
	if err != nil {
		respondAIError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

// ApproveAction submits the approval token for a plan.
func (h *Handlers) ApproveAction(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r, models.CapabilityActions) {
		return
	}

	var req models.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ApprovalToken == "" {
		respondError(w, http.StatusBadRequest, "approval_token is required")
		return
	}

	planID := chi.URLParam(r, "planID")
	if err := h.Manager.Approve(r.Context(), planID, req.ApprovalToken); err != nil {
		respondAIError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "submitted", "plan_id": planID})
}

// ExecuteAction runs (or simulates) a plan.
func (h *Handlers) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	if !h.gate(w, r, models.CapabilityActions) {
		return
	}

	var req models.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = models.ModeSimulate
	}
	if req.Mode != models.ModeSimulate && req.Mode != models.ModeExecute {
		respondError(w, http.StatusBadRequest, "mode must be simulate or execute")
		return
	}

	planID := chi.URLParam(r, "planID")
	result, err := h.Manager.Execute(r.Context(), planID, req.Mode, req.ApprovalToken)
	if err != nil {
		respondAIError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Progress returns live execution progress for a plan, if it is the one
// currently executing.
func (h *Handlers) Progress(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"executing": h.Runtime.Executing(),
		"typing":    h.Runtime.Typing(),
		"progress":  h.Runtime.Progress(planID),
	})
}

// ── Refresh & session ────────────────────────────────────────

// Refresh forces an immediate status and pending-set refresh. It feeds the
// same last-write-wins snapshots as the periodic polls.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	h.Poller.RefreshStatus(r.Context())
	h.Poller.RefreshPending(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// Logout wipes both state pools, context pair included.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Runtime.ClearRuntime()
	h.Store.ClearAll()
	log.Info().Msg("Session cleared")
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ── Response helpers ─────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondAIError writes a classified AIError with its matching HTTP status,
// or a bare 500 for anything else.
func respondAIError(w http.ResponseWriter, err error) {
	var aiErr *models.AIError
	if !errors.As(err, &aiErr) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, httpStatusFor(aiErr.Code), aiErr)
}

// httpStatusFor maps error codes back to facade HTTP statuses, mirroring
// the classification direction.
func httpStatusFor(code models.ErrorCode) int {
	switch code {
	case models.ErrRateLimited, models.ErrQuotaExceeded:
		return http.StatusTooManyRequests
	case models.ErrPermissionDenied, models.ErrApprovalRequired,
		models.ErrApprovalExpired, models.ErrApprovalInvalid,
		models.ErrTenantViolation, models.ErrGuardrailViolation,
		models.ErrAIDisabled:
		return http.StatusForbidden
	case models.ErrNotFound:
		return http.StatusNotFound
	case models.ErrInvalidRequest:
		return http.StatusBadRequest
	case models.ErrPhaseBlocked, models.ErrPlanDrift:
		return http.StatusConflict
	case models.ErrInferenceTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
