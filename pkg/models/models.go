// Package models defines the shared data model for the AI governance gateway:
// service status snapshots, capability configuration, request context, action
// plans and their lifecycle, execution progress, and the structured error
// taxonomy.
//
// Everything here is plain data. Snapshots (AIStatus) are replaced wholesale
// on each poll and never partially mutated; errors are immutable once raised.
package models

import "time"

// ── Rollout Phase ────────────────────────────────────────────

// Phase is the rollout gate controlling what AI output may do.
// A = read-only suggestion, B = proposal requiring approval, C = executable.
// Phases are totally ordered: A < B < C.
type Phase string

const (
	PhaseA Phase = "A"
	PhaseB Phase = "B"
	PhaseC Phase = "C"
)

// phaseOrdinals gives the total order over phases. Unknown phases rank
// below A so a malformed snapshot never unlocks a capability.
var phaseOrdinals = map[Phase]int{
	PhaseA: 1,
	PhaseB: 2,
	PhaseC: 3,
}

// Ordinal returns the phase's position in the total order (A=1, B=2, C=3).
// Unknown phases return 0.
func (p Phase) Ordinal() int {
	return phaseOrdinals[p]
}

// AtLeast reports whether p grants at least the capability of min.
func (p Phase) AtLeast(min Phase) bool {
	return p.Ordinal() >= min.Ordinal()
}

// ── Roles ────────────────────────────────────────────────────

// Role is the caller's role within the tenant, carried on every request.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleManager      Role = "manager"
	RolePractitioner Role = "practitioner"
	RoleReceptionist Role = "receptionist"
)

// ── Capabilities ─────────────────────────────────────────────

// Capability names a gated AI feature.
type Capability string

const (
	CapabilityChat    Capability = "chat"
	CapabilityActions Capability = "actions"
	CapabilityOCR     Capability = "ocr"
)

// CapabilityConfig is the static registry entry for one capability.
// Loaded once at startup and never mutated at runtime.
type CapabilityConfig struct {
	Name             Capability `json:"name" yaml:"name"`
	MinPhase         Phase      `json:"min_phase" yaml:"min_phase"`
	RequiresApproval bool       `json:"requires_approval" yaml:"requires_approval"`
	Retryable        bool       `json:"retryable" yaml:"retryable"`
	AllowedRoles     []Role     `json:"allowed_roles" yaml:"allowed_roles"`
}

// RoleAllowed reports whether the role appears in the allowed set.
func (c CapabilityConfig) RoleAllowed(role Role) bool {
	for _, r := range c.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ── Service Status ───────────────────────────────────────────

// AIStatus is a snapshot of AI service health, polled periodically.
// It is immutable: each poll replaces the whole snapshot (last write wins).
type AIStatus struct {
	Enabled    bool       `json:"enabled"`
	Available  bool       `json:"available"`
	Phase      Phase      `json:"phase"`
	KillSwitch KillSwitch `json:"kill_switch"`
	Usage      Usage      `json:"usage"`
	Model      ModelInfo  `json:"model"`
	FetchedAt  time.Time  `json:"fetched_at,omitempty"`
}

// KillSwitch is the operator-controlled emergency disable state.
type KillSwitch struct {
	GlobalActive         bool     `json:"global_active"`
	TenantActive         bool     `json:"tenant_active"`
	DisabledCapabilities []string `json:"disabled_capabilities,omitempty"`
	Reason               string   `json:"reason,omitempty"`
}

// Active reports whether either the global or tenant switch is thrown.
func (k KillSwitch) Active() bool {
	return k.GlobalActive || k.TenantActive
}

// CapabilityDisabled reports whether a specific capability is switched off.
func (k KillSwitch) CapabilityDisabled(cap Capability) bool {
	for _, name := range k.DisabledCapabilities {
		if name == string(cap) {
			return true
		}
	}
	return false
}

// Usage tracks today's consumption against quota.
type Usage struct {
	RequestsToday    int           `json:"requests_today"`
	Quotas           []QuotaRecord `json:"quotas,omitempty"`
	AnyQuotaExceeded bool          `json:"any_quota_exceeded"`
}

// QuotaRecord is a per-capability quota counter.
type QuotaRecord struct {
	Capability Capability `json:"capability"`
	Used       int        `json:"used"`
	Limit      int        `json:"limit"`
	Exceeded   bool       `json:"exceeded"`
}

// ModelInfo identifies the model currently serving requests.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Healthy  bool   `json:"healthy"`
}

// ── Request Context ──────────────────────────────────────────

// ContextVersion tags the AIContext shape so the backend can reject
// stale clients after a contract change.
const ContextVersion = "2024-11"

// AIContext is the tenant/party/role/profile tuple attached to every
// outbound AI request. Constructed fresh per operation from ambient
// auth/navigation state; never persisted as a credential. PartyID may be
// empty for tenant-level actions.
type AIContext struct {
	TenantID       string `json:"tenant_id"`
	PartyID        string `json:"party_id,omitempty"`
	Role           Role   `json:"role"`
	ProfileID      string `json:"profile_id,omitempty"`
	ContextVersion string `json:"context_version"`
}

// Valid reports whether the context carries the minimum required fields.
func (c AIContext) Valid() bool {
	return c.TenantID != "" && c.Role != ""
}

// ── Chat ─────────────────────────────────────────────────────

// ChatRole distinguishes who produced a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatMessage is one entry in the per-context chat history.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	IsError   bool      `json:"is_error,omitempty"`
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is the body of the upstream chat endpoint.
type ChatRequest struct {
	Prompt         string    `json:"prompt"`
	Context        AIContext `json:"context"`
	IdempotencyKey string    `json:"idempotencyKey"`
	SessionID      string    `json:"sessionId,omitempty"`
}

// ChatResponse is the upstream chat endpoint's reply.
type ChatResponse struct {
	RequestID             string `json:"requestId"`
	Status                string `json:"status"`
	Intent                string `json:"intent,omitempty"`
	Response              string `json:"response,omitempty"`
	NeedsClarification    bool   `json:"needsClarification"`
	ClarificationQuestion string `json:"clarificationQuestion,omitempty"`
	ProcessingTimeMs      int64  `json:"processingTimeMs"`
	PIIDetected           bool   `json:"piiDetected"`
	PHIDetected           bool   `json:"phiDetected"`
}

// ── Action Plans ─────────────────────────────────────────────

// PlanStatus is the action plan lifecycle state. The backend owns
// transitions; the client holds a cached copy.
//
//	pending → approved → executing → completed
//	pending → rejected
//	executing → failed
//	pending/approved → expired
type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"
	PlanStatusApproved  PlanStatus = "approved"
	PlanStatusRejected  PlanStatus = "rejected"
	PlanStatusExecuting PlanStatus = "executing"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
	PlanStatusExpired   PlanStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s PlanStatus) Terminal() bool {
	switch s {
	case PlanStatusCompleted, PlanStatusFailed, PlanStatusRejected, PlanStatusExpired:
		return true
	}
	return false
}

// RiskLevel grades how consequential a step (or plan) is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var riskOrdinals = map[RiskLevel]int{
	RiskLow:    1,
	RiskMedium: 2,
	RiskHigh:   3,
}

// MaxRisk returns the higher of two risk levels.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if riskOrdinals[b] > riskOrdinals[a] {
		return b
	}
	return a
}

// ActionStep is one step of a multi-step plan.
type ActionStep struct {
	StepNumber        int                    `json:"step_number"`
	ToolName          string                 `json:"tool_name"`
	ToolSchemaVersion string                 `json:"tool_schema_version,omitempty"`
	ToolSchema        map[string]interface{} `json:"tool_schema,omitempty"`
	Parameters        map[string]interface{} `json:"parameters,omitempty"`
	Description       string                 `json:"description"`
	RiskLevel         RiskLevel              `json:"risk_level"`
	RequiresApproval  bool                   `json:"requires_approval"`
}

// ActionPlan is a backend-issued multi-step proposal. PlanHash is the
// backend's content fingerprint; a mismatch between approval and execution
// time is an authoritative drift signal, never silently resolvable.
type ActionPlan struct {
	PlanID           string       `json:"plan_id"`
	Status           PlanStatus   `json:"status"`
	Steps            []ActionStep `json:"steps"`
	OverallRiskLevel RiskLevel    `json:"overall_risk_level"`
	RequiresApproval bool         `json:"requires_approval"`
	PlanHash         string       `json:"plan_hash"`
	ApprovalToken    string       `json:"approval_token,omitempty"`
	TenantID         string       `json:"tenant_id,omitempty"`
	PartyID          string       `json:"party_id,omitempty"`
	Summary          string       `json:"summary,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	ExpiresAt        time.Time    `json:"expires_at,omitempty"`
}

// CreateActionRequest is the body of the upstream action-creation endpoint.
type CreateActionRequest struct {
	Intent            string                 `json:"intent"`
	AdditionalContext map[string]interface{} `json:"additional_context,omitempty"`
	Context           AIContext              `json:"context"`
	IdempotencyKey    string                 `json:"idempotencyKey"`
}

// CreateActionResponse wraps the plan issued for an intent.
type CreateActionResponse struct {
	Plan      *ActionPlan `json:"plan"`
	RequestID string      `json:"requestId"`
}

// ApproveRequest is the body of the approval endpoint.
type ApproveRequest struct {
	ApprovalToken string `json:"approval_token"`
}

// ApproveResponse acknowledges an approval.
type ApproveResponse struct {
	Status   string `json:"status"`
	ActionID string `json:"actionId"`
}

// ── Execution ────────────────────────────────────────────────

// ExecutionMode selects a dry run or a real execution.
type ExecutionMode string

const (
	ModeSimulate ExecutionMode = "simulate"
	ModeExecute  ExecutionMode = "execute"
)

// ExecuteRequest is the body of the execution endpoint.
type ExecuteRequest struct {
	Mode          ExecutionMode `json:"mode"`
	ApprovalToken string        `json:"approval_token,omitempty"`
}

// StepResult is the backend's record of one executed step.
type StepResult struct {
	StepNumber int                    `json:"step_number"`
	ToolName   string                 `json:"tool_name"`
	Status     string                 `json:"status"`
	Output     map[string]interface{} `json:"output,omitempty"`
	Error      string                 `json:"error,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// ExecutionResult is the upstream execution endpoint's reply.
type ExecutionResult struct {
	ActionID             string        `json:"actionId"`
	RequestID            string        `json:"requestId"`
	Status               string        `json:"status"`
	Mode                 ExecutionMode `json:"mode"`
	StepResults          []StepResult  `json:"stepResults"`
	TotalExecutionTimeMs int64         `json:"totalExecutionTimeMs"`
	ErrorMessage         string        `json:"errorMessage,omitempty"`
}

// ── Execution Progress (client-synthesized) ──────────────────

// StepProgressStatus is the client-side view of one step's progress.
type StepProgressStatus string

const (
	StepPending StepProgressStatus = "pending"
	StepRunning StepProgressStatus = "running"
	StepSuccess StepProgressStatus = "success"
	StepFailed  StepProgressStatus = "failed"
	StepSkipped StepProgressStatus = "skipped"
)

// ProgressStatus is the overall client-side execution status.
type ProgressStatus string

const (
	ProgressInitializing ProgressStatus = "initializing"
	ProgressRunning      ProgressStatus = "running"
	ProgressPaused       ProgressStatus = "paused"
	ProgressCompleted    ProgressStatus = "completed"
	ProgressFailed       ProgressStatus = "failed"
	ProgressCancelled    ProgressStatus = "cancelled"
)

// StepProgress tracks one step of an in-flight execution.
type StepProgress struct {
	StepNumber int                `json:"step_number"`
	ToolName   string             `json:"tool_name"`
	Status     StepProgressStatus `json:"status"`
}

// ExecutionProgress is the ephemeral, client-synthesized view of a single
// in-flight execution. It exists only while that plan executes and is
// discarded on terminal outcome or context change. ActionID must always
// equal the plan currently marked executing.
type ExecutionProgress struct {
	ActionID    string         `json:"action_id"`
	CurrentStep int            `json:"current_step"`
	TotalSteps  int            `json:"total_steps"`
	Steps       []StepProgress `json:"steps"`
	Status      ProgressStatus `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
}

// NewExecutionProgress seeds progress for a plan about to execute: all
// steps pending, overall status initializing.
func NewExecutionProgress(plan *ActionPlan, now time.Time) *ExecutionProgress {
	steps := make([]StepProgress, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		steps = append(steps, StepProgress{
			StepNumber: s.StepNumber,
			ToolName:   s.ToolName,
			Status:     StepPending,
		})
	}
	return &ExecutionProgress{
		ActionID:    plan.PlanID,
		CurrentStep: 0,
		TotalSteps:  len(plan.Steps),
		Steps:       steps,
		Status:      ProgressInitializing,
		StartedAt:   now,
	}
}
