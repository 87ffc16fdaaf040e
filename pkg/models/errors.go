package models

import "fmt"

// ── Error Taxonomy ───────────────────────────────────────────

// ErrorCode is the closed set of AI failure codes. Codes group into three
// families: client errors (4xx — never retried), rate/quota (429), and
// server errors (5xx — retried with backoff).
type ErrorCode string

const (
	// Client errors (4xx family).
	ErrAIDisabled         ErrorCode = "AI_DISABLED"
	ErrPhaseBlocked       ErrorCode = "PHASE_BLOCKED"
	ErrPermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrApprovalRequired   ErrorCode = "APPROVAL_REQUIRED"
	ErrApprovalExpired    ErrorCode = "APPROVAL_EXPIRED"
	ErrApprovalInvalid    ErrorCode = "APPROVAL_INVALID"
	ErrPlanDrift          ErrorCode = "PLAN_DRIFT"
	ErrTenantViolation    ErrorCode = "TENANT_VIOLATION"
	ErrGuardrailViolation ErrorCode = "GUARDRAIL_VIOLATION"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"

	// Rate/quota (429 family).
	ErrRateLimited   ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// Server errors (5xx family).
	ErrInferenceError   ErrorCode = "INFERENCE_ERROR"
	ErrInferenceTimeout ErrorCode = "INFERENCE_TIMEOUT"
)

// knownErrorCodes is the closed set; backend-supplied codes outside it are
// ignored in favor of HTTP-status classification.
var knownErrorCodes = map[ErrorCode]bool{
	ErrAIDisabled: true, ErrPhaseBlocked: true, ErrPermissionDenied: true,
	ErrApprovalRequired: true, ErrApprovalExpired: true, ErrApprovalInvalid: true,
	ErrPlanDrift: true, ErrTenantViolation: true, ErrGuardrailViolation: true,
	ErrNotFound: true, ErrInvalidRequest: true,
	ErrRateLimited: true, ErrQuotaExceeded: true,
	ErrInferenceError: true, ErrInferenceTimeout: true,
}

// KnownErrorCode reports whether code is part of the closed taxonomy.
func KnownErrorCode(code ErrorCode) bool {
	return knownErrorCodes[code]
}

// AIError is the structured failure surfaced by the governance layer.
// It is purely informational once raised and never mutated.
type AIError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	// RetryAfterSec is the backend's hint, in seconds, for when a retry
	// may succeed. Zero means no hint.
	RetryAfterSec int                    `json:"retry_after,omitempty"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request %s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAIError builds an AIError with just a code and message.
func NewAIError(code ErrorCode, message string) *AIError {
	return &AIError{Code: code, Message: message}
}

// ErrorEnvelope is the upstream's non-2xx response body. An absent Code
// forces HTTP-status-based classification.
type ErrorEnvelope struct {
	Code       string                 `json:"code,omitempty"`
	Message    string                 `json:"message,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	RetryAfter int                    `json:"retry_after,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}
