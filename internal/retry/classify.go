// Package retry maps upstream failures onto the closed AIError taxonomy and
// drives bounded exponential backoff for the retryable classes.
package retry

import (
	"net/http"

	"github.com/practiva/aigate/pkg/models"
)

// Detail flags the backend sets inside the error envelope to disambiguate
// statuses that map to more than one code.
const (
	detailQuotaExceeded    = "quota_exceeded"
	detailApprovalRequired = "approval_required"
	detailPlanDrift        = "plan_drift"
)

// Classify converts a non-2xx upstream response into an AIError. A known
// backend-supplied code takes precedence; otherwise classification falls
// back to the HTTP status. The mapping is total: every input produces a
// code from the closed set.
func Classify(statusCode int, env *models.ErrorEnvelope) *models.AIError {
	if env == nil {
		env = &models.ErrorEnvelope{}
	}

	code := models.ErrorCode(env.Code)
	if !models.KnownErrorCode(code) {
		code = classifyByStatus(statusCode, env)
	}

	message := env.Message
	if message == "" {
		message = http.StatusText(statusCode)
		if message == "" {
			message = "AI request failed"
		}
	}

	return &models.AIError{
		Code:          code,
		Message:       message,
		RequestID:     env.RequestID,
		RetryAfterSec: env.RetryAfter,
		Details:       env.Details,
	}
}

// classifyByStatus maps an HTTP status to an error code, consulting detail
// flags where one status covers two codes.
func classifyByStatus(statusCode int, env *models.ErrorEnvelope) models.ErrorCode {
	switch statusCode {
	case http.StatusTooManyRequests:
		if detailFlag(env, detailQuotaExceeded) {
			return models.ErrQuotaExceeded
		}
		return models.ErrRateLimited
	case http.StatusForbidden:
		if detailFlag(env, detailApprovalRequired) {
			return models.ErrApprovalRequired
		}
		return models.ErrPermissionDenied
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusBadRequest:
		return models.ErrInvalidRequest
	case http.StatusConflict:
		if detailFlag(env, detailPlanDrift) {
			return models.ErrPlanDrift
		}
		return models.ErrPhaseBlocked
	case http.StatusGatewayTimeout:
		return models.ErrInferenceTimeout
	}
	if statusCode >= 500 {
		return models.ErrInferenceError
	}
	// Remaining 4xx (and anything else non-2xx) is a client-side problem.
	return models.ErrInvalidRequest
}

func detailFlag(env *models.ErrorEnvelope, key string) bool {
	if env.Details == nil {
		return false
	}
	v, ok := env.Details[key].(bool)
	return ok && v
}
