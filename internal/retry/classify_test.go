package retry_test

import (
	"testing"

	"github.com/practiva/aigate/internal/retry"
	"github.com/practiva/aigate/pkg/models"
)

func TestClassify_ByStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		env    *models.ErrorEnvelope
		want   models.ErrorCode
	}{
		{"429 plain", 429, nil, models.ErrRateLimited},
		{"429 quota flag", 429, &models.ErrorEnvelope{Details: map[string]interface{}{"quota_exceeded": true}}, models.ErrQuotaExceeded},
		{"403 plain", 403, nil, models.ErrPermissionDenied},
		{"403 approval flag", 403, &models.ErrorEnvelope{Details: map[string]interface{}{"approval_required": true}}, models.ErrApprovalRequired},
		{"404", 404, nil, models.ErrNotFound},
		{"400", 400, nil, models.ErrInvalidRequest},
		{"409 plain", 409, nil, models.ErrPhaseBlocked},
		{"409 drift flag", 409, &models.ErrorEnvelope{Details: map[string]interface{}{"plan_drift": true}}, models.ErrPlanDrift},
		{"504", 504, nil, models.ErrInferenceTimeout},
		{"500", 500, nil, models.ErrInferenceError},
		{"503", 503, nil, models.ErrInferenceError},
		{"teapot falls back to client", 418, nil, models.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retry.Classify(tt.status, tt.env)
			if got.Code != tt.want {
				t.Errorf("Classify(%d).Code = %s, want %s", tt.status, got.Code, tt.want)
			}
		})
	}
}

func TestClassify_BackendCodeTakesPrecedence(t *testing.T) {
	env := &models.ErrorEnvelope{Code: "GUARDRAIL_VIOLATION", Message: "content blocked"}
	got := retry.Classify(500, env)
	if got.Code != models.ErrGuardrailViolation {
		t.Errorf("Code = %s, want backend-supplied GUARDRAIL_VIOLATION", got.Code)
	}
	if got.Message != "content blocked" {
		t.Errorf("Message = %q, want envelope message", got.Message)
	}
}

func TestClassify_UnknownBackendCodeIgnored(t *testing.T) {
	env := &models.ErrorEnvelope{Code: "SOMETHING_NEW"}
	if got := retry.Classify(502, env); got.Code != models.ErrInferenceError {
		t.Errorf("Code = %s, want status-based INFERENCE_ERROR", got.Code)
	}
}

func TestClassify_CarriesEnvelopeFields(t *testing.T) {
	env := &models.ErrorEnvelope{
		Message:    "slow down",
		RequestID:  "req-42",
		RetryAfter: 7,
	}
	got := retry.Classify(429, env)
	if got.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", got.RequestID)
	}
	if got.RetryAfterSec != 7 {
		t.Errorf("RetryAfterSec = %d, want 7", got.RetryAfterSec)
	}
}

func TestClassify_EmptyEnvelope(t *testing.T) {
	got := retry.Classify(500, nil)
	if got.Code != models.ErrInferenceError {
		t.Errorf("Code = %s, want INFERENCE_ERROR", got.Code)
	}
	if got.Message == "" {
		t.Error("Message empty, want HTTP status text fallback")
	}
}
