// Package upstream is the HTTP client for the remote AI inference/action
// service. It owns request/response encoding and converts every non-2xx
// reply into a classified AIError; no untyped failure escapes this boundary.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/practiva/aigate/internal/retry"
	"github.com/practiva/aigate/pkg/models"
)

// Client talks to the AI service.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates an upstream client. token may be empty for unauthenticated
// deployments (the backend re-validates everything regardless).
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// ── Endpoints ────────────────────────────────────────────────

// Status fetches the current AIStatus snapshot.
func (c *Client) Status(ctx context.Context) (*models.AIStatus, error) {
	var status models.AIStatus
	if err := c.do(ctx, http.MethodGet, "/ai/status", nil, &status); err != nil {
		return nil, err
	}
	status.FetchedAt = time.Now().UTC()
	return &status, nil
}

// Chat sends a prompt through the AI chat endpoint.
func (c *Client) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	var resp models.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/ai/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateAction asks the backend to propose a plan for an intent.
func (c *Client) CreateAction(ctx context.Context, req models.CreateActionRequest) (*models.CreateActionResponse, error) {
	var resp models.CreateActionResponse
	if err := c.do(ctx, http.MethodPost, "/ai/actions", req, &resp); err != nil {
		return nil, err
	}
	if resp.Plan == nil {
		return nil, models.NewAIError(models.ErrInferenceError, "backend returned no plan")
	}
	return &resp, nil
}

// Approve submits the approval token for a plan.
func (c *Client) Approve(ctx context.Context, planID, approvalToken string) (*models.ApproveResponse, error) {
	var resp models.ApproveResponse
	path := "/ai/actions/" + url.PathEscape(planID) + "/approve"
	if err := c.do(ctx, http.MethodPost, path, models.ApproveRequest{ApprovalToken: approvalToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Execute runs (or simulates) an approved plan.
func (c *Client) Execute(ctx context.Context, planID string, req models.ExecuteRequest) (*models.ExecutionResult, error) {
	var result models.ExecutionResult
	path := "/ai/actions/" + url.PathEscape(planID) + "/execute"
	if err := c.do(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAction fetches the authoritative copy of a single plan.
func (c *Client) GetAction(ctx context.Context, planID string) (*models.ActionPlan, error) {
	var plan models.ActionPlan
	path := "/ai/actions/" + url.PathEscape(planID)
	if err := c.do(ctx, http.MethodGet, path, nil, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// PendingFilter narrows a pending-actions listing.
type PendingFilter struct {
	Status   models.PlanStatus
	TenantID string
	PartyID  string
}

// ListPending lists plans awaiting approval or execution.
func (c *Client) ListPending(ctx context.Context, filter PendingFilter) ([]models.ActionPlan, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.TenantID != "" {
		q.Set("tenant_id", filter.TenantID)
	}
	if filter.PartyID != "" {
		q.Set("party_id", filter.PartyID)
	}
	path := "/ai/actions/pending"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var plans []models.ActionPlan
	if err := c.do(ctx, http.MethodGet, path, nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// ── HTTP plumbing ────────────────────────────────────────────

// do sends one request and decodes the response into out. Non-2xx replies
// are decoded as an error envelope and classified.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Transport failures are indistinguishable from a down backend.
		return &models.AIError{Code: models.ErrInferenceError, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.AIError{Code: models.ErrInferenceError, Message: "malformed backend response: " + err.Error()}
	}
	return nil
}

// decodeError reads the error envelope, if any, and classifies.
func (c *Client) decodeError(resp *http.Response) error {
	var env models.ErrorEnvelope
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
			log.Debug().Int("status", resp.StatusCode).Msg("Upstream error body is not an envelope")
		}
	}
	return retry.Classify(resp.StatusCode, &env)
}
