package upstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/practiva/aigate/internal/upstream"
	"github.com/practiva/aigate/pkg/models"
)

func TestChat_RoundTrip(t *testing.T) {
	var gotAuth string
	var gotReq models.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/ai/chat" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(models.ChatResponse{RequestID: "req-1", Response: "hi"})
	}))
	defer srv.Close()

	c := upstream.New(srv.URL, "secret-token", time.Second)
	resp, err := c.Chat(context.Background(), models.ChatRequest{Prompt: "hello", IdempotencyKey: "k1"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if resp.Response != "hi" {
		t.Errorf("Response = %q", resp.Response)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.IdempotencyKey != "k1" {
		t.Errorf("IdempotencyKey = %q, want k1", gotReq.IdempotencyKey)
	}
}

func TestErrorEnvelope_Classified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(models.ErrorEnvelope{
			Message:    "slow down",
			RequestID:  "req-9",
			RetryAfter: 12,
		})
	}))
	defer srv.Close()

	c := upstream.New(srv.URL, "", time.Second)
	_, err := c.Status(context.Background())

	var aiErr *models.AIError
	if !errors.As(err, &aiErr) {
		t.Fatalf("error = %v (%T), want *AIError", err, err)
	}
	if aiErr.Code != models.ErrRateLimited {
		t.Errorf("Code = %s, want RATE_LIMITED", aiErr.Code)
	}
	if aiErr.RequestID != "req-9" || aiErr.RetryAfterSec != 12 {
		t.Errorf("envelope fields lost: %+v", aiErr)
	}
}

func TestNonEnvelopeErrorBody_StatusClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>502 Bad Gateway</html>"))
	}))
	defer srv.Close()

	c := upstream.New(srv.URL, "", time.Second)
	_, err := c.Status(context.Background())

	var aiErr *models.AIError
	if !errors.As(err, &aiErr) || aiErr.Code != models.ErrInferenceError {
		t.Fatalf("error = %v, want INFERENCE_ERROR from status classification", err)
	}
}

func TestTransportFailure_IsInferenceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := upstream.New(srv.URL, "", time.Second)
	_, err := c.Status(context.Background())

	var aiErr *models.AIError
	if !errors.As(err, &aiErr) || aiErr.Code != models.ErrInferenceError {
		t.Fatalf("error = %v, want INFERENCE_ERROR for a dead backend", err)
	}
}

func TestContextCancellation_Propagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := upstream.New(srv.URL, "", time.Second)
	_, err := c.Status(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestCreateAction_MissingPlanRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.CreateActionResponse{RequestID: "req-1"})
	}))
	defer srv.Close()

	c := upstream.New(srv.URL, "", time.Second)
	_, err := c.CreateAction(context.Background(), models.CreateActionRequest{Intent: "x"})

	var aiErr *models.AIError
	if !errors.As(err, &aiErr) || aiErr.Code != models.ErrInferenceError {
		t.Fatalf("error = %v, want INFERENCE_ERROR for a planless response", err)
	}
}

func TestListPending_FilterEncoded(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode([]models.ActionPlan{{PlanID: "p1"}})
	}))
	defer srv.Close()

	c := upstream.New(srv.URL, "", time.Second)
	plans, err := c.ListPending(context.Background(), upstream.PendingFilter{
		Status:   models.PlanStatusPending,
		TenantID: "tenant-1",
		PartyID:  "party-1",
	})
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(plans) != 1 || plans[0].PlanID != "p1" {
		t.Errorf("plans = %+v", plans)
	}
	for key, want := range map[string]string{"status": "pending", "tenant_id": "tenant-1", "party_id": "party-1"} {
		if got := gotQuery[key]; len(got) != 1 || got[0] != want {
			t.Errorf("query[%s] = %v, want %s", key, got, want)
		}
	}
}
