package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/practiva/aigate/internal/api/middleware"
	"github.com/practiva/aigate/internal/contextsync"
	"github.com/practiva/aigate/internal/runtime"
	"github.com/practiva/aigate/internal/statestore"
	"github.com/practiva/aigate/pkg/models"
)

func newIdentityHarness(t *testing.T) (func(http.Handler) http.Handler, *statestore.ContextStore) {
	t.Helper()
	t.Setenv("AIGATE_DATA_DIR", t.TempDir())
	store := statestore.New()
	t.Cleanup(func() { store.Close() })
	observer := contextsync.New(runtime.New(), store)
	return middleware.Identity(observer), store
}

func TestIdentity_HeadersBecomeContext(t *testing.T) {
	mw, _ := newIdentityHarness(t)

	var got models.AIContext
	var authed bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetAIContext(r.Context())
		authed = middleware.IsAuthenticated(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ai/status", nil)
	req.Header.Set("X-Tenant-Id", "tenant-1")
	req.Header.Set("X-Role", "manager")
	req.Header.Set("X-Profile-Id", "prof-9")
	req.Header.Set("X-Party-Id", "party-3")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !authed {
		t.Error("IsAuthenticated = false, want true")
	}
	want := models.AIContext{
		TenantID:       "tenant-1",
		PartyID:        "party-3",
		Role:           models.RoleManager,
		ProfileID:      "prof-9",
		ContextVersion: models.ContextVersion,
	}
	if got != want {
		t.Errorf("AIContext = %+v, want %+v", got, want)
	}
}

func TestIdentity_PartyFallsBackToQueryParams(t *testing.T) {
	mw, _ := newIdentityHarness(t)

	var got models.AIContext
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = middleware.GetAIContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ai/status?patient_id=pat-7", nil)
	req.Header.Set("X-Tenant-Id", "tenant-1")
	req.Header.Set("X-Role", "owner")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got.PartyID != "pat-7" {
		t.Errorf("PartyID = %q, want pat-7 from query fallback", got.PartyID)
	}
}

func TestIdentity_MissingIdentityNotAuthenticated(t *testing.T) {
	mw, _ := newIdentityHarness(t)

	var authed bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authed = middleware.IsAuthenticated(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if authed {
		t.Error("IsAuthenticated = true for identity-less request")
	}
}

// Context switch observed mid-flight wipes the persisted pool before the
// handler runs.
func TestIdentity_ContextSwitchWipesState(t *testing.T) {
	mw, store := newIdentityHarness(t)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	first := httptest.NewRequest(http.MethodGet, "/api/v1/ai/status", nil)
	first.Header.Set("X-Tenant-Id", "tenant-1")
	first.Header.Set("X-Role", "owner")
	handler.ServeHTTP(httptest.NewRecorder(), first)
	store.AddMessage(models.ChatMessage{ID: "m1", Role: models.ChatRoleUser})

	second := httptest.NewRequest(http.MethodGet, "/api/v1/ai/status", nil)
	second.Header.Set("X-Tenant-Id", "tenant-2")
	second.Header.Set("X-Role", "owner")
	handler.ServeHTTP(httptest.NewRecorder(), second)

	if got := len(store.Messages()); got != 0 {
		t.Errorf("messages = %d, want 0 after tenant switch", got)
	}
}
