package status_test

import (
	"context"
	"testing"

	"github.com/practiva/aigate/internal/lifecycle"
	"github.com/practiva/aigate/internal/retry"
	"github.com/practiva/aigate/internal/runtime"
	"github.com/practiva/aigate/internal/statestore"
	"github.com/practiva/aigate/internal/status"
	"github.com/practiva/aigate/internal/upstream"
	"github.com/practiva/aigate/pkg/models"
)

// fakeSource returns a scripted sequence of status snapshots.
type fakeSource struct {
	responses []*models.AIStatus
	errs      []error
	calls     int
}

func (f *fakeSource) Status(ctx context.Context) (*models.AIStatus, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

// nullBackend satisfies lifecycle.Backend for a poller that never executes.
type nullBackend struct{}

func (nullBackend) Chat(context.Context, models.ChatRequest) (*models.ChatResponse, error) {
	return nil, nil
}
func (nullBackend) CreateAction(context.Context, models.CreateActionRequest) (*models.CreateActionResponse, error) {
	return nil, nil
}
func (nullBackend) Approve(context.Context, string, string) (*models.ApproveResponse, error) {
	return nil, nil
}
func (nullBackend) Execute(context.Context, string, models.ExecuteRequest) (*models.ExecutionResult, error) {
	return nil, nil
}
func (nullBackend) GetAction(context.Context, string) (*models.ActionPlan, error) {
	return nil, nil
}
func (nullBackend) ListPending(context.Context, upstream.PendingFilter) ([]models.ActionPlan, error) {
	return nil, nil
}

func newTestPoller(t *testing.T, source status.Source) (*status.Poller, *statestore.ContextStore) {
	t.Helper()
	t.Setenv("AIGATE_DATA_DIR", t.TempDir())
	store := statestore.New()
	t.Cleanup(func() { store.Close() })
	manager := lifecycle.New(nullBackend{}, store, runtime.New(), retry.NoRetry)
	return status.New(source, store, manager, 0, 0), store
}

func healthy() *models.AIStatus {
	return &models.AIStatus{Enabled: true, Available: true, Phase: models.PhaseB}
}

func TestSnapshot_LoadingUntilFirstFetch(t *testing.T) {
	p, _ := newTestPoller(t, &fakeSource{responses: []*models.AIStatus{healthy()}})

	if _, loading, _ := p.Snapshot(); !loading {
		t.Error("loading = false before any fetch")
	}

	p.RefreshStatus(context.Background())

	snapshot, loading, errored := p.Snapshot()
	if loading || errored {
		t.Errorf("(loading, errored) = (%v, %v) after a clean fetch", loading, errored)
	}
	if snapshot == nil || !snapshot.Available {
		t.Errorf("snapshot = %+v, want the fetched status", snapshot)
	}
}

func TestRefreshStatus_ErrorKeepsLastSnapshot(t *testing.T) {
	source := &fakeSource{
		responses: []*models.AIStatus{healthy(), nil},
		errs:      []error{nil, models.NewAIError(models.ErrInferenceError, "down")},
	}
	p, _ := newTestPoller(t, source)

	p.RefreshStatus(context.Background())
	p.RefreshStatus(context.Background())

	snapshot, loading, errored := p.Snapshot()
	if loading {
		t.Error("loading = true after fetches completed")
	}
	if !errored {
		t.Error("errored = false after failed poll")
	}
	// Stale-but-present beats absent.
	if snapshot == nil || !snapshot.Available {
		t.Errorf("snapshot = %+v, want previous snapshot retained", snapshot)
	}
}

func TestRefreshStatus_LastWriteWins(t *testing.T) {
	degraded := healthy()
	degraded.Available = false
	source := &fakeSource{responses: []*models.AIStatus{healthy(), degraded}}
	p, store := newTestPoller(t, source)

	p.RefreshStatus(context.Background())
	p.RefreshStatus(context.Background())

	if got := store.LastStatus(); got == nil || got.Available {
		t.Errorf("LastStatus() = %+v, want the later degraded snapshot", got)
	}
}
