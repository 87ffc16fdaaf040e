package registry_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/practiva/aigate/internal/registry"
	"github.com/practiva/aigate/pkg/models"
)

func TestLoad_EmbeddedDefaults(t *testing.T) {
	r, err := registry.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	chat, ok := r.Lookup(models.CapabilityChat)
	if !ok {
		t.Fatal("chat capability not registered")
	}
	if chat.MinPhase != models.PhaseA {
		t.Errorf("chat.MinPhase = %s, want A", chat.MinPhase)
	}
	if !chat.Retryable {
		t.Error("chat.Retryable = false, want true")
	}

	actions, ok := r.Lookup(models.CapabilityActions)
	if !ok {
		t.Fatal("actions capability not registered")
	}
	if actions.MinPhase != models.PhaseB {
		t.Errorf("actions.MinPhase = %s, want B", actions.MinPhase)
	}
	if !actions.RequiresApproval {
		t.Error("actions.RequiresApproval = false, want true")
	}

	if _, ok := r.Lookup(models.CapabilityOCR); !ok {
		t.Error("ocr capability not registered")
	}
	if got := len(r.Capabilities()); got != 3 {
		t.Errorf("len(Capabilities()) = %d, want 3", got)
	}
}

func TestLoad_PathOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	yaml := `capabilities:
  - name: chat
    min_phase: C
    allowed_roles: [owner]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AIGATE_REGISTRY_PATH", path)

	r, err := registry.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	chat, ok := r.Lookup(models.CapabilityChat)
	if !ok {
		t.Fatal("chat capability not registered from override")
	}
	if chat.MinPhase != models.PhaseC {
		t.Errorf("chat.MinPhase = %s, want C from override", chat.MinPhase)
	}
	if _, ok := r.Lookup(models.CapabilityActions); ok {
		t.Error("actions registered, want override to fully replace the table")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty table", "capabilities: []", "empty"},
		{"missing name", "capabilities:\n  - min_phase: A", "missing name"},
		{"bad phase", "capabilities:\n  - name: chat\n    min_phase: Z", "invalid min_phase"},
		{"duplicate", "capabilities:\n  - name: chat\n    min_phase: A\n  - name: chat\n    min_phase: B", "declared twice"},
		{"not yaml", "{{nope", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() error = nil, want failure")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
