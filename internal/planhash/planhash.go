// Package planhash fingerprints action plan content so drift between
// approval time and execution time can be detected client-side before the
// backend is ever asked to execute. The backend's own hash remains
// authoritative; this is an early, cheap check.
package planhash

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/practiva/aigate/pkg/models"
)

// hashedStep is the canonical subset of step fields covered by the
// fingerprint. Presentation-only fields (description, risk labels) are
// excluded so copy edits do not read as drift.
type hashedStep struct {
	StepNumber        int                    `json:"step_number"`
	ToolName          string                 `json:"tool_name"`
	ToolSchemaVersion string                 `json:"tool_schema_version"`
	Parameters        map[string]interface{} `json:"parameters"`
}

// Fingerprint computes the blake3 content hash of a plan's steps.
func Fingerprint(steps []models.ActionStep) (string, error) {
	canonical := make([]hashedStep, 0, len(steps))
	for _, s := range steps {
		canonical = append(canonical, hashedStep{
			StepNumber:        s.StepNumber,
			ToolName:          s.ToolName,
			ToolSchemaVersion: s.ToolSchemaVersion,
			Parameters:        s.Parameters,
		})
	}

	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("marshal plan steps: %w", err)
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Drifted reports whether the cached plan content no longer matches the
// fingerprint recorded at approval time. An empty recorded hash (older
// backend) never reads as drift.
func Drifted(plan *models.ActionPlan, recorded string) (bool, error) {
	if recorded == "" {
		return false, nil
	}
	current, err := Fingerprint(plan.Steps)
	if err != nil {
		return false, err
	}
	return current != recorded, nil
}
