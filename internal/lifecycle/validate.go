package lifecycle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/practiva/aigate/pkg/models"
)

// validateSteps checks each step's parameters against the tool schema the
// backend attached to it. Steps without a schema pass; a schema violation
// maps to INVALID_REQUEST without ever calling the backend.
func validateSteps(steps []models.ActionStep) error {
	for _, step := range steps {
		if len(step.ToolSchema) == 0 {
			continue
		}
		if err := validateStep(step); err != nil {
			return &models.AIError{
				Code:    models.ErrInvalidRequest,
				Message: fmt.Sprintf("step %d (%s): %v", step.StepNumber, step.ToolName, err),
			}
		}
	}
	return nil
}

func validateStep(step models.ActionStep) error {
	rawSchema, err := json.Marshal(step.ToolSchema)
	if err != nil {
		return fmt.Errorf("unusable tool schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	resource := fmt.Sprintf("tool://%s/%s.json", step.ToolName, step.ToolSchemaVersion)
	if err := compiler.AddResource(resource, bytes.NewReader(rawSchema)); err != nil {
		return fmt.Errorf("unusable tool schema: %w", err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return fmt.Errorf("unusable tool schema: %w", err)
	}

	params := step.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}
	if err := schema.Validate(toJSONValue(params)); err != nil {
		return fmt.Errorf("parameters do not match tool schema: %w", err)
	}
	return nil
}

// toJSONValue round-trips through encoding/json so the validator sees the
// generic types it expects (float64 numbers etc.).
func toJSONValue(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
