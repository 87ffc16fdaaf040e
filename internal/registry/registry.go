// Package registry holds the static capability table: for each AI
// capability, the minimum rollout phase, whether plans need approval,
// whether its errors are retryable, and which roles may use it.
//
// The table ships embedded as YAML and can be overridden from disk via
// AIGATE_REGISTRY_PATH. It is loaded once and never mutated at runtime.
package registry

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/practiva/aigate/pkg/models"
)

//go:embed registry.yaml
var embeddedRegistry []byte

// Registry is the immutable capability table.
type Registry struct {
	capabilities map[models.Capability]models.CapabilityConfig
}

type registryFile struct {
	Capabilities []models.CapabilityConfig `yaml:"capabilities"`
}

// Load returns the capability registry. If AIGATE_REGISTRY_PATH points at a
// YAML file it is used instead of the embedded default.
func Load() (*Registry, error) {
	data := embeddedRegistry
	if path := os.Getenv("AIGATE_REGISTRY_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read registry %s: %w", path, err)
		}
		data = raw
		log.Info().Str("path", path).Msg("Loading capability registry override")
	}
	return Parse(data)
}

// Parse builds a Registry from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse capability registry: %w", err)
	}
	if len(file.Capabilities) == 0 {
		return nil, fmt.Errorf("capability registry is empty")
	}

	caps := make(map[models.Capability]models.CapabilityConfig, len(file.Capabilities))
	for _, c := range file.Capabilities {
		if c.Name == "" {
			return nil, fmt.Errorf("capability entry missing name")
		}
		if c.MinPhase.Ordinal() == 0 {
			return nil, fmt.Errorf("capability %q: invalid min_phase %q", c.Name, c.MinPhase)
		}
		if _, dup := caps[c.Name]; dup {
			return nil, fmt.Errorf("capability %q declared twice", c.Name)
		}
		caps[c.Name] = c
	}
	return &Registry{capabilities: caps}, nil
}

// Lookup returns the config for a capability, if registered.
func (r *Registry) Lookup(cap models.Capability) (models.CapabilityConfig, bool) {
	c, ok := r.capabilities[cap]
	return c, ok
}

// Capabilities returns all registered capability names.
func (r *Registry) Capabilities() []models.Capability {
	out := make([]models.Capability, 0, len(r.capabilities))
	for name := range r.capabilities {
		out = append(out, name)
	}
	return out
}
