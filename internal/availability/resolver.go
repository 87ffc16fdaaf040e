// Package availability resolves whether an AI capability may be used right
// now. The resolver is a pure function over the latest status snapshot, the
// capability registry, the caller's role, and context completeness; it has
// no side effects and no hidden state, so every verdict is reproducible from
// its inputs.
package availability

import (
	"github.com/practiva/aigate/internal/registry"
	"github.com/practiva/aigate/pkg/models"
)

// Reason explains why a capability is unavailable.
type Reason string

const (
	ReasonLoading            Reason = "loading"
	ReasonError              Reason = "error"
	ReasonNotAuthenticated   Reason = "not_authenticated"
	ReasonUnknown            Reason = "unknown"
	ReasonDisabled           Reason = "disabled"
	ReasonKillSwitch         Reason = "kill_switch"
	ReasonQuotaExceeded      Reason = "quota_exceeded"
	ReasonCapabilityDisabled Reason = "capability_disabled"
	ReasonRoleBlocked        Reason = "role_blocked"
	ReasonPhaseBlocked       Reason = "phase_blocked"
)

// reasonMessages maps each reason to its single fixed user-facing message.
var reasonMessages = map[Reason]string{
	ReasonLoading:            "Checking AI availability…",
	ReasonError:              "AI status could not be determined",
	ReasonNotAuthenticated:   "Sign in to use AI features",
	ReasonUnknown:            "AI is currently unavailable",
	ReasonDisabled:           "AI features are disabled",
	ReasonKillSwitch:         "AI features are temporarily switched off",
	ReasonQuotaExceeded:      "Daily AI quota exceeded",
	ReasonCapabilityDisabled: "This AI feature is currently disabled",
	ReasonRoleBlocked:        "Your role does not permit this AI feature",
	ReasonPhaseBlocked:       "This AI feature is not yet enabled for your practice",
}

// messagePartyRequired is the distinct not_authenticated message used when a
// party must be selected before the capability can run.
const messagePartyRequired = "Select a patient or client to use this AI feature"

// Message returns the fixed user-facing message for a reason.
func Message(r Reason) string {
	return reasonMessages[r]
}

// Verdict is the resolver's output: available, or blocked with a reason.
type Verdict struct {
	Available bool   `json:"available"`
	Reason    Reason `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Input carries everything the resolver inspects. Status may be nil when no
// snapshot has been fetched yet.
type Input struct {
	Status        *models.AIStatus
	Loading       bool
	Errored       bool
	Authenticated bool

	// Capability is optional; when empty only the global gates apply.
	Capability models.Capability
	Role       models.Role

	HasPartyContext     bool
	RequirePartyContext bool
}

// Resolver gates capability use against the registry.
type Resolver struct {
	registry *registry.Registry
}

// New creates a resolver over the given capability registry.
func New(reg *registry.Registry) *Resolver {
	return &Resolver{registry: reg}
}

// Resolve decides whether the capability may run. Checks run in a fixed
// order and the first failing check wins; callers are responsible for any
// "became unavailable" notification, exactly once per transition.
func (r *Resolver) Resolve(in Input) Verdict {
	if in.Loading {
		return blocked(ReasonLoading, "")
	}
	if in.Errored {
		return blocked(ReasonError, "")
	}
	if !in.Authenticated {
		return blocked(ReasonNotAuthenticated, "")
	}
	if in.Status == nil {
		return blocked(ReasonUnknown, "")
	}
	if !in.Status.Enabled {
		return blocked(ReasonDisabled, "")
	}
	if in.Status.KillSwitch.Active() {
		// The operator's stated reason, when present, overrides the
		// canned message.
		return blocked(ReasonKillSwitch, in.Status.KillSwitch.Reason)
	}
	if in.Status.Usage.AnyQuotaExceeded {
		return blocked(ReasonQuotaExceeded, "")
	}

	if in.Capability != "" {
		if v, ok := r.resolveCapability(in); !ok {
			return v
		}
	}

	if in.RequirePartyContext && !in.HasPartyContext {
		return Verdict{Available: false, Reason: ReasonNotAuthenticated, Message: messagePartyRequired}
	}

	if !in.Status.Available {
		return blocked(ReasonUnknown, "")
	}

	return Verdict{Available: true}
}

// resolveCapability runs the per-capability gates: kill-switch disabled set,
// role, phase, then the combined gate. ok=false means the returned verdict
// is the failure.
func (r *Resolver) resolveCapability(in Input) (Verdict, bool) {
	if in.Status.KillSwitch.CapabilityDisabled(in.Capability) {
		return blocked(ReasonCapabilityDisabled, ""), false
	}

	cfg, registered := r.registry.Lookup(in.Capability)
	if !registered {
		return blocked(ReasonCapabilityDisabled, ""), false
	}

	if !cfg.RoleAllowed(in.Role) {
		return blocked(ReasonRoleBlocked, ""), false
	}
	if !in.Status.Phase.AtLeast(cfg.MinPhase) {
		return blocked(ReasonPhaseBlocked, ""), false
	}

	// Re-run phase+role+kill-switch as one combined gate. Individually each
	// check above already passed; this guards against the checks drifting
	// apart as the registry evolves.
	if !capabilityOpen(in.Status, cfg, in.Role) {
		return blocked(ReasonCapabilityDisabled, ""), false
	}

	return Verdict{}, true
}

// capabilityOpen is the combined phase+role+kill-switch gate.
func capabilityOpen(status *models.AIStatus, cfg models.CapabilityConfig, role models.Role) bool {
	return !status.KillSwitch.CapabilityDisabled(cfg.Name) &&
		cfg.RoleAllowed(role) &&
		status.Phase.AtLeast(cfg.MinPhase)
}

func blocked(reason Reason, message string) Verdict {
	if message == "" {
		message = reasonMessages[reason]
	}
	return Verdict{Available: false, Reason: reason, Message: message}
}
