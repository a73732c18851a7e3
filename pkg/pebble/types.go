package pebble

// Override controls how a service definition in an overlay combines with
// an earlier definition of the same service.
type Override string

const (
	// OverrideReplace discards the earlier definition entirely.
	OverrideReplace Override = "replace"

	// OverrideMerge keeps earlier keys that the overlay does not set.
	OverrideMerge Override = "merge"
)

// Startup controls whether Pebble starts a service automatically.
type Startup string

const (
	StartupEnabled  Startup = "enabled"
	StartupDisabled Startup = "disabled"
)

// ServiceStatus is the current state Pebble reports for a service.
type ServiceStatus string

const (
	StatusActive   ServiceStatus = "active"
	StatusInactive ServiceStatus = "inactive"
	StatusBackoff  ServiceStatus = "backoff"
	StatusError    ServiceStatus = "error"
)

// Service is one declared process in a layer or plan.
type Service struct {
	// Summary is a short human-readable description.
	Summary string `json:"summary,omitempty"`

	// Override selects the combine behavior against earlier layers.
	Override Override `json:"override,omitempty"`

	// Command is the full command line Pebble executes.
	Command string `json:"command,omitempty"`

	// Startup selects whether the service starts automatically.
	Startup Startup `json:"startup,omitempty"`
}

// Equal reports whether two service definitions are identical.
func (s *Service) Equal(other *Service) bool {
	if s == nil || other == nil {
		return s == other
	}
	return *s == *other
}

// Copy returns an independent copy of the service definition.
func (s *Service) Copy() *Service {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Layer is a declarative process description submitted as an overlay on
// top of the supervisor's plan.
type Layer struct {
	Summary     string              `json:"summary,omitempty"`
	Description string              `json:"description,omitempty"`
	Services    map[string]*Service `json:"services,omitempty"`
}

// Plan is the supervisor's current record of declared services, the
// result of combining every submitted layer. It is owned by the
// supervisor; clients only read it and submit overlays.
type Plan struct {
	Services map[string]*Service `json:"services,omitempty"`
}

// Service returns the plan's definition of the named service, or nil when
// the service was never declared.
func (p *Plan) Service(name string) *Service {
	if p == nil {
		return nil
	}
	return p.Services[name]
}

// Merge applies a layer overlay to the plan, returning the combined plan.
// Overlay services win on conflicting keys; everything else is a union.
// Services marked OverrideMerge keep plan keys that the overlay leaves
// unset. The receiver is not modified.
func (p *Plan) Merge(overlay *Layer) *Plan {
	merged := &Plan{Services: make(map[string]*Service, len(p.Services))}
	for name, svc := range p.Services {
		merged.Services[name] = svc.Copy()
	}
	if overlay == nil {
		return merged
	}
	for name, svc := range overlay.Services {
		existing := merged.Services[name]
		if existing == nil || svc.Override != OverrideMerge {
			merged.Services[name] = svc.Copy()
			continue
		}
		merged.Services[name] = mergeService(existing, svc)
	}
	return merged
}

func mergeService(base, overlay *Service) *Service {
	merged := *base
	if overlay.Summary != "" {
		merged.Summary = overlay.Summary
	}
	if overlay.Override != "" {
		merged.Override = overlay.Override
	}
	if overlay.Command != "" {
		merged.Command = overlay.Command
	}
	if overlay.Startup != "" {
		merged.Startup = overlay.Startup
	}
	return &merged
}

// ServiceInfo is the runtime state of one service as reported by the
// supervisor's service listing.
type ServiceInfo struct {
	Name    string        `json:"name"`
	Startup Startup       `json:"startup"`
	Current ServiceStatus `json:"current"`
}

// IsRunning reports whether the service is currently active.
func (i ServiceInfo) IsRunning() bool {
	return i.Current == StatusActive
}
