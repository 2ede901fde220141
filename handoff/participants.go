// Package handoff implements the Handoff Coordinator: a workflow over a
// coordinator agent and a set of specialist agents that routes a
// conversation between them based on handoff signals embedded in their
// replies.
package handoff

import (
	"fmt"

	"github.com/meshrun/meshrun/agent"
)

// AgentFactory lazily builds the agent.Agent for a participant id. Used
// when participants are supplied via WithFactories rather than live
// instances, e.g. so a specialist is only constructed once a workflow is
// actually built, not merely configured.
type AgentFactory func() (agent.Agent, error)

// Participants is a closed sum type: either live agent instances or
// factories that build them, never both. Construct one with WithInstances
// or WithFactories.
type Participants struct {
	instances map[string]agent.Agent
	factories map[string]AgentFactory
}

// WithInstances builds a Participants backed by already-constructed
// agents, keyed by participant id.
func WithInstances(instances map[string]agent.Agent) Participants {
	return Participants{instances: instances}
}

// WithFactories builds a Participants backed by lazy factories, keyed by
// participant id. Each factory is called at most once, the first time its
// participant id is addressed.
func WithFactories(factories map[string]AgentFactory) Participants {
	return Participants{factories: factories}
}

func (p Participants) validate() error {
	if len(p.instances) > 0 && len(p.factories) > 0 {
		return fmt.Errorf("handoff: participants must be either instances or factories, not both")
	}
	if len(p.instances) == 0 && len(p.factories) == 0 {
		return fmt.Errorf("handoff: at least one participant is required")
	}
	return nil
}

func (p Participants) ids() []string {
	ids := make([]string, 0, len(p.instances)+len(p.factories))
	for id := range p.instances {
		ids = append(ids, id)
	}
	for id := range p.factories {
		ids = append(ids, id)
	}
	return ids
}

// resolver materializes agent.Agent values on demand, calling each factory
// exactly once, and is safe to reuse across a Coordinator's lifetime
// because the workflow runner never calls a handler for the same
// Coordinator concurrently.
type resolver struct {
	instances map[string]agent.Agent
	factories map[string]AgentFactory
	resolved  map[string]agent.Agent
}

func newResolver(p Participants) *resolver {
	return &resolver{instances: p.instances, factories: p.factories, resolved: make(map[string]agent.Agent)}
}

func (r *resolver) get(id string) (agent.Agent, error) {
	if a, ok := r.instances[id]; ok {
		return a, nil
	}
	if a, ok := r.resolved[id]; ok {
		return a, nil
	}
	factory, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("handoff: no participant registered for id %q", id)
	}
	a, err := factory()
	if err != nil {
		return nil, fmt.Errorf("handoff: factory for %q failed: %w", id, err)
	}
	r.resolved[id] = a
	return a, nil
}
