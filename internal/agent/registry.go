package agent

import "sort"

// Registry maps agent-type keys to registered agents. It is populated once
// at startup and read-only afterwards, so lookups take no lock.
type Registry struct {
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

func (r *Registry) Register(a Agent) {
	r.agents[a.AgentType()] = a
}

func (r *Registry) Resolve(agentType string) (Agent, bool) {
	a, ok := r.agents[agentType]
	return a, ok
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.agents))
	for t := range r.agents {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
