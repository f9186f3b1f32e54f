package agent

import "context"

// Response is the minimum output contract every domain agent satisfies.
// Confidence is a percentage in [0,100].
type Response struct {
	Agent                     string         `json:"agent"`
	Content                   string         `json:"content"`
	Confidence                float64        `json:"confidence"`
	RequiresHumanVerification bool           `json:"requires_human_verification"`
	Sources                   []string       `json:"sources,omitempty"`
	Metadata                  map[string]any `json:"metadata,omitempty"`
}

// Agent is the single capability a domain agent exposes to the orchestrator.
type Agent interface {
	AgentType() string
	ProcessQuery(ctx context.Context, content string) (*Response, error)
}
