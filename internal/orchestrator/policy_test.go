package orchestrator

import (
	"context"
	"testing"

	"github.com/canna-agent/backend/internal/agent"
)

func TestShouldEscalate(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name          string
		agentType     string
		content       string
		confidence    float64
		requiresHuman bool
		wantEscalate  bool
		wantTrigger   string
	}{
		{
			name:         "high confidence benign domain",
			agentType:    "formulation",
			content:      "What carrier oil works best for a CBD tincture?",
			confidence:   92,
			wantEscalate: false,
			wantTrigger:  TriggerNone,
		},
		{
			name:         "low confidence",
			agentType:    "formulation",
			content:      "Is DMSO safe to add to a CBD topical?",
			confidence:   72,
			wantEscalate: true,
			wantTrigger:  TriggerLowConfidence,
		},
		{
			name:          "human flag at high confidence",
			agentType:     "sourcing",
			content:       "Which supplier should we pick?",
			confidence:    95,
			requiresHuman: true,
			wantEscalate:  true,
			wantTrigger:   TriggerHumanFlag,
		},
		{
			name:         "risk domain overrides confidence",
			agentType:    "compliance",
			content:      "Can we ship to Nevada?",
			confidence:   99,
			wantEscalate: true,
			wantTrigger:  TriggerRiskDomain,
		},
		{
			name:         "risk keyword overrides confidence",
			agentType:    "marketing",
			content:      "Draft a response to the pending LAWSUIT over our billboard",
			confidence:   99,
			wantEscalate: true,
			wantTrigger:  TriggerRiskKeyword,
		},
		{
			name:         "threshold boundary does not escalate",
			agentType:    "operations",
			content:      "How many grow lights per room?",
			confidence:   80,
			wantEscalate: false,
			wantTrigger:  TriggerNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &agent.Response{
				Agent:                     tt.agentType,
				Confidence:                tt.confidence,
				RequiresHumanVerification: tt.requiresHuman,
			}

			escalate, trigger := p.ShouldEscalate(tt.agentType, tt.content, resp)
			if escalate != tt.wantEscalate {
				t.Errorf("escalate = %v, want %v", escalate, tt.wantEscalate)
			}
			if trigger != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", trigger, tt.wantTrigger)
			}
		})
	}
}

type noopAgent struct {
	agentType string
}

func (n *noopAgent) AgentType() string { return n.agentType }

func (n *noopAgent) ProcessQuery(ctx context.Context, content string) (*agent.Response, error) {
	return &agent.Response{Agent: n.agentType, Confidence: 90}, nil
}

func TestSelectVerifiersDropsUnregistered(t *testing.T) {
	p := DefaultPolicy()

	registry := agent.NewRegistry()
	registry.Register(&noopAgent{agentType: "formulation"})
	registry.Register(&noopAgent{agentType: "compliance"})
	// patent peer left unregistered

	verifiers := p.SelectVerifiers("formulation", registry)
	if len(verifiers) != 1 {
		t.Fatalf("expected 1 verifier, got %d", len(verifiers))
	}
	if verifiers[0].AgentType() != "compliance" {
		t.Errorf("expected compliance verifier, got %s", verifiers[0].AgentType())
	}
}

func TestSelectVerifiersCapsAtMax(t *testing.T) {
	p := DefaultPolicy()
	p.Adjacency = map[string][]string{
		"formulation": {"compliance", "patent", "operations", "sourcing"},
	}

	registry := agent.NewRegistry()
	for _, at := range []string{"formulation", "compliance", "patent", "operations", "sourcing"} {
		registry.Register(&noopAgent{agentType: at})
	}

	verifiers := p.SelectVerifiers("formulation", registry)
	if len(verifiers) != 2 {
		t.Errorf("expected verifier cap of 2, got %d", len(verifiers))
	}
}

func TestSelectVerifiersNeverSelectsSelf(t *testing.T) {
	p := DefaultPolicy()
	p.Adjacency = map[string][]string{
		"compliance": {"compliance", "marketing"},
	}

	registry := agent.NewRegistry()
	registry.Register(&noopAgent{agentType: "compliance"})
	registry.Register(&noopAgent{agentType: "marketing"})

	verifiers := p.SelectVerifiers("compliance", registry)
	if len(verifiers) != 1 {
		t.Fatalf("expected 1 verifier, got %d", len(verifiers))
	}
	if verifiers[0].AgentType() == "compliance" {
		t.Error("an agent must not verify itself")
	}
}

func TestSelectVerifiersEmptyForUnknownDomain(t *testing.T) {
	p := DefaultPolicy()
	registry := agent.NewRegistry()

	if got := p.SelectVerifiers("unmapped", registry); len(got) != 0 {
		t.Errorf("expected no verifiers for unmapped domain, got %d", len(got))
	}
}
