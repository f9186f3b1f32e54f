package agent

import (
	"context"
	"testing"
)

type fixedAgent struct {
	agentType string
}

func (f *fixedAgent) AgentType() string { return f.agentType }

func (f *fixedAgent) ProcessQuery(ctx context.Context, content string) (*Response, error) {
	return &Response{Agent: f.agentType, Confidence: 80}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(&fixedAgent{agentType: "compliance"})

	a, ok := r.Resolve("compliance")
	if !ok {
		t.Fatal("expected to resolve compliance agent")
	}
	if a.AgentType() != "compliance" {
		t.Errorf("expected compliance, got %s", a.AgentType())
	}

	if _, ok := r.Resolve("ghost"); ok {
		t.Error("unregistered agent type must not resolve")
	}
}

func TestRegistryTypesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&fixedAgent{agentType: "marketing"})
	r.Register(&fixedAgent{agentType: "compliance"})
	r.Register(&fixedAgent{agentType: "formulation"})

	types := r.Types()
	want := []string{"compliance", "formulation", "marketing"}
	if len(types) != len(want) {
		t.Fatalf("expected %d types, got %d", len(want), len(types))
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("types[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestParseVerdict(t *testing.T) {
	content := "Here is my assessment:\n```json\n" +
		`{"answer": "DMSO is not approved for topicals", "confidence": 72, "requires_human_verification": false, "sources": ["FDA guidance"]}` +
		"\n```"

	v, err := parseVerdict(content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if v.Confidence != 72 {
		t.Errorf("expected confidence 72, got %.1f", v.Confidence)
	}
	if v.RequiresHumanVerification {
		t.Error("expected human flag false")
	}
	if len(v.Sources) != 1 {
		t.Errorf("expected 1 source, got %d", len(v.Sources))
	}
}

func TestParseVerdictRejectsGarbage(t *testing.T) {
	if _, err := parseVerdict("no json here"); err == nil {
		t.Error("expected error for content without JSON")
	}
	if _, err := parseVerdict("{not valid json}"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{72, 72},
		{100, 100},
		{140, 100},
	}

	for _, tt := range tests {
		if got := clampConfidence(tt.in); got != tt.want {
			t.Errorf("clampConfidence(%.1f) = %.1f, want %.1f", tt.in, got, tt.want)
		}
	}
}
