package orchestrator

import (
	"strings"

	"github.com/canna-agent/backend/internal/agent"
)

const (
	TriggerNone          = ""
	TriggerLowConfidence = "low_confidence"
	TriggerHumanFlag     = "human_flag"
	TriggerRiskDomain    = "risk_domain"
	TriggerRiskKeyword   = "risk_keyword"
)

// Policy holds the escalation rules and the verifier adjacency table. It is
// injected at construction so tests can run with fake adjacency.
type Policy struct {
	ConfidenceThreshold float64
	RiskAgentTypes      []string
	RiskKeywords        []string
	Adjacency           map[string][]string
	MaxVerifiers        int
}

func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold: 80,
		RiskAgentTypes:      []string{"compliance", "patent"},
		RiskKeywords: []string{
			"lawsuit", "litigation", "liability", "recall", "fda", "dea",
			"class action", "warning letter", "seizure", "injunction",
		},
		Adjacency: map[string][]string{
			"compliance":  {"marketing", "operations"},
			"patent":      {"marketing", "formulation"},
			"formulation": {"compliance", "patent"},
			"marketing":   {"compliance", "operations"},
			"operations":  {"compliance", "sourcing"},
			"sourcing":    {"operations", "compliance"},
		},
		MaxVerifiers: 2,
	}
}

// ShouldEscalate decides whether a primary response needs cross-verification.
// The three triggers are independent; the first that fires names the reason.
// Risk domains and keywords escalate regardless of reported confidence since
// an overconfident-but-wrong answer there carries outsized liability.
func (p Policy) ShouldEscalate(agentType, content string, resp *agent.Response) (bool, string) {
	if resp.Confidence < p.ConfidenceThreshold {
		return true, TriggerLowConfidence
	}

	if resp.RequiresHumanVerification {
		return true, TriggerHumanFlag
	}

	for _, risk := range p.RiskAgentTypes {
		if agentType == risk {
			return true, TriggerRiskDomain
		}
	}

	lowerContent := strings.ToLower(content)
	for _, keyword := range p.RiskKeywords {
		if strings.Contains(lowerContent, keyword) {
			return true, TriggerRiskKeyword
		}
	}

	return false, TriggerNone
}

// SelectVerifiers resolves the configured peer domains for an agent type,
// drops any that are not registered, and caps the result at MaxVerifiers.
func (p Policy) SelectVerifiers(agentType string, registry *agent.Registry) []agent.Agent {
	max := p.MaxVerifiers
	if max <= 0 {
		max = 2
	}

	var verifiers []agent.Agent
	for _, peer := range p.Adjacency[agentType] {
		if peer == agentType {
			continue
		}
		a, ok := registry.Resolve(peer)
		if !ok {
			continue
		}
		verifiers = append(verifiers, a)
		if len(verifiers) == max {
			break
		}
	}

	return verifiers
}
