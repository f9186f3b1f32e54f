package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/cache/redis"
	"github.com/canna-agent/backend/internal/llm"
	"github.com/canna-agent/backend/internal/metrics"
	"github.com/canna-agent/backend/pkg/logger"
	"github.com/canna-agent/backend/pkg/utils"
)

var domainPrompts = map[string]string{
	"compliance": `You are a cannabis regulatory compliance expert covering state licensing,
packaging and labeling rules, testing requirements, and hemp/THC thresholds under the 2018 Farm Bill.`,
	"patent": `You are a cannabis intellectual property expert covering plant patents,
utility patents on formulations and extraction methods, and trademark limits for scheduled substances.`,
	"operations": `You are a cannabis operations expert covering cultivation facilities,
inventory tracking (METRC/BioTrack), seed-to-sale logistics, and standard operating procedures.`,
	"formulation": `You are a cannabis product formulation scientist covering extraction,
emulsification, dosing, stability, excipient compatibility, and ingredient safety for topicals and edibles.`,
	"sourcing": `You are a cannabis supply chain expert covering licensed supplier vetting,
biomass and extract procurement, certificates of analysis, and cross-state sourcing restrictions.`,
	"marketing": `You are a cannabis marketing expert covering advertising platform policies,
age-gating requirements, health-claim restrictions, and state-by-state promotion rules.`,
}

const verdictInstructions = `Answer the question for a cannabis-industry operator, then report how
confident you are. Respond with JSON only:
{"answer": "...", "confidence": <0-100>, "requires_human_verification": <bool>, "sources": ["..."]}
Set requires_human_verification to true whenever the question has legal exposure you cannot fully
resolve or the answer depends on jurisdiction-specific facts you do not have.`

// LLMAgent backs one domain agent type with an LLM chat completion. Repeated
// identical queries are served from the response cache when one is configured.
type LLMAgent struct {
	agentType string
	llmClient *llm.Client
	cache     *redis.Client
	cacheTTL  time.Duration
}

func NewLLMAgent(agentType string, llmClient *llm.Client, cache *redis.Client, cacheTTL time.Duration) *LLMAgent {
	return &LLMAgent{
		agentType: agentType,
		llmClient: llmClient,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

func (a *LLMAgent) AgentType() string {
	return a.agentType
}

func (a *LLMAgent) ProcessQuery(ctx context.Context, content string) (*Response, error) {
	cacheKey := utils.HashString(a.agentType + ":" + content)

	if a.cache != nil {
		var cached Response
		hit, err := a.cache.GetResponse(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Response cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("response").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("response").Inc()
	}

	systemPrompt, ok := domainPrompts[a.agentType]
	if !ok {
		systemPrompt = "You are a cannabis-industry domain expert."
	}

	resp, err := a.llmClient.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt + "\n\n" + verdictInstructions,
		UserPrompt:   content,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s invocation failed: %w", a.agentType, err)
	}

	verdict, err := parseVerdict(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("agent %s returned malformed verdict: %w", a.agentType, err)
	}

	response := &Response{
		Agent:                     a.agentType,
		Content:                   verdict.Answer,
		Confidence:                clampConfidence(verdict.Confidence),
		RequiresHumanVerification: verdict.RequiresHumanVerification,
		Sources:                   verdict.Sources,
	}

	if a.cache != nil {
		if err := a.cache.SetResponse(ctx, cacheKey, response, a.cacheTTL); err != nil {
			logger.Warn("Response cache write failed", zap.Error(err))
		}
	}

	logger.Debug("Agent responded",
		zap.String("agent_type", a.agentType),
		zap.Float64("confidence", response.Confidence),
		zap.Bool("requires_human", response.RequiresHumanVerification),
	)

	return response, nil
}

type verdict struct {
	Answer                    string   `json:"answer"`
	Confidence                float64  `json:"confidence"`
	RequiresHumanVerification bool     `json:"requires_human_verification"`
	Sources                   []string `json:"sources"`
}

// parseVerdict tolerates markdown code fences and leading prose around the
// JSON object.
func parseVerdict(content string) (*verdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in completion")
	}

	var v verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("failed to parse verdict JSON: %w", err)
	}

	return &v, nil
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
