package verification

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/agent"
	"github.com/canna-agent/backend/pkg/logger"
)

// Outcome records one verifier's assessment of the primary response.
// Response is nil when the verifier invocation failed; a failed verifier
// counts as a dissenter rather than being dropped from the round.
type Outcome struct {
	AgentType string
	Response  *agent.Response
	Err       error
	Agrees    bool
	Note      string
}

type Result struct {
	FinalConfidence  float64
	ConsensusReached bool
	Outcomes         []Outcome
	Discrepancies    []string
}

// Service cross-checks a primary agent response against peer agents.
// Consensus requires unanimous agreement: every verifier must report a
// confidence within the tolerance band of the primary's and must not flag
// the answer for human verification.
type Service struct {
	tolerance float64
}

func NewService(tolerance float64) *Service {
	return &Service{tolerance: tolerance}
}

func (s *Service) PerformCrossVerification(ctx context.Context, primary *agent.Response, verifiers []agent.Agent, content string) *Result {
	outcomes := make([]Outcome, len(verifiers))

	var wg sync.WaitGroup
	for i, v := range verifiers {
		wg.Add(1)
		go func(i int, v agent.Agent) {
			defer wg.Done()
			resp, err := v.ProcessQuery(ctx, content)
			outcomes[i] = Outcome{
				AgentType: v.AgentType(),
				Response:  resp,
				Err:       err,
			}
		}(i, v)
	}
	wg.Wait()

	result := &Result{
		ConsensusReached: true,
		Outcomes:         outcomes,
	}

	minConfidence := primary.Confidence

	for i := range outcomes {
		o := &outcomes[i]

		switch {
		case o.Err != nil:
			o.Note = fmt.Sprintf("%s failed to respond: %v", o.AgentType, o.Err)
		case o.Response.RequiresHumanVerification:
			o.Note = fmt.Sprintf("%s flagged the answer for human verification", o.AgentType)
		case math.Abs(o.Response.Confidence-primary.Confidence) > s.tolerance:
			o.Note = fmt.Sprintf("%s confidence diverged from primary by %.1f points (%.1f vs %.1f)",
				o.AgentType,
				math.Abs(o.Response.Confidence-primary.Confidence),
				o.Response.Confidence,
				primary.Confidence,
			)
		default:
			o.Agrees = true
		}

		if !o.Agrees {
			result.ConsensusReached = false
			result.Discrepancies = append(result.Discrepancies, o.Note)
		}

		if o.Response != nil && o.Response.Confidence < minConfidence {
			minConfidence = o.Response.Confidence
		}
	}

	// Corroborating verifiers confirm the primary's number; dissent reduces
	// trust to the lowest confidence any agent actually reported. Verifiers
	// that errored contribute dissent but no score.
	if result.ConsensusReached {
		result.FinalConfidence = primary.Confidence
	} else {
		result.FinalConfidence = minConfidence
	}

	logger.Info("Cross-verification completed",
		zap.String("primary_agent", primary.Agent),
		zap.Int("verifiers", len(verifiers)),
		zap.Bool("consensus", result.ConsensusReached),
		zap.Float64("final_confidence", result.FinalConfidence),
		zap.Int("discrepancies", len(result.Discrepancies)),
	)

	return result
}
