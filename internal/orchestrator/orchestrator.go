package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/agent"
	"github.com/canna-agent/backend/internal/metrics"
	"github.com/canna-agent/backend/internal/storage/models"
	"github.com/canna-agent/backend/internal/verification"
	"github.com/canna-agent/backend/pkg/logger"
)

var ErrUnknownAgent = errors.New("unknown agent type")

// Storage is the persistence surface the orchestrator writes through.
// Implemented by the sqlite client; tests substitute an in-memory fake.
type Storage interface {
	UpdateQuery(q *models.Query) error
	CreateAgentResponse(r *models.AgentResponse) error
	CreateVerification(v *models.Verification) error
	UpsertAgentStatus(s *models.AgentStatus) error
	GetAgentStatus(agentType string) (*models.AgentStatus, error)
}

// Orchestrator drives a single query from submission to a terminal state:
// primary invocation, escalation decision, cross-verification, and per-agent
// health bookkeeping. Each query id is processed by at most one invocation at
// a time; the dispatcher enforces that, so no locking happens here.
type Orchestrator struct {
	store    Storage
	registry *agent.Registry
	verifier *verification.Service
	policy   Policy
}

func New(store Storage, registry *agent.Registry, verifier *verification.Service, policy Policy) *Orchestrator {
	return &Orchestrator{
		store:    store,
		registry: registry,
		verifier: verifier,
		policy:   policy,
	}
}

// ProcessQuery runs the full pipeline for a pending query. Failures are
// absorbed into the `failed` terminal state; the returned error exists so the
// dispatcher can log and count it, not so callers can retry.
func (o *Orchestrator) ProcessQuery(ctx context.Context, q *models.Query) error {
	start := time.Now()
	defer func() {
		metrics.QueryDuration.WithLabelValues(q.AgentType).Observe(time.Since(start).Seconds())
	}()

	logger.Info("Processing query",
		zap.String("query_id", q.ID),
		zap.String("agent_type", q.AgentType),
	)

	primaryAgent, ok := o.registry.Resolve(q.AgentType)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownAgent, q.AgentType)
		o.failQuery(q, err)
		return err
	}

	q.Status = models.QueryStatusProcessing
	if err := o.store.UpdateQuery(q); err != nil {
		o.failQuery(q, err)
		o.recordAgentResult(q.AgentType, 0, false)
		return err
	}

	o.refreshHeartbeat(q.AgentType)

	primaryResp, err := primaryAgent.ProcessQuery(ctx, q.Content)
	if err != nil {
		o.failQuery(q, err)
		o.recordAgentResult(q.AgentType, 0, false)
		return err
	}

	escalate, trigger := o.policy.ShouldEscalate(q.AgentType, q.Content, primaryResp)

	primaryStatus := models.VerificationStatusPending
	if !escalate {
		primaryStatus = models.VerificationStatusVerified
	}

	primaryRow := buildResponseRow(q.ID, q.AgentType, primaryResp, models.ResponseRolePrimary, primaryStatus)
	if err := o.store.CreateAgentResponse(primaryRow); err != nil {
		o.failQuery(q, err)
		o.recordAgentResult(q.AgentType, 0, false)
		return err
	}

	if !escalate {
		o.finalizeQuery(q, models.QueryStatusCompleted, primaryResp.Confidence, false)
		o.recordAgentResult(q.AgentType, primaryResp.Confidence, true)
		return nil
	}

	metrics.EscalationsTotal.WithLabelValues(trigger).Inc()
	logger.Info("Escalation triggered",
		zap.String("query_id", q.ID),
		zap.String("trigger", trigger),
		zap.Float64("primary_confidence", primaryResp.Confidence),
	)

	verifiers := o.policy.SelectVerifiers(q.AgentType, o.registry)
	if len(verifiers) == 0 {
		// Fail closed: the policy demanded a second opinion and none is
		// available, so the answer stays uncorroborated.
		logger.Warn("Escalation triggered but no verifiers resolved",
			zap.String("query_id", q.ID),
			zap.String("agent_type", q.AgentType),
		)
		o.finalizeQuery(q, models.QueryStatusNeedsHuman, primaryResp.Confidence, true)
		o.recordAgentResult(q.AgentType, primaryResp.Confidence, true)
		return nil
	}

	result := o.verifier.PerformCrossVerification(ctx, primaryResp, verifiers, q.Content)

	for _, outcome := range result.Outcomes {
		metrics.VerifierInvocations.WithLabelValues(outcome.AgentType, outcomeLabel(outcome)).Inc()

		if outcome.Response == nil {
			continue
		}

		verifierStatus := models.VerificationStatusRejected
		if outcome.Agrees {
			verifierStatus = models.VerificationStatusVerified
		}

		verifierRow := buildResponseRow(q.ID, outcome.AgentType, outcome.Response, models.ResponseRoleVerifier, verifierStatus)
		if err := o.store.CreateAgentResponse(verifierRow); err != nil {
			o.failQuery(q, err)
			o.recordAgentResult(q.AgentType, 0, false)
			return err
		}

		v := &models.Verification{
			ID:                  uuid.New().String(),
			QueryID:             q.ID,
			PrimaryResponseID:   primaryRow.ID,
			VerifyingResponseID: verifierRow.ID,
			ConsensusReached:    outcome.Agrees,
			Discrepancies:       outcome.Note,
			FinalConfidence:     result.FinalConfidence,
			CreatedAt:           time.Now(),
		}
		if err := o.store.CreateVerification(v); err != nil {
			o.failQuery(q, err)
			o.recordAgentResult(q.AgentType, 0, false)
			return err
		}
	}

	metrics.ConsensusTotal.WithLabelValues(consensusLabel(result.ConsensusReached)).Inc()

	if result.ConsensusReached {
		o.finalizeQuery(q, models.QueryStatusCompleted, result.FinalConfidence, false)
	} else {
		o.finalizeQuery(q, models.QueryStatusNeedsHuman, result.FinalConfidence, true)
	}

	o.recordAgentResult(q.AgentType, result.FinalConfidence, true)
	return nil
}

func (o *Orchestrator) finalizeQuery(q *models.Query, status string, confidence float64, requiresHuman bool) {
	q.Status = status
	q.ConfidenceScore = confidence
	q.RequiresHumanVerification = requiresHuman

	if err := o.store.UpdateQuery(q); err != nil {
		logger.Error("Failed to finalize query",
			zap.String("query_id", q.ID),
			zap.Error(err),
		)
	}

	metrics.QueryTotal.WithLabelValues(status).Inc()
	metrics.ConfidenceScore.Observe(confidence)

	logger.Info("Query finalized",
		zap.String("query_id", q.ID),
		zap.String("status", status),
		zap.Float64("confidence", confidence),
	)
}

func (o *Orchestrator) failQuery(q *models.Query, cause error) {
	logger.Error("Query pipeline failed",
		zap.String("query_id", q.ID),
		zap.String("agent_type", q.AgentType),
		zap.Error(cause),
	)

	q.Status = models.QueryStatusFailed
	q.RequiresHumanVerification = true

	if err := o.store.UpdateQuery(q); err != nil {
		logger.Error("Failed to mark query failed",
			zap.String("query_id", q.ID),
			zap.Error(err),
		)
	}

	metrics.QueryTotal.WithLabelValues(models.QueryStatusFailed).Inc()
}

// refreshHeartbeat is a health signal, not a correctness gate: a stale agent
// record never blocks the invocation.
func (o *Orchestrator) refreshHeartbeat(agentType string) {
	status, err := o.store.GetAgentStatus(agentType)
	if err != nil {
		logger.Warn("Failed to read agent status", zap.String("agent_type", agentType), zap.Error(err))
	}
	if status == nil {
		status = &models.AgentStatus{AgentType: agentType}
	}

	status.Status = models.AgentStatusOnline
	status.LastHeartbeat = time.Now()

	if err := o.store.UpsertAgentStatus(status); err != nil {
		logger.Warn("Failed to refresh heartbeat", zap.String("agent_type", agentType), zap.Error(err))
	}
}

// recordAgentResult updates rolling stats after every pipeline exit. Total
// queries always increment; successful queries only when the pipeline ran
// clean. Rolling confidence is last-write, not an average.
func (o *Orchestrator) recordAgentResult(agentType string, finalConfidence float64, success bool) {
	status, err := o.store.GetAgentStatus(agentType)
	if err != nil {
		logger.Warn("Failed to read agent status", zap.String("agent_type", agentType), zap.Error(err))
	}
	if status == nil {
		status = &models.AgentStatus{
			AgentType:     agentType,
			Status:        models.AgentStatusOnline,
			LastHeartbeat: time.Now(),
		}
	}

	status.TotalQueries++
	if success {
		status.SuccessfulQueries++
		status.RollingConfidence = finalConfidence
	}

	if err := o.store.UpsertAgentStatus(status); err != nil {
		logger.Warn("Failed to update agent stats", zap.String("agent_type", agentType), zap.Error(err))
	}
}

func buildResponseRow(queryID, agentType string, resp *agent.Response, role, verificationStatus string) *models.AgentResponse {
	payload, _ := json.Marshal(resp)

	return &models.AgentResponse{
		ID:                        uuid.New().String(),
		QueryID:                   queryID,
		AgentType:                 agentType,
		Role:                      role,
		Confidence:                resp.Confidence,
		RequiresHumanVerification: resp.RequiresHumanVerification,
		Payload:                   string(payload),
		VerificationStatus:        verificationStatus,
		CreatedAt:                 time.Now(),
	}
}

func outcomeLabel(o verification.Outcome) string {
	switch {
	case o.Err != nil:
		return "error"
	case o.Agrees:
		return "agree"
	default:
		return "dissent"
	}
}

func consensusLabel(reached bool) string {
	if reached {
		return "reached"
	}
	return "not_reached"
}
