package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/agent"
	"github.com/canna-agent/backend/internal/dispatch"
	"github.com/canna-agent/backend/internal/storage/models"
	"github.com/canna-agent/backend/internal/storage/sqlite"
	"github.com/canna-agent/backend/pkg/logger"
)

type QueryHandler struct {
	store      *sqlite.Client
	registry   *agent.Registry
	dispatcher *dispatch.Dispatcher
}

func NewQueryHandler(store *sqlite.Client, registry *agent.Registry, dispatcher *dispatch.Dispatcher) *QueryHandler {
	return &QueryHandler{
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

func (h *QueryHandler) SubmitQuery(c *fiber.Ctx) error {
	var req struct {
		Content   string `json:"content"`
		AgentType string `json:"agent_type"`
		UserID    string `json:"user_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}

	if _, ok := h.registry.Resolve(req.AgentType); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":       "unknown agent_type",
			"agent_types": h.registry.Types(),
		})
	}

	now := time.Now()
	q := &models.Query{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Content:   req.Content,
		AgentType: req.AgentType,
		Status:    models.QueryStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.CreateQuery(q); err != nil {
		logger.Error("Failed to persist query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create query",
		})
	}

	if err := h.dispatcher.Enqueue(q); err != nil {
		logger.Error("Failed to enqueue query", zap.String("query_id", q.ID), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service is at capacity, try again later",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":         q.ID,
		"status":     q.Status,
		"agent_type": q.AgentType,
	})
}

func (h *QueryHandler) GetQuery(c *fiber.Ctx) error {
	q, err := h.store.GetQuery(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Query not found",
		})
	}

	return c.JSON(fiber.Map{
		"id":                          q.ID,
		"user_id":                     q.UserID,
		"content":                     q.Content,
		"agent_type":                  q.AgentType,
		"status":                      q.Status,
		"confidence_score":            q.ConfidenceScore,
		"requires_human_verification": q.RequiresHumanVerification,
		"created_at":                  q.CreatedAt.Unix(),
		"updated_at":                  q.UpdatedAt.Unix(),
	})
}

func (h *QueryHandler) ListResponses(c *fiber.Ctx) error {
	responses, err := h.store.ListAgentResponses(c.Params("id"))
	if err != nil {
		logger.Error("Failed to list agent responses", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list responses",
		})
	}

	out := make([]fiber.Map, 0, len(responses))
	for _, r := range responses {
		out = append(out, fiber.Map{
			"id":                          r.ID,
			"agent_type":                  r.AgentType,
			"role":                        r.Role,
			"confidence":                  r.Confidence,
			"requires_human_verification": r.RequiresHumanVerification,
			"verification_status":         r.VerificationStatus,
			"created_at":                  r.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"responses": out})
}

func (h *QueryHandler) ListVerifications(c *fiber.Ctx) error {
	verifications, err := h.store.ListVerifications(c.Params("id"))
	if err != nil {
		logger.Error("Failed to list verifications", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list verifications",
		})
	}

	out := make([]fiber.Map, 0, len(verifications))
	for _, v := range verifications {
		out = append(out, fiber.Map{
			"id":                    v.ID,
			"primary_response_id":   v.PrimaryResponseID,
			"verifying_response_id": v.VerifyingResponseID,
			"consensus_reached":     v.ConsensusReached,
			"discrepancies":         v.Discrepancies,
			"final_confidence":      v.FinalConfidence,
			"created_at":            v.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"verifications": out})
}
