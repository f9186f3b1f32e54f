package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/agent"
	"github.com/canna-agent/backend/internal/metrics"
	"github.com/canna-agent/backend/internal/storage/models"
	"github.com/canna-agent/backend/internal/storage/sqlite"
	"github.com/canna-agent/backend/pkg/logger"
)

type AgentsHandler struct {
	store    *sqlite.Client
	registry *agent.Registry
}

func NewAgentsHandler(store *sqlite.Client, registry *agent.Registry) *AgentsHandler {
	return &AgentsHandler{
		store:    store,
		registry: registry,
	}
}

func (h *AgentsHandler) ListAgents(c *fiber.Ctx) error {
	statuses, err := h.store.ListAgentStatuses()
	if err != nil {
		logger.Error("Failed to list agent statuses", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list agents",
		})
	}

	byType := make(map[string]models.AgentStatus, len(statuses))
	for _, s := range statuses {
		byType[s.AgentType] = s
	}

	out := make([]fiber.Map, 0, len(h.registry.Types()))
	for _, t := range h.registry.Types() {
		entry := fiber.Map{
			"agent_type": t,
			"status":     models.AgentStatusOffline,
		}
		if s, ok := byType[t]; ok {
			entry["status"] = s.Status
			entry["last_heartbeat"] = s.LastHeartbeat.Unix()
			entry["rolling_confidence"] = s.RollingConfidence
			entry["total_queries"] = s.TotalQueries
			entry["successful_queries"] = s.SuccessfulQueries
		}
		out = append(out, entry)
	}

	return c.JSON(fiber.Map{"agents": out})
}

func (h *AgentsHandler) Heartbeat(c *fiber.Ctx) error {
	agentType := c.Params("type")
	if _, ok := h.registry.Resolve(agentType); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown agent_type",
		})
	}

	status, err := h.store.GetAgentStatus(agentType)
	if err != nil {
		logger.Error("Failed to read agent status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read agent status",
		})
	}
	if status == nil {
		status = &models.AgentStatus{AgentType: agentType}
	}

	status.Status = models.AgentStatusOnline
	status.LastHeartbeat = time.Now()

	if err := h.store.UpsertAgentStatus(status); err != nil {
		logger.Error("Failed to record heartbeat", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record heartbeat",
		})
	}

	metrics.HeartbeatsTotal.WithLabelValues(agentType).Inc()

	return c.JSON(fiber.Map{
		"agent_type":     agentType,
		"status":         status.Status,
		"last_heartbeat": status.LastHeartbeat.Unix(),
	})
}
