package handlers

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/storage/models"
	"github.com/canna-agent/backend/internal/storage/sqlite"
	"github.com/canna-agent/backend/pkg/logger"
)

type WebSocketHandler struct {
	store *sqlite.Client
}

func NewWebSocketHandler(store *sqlite.Client) *WebSocketHandler {
	return &WebSocketHandler{
		store: store,
	}
}

// HandleConnection streams status snapshots for a query until it reaches a
// terminal state. The client sends {"type": "watch", "query_id": "..."}.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			QueryID string `json:"query_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "watch" || msg.QueryID == "" {
			continue
		}

		if err := h.streamStatus(c, msg.QueryID); err != nil {
			logger.Error("Failed to stream query status", zap.Error(err))
			h.sendError(c, "Failed to stream query status")
		}
	}
}

func (h *WebSocketHandler) streamStatus(c *websocket.Conn, queryID string) error {
	deadline := time.Now().Add(2 * time.Minute)
	lastStatus := ""

	for time.Now().Before(deadline) {
		q, err := h.store.GetQuery(queryID)
		if err != nil {
			return err
		}

		if q.Status != lastStatus {
			lastStatus = q.Status

			err = c.WriteJSON(map[string]interface{}{
				"type":                        "status",
				"query_id":                    q.ID,
				"status":                      q.Status,
				"confidence_score":            q.ConfidenceScore,
				"requires_human_verification": q.RequiresHumanVerification,
			})
			if err != nil {
				return err
			}
		}

		if isTerminal(q.Status) {
			return nil
		}

		time.Sleep(time.Second)
	}

	return c.WriteJSON(map[string]interface{}{
		"type":     "timeout",
		"query_id": queryID,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, message string) {
	err := c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": message,
	})
	if err != nil {
		logger.Error("Failed to send WebSocket error", zap.Error(err))
	}
}

func isTerminal(status string) bool {
	switch status {
	case models.QueryStatusCompleted, models.QueryStatusFailed, models.QueryStatusNeedsHuman:
		return true
	}
	return false
}
