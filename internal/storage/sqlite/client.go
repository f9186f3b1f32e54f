package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/canna-agent/backend/internal/storage/models"
	"github.com/canna-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		content TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		status TEXT NOT NULL,
		confidence_score REAL DEFAULT 0,
		requires_human_verification INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_queries_user ON queries(user_id);
	CREATE INDEX IF NOT EXISTS idx_queries_status ON queries(status);
	CREATE INDEX IF NOT EXISTS idx_queries_agent ON queries(agent_type);

	CREATE TABLE IF NOT EXISTS agent_responses (
		id TEXT PRIMARY KEY,
		query_id TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		role TEXT NOT NULL,
		confidence REAL NOT NULL,
		requires_human_verification INTEGER DEFAULT 0,
		payload TEXT,
		verification_status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES queries(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_responses_query ON agent_responses(query_id);
	CREATE INDEX IF NOT EXISTS idx_responses_agent ON agent_responses(agent_type);

	CREATE TABLE IF NOT EXISTS verifications (
		id TEXT PRIMARY KEY,
		query_id TEXT NOT NULL,
		primary_response_id TEXT NOT NULL,
		verifying_response_id TEXT NOT NULL,
		consensus_reached INTEGER NOT NULL,
		discrepancies TEXT,
		final_confidence REAL NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES queries(id) ON DELETE CASCADE,
		FOREIGN KEY (primary_response_id) REFERENCES agent_responses(id),
		FOREIGN KEY (verifying_response_id) REFERENCES agent_responses(id)
	);
	CREATE INDEX IF NOT EXISTS idx_verifications_query ON verifications(query_id);
	CREATE INDEX IF NOT EXISTS idx_verifications_primary ON verifications(primary_response_id);

	CREATE TABLE IF NOT EXISTS agent_statuses (
		agent_type TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		last_heartbeat INTEGER NOT NULL,
		rolling_confidence REAL DEFAULT 0,
		total_queries INTEGER DEFAULT 0,
		successful_queries INTEGER DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) CreateQuery(q *models.Query) error {
	query := `
		INSERT INTO queries (id, user_id, content, agent_type, status, confidence_score,
			requires_human_verification, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		q.ID,
		q.UserID,
		q.Content,
		q.AgentType,
		q.Status,
		q.ConfidenceScore,
		boolToInt(q.RequiresHumanVerification),
		q.CreatedAt.Unix(),
		q.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to create query: %w", err)
	}

	logger.Debug("Query created", zap.String("query_id", q.ID), zap.String("agent_type", q.AgentType))
	return nil
}

func (c *Client) GetQuery(id string) (*models.Query, error) {
	query := `
		SELECT id, user_id, content, agent_type, status, confidence_score,
			requires_human_verification, created_at, updated_at
		FROM queries WHERE id = ?
	`

	var q models.Query
	var requiresHuman int
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&q.ID,
		&q.UserID,
		&q.Content,
		&q.AgentType,
		&q.Status,
		&q.ConfidenceScore,
		&requiresHuman,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get query: %w", err)
	}

	q.RequiresHumanVerification = requiresHuman == 1
	q.CreatedAt = time.Unix(createdAt, 0)
	q.UpdatedAt = time.Unix(updatedAt, 0)

	return &q, nil
}

func (c *Client) UpdateQuery(q *models.Query) error {
	query := `
		UPDATE queries
		SET status = ?, confidence_score = ?, requires_human_verification = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := c.db.Exec(
		query,
		q.Status,
		q.ConfidenceScore,
		boolToInt(q.RequiresHumanVerification),
		time.Now().Unix(),
		q.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update query: %w", err)
	}

	logger.Debug("Query updated",
		zap.String("query_id", q.ID),
		zap.String("status", q.Status),
		zap.Float64("confidence", q.ConfidenceScore),
	)

	return nil
}

func (c *Client) CreateAgentResponse(r *models.AgentResponse) error {
	query := `
		INSERT INTO agent_responses (id, query_id, agent_type, role, confidence,
			requires_human_verification, payload, verification_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		r.ID,
		r.QueryID,
		r.AgentType,
		r.Role,
		r.Confidence,
		boolToInt(r.RequiresHumanVerification),
		r.Payload,
		r.VerificationStatus,
		r.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to create agent response: %w", err)
	}

	logger.Debug("Agent response created",
		zap.String("response_id", r.ID),
		zap.String("query_id", r.QueryID),
		zap.String("agent_type", r.AgentType),
		zap.String("role", r.Role),
	)

	return nil
}

func (c *Client) ListAgentResponses(queryID string) ([]models.AgentResponse, error) {
	query := `
		SELECT id, query_id, agent_type, role, confidence, requires_human_verification,
			payload, verification_status, created_at
		FROM agent_responses
		WHERE query_id = ?
		ORDER BY created_at ASC
	`

	rows, err := c.db.Query(query, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent responses: %w", err)
	}
	defer rows.Close()

	var responses []models.AgentResponse
	for rows.Next() {
		var r models.AgentResponse
		var requiresHuman int
		var createdAt int64

		err := rows.Scan(
			&r.ID,
			&r.QueryID,
			&r.AgentType,
			&r.Role,
			&r.Confidence,
			&requiresHuman,
			&r.Payload,
			&r.VerificationStatus,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.RequiresHumanVerification = requiresHuman == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		responses = append(responses, r)
	}

	return responses, nil
}

func (c *Client) CreateVerification(v *models.Verification) error {
	query := `
		INSERT INTO verifications (id, query_id, primary_response_id, verifying_response_id,
			consensus_reached, discrepancies, final_confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		v.ID,
		v.QueryID,
		v.PrimaryResponseID,
		v.VerifyingResponseID,
		boolToInt(v.ConsensusReached),
		v.Discrepancies,
		v.FinalConfidence,
		v.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}

	return nil
}

func (c *Client) ListVerifications(queryID string) ([]models.Verification, error) {
	query := `
		SELECT id, query_id, primary_response_id, verifying_response_id,
			consensus_reached, discrepancies, final_confidence, created_at
		FROM verifications
		WHERE query_id = ?
		ORDER BY created_at ASC
	`

	rows, err := c.db.Query(query, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}
	defer rows.Close()

	var verifications []models.Verification
	for rows.Next() {
		var v models.Verification
		var consensus int
		var createdAt int64

		err := rows.Scan(
			&v.ID,
			&v.QueryID,
			&v.PrimaryResponseID,
			&v.VerifyingResponseID,
			&consensus,
			&v.Discrepancies,
			&v.FinalConfidence,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		v.ConsensusReached = consensus == 1
		v.CreatedAt = time.Unix(createdAt, 0)
		verifications = append(verifications, v)
	}

	return verifications, nil
}

func (c *Client) UpsertAgentStatus(s *models.AgentStatus) error {
	query := `
		INSERT INTO agent_statuses (agent_type, status, last_heartbeat, rolling_confidence,
			total_queries, successful_queries, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_type) DO UPDATE SET
			status = excluded.status,
			last_heartbeat = excluded.last_heartbeat,
			rolling_confidence = excluded.rolling_confidence,
			total_queries = excluded.total_queries,
			successful_queries = excluded.successful_queries,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		s.AgentType,
		s.Status,
		s.LastHeartbeat.Unix(),
		s.RollingConfidence,
		s.TotalQueries,
		s.SuccessfulQueries,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert agent status: %w", err)
	}

	return nil
}

func (c *Client) GetAgentStatus(agentType string) (*models.AgentStatus, error) {
	query := `
		SELECT agent_type, status, last_heartbeat, rolling_confidence,
			total_queries, successful_queries, updated_at
		FROM agent_statuses WHERE agent_type = ?
	`

	var s models.AgentStatus
	var lastHeartbeat, updatedAt int64

	err := c.db.QueryRow(query, agentType).Scan(
		&s.AgentType,
		&s.Status,
		&lastHeartbeat,
		&s.RollingConfidence,
		&s.TotalQueries,
		&s.SuccessfulQueries,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent status: %w", err)
	}

	s.LastHeartbeat = time.Unix(lastHeartbeat, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)

	return &s, nil
}

func (c *Client) ListAgentStatuses() ([]models.AgentStatus, error) {
	query := `
		SELECT agent_type, status, last_heartbeat, rolling_confidence,
			total_queries, successful_queries, updated_at
		FROM agent_statuses
		ORDER BY agent_type ASC
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.AgentStatus
	for rows.Next() {
		var s models.AgentStatus
		var lastHeartbeat, updatedAt int64

		err := rows.Scan(
			&s.AgentType,
			&s.Status,
			&lastHeartbeat,
			&s.RollingConfidence,
			&s.TotalQueries,
			&s.SuccessfulQueries,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.LastHeartbeat = time.Unix(lastHeartbeat, 0)
		s.UpdatedAt = time.Unix(updatedAt, 0)
		statuses = append(statuses, s)
	}

	return statuses, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
