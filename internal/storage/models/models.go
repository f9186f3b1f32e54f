package models

import "time"

const (
	QueryStatusPending    = "pending"
	QueryStatusProcessing = "processing"
	QueryStatusCompleted  = "completed"
	QueryStatusFailed     = "failed"
	QueryStatusNeedsHuman = "needs_human"
)

const (
	VerificationStatusPending  = "pending"
	VerificationStatusVerified = "verified"
	VerificationStatusRejected = "rejected"
)

const (
	AgentStatusOnline      = "online"
	AgentStatusOffline     = "offline"
	AgentStatusMaintenance = "maintenance"
)

const (
	ResponseRolePrimary  = "primary"
	ResponseRoleVerifier = "verifier"
)

type Query struct {
	ID                        string
	UserID                    string
	Content                   string
	AgentType                 string
	Status                    string
	ConfidenceScore           float64
	RequiresHumanVerification bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// AgentResponse rows are immutable once written. Re-verification creates
// new rows rather than editing existing ones.
type AgentResponse struct {
	ID                        string
	QueryID                   string
	AgentType                 string
	Role                      string
	Confidence                float64
	RequiresHumanVerification bool
	Payload                   string
	VerificationStatus        string
	CreatedAt                 time.Time
}

type Verification struct {
	ID                  string
	QueryID             string
	PrimaryResponseID   string
	VerifyingResponseID string
	ConsensusReached    bool
	Discrepancies       string
	FinalConfidence     float64
	CreatedAt           time.Time
}

type AgentStatus struct {
	AgentType         string
	Status            string
	LastHeartbeat     time.Time
	RollingConfidence float64
	TotalQueries      int
	SuccessfulQueries int
	UpdatedAt         time.Time
}
