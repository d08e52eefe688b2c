package types

import (
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a session's conversation ledger.
//
// IDs are globally unique and monotonically increasing; the ledger is their
// sole writer. TurnOrder defines replay order within an iteration: turn 0 is
// the triggering user message, turns 1..N are persona responses. Persona is
// empty for user and system messages.
type Message struct {
	ID        int64          `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	Iteration int            `json:"iteration"`
	TurnOrder int            `json:"turn_order"`
	Persona   string         `json:"persona,omitempty"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Metadata keys carried on ledger messages.
const (
	MetaRAGUsed      = "rag_used"      // bool, retrieval ran for this reply
	MetaRAGError     = "rag_error"     // string, retrieval degraded to empty
	MetaRAGInsights  = "rag_insights"  // []Insight payload
	MetaSentinel     = "sentinel"      // string, "error" or "timeout"
	MetaMode         = "engagement_mode"
	MetaConverged    = "converged"     // bool, consensus outcome
	MetaRounds       = "rounds"        // int, consensus rounds run
	MetaDebateRound  = "debate_round_size"
	MetaRetrievalCfg = "rag_options"
)
