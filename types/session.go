package types

import (
	"time"

	"github.com/google/uuid"
)

// EngagementMode is the protocol governing how team members take turns
// responding within an iteration.
type EngagementMode string

const (
	ModeSequential EngagementMode = "sequential" // one respondent per iteration
	ModeParallel   EngagementMode = "parallel"   // all respondents at once
	ModeDebate     EngagementMode = "debate"     // ordered round, later speakers see earlier replies
	ModeConsensus  EngagementMode = "consensus"  // repeated rounds until convergence
)

// Valid reports whether m names a known engagement mode.
func (m EngagementMode) Valid() bool {
	switch m {
	case ModeSequential, ModeParallel, ModeDebate, ModeConsensus:
		return true
	}
	return false
}

// SessionStatus is the session lifecycle state. Transitions are
// Active -> Completed or Active -> Failed only; terminal states accept no
// further iterations.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// Session binds a team to an engagement mode and tracks iteration progress.
// Mode is fixed at creation. CurrentIteration counts rounds attempted, not
// rounds successfully completed, and is monotonically non-decreasing.
type Session struct {
	ID               uuid.UUID      `json:"session_id"`
	TeamID           uuid.UUID      `json:"team_id"`
	Mode             EngagementMode `json:"engagement_mode"`
	MaxIterations    int            `json:"max_iterations"`
	CurrentIteration int            `json:"current_iteration"`
	Status           SessionStatus  `json:"status"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
}

// Active reports whether the session still accepts iterations.
func (s *Session) Active() bool {
	return s.Status == StatusActive
}

// Expired reports whether the session's expiry timestamp has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}
