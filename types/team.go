package types

import (
	"time"

	"github.com/google/uuid"
)

// Member is a persona bound to a team. Persona names are unique within a
// team; members are appended in order and never reordered.
type Member struct {
	ID           int64          `json:"id"`
	TeamID       uuid.UUID      `json:"team_id"`
	Persona      string         `json:"persona"`
	Provider     string         `json:"provider"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Team groups an ordered set of persona members.
type Team struct {
	ID          uuid.UUID `json:"team_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultProvider is used when a member does not name a backend provider.
const DefaultProvider = "claude_agent"
