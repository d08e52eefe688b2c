package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/types"
)

// CreateTeamRequest creates a team, optionally with its initial members.
type CreateTeamRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Members     []MemberSpec `json:"members,omitempty"`
}

// UpdateTeamRequest renames a team or replaces its description.
type UpdateTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MemberSpec describes one persona to add to a team.
type MemberSpec struct {
	Persona      string         `json:"persona"`
	Provider     string         `json:"provider,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
}

// MemberResponse is one team member as returned by the API.
type MemberResponse struct {
	Persona      string    `json:"persona"`
	Provider     string    `json:"provider"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TeamResponse is a team with its resolved members.
type TeamResponse struct {
	ID          uuid.UUID        `json:"team_id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Members     []MemberResponse `json:"members"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewTeamResponse maps a domain team and its members to the API shape.
func NewTeamResponse(team *types.Team, members []types.Member) TeamResponse {
	resp := TeamResponse{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		Members:     make([]MemberResponse, 0, len(members)),
		CreatedAt:   team.CreatedAt,
		UpdatedAt:   team.UpdatedAt,
	}
	for _, m := range members {
		resp.Members = append(resp.Members, MemberResponse{
			Persona:      m.Persona,
			Provider:     m.Provider,
			SystemPrompt: m.SystemPrompt,
			CreatedAt:    m.CreatedAt,
		})
	}
	return resp
}

// StartChatRequest opens a session binding a team to an engagement mode.
type StartChatRequest struct {
	Mode           types.EngagementMode `json:"engagement_mode"`
	MaxIterations  int                  `json:"max_iterations,omitempty"`
	EnableRAG      bool                 `json:"enable_rag,omitempty"`
	InitialMessage string               `json:"initial_message,omitempty"`
}

// SendMessageRequest runs one iteration with the given user content.
type SendMessageRequest struct {
	Content    string                  `json:"content"`
	RAGOptions *types.RetrievalOptions `json:"rag_options,omitempty"`
}

// ChatMessageResponse is one ledger message as returned by the API.
type ChatMessageResponse struct {
	ID        int64          `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	Iteration int            `json:"iteration"`
	Turn      int            `json:"turn"`
	Persona   string         `json:"persona,omitempty"`
	Role      types.Role     `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewChatMessageResponse maps a ledger message to the API shape.
func NewChatMessageResponse(msg *types.Message) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Iteration: msg.Iteration,
		Turn:      msg.TurnOrder,
		Persona:   msg.Persona,
		Role:      msg.Role,
		Content:   msg.Content,
		Metadata:  msg.Metadata,
		CreatedAt: msg.CreatedAt,
	}
}

// ChatResult is one iteration's outcome: the canonical response plus every
// message appended during the iteration, in turn order.
type ChatResult struct {
	Session   *types.Session        `json:"session"`
	Canonical ChatMessageResponse   `json:"response"`
	Messages  []ChatMessageResponse `json:"messages"`
}
