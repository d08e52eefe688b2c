package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/types"
)

// Memory is the in-memory Directory and Ledger. Suitable for development
// and tests; state is lost on restart.
type Memory struct {
	mu sync.RWMutex

	teams    map[uuid.UUID]types.Team
	members  map[uuid.UUID][]types.Member
	sessions map[uuid.UUID]types.Session
	messages map[uuid.UUID][]types.Message

	memberID  int64
	messageID int64

	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		teams:    make(map[uuid.UUID]types.Team),
		members:  make(map[uuid.UUID][]types.Member),
		sessions: make(map[uuid.UUID]types.Session),
		messages: make(map[uuid.UUID][]types.Message),
		now:      time.Now,
	}
}

var (
	_ Directory = (*Memory)(nil)
	_ Ledger    = (*Memory)(nil)
)

// CreateTeam stores a team with its initial members.
func (m *Memory) CreateTeam(_ context.Context, team *types.Team, members []types.Member) (*types.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := *team
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := m.now()
	t.CreatedAt = now
	t.UpdatedAt = now

	seen := make(map[string]bool, len(members))
	list := make([]types.Member, 0, len(members))
	for _, mem := range members {
		if seen[mem.Persona] {
			return nil, types.Errorf(types.ErrDuplicatePersona, "persona already exists in team: %s", mem.Persona)
		}
		seen[mem.Persona] = true

		m.memberID++
		mem.ID = m.memberID
		mem.TeamID = t.ID
		if mem.Provider == "" {
			mem.Provider = types.DefaultProvider
		}
		mem.CreatedAt = now
		list = append(list, mem)
	}

	m.teams[t.ID] = t
	m.members[t.ID] = list
	return &t, nil
}

// GetTeam returns a team by id.
func (m *Memory) GetTeam(_ context.Context, id uuid.UUID) (*types.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[id]
	if !ok {
		return nil, errTeamNotFound(id)
	}
	return &t, nil
}

// ListTeams returns all teams sorted by creation time.
func (m *Memory) ListTeams(_ context.Context) ([]types.Team, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	teams := make([]types.Team, 0, len(m.teams))
	for _, t := range m.teams {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].CreatedAt.Equal(teams[j].CreatedAt) {
			return teams[i].ID.String() < teams[j].ID.String()
		}
		return teams[i].CreatedAt.Before(teams[j].CreatedAt)
	})
	return teams, nil
}

// UpdateTeam updates name and/or description; empty strings leave the field
// unchanged.
func (m *Memory) UpdateTeam(_ context.Context, id uuid.UUID, name, description string) (*types.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[id]
	if !ok {
		return nil, errTeamNotFound(id)
	}
	if name != "" {
		t.Name = name
	}
	if description != "" {
		t.Description = description
	}
	t.UpdatedAt = m.now()
	m.teams[id] = t
	return &t, nil
}

// DeleteTeam removes a team and its members.
func (m *Memory) DeleteTeam(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[id]; !ok {
		return errTeamNotFound(id)
	}
	delete(m.teams, id)
	delete(m.members, id)
	return nil
}

// AddMember appends a persona to a team.
func (m *Memory) AddMember(_ context.Context, teamID uuid.UUID, member *types.Member) (*types.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[teamID]; !ok {
		return nil, errTeamNotFound(teamID)
	}
	for _, existing := range m.members[teamID] {
		if existing.Persona == member.Persona {
			return nil, types.Errorf(types.ErrDuplicatePersona, "persona already exists in team: %s", member.Persona)
		}
	}

	mem := *member
	m.memberID++
	mem.ID = m.memberID
	mem.TeamID = teamID
	if mem.Provider == "" {
		mem.Provider = types.DefaultProvider
	}
	mem.CreatedAt = m.now()
	m.members[teamID] = append(m.members[teamID], mem)
	return &mem, nil
}

// RemoveMember deletes a persona from a team by name.
func (m *Memory) RemoveMember(_ context.Context, teamID uuid.UUID, persona string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.teams[teamID]; !ok {
		return errTeamNotFound(teamID)
	}
	list := m.members[teamID]
	for i, mem := range list {
		if mem.Persona == persona {
			m.members[teamID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return types.Errorf(types.ErrMemberNotFound, "persona not in team: %s", persona)
}

// Members resolves a team to its ordered member list.
func (m *Memory) Members(_ context.Context, teamID uuid.UUID) ([]types.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.teams[teamID]; !ok {
		return nil, errTeamNotFound(teamID)
	}
	list := m.members[teamID]
	out := make([]types.Member, len(list))
	copy(out, list)
	return out, nil
}

// CreateSession stores a new session.
func (m *Memory) CreateSession(_ context.Context, session *types.Session) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *session
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := m.now()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = types.StatusActive
	}

	m.sessions[s.ID] = s
	m.messages[s.ID] = nil
	return &s, nil
}

// GetSession returns a session by id.
func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errSessionNotFound(id)
	}
	return &s, nil
}

// DeleteSession removes a session and its messages.
func (m *Memory) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return errSessionNotFound(id)
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

// BeginIteration appends the user message as turn 0 of the next iteration
// and increments the iteration counter atomically.
func (m *Memory) BeginIteration(_ context.Context, sessionID uuid.UUID, userContent string, meta map[string]any) (*types.Session, *types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil, errSessionNotFound(sessionID)
	}
	if !s.Active() {
		return nil, nil, types.Errorf(types.ErrSessionNotActive, "session is not active: %s", s.Status)
	}

	now := m.now()
	s.CurrentIteration++
	s.UpdatedAt = now
	m.sessions[sessionID] = s

	m.messageID++
	msg := types.Message{
		ID:        m.messageID,
		SessionID: sessionID,
		Iteration: s.CurrentIteration,
		TurnOrder: 0,
		Role:      types.RoleUser,
		Content:   userContent,
		Metadata:  meta,
		CreatedAt: now,
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)

	return &s, &msg, nil
}

// CommitResponses appends persona messages and applies the final status.
func (m *Memory) CommitResponses(_ context.Context, sessionID uuid.UUID, responses []*types.Message, status types.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return errSessionNotFound(sessionID)
	}

	now := m.now()
	for _, r := range responses {
		m.messageID++
		msg := *r
		msg.ID = m.messageID
		msg.SessionID = sessionID
		msg.CreatedAt = now
		m.messages[sessionID] = append(m.messages[sessionID], msg)
		r.ID = msg.ID
		r.CreatedAt = msg.CreatedAt
	}

	s.Status = status
	s.UpdatedAt = now
	m.sessions[sessionID] = s
	return nil
}

// MarkFailed transitions an active session to Failed.
func (m *Memory) MarkFailed(_ context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return errSessionNotFound(sessionID)
	}
	if s.Active() {
		s.Status = types.StatusFailed
		s.UpdatedAt = m.now()
		m.sessions[sessionID] = s
	}
	return nil
}

// Messages returns the session's messages, optionally filtered by iteration.
func (m *Memory) Messages(_ context.Context, sessionID uuid.UUID, iteration *int) ([]types.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, errSessionNotFound(sessionID)
	}
	all := m.messages[sessionID]
	out := make([]types.Message, 0, len(all))
	for _, msg := range all {
		if iteration != nil && msg.Iteration != *iteration {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
