// Package store provides the team directory and the conversation ledger.
//
// The directory resolves teams to their ordered persona members; the ledger
// is the append-only per-session message log and the sole writer of message
// identifiers and session status transitions. Both ship with an in-memory
// implementation and a gorm-backed durable one, selected by configuration.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/types"
)

// Directory manages teams and their members. Members keep insertion order;
// persona names are unique within a team.
type Directory interface {
	CreateTeam(ctx context.Context, team *types.Team, members []types.Member) (*types.Team, error)
	GetTeam(ctx context.Context, id uuid.UUID) (*types.Team, error)
	ListTeams(ctx context.Context) ([]types.Team, error)
	UpdateTeam(ctx context.Context, id uuid.UUID, name, description string) (*types.Team, error)
	DeleteTeam(ctx context.Context, id uuid.UUID) error

	AddMember(ctx context.Context, teamID uuid.UUID, member *types.Member) (*types.Member, error)
	RemoveMember(ctx context.Context, teamID uuid.UUID, persona string) error

	// Members resolves a team to its ordered member list.
	Members(ctx context.Context, teamID uuid.UUID) ([]types.Member, error)
}

// Ledger owns session state and the per-session message log.
//
// BeginIteration atomically validates that the session is active, appends the
// triggering user message as turn 0 of the next iteration, and increments the
// iteration counter. The counter therefore tracks rounds attempted: it is
// never rolled back when the protocol later degrades.
//
// CommitResponses appends the iteration's persona messages in the given turn
// order and applies the final session status in the same transaction.
type Ledger interface {
	CreateSession(ctx context.Context, session *types.Session) (*types.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*types.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	BeginIteration(ctx context.Context, sessionID uuid.UUID, userContent string, meta map[string]any) (*types.Session, *types.Message, error)
	CommitResponses(ctx context.Context, sessionID uuid.UUID, responses []*types.Message, status types.SessionStatus) error

	// MarkFailed transitions the session to Failed after an unrecoverable
	// orchestration error. Idempotent on terminal sessions.
	MarkFailed(ctx context.Context, sessionID uuid.UUID) error

	// Messages returns the session's messages in replay order. A non-nil
	// iteration restricts the result to that iteration.
	Messages(ctx context.Context, sessionID uuid.UUID, iteration *int) ([]types.Message, error)
}

func errTeamNotFound(id uuid.UUID) error {
	return types.Errorf(types.ErrTeamNotFound, "team not found: %s", id)
}

func errSessionNotFound(id uuid.UUID) error {
	return types.Errorf(types.ErrSessionNotFound, "session not found: %s", id)
}
