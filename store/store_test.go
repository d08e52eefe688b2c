package store

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/parley-ai/parley/types"
)

// Both implementations must satisfy the same contract; the conformance suite
// runs against each.

type fixture struct {
	dir    Directory
	ledger Ledger
}

func storeFixtures(t *testing.T) map[string]fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	gs, err := NewGormStore(db, zap.NewNop())
	require.NoError(t, err)

	mem := NewMemory()
	return map[string]fixture{
		"memory": {dir: mem, ledger: mem},
		"gorm":   {dir: gs, ledger: gs},
	}
}

func createTeam(t *testing.T, dir Directory, personas ...string) *types.Team {
	t.Helper()
	members := make([]types.Member, 0, len(personas))
	for _, p := range personas {
		members = append(members, types.Member{Persona: p})
	}
	team, err := dir.CreateTeam(context.Background(), &types.Team{Name: "T1"}, members)
	require.NoError(t, err)
	return team
}

func TestDirectory_CreateAndResolve(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			team := createTeam(t, fx.dir, "architect", "code_writer", "reviewer")

			got, err := fx.dir.GetTeam(ctx, team.ID)
			require.NoError(t, err)
			assert.Equal(t, "T1", got.Name)

			members, err := fx.dir.Members(ctx, team.ID)
			require.NoError(t, err)
			require.Len(t, members, 3)
			// Resolution preserves insertion order.
			assert.Equal(t, "architect", members[0].Persona)
			assert.Equal(t, "code_writer", members[1].Persona)
			assert.Equal(t, "reviewer", members[2].Persona)
			assert.Equal(t, types.DefaultProvider, members[0].Provider)
		})
	}
}

func TestDirectory_DuplicatePersona(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			team := createTeam(t, fx.dir, "architect")

			_, err := fx.dir.AddMember(ctx, team.ID, &types.Member{Persona: "architect"})
			assert.Equal(t, types.ErrDuplicatePersona, types.GetErrorCode(err))

			_, err = fx.dir.CreateTeam(ctx, &types.Team{Name: "T2"}, []types.Member{
				{Persona: "dup"}, {Persona: "dup"},
			})
			assert.Equal(t, types.ErrDuplicatePersona, types.GetErrorCode(err))
		})
	}
}

func TestDirectory_AddRemoveMember(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			team := createTeam(t, fx.dir, "architect")

			mem, err := fx.dir.AddMember(ctx, team.ID, &types.Member{
				Persona:      "reviewer",
				SystemPrompt: "You are a meticulous code reviewer",
			})
			require.NoError(t, err)
			assert.Equal(t, team.ID, mem.TeamID)

			require.NoError(t, fx.dir.RemoveMember(ctx, team.ID, "architect"))

			members, err := fx.dir.Members(ctx, team.ID)
			require.NoError(t, err)
			require.Len(t, members, 1)
			assert.Equal(t, "reviewer", members[0].Persona)

			err = fx.dir.RemoveMember(ctx, team.ID, "ghost")
			assert.Equal(t, types.ErrMemberNotFound, types.GetErrorCode(err))
		})
	}
}

func TestDirectory_UpdateAndDelete(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			team := createTeam(t, fx.dir, "architect")

			updated, err := fx.dir.UpdateTeam(ctx, team.ID, "renamed", "new description")
			require.NoError(t, err)
			assert.Equal(t, "renamed", updated.Name)
			assert.Equal(t, "new description", updated.Description)

			require.NoError(t, fx.dir.DeleteTeam(ctx, team.ID))

			_, err = fx.dir.GetTeam(ctx, team.ID)
			assert.Equal(t, types.ErrTeamNotFound, types.GetErrorCode(err))
			_, err = fx.dir.Members(ctx, team.ID)
			assert.Equal(t, types.ErrTeamNotFound, types.GetErrorCode(err))
		})
	}
}

func TestDirectory_NotFound(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := fx.dir.GetTeam(ctx, uuid.New())
			assert.Equal(t, types.ErrTeamNotFound, types.GetErrorCode(err))
			_, err = fx.dir.AddMember(ctx, uuid.New(), &types.Member{Persona: "x"})
			assert.Equal(t, types.ErrTeamNotFound, types.GetErrorCode(err))
		})
	}
}

func newSession(t *testing.T, ledger Ledger, maxIter int) *types.Session {
	t.Helper()
	s, err := ledger.CreateSession(context.Background(), &types.Session{
		TeamID:        uuid.New(),
		Mode:          types.ModeSequential,
		MaxIterations: maxIter,
	})
	require.NoError(t, err)
	return s
}

func TestLedger_SessionLifecycle(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession(t, fx.ledger, 5)

			assert.Equal(t, types.StatusActive, s.Status)
			assert.Equal(t, 0, s.CurrentIteration)

			got, err := fx.ledger.GetSession(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.ID, got.ID)

			require.NoError(t, fx.ledger.DeleteSession(ctx, s.ID))

			_, err = fx.ledger.GetSession(ctx, s.ID)
			assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
			_, err = fx.ledger.Messages(ctx, s.ID, nil)
			assert.Equal(t, types.ErrSessionNotFound, types.GetErrorCode(err))
		})
	}
}

func TestLedger_BeginIteration(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession(t, fx.ledger, 5)

			updated, userMsg, err := fx.ledger.BeginIteration(ctx, s.ID, "design X", map[string]any{"k": "v"})
			require.NoError(t, err)

			assert.Equal(t, 1, updated.CurrentIteration)
			assert.Equal(t, 1, userMsg.Iteration)
			assert.Equal(t, 0, userMsg.TurnOrder)
			assert.Equal(t, types.RoleUser, userMsg.Role)
			assert.Equal(t, "design X", userMsg.Content)
			assert.NotZero(t, userMsg.ID)

			// Counter keeps climbing across iterations.
			updated, _, err = fx.ledger.BeginIteration(ctx, s.ID, "more", nil)
			require.NoError(t, err)
			assert.Equal(t, 2, updated.CurrentIteration)
		})
	}
}

func TestLedger_BeginIterationInactive(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession(t, fx.ledger, 1)

			_, _, err := fx.ledger.BeginIteration(ctx, s.ID, "one", nil)
			require.NoError(t, err)
			require.NoError(t, fx.ledger.CommitResponses(ctx, s.ID, nil, types.StatusCompleted))

			_, _, err = fx.ledger.BeginIteration(ctx, s.ID, "two", nil)
			assert.Equal(t, types.ErrSessionNotActive, types.GetErrorCode(err))
		})
	}
}

func TestLedger_CommitResponsesAssignsIDs(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession(t, fx.ledger, 5)

			_, userMsg, err := fx.ledger.BeginIteration(ctx, s.ID, "go", nil)
			require.NoError(t, err)

			responses := []*types.Message{
				{Iteration: 1, TurnOrder: 1, Persona: "architect", Role: types.RoleAssistant, Content: "a"},
				{Iteration: 1, TurnOrder: 2, Persona: "reviewer", Role: types.RoleAssistant, Content: "b"},
			}
			require.NoError(t, fx.ledger.CommitResponses(ctx, s.ID, responses, types.StatusActive))

			// Message ids are monotonically increasing in append order.
			assert.Greater(t, responses[0].ID, userMsg.ID)
			assert.Greater(t, responses[1].ID, responses[0].ID)

			msgs, err := fx.ledger.Messages(ctx, s.ID, nil)
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			assert.Equal(t, 0, msgs[0].TurnOrder)
			assert.Equal(t, 1, msgs[1].TurnOrder)
			assert.Equal(t, 2, msgs[2].TurnOrder)
		})
	}
}

func TestLedger_MessagesIterationFilter(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession(t, fx.ledger, 5)

			for i := 0; i < 2; i++ {
				_, _, err := fx.ledger.BeginIteration(ctx, s.ID, "msg", nil)
				require.NoError(t, err)
				require.NoError(t, fx.ledger.CommitResponses(ctx, s.ID, []*types.Message{
					{Iteration: i + 1, TurnOrder: 1, Persona: "architect", Role: types.RoleAssistant, Content: "r"},
				}, types.StatusActive))
			}

			second := 2
			msgs, err := fx.ledger.Messages(ctx, s.ID, &second)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			for _, msg := range msgs {
				assert.Equal(t, 2, msg.Iteration)
			}
		})
	}
}

func TestLedger_MarkFailed(t *testing.T) {
	for name, fx := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newSession(t, fx.ledger, 5)

			require.NoError(t, fx.ledger.MarkFailed(ctx, s.ID))
			got, err := fx.ledger.GetSession(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, types.StatusFailed, got.Status)

			// Terminal states never flip back; idempotent on repeat.
			require.NoError(t, fx.ledger.MarkFailed(ctx, s.ID))
			got, err = fx.ledger.GetSession(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, types.StatusFailed, got.Status)

			_, _, err = fx.ledger.BeginIteration(ctx, s.ID, "nope", nil)
			assert.Equal(t, types.ErrSessionNotActive, types.GetErrorCode(err))
		})
	}
}
