package engage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/store"
	"github.com/parley-ai/parley/types"
)

// For any team size and any subset of failing backends, a parallel iteration
// appends exactly one message per member with turn orders 1..N in team order.
func TestProperty_ParallelTurnOrderDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numMembers := rapid.IntRange(1, 6).Draw(rt, "numMembers")

		personas := make([]string, numMembers)
		for i := range personas {
			personas[i] = fmt.Sprintf("persona_%d", i)
		}

		failing := make(map[string]bool)
		for i := 0; i < numMembers; i++ {
			if rapid.Bool().Draw(rt, fmt.Sprintf("fail_%d", i)) {
				failing[personas[i]] = true
			}
		}

		mem := store.NewMemory()
		gateway := &mockGateway{respond: func(req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if failing[req.Persona] {
				return nil, types.NewError(types.ErrBackendUnavailable, "down")
			}
			return &llm.CompletionResponse{Content: "reply from " + req.Persona}, nil
		}}

		members := make([]types.Member, numMembers)
		for i, p := range personas {
			members[i] = types.Member{Persona: p}
		}
		team, err := mem.CreateTeam(context.Background(), &types.Team{Name: "prop"}, members)
		require.NoError(rt, err)

		engine := NewEngine(mem, mem, gateway, newMockKnowledge(), nil, Options{
			Engage:     config.DefaultEngageConfig(),
			SessionTTL: time.Hour,
			Logger:     zap.NewNop(),
		})

		session, _, err := engine.StartSession(context.Background(), StartParams{
			TeamID:        team.ID,
			Mode:          types.ModeParallel,
			MaxIterations: 20,
		})
		require.NoError(rt, err)

		result, err := engine.RunIteration(context.Background(), session.ID, "go", nil)
		require.NoError(rt, err)

		require.Len(rt, result.Messages, numMembers+1)
		for i, persona := range personas {
			msg := result.Messages[i+1]
			assert.Equal(rt, i+1, msg.TurnOrder)
			assert.Equal(rt, persona, msg.Persona)
			if failing[persona] {
				assert.Contains(rt, msg.Content, "[Error]")
			} else {
				assert.Equal(rt, "reply from "+persona, msg.Content)
			}
		}
	})
}

// The iteration counter increases by exactly one per call and the session
// completes on the call where the counter reaches the cap, never earlier.
func TestProperty_IterationCounterMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxIterations := rapid.IntRange(1, 8).Draw(rt, "maxIterations")
		mode := rapid.SampledFrom([]types.EngagementMode{
			types.ModeSequential, types.ModeParallel, types.ModeDebate,
		}).Draw(rt, "mode")

		mem := store.NewMemory()
		team, err := mem.CreateTeam(context.Background(), &types.Team{Name: "prop"},
			[]types.Member{{Persona: "a"}, {Persona: "b"}})
		require.NoError(rt, err)

		engine := NewEngine(mem, mem, &mockGateway{}, newMockKnowledge(), nil, Options{
			Engage:     config.DefaultEngageConfig(),
			SessionTTL: time.Hour,
			Logger:     zap.NewNop(),
		})

		session, _, err := engine.StartSession(context.Background(), StartParams{
			TeamID:        team.ID,
			Mode:          mode,
			MaxIterations: maxIterations,
		})
		require.NoError(rt, err)

		for i := 1; i <= maxIterations; i++ {
			result, err := engine.RunIteration(context.Background(), session.ID, "msg", nil)
			require.NoError(rt, err)
			assert.Equal(rt, i, result.Session.CurrentIteration)

			if i < maxIterations {
				assert.Equal(rt, types.StatusActive, result.Session.Status)
			} else {
				assert.Equal(rt, types.StatusCompleted, result.Session.Status)
			}
		}

		_, err = engine.RunIteration(context.Background(), session.ID, "over", nil)
		assert.Equal(rt, types.ErrSessionNotActive, types.GetErrorCode(err))
	})
}

// Token similarity is symmetric, bounded to [0,1], and reflexive.
func TestProperty_TokenSimilarity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.StringMatching(`[a-c ]{0,30}`).Draw(rt, "a")
		b := rapid.StringMatching(`[a-c ]{0,30}`).Draw(rt, "b")

		ab := tokenSimilarity(a, b)
		ba := tokenSimilarity(b, a)

		assert.Equal(rt, ab, ba)
		assert.GreaterOrEqual(rt, ab, 0.0)
		assert.LessOrEqual(rt, ab, 1.0)
		assert.Equal(rt, 1.0, tokenSimilarity(a, a))
	})
}
