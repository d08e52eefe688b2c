package engage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/types"
)

func TestTokenSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, tokenSimilarity("ship it now", "ship it now"))
	assert.Equal(t, 1.0, tokenSimilarity("Ship It", "ship it"))
	assert.Equal(t, 0.0, tokenSimilarity("alpha beta", "gamma delta"))
	assert.Equal(t, 1.0, tokenSimilarity("", ""))
	assert.Equal(t, 0.0, tokenSimilarity("something", ""))

	// Two of four distinct tokens shared.
	assert.InDelta(t, 0.5, tokenSimilarity("a b c", "a b d"), 1e-9)
}

func newConvergenceEngine(threshold float64) *Engine {
	cfg := config.DefaultEngageConfig()
	cfg.ConsensusThreshold = threshold
	return &Engine{cfg: cfg}
}

func reply(content string) *types.Message {
	return &types.Message{Content: content, Metadata: map[string]any{}}
}

func TestConverged_AgreementMarker(t *testing.T) {
	e := newConvergenceEngine(0.7)

	assert.True(t, e.converged([]*types.Message{
		reply("AGREE: option A"),
		reply("AGREE: option A with a caveat"),
	}))

	// One holdout blocks marker-based convergence.
	assert.False(t, e.converged([]*types.Message{
		reply("AGREE: option A"),
		reply("I still think option B is better for throughput reasons"),
	}))
}

func TestConverged_TextualSimilarity(t *testing.T) {
	e := newConvergenceEngine(0.7)

	assert.True(t, e.converged([]*types.Message{
		reply("we should use postgres for the ledger"),
		reply("we should use postgres for the ledger too"),
	}))

	assert.False(t, e.converged([]*types.Message{
		reply("we should use postgres for durability"),
		reply("an in-memory map is plenty here"),
	}))
}

func TestConverged_SentinelBlocksConvergence(t *testing.T) {
	e := newConvergenceEngine(0.7)

	sentinel := reply("AGREE: whatever")
	sentinel.Metadata[types.MetaSentinel] = "error"

	assert.False(t, e.converged([]*types.Message{
		reply("AGREE: option A"),
		sentinel,
	}))
}

func TestConverged_SingleReply(t *testing.T) {
	e := newConvergenceEngine(0.7)
	assert.True(t, e.converged([]*types.Message{reply("solo position")}))
}
