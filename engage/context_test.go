package engage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/types"
)

func TestBuildPrompt_AllSections(t *testing.T) {
	cfg := config.DefaultEngageConfig()

	prompt := buildPrompt(promptInput{
		History: []types.HistoryEntry{
			{Persona: "architect", Message: "start with the data model"},
			{Message: "what about caching?"},
		},
		Insights: []types.Insight{
			{Content: "prefer read-through caches", Source: "patterns"},
			{Content: "ttl should match staleness tolerance"},
		},
		Team: []types.TeamContextEntry{
			{Persona: "reviewer", Response: "the model looks sound"},
		},
		Request: "finalize the design",
	}, cfg)

	lines := strings.Split(prompt, "\n")
	assert.Equal(t, "# Conversation History", lines[0])
	assert.Equal(t, "- architect: start with the data model", lines[1])
	// Anonymous history entries render as User.
	assert.Equal(t, "- User: what about caching?", lines[2])
	assert.Contains(t, prompt, "# Relevant Knowledge")
	assert.Contains(t, prompt, "- (patterns) prefer read-through caches")
	// Unknown insight sources get a placeholder.
	assert.Contains(t, prompt, "- (unknown) ttl should match staleness tolerance")
	assert.Contains(t, prompt, "# Team Discussion")
	assert.Contains(t, prompt, "- reviewer: the model looks sound")
	assert.True(t, strings.HasSuffix(prompt, "# Current Request\nfinalize the design"))

	// Sections appear in fixed order.
	hist := strings.Index(prompt, "# Conversation History")
	knowledge := strings.Index(prompt, "# Relevant Knowledge")
	team := strings.Index(prompt, "# Team Discussion")
	request := strings.Index(prompt, "# Current Request")
	assert.True(t, hist < knowledge && knowledge < team && team < request)
}

func TestBuildPrompt_EmptySectionsOmitted(t *testing.T) {
	prompt := buildPrompt(promptInput{Request: "just the question"}, config.DefaultEngageConfig())

	assert.Equal(t, "\n# Current Request\njust the question", prompt)
	assert.NotContains(t, prompt, "# Conversation History")
	assert.NotContains(t, prompt, "# Relevant Knowledge")
	assert.NotContains(t, prompt, "# Team Discussion")
}

func TestBuildPrompt_Budgets(t *testing.T) {
	cfg := config.DefaultEngageConfig()

	var history []types.HistoryEntry
	for i := 0; i < 10; i++ {
		history = append(history, types.HistoryEntry{Persona: "p", Message: strings.Repeat("x", 300)})
	}
	var insights []types.Insight
	for i := 0; i < 6; i++ {
		insights = append(insights, types.Insight{Content: strings.Repeat("y", 300), Source: "docs"})
	}

	prompt := buildPrompt(promptInput{History: history, Insights: insights, Request: "q"}, cfg)

	// Only the last HistoryEntries turns and the first InsightEntries
	// insights survive, each truncated.
	assert.Equal(t, cfg.HistoryEntries, strings.Count(prompt, "- p: "))
	assert.Equal(t, cfg.InsightEntries, strings.Count(prompt, "- (docs) "))
	assert.NotContains(t, prompt, strings.Repeat("x", cfg.HistoryTruncate+1))
	assert.NotContains(t, prompt, strings.Repeat("y", cfg.InsightTruncate+1))
	assert.Contains(t, prompt, strings.Repeat("x", cfg.HistoryTruncate)+"...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "lon...", truncate("longer", 3))
	assert.Equal(t, "unbounded", truncate("unbounded", 0))
	// Rune-safe on multibyte input.
	assert.Equal(t, "héllo", truncate("héllo", 5))
	assert.Equal(t, "hé...", truncate("héllo!", 2))
}

func TestLastN(t *testing.T) {
	entries := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{4, 5}, lastN(entries, 2))
	assert.Equal(t, entries, lastN(entries, 10))
	assert.Equal(t, entries, lastN(entries, 0))
}
