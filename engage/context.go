package engage

import (
	"fmt"
	"strings"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/types"
)

// promptInput is everything that goes into one persona's prompt.
type promptInput struct {
	History  []types.HistoryEntry
	Insights []types.Insight
	Team     []types.TeamContextEntry
	Request  string
}

// buildPrompt renders the prompt sections in fixed order: conversation
// history, retrieved knowledge, team discussion, then the current request
// verbatim. Empty sections are omitted entirely.
func buildPrompt(in promptInput, cfg config.EngageConfig) string {
	var parts []string

	if len(in.History) > 0 {
		parts = append(parts, "# Conversation History")
		history := lastN(in.History, cfg.HistoryEntries)
		for _, h := range history {
			persona := h.Persona
			if persona == "" {
				persona = "User"
			}
			parts = append(parts, fmt.Sprintf("- %s: %s", persona, truncate(h.Message, cfg.HistoryTruncate)))
		}
	}

	if len(in.Insights) > 0 {
		parts = append(parts, "\n# Relevant Knowledge")
		insights := in.Insights
		if cfg.InsightEntries > 0 && len(insights) > cfg.InsightEntries {
			insights = insights[:cfg.InsightEntries]
		}
		for _, ins := range insights {
			source := ins.Source
			if source == "" {
				source = "unknown"
			}
			parts = append(parts, fmt.Sprintf("- (%s) %s", source, truncate(ins.Content, cfg.InsightTruncate)))
		}
	}

	if len(in.Team) > 0 {
		parts = append(parts, "\n# Team Discussion")
		team := lastN(in.Team, cfg.TeamContextEntries)
		for _, msg := range team {
			parts = append(parts, fmt.Sprintf("- %s: %s", msg.Persona, truncate(msg.Response, cfg.InsightTruncate)))
		}
	}

	parts = append(parts, "\n# Current Request\n"+in.Request)

	return strings.Join(parts, "\n")
}

// truncate caps s at limit runes, marking the cut with an ellipsis. A
// non-positive limit disables truncation.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func lastN[T any](entries []T, n int) []T {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
