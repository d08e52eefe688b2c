package types

// RetrievalMode controls when knowledge retrieval runs for a message.
type RetrievalMode string

const (
	RetrievalAuto    RetrievalMode = "auto"
	RetrievalForce   RetrievalMode = "force"
	RetrievalDisable RetrievalMode = "disable"
)

// RetrievalOptions configures knowledge retrieval for a single message.
type RetrievalOptions struct {
	Enabled       bool          `json:"enable_rag"`
	Mode          RetrievalMode `json:"rag_mode"`
	Categories    []string      `json:"knowledge_types"`
	MinConfidence float64       `json:"min_confidence"`
}

// DefaultRetrievalOptions returns the retrieval defaults: enabled, auto mode,
// the standard category set, and a 0.7 confidence floor.
func DefaultRetrievalOptions() *RetrievalOptions {
	return &RetrievalOptions{
		Enabled:       true,
		Mode:          RetrievalAuto,
		Categories:    []string{"sme_docs", "patterns", "history"},
		MinConfidence: 0.7,
	}
}

// Normalize fills zero values with defaults so downstream code never sees an
// empty category set or an unnamed mode.
func (o *RetrievalOptions) Normalize() {
	if o.Mode == "" {
		o.Mode = RetrievalAuto
	}
	if len(o.Categories) == 0 {
		o.Categories = []string{"sme_docs", "patterns", "history"}
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = 0.7
	}
}

// Active reports whether retrieval should run under these options.
func (o *RetrievalOptions) Active() bool {
	if o == nil {
		return false
	}
	return o.Enabled && o.Mode != RetrievalDisable
}

// Insight is one retrieved knowledge record.
type Insight struct {
	DocID     string  `json:"doc_id"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
	Source    string  `json:"source_type"`
}

// RetrievalResult is the knowledge gateway's answer to a query. An empty
// insight list is not an error; Err annotates transport failures that were
// degraded to empty results.
type RetrievalResult struct {
	Insights []Insight `json:"results"`
	Total    int       `json:"total"`
	Query    string    `json:"query"`
	Err      string    `json:"error,omitempty"`
}

// HistoryEntry is one prior conversation turn returned by a context fetch.
type HistoryEntry struct {
	Persona string `json:"persona"`
	Message string `json:"message"`
}

// TeamContextEntry is one teammate interaction surfaced in team context.
type TeamContextEntry struct {
	Persona  string `json:"persona"`
	Response string `json:"response"`
}

// TeamContext carries recent team-wide discussion for prompt assembly.
type TeamContext struct {
	Messages []TeamContextEntry `json:"messages"`
}

// KnowledgeContext is the per-persona context fetched before generation.
type KnowledgeContext struct {
	ConversationHistory []HistoryEntry `json:"conversation_history"`
	TeamContext         TeamContext    `json:"team_context"`
}
