// Package rag provides the knowledge gateway: a client for the rag-service
// that enriches persona prompts with retrieved knowledge and stored
// conversation context.
//
// Retrieval is best-effort enrichment, never a hard dependency: Query and
// FetchContext degrade to empty results on transport failure instead of
// surfacing an error, and StoreInteraction reports success as a bool.
package rag

import (
	"context"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/types"
)

// QueryRequest asks a persona's knowledge base for relevant insights.
type QueryRequest struct {
	Persona       string   `json:"-"`
	Query         string   `json:"query"`
	Categories    []string `json:"collections"`
	TopK          int      `json:"top_k"`
	MinConfidence float64  `json:"min_confidence"`
}

// Interaction is one persona turn stored back for future context.
type Interaction struct {
	Persona   string          `json:"persona"`
	SessionID uuid.UUID       `json:"session_id"`
	TeamID    uuid.UUID       `json:"team_id"`
	Iteration int             `json:"iteration"`
	Turn      int             `json:"turn"`
	Message   string          `json:"message"`
	Response  string          `json:"response"`
	Insights  []types.Insight `json:"rag_insights,omitempty"`
}

// Client is the knowledge gateway contract.
type Client interface {
	// Query searches the persona's knowledge base. It never fails: transport
	// errors yield an empty result annotated with Err.
	Query(ctx context.Context, req *QueryRequest) *types.RetrievalResult

	// FetchContext retrieves prior conversation and team context for one
	// persona/session/iteration. Empty on failure.
	FetchContext(ctx context.Context, persona string, sessionID uuid.UUID, iteration int) *types.KnowledgeContext

	// StoreInteraction persists a persona turn for future context fetches.
	StoreInteraction(ctx context.Context, in *Interaction) bool

	// HealthCheck probes the backend.
	HealthCheck(ctx context.Context) error
}
