// Package engage implements the engagement orchestrator: it executes one
// protocol iteration per user message against a session's team, appending the
// resulting persona messages to the conversation ledger.
//
// The orchestrator owns no durable state. It reads the session and team,
// computes the iteration's message delta, and hands it to the ledger to
// commit atomically. Iterations for the same session are serialized; backend
// failures degrade to sentinel replies so the transcript stays complete.
package engage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/internal/metrics"
	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/rag"
	"github.com/parley-ai/parley/store"
	"github.com/parley-ai/parley/types"
)

// Options carries the engine's tunables, assembled from configuration.
type Options struct {
	Engage        config.EngageConfig
	Temperature   float32
	MaxTokens     int
	TopK          int
	MinConfidence float64
	SessionTTL    time.Duration
	Collector     *metrics.Collector
	Logger        *zap.Logger
}

// Engine dispatches user messages to the session's engagement protocol.
type Engine struct {
	directory store.Directory
	ledger    store.Ledger
	gateway   llm.Gateway
	knowledge rag.Client
	writeback *Writeback

	cfg       config.EngageConfig
	temp      float32
	maxTokens int
	topK      int
	minConf   float64
	ttl       time.Duration

	locks     *sessionLocks
	collector *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine wires the orchestrator. The writeback queue may be nil, in which
// case interactions are not stored back into the knowledge gateway.
func NewEngine(directory store.Directory, ledger store.Ledger, gateway llm.Gateway, knowledge rag.Client, writeback *Writeback, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		directory: directory,
		ledger:    ledger,
		gateway:   gateway,
		knowledge: knowledge,
		writeback: writeback,
		cfg:       opts.Engage,
		temp:      opts.Temperature,
		maxTokens: opts.MaxTokens,
		topK:      opts.TopK,
		minConf:   opts.MinConfidence,
		ttl:       opts.SessionTTL,
		locks:     newSessionLocks(),
		collector: opts.Collector,
		logger:    logger.With(zap.String("component", "engage")),
		now:       time.Now,
	}
}

// Result is one iteration's outcome: the protocol's canonical response plus
// every message the iteration appended to the ledger, in turn order.
type Result struct {
	Session   *types.Session
	Canonical *types.Message
	Messages  []*types.Message
}

// StartParams describes a new session.
type StartParams struct {
	TeamID         uuid.UUID
	Mode           types.EngagementMode
	MaxIterations  int
	EnableRAG      bool
	InitialMessage string
}

// StartSession validates the request, creates the session, and — when an
// initial message is given — runs its first iteration. The returned Result is
// nil when no initial message was provided.
func (e *Engine) StartSession(ctx context.Context, p StartParams) (*types.Session, *Result, error) {
	if !p.Mode.Valid() {
		return nil, nil, types.Errorf(types.ErrInvalidRequest, "invalid engagement mode: %q", p.Mode)
	}
	if p.MaxIterations == 0 {
		p.MaxIterations = 5
	}
	if p.MaxIterations < 1 || p.MaxIterations > e.cfg.MaxIterationsCap {
		return nil, nil, types.Errorf(types.ErrInvalidRequest,
			"max_iterations must be between 1 and %d, got %d", e.cfg.MaxIterationsCap, p.MaxIterations)
	}

	if _, err := e.directory.GetTeam(ctx, p.TeamID); err != nil {
		return nil, nil, err
	}

	session := &types.Session{
		TeamID:        p.TeamID,
		Mode:          p.Mode,
		MaxIterations: p.MaxIterations,
		Metadata:      map[string]any{"enable_rag": p.EnableRAG},
	}
	if e.ttl > 0 {
		expires := e.now().Add(e.ttl)
		session.ExpiresAt = &expires
	}

	session, err := e.ledger.CreateSession(ctx, session)
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("session created",
		zap.String("session_id", session.ID.String()),
		zap.String("team_id", p.TeamID.String()),
		zap.String("mode", string(p.Mode)),
		zap.Int("max_iterations", p.MaxIterations))

	if p.InitialMessage == "" {
		return session, nil, nil
	}

	var opts *types.RetrievalOptions
	if p.EnableRAG {
		opts = types.DefaultRetrievalOptions()
	}
	result, err := e.RunIteration(ctx, session.ID, p.InitialMessage, opts)
	if err != nil {
		return nil, nil, err
	}
	return result.Session, result, nil
}

// RunIteration executes exactly one protocol iteration for the session:
// validate, append the user message and advance the iteration counter, run
// the mode's executor, then commit the persona responses together with the
// completion check. Calls for the same session are serialized.
func (e *Engine) RunIteration(ctx context.Context, sessionID uuid.UUID, content string, opts *types.RetrievalOptions) (*Result, error) {
	release := e.locks.acquire(sessionID)
	defer release()

	session, err := e.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, types.Errorf(types.ErrSessionNotActive, "session %s is %s", sessionID, session.Status)
	}
	if session.Expired(e.now()) {
		return nil, types.Errorf(types.ErrSessionNotActive, "session %s has expired", sessionID)
	}

	members, err := e.directory.Members(ctx, session.TeamID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, types.Errorf(types.ErrNoMembers, "team %s has no members", session.TeamID)
	}

	ropts := e.retrievalOptions(session, opts)

	meta := map[string]any{types.MetaMode: string(session.Mode)}
	if opts != nil {
		meta[types.MetaRetrievalCfg] = opts
	}

	session, userMsg, err := e.ledger.BeginIteration(ctx, sessionID, content, meta)
	if err != nil {
		return nil, err
	}

	start := e.now()
	iterCtx := ctx
	if e.cfg.IterationTimeout > 0 {
		var cancel context.CancelFunc
		iterCtx, cancel = context.WithTimeout(ctx, e.cfg.IterationTimeout)
		defer cancel()
	}

	var responses []*types.Message
	var canonical *types.Message
	switch session.Mode {
	case types.ModeSequential:
		responses, canonical = e.runSequential(iterCtx, session, members, content, ropts)
	case types.ModeParallel:
		responses, canonical = e.runParallel(iterCtx, session, members, content, ropts)
	case types.ModeDebate:
		responses, canonical = e.runDebate(iterCtx, session, members, content, ropts)
	case types.ModeConsensus:
		responses, canonical = e.runConsensus(iterCtx, session, members, content, ropts)
	default:
		// Mode is validated at session creation; reaching here means state
		// corruption.
		if ferr := e.ledger.MarkFailed(ctx, sessionID); ferr != nil {
			e.logger.Error("failed to mark session failed", zap.Error(ferr))
		}
		return nil, types.Errorf(types.ErrOrchestration, "unknown engagement mode: %q", session.Mode)
	}

	status := types.StatusActive
	if session.CurrentIteration >= session.MaxIterations {
		status = types.StatusCompleted
	}

	if err := e.ledger.CommitResponses(ctx, sessionID, responses, status); err != nil {
		if ferr := e.ledger.MarkFailed(ctx, sessionID); ferr != nil {
			e.logger.Error("failed to mark session failed", zap.Error(ferr))
		}
		return nil, types.NewError(types.ErrOrchestration, "failed to commit iteration").WithCause(err)
	}
	session.Status = status

	e.collector.RecordIteration(string(session.Mode), string(status), e.now().Sub(start))
	e.logger.Info("iteration complete",
		zap.String("session_id", sessionID.String()),
		zap.String("mode", string(session.Mode)),
		zap.Int("iteration", session.CurrentIteration),
		zap.Int("responses", len(responses)),
		zap.String("status", string(status)))

	messages := make([]*types.Message, 0, len(responses)+1)
	messages = append(messages, userMsg)
	messages = append(messages, responses...)

	return &Result{Session: session, Canonical: canonical, Messages: messages}, nil
}

// retrievalOptions merges the per-message options with the session's default
// RAG flag. Per-message options win when present.
func (e *Engine) retrievalOptions(session *types.Session, opts *types.RetrievalOptions) *types.RetrievalOptions {
	if opts == nil {
		enabled, _ := session.Metadata["enable_rag"].(bool)
		if !enabled {
			return nil
		}
		opts = types.DefaultRetrievalOptions()
	} else {
		o := *opts
		opts = &o
	}
	opts.Normalize()
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = e.minConf
	}
	return opts
}

// respond runs the full per-respondent pipeline: retrieve insights, fetch
// context, assemble the prompt, call the backend, and enqueue the writeback.
// It never fails; backend errors become sentinel replies.
func (e *Engine) respond(ctx context.Context, session *types.Session, member types.Member, turn int, content string, ropts *types.RetrievalOptions, transcript []types.TeamContextEntry, framing string) *types.Message {
	meta := map[string]any{
		types.MetaMode:    string(session.Mode),
		types.MetaRAGUsed: ropts.Active(),
	}

	var insights []types.Insight
	if ropts.Active() {
		result := e.knowledge.Query(ctx, &rag.QueryRequest{
			Persona:       member.Persona,
			Query:         content,
			Categories:    ropts.Categories,
			TopK:          e.topK,
			MinConfidence: ropts.MinConfidence,
		})
		if result.Err != "" {
			meta[types.MetaRAGError] = result.Err
			e.collector.RecordRAGQuery("degraded")
		} else {
			e.collector.RecordRAGQuery("ok")
		}
		insights = result.Insights
		if len(insights) > 0 {
			meta[types.MetaRAGInsights] = insights
		}
	}

	kctx := e.knowledge.FetchContext(ctx, member.Persona, session.ID, session.CurrentIteration)

	team := kctx.TeamContext.Messages
	if len(transcript) > 0 {
		team = append(append([]types.TeamContextEntry{}, team...), transcript...)
	}

	prompt := buildPrompt(promptInput{
		History:  kctx.ConversationHistory,
		Insights: insights,
		Team:     team,
		Request:  content,
	}, e.cfg)

	systemPrompt := member.SystemPrompt
	if framing != "" {
		if systemPrompt != "" {
			systemPrompt += "\n\n"
		}
		systemPrompt += framing
	}

	callStart := e.now()
	reply, err := e.gateway.Complete(ctx, &llm.CompletionRequest{
		Persona:      member.Persona,
		Messages:     []llm.ChatMessage{{Role: types.RoleUser, Content: prompt}},
		SystemPrompt: systemPrompt,
		Temperature:  e.temp,
		MaxTokens:    e.maxTokens,
	})
	callDur := e.now().Sub(callStart)

	var replyContent string
	if err != nil {
		replyContent = fmt.Sprintf("[Error] Failed to get response from LLM: %v", err)
		if types.GetErrorCode(err) == types.ErrBackendTimeout {
			meta[types.MetaSentinel] = "timeout"
		} else {
			meta[types.MetaSentinel] = "error"
		}
		e.collector.RecordPersonaCall("sentinel", callDur)
		e.logger.Error("persona completion failed",
			zap.String("session_id", session.ID.String()),
			zap.String("persona", member.Persona),
			zap.Int("turn", turn),
			zap.Error(err))
	} else {
		replyContent = reply.Content
		e.collector.RecordPersonaCall("ok", callDur)
	}

	e.writeback.Enqueue(&rag.Interaction{
		Persona:   member.Persona,
		SessionID: session.ID,
		TeamID:    session.TeamID,
		Iteration: session.CurrentIteration,
		Turn:      turn,
		Message:   content,
		Response:  replyContent,
		Insights:  insights,
	})

	return &types.Message{
		SessionID: session.ID,
		Iteration: session.CurrentIteration,
		TurnOrder: turn,
		Persona:   member.Persona,
		Role:      types.RoleAssistant,
		Content:   replyContent,
		Metadata:  meta,
	}
}
