package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/api"
	"github.com/parley-ai/parley/engage"
	"github.com/parley-ai/parley/store"
	"github.com/parley-ai/parley/types"
)

// ChatHandler serves the chat session endpoints.
type ChatHandler struct {
	engine *engage.Engine
	ledger store.Ledger
	logger *zap.Logger
}

// NewChatHandler creates the chat handler.
func NewChatHandler(engine *engage.Engine, ledger store.Ledger, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		ledger: ledger,
		logger: logger.With(zap.String("component", "chat_handler")),
	}
}

// HandleStartSession handles POST /api/v2/chat/teams/{id}/sessions.
func (h *ChatHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req api.StartChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Mode == "" {
		req.Mode = types.ModeSequential
	}

	session, result, err := h.engine.StartSession(r.Context(), engage.StartParams{
		TeamID:         teamID,
		Mode:           req.Mode,
		MaxIterations:  req.MaxIterations,
		EnableRAG:      req.EnableRAG,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	if result == nil {
		WriteCreated(w, session)
		return
	}
	WriteCreated(w, chatResult(result))
}

// HandleSendMessage handles POST /api/v2/chat/sessions/{id}/message.
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req api.SendMessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "message content is required"), h.logger)
		return
	}

	start := time.Now()
	result, err := h.engine.RunIteration(r.Context(), sessionID, req.Content, req.RAGOptions)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("message processed",
		zap.String("session_id", sessionID.String()),
		zap.String("mode", string(result.Session.Mode)),
		zap.Int("iteration", result.Session.CurrentIteration),
		zap.Duration("duration", time.Since(start)))

	WriteSuccess(w, chatResult(result))
}

// HandleGetSession handles GET /api/v2/chat/sessions/{id}.
func (h *ChatHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	session, err := h.ledger.GetSession(r.Context(), sessionID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, session)
}

// HandleGetMessages handles GET /api/v2/chat/sessions/{id}/messages with an
// optional ?iteration= filter.
func (h *ChatHandler) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var iteration *int
	if raw := r.URL.Query().Get("iteration"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			WriteError(w, types.Errorf(types.ErrInvalidRequest, "invalid iteration: %q", raw), h.logger)
			return
		}
		iteration = &n
	}

	messages, err := h.ledger.Messages(r.Context(), sessionID, iteration)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	resp := make([]api.ChatMessageResponse, 0, len(messages))
	for i := range messages {
		resp = append(resp, api.NewChatMessageResponse(&messages[i]))
	}
	WriteSuccess(w, resp)
}

// HandleDeleteSession handles DELETE /api/v2/chat/sessions/{id}.
func (h *ChatHandler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.ledger.DeleteSession(r.Context(), sessionID); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("session deleted", zap.String("session_id", sessionID.String()))
	WriteSuccess(w, map[string]any{"deleted": true})
}

func chatResult(result *engage.Result) api.ChatResult {
	messages := make([]api.ChatMessageResponse, 0, len(result.Messages))
	for _, msg := range result.Messages {
		messages = append(messages, api.NewChatMessageResponse(msg))
	}
	return api.ChatResult{
		Session:   result.Session,
		Canonical: api.NewChatMessageResponse(result.Canonical),
		Messages:  messages,
	}
}
