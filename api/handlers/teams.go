package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/api"
	"github.com/parley-ai/parley/store"
	"github.com/parley-ai/parley/types"
)

// TeamHandler serves the team directory endpoints.
type TeamHandler struct {
	directory store.Directory
	logger    *zap.Logger
}

// NewTeamHandler creates the team handler.
func NewTeamHandler(directory store.Directory, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{
		directory: directory,
		logger:    logger.With(zap.String("component", "team_handler")),
	}
}

// HandleCreate handles POST /api/v2/teams.
func (h *TeamHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateTeamRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "team name is required"), h.logger)
		return
	}

	members := make([]types.Member, 0, len(req.Members))
	for _, spec := range req.Members {
		if strings.TrimSpace(spec.Persona) == "" {
			WriteError(w, types.NewError(types.ErrInvalidRequest, "member persona is required"), h.logger)
			return
		}
		members = append(members, types.Member{
			Persona:      spec.Persona,
			Provider:     spec.Provider,
			SystemPrompt: spec.SystemPrompt,
			Config:       spec.Config,
		})
	}

	team, err := h.directory.CreateTeam(r.Context(), &types.Team{
		Name:        req.Name,
		Description: req.Description,
	}, members)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	resolved, err := h.directory.Members(r.Context(), team.ID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("team created",
		zap.String("team_id", team.ID.String()),
		zap.String("name", team.Name),
		zap.Int("members", len(resolved)))

	WriteCreated(w, api.NewTeamResponse(team, resolved))
}

// HandleList handles GET /api/v2/teams.
func (h *TeamHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	teams, err := h.directory.ListTeams(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	resp := make([]api.TeamResponse, 0, len(teams))
	for i := range teams {
		members, err := h.directory.Members(r.Context(), teams[i].ID)
		if err != nil {
			WriteError(w, err, h.logger)
			return
		}
		resp = append(resp, api.NewTeamResponse(&teams[i], members))
	}

	WriteSuccess(w, resp)
}

// HandleGet handles GET /api/v2/teams/{id}.
func (h *TeamHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	team, err := h.directory.GetTeam(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	members, err := h.directory.Members(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.NewTeamResponse(team, members))
}

// HandleUpdate handles PUT /api/v2/teams/{id}.
func (h *TeamHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var req api.UpdateTeamRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "team name is required"), h.logger)
		return
	}

	team, err := h.directory.UpdateTeam(r.Context(), id, req.Name, req.Description)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	members, err := h.directory.Members(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteSuccess(w, api.NewTeamResponse(team, members))
}

// HandleDelete handles DELETE /api/v2/teams/{id}.
func (h *TeamHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if err := h.directory.DeleteTeam(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("team deleted", zap.String("team_id", id.String()))
	WriteSuccess(w, map[string]any{"deleted": true})
}

// HandleAddMember handles POST /api/v2/teams/{id}/members.
func (h *TeamHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	var spec api.MemberSpec
	if err := DecodeJSONBody(w, r, &spec, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(spec.Persona) == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "member persona is required"), h.logger)
		return
	}

	member, err := h.directory.AddMember(r.Context(), id, &types.Member{
		Persona:      spec.Persona,
		Provider:     spec.Provider,
		SystemPrompt: spec.SystemPrompt,
		Config:       spec.Config,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteCreated(w, api.MemberResponse{
		Persona:      member.Persona,
		Provider:     member.Provider,
		SystemPrompt: member.SystemPrompt,
		CreatedAt:    member.CreatedAt,
	})
}

// HandleListMembers handles GET /api/v2/teams/{id}/members.
func (h *TeamHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}

	members, err := h.directory.Members(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	resp := make([]api.MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, api.MemberResponse{
			Persona:      m.Persona,
			Provider:     m.Provider,
			SystemPrompt: m.SystemPrompt,
			CreatedAt:    m.CreatedAt,
		})
	}
	WriteSuccess(w, resp)
}

// HandleRemoveMember handles DELETE /api/v2/teams/{id}/members/{persona}.
func (h *TeamHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", h.logger)
	if !ok {
		return
	}
	persona := r.PathValue("persona")

	if err := h.directory.RemoveMember(r.Context(), id, persona); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]any{"removed": persona})
}
