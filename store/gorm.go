package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/types"
)

// GormStore is the durable Directory and Ledger backed by a relational
// database. Message ids are the autoincrement primary key, which keeps them
// globally unique and monotonically increasing.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var (
	_ Directory = (*GormStore)(nil)
	_ Ledger    = (*GormStore)(nil)
)

type teamRow struct {
	ID          uuid.UUID `gorm:"primaryKey;type:uuid"`
	Name        string    `gorm:"size:255;not null"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (teamRow) TableName() string { return "teams" }

type memberRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	TeamID       uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_team_persona"`
	Persona      string    `gorm:"size:255;not null;uniqueIndex:idx_team_persona"`
	Provider     string    `gorm:"size:255;not null"`
	SystemPrompt string
	Config       string `gorm:"type:text"` // JSON
	CreatedAt    time.Time
}

func (memberRow) TableName() string { return "team_members" }

type sessionRow struct {
	ID               uuid.UUID `gorm:"primaryKey;type:uuid"`
	TeamID           uuid.UUID `gorm:"type:uuid;index"`
	Mode             string    `gorm:"size:32;not null"`
	MaxIterations    int       `gorm:"not null"`
	CurrentIteration int       `gorm:"not null;default:0"`
	Status           string    `gorm:"size:32;not null"`
	Metadata         string    `gorm:"type:text"` // JSON
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        *time.Time
}

func (sessionRow) TableName() string { return "chat_sessions" }

type messageRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SessionID uuid.UUID `gorm:"type:uuid;index"`
	Iteration int       `gorm:"not null"`
	TurnOrder int       `gorm:"not null"`
	Persona   string    `gorm:"size:255"`
	Role      string    `gorm:"size:32;not null"`
	Content   string    `gorm:"type:text;not null"`
	Metadata  string    `gorm:"type:text"` // JSON
	CreatedAt time.Time
}

func (messageRow) TableName() string { return "chat_messages" }

// OpenDB opens the configured database and applies the pool settings.
func OpenDB(cfg config.StoreConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "parley.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.PostgresDSN()
		}
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Info("database connected", zap.String("driver", cfg.Driver))
	return db, nil
}

// NewGormStore creates the durable store and migrates its tables.
func NewGormStore(db *gorm.DB, logger *zap.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&teamRow{}, &memberRow{}, &sessionRow{}, &messageRow{}); err != nil {
		return nil, fmt.Errorf("auto-migrate failed: %w", err)
	}
	return &GormStore{
		db:     db,
		logger: logger.With(zap.String("component", "gorm_store")),
	}, nil
}

// CreateTeam stores a team with its initial members in one transaction.
func (g *GormStore) CreateTeam(ctx context.Context, team *types.Team, members []types.Member) (*types.Team, error) {
	t := *team
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	seen := make(map[string]bool, len(members))
	for _, mem := range members {
		if seen[mem.Persona] {
			return nil, types.Errorf(types.ErrDuplicatePersona, "persona already exists in team: %s", mem.Persona)
		}
		seen[mem.Persona] = true
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := teamRow{ID: t.ID, Name: t.Name, Description: t.Description}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		t.CreatedAt = row.CreatedAt
		t.UpdatedAt = row.UpdatedAt

		for _, mem := range members {
			if mem.Provider == "" {
				mem.Provider = types.DefaultProvider
			}
			mrow := memberRow{
				TeamID:       t.ID,
				Persona:      mem.Persona,
				Provider:     mem.Provider,
				SystemPrompt: mem.SystemPrompt,
				Config:       encodeJSON(mem.Config),
			}
			if err := tx.Create(&mrow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTeam returns a team by id.
func (g *GormStore) GetTeam(ctx context.Context, id uuid.UUID) (*types.Team, error) {
	var row teamRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errTeamNotFound(id)
		}
		return nil, err
	}
	t := row.toTeam()
	return &t, nil
}

// ListTeams returns all teams ordered by creation time.
func (g *GormStore) ListTeams(ctx context.Context) ([]types.Team, error) {
	var rows []teamRow
	if err := g.db.WithContext(ctx).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	teams := make([]types.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, row.toTeam())
	}
	return teams, nil
}

// UpdateTeam updates name and/or description; empty strings leave the field
// unchanged.
func (g *GormStore) UpdateTeam(ctx context.Context, id uuid.UUID, name, description string) (*types.Team, error) {
	updates := map[string]any{"updated_at": time.Now()}
	if name != "" {
		updates["name"] = name
	}
	if description != "" {
		updates["description"] = description
	}

	res := g.db.WithContext(ctx).Model(&teamRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errTeamNotFound(id)
	}
	return g.GetTeam(ctx, id)
}

// DeleteTeam removes a team and its members.
func (g *GormStore) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&teamRow{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errTeamNotFound(id)
		}
		return tx.Delete(&memberRow{}, "team_id = ?", id).Error
	})
}

// AddMember appends a persona to a team.
func (g *GormStore) AddMember(ctx context.Context, teamID uuid.UUID, member *types.Member) (*types.Member, error) {
	if _, err := g.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	var count int64
	if err := g.db.WithContext(ctx).Model(&memberRow{}).
		Where("team_id = ? AND persona = ?", teamID, member.Persona).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, types.Errorf(types.ErrDuplicatePersona, "persona already exists in team: %s", member.Persona)
	}

	provider := member.Provider
	if provider == "" {
		provider = types.DefaultProvider
	}
	row := memberRow{
		TeamID:       teamID,
		Persona:      member.Persona,
		Provider:     provider,
		SystemPrompt: member.SystemPrompt,
		Config:       encodeJSON(member.Config),
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	mem := row.toMember()
	return &mem, nil
}

// RemoveMember deletes a persona from a team by name.
func (g *GormStore) RemoveMember(ctx context.Context, teamID uuid.UUID, persona string) error {
	if _, err := g.GetTeam(ctx, teamID); err != nil {
		return err
	}
	res := g.db.WithContext(ctx).Delete(&memberRow{}, "team_id = ? AND persona = ?", teamID, persona)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.Errorf(types.ErrMemberNotFound, "persona not in team: %s", persona)
	}
	return nil
}

// Members resolves a team to its ordered member list.
func (g *GormStore) Members(ctx context.Context, teamID uuid.UUID) ([]types.Member, error) {
	if _, err := g.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	var rows []memberRow
	if err := g.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	members := make([]types.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toMember())
	}
	return members, nil
}

// CreateSession stores a new session.
func (g *GormStore) CreateSession(ctx context.Context, session *types.Session) (*types.Session, error) {
	s := *session
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = types.StatusActive
	}

	row := sessionRow{
		ID:               s.ID,
		TeamID:           s.TeamID,
		Mode:             string(s.Mode),
		MaxIterations:    s.MaxIterations,
		CurrentIteration: s.CurrentIteration,
		Status:           string(s.Status),
		Metadata:         encodeJSON(s.Metadata),
		ExpiresAt:        s.ExpiresAt,
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	s.CreatedAt = row.CreatedAt
	s.UpdatedAt = row.UpdatedAt
	return &s, nil
}

// GetSession returns a session by id.
func (g *GormStore) GetSession(ctx context.Context, id uuid.UUID) (*types.Session, error) {
	var row sessionRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errSessionNotFound(id)
		}
		return nil, err
	}
	s := row.toSession()
	return &s, nil
}

// DeleteSession removes a session and its messages.
func (g *GormStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&sessionRow{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errSessionNotFound(id)
		}
		return tx.Delete(&messageRow{}, "session_id = ?", id).Error
	})
}

// BeginIteration appends the user message as turn 0 of the next iteration
// and increments the iteration counter in one transaction.
func (g *GormStore) BeginIteration(ctx context.Context, sessionID uuid.UUID, userContent string, meta map[string]any) (*types.Session, *types.Message, error) {
	var (
		session types.Session
		message types.Message
	)

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sessionRow
		if err := tx.First(&row, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errSessionNotFound(sessionID)
			}
			return err
		}
		if row.Status != string(types.StatusActive) {
			return types.Errorf(types.ErrSessionNotActive, "session is not active: %s", row.Status)
		}

		row.CurrentIteration++
		row.UpdatedAt = time.Now()
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		mrow := messageRow{
			SessionID: sessionID,
			Iteration: row.CurrentIteration,
			TurnOrder: 0,
			Role:      string(types.RoleUser),
			Content:   userContent,
			Metadata:  encodeJSON(meta),
		}
		if err := tx.Create(&mrow).Error; err != nil {
			return err
		}

		session = row.toSession()
		message = mrow.toMessage()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &session, &message, nil
}

// CommitResponses appends persona messages in turn order and applies the
// final session status in the same transaction.
func (g *GormStore) CommitResponses(ctx context.Context, sessionID uuid.UUID, responses []*types.Message, status types.SessionStatus) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sessionRow
		if err := tx.First(&row, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errSessionNotFound(sessionID)
			}
			return err
		}

		for _, r := range responses {
			mrow := messageRow{
				SessionID: sessionID,
				Iteration: r.Iteration,
				TurnOrder: r.TurnOrder,
				Persona:   r.Persona,
				Role:      string(r.Role),
				Content:   r.Content,
				Metadata:  encodeJSON(r.Metadata),
			}
			if err := tx.Create(&mrow).Error; err != nil {
				return err
			}
			r.ID = mrow.ID
			r.SessionID = sessionID
			r.CreatedAt = mrow.CreatedAt
		}

		row.Status = string(status)
		row.UpdatedAt = time.Now()
		return tx.Save(&row).Error
	})
}

// MarkFailed transitions an active session to Failed.
func (g *GormStore) MarkFailed(ctx context.Context, sessionID uuid.UUID) error {
	res := g.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND status = ?", sessionID, string(types.StatusActive)).
		Updates(map[string]any{"status": string(types.StatusFailed), "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Not found or already terminal; distinguish for callers.
		var count int64
		if err := g.db.WithContext(ctx).Model(&sessionRow{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errSessionNotFound(sessionID)
		}
	}
	return nil
}

// Messages returns the session's messages in replay order.
func (g *GormStore) Messages(ctx context.Context, sessionID uuid.UUID, iteration *int) ([]types.Message, error) {
	if _, err := g.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	q := g.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if iteration != nil {
		q = q.Where("iteration = ?", *iteration)
	}

	var rows []messageRow
	if err := q.Order("iteration asc, turn_order asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	messages := make([]types.Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, row.toMessage())
	}
	return messages, nil
}

func (r teamRow) toTeam() types.Team {
	return types.Team{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r memberRow) toMember() types.Member {
	return types.Member{
		ID:           r.ID,
		TeamID:       r.TeamID,
		Persona:      r.Persona,
		Provider:     r.Provider,
		SystemPrompt: r.SystemPrompt,
		Config:       decodeJSON(r.Config),
		CreatedAt:    r.CreatedAt,
	}
}

func (r sessionRow) toSession() types.Session {
	return types.Session{
		ID:               r.ID,
		TeamID:           r.TeamID,
		Mode:             types.EngagementMode(r.Mode),
		MaxIterations:    r.MaxIterations,
		CurrentIteration: r.CurrentIteration,
		Status:           types.SessionStatus(r.Status),
		Metadata:         decodeJSON(r.Metadata),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		ExpiresAt:        r.ExpiresAt,
	}
}

func (r messageRow) toMessage() types.Message {
	return types.Message{
		ID:        r.ID,
		SessionID: r.SessionID,
		Iteration: r.Iteration,
		TurnOrder: r.TurnOrder,
		Persona:   r.Persona,
		Role:      types.Role(r.Role),
		Content:   r.Content,
		Metadata:  decodeJSON(r.Metadata),
		CreatedAt: r.CreatedAt,
	}
}

func encodeJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeJSON(s string) map[string]any {
	if s == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
