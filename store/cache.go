package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/types"
)

// CachedDirectory decorates a Directory with a redis read-through cache for
// the read-mostly team/member lookups that run on every iteration. Cache
// failures degrade to the underlying directory; mutations invalidate.
type CachedDirectory struct {
	inner  Directory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ Directory = (*CachedDirectory)(nil)

// NewCachedDirectory connects to redis and wraps the given directory.
func NewCachedDirectory(inner Directory, cfg config.CacheConfig, logger *zap.Logger) (*CachedDirectory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &CachedDirectory{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "directory_cache")),
	}, nil
}

// Close releases the redis connection.
func (c *CachedDirectory) Close() error {
	return c.client.Close()
}

func teamKey(id uuid.UUID) string    { return "parley:team:" + id.String() }
func membersKey(id uuid.UUID) string { return "parley:members:" + id.String() }

// GetTeam returns a team, preferring the cache.
func (c *CachedDirectory) GetTeam(ctx context.Context, id uuid.UUID) (*types.Team, error) {
	var cached types.Team
	if c.lookup(ctx, teamKey(id), &cached) {
		return &cached, nil
	}

	team, err := c.inner.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, teamKey(id), team)
	return team, nil
}

// Members resolves a team's member list, preferring the cache.
func (c *CachedDirectory) Members(ctx context.Context, teamID uuid.UUID) ([]types.Member, error) {
	var cached []types.Member
	if c.lookup(ctx, membersKey(teamID), &cached) {
		return cached, nil
	}

	members, err := c.inner.Members(ctx, teamID)
	if err != nil {
		return nil, err
	}
	c.put(ctx, membersKey(teamID), members)
	return members, nil
}

// CreateTeam delegates; nothing to invalidate for a fresh id.
func (c *CachedDirectory) CreateTeam(ctx context.Context, team *types.Team, members []types.Member) (*types.Team, error) {
	return c.inner.CreateTeam(ctx, team, members)
}

// ListTeams always hits the underlying directory; the list is unbounded and
// changes with every create/delete.
func (c *CachedDirectory) ListTeams(ctx context.Context) ([]types.Team, error) {
	return c.inner.ListTeams(ctx)
}

// UpdateTeam delegates and invalidates the team entry.
func (c *CachedDirectory) UpdateTeam(ctx context.Context, id uuid.UUID, name, description string) (*types.Team, error) {
	team, err := c.inner.UpdateTeam(ctx, id, name, description)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, teamKey(id))
	return team, nil
}

// DeleteTeam delegates and invalidates both entries.
func (c *CachedDirectory) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	if err := c.inner.DeleteTeam(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, teamKey(id), membersKey(id))
	return nil
}

// AddMember delegates and invalidates the member list.
func (c *CachedDirectory) AddMember(ctx context.Context, teamID uuid.UUID, member *types.Member) (*types.Member, error) {
	mem, err := c.inner.AddMember(ctx, teamID, member)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, membersKey(teamID))
	return mem, nil
}

// RemoveMember delegates and invalidates the member list.
func (c *CachedDirectory) RemoveMember(ctx context.Context, teamID uuid.UUID, persona string) error {
	if err := c.inner.RemoveMember(ctx, teamID, persona); err != nil {
		return err
	}
	c.invalidate(ctx, membersKey(teamID))
	return nil
}

func (c *CachedDirectory) lookup(ctx context.Context, key string, out any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		c.invalidate(ctx, key)
		return false
	}
	return true
}

func (c *CachedDirectory) put(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug("cache put failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedDirectory) invalidate(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
