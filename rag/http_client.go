package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/types"
)

// HTTPClient talks to the rag-service over HTTP.
type HTTPClient struct {
	cfg    config.RAGConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates a knowledge gateway for the configured rag-service.
func NewHTTPClient(cfg config.RAGConfig, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "rag_gateway")),
	}
}

// Query searches the persona's knowledge base.
func (c *HTTPClient) Query(ctx context.Context, req *QueryRequest) *types.RetrievalResult {
	if req.TopK == 0 {
		req.TopK = c.cfg.TopK
	}
	if req.MinConfidence == 0 {
		req.MinConfidence = c.cfg.MinConfidence
	}

	empty := func(err error) *types.RetrievalResult {
		c.logger.Warn("knowledge query degraded to empty result",
			zap.String("persona", req.Persona),
			zap.Error(err),
		)
		return &types.RetrievalResult{Query: req.Query, Err: err.Error()}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return empty(err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/personas/%s/query", c.cfg.BaseURL, req.Persona)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return empty(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return empty(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return empty(fmt.Errorf("rag-service returned status %d", resp.StatusCode))
	}

	var result types.RetrievalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return empty(err)
	}
	if result.Query == "" {
		result.Query = req.Query
	}

	c.logger.Debug("knowledge query",
		zap.String("persona", req.Persona),
		zap.Int("insights", len(result.Insights)),
	)

	return &result
}

// FetchContext retrieves conversation and team context for one persona.
func (c *HTTPClient) FetchContext(ctx context.Context, persona string, sessionID uuid.UUID, iteration int) *types.KnowledgeContext {
	empty := func(err error) *types.KnowledgeContext {
		c.logger.Warn("context fetch degraded to empty context",
			zap.String("persona", persona),
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
		return &types.KnowledgeContext{}
	}

	endpoint := fmt.Sprintf("%s/api/v1/context/%s/%s", c.cfg.BaseURL, persona, sessionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty(err)
	}
	q := httpReq.URL.Query()
	q.Set("iteration", strconv.Itoa(iteration))
	httpReq.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return empty(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return empty(fmt.Errorf("rag-service returned status %d", resp.StatusCode))
	}

	var kc types.KnowledgeContext
	if err := json.NewDecoder(resp.Body).Decode(&kc); err != nil {
		return empty(err)
	}
	return &kc
}

// StoreInteraction persists a persona turn. Failures are logged, not raised.
func (c *HTTPClient) StoreInteraction(ctx context.Context, in *Interaction) bool {
	body, err := json.Marshal(in)
	if err != nil {
		c.logger.Warn("store interaction failed", zap.Error(err))
		return false
	}

	endpoint := c.cfg.BaseURL + "/api/v1/interactions/store"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("store interaction failed", zap.Error(err))
		return false
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("store interaction failed",
			zap.String("persona", in.Persona),
			zap.Error(err),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("store interaction rejected",
			zap.String("persona", in.Persona),
			zap.Int("status", resp.StatusCode),
		)
		return false
	}
	return true
}

// HealthCheck probes the rag-service /health endpoint.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrBackendUnavailable, "rag-service health check failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Errorf(types.ErrBackendUnavailable, "rag-service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
