package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/types"
)

// RouterGateway talks to the llm-router service over HTTP. Generation is
// slow, so the request timeout is much longer than a typical web request.
type RouterGateway struct {
	cfg     config.LLMConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRouterGateway creates a gateway for the configured llm-router.
func NewRouterGateway(cfg config.LLMConfig, logger *zap.Logger) *RouterGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &RouterGateway{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm_gateway")),
	}
}

func (g *RouterGateway) Name() string { return "llm-router" }

// Complete posts one completion request to the router.
func (g *RouterGateway) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if req == nil || req.Persona == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "completion request requires a persona")
	}
	if len(req.Messages) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "completion request requires messages")
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrBackendTimeout, "rate limiter wait aborted").WithCause(err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to encode completion request").WithCause(err)
	}

	endpoint := g.cfg.BaseURL + "/api/v1/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build completion request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, types.Errorf(types.ErrBackendTimeout, "completion for persona %q timed out", req.Persona).
				WithCause(err).WithRetryable(true)
		}
		return nil, types.Errorf(types.ErrBackendUnavailable, "llm-router unreachable for persona %q", req.Persona).
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrMsg(resp.Body)
		e := types.Errorf(types.ErrBackendUnavailable, "llm-router returned status %d: %s", resp.StatusCode, msg).
			WithHTTPStatus(resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			e = e.WithRetryable(true)
		}
		return nil, e
	}

	var out CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewError(types.ErrBackendBadResponse, "failed to decode completion response").WithCause(err)
	}
	if out.Content == "" {
		return nil, types.NewError(types.ErrBackendBadResponse, "completion response carried no content")
	}

	g.logger.Info("completion",
		zap.String("persona", req.Persona),
		zap.Int("content_len", len(out.Content)),
		zap.Duration("duration", time.Since(start)),
	)

	return &out, nil
}

// HealthCheck probes the router's /health endpoint.
func (g *RouterGateway) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrBackendUnavailable, "llm-router health check failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Errorf(types.ErrBackendUnavailable, "llm-router unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

func readErrMsg(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(data) == 0 {
		return "<no body>"
	}
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("%.200s", string(data))
}
