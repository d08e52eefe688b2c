package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	e := NewError(ErrTeamNotFound, "team not found")
	assert.Equal(t, "[TEAM_NOT_FOUND] team not found", e.Error())

	e = e.WithCause(errors.New("boom"))
	assert.Equal(t, "[TEAM_NOT_FOUND] team not found: boom", e.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	e := NewError(ErrBackendUnavailable, "backend unreachable").WithCause(cause)

	assert.True(t, errors.Is(e, cause))
}

func TestError_FluentSetters(t *testing.T) {
	e := NewError(ErrBackendTimeout, "deadline exceeded").
		WithHTTPStatus(504).
		WithRetryable(true)

	assert.Equal(t, 504, e.HTTPStatus)
	assert.True(t, IsRetryable(e))
	assert.Equal(t, ErrBackendTimeout, GetErrorCode(e))
}

func TestGetErrorCode_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetErrorCode(fmt.Errorf("plain")))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}

func TestEngagementMode_Valid(t *testing.T) {
	for _, m := range []EngagementMode{ModeSequential, ModeParallel, ModeDebate, ModeConsensus} {
		assert.True(t, m.Valid(), string(m))
	}
	assert.False(t, EngagementMode("roundrobin").Valid())
	assert.False(t, EngagementMode("").Valid())
}

func TestRetrievalOptions_Normalize(t *testing.T) {
	o := &RetrievalOptions{Enabled: true}
	o.Normalize()

	assert.Equal(t, RetrievalAuto, o.Mode)
	assert.Equal(t, []string{"sme_docs", "patterns", "history"}, o.Categories)
	assert.InDelta(t, 0.7, o.MinConfidence, 1e-9)
}

func TestRetrievalOptions_Active(t *testing.T) {
	var nilOpts *RetrievalOptions
	assert.False(t, nilOpts.Active())

	assert.False(t, (&RetrievalOptions{Enabled: false}).Active())
	assert.False(t, (&RetrievalOptions{Enabled: true, Mode: RetrievalDisable}).Active())
	assert.True(t, (&RetrievalOptions{Enabled: true, Mode: RetrievalForce}).Active())
}
