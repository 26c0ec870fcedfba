package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapturesContextAndKind(t *testing.T) {
	err := New(KindValidation, "bad input")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, "bad input", err.Message)
	assert.False(t, err.Retryable)
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindStorage, "x"))
}

func TestWrapPreservesUnderlying(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(cause, KindStorage, "failed to persist branch")

	require.NotNil(t, wrapped)
	assert.Same(t, cause, wrapped.Unwrap())
	assert.ErrorIs(t, wrapped, cause)
}

func TestWithContextAccumulates(t *testing.T) {
	err := New(KindNotFound, "missing").WithContext("branch_id", "abc").WithContext("attempt", 2)
	assert.Equal(t, "abc", err.Context["branch_id"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestErrorStringIncludesCodeAndMessage(t *testing.T) {
	err := New(KindLimitExceeded, "too many branches")
	assert.Contains(t, err.Error(), "[LIMIT_EXCEEDED]")
	assert.Contains(t, err.Error(), "too many branches")
}

func TestIsAndGetKind(t *testing.T) {
	err := New(KindSession, "session gone")
	assert.True(t, Is(err, KindSession))
	assert.False(t, Is(err, KindStorage))
	assert.Equal(t, KindSession, GetKind(err))

	plain := errors.New("generic")
	assert.Equal(t, KindInternal, GetKind(plain))
}

func TestRetryable(t *testing.T) {
	err := New(KindStorage, "busy").WithRetryable(true)
	assert.True(t, err.IsRetryable())
	assert.True(t, IsRetryable(err))
}

func TestSentinelConstructors(t *testing.T) {
	t1 := InvalidStatusTransition("branch", "merged", "active")
	assert.Equal(t, KindStateConflict, t1.Kind)
	assert.Equal(t, "merged", t1.Context["from"])

	m := MaxBranchesExceeded(8, 8)
	assert.Equal(t, KindLimitExceeded, m.Kind)
	assert.Equal(t, 8, m.Context["current"])

	too := TooManyBranches(9)
	assert.Equal(t, KindLimitExceeded, too.Kind)
	assert.Equal(t, 9, too.Context["count"])
}
