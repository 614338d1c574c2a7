package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{
			name:     "store unavailable is transient",
			err:      ErrStoreUnavailable,
			expected: ErrorTransient,
		},
		{
			name:     "replica unreachable is transient",
			err:      ErrReplicaUnreachable,
			expected: ErrorTransient,
		},
		{
			name:     "no healthy replica is transient",
			err:      ErrNoHealthyReplica,
			expected: ErrorTransient,
		},
		{
			name:     "empty name is invalid",
			err:      ErrEmptyName,
			expected: ErrorInvalid,
		},
		{
			name:     "no route is invalid",
			err:      ErrNoRoute,
			expected: ErrorInvalid,
		},
		{
			name:     "context deadline is transient",
			err:      context.DeadlineExceeded,
			expected: ErrorTransient,
		},
		{
			name:     "record corrupted is fatal",
			err:      ErrRecordCorrupted,
			expected: ErrorFatal,
		},
		{
			name:     "unknown error defaults to transient",
			err:      stderrors.New("something unexpected"),
			expected: ErrorTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestClassifyWrappedErrors(t *testing.T) {
	// Classification must survive fmt.Errorf wrapping
	wrapped := fmt.Errorf("handler: %w", ErrEmptyName)
	assert.True(t, IsInvalid(wrapped))
	assert.False(t, IsTransient(wrapped))

	doubleWrapped := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrStoreUnavailable))
	assert.True(t, IsTransient(doubleWrapped))
}

func TestWrapPreservesClass(t *testing.T) {
	err := WrapTransient(ErrStoreUnavailable, "Store", "Append", "publish record")
	require.Error(t, err)

	assert.True(t, IsTransient(err))
	assert.True(t, stderrors.Is(err, ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "Store.Append")
	assert.Contains(t, err.Error(), "publish record failed")
}

func TestWrapInvalid(t *testing.T) {
	err := WrapInvalid(ErrEmptyName, "Service", "Submit", "validate name")

	assert.True(t, IsInvalid(err))
	assert.False(t, IsTransient(err))
	assert.True(t, stderrors.Is(err, ErrEmptyName))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "Component", "Method", "action"))
	assert.Nil(t, WrapTransient(nil, "Component", "Method", "action"))
	assert.Nil(t, WrapFatal(nil, "Component", "Method", "action"))
	assert.Nil(t, WrapInvalid(nil, "Component", "Method", "action"))
}

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(99).String())
}

func TestIsTransientStringPatterns(t *testing.T) {
	// Errors from external libraries carry no sentinel; match on message
	assert.True(t, IsTransient(stderrors.New("dial tcp: connection refused")))
	assert.True(t, IsTransient(stderrors.New("request timeout exceeded")))
	assert.False(t, IsTransient(stderrors.New("parse failure")))
}

func TestRetryConfigShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.True(t, cfg.ShouldRetry(ErrStoreUnavailable, 0))
	assert.False(t, cfg.ShouldRetry(ErrStoreUnavailable, cfg.MaxRetries))
	assert.False(t, cfg.ShouldRetry(ErrEmptyName, 0))
	assert.False(t, cfg.ShouldRetry(nil, 0))
}
