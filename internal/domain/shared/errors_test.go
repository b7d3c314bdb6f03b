package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError("query", "FindStudentsByGroup", ErrInvalidInput, "group is required")
	assert.Equal(t, "query.FindStudentsByGroup: group is required", err.Error())

	wrapped := WrapError("roster", "Load", ErrServiceUnavailable, "load failed", errors.New("dial tcp"))
	assert.Equal(t, "roster.Load: load failed: dial tcp", wrapped.Error())
}

func TestDomainError_Is(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("roster", "Load", ErrServiceUnavailable, "load failed", cause)

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsValidation(ErrMissingGroup))
	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", ErrMissingName)))
	assert.False(t, IsValidation(ErrRosterUnavailable))

	assert.True(t, IsRetryable(ErrRosterUnavailable))
	assert.False(t, IsRetryable(ErrRosterMalformed))

	assert.True(t, IsNotFound(ErrSheetNotFound))
}
