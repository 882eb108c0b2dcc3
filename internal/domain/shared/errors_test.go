package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := NewDomainError("INVALID_STATE", "order already fulfilled")

	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.True(t, errors.Is(fmt.Errorf("fulfill: %w", err), ErrInvalidState))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(errors.New("INVALID_STATE"), ErrInvalidState))
}

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError("NOT_FOUND", "order not found")
	assert.Equal(t, "order not found", err.Error())
	assert.Equal(t, "NOT_FOUND", err.Code)
}

func TestNewBaseEntity(t *testing.T) {
	e := NewBaseEntity()
	assert.NotEqual(t, e.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	before := e.UpdatedAt
	e.Touch()
	assert.False(t, e.UpdatedAt.Before(before))
}
