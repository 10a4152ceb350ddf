package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MatchesKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"not found", NotFound("post", "p1"), ErrorNotFound},
		{"forbidden", Forbidden("comment", "c1"), ErrorForbidden},
		{"invalid", InvalidOperation("user", "u1", nil), ErrorInvalidOperation},
		{"store", StoreFailure("user", "u1", errors.New("db down")), ErrorStoreFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
		})
	}
}

func TestStoreFailure_KeepsNotFoundKind(t *testing.T) {
	err := StoreFailure("post", "p9", fmt.Errorf("db error: %w", ErrorNotFound))
	assert.ErrorIs(t, err, ErrorNotFound)
	assert.NotErrorIs(t, err, ErrorStoreFailure)
}

func TestStoreFailure_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := StoreFailure("user", "u1", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Contains(t, err.Error(), "id=u1")
}

func TestEntityOf(t *testing.T) {
	entity, id, ok := EntityOf(fmt.Errorf("x: %w", NotFound("comment", "c7")))
	require.True(t, ok)
	assert.Equal(t, "comment", entity)
	assert.Equal(t, "c7", id)

	_, _, ok = EntityOf(errors.New("plain"))
	assert.False(t, ok)
}
