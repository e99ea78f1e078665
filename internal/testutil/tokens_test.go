package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceTokens(t *testing.T) {
	gen := NewSequenceTokens()

	first := gen.Generate()
	second := gen.Generate()
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", first)
	assert.Equal(t, "00000000-0000-4000-8000-000000000002", second)
	assert.Equal(t, int64(2), gen.Issued())

	// Tokens parse as UUIDs so they pass the same validation as real ones.
	_, err := uuid.Parse(first)
	require.NoError(t, err)
}
