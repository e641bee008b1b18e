package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
)

const oracle = id.Principal("0x70997970c51812dc3a0108c7d658adcec89ea5ce")

func TestGateAuthorize(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(oracle)

	t.Run("admits the authorized principal", func(t *testing.T) {
		require.NoError(t, gate.Authorize(ctx, oracle))
	})

	t.Run("admits a differently cased spelling of the same address", func(t *testing.T) {
		require.NoError(t, gate.Authorize(ctx, "0x70997970C51812dc3A0108C7D658ADceC89eA5ce"))
	})

	t.Run("rejects any other principal", func(t *testing.T) {
		err := gate.Authorize(ctx, "0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, ErrMessageUnauthorized, dErrors.MessageOf(err))
	})

	t.Run("rejects an empty caller", func(t *testing.T) {
		err := gate.Authorize(ctx, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestGateWithoutPrincipalsAdmitsNobody(t *testing.T) {
	gate := NewGate("", "  ")
	assert.Empty(t, gate.Principals())
	assert.True(t, dErrors.HasCode(gate.Authorize(context.Background(), oracle), dErrors.CodeUnauthorized))
}

func TestGateSupportsSeveralWriters(t *testing.T) {
	other := id.Principal("indexer-writer")
	gate := NewGate(oracle, other)
	assert.NoError(t, gate.Authorize(context.Background(), other))
	assert.Len(t, gate.Principals(), 2)
}
