package lnurl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflineResolverReturnsInvoiceWithoutNetwork(t *testing.T) {
	// A domain that cannot resolve; any lookup would fail the call.
	inv, err := OfflineResolver{}.Resolve(context.Background(), "Alice@pay.invalid", 21000, "thanks")
	require.NoError(t, err)
	assert.Equal(t, "lnmock210001alice.pay-invalid", inv)
}

func TestOfflineResolverValidatesInput(t *testing.T) {
	_, err := OfflineResolver{}.Resolve(context.Background(), "not-an-address", 1000, "")
	assert.True(t, IsValidation(err))

	_, err = OfflineResolver{}.Resolve(context.Background(), "alice@example.com", 0, "")
	assert.True(t, IsValidation(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = OfflineResolver{}.Resolve(ctx, "alice@example.com", 1000, "")
	assert.ErrorIs(t, err, context.Canceled)
}
