package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_ReceiptRoundTrip(t *testing.T) {
	i := NewIssuer("test-signing-key", 15*time.Minute)
	profileID := uuid.New()

	receipt, err := i.Receipt(profileID, "pending_approval", time.Now())
	require.NoError(t, err)

	claims, err := i.Verify(receipt)
	require.NoError(t, err)
	assert.Equal(t, profileID.String(), claims.Subject)
	assert.Equal(t, "pending_approval", claims.Status)
}

func TestIssuer_RejectsWrongKey(t *testing.T) {
	receipt, err := NewIssuer("key-one", time.Minute).Receipt(uuid.New(), "pending_approval", time.Now())
	require.NoError(t, err)

	_, err = NewIssuer("key-two", time.Minute).Verify(receipt)
	assert.Error(t, err)
}

func TestIssuer_RejectsExpiredReceipt(t *testing.T) {
	i := NewIssuer("test-signing-key", time.Minute)
	receipt, err := i.Receipt(uuid.New(), "pending_approval", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = i.Verify(receipt)
	assert.Error(t, err)
}
