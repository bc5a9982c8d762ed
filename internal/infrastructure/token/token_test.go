package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("secret", "checkout", time.Hour)

	tok, err := iss.Issue("ORD-1")
	require.NoError(t, err)
	assert.NoError(t, iss.Verify(tok, "ORD-1"))
	assert.ErrorIs(t, iss.Verify(tok, "ORD-2"), ErrScope)
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	iss := NewIssuer("secret", "checkout", time.Hour)
	tok, err := iss.Issue("ORD-1")
	require.NoError(t, err)

	other := NewIssuer("different", "checkout", time.Hour)
	assert.ErrorIs(t, other.Verify(tok, "ORD-1"), ErrInvalid)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.ErrorIs(t, iss.Verify(tok, "ORD-1"), ErrInvalid)

	assert.ErrorIs(t, iss.Verify("", "ORD-1"), ErrInvalid)
	assert.ErrorIs(t, iss.Verify("not.a.jwt", "ORD-1"), ErrInvalid)
}

func TestIssueWithoutSecret(t *testing.T) {
	_, err := NewIssuer("", "", 0).Issue("ORD-1")
	assert.Error(t, err)
}
