package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueParseRoundTrip(t *testing.T) {
	iss := NewIssuer("verimail", "test-secret-please-rotate", time.Hour)

	signed, exp, err := iss.IssueAccess(Claims{UserID: "u-1", Email: "alice@example.com", EmailVerified: true})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	got, err := iss.Parse(signed)
	require.NoError(t, err)
	require.Equal(t, "u-1", got.UserID)
	require.Equal(t, "alice@example.com", got.Email)
	require.True(t, got.EmailVerified)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	a := NewIssuer("verimail", "secret-a", time.Hour)
	b := NewIssuer("verimail", "secret-b", time.Hour)

	signed, _, err := a.IssueAccess(Claims{UserID: "u-1"})
	require.NoError(t, err)

	_, err = b.Parse(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	a := NewIssuer("someone-else", "shared", time.Hour)
	b := NewIssuer("verimail", "shared", time.Hour)

	signed, _, err := a.IssueAccess(Claims{UserID: "u-1"})
	require.NoError(t, err)

	_, err = b.Parse(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer("verimail", "shared", time.Hour)
	iss.AccessTTL = -2 * time.Minute // beyond the 30s leeway

	signed, _, err := iss.IssueAccess(Claims{UserID: "u-1"})
	require.NoError(t, err)

	_, err = iss.Parse(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	iss := NewIssuer("verimail", "shared", time.Hour)
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := iss.Parse(tok)
		require.ErrorIs(t, err, ErrInvalidToken, "token=%q", tok)
	}
}
