package csrf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ at time.Time }

func (c *clock) now() time.Time { return c.at }

func newIssuer(t *testing.T, c *clock) *Issuer {
	t.Helper()
	issuer, err := NewIssuer([]byte("secret"), WithClock(c.now), WithLifetime(2*time.Hour))
	require.NoError(t, err)
	return issuer
}

func TestTokenRoundTrip(t *testing.T) {
	c := &clock{at: time.Date(2024, 3, 15, 10, 0, 1, 0, time.UTC)}
	issuer := newIssuer(t, c)
	token := issuer.Token("sfwd-nonce", "user-1")
	assert.Len(t, token, 20)
	assert.NoError(t, issuer.Verify(token, "sfwd-nonce", "user-1"))
	assert.Equal(t, token, issuer.Token("sfwd-nonce", "user-1"))
}

func TestTokenBoundToActionAndSession(t *testing.T) {
	c := &clock{at: time.Date(2024, 3, 15, 10, 0, 1, 0, time.UTC)}
	issuer := newIssuer(t, c)
	token := issuer.Token("sfwd-nonce", "user-1")
	assert.ErrorIs(t, issuer.Verify(token, "other-action", "user-1"), ErrInvalidToken)
	assert.ErrorIs(t, issuer.Verify(token, "sfwd-nonce", "user-2"), ErrInvalidToken)
	assert.ErrorIs(t, issuer.Verify("", "sfwd-nonce", "user-1"), ErrInvalidToken)

	other, err := NewIssuer([]byte("different"), WithClock(c.now), WithLifetime(2*time.Hour))
	require.NoError(t, err)
	assert.ErrorIs(t, other.Verify(token, "sfwd-nonce", "user-1"), ErrInvalidToken)
}

func TestTokenExpiresAfterTwoTicks(t *testing.T) {
	c := &clock{at: time.Date(2024, 3, 15, 10, 0, 1, 0, time.UTC)}
	issuer := newIssuer(t, c)
	token := issuer.Token("a", "s")

	c.at = c.at.Add(time.Hour)
	assert.NoError(t, issuer.Verify(token, "a", "s"), "previous tick still valid")

	c.at = c.at.Add(time.Hour)
	assert.ErrorIs(t, issuer.Verify(token, "a", "s"), ErrInvalidToken)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer(nil)
	assert.Error(t, err)
}
