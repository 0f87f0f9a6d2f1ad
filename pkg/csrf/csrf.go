// Package csrf issues and checks request tokens bound to an action and a
// session. A token stays valid for the current and the previous half
// lifetime tick.
package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// DefaultLifetime matches a one day token window.
const DefaultLifetime = 24 * time.Hour

// ErrInvalidToken is returned when a token does not verify.
var ErrInvalidToken = errors.New("csrf: invalid token")

// Issuer signs tokens with a shared secret.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithLifetime overrides DefaultLifetime. Non-positive values are ignored.
func WithLifetime(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.lifetime = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer requires a non-empty secret.
func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("csrf: secret required")
	}
	issuer := &Issuer{
		secret:   append([]byte(nil), secret...),
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	return issuer, nil
}

// Token returns the token for action and session at the current tick.
func (i *Issuer) Token(action, session string) string {
	return i.sign(i.tick(), action, session)
}

// Verify accepts tokens from the current or previous tick.
func (i *Issuer) Verify(token, action, session string) error {
	if token == "" {
		return ErrInvalidToken
	}
	tick := i.tick()
	for _, t := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(token), []byte(i.sign(t, action, session))) {
			return nil
		}
	}
	return ErrInvalidToken
}

func (i *Issuer) tick() int64 {
	half := int64(i.lifetime / 2)
	if half <= 0 {
		half = 1
	}
	now := i.now().UnixNano()
	return (now + half - 1) / half
}

func (i *Issuer) sign(tick int64, action, session string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))
	mac.Write([]byte{'|'})
	mac.Write([]byte(session))
	sum := hex.EncodeToString(mac.Sum(nil))
	return sum[len(sum)-22 : len(sum)-2]
}
