// Package auth issues and verifies the signed session tokens handed out on
// login. Tokens are stateless: validity depends only on the signature and
// the expiry at verification time.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userportal/internal/common"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is written into and required from every token.
	Issuer = "userportal"
	// Audience names the administration portal the tokens are meant for.
	Audience = "User Management Portal"
	// DefaultLifetime is how long an issued token stays valid.
	DefaultLifetime = 5 * 24 * time.Hour
)

var signingMethod = jwt.SigningMethodHS512

// Claims is the token payload: the registered claims plus the authority set
// of the subject.
type Claims struct {
	jwt.RegisteredClaims
	Authorities []string `json:"authorities"`
}

// HasAuthority reports whether the token grants a. A nil receiver grants
// nothing.
func (c *Claims) HasAuthority(a string) bool {
	if c == nil {
		return false
	}
	for _, have := range c.Authorities {
		if have == a {
			return true
		}
	}
	return false
}

// Authority holds the process-wide signing key. It is built once at startup
// and shared by reference; it is safe for concurrent use.
type Authority struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// Option customizes an Authority.
type Option func(*Authority)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(a *Authority) {
		if d > 0 {
			a.lifetime = d
		}
	}
}

// NewAuthority returns an Authority signing with secret. An empty secret is
// rejected: a missing key is a startup error, not a per-request one.
func NewAuthority(secret []byte, opts ...Option) (*Authority, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	a := &Authority{
		secret:   append([]byte(nil), secret...),
		lifetime: DefaultLifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue signs a token for u. The subject is the username and the
// authorities are the ones stored on the user.
func (a *Authority) Issue(u *models.User) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.Username,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.lifetime)),
		},
		Authorities: append([]string(nil), u.Authorities...),
	}

	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry and
// returns the claims. Failures are reported as common.ErrTokenExpired or
// common.ErrTokenInvalid; the underlying cause stays in the chain.
func (a *Authority) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrTokenInvalid
	}

	return claims, nil
}
