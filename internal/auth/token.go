// Package auth resolves the caller's identity from a bearer token and guards
// the site behind an optional shared secret.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const unlockSubject = "site-unlock"

// Identity is the authenticated caller.
type Identity struct {
	UserID      string
	DisplayName string
}

type Claims struct {
	UID  string `json:"uid"`
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens with a shared secret.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// Sign issues a token for id that expires after ttl.
func (t *Tokens) Sign(id Identity, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UID:  id.UserID,
		Name: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses a token and returns the identity it carries.
func (t *Tokens) Verify(token string) (Identity, error) {
	c, err := t.parse(token)
	if err != nil {
		return Identity{}, err
	}
	if c.UID == "" {
		return Identity{}, fmt.Errorf("token has no uid")
	}

	return Identity{UserID: c.UID, DisplayName: c.Name}, nil
}

func (t *Tokens) signUnlock(ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   unlockSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) verifyUnlock(token string) bool {
	c, err := t.parse(token)
	return err == nil && c.Subject == unlockSubject
}

func (t *Tokens) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, t.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return c, nil
}

func (t *Tokens) key(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return t.secret, nil
}
