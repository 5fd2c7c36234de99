// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

/*
Package token manages the full token lifecycle: issuance, validation, and
revocation of access and refresh tokens.

# Token Kinds

  - Access tokens are stateless. Validity is purely cryptographic plus
    expiry; no persistence check happens on the normal request path.
  - Refresh tokens are backed by a durable record keyed by the SHA-256 hash
    of the encoded token. The record carries an absolute expiry fixed at
    issuance: refreshes update usage metadata only and can never extend it.

Both kinds are HS256-signed JWTs sharing the claim layout: "sub" (identity
id), "exp", "type" ("access"|"refresh"), plus "sid" on access tokens and
"jti" on refresh tokens.

# Errors

Invalid tokens are an expected, frequent outcome and resolve to
[ErrInvalidToken] (sentinel, cheap to test with errors.Is), never a panic.
Storage faults propagate as wrapped errors from the store.
*/
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thanhphan-dev/lifelink/pkg/uuid"
)

// ErrInvalidToken marks a token that failed verification: bad signature,
// malformed structure, expiry, or wrong token type.
var ErrInvalidToken = errors.New("token: invalid token")

// # Claims

const (
	// TypeAccess is the "type" claim value of access tokens.
	TypeAccess = "access"
	// TypeRefresh is the "type" claim value of refresh tokens.
	TypeRefresh = "refresh"
)

// Claims is the JWT payload shared by both token kinds.
type Claims struct {
	jwt.RegisteredClaims

	// Type distinguishes access from refresh tokens ("type" claim).
	Type string `json:"type"`
	// SessionID binds an access token to its session ("sid", access only).
	SessionID string `json:"sid,omitempty"`
}

// # Manager

// Manager signs and verifies JWTs with a shared HMAC secret.
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// ManagerOption customizes a [Manager] at construction time.
type ManagerOption func(*Manager)

// WithClock replaces the manager's time source for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a token manager signing with the given secret.
func NewManager(secret, issuer string, accessTTL, refreshTTL time.Duration, options ...ManagerOption) *Manager {
	manager := &Manager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, option := range options {
		option(manager)
	}
	return manager
}

// AccessTTL exposes the configured access-token lifetime (for expires_in
// fields in HTTP responses).
func (manager *Manager) AccessTTL() time.Duration { return manager.accessTTL }

// RefreshTTL exposes the configured refresh-token absolute lifetime.
func (manager *Manager) RefreshTTL() time.Duration { return manager.refreshTTL }

/*
IssueAccess creates a signed access token for an identity.

Parameters:
  - identityID: Subject of the token ("sub" claim)
  - sessionID: Session binding ("sid" claim); may be empty

Returns:
  - string: Signed JWT
  - error: Signing failures only — never validation errors
*/
func (manager *Manager) IssueAccess(identityID, sessionID string) (string, error) {
	currentTime := manager.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    manager.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(manager.accessTTL)),
		},
		Type:      TypeAccess,
		SessionID: sessionID,
	}

	return manager.sign(claims)
}

/*
IssueRefresh creates a signed refresh token for an identity.

The "jti" claim carries a random unique id for auditability; uniqueness is
enforced by the randomness, not by any blacklist lookup.

Returns:
  - string: Signed JWT
  - error: Signing failures only
*/
func (manager *Manager) IssueRefresh(identityID string) (string, error) {
	currentTime := manager.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    manager.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(manager.refreshTTL)),
			ID:        uuid.New(),
		},
		Type: TypeRefresh,
	}

	return manager.sign(claims)
}

// Decode verifies the signature and expiry of a token and returns its claims.
// Any failure resolves to [ErrInvalidToken]; callers needing the type check
// should use [Manager.DecodeAccess] or [Manager.DecodeRefresh].
func (manager *Manager) Decode(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(parsedToken *jwt.Token) (interface{}, error) {
			if _, ok := parsedToken.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("token: unexpected signing method: %v", parsedToken.Header["alg"])
			}
			return manager.secret, nil
		},
		jwt.WithTimeFunc(manager.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// DecodeAccess decodes a token and requires it to be an access token.
func (manager *Manager) DecodeAccess(tokenString string) (*Claims, error) {
	return manager.decodeTyped(tokenString, TypeAccess)
}

// DecodeRefresh decodes a token and requires it to be a refresh token.
func (manager *Manager) DecodeRefresh(tokenString string) (*Claims, error) {
	return manager.decodeTyped(tokenString, TypeRefresh)
}

func (manager *Manager) decodeTyped(tokenString, wantType string) (*Claims, error) {
	claims, err := manager.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (manager *Manager) sign(claims Claims) (string, error) {
	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(manager.secret)
	if err != nil {
		return "", fmt.Errorf("token: failed to sign token: %w", err)
	}
	return signedToken, nil
}
