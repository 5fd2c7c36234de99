// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

/*
Package auth implements the user identity and session-security layer.

It defines the core account entity and the authentication flows: enrollment,
credential verification with lockout, refresh-token redemption, and the
recovery paths (password reset, email verification).

# Architecture

The service orchestrates the security engine packages — fingerprinting,
device trust, session lifecycle, token issuance — around the durable account
store. Entities defined here have no transport dependencies.
*/
package auth

import (
	"time"

	"github.com/thanhphan-dev/lifelink/internal/platform/sec"
)

// # Domain Entities

// User represents a registered member of the LifeLink platform.
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Explicitly omitted from JSON for security.
	DisplayName  string       `json:"display_name"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	Bio          string       `json:"bio,omitempty"`
	Role         sec.UserRole `json:"role"`
	IsVerified   bool         `json:"is_verified"`
	IsActive     bool         `json:"is_active"`
	// FailedLoginCount counts consecutive credential failures; it resets to
	// zero on the next successful login.
	FailedLoginCount int `json:"-"`
	// LockedUntil is set when FailedLoginCount crosses the lockout threshold.
	// A nil value means the account has never been locked (or the lock expired
	// and was cleared).
	LockedUntil *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Locked reports whether the account is inside an active lockout window.
func (user *User) Locked(now time.Time) bool {
	return user.LockedUntil != nil && now.Before(*user.LockedUntil)
}

// # Field Identifiers

// Global field names for validation and identity mapping in the authentication domain.
const (
	FieldUsername        = "username"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldDisplayName     = "display_name"
	FieldLogin           = "login"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldAccessToken     = "access_token"
	FieldTokenType       = "token_type"
	FieldExpiresIn       = "expires_in"
	FieldUser            = "user"
	FieldMessage         = "message"
	FieldSessionID       = "session_id"
	FieldFingerprint     = "fingerprint"
	FieldPassed          = "passed"
)
