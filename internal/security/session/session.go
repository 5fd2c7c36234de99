// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

/*
Package session orchestrates the session lifecycle: creation, validation,
suspicion flagging, and termination.

# State Machine

	created -> active <-> suspicious (still active) -> terminated

A session is created on login, stays active while validated, may be flagged
suspicious (IP drift) without being rejected, and reaches the terminal
terminated state through logout, logout-all, absolute expiry, or
administrative revocation. There is no transition out of terminated.

The manager consults the in-memory cache first on every validation and falls
back to durable storage, repopulating the cache on a hit. Fail-open on IP
drift, fail-closed only on explicit termination: mobile and proxy IP churn
is routine and must not lock users out.
*/
package session

import (
	"time"

	"github.com/thanhphan-dev/lifelink/pkg/uuid"
)

// # Termination Reasons

const (
	ReasonLogout         = "logout"
	ReasonLogoutAll      = "logout_all"
	ReasonExpired        = "expired"
	ReasonAdminRevoked   = "admin_revoked"
	ReasonSecurityEscal  = "security_escalation"
	ReasonPasswordChange = "password_change"
)

// # Entity

// Session represents one authenticated device/browser instance.
//
// The ID is unique and immutable once issued. Multiple concurrent sessions
// per identity are allowed; nothing enforces one active row per fingerprint.
type Session struct {
	ID         string `json:"id"`
	IdentityID string `json:"identity_id"`
	// Token is the opaque per-session token echoed in the access token's
	// "sid" claim context; not a credential by itself.
	Token string `json:"-"`
	// Fingerprint is the enhanced device fingerprint digest (32 hex chars).
	Fingerprint string `json:"fingerprint"`
	// DeviceFingerprint is the full-length digest keyed into trust records.
	DeviceFingerprint string    `json:"-"`
	IPAddress         string    `json:"ip_address"`
	DeviceInfo        string    `json:"device_info"`
	LoginMethod       string    `json:"login_method"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
	Active            bool      `json:"active"`
	// RiskScore starts from the device risk pre-score and grows on anomalies.
	RiskScore  int    `json:"risk_score"`
	Suspicious bool   `json:"suspicious"`
	EndReason  string `json:"end_reason,omitempty"`
}

// newSession constructs an active session with a fresh id and token.
func newSession(identityID string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:             uuid.New(),
		IdentityID:     identityID,
		Token:          uuid.New(),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
		Active:         true,
	}
}

// Live reports whether the session is active and inside its expiry window.
func (session *Session) Live(now time.Time) bool {
	return session.Active && now.Before(session.ExpiresAt)
}

// clone returns a private copy. Cached sessions are shared across request
// goroutines and treated as immutable; every mutation happens on a clone.
func (session *Session) clone() *Session {
	copied := *session
	return &copied
}
