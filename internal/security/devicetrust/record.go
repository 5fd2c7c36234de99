// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

/*
Package devicetrust maintains durable per-(identity, fingerprint) trust
records and the security-event log.

Each record accumulates the behavior counters the trust scorer consumes;
every authentication outcome and verification challenge mutates the record
and recomputes its score and level. Records are created on first sight of a
new fingerprint and revocable by an administrator or on sustained abuse.
*/
package devicetrust

import (
	"time"

	"github.com/thanhphan-dev/lifelink/internal/security/trust"
	"github.com/thanhphan-dev/lifelink/pkg/uuid"
)

// # Trust Record

// Record is the durable trust state of one device for one identity.
type Record struct {
	ID         string `json:"id"`
	IdentityID string `json:"identity_id"`
	// Fingerprint is the full-length device digest (64 hex chars).
	Fingerprint string `json:"fingerprint"`

	TrustScore int         `json:"trust_score"`
	TrustLevel trust.Level `json:"trust_level"`

	TotalSessions        int `json:"total_sessions"`
	SuccessfulLogins     int `json:"successful_logins"`
	FailedAttempts       int `json:"failed_attempts"`
	SuspiciousActivities int `json:"suspicious_activities"`
	ChallengesPassed     int `json:"challenges_passed"`
	ChallengesFailed     int `json:"challenges_failed"`

	LocationConsistency int    `json:"location_consistency"`
	FirstSeenLocation   string `json:"first_seen_location,omitempty"`
	LastSeenLocation    string `json:"last_seen_location,omitempty"`

	Registered bool `json:"registered"`
	Verified   bool `json:"verified"`
	Revoked    bool `json:"revoked"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// newRecord initializes the trust state for a fingerprint seen for the
// first time. Location consistency starts at full: there is no history to
// contradict yet.
func newRecord(identityID, deviceFingerprint, location string, now time.Time) *Record {
	return &Record{
		ID:                  uuid.New(),
		IdentityID:          identityID,
		Fingerprint:         deviceFingerprint,
		LocationConsistency: 100,
		FirstSeenLocation:   location,
		LastSeenLocation:    location,
		FirstSeenAt:         now,
		LastSeenAt:          now,
		UpdatedAt:           now,
	}
}

// Counters projects the record onto the trust scorer's input.
func (record *Record) Counters() trust.Counters {
	return trust.Counters{
		FirstSeenAt:          record.FirstSeenAt,
		TotalSessions:        record.TotalSessions,
		SuccessfulLogins:     record.SuccessfulLogins,
		FailedAttempts:       record.FailedAttempts,
		SuspiciousActivities: record.SuspiciousActivities,
		ChallengesPassed:     record.ChallengesPassed,
		ChallengesFailed:     record.ChallengesFailed,
		LocationConsistency:  record.LocationConsistency,
	}
}

// rescore recomputes the trust score and level from the current counters.
func (record *Record) rescore(now time.Time) {
	record.TrustScore = trust.Score(record.Counters(), now)
	record.TrustLevel = trust.LevelFor(record.TrustScore)
	record.UpdatedAt = now
}

// # Security Events

// Severity classifies a security event for alerting and retention.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SecurityEvent is one row of the durable security-event log: the precise
// internal reason behind the undifferentiated failures shown to callers.
type SecurityEvent struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	SessionID  string    `json:"session_id,omitempty"`
	EventType  string    `json:"event_type"`
	Severity   string    `json:"severity"`
	IPAddress  string    `json:"ip_address,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
