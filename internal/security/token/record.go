// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package token

import (
	"time"

	"github.com/thanhphan-dev/lifelink/internal/platform/sec"
	"github.com/thanhphan-dev/lifelink/pkg/uuid"
)

// # Refresh Token Record

// RefreshRecord is the durable server-side shadow of a refresh token.
//
// # Invariants
//
//   - TokenHash is the only stored form of the token; the raw value never
//     reaches the database or the logs. The hash can only be produced via
//     [NewRefreshRecord], which derives it from the raw token itself.
//   - AbsoluteExpiresAt is fixed at issuance. Refreshes touch LastUsedAt,
//     UsageCount, and the observed device info — never the expiry. This is
//     what bounds maximum session lifetime regardless of activity.
type RefreshRecord struct {
	ID         string `json:"id"`
	IdentityID string `json:"identity_id"`
	// SessionID ties the token to the session it refreshes; access tokens
	// minted on redemption carry this id.
	SessionID string `json:"session_id"`
	// TokenHash is the lowercase-hex SHA-256 digest of the encoded token.
	TokenHash         string    `json:"-"`
	DeviceInfo        string    `json:"device_info"`
	IPAddress         string    `json:"ip_address"`
	AbsoluteExpiresAt time.Time `json:"absolute_expires_at"`
	LastUsedAt        time.Time `json:"last_used_at"`
	UsageCount        int       `json:"usage_count"`
	Revoked           bool      `json:"revoked"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewRefreshRecord builds a record for a freshly issued raw token. The hash
// is computed here so no caller ever assigns it directly.
func NewRefreshRecord(identityID, sessionID, rawToken, deviceInfo, ipAddress string, issuedAt time.Time, absoluteTTL time.Duration) *RefreshRecord {
	return &RefreshRecord{
		ID:                uuid.New(),
		IdentityID:        identityID,
		SessionID:         sessionID,
		TokenHash:         sec.HashToken(rawToken),
		DeviceInfo:        deviceInfo,
		IPAddress:         ipAddress,
		AbsoluteExpiresAt: issuedAt.Add(absoluteTTL),
		LastUsedAt:        issuedAt,
		UsageCount:        0,
		CreatedAt:         issuedAt,
	}
}

// Usable reports whether the record can still redeem refreshes at time now:
// not revoked and inside the absolute-expiry window. The check is stricter
// than and independent of the token's own embedded expiry.
func (record *RefreshRecord) Usable(now time.Time) bool {
	return !record.Revoked && now.Before(record.AbsoluteExpiresAt)
}
