// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package session

import (
	"context"
	"time"
)

// Store is the durable storage contract for sessions.
//
// # Miss Semantics
//
// FindByID returns (nil, nil) when no row exists — an unknown session is an
// expected authentication outcome. Non-nil errors are infrastructure faults
// and always propagate.
type Store interface {
	// Save persists a new session row.
	Save(ctx context.Context, session *Session) error

	// FindByID loads a session regardless of state. (nil, nil) on miss.
	FindByID(ctx context.Context, sessionID string) (*Session, error)

	// ListActiveForIdentity returns the identity's active sessions, newest
	// first, limited to limit rows at the given offset.
	ListActiveForIdentity(ctx context.Context, identityID string, limit, offset int) ([]*Session, int, error)

	// TouchActivity advances the last-activity timestamp, but only forward:
	// the update must be a no-op when the stored value is already newer.
	TouchActivity(ctx context.Context, sessionID string, at time.Time) error

	// MarkSuspicious flags the session and raises its risk score by delta
	// (clamped to 100). The session stays active.
	MarkSuspicious(ctx context.Context, sessionID string, riskDelta int) error

	// Terminate deactivates a session and records the reason. Idempotent:
	// an already terminated session is left untouched, reason included.
	Terminate(ctx context.Context, sessionID, reason string) error

	// TerminateAllForIdentity deactivates every active session of one
	// identity, optionally sparing exceptSessionID (pass "" to spare none).
	// Returns the number of sessions terminated.
	TerminateAllForIdentity(ctx context.Context, identityID, exceptSessionID, reason string) (int, error)

	// DeleteExpired terminates sessions past their expiry and returns the
	// count. Background sweeping only.
	DeleteExpired(ctx context.Context) (int, error)
}
