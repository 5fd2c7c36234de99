// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package session

import (
	"context"
	"time"

	"github.com/thanhphan-dev/lifelink/internal/platform/ctxutil"
	"github.com/thanhphan-dev/lifelink/internal/security/cache"
	"github.com/thanhphan-dev/lifelink/internal/security/fingerprint"
)

// # Collaborators

// EventRecorder receives security events for the durable security-event log.
// Recording is best-effort from the session manager's point of view: a
// failed write is logged, never allowed to fail the request.
type EventRecorder interface {
	RecordSecurityEvent(ctx context.Context, identityID, sessionID, eventType, severity, ipAddress, detail string)
}

// Notifier pushes realtime security notices toward connected clients.
// Delivery is best-effort; false/0 means nobody was connected.
type Notifier interface {
	Send(identityID string, message any) bool
}

// ipDriftRiskDelta is added to a session's risk score when the observed
// client address departs from the one recorded at creation.
const ipDriftRiskDelta = 10

// DefaultTTL bounds a session's absolute lifetime. It matches the refresh
// token's absolute window: a session can never outlive its refresh path.
const DefaultTTL = 7 * 24 * time.Hour

// # Manager

// Manager orchestrates session creation, validation, and termination over
// the durable [Store], the in-memory cache, and the security collaborators.
type Manager struct {
	store    Store
	cache    *cache.Cache[*Session]
	events   EventRecorder
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
}

// ManagerOption customizes a [Manager] at construction time.
type ManagerOption func(*Manager)

// WithClock replaces the manager's time source for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// WithEventRecorder wires the security-event log collaborator.
func WithEventRecorder(events EventRecorder) ManagerOption {
	return func(m *Manager) { m.events = events }
}

// WithNotifier wires the realtime notification collaborator.
func WithNotifier(notifier Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = notifier }
}

// NewManager wires the session manager. The cache instance is owned by the
// caller and shared with nothing else — losing it costs latency, not data.
func NewManager(store Store, sessionCache *cache.Cache[*Session], options ...ManagerOption) *Manager {
	manager := &Manager{
		store: store,
		cache: sessionCache,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, option := range options {
		option(manager)
	}
	return manager
}

/*
Create establishes a new session for an identity.

Description: Runs the fingerprint analyzer over the client context, seeds
the session's risk score with the device pre-score, persists the row, and
write-through populates the cache.

Creation is all-or-nothing: a persistence failure leaves no cached entry and
no partial state.

Returns:
  - *Session: The active session
  - error: Persistence failures only — fingerprinting never fails
*/
func (manager *Manager) Create(ctx context.Context, identityID string, clientContext fingerprint.ClientContext, loginMethod string) (*Session, error) {
	derived := fingerprint.Derive(clientContext)

	session := newSession(identityID, manager.now(), manager.ttl)
	session.Fingerprint = derived.Enhanced
	session.DeviceFingerprint = derived.Device
	session.IPAddress = clientContext.IPAddress
	session.DeviceInfo = describeDevice(derived.Profile)
	session.LoginMethod = loginMethod
	session.RiskScore = fingerprint.RiskScore(clientContext)

	if err := manager.store.Save(ctx, session); err != nil {
		return nil, err
	}

	manager.cache.Put(session.ID, session.clone(), session.IdentityID, 0)
	return session, nil
}

/*
Validate resolves a session id to its live session, cache first.

Description: A cache miss falls through to durable storage and repopulates
the cache. Absent, inactive, or expired sessions resolve to (nil, nil) — an
expected authentication failure, not an error.

On success the last-activity timestamp advances (monotonically, enforced by
the store) and the observed client address is compared with the stored one.
A mismatch marks the session suspicious and records a security event, but
the request is NOT rejected: fail-open on IP drift.

Cached entries are immutable snapshots shared across request goroutines.
Validation clones before mutating and publishes the updated state back to
the cache as a fresh snapshot, so no caller ever observes a torn entry.
*/
func (manager *Manager) Validate(ctx context.Context, sessionID string, clientContext fingerprint.ClientContext) (*Session, error) {
	now := manager.now()

	session, cached := manager.cache.Get(sessionID)
	if cached {
		session = session.clone()
	} else {
		loaded, err := manager.store.FindByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			return nil, nil
		}
		session = loaded
	}

	if !session.Live(now) {
		manager.cache.Invalidate(sessionID)
		return nil, nil
	}

	// IP drift: flag, never reject.
	if clientContext.IPAddress != "" && session.IPAddress != "" && clientContext.IPAddress != session.IPAddress {
		if err := manager.flagSuspicious(ctx, session, clientContext.IPAddress); err != nil {
			return nil, err
		}
	}

	if err := manager.store.TouchActivity(ctx, session.ID, now); err != nil {
		return nil, err
	}
	if session.LastActivityAt.Before(now) {
		session.LastActivityAt = now
	}

	manager.cache.Put(session.ID, session.clone(), session.IdentityID, 0)
	return session, nil
}

/*
Find resolves a session id without advancing activity or drift checks, cache
first. Absent sessions resolve to (nil, nil); terminated and expired ones are
returned as-is so callers can inspect their state.
*/
func (manager *Manager) Find(ctx context.Context, sessionID string) (*Session, error) {
	if cachedSession, ok := manager.cache.Get(sessionID); ok {
		return cachedSession.clone(), nil
	}
	return manager.store.FindByID(ctx, sessionID)
}

/*
Terminate ends a session and records the reason. Idempotent: terminating an
already terminated session is a no-op that preserves the original reason.
*/
func (manager *Manager) Terminate(ctx context.Context, sessionID, reason string) error {
	if err := manager.store.Terminate(ctx, sessionID, reason); err != nil {
		return err
	}
	manager.cache.Invalidate(sessionID)
	return nil
}

/*
TerminateAllForIdentity bulk-terminates an identity's sessions, optionally
sparing the caller's own (pass exceptSessionID = "" to spare none).

Returns:
  - int: Number of sessions terminated
  - error: Persistence failures
*/
func (manager *Manager) TerminateAllForIdentity(ctx context.Context, identityID, exceptSessionID, reason string) (int, error) {
	count, err := manager.store.TerminateAllForIdentity(ctx, identityID, exceptSessionID, reason)
	if err != nil {
		return 0, err
	}

	// Drop every cached session of the identity, the spared one included —
	// it repopulates on its next validation.
	manager.cache.InvalidateOwner(identityID)
	return count, nil
}

// ListActiveForIdentity pages through an identity's active sessions.
func (manager *Manager) ListActiveForIdentity(ctx context.Context, identityID string, limit, offset int) ([]*Session, int, error) {
	return manager.store.ListActiveForIdentity(ctx, identityID, limit, offset)
}

// SweepExpired terminates sessions past their expiry and prunes stale cache
// entries. Invoked by the background sweeper.
func (manager *Manager) SweepExpired(ctx context.Context) (int, error) {
	manager.cache.Sweep()
	return manager.store.DeleteExpired(ctx)
}

// flagSuspicious marks the session, records the security event, and pushes a
// realtime notice. The session stays active.
func (manager *Manager) flagSuspicious(ctx context.Context, session *Session, observedIP string) error {
	if err := manager.store.MarkSuspicious(ctx, session.ID, ipDriftRiskDelta); err != nil {
		return err
	}

	session.Suspicious = true
	session.RiskScore += ipDriftRiskDelta
	if session.RiskScore > 100 {
		session.RiskScore = 100
	}

	if manager.events != nil {
		manager.events.RecordSecurityEvent(ctx, session.IdentityID, session.ID,
			"session_ip_change", "warning", observedIP,
			"session address moved from "+session.IPAddress)
	}

	if manager.notifier != nil {
		delivered := manager.notifier.Send(session.IdentityID, map[string]any{
			"type":       "security_alert",
			"event":      "session_ip_change",
			"session_id": session.ID,
		})
		if !delivered {
			// Expected for offline identities; worth a debug line, nothing more.
			ctxutil.GetLogger(ctx).DebugContext(ctx, "security_notice_undelivered",
				"identity_id", session.IdentityID)
		}
	}

	return nil
}

// describeDevice renders a short human-readable device label from a
// classified user agent ("chrome on windows").
func describeDevice(profile fingerprint.UserAgentProfile) string {
	return profile.Browser + " on " + profile.OS
}
