// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package devicetrust_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhphan-dev/lifelink/internal/security/devicetrust"
	"github.com/thanhphan-dev/lifelink/internal/security/trust"
)

var observeTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

const testFingerprint = "ab54d286f1e3c9a07b2d4e6f8a0c1e3d5b7f9a1c3e5d7f9b1d3f5a7c9e1b3d5f"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryStore is an in-memory trust Store.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]*devicetrust.Record // by identity|fingerprint
	events  []*devicetrust.SecurityEvent
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*devicetrust.Record)}
}

func recordKey(identityID, fingerprint string) string { return identityID + "|" + fingerprint }

func (s *memoryStore) FindRecord(_ context.Context, identityID, deviceFingerprint string) (*devicetrust.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[recordKey(identityID, deviceFingerprint)]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

func (s *memoryStore) SaveRecord(_ context.Context, record *devicetrust.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[recordKey(record.IdentityID, record.Fingerprint)] = &copied
	return nil
}

func (s *memoryStore) UpdateRecord(_ context.Context, record *devicetrust.Record) error {
	return s.SaveRecord(context.Background(), record)
}

func (s *memoryStore) RevokeRecord(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.records {
		if stored.ID == recordID {
			stored.Revoked = true
		}
	}
	return nil
}

func (s *memoryStore) ListForIdentity(_ context.Context, identityID string) ([]*devicetrust.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]*devicetrust.Record, 0)
	for _, stored := range s.records {
		if stored.IdentityID == identityID {
			copied := *stored
			records = append(records, &copied)
		}
	}
	return records, nil
}

func (s *memoryStore) InsertEvent(_ context.Context, event *devicetrust.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memoryStore) ListEventsForIdentity(_ context.Context, identityID string, limit int) ([]*devicetrust.SecurityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]*devicetrust.SecurityEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		if s.events[i].IdentityID == identityID {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

/*
TestService_ObserveLogin_FirstSight verifies a new fingerprint creates a
record with full location consistency and seeded counters.
*/
func TestService_ObserveLogin_FirstSight(t *testing.T) {
	clock := &fakeClock{now: observeTime}
	store := newMemoryStore()
	service := devicetrust.NewService(store, devicetrust.WithClock(clock.Now))
	ctx := context.Background()

	record, err := service.ObserveLogin(ctx, "identity-1", testFingerprint, "VN-SGN", true)
	require.NoError(t, err)

	assert.Equal(t, 1, record.SuccessfulLogins)
	assert.Equal(t, 1, record.TotalSessions)
	assert.Equal(t, 0, record.FailedAttempts)
	assert.Equal(t, 100, record.LocationConsistency)
	assert.Equal(t, "VN-SGN", record.FirstSeenLocation)
	assert.Equal(t, observeTime, record.FirstSeenAt)
	assert.Equal(t, trust.LevelFor(record.TrustScore), record.TrustLevel)

	// The record is durable: a second observation finds it again.
	clock.Advance(time.Hour)
	again, err := service.ObserveLogin(ctx, "identity-1", testFingerprint, "VN-SGN", true)
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.ID)
	assert.Equal(t, 2, again.SuccessfulLogins)
	assert.Equal(t, observeTime, again.FirstSeenAt)
}

/*
TestService_TrustGrowsWithHistory verifies that months of clean logins move
a device up the trust bands.
*/
func TestService_TrustGrowsWithHistory(t *testing.T) {
	clock := &fakeClock{now: observeTime}
	store := newMemoryStore()
	service := devicetrust.NewService(store, devicetrust.WithClock(clock.Now))
	ctx := context.Background()

	// A device with no record at all always needs verification.
	assert.True(t, service.RequiresVerification(nil))

	first, err := service.ObserveLogin(ctx, "identity-1", testFingerprint, "", true)
	require.NoError(t, err)

	var latest *devicetrust.Record
	for day := 0; day < 100; day++ {
		clock.Advance(12 * time.Hour)
		latest, err = service.ObserveLogin(ctx, "identity-1", testFingerprint, "", true)
		require.NoError(t, err)
		clock.Advance(12 * time.Hour)
	}

	_, err = service.ObserveChallenge(ctx, "identity-1", testFingerprint, true)
	require.NoError(t, err)
	_, err = service.ObserveChallenge(ctx, "identity-1", testFingerprint, true)
	require.NoError(t, err)
	latest, err = service.ObserveChallenge(ctx, "identity-1", testFingerprint, true)
	require.NoError(t, err)

	assert.Greater(t, latest.TrustScore, first.TrustScore)
	assert.GreaterOrEqual(t, latest.TrustScore, 70)
	assert.True(t, latest.Verified)
	assert.False(t, service.RequiresVerification(latest))
}

/*
TestService_ObserveSuspicious verifies anomaly counting erodes trust and
trips the verification gate past two events.
*/
func TestService_ObserveSuspicious(t *testing.T) {
	clock := &fakeClock{now: observeTime}
	store := newMemoryStore()
	service := devicetrust.NewService(store, devicetrust.WithClock(clock.Now))
	ctx := context.Background()

	_, err := service.ObserveLogin(ctx, "identity-1", testFingerprint, "", true)
	require.NoError(t, err)

	var record *devicetrust.Record
	for i := 0; i < 3; i++ {
		record, err = service.ObserveSuspicious(ctx, "identity-1", testFingerprint)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, record.SuspiciousActivities)
	assert.True(t, service.RequiresVerification(record))
	assert.Greater(t, service.RiskScore(record), 50)
}

/*
TestService_RevokedAlwaysRequiresVerification verifies administrative
revocation overrides any accumulated trust.
*/
func TestService_RevokedAlwaysRequiresVerification(t *testing.T) {
	clock := &fakeClock{now: observeTime}
	store := newMemoryStore()
	service := devicetrust.NewService(store, devicetrust.WithClock(clock.Now))
	ctx := context.Background()

	record, err := service.ObserveLogin(ctx, "identity-1", testFingerprint, "", true)
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, record.ID))
	require.NoError(t, service.Revoke(ctx, record.ID)) // idempotent

	revoked, err := store.FindRecord(ctx, "identity-1", testFingerprint)
	require.NoError(t, err)
	assert.True(t, revoked.Revoked)
	assert.True(t, service.RequiresVerification(revoked))
}

/*
TestService_RecordSecurityEvent verifies events land in the log with their
precise internal reason.
*/
func TestService_RecordSecurityEvent(t *testing.T) {
	clock := &fakeClock{now: observeTime}
	store := newMemoryStore()
	service := devicetrust.NewService(store, devicetrust.WithClock(clock.Now))
	ctx := context.Background()

	service.RecordSecurityEvent(ctx, "identity-1", "session-1",
		"session_ip_change", devicetrust.SeverityWarning, "198.51.100.4", "address drift")
	service.RecordSecurityEvent(ctx, "identity-1", "",
		"login_failed", devicetrust.SeverityInfo, "198.51.100.4", "bad password")

	events, err := service.ListEventsForIdentity(ctx, "identity-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Newest first.
	assert.Equal(t, "login_failed", events[0].EventType)
	assert.Equal(t, "session_ip_change", events[1].EventType)
	assert.NotEmpty(t, events[0].ID)
}
