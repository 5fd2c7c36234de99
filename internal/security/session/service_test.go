// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package session_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhphan-dev/lifelink/internal/security/cache"
	"github.com/thanhphan-dev/lifelink/internal/security/fingerprint"
	"github.com/thanhphan-dev/lifelink/internal/security/session"
)

var validateTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

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

// memoryStore is an in-memory session Store tracking lookup traffic so tests
// can prove the cache short-circuits durable reads.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	finds    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]*session.Session)}
}

func (s *memoryStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

func (s *memoryStore) FindByID(_ context.Context, sessionID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	stored, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

func (s *memoryStore) ListActiveForIdentity(_ context.Context, identityID string, limit, offset int) ([]*session.Session, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]*session.Session, 0)
	for _, stored := range s.sessions {
		if stored.IdentityID == identityID && stored.Active {
			copied := *stored
			active = append(active, &copied)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	total := len(active)
	if offset >= len(active) {
		return nil, total, nil
	}
	active = active[offset:]
	if limit < len(active) {
		active = active[:limit]
	}
	return active, total, nil
}

func (s *memoryStore) TouchActivity(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.sessions[sessionID]; ok && stored.LastActivityAt.Before(at) {
		stored.LastActivityAt = at
	}
	return nil
}

func (s *memoryStore) MarkSuspicious(_ context.Context, sessionID string, riskDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.sessions[sessionID]; ok && stored.Active {
		stored.Suspicious = true
		stored.RiskScore += riskDelta
		if stored.RiskScore > 100 {
			stored.RiskScore = 100
		}
	}
	return nil
}

func (s *memoryStore) Terminate(_ context.Context, sessionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.sessions[sessionID]; ok && stored.Active {
		stored.Active = false
		stored.EndReason = reason
	}
	return nil
}

func (s *memoryStore) TerminateAllForIdentity(_ context.Context, identityID, exceptSessionID, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, stored := range s.sessions {
		if stored.IdentityID == identityID && stored.Active && stored.ID != exceptSessionID {
			stored.Active = false
			stored.EndReason = reason
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, stored := range s.sessions {
		if stored.Active && !time.Now().Before(stored.ExpiresAt) {
			stored.Active = false
			stored.EndReason = session.ReasonExpired
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) findCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

// eventLog captures recorded security events.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) RecordSecurityEvent(_ context.Context, _, _, eventType, _, _, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, eventType)
}

func (l *eventLog) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func laptopContext() fingerprint.ClientContext {
	return fingerprint.ClientContext{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
		IPAddress:      "203.0.113.10",
	}
}

func newTestManager(t *testing.T) (*session.Manager, *memoryStore, *eventLog, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: validateTime}
	store := newMemoryStore()
	events := &eventLog{}
	sessionCache := cache.New(100, 5*time.Minute, cache.WithClock[*session.Session](clock.Now))

	manager := session.NewManager(store, sessionCache,
		session.WithClock(clock.Now),
		session.WithEventRecorder(events),
	)
	return manager, store, events, clock
}

/*
TestManager_CreateAndValidate verifies the happy path: same fingerprint and
address validate cleanly and last activity advances.
*/
func TestManager_CreateAndValidate(t *testing.T) {
	manager, _, events, clock := newTestManager(t)
	ctx := context.Background()

	created, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)
	require.True(t, created.Active)
	assert.Equal(t, 0, created.RiskScore)
	assert.Len(t, created.Fingerprint, 32)
	assert.Len(t, created.DeviceFingerprint, 64)
	assert.Equal(t, "chrome on windows", created.DeviceInfo)

	clock.Advance(time.Minute)
	validated, err := manager.Validate(ctx, created.ID, laptopContext())
	require.NoError(t, err)
	require.NotNil(t, validated)
	assert.True(t, validated.Active)
	assert.False(t, validated.Suspicious)
	assert.Equal(t, validateTime.Add(time.Minute), validated.LastActivityAt)
	assert.Empty(t, events.recorded())
}

/*
TestManager_ValidateHitsCacheFirst verifies the durable store is consulted
only on cache misses.
*/
func TestManager_ValidateHitsCacheFirst(t *testing.T) {
	manager, store, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)

	// Write-through population: validation goes through the cache.
	_, err = manager.Validate(ctx, created.ID, laptopContext())
	require.NoError(t, err)
	assert.Equal(t, 0, store.findCount())
}

/*
TestManager_ConcurrentValidate verifies cached session state is never shared
mutably across goroutines: parallel validations of one session each receive a
private snapshot, and a caller scribbling on its result cannot poison the
cache or any other caller.
*/
func TestManager_ConcurrentValidate(t *testing.T) {
	manager, _, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				validated, validateErr := manager.Validate(ctx, created.ID, laptopContext())
				assert.NoError(t, validateErr)
				if assert.NotNil(t, validated) {
					// Caller-side writes must stay invisible to everyone else.
					validated.RiskScore = 999
					validated.Suspicious = true
				}
			}
		}()
	}
	wg.Wait()

	clock.Advance(time.Second)
	validated, err := manager.Validate(ctx, created.ID, laptopContext())
	require.NoError(t, err)
	require.NotNil(t, validated)
	assert.Equal(t, 0, validated.RiskScore)
	assert.False(t, validated.Suspicious)
}

/*
TestManager_IPDriftFailsOpen verifies that a changed address keeps the
session active but flags it suspicious and records exactly one security
event.
*/
func TestManager_IPDriftFailsOpen(t *testing.T) {
	manager, store, events, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)

	roaming := laptopContext()
	roaming.IPAddress = "198.51.100.44"

	validated, err := manager.Validate(ctx, created.ID, roaming)
	require.NoError(t, err)
	require.NotNil(t, validated)

	assert.True(t, validated.Active)
	assert.True(t, validated.Suspicious)
	assert.Equal(t, 10, validated.RiskScore)
	assert.Equal(t, []string{"session_ip_change"}, events.recorded())

	stored, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, stored.Suspicious)
}

/*
TestManager_ValidateMisses verifies unknown, terminated, and expired sessions
all resolve to (nil, nil).
*/
func TestManager_ValidateMisses(t *testing.T) {
	manager, _, _, clock := newTestManager(t)
	ctx := context.Background()

	missing, err := manager.Validate(ctx, "no-such-session", laptopContext())
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)
	require.NoError(t, manager.Terminate(ctx, created.ID, session.ReasonLogout))

	terminated, err := manager.Validate(ctx, created.ID, laptopContext())
	require.NoError(t, err)
	assert.Nil(t, terminated)

	expiring, err := manager.Create(ctx, "identity-2", laptopContext(), "password")
	require.NoError(t, err)
	clock.Advance(session.DefaultTTL + time.Second)

	expired, err := manager.Validate(ctx, expiring.ID, laptopContext())
	require.NoError(t, err)
	assert.Nil(t, expired)
}

/*
TestManager_TerminateIdempotent verifies double termination is safe and the
original end reason survives.
*/
func TestManager_TerminateIdempotent(t *testing.T) {
	manager, store, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)

	require.NoError(t, manager.Terminate(ctx, created.ID, session.ReasonLogout))
	require.NoError(t, manager.Terminate(ctx, created.ID, session.ReasonAdminRevoked))

	stored, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)
	assert.Equal(t, session.ReasonLogout, stored.EndReason)
}

/*
TestManager_TerminateAllExceptCurrent verifies the logout-all-others flow:
with {S1, S2, S3} active and S1 spared, the count is 2 and only S1 survives.
*/
func TestManager_TerminateAllExceptCurrent(t *testing.T) {
	manager, _, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)
	second, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)
	third, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
	require.NoError(t, err)

	count, err := manager.TerminateAllForIdentity(ctx, "identity-1", first.ID, session.ReasonLogoutAll)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	survivor, err := manager.Validate(ctx, first.ID, laptopContext())
	require.NoError(t, err)
	assert.NotNil(t, survivor)

	for _, terminated := range []string{second.ID, third.ID} {
		gone, validateErr := manager.Validate(ctx, terminated, laptopContext())
		require.NoError(t, validateErr)
		assert.Nil(t, gone)
	}
}

/*
TestManager_ListActiveForIdentity verifies paging over active sessions.
*/
func TestManager_ListActiveForIdentity(t *testing.T) {
	manager, _, _, clock := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := manager.Create(ctx, "identity-1", laptopContext(), "password")
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	page, total, err := manager.ListActiveForIdentity(ctx, "identity-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)
}
