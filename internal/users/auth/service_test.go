// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package auth_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhphan-dev/lifelink/internal/platform/apperr"
	"github.com/thanhphan-dev/lifelink/internal/platform/constants"
	"github.com/thanhphan-dev/lifelink/internal/security/cache"
	"github.com/thanhphan-dev/lifelink/internal/security/devicetrust"
	"github.com/thanhphan-dev/lifelink/internal/security/fingerprint"
	"github.com/thanhphan-dev/lifelink/internal/security/session"
	"github.com/thanhphan-dev/lifelink/internal/security/token"
	"github.com/thanhphan-dev/lifelink/internal/users/auth"
)

var loginTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

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

// # In-Memory Fakes

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*auth.User)}
}

func (r *memoryUserRepo) find(match func(*auth.User) bool) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if match(user) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("User not found")
}

func (r *memoryUserRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	return r.find(func(u *auth.User) bool { return u.ID == id })
}

func (r *memoryUserRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return r.find(func(u *auth.User) bool { return u.Email == email })
}

func (r *memoryUserRepo) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	return r.find(func(u *auth.User) bool { return u.Username == username })
}

func (r *memoryUserRepo) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memoryUserRepo) Update(_ context.Context, user *auth.User) error {
	return r.Create(context.Background(), user)
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, userID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.PasswordHash = newHash
	}
	return nil
}

func (r *memoryUserRepo) RecordFailedLogin(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user := r.users[userID]
	user.FailedLoginCount++
	return user.FailedLoginCount, nil
}

func (r *memoryUserRepo) ResetFailedLogins(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.FailedLoginCount = 0
		user.LockedUntil = nil
	}
	return nil
}

func (r *memoryUserRepo) Lock(_ context.Context, userID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.LockedUntil = &until
	}
	return nil
}

func (r *memoryUserRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *memoryUserRepo) MarkVerified(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.IsVerified = true
	}
	return nil
}

type memoryTokenRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{values: make(map[string]string)}
}

func (r *memoryTokenRepo) Set(_ context.Context, tokenValue, userID string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[tokenValue] = userID
	return nil
}

func (r *memoryTokenRepo) Get(_ context.Context, tokenValue string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.values[tokenValue]
	if !ok {
		return "", apperr.NotFound("Token is invalid or expired")
	}
	return userID, nil
}

func (r *memoryTokenRepo) Delete(_ context.Context, tokenValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, tokenValue)
	return nil
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*session.Session)}
}

func (s *memorySessionStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

func (s *memorySessionStore) FindByID(_ context.Context, sessionID string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

func (s *memorySessionStore) ListActiveForIdentity(_ context.Context, identityID string, limit, offset int) ([]*session.Session, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := make([]*session.Session, 0)
	for _, stored := range s.sessions {
		if stored.IdentityID == identityID && stored.Active {
			copied := *stored
			active = append(active, &copied)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	total := len(active)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return active[offset:end], total, nil
}

func (s *memorySessionStore) TouchActivity(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.sessions[sessionID]; ok && stored.LastActivityAt.Before(at) {
		stored.LastActivityAt = at
	}
	return nil
}

func (s *memorySessionStore) MarkSuspicious(_ context.Context, sessionID string, riskDelta int) error {
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

func (s *memorySessionStore) Terminate(_ context.Context, sessionID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.sessions[sessionID]; ok && stored.Active {
		stored.Active = false
		stored.EndReason = reason
	}
	return nil
}

func (s *memorySessionStore) TerminateAllForIdentity(_ context.Context, identityID, exceptSessionID, reason string) (int, error) {
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

func (s *memorySessionStore) DeleteExpired(_ context.Context) (int, error) { return 0, nil }

type memoryRefreshStore struct {
	mu      sync.Mutex
	records map[string]*token.RefreshRecord
}

func newMemoryRefreshStore() *memoryRefreshStore {
	return &memoryRefreshStore{records: make(map[string]*token.RefreshRecord)}
}

func (s *memoryRefreshStore) Save(_ context.Context, record *token.RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.ID] = &copied
	return nil
}

func (s *memoryRefreshStore) FindByHash(_ context.Context, tokenHash string) (*token.RefreshRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.TokenHash == tokenHash {
			copied := *record
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memoryRefreshStore) Touch(_ context.Context, record *token.RefreshRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.records[record.ID]; ok {
		stored.LastUsedAt = record.LastUsedAt
		stored.UsageCount = record.UsageCount
	}
	return nil
}

func (s *memoryRefreshStore) Revoke(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.records[recordID]; ok {
		stored.Revoked = true
	}
	return nil
}

func (s *memoryRefreshStore) RevokeAllForIdentity(_ context.Context, identityID, exceptID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, record := range s.records {
		if record.IdentityID == identityID && !record.Revoked && record.ID != exceptID {
			record.Revoked = true
			count++
		}
	}
	return count, nil
}

func (s *memoryRefreshStore) DeleteExpired(_ context.Context) (int, error) { return 0, nil }

type memoryTrustStore struct {
	mu      sync.Mutex
	records map[string]*devicetrust.Record
	events  []*devicetrust.SecurityEvent
}

func newMemoryTrustStore() *memoryTrustStore {
	return &memoryTrustStore{records: make(map[string]*devicetrust.Record)}
}

func (s *memoryTrustStore) FindRecord(_ context.Context, identityID, deviceFingerprint string) (*devicetrust.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[identityID+"|"+deviceFingerprint]
	if !ok {
		return nil, nil
	}
	copied := *stored
	return &copied, nil
}

func (s *memoryTrustStore) SaveRecord(_ context.Context, record *devicetrust.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.IdentityID+"|"+record.Fingerprint] = &copied
	return nil
}

func (s *memoryTrustStore) UpdateRecord(_ context.Context, record *devicetrust.Record) error {
	return s.SaveRecord(context.Background(), record)
}

func (s *memoryTrustStore) RevokeRecord(_ context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.records {
		if stored.ID == recordID {
			stored.Revoked = true
		}
	}
	return nil
}

func (s *memoryTrustStore) ListForIdentity(_ context.Context, identityID string) ([]*devicetrust.Record, error) {
	return nil, nil
}

func (s *memoryTrustStore) InsertEvent(_ context.Context, event *devicetrust.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memoryTrustStore) ListEventsForIdentity(_ context.Context, identityID string, limit int) ([]*devicetrust.SecurityEvent, error) {
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

func (s *memoryTrustStore) eventTypes(identityID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0)
	for _, event := range s.events {
		if event.IdentityID == identityID {
			types = append(types, event.EventType)
		}
	}
	return types
}

// # Fixture

type fixture struct {
	clock      *fakeClock
	service    *auth.Service
	users      *memoryUserRepo
	trustStore *memoryTrustStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: loginTime}

	users := newMemoryUserRepo()
	trustStore := newMemoryTrustStore()
	devices := devicetrust.NewService(trustStore, devicetrust.WithClock(clock.Now))

	sessionCache := cache.New[*session.Session](
		constants.SessionCacheCeiling, constants.SessionCacheTTL,
		cache.WithClock[*session.Session](clock.Now))
	sessions := session.NewManager(newMemorySessionStore(), sessionCache,
		session.WithClock(clock.Now),
		session.WithEventRecorder(devices))

	manager := token.NewManager("test-secret", constants.AuthIssuer,
		constants.AccessTokenTTL, constants.RefreshTokenTTL, token.WithClock(clock.Now))
	tokens := token.NewService(manager, newMemoryRefreshStore(), token.WithServiceClock(clock.Now))

	identityCache := cache.New[*auth.User](
		constants.IdentityCacheCeiling, constants.IdentityCacheTTL,
		cache.WithClock[*auth.User](clock.Now))

	service := auth.NewService(users, newMemoryTokenRepo(), newMemoryTokenRepo(),
		tokens, sessions, devices, identityCache, auth.WithClock(clock.Now))

	return &fixture{clock: clock, service: service, users: users, trustStore: trustStore}
}

func laptopContext() fingerprint.ClientContext {
	return fingerprint.ClientContext{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
		IPAddress:      "203.0.113.9",
	}
}

func registerMember(t *testing.T, f *fixture) *auth.User {
	t.Helper()
	user, err := f.service.Register(context.Background(), auth.RegisterInput{
		Username:    "donor_anh",
		Email:       "anh@example.com",
		Password:    "correct-horse-battery",
		DisplayName: "Anh",
	})
	require.NoError(t, err)
	return user
}

// # Tests

/*
TestService_LoginHappyPath verifies the full credential flow: token pair,
fingerprinted session, and identity state.
*/
func TestService_LoginHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerMember(t, f)

	loginSession, err := f.service.Login(ctx, auth.LoginInput{
		Login:    "anh@example.com",
		Password: "correct-horse-battery",
		Client:   laptopContext(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, loginSession.AccessToken)
	assert.NotEmpty(t, loginSession.RefreshToken)
	assert.Equal(t, loginTime.Add(constants.RefreshTokenTTL), loginSession.RefreshTokenExpiresAt)
	assert.Equal(t, user.ID, loginSession.Session.IdentityID)
	assert.Equal(t, "password", loginSession.Session.LoginMethod)
	assert.True(t, loginSession.Session.Active)

	// A clean first login on a well-formed browser context earns medium
	// trust right away; no challenge needed.
	assert.False(t, loginSession.RequiresVerification)

	// The access token resolves back to the same principal.
	claims, err := f.service.Authenticate(ctx, loginSession.AccessToken, laptopContext())
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "donor_anh", claims.Username)
	assert.Equal(t, loginSession.Session.ID, claims.SessionID)
}

/*
TestService_LoginUndifferentiatedFailures verifies unknown identities and
wrong passwords are indistinguishable to the caller, while the event log
keeps the precise reason.
*/
func TestService_LoginUndifferentiatedFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerMember(t, f)

	_, unknownErr := f.service.Login(ctx, auth.LoginInput{
		Login: "nobody@example.com", Password: "whatever", Client: laptopContext()})
	_, wrongErr := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "wrong", Client: laptopContext()})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	assert.Contains(t, f.trustStore.eventTypes(user.ID), "login_failed")
}

/*
TestService_LockoutAfterConsecutiveFailures verifies the account locks at
the threshold and announces the lock on subsequent attempts, even with the
correct password.
*/
func TestService_LockoutAfterConsecutiveFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerMember(t, f)

	for i := 0; i < constants.MaxFailedLogins; i++ {
		_, err := f.service.Login(ctx, auth.LoginInput{
			Login: "anh@example.com", Password: "wrong", Client: laptopContext()})
		require.Error(t, err)
	}

	assert.Contains(t, f.trustStore.eventTypes(user.ID), "account_locked")

	// Correct password, locked account.
	_, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	appErr := &apperr.AppError{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ACCOUNT_LOCKED", appErr.Code)

	// The lock expires on its own; the counter resets on success.
	f.clock.Advance(constants.AccountLockDuration + time.Second)
	loginSession, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)
	assert.NotNil(t, loginSession)

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.FailedLoginCount)
	assert.Nil(t, stored.LockedUntil)
}

/*
TestService_RefreshWithoutRotation verifies redemption returns the same
refresh token with its original absolute expiry, alongside a fresh access
token.
*/
func TestService_RefreshWithoutRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registerMember(t, f)

	loginSession, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)

	f.clock.Advance(2 * 24 * time.Hour)
	refreshed, err := f.service.RefreshSession(ctx, loginSession.RefreshToken, laptopContext())
	require.NoError(t, err)

	assert.Equal(t, loginSession.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, loginSession.RefreshTokenExpiresAt, refreshed.RefreshTokenExpiresAt)
	assert.NotEqual(t, loginSession.AccessToken, refreshed.AccessToken)
	assert.Equal(t, loginSession.Session.ID, refreshed.Session.ID)

	// Past the absolute window nothing redeems.
	f.clock.Advance(6 * 24 * time.Hour)
	_, err = f.service.RefreshSession(ctx, loginSession.RefreshToken, laptopContext())
	appErr := &apperr.AppError{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_TOKEN", appErr.Code)
}

/*
TestService_LogoutKillsRefreshPath verifies logout revokes the token,
terminates the session, and stays idempotent.
*/
func TestService_LogoutKillsRefreshPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registerMember(t, f)

	loginSession, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, loginSession.RefreshToken))
	require.NoError(t, f.service.Logout(ctx, loginSession.RefreshToken)) // idempotent

	_, err = f.service.RefreshSession(ctx, loginSession.RefreshToken, laptopContext())
	require.Error(t, err)

	// The session is gone too, so the old access token dies with it.
	_, err = f.service.Authenticate(ctx, loginSession.AccessToken, laptopContext())
	require.Error(t, err)
}

/*
TestService_LogoutOthersSparesCurrent verifies the bulk path keeps the
caller's session and refresh token alive.
*/
func TestService_LogoutOthersSparesCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerMember(t, f)

	phone := laptopContext()
	phone.UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	phone.IPAddress = "198.51.100.4"

	first, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)
	second, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: phone})
	require.NoError(t, err)

	count, err := f.service.LogoutOthers(ctx, user.ID, second.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The spared session still refreshes; the other one is dead.
	_, err = f.service.RefreshSession(ctx, second.RefreshToken, phone)
	require.NoError(t, err)
	_, err = f.service.RefreshSession(ctx, first.RefreshToken, laptopContext())
	require.Error(t, err)
}

/*
TestService_ChangePasswordTearsDownOtherDevices verifies credential rotation
terminates every other session while the caller keeps working.
*/
func TestService_ChangePasswordTearsDownOtherDevices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerMember(t, f)

	first, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)
	second, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)

	// Wrong current password changes nothing.
	err = f.service.ChangePassword(ctx, user.ID, "wrong", "new-password-123", second.RefreshToken)
	require.Error(t, err)

	require.NoError(t, f.service.ChangePassword(ctx, user.ID,
		"correct-horse-battery", "new-password-123", second.RefreshToken))

	_, err = f.service.RefreshSession(ctx, second.RefreshToken, laptopContext())
	require.NoError(t, err)
	_, err = f.service.RefreshSession(ctx, first.RefreshToken, laptopContext())
	require.Error(t, err)

	// Only the new password logs in now.
	_, err = f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.Error(t, err)
	_, err = f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "new-password-123", Client: laptopContext()})
	require.NoError(t, err)
}

/*
TestService_SessionListingAndRemoteTermination verifies owners can inspect
and remotely end their sessions, and only their own.
*/
func TestService_SessionListingAndRemoteTermination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := registerMember(t, f)

	first, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)

	sessions, total, err := f.service.ListSessions(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.Session.ID, sessions[0].ID) // newest first

	// Terminating someone else's session id fails closed, and the error is
	// indistinguishable from an unknown session id.
	err = f.service.TerminateSession(ctx, "other-identity", first.Session.ID)
	require.Error(t, err)
	appErr := &apperr.AppError{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	err = f.service.TerminateSession(ctx, user.ID, "no-such-session")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)

	require.NoError(t, f.service.TerminateSession(ctx, user.ID, first.Session.ID))
	_, total, err = f.service.ListSessions(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

/*
TestService_ResetPasswordFlow verifies the recovery path: token redemption,
password swap, and full session teardown.
*/
func TestService_ResetPasswordFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registerMember(t, f)

	loginSession, err := f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "correct-horse-battery", Client: laptopContext()})
	require.NoError(t, err)

	resetToken, err := f.service.RequestPasswordReset(ctx, "anh@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	// Unknown addresses produce no token and no error (anti-enumeration).
	ghostToken, err := f.service.RequestPasswordReset(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, ghostToken)

	require.NoError(t, f.service.ResetPassword(ctx, resetToken, "recovered-pass-1"))

	// The token is single-use and every session is dead.
	require.Error(t, f.service.ResetPassword(ctx, resetToken, "recovered-pass-2"))
	_, err = f.service.RefreshSession(ctx, loginSession.RefreshToken, laptopContext())
	require.Error(t, err)

	_, err = f.service.Login(ctx, auth.LoginInput{
		Login: "anh@example.com", Password: "recovered-pass-1", Client: laptopContext()})
	require.NoError(t, err)
}

/*
TestService_RegisterConflicts verifies identity uniqueness surfaces as
client-safe conflicts.
*/
func TestService_RegisterConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	registerMember(t, f)

	_, err := f.service.Register(ctx, auth.RegisterInput{
		Username: "someone_else", Email: "anh@example.com", Password: "password-123"})
	appErr := &apperr.AppError{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)

	_, err = f.service.Register(ctx, auth.RegisterInput{
		Username: "donor_anh", Email: "fresh@example.com", Password: "password-123"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
}
