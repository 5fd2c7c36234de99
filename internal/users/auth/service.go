// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/thanhphan-dev/lifelink/internal/platform/apperr"
	"github.com/thanhphan-dev/lifelink/internal/platform/constants"
	"github.com/thanhphan-dev/lifelink/internal/platform/sec"
	"github.com/thanhphan-dev/lifelink/internal/security/cache"
	"github.com/thanhphan-dev/lifelink/internal/security/devicetrust"
	"github.com/thanhphan-dev/lifelink/internal/security/fingerprint"
	"github.com/thanhphan-dev/lifelink/internal/security/session"
	"github.com/thanhphan-dev/lifelink/internal/security/token"
	"github.com/thanhphan-dev/lifelink/pkg/uuid"
)

// # Service

// Service implements user authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, lockout,
// or login logic must be reviewed by the security team.
type Service struct {
	userRepository              UserRepository
	resetTokenRepository        ResetTokenRepository
	verificationTokenRepository VerificationTokenRepository
	tokens                      *token.Service
	sessions                    *session.Manager
	devices                     *devicetrust.Service
	identityCache               *cache.Cache[*User]
	now                         func() time.Time
}

// ServiceOption customizes a [Service] at construction time.
type ServiceOption func(*Service)

// WithClock replaces the service's time source for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService constructs a new [Service] with its collaborators. The identity
// cache is owned by the caller; losing it costs latency, not correctness.
func NewService(
	userRepo UserRepository,
	resetRepo ResetTokenRepository,
	verifyRepo VerificationTokenRepository,
	tokens *token.Service,
	sessions *session.Manager,
	devices *devicetrust.Service,
	identityCache *cache.Cache[*User],
	options ...ServiceOption,
) *Service {
	service := &Service{
		userRepository:              userRepo,
		resetTokenRepository:        resetRepo,
		verificationTokenRepository: verifyRepo,
		tokens:                      tokens,
		sessions:                    sessions,
		devices:                     devices,
		identityCache:               identityCache,
		now:                         time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Deep-enrollment of a new member, handling password hashing and
initial verification token state.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - err: Conflict (if identity exists) or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {

	// Verify email uniqueness. Return a client-safe Conflict err.
	_, err := service.userRepository.FindByEmail(context, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Verify username uniqueness. Return a client-safe Conflict err.
	_, err = service.userRepository.FindByUsername(context, input.Username)
	if err == nil {
		return nil, apperr.Conflict("Username is already taken")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		DisplayName:  input.DisplayName,
		Role:         sec.RoleMember,
		IsVerified:   false,
		IsActive:     true,
	}

	// Persist the user to the database
	if err := service.userRepository.Create(context, user); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	// Generate and store a verification token in Redis as an async-ready side effect
	verificationToken, err := sec.GenerateSecureToken(VerificationTokenLength)
	if err == nil {
		_ = service.verificationTokenRepository.Set(context, verificationToken, user.ID, VerificationTokenTTL)
		// TODO: Trigger email service with the verification link
	}

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Login    string // Can be Username or Email
	Password string
	Client   fingerprint.ClientContext
}

// LoginSession represents a successfully established user session.
type LoginSession struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *User
	Session               *session.Session
	// RequiresVerification signals the client that the device behind this
	// login has not earned enough trust and should pass a challenge.
	RequiresVerification bool
}

/*
Login validates user credentials and issues security tokens.

Description: Verifies identity with constant-time password comparison,
enforces the consecutive-failure lockout, feeds the device-trust engine,
establishes a fingerprinted session, and issues the token pair.

All credential failures surface as the same generic Unauthorized error; the
precise reason goes only to the security-event log. Lockout and deactivation
are the exceptions: those states announce themselves so legitimate owners
know what happened.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *LoginSession: Transport-ready session identifiers
  - err: Unauthorized, AccountLocked, AccountInactive, or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*LoginSession, error) {
	var user *User
	var err error
	// Flexible login: look up by Email or Username
	user, err = service.userRepository.FindByEmail(context, input.Login)
	if err != nil {
		user, err = service.userRepository.FindByUsername(context, input.Login)
	}

	// If (err != nil) the user does not exist. Generic message to prevent enumeration.
	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	now := service.now()
	if user.Locked(now) {
		service.devices.RecordSecurityEvent(context, user.ID, "",
			"login_locked", devicetrust.SeverityWarning, input.Client.IPAddress,
			"attempt while account locked")
		return nil, apperr.AccountLocked()
	}

	if !user.IsActive {
		return nil, apperr.AccountInactive()
	}

	derived := fingerprint.Derive(input.Client)

	// Verify password hash using constant-time comparison in bcrypt to prevent timing attacks
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, service.handleFailedLogin(context, user, derived.Device, input.Client.IPAddress)
	}

	if user.FailedLoginCount > 0 {
		_ = service.userRepository.ResetFailedLogins(context, user.ID)
		user.FailedLoginCount = 0
		user.LockedUntil = nil
	}

	// Feed the trust engine before session creation so the verification hint
	// reflects this very login.
	trustRecord, err := service.devices.ObserveLogin(context, user.ID, derived.Device, "", true)
	if err != nil {
		return nil, fmt.Errorf("auth_service_trust_observe_failed: %w", err)
	}

	userSession, err := service.sessions.Create(context, user.ID, input.Client, "password")
	if err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	// Generate short-lived Access Token bound to the session
	accessToken, err := service.tokens.Manager().IssueAccess(user.ID, userSession.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	// Generate long-lived Refresh Token with its durable record
	refreshToken, refreshRecord, err := service.tokens.PersistRefresh(
		context, user.ID, userSession.ID, userSession.DeviceInfo, input.Client.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	service.identityCache.Put(user.ID, user, user.ID, 0)

	return &LoginSession{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: refreshRecord.AbsoluteExpiresAt,
		User:                  user,
		Session:               userSession,
		RequiresVerification:  service.devices.RequiresVerification(trustRecord),
	}, nil
}

// handleFailedLogin bumps the failure counter, locks the account at the
// threshold, and records the precise reason in the event log. The caller
// always returns the same generic Unauthorized.
func (service *Service) handleFailedLogin(ctx context.Context, user *User, deviceFingerprint, ipAddress string) error {
	count, err := service.userRepository.RecordFailedLogin(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("auth_service_record_failed_login_failed: %w", err)
	}

	_, _ = service.devices.ObserveLogin(ctx, user.ID, deviceFingerprint, "", false)
	service.devices.RecordSecurityEvent(ctx, user.ID, "",
		"login_failed", devicetrust.SeverityWarning, ipAddress, "password mismatch")

	if count >= constants.MaxFailedLogins {
		until := service.now().Add(constants.AccountLockDuration)
		if err := service.userRepository.Lock(ctx, user.ID, until); err != nil {
			return fmt.Errorf("auth_service_lock_failed: %w", err)
		}
		service.devices.RecordSecurityEvent(ctx, user.ID, "",
			"account_locked", devicetrust.SeverityCritical, ipAddress,
			fmt.Sprintf("locked after %d consecutive failures", count))
	}

	return apperr.Unauthorized("Invalid login credentials")
}

/*
Logout revokes the presented refresh token and terminates its session.

Description: Idempotent by contract — an unknown, expired, or already
revoked token is a successful logout.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - err: Revocation failures
*/
func (service *Service) Logout(context context.Context, refreshToken string) error {
	record, err := service.tokens.ValidateRefresh(context, refreshToken)
	if err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}
	if record == nil {
		return nil
	}

	if err := service.tokens.Revoke(context, record.ID); err != nil {
		return fmt.Errorf("auth_service_logout_revoke_failed: %w", err)
	}
	if record.SessionID != "" {
		if err := service.sessions.Terminate(context, record.SessionID, session.ReasonLogout); err != nil {
			return fmt.Errorf("auth_service_logout_terminate_failed: %w", err)
		}
	}

	return nil
}

/*
LogoutAll terminates every session and revokes every refresh token of an
identity, the caller's own included.

Returns:
  - int: Number of sessions terminated
  - err: Bulk revocation failures
*/
func (service *Service) LogoutAll(context context.Context, userID string) (int, error) {
	if _, err := service.tokens.RevokeAllForIdentity(context, userID, ""); err != nil {
		return 0, fmt.Errorf("auth_service_logout_all_tokens_failed: %w", err)
	}

	count, err := service.sessions.TerminateAllForIdentity(context, userID, "", session.ReasonLogoutAll)
	if err != nil {
		return 0, fmt.Errorf("auth_service_logout_all_sessions_failed: %w", err)
	}

	return count, nil
}

/*
LogoutOthers terminates every session of an identity except the one behind
the presented refresh token.

Returns:
  - int: Number of sessions terminated
  - err: Bulk revocation failures
*/
func (service *Service) LogoutOthers(context context.Context, userID, currentRefreshToken string) (int, error) {
	exceptTokenID, exceptSessionID := "", ""
	if record, err := service.tokens.ValidateRefresh(context, currentRefreshToken); err == nil && record != nil {
		exceptTokenID = record.ID
		exceptSessionID = record.SessionID
	}

	if _, err := service.tokens.RevokeAllForIdentity(context, userID, exceptTokenID); err != nil {
		return 0, fmt.Errorf("auth_service_logout_others_tokens_failed: %w", err)
	}

	count, err := service.sessions.TerminateAllForIdentity(context, userID, exceptSessionID, session.ReasonLogoutAll)
	if err != nil {
		return 0, fmt.Errorf("auth_service_logout_others_sessions_failed: %w", err)
	}

	return count, nil
}

// # Session Management

/*
RefreshSession redeems a refresh token for a fresh access token.

Description: The refresh token is NOT rotated — the same record stays valid
until its absolute expiry, fixed at issuance. Redemption requires the bound
session to still be live, so a terminated session drags its refresh path
down with it.

Parameters:
  - context: context.Context
  - refreshToken: string
  - client: fingerprint.ClientContext

Returns:
  - *LoginSession: Fresh access token plus the unchanged refresh token
  - err: InvalidToken, AccountLocked, AccountInactive, or storage failures
*/
func (service *Service) RefreshSession(context context.Context, refreshToken string, client fingerprint.ClientContext) (*LoginSession, error) {
	record, err := service.tokens.ValidateRefresh(context, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_validate_failed: %w", err)
	}
	if record == nil {
		return nil, apperr.InvalidToken("Invalid or expired refresh token")
	}

	// The session must still be live; a dead session retires its token.
	userSession, err := service.sessions.Validate(context, record.SessionID, client)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_session_failed: %w", err)
	}
	if userSession == nil {
		_ = service.tokens.Revoke(context, record.ID)
		return nil, apperr.InvalidToken("Session is no longer active")
	}

	user, err := service.ResolveIdentity(context, record.IdentityID)
	if err != nil {
		return nil, apperr.Unauthorized("User not found or suspended")
	}
	if user.Locked(service.now()) {
		return nil, apperr.AccountLocked()
	}
	if !user.IsActive {
		return nil, apperr.AccountInactive()
	}

	accessToken, err := service.tokens.Manager().IssueAccess(user.ID, userSession.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_access_token_failed: %w", err)
	}

	if err := service.tokens.TouchRefresh(context, record, userSession.DeviceInfo, client.IPAddress); err != nil {
		return nil, fmt.Errorf("auth_service_refresh_touch_failed: %w", err)
	}

	return &LoginSession{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: record.AbsoluteExpiresAt,
		User:                  user,
		Session:               userSession,
	}, nil
}

/*
ListSessions pages through the identity's active sessions.

Returns:
  - []*session.Session: The page
  - int: Total number of active sessions
  - err: Storage failures
*/
func (service *Service) ListSessions(context context.Context, userID string, limit, offset int) ([]*session.Session, int, error) {
	return service.sessions.ListActiveForIdentity(context, userID, limit, offset)
}

/*
TerminateSession remotely ends one of the identity's own sessions.

Description: Ownership is enforced here — an identity can only terminate
sessions it owns. The matching refresh path is not revoked individually;
it dies on its next redemption when session validation fails.
*/
func (service *Service) TerminateSession(context context.Context, userID, sessionID string) error {
	candidate, err := service.sessions.Find(context, sessionID)
	if err != nil {
		return fmt.Errorf("auth_service_terminate_lookup_failed: %w", err)
	}

	// Unknown and foreign sessions are indistinguishable to the caller.
	if candidate == nil || candidate.IdentityID != userID {
		return apperr.NotFound("Session not found")
	}

	return service.sessions.Terminate(context, sessionID, session.ReasonAdminRevoked)
}

// # Identity Resolution

/*
ResolveIdentity loads a user by ID, cache first.

Description: The cache is the hot path for per-request authentication; a
miss falls through to the account store and repopulates the entry.
*/
func (service *Service) ResolveIdentity(context context.Context, userID string) (*User, error) {
	if user, ok := service.identityCache.Get(userID); ok {
		return user, nil
	}

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	service.identityCache.Put(user.ID, user, user.ID, 0)
	return user, nil
}

/*
Authenticate resolves a raw access token into request principals.

Description: The per-request authentication path: decode and verify the
token, validate the bound session (cache first, fail-open on IP drift),
and resolve the cached identity. The returned claims carry the CURRENT
role and state of the account, not whatever was true at token issuance.

Returns:
  - *sec.AuthClaims: Request principal
  - err: InvalidToken, AccountInactive, or storage failures
*/
func (service *Service) Authenticate(context context.Context, rawToken string, client fingerprint.ClientContext) (*sec.AuthClaims, error) {
	claims, err := service.tokens.Manager().DecodeAccess(rawToken)
	if err != nil {
		return nil, apperr.InvalidToken("Invalid or expired token")
	}

	userSession, err := service.sessions.Validate(context, claims.SessionID, client)
	if err != nil {
		return nil, fmt.Errorf("auth_service_authenticate_session_failed: %w", err)
	}
	if userSession == nil || userSession.IdentityID != claims.Subject {
		return nil, apperr.InvalidToken("Session is no longer active")
	}

	user, err := service.ResolveIdentity(context, claims.Subject)
	if err != nil {
		return nil, apperr.InvalidToken("Unknown identity")
	}
	if !user.IsActive {
		return nil, apperr.AccountInactive()
	}

	return &sec.AuthClaims{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		SessionID: userSession.ID,
	}, nil
}

// # Device Verification

/*
VerifyDevice records the outcome of a device-verification challenge and
returns whether the device still requires verification afterwards.
*/
func (service *Service) VerifyDevice(context context.Context, userID string, client fingerprint.ClientContext, passed bool) (bool, error) {
	derived := fingerprint.Derive(client)

	record, err := service.devices.ObserveChallenge(context, userID, derived.Device, passed)
	if err != nil {
		return true, fmt.Errorf("auth_service_verify_device_failed: %w", err)
	}

	severity := devicetrust.SeverityInfo
	outcome := "challenge_passed"
	if !passed {
		severity = devicetrust.SeverityWarning
		outcome = "challenge_failed"
	}
	service.devices.RecordSecurityEvent(context, userID, "",
		outcome, severity, client.IPAddress, "device "+derived.Device[:12])

	return service.devices.RequiresVerification(record), nil
}

// # Password Recovery

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Generates a secure token and saves it to Redis.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - string: Discovery token
  - err: Generation errors
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) (string, error) {
	// Look up user.
	// NOTE: We don't return NOT_FOUND if the email doesn't exist to prevent user enumeration.
	user, err := service.userRepository.FindByEmail(context, email)
	if err != nil {
		return "", nil
	}

	// Generate reset token
	resetToken, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return "", fmt.Errorf("auth_service_generate_reset_token_failed: %w", err)
	}

	// Save to Redis
	if err := service.resetTokenRepository.Set(context, resetToken, user.ID, ResetTokenTTL); err != nil {
		return "", fmt.Errorf("auth_service_save_reset_token_failed: %w", err)
	}

	return resetToken, nil
}

/*
ResetPassword completes the forgot-password flow.

Description: Verifies the token, hashes the new password, updates the DB,
and tears down every session and refresh token for security cleanup.

Parameters:
  - context: context.Context
  - resetToken: string
  - newPassword: string

Returns:
  - err: Validation or update failures
*/
func (service *Service) ResetPassword(context context.Context, resetToken, newPassword string) error {

	// Retrieve the userID associated with the reset token from Redis
	userID, err := service.resetTokenRepository.Get(context, resetToken)
	if err != nil {
		return err
	}

	// Hash the new password securely
	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_password_hash_failed: %w", err)
	}

	// Update the user's password in persistent storage
	if err := service.userRepository.UpdatePassword(context, userID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_reset_password_update_failed: %w", err)
	}

	// Security Cleanup: tear down EVERY active session and refresh token
	_, _ = service.tokens.RevokeAllForIdentity(context, userID, "")
	_, _ = service.sessions.TerminateAllForIdentity(context, userID, "", session.ReasonPasswordChange)
	service.identityCache.Invalidate(userID)

	service.devices.RecordSecurityEvent(context, userID, "",
		"password_reset", devicetrust.SeverityWarning, "", "password reset via recovery token")

	// Delete the used token from Redis
	_ = service.resetTokenRepository.Delete(context, resetToken)

	return nil
}

/*
ChangePassword allows an authenticated user to update their credentials.

Description: Verifies the current password and then tears down all OTHER
sessions and refresh tokens to ensure high security across devices.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string
  - currentRefreshToken: string

Returns:
  - err: Unauthorized or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword, currentRefreshToken string) error {

	// Fetch user by ID
	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	// Verify the current password before allowing change
	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	// Hash the brand new password
	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	// Update the database with the new hash
	if err := service.userRepository.UpdatePassword(context, userID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_change_password_update_failed: %w", err)
	}

	// Security Side Effect: tear down all other sessions to force re-login
	// on other devices; the caller's own session and token survive.
	exceptTokenID, exceptSessionID := "", ""
	if record, err := service.tokens.ValidateRefresh(context, currentRefreshToken); err == nil && record != nil {
		exceptTokenID = record.ID
		exceptSessionID = record.SessionID
	}
	_, _ = service.tokens.RevokeAllForIdentity(context, userID, exceptTokenID)
	_, _ = service.sessions.TerminateAllForIdentity(context, userID, exceptSessionID, session.ReasonPasswordChange)
	service.identityCache.Invalidate(userID)

	service.devices.RecordSecurityEvent(context, userID, exceptSessionID,
		"password_changed", devicetrust.SeverityInfo, "", "credential rotation by owner")

	return nil
}

/*
VerifyEmail confirms a user's email address using a secure token.

Parameters:
  - context: context.Context
  - verificationToken: string

Returns:
  - err: Database or resolution errors
*/
func (service *Service) VerifyEmail(context context.Context, verificationToken string) error {

	// Retrieve the user ID associated with the verification token from Redis
	userID, err := service.verificationTokenRepository.Get(context, verificationToken)
	if err != nil {
		return err
	}

	// Update the user's status to verified in persistent storage
	if err := service.userRepository.MarkVerified(context, userID); err != nil {
		return fmt.Errorf("auth_service_verify_email_failed: %w", err)
	}

	service.identityCache.Invalidate(userID)

	// Cleanup the used verification token from Redis
	_ = service.verificationTokenRepository.Delete(context, verificationToken)

	return nil
}
