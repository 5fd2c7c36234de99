// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package token

import (
	"context"
	"time"

	"github.com/thanhphan-dev/lifelink/internal/platform/sec"
)

// # Lifecycle Service

// Service orchestrates the refresh-token lifecycle over the [Manager] and a
// durable [RefreshStore].
type Service struct {
	manager *Manager
	store   RefreshStore
	now     func() time.Time
}

// ServiceOption customizes a [Service] at construction time.
type ServiceOption func(*Service)

// WithServiceClock replaces the service's time source for tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the lifecycle service.
func NewService(manager *Manager, store RefreshStore, options ...ServiceOption) *Service {
	service := &Service{
		manager: manager,
		store:   store,
		now:     time.Now,
	}
	for _, option := range options {
		option(service)
	}
	return service
}

// Manager exposes the underlying signer for access-token issuance.
func (service *Service) Manager() *Manager { return service.manager }

/*
PersistRefresh issues a refresh token and stores its durable record.

The record's absolute expiry is set once here (issuance + refresh TTL) and
never changes afterwards.

Returns:
  - string: Raw encoded refresh token (handed to the client, never stored)
  - *RefreshRecord: The persisted record
  - error: Signing or storage failures
*/
func (service *Service) PersistRefresh(ctx context.Context, identityID, sessionID, deviceInfo, ipAddress string) (string, *RefreshRecord, error) {
	rawToken, err := service.manager.IssueRefresh(identityID)
	if err != nil {
		return "", nil, err
	}

	record := NewRefreshRecord(identityID, sessionID, rawToken, deviceInfo, ipAddress,
		service.now(), service.manager.RefreshTTL())

	if err := service.store.Save(ctx, record); err != nil {
		return "", nil, err
	}

	return rawToken, record, nil
}

/*
ValidateRefresh resolves a presented refresh token to its live record.

The presented token is hashed and looked up; the result is nil (not an
error) when the token is cryptographically invalid, unknown, revoked, or
past its absolute expiry. Only storage faults surface as errors.
*/
func (service *Service) ValidateRefresh(ctx context.Context, rawToken string) (*RefreshRecord, error) {
	// Cheap cryptographic check first: a tampered or expired JWT never
	// reaches the database.
	if _, err := service.manager.DecodeRefresh(rawToken); err != nil {
		return nil, nil
	}

	record, err := service.store.FindByHash(ctx, sec.HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if record == nil || !record.Usable(service.now()) {
		return nil, nil
	}

	return record, nil
}

/*
TouchRefresh records one successful use of a refresh token.

Only last-used, usage count, and the observed device info change; the same
record (and the same raw token) stays valid until its absolute expiry.
*/
func (service *Service) TouchRefresh(ctx context.Context, record *RefreshRecord, deviceInfo, ipAddress string) error {
	record.LastUsedAt = service.now()
	record.UsageCount++
	if deviceInfo != "" {
		record.DeviceInfo = deviceInfo
	}
	if ipAddress != "" {
		record.IPAddress = ipAddress
	}

	return service.store.Touch(ctx, record)
}

// Revoke marks a record revoked. Safe to call twice.
func (service *Service) Revoke(ctx context.Context, recordID string) error {
	return service.store.Revoke(ctx, recordID)
}

// RevokeAllForIdentity revokes every live record of one identity, sparing
// exceptID when non-empty, and returns the count.
func (service *Service) RevokeAllForIdentity(ctx context.Context, identityID, exceptID string) (int, error) {
	return service.store.RevokeAllForIdentity(ctx, identityID, exceptID)
}

// SweepExpired deletes records past their absolute expiry. Invoked by the
// background sweeper, never on the request path.
func (service *Service) SweepExpired(ctx context.Context) (int, error) {
	return service.store.DeleteExpired(ctx)
}
