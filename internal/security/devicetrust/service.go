// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package devicetrust

import (
	"context"
	"log/slog"
	"time"

	"github.com/thanhphan-dev/lifelink/internal/platform/ctxutil"
	"github.com/thanhphan-dev/lifelink/internal/security/trust"
	"github.com/thanhphan-dev/lifelink/pkg/uuid"
)

// # Service

// Service mutates trust records on authentication outcomes and owns the
// security-event log.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption customizes a [Service] at construction time.
type ServiceOption func(*Service)

// WithClock replaces the service's time source for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the device-trust service.
func NewService(store Store, options ...ServiceOption) *Service {
	service := &Service{store: store, now: time.Now}
	for _, option := range options {
		option(service)
	}
	return service
}

/*
ObserveLogin records one credential-check outcome for a device.

Description: Loads (or creates, on first sight) the trust record for the
fingerprint, bumps the success/failure counters — and the session counter on
success — then recomputes score and level.

Returns:
  - *Record: The updated record
  - error: Persistence failures
*/
func (service *Service) ObserveLogin(ctx context.Context, identityID, deviceFingerprint, location string, success bool) (*Record, error) {
	record, created, err := service.loadOrCreate(ctx, identityID, deviceFingerprint, location)
	if err != nil {
		return nil, err
	}

	if success {
		record.SuccessfulLogins++
		record.TotalSessions++
	} else {
		record.FailedAttempts++
	}
	record.LastSeenAt = service.now()
	if location != "" {
		record.LastSeenLocation = location
	}
	record.rescore(service.now())

	if created {
		err = service.store.SaveRecord(ctx, record)
	} else {
		err = service.store.UpdateRecord(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

/*
ObserveSuspicious bumps the suspicious-activity counter of a device and
rescores it. Missing records are created first — an anomaly on a never-seen
fingerprint is itself worth tracking.
*/
func (service *Service) ObserveSuspicious(ctx context.Context, identityID, deviceFingerprint string) (*Record, error) {
	record, created, err := service.loadOrCreate(ctx, identityID, deviceFingerprint, "")
	if err != nil {
		return nil, err
	}

	record.SuspiciousActivities++
	record.LastSeenAt = service.now()
	record.rescore(service.now())

	if created {
		err = service.store.SaveRecord(ctx, record)
	} else {
		err = service.store.UpdateRecord(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

/*
ObserveChallenge records a verification-challenge outcome. A device that has
passed a challenge is marked verified.
*/
func (service *Service) ObserveChallenge(ctx context.Context, identityID, deviceFingerprint string, passed bool) (*Record, error) {
	record, created, err := service.loadOrCreate(ctx, identityID, deviceFingerprint, "")
	if err != nil {
		return nil, err
	}

	if passed {
		record.ChallengesPassed++
		record.Verified = true
	} else {
		record.ChallengesFailed++
	}
	record.LastSeenAt = service.now()
	record.rescore(service.now())

	if created {
		err = service.store.SaveRecord(ctx, record)
	} else {
		err = service.store.UpdateRecord(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

// RequiresVerification reports whether the device behind the record must
// pass an additional challenge before being fully trusted. A revoked record
// always requires verification.
func (service *Service) RequiresVerification(record *Record) bool {
	if record == nil || record.Revoked {
		return true
	}
	return trust.RequiresVerification(record.Counters(), service.now())
}

// RiskScore exposes the history-based risk score of a record.
func (service *Service) RiskScore(record *Record) int {
	if record == nil {
		return 100
	}
	return trust.RiskScore(record.Counters(), service.now())
}

// Revoke administratively revokes a trust record. Idempotent.
func (service *Service) Revoke(ctx context.Context, recordID string) error {
	return service.store.RevokeRecord(ctx, recordID)
}

// ListForIdentity returns every device record of one identity.
func (service *Service) ListForIdentity(ctx context.Context, identityID string) ([]*Record, error) {
	return service.store.ListForIdentity(ctx, identityID)
}

// ListEventsForIdentity returns the identity's latest security events.
func (service *Service) ListEventsForIdentity(ctx context.Context, identityID string, limit int) ([]*SecurityEvent, error) {
	return service.store.ListEventsForIdentity(ctx, identityID, limit)
}

/*
RecordSecurityEvent appends to the durable security-event log.

Best-effort by contract: the precise internal reason is logged here while
callers only ever see undifferentiated failures. A failed insert is logged
and swallowed — the event log must never fail the request it describes.
*/
func (service *Service) RecordSecurityEvent(ctx context.Context, identityID, sessionID, eventType, severity, ipAddress, detail string) {
	event := &SecurityEvent{
		ID:         uuid.New(),
		IdentityID: identityID,
		SessionID:  sessionID,
		EventType:  eventType,
		Severity:   severity,
		IPAddress:  ipAddress,
		Detail:     detail,
		CreatedAt:  service.now(),
	}

	if err := service.store.InsertEvent(ctx, event); err != nil {
		ctxutil.GetLogger(ctx).ErrorContext(ctx, "security_event_insert_failed",
			slog.String("event_type", eventType),
			slog.Any("error", err),
		)
	}
}

// loadOrCreate fetches the record for a fingerprint or initializes one on
// first sight. The created flag tells the caller whether to insert or update.
func (service *Service) loadOrCreate(ctx context.Context, identityID, deviceFingerprint, location string) (*Record, bool, error) {
	record, err := service.store.FindRecord(ctx, identityID, deviceFingerprint)
	if err != nil {
		return nil, false, err
	}
	if record != nil {
		return record, false, nil
	}
	return newRecord(identityID, deviceFingerprint, location, service.now()), true, nil
}
