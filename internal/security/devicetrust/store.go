// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package devicetrust

import "context"

// Store is the durable storage contract for trust records and the
// security-event log. FindRecord returns (nil, nil) on first sight of a
// fingerprint; non-nil errors are infrastructure faults.
type Store interface {
	// FindRecord loads the record for one (identity, fingerprint) pair.
	FindRecord(ctx context.Context, identityID, deviceFingerprint string) (*Record, error)

	// SaveRecord inserts a freshly created record.
	SaveRecord(ctx context.Context, record *Record) error

	// UpdateRecord persists counter and score mutations.
	UpdateRecord(ctx context.Context, record *Record) error

	// RevokeRecord marks a record revoked. Idempotent.
	RevokeRecord(ctx context.Context, recordID string) error

	// ListForIdentity returns every record of one identity, newest first.
	ListForIdentity(ctx context.Context, identityID string) ([]*Record, error)

	// InsertEvent appends to the security-event log.
	InsertEvent(ctx context.Context, event *SecurityEvent) error

	// ListEventsForIdentity returns the identity's latest events.
	ListEventsForIdentity(ctx context.Context, identityID string, limit int) ([]*SecurityEvent, error)
}
