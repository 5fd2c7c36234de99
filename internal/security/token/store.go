// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package token

import "context"

// RefreshStore is the durable storage contract for refresh-token records.
//
// # Miss Semantics
//
// FindByHash returns (nil, nil) when no record matches — an unknown token is
// an expected outcome, not a storage fault. Every non-nil error is an
// infrastructure failure the caller must propagate.
type RefreshStore interface {
	// Save persists a new record.
	Save(ctx context.Context, record *RefreshRecord) error

	// FindByHash looks a record up by its token hash. (nil, nil) on miss.
	FindByHash(ctx context.Context, tokenHash string) (*RefreshRecord, error)

	// Touch updates usage metadata after a successful refresh. It must not
	// modify the absolute expiry.
	Touch(ctx context.Context, record *RefreshRecord) error

	// Revoke marks a record revoked. Idempotent: revoking twice is a no-op.
	Revoke(ctx context.Context, recordID string) error

	// RevokeAllForIdentity revokes every live record of one identity except
	// the one with exceptID (pass "" to spare none) and returns how many
	// were affected.
	RevokeAllForIdentity(ctx context.Context, identityID, exceptID string) (int, error)

	// DeleteExpired removes records past their absolute expiry and returns
	// the count. Intended for background sweeping, not the request path.
	DeleteExpired(ctx context.Context) (int, error)
}
