// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// # Postgres Refresh Store

// PostgresRefreshStore implements [RefreshStore] backed by users.refreshtoken.
type PostgresRefreshStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshStore creates the PostgreSQL refresh-record store.
func NewPostgresRefreshStore(pool *pgxpool.Pool) *PostgresRefreshStore {
	return &PostgresRefreshStore{pool: pool}
}

/*
Save persists a new refresh-token record.

Parameters:
  - ctx: context.Context
  - record: *RefreshRecord (hash already derived, never the raw token)

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (store *PostgresRefreshStore) Save(ctx context.Context, record *RefreshRecord) error {
	const query = `
		INSERT INTO users.refreshtoken (
			id, identityid, sessionid, tokenhash, deviceinfo, ipaddress,
			absoluteexpiresat, lastusedat, usagecount, isrevoked, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := store.pool.Exec(ctx, query,
		record.ID,
		record.IdentityID,
		record.SessionID,
		record.TokenHash,
		record.DeviceInfo,
		record.IPAddress,
		record.AbsoluteExpiresAt,
		record.LastUsedAt,
		record.UsageCount,
		record.Revoked,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_refresh_store_save_failed: %w", err)
	}

	return nil
}

/*
FindByHash retrieves a refresh record by its token hash.

Returns:
  - *RefreshRecord: Hydrated record, or nil when no row matches
  - error: Execution errors only — a miss is (nil, nil)
*/
func (store *PostgresRefreshStore) FindByHash(ctx context.Context, tokenHash string) (*RefreshRecord, error) {
	const query = `
		SELECT id, identityid, sessionid, tokenhash, deviceinfo, ipaddress,
		       absoluteexpiresat, lastusedat, usagecount, isrevoked, createdat
		FROM users.refreshtoken
		WHERE tokenhash = $1`

	record := &RefreshRecord{}
	err := store.pool.QueryRow(ctx, query, tokenHash).Scan(
		&record.ID,
		&record.IdentityID,
		&record.SessionID,
		&record.TokenHash,
		&record.DeviceInfo,
		&record.IPAddress,
		&record.AbsoluteExpiresAt,
		&record.LastUsedAt,
		&record.UsageCount,
		&record.Revoked,
		&record.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_refresh_store_find_failed: %w", err)
	}

	return record, nil
}

/*
Touch updates the usage metadata of a record after a successful refresh.

The absolute expiry column is deliberately absent from the SET list: the
expiry window fixed at issuance can never move.
*/
func (store *PostgresRefreshStore) Touch(ctx context.Context, record *RefreshRecord) error {
	const query = `
		UPDATE users.refreshtoken
		SET lastusedat = $2, usagecount = $3, deviceinfo = $4, ipaddress = $5
		WHERE id = $1`

	_, err := store.pool.Exec(ctx, query,
		record.ID,
		record.LastUsedAt,
		record.UsageCount,
		record.DeviceInfo,
		record.IPAddress,
	)

	if err != nil {
		return fmt.Errorf("postgres_refresh_store_touch_failed: %w", err)
	}

	return nil
}

/*
Revoke marks a record revoked. Re-revoking an already revoked record matches
zero rows and succeeds, keeping the operation idempotent.
*/
func (store *PostgresRefreshStore) Revoke(ctx context.Context, recordID string) error {
	const query = "UPDATE users.refreshtoken SET isrevoked = TRUE WHERE id = $1 AND isrevoked = FALSE"
	_, err := store.pool.Exec(ctx, query, recordID)
	if err != nil {
		return fmt.Errorf("postgres_refresh_store_revoke_failed: %w", err)
	}
	return nil
}

/*
RevokeAllForIdentity revokes every live record owned by one identity, sparing
the record with exceptID when given.

Returns:
  - int: Number of records transitioned to revoked
  - error: Batch revocation failures
*/
func (store *PostgresRefreshStore) RevokeAllForIdentity(ctx context.Context, identityID, exceptID string) (int, error) {
	const query = `
		UPDATE users.refreshtoken
		SET isrevoked = TRUE
		WHERE identityid = $1 AND isrevoked = FALSE AND ($2 = '' OR id != $2)`
	tag, err := store.pool.Exec(ctx, query, identityID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_store_revoke_all_failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

/*
DeleteExpired permanently removes records past their absolute expiry.

Returns:
  - int: Number of rows reclaimed
  - error: Cleanup failures
*/
func (store *PostgresRefreshStore) DeleteExpired(ctx context.Context) (int, error) {
	const query = "DELETE FROM users.refreshtoken WHERE absoluteexpiresat <= NOW()"
	tag, err := store.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_store_delete_expired_failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
