// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// # Postgres Session Store

// PostgresStore implements [Store] backed by users.session.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the PostgreSQL session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `
	id, identityid, sessiontoken, fingerprint, devicefingerprint,
	ipaddress, deviceinfo, loginmethod, createdat, expiresat,
	lastactivityat, isactive, riskscore, issuspicious, endreason`

func scanSession(row pgx.Row) (*Session, error) {
	session := &Session{}
	err := row.Scan(
		&session.ID,
		&session.IdentityID,
		&session.Token,
		&session.Fingerprint,
		&session.DeviceFingerprint,
		&session.IPAddress,
		&session.DeviceInfo,
		&session.LoginMethod,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastActivityAt,
		&session.Active,
		&session.RiskScore,
		&session.Suspicious,
		&session.EndReason,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

/*
Save persists a new session row into users.session.

Parameters:
  - ctx: context.Context
  - session: *Session

Returns:
  - error: Storage failures
*/
func (store *PostgresStore) Save(ctx context.Context, session *Session) error {
	const query = `
		INSERT INTO users.session (
			id, identityid, sessiontoken, fingerprint, devicefingerprint,
			ipaddress, deviceinfo, loginmethod, createdat, expiresat,
			lastactivityat, isactive, riskscore, issuspicious, endreason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	_, err := store.pool.Exec(ctx, query,
		session.ID,
		session.IdentityID,
		session.Token,
		session.Fingerprint,
		session.DeviceFingerprint,
		session.IPAddress,
		session.DeviceInfo,
		session.LoginMethod,
		session.CreatedAt,
		session.ExpiresAt,
		session.LastActivityAt,
		session.Active,
		session.RiskScore,
		session.Suspicious,
		session.EndReason,
	)

	if err != nil {
		return fmt.Errorf("postgres_session_store_save_failed: %w", err)
	}

	return nil
}

/*
FindByID loads a session row by primary key.

Returns:
  - *Session: Hydrated session, or nil when no row exists
  - error: Execution errors only — a miss is (nil, nil)
*/
func (store *PostgresStore) FindByID(ctx context.Context, sessionID string) (*Session, error) {
	query := "SELECT " + sessionColumns + " FROM users.session WHERE id = $1"

	session, err := scanSession(store.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_session_store_find_failed: %w", err)
	}

	return session, nil
}

/*
ListActiveForIdentity pages through an identity's active sessions.

Returns:
  - []*Session: Active sessions ordered newest first
  - int: Total active count (for pagination metadata)
  - error: Execution errors
*/
func (store *PostgresStore) ListActiveForIdentity(ctx context.Context, identityID string, limit, offset int) ([]*Session, int, error) {
	const countQuery = `
		SELECT COUNT(*) FROM users.session
		WHERE identityid = $1 AND isactive = TRUE`

	total := 0
	if err := store.pool.QueryRow(ctx, countQuery, identityID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_session_store_count_failed: %w", err)
	}

	query := "SELECT " + sessionColumns + `
		FROM users.session
		WHERE identityid = $1 AND isactive = TRUE
		ORDER BY createdat DESC
		LIMIT $2 OFFSET $3`

	rows, err := store.pool.Query(ctx, query, identityID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_session_store_list_failed: %w", err)
	}
	defer rows.Close()

	sessions := make([]*Session, 0, limit)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("postgres_session_store_scan_failed: %w", scanErr)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_session_store_rows_failed: %w", err)
	}

	return sessions, total, nil
}

/*
TouchActivity advances lastactivityat, guarded against regression.

The WHERE clause makes stale writes a no-op: a delayed update carrying an
older timestamp matches zero rows, so last activity is monotonic without any
in-memory coordination.
*/
func (store *PostgresStore) TouchActivity(ctx context.Context, sessionID string, at time.Time) error {
	const query = `
		UPDATE users.session
		SET lastactivityat = $2
		WHERE id = $1 AND lastactivityat < $2`

	_, err := store.pool.Exec(ctx, query, sessionID, at)
	if err != nil {
		return fmt.Errorf("postgres_session_store_touch_failed: %w", err)
	}
	return nil
}

/*
MarkSuspicious flags a session and raises its risk score, capped at 100.
The session remains active: suspicion alone never terminates.
*/
func (store *PostgresStore) MarkSuspicious(ctx context.Context, sessionID string, riskDelta int) error {
	const query = `
		UPDATE users.session
		SET issuspicious = TRUE, riskscore = LEAST(riskscore + $2, 100)
		WHERE id = $1 AND isactive = TRUE`

	_, err := store.pool.Exec(ctx, query, sessionID, riskDelta)
	if err != nil {
		return fmt.Errorf("postgres_session_store_mark_suspicious_failed: %w", err)
	}
	return nil
}

/*
Terminate deactivates a session and records the reason. The isactive guard
keeps the operation idempotent and preserves the original end reason.
*/
func (store *PostgresStore) Terminate(ctx context.Context, sessionID, reason string) error {
	const query = `
		UPDATE users.session
		SET isactive = FALSE, endreason = $2
		WHERE id = $1 AND isactive = TRUE`

	_, err := store.pool.Exec(ctx, query, sessionID, reason)
	if err != nil {
		return fmt.Errorf("postgres_session_store_terminate_failed: %w", err)
	}
	return nil
}

/*
TerminateAllForIdentity deactivates an identity's active sessions, sparing
exceptSessionID when non-empty.

Returns:
  - int: Number of sessions terminated
  - error: Batch failures
*/
func (store *PostgresStore) TerminateAllForIdentity(ctx context.Context, identityID, exceptSessionID, reason string) (int, error) {
	const query = `
		UPDATE users.session
		SET isactive = FALSE, endreason = $3
		WHERE identityid = $1 AND isactive = TRUE AND ($2 = '' OR id != $2)`

	tag, err := store.pool.Exec(ctx, query, identityID, exceptSessionID, reason)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_store_terminate_all_failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

/*
DeleteExpired terminates sessions whose expiry has passed.

Rows are kept (not deleted) with an "expired" end reason so the session
history remains auditable; storage reclamation is a retention concern.

Returns:
  - int: Number of sessions expired
  - error: Cleanup failures
*/
func (store *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	const query = `
		UPDATE users.session
		SET isactive = FALSE, endreason = $1
		WHERE isactive = TRUE AND expiresat <= NOW()`

	tag, err := store.pool.Exec(ctx, query, ReasonExpired)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_store_delete_expired_failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
