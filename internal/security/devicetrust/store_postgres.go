// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package devicetrust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// # Postgres Trust Store

// PostgresStore implements [Store] over security.devicetrust and
// security.event.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the PostgreSQL device-trust store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `
	id, identityid, fingerprint, trustscore, trustlevel,
	totalsessions, successfullogins, failedattempts, suspiciousactivities,
	challengespassed, challengesfailed, locationconsistency,
	firstseenlocation, lastseenlocation, isregistered, isverified, isrevoked,
	firstseenat, lastseenat, updatedat`

func scanRecord(row pgx.Row) (*Record, error) {
	record := &Record{}
	err := row.Scan(
		&record.ID,
		&record.IdentityID,
		&record.Fingerprint,
		&record.TrustScore,
		&record.TrustLevel,
		&record.TotalSessions,
		&record.SuccessfulLogins,
		&record.FailedAttempts,
		&record.SuspiciousActivities,
		&record.ChallengesPassed,
		&record.ChallengesFailed,
		&record.LocationConsistency,
		&record.FirstSeenLocation,
		&record.LastSeenLocation,
		&record.Registered,
		&record.Verified,
		&record.Revoked,
		&record.FirstSeenAt,
		&record.LastSeenAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

/*
FindRecord loads the trust record for one (identity, fingerprint) pair.

Returns:
  - *Record: Hydrated record, or nil on first sight of the fingerprint
  - error: Execution errors only
*/
func (store *PostgresStore) FindRecord(ctx context.Context, identityID, deviceFingerprint string) (*Record, error) {
	query := "SELECT " + recordColumns + `
		FROM security.devicetrust
		WHERE identityid = $1 AND fingerprint = $2`

	record, err := scanRecord(store.pool.QueryRow(ctx, query, identityID, deviceFingerprint))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres_devicetrust_find_failed: %w", err)
	}

	return record, nil
}

/*
SaveRecord inserts a freshly created trust record.
*/
func (store *PostgresStore) SaveRecord(ctx context.Context, record *Record) error {
	const query = `
		INSERT INTO security.devicetrust (
			id, identityid, fingerprint, trustscore, trustlevel,
			totalsessions, successfullogins, failedattempts, suspiciousactivities,
			challengespassed, challengesfailed, locationconsistency,
			firstseenlocation, lastseenlocation, isregistered, isverified, isrevoked,
			firstseenat, lastseenat, updatedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		          $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := store.pool.Exec(ctx, query,
		record.ID,
		record.IdentityID,
		record.Fingerprint,
		record.TrustScore,
		record.TrustLevel,
		record.TotalSessions,
		record.SuccessfulLogins,
		record.FailedAttempts,
		record.SuspiciousActivities,
		record.ChallengesPassed,
		record.ChallengesFailed,
		record.LocationConsistency,
		record.FirstSeenLocation,
		record.LastSeenLocation,
		record.Registered,
		record.Verified,
		record.Revoked,
		record.FirstSeenAt,
		record.LastSeenAt,
		record.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_devicetrust_save_failed: %w", err)
	}

	return nil
}

/*
UpdateRecord persists counter, score, and flag mutations on an existing row.
*/
func (store *PostgresStore) UpdateRecord(ctx context.Context, record *Record) error {
	const query = `
		UPDATE security.devicetrust
		SET trustscore = $2, trustlevel = $3,
		    totalsessions = $4, successfullogins = $5, failedattempts = $6,
		    suspiciousactivities = $7, challengespassed = $8, challengesfailed = $9,
		    locationconsistency = $10, lastseenlocation = $11,
		    isregistered = $12, isverified = $13, isrevoked = $14,
		    lastseenat = $15, updatedat = $16
		WHERE id = $1`

	_, err := store.pool.Exec(ctx, query,
		record.ID,
		record.TrustScore,
		record.TrustLevel,
		record.TotalSessions,
		record.SuccessfulLogins,
		record.FailedAttempts,
		record.SuspiciousActivities,
		record.ChallengesPassed,
		record.ChallengesFailed,
		record.LocationConsistency,
		record.LastSeenLocation,
		record.Registered,
		record.Verified,
		record.Revoked,
		record.LastSeenAt,
		record.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_devicetrust_update_failed: %w", err)
	}

	return nil
}

/*
RevokeRecord marks a trust record revoked. Idempotent via the isrevoked guard.
*/
func (store *PostgresStore) RevokeRecord(ctx context.Context, recordID string) error {
	const query = `
		UPDATE security.devicetrust
		SET isrevoked = TRUE, updatedat = NOW()
		WHERE id = $1 AND isrevoked = FALSE`

	_, err := store.pool.Exec(ctx, query, recordID)
	if err != nil {
		return fmt.Errorf("postgres_devicetrust_revoke_failed: %w", err)
	}
	return nil
}

/*
ListForIdentity returns every trust record of one identity, newest first.
*/
func (store *PostgresStore) ListForIdentity(ctx context.Context, identityID string) ([]*Record, error) {
	query := "SELECT " + recordColumns + `
		FROM security.devicetrust
		WHERE identityid = $1
		ORDER BY lastseenat DESC`

	rows, err := store.pool.Query(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("postgres_devicetrust_list_failed: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("postgres_devicetrust_scan_failed: %w", scanErr)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_devicetrust_rows_failed: %w", err)
	}

	return records, nil
}

/*
InsertEvent appends one row to the security-event log.
*/
func (store *PostgresStore) InsertEvent(ctx context.Context, event *SecurityEvent) error {
	const query = `
		INSERT INTO security.event (
			id, identityid, sessionid, eventtype, severity, ipaddress, detail, createdat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := store.pool.Exec(ctx, query,
		event.ID,
		event.IdentityID,
		event.SessionID,
		event.EventType,
		event.Severity,
		event.IPAddress,
		event.Detail,
		event.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_securityevent_insert_failed: %w", err)
	}

	return nil
}

/*
ListEventsForIdentity returns the identity's latest security events.
*/
func (store *PostgresStore) ListEventsForIdentity(ctx context.Context, identityID string, limit int) ([]*SecurityEvent, error) {
	const query = `
		SELECT id, identityid, sessionid, eventtype, severity, ipaddress, detail, createdat
		FROM security.event
		WHERE identityid = $1
		ORDER BY createdat DESC
		LIMIT $2`

	rows, err := store.pool.Query(ctx, query, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_securityevent_list_failed: %w", err)
	}
	defer rows.Close()

	events := make([]*SecurityEvent, 0, limit)
	for rows.Next() {
		event := &SecurityEvent{}
		scanErr := rows.Scan(
			&event.ID,
			&event.IdentityID,
			&event.SessionID,
			&event.EventType,
			&event.Severity,
			&event.IPAddress,
			&event.Detail,
			&event.CreatedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("postgres_securityevent_scan_failed: %w", scanErr)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_securityevent_rows_failed: %w", err)
	}

	return events, nil
}
