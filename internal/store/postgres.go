package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"missioncontrol/internal/errors"
)

type Store struct {
	pool *pgxpool.Pool
}

// dbtx is satisfied by both the pool and a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse dsn")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// ExecSQL executes raw SQL (used for schema bootstrap).
// Caller is responsible for idempotency (schema.sql is).
func (s *Store) ExecSQL(ctx context.Context, sql string) error {
	_, err := s.pool.Exec(ctx, sql)
	return err
}

const integrationColumns = `
	integration_id, name, type, COALESCE(provider,''), status, credential_source,
	COALESCE(description,''), last_validated, validation_message, created_at, updated_at`

func scanIntegration(row pgx.Row) (Integration, error) {
	var in Integration
	err := row.Scan(&in.ID, &in.Name, &in.Type, &in.Provider, &in.Status, &in.CredentialSource,
		&in.Description, &in.LastValidated, &in.ValidationMessage, &in.CreatedAt, &in.UpdatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return Integration{}, errors.ErrIntegrationNotFound
	}
	return in, err
}

// UpsertIntegration inserts or updates an integration keyed by name. Live
// status fields are left alone on update.
func (s *Store) UpsertIntegration(ctx context.Context, in Integration) (string, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = StatusUnknown
	}
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO mc.integrations (integration_id, name, type, provider, status, credential_source, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (name) DO UPDATE SET
		  type=EXCLUDED.type,
		  provider=EXCLUDED.provider,
		  credential_source=EXCLUDED.credential_source,
		  description=EXCLUDED.description,
		  updated_at=now()
		RETURNING integration_id
	`, in.ID, in.Name, in.Type, nullIfEmpty(in.Provider), in.Status, in.CredentialSource, nullIfEmpty(in.Description)).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListIntegrations(ctx context.Context) ([]Integration, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+integrationColumns+` FROM mc.integrations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// FindIntegrationByID returns errors.ErrIntegrationNotFound for unknown ids.
func (s *Store) FindIntegrationByID(ctx context.Context, id string) (Integration, error) {
	return scanIntegration(s.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM mc.integrations WHERE integration_id=$1`, id))
}

func (s *Store) InsertHealthCheck(ctx context.Context, hc HealthCheck) (string, error) {
	return insertHealthCheck(ctx, s.pool, hc)
}

func (s *Store) UpdateIntegrationStatus(ctx context.Context, id string, upd StatusUpdate) (Integration, error) {
	return updateIntegrationStatus(ctx, s.pool, id, upd)
}

// RecordIntegrationTest writes the audit row and the live status of one test
// run in a single transaction and returns the updated integration.
func (s *Store) RecordIntegrationTest(ctx context.Context, hc HealthCheck, upd StatusUpdate) (Integration, error) {
	var out Integration
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := insertHealthCheck(ctx, tx, hc); err != nil {
			return errors.Wrap(err, "insert health check")
		}
		in, err := updateIntegrationStatus(ctx, tx, hc.TargetID, upd)
		if err != nil {
			return errors.Wrap(err, "update integration status")
		}
		out = in
		return nil
	})
	return out, err
}

// ListHealthChecks returns the newest checks for one target first.
func (s *Store) ListHealthChecks(ctx context.Context, targetType, targetID string, limit int) ([]HealthCheck, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT check_id, target_type, target_id, status, message, duration_ms, checked_at
		FROM mc.health_checks
		WHERE target_type=$1 AND target_id=$2
		ORDER BY checked_at DESC
		LIMIT $3
	`, targetType, targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HealthCheck
	for rows.Next() {
		var hc HealthCheck
		if err := rows.Scan(&hc.ID, &hc.TargetType, &hc.TargetID, &hc.Status, &hc.Message, &hc.DurationMS, &hc.CheckedAt); err != nil {
			return nil, err
		}
		out = append(out, hc)
	}
	return out, rows.Err()
}

func insertHealthCheck(ctx context.Context, db dbtx, hc HealthCheck) (string, error) {
	if hc.ID == "" {
		hc.ID = uuid.NewString()
	}
	if hc.CheckedAt.IsZero() {
		hc.CheckedAt = time.Now().UTC()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO mc.health_checks (check_id, target_type, target_id, status, message, duration_ms, checked_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, hc.ID, hc.TargetType, hc.TargetID, hc.Status, hc.Message, hc.DurationMS, hc.CheckedAt)
	if err != nil {
		return "", err
	}
	return hc.ID, nil
}

// updateIntegrationStatus never moves last_validated backwards, so racing
// tests on one integration keep it monotonic.
func updateIntegrationStatus(ctx context.Context, db dbtx, id string, upd StatusUpdate) (Integration, error) {
	if upd.At.IsZero() {
		upd.At = time.Now().UTC()
	}
	return scanIntegration(db.QueryRow(ctx, `
		UPDATE mc.integrations
		SET status=$2,
		    validation_message=$3,
		    last_validated=GREATEST(COALESCE(last_validated, $4::timestamptz), $4::timestamptz),
		    updated_at=now()
		WHERE integration_id=$1
		RETURNING `+integrationColumns,
		id, upd.Status, upd.Message, upd.At))
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
