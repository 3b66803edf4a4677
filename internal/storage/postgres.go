package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	apperr "github.com/dron-olya7/verigate/internal/errors"
	"github.com/dron-olya7/verigate/internal/model"
)

// PostgresStore implements SubmissionStore on top of a Manager. Every call
// acquires the shared pool first, so the initial store touch of a request
// pays the (possibly retried) connection cost and later calls reuse it.
type PostgresStore struct {
	manager *Manager
	log     *slog.Logger
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(manager *Manager, log *slog.Logger) *PostgresStore {
	return &PostgresStore{
		manager: manager,
		log:     log.With("layer", "storage", "component", "postgres"),
	}
}

// Ping verifies the store answers. Used by readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	pool, err := s.manager.Acquire(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// InsertSubmission appends one raw form submission.
func (s *PostgresStore) InsertSubmission(ctx context.Context, sub *model.RawSubmission) error {
	pool, err := s.manager.Acquire(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO submissions
			(id, created_at, phone, source_domain, payload, verification_key, phone_verified, webhook_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = pool.Exec(ctx, query,
		sub.ID, sub.CreatedAt, sub.Phone, sub.SourceDomain,
		sub.Payload, sub.VerificationKey, sub.PhoneVerified, sub.WebhookSent,
	)
	if err != nil {
		s.log.Error("failed to insert submission", slog.Any("error", err))
		return apperr.NewStore("insert_submission", err)
	}
	return nil
}

// FindLatestByPhone returns the most recent submission for phone, or
// ErrNotFound when the phone never submitted a form.
func (s *PostgresStore) FindLatestByPhone(ctx context.Context, phone string) (*model.RawSubmission, error) {
	pool, err := s.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, created_at, phone, source_domain, payload, verification_key, phone_verified, webhook_sent
		FROM submissions
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var sub model.RawSubmission
	err = pool.QueryRow(ctx, query, phone).Scan(
		&sub.ID, &sub.CreatedAt, &sub.Phone, &sub.SourceDomain,
		&sub.Payload, &sub.VerificationKey, &sub.PhoneVerified, &sub.WebhookSent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		s.log.Error("failed to find submission by phone", slog.Any("error", err))
		return nil, apperr.NewStore("find_latest_by_phone", err)
	}
	return &sub, nil
}

// FindWebhookEndpoint returns the endpoint registered under key, enabled or
// not, or ErrNotFound when no endpoint is registered.
func (s *PostgresStore) FindWebhookEndpoint(ctx context.Context, key string) (*model.WebhookEndpoint, error) {
	pool, err := s.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT key, endpoint_url, enabled, updated_at
		FROM webhook_endpoints
		WHERE key = $1`

	var ep model.WebhookEndpoint
	err = pool.QueryRow(ctx, query, key).Scan(&ep.Key, &ep.EndpointURL, &ep.Enabled, &ep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		s.log.Error("failed to find webhook endpoint", slog.Any("error", err))
		return nil, apperr.NewStore("find_webhook_endpoint", err)
	}
	return &ep, nil
}

// InsertVerificationAttempt appends one audit record. Never updates.
func (s *PostgresStore) InsertVerificationAttempt(ctx context.Context, attempt *model.VerificationAttempt) error {
	pool, err := s.manager.Acquire(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO verification_attempts
			(id, created_at, phone, source, verified, found_in_submissions, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = pool.Exec(ctx, query,
		attempt.ID, attempt.CreatedAt, attempt.Phone, attempt.Source,
		attempt.Verified, attempt.FoundInSubmissions, attempt.Status,
	)
	if err != nil {
		s.log.Error("failed to insert verification attempt", slog.Any("error", err))
		return apperr.NewStore("insert_verification_attempt", err)
	}
	return nil
}

// UpdateVerificationFlags stamps every submission for phone with the
// verification outcome. An empty VerificationKey keeps the stored key.
func (s *PostgresStore) UpdateVerificationFlags(ctx context.Context, phone string, flags model.VerificationFlags) error {
	pool, err := s.manager.Acquire(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE submissions
		SET phone_verified = $2,
		    webhook_sent = $3,
		    verification_key = COALESCE(NULLIF($4, ''), verification_key)
		WHERE phone = $1`

	tag, err := pool.Exec(ctx, query, phone, flags.Verified, flags.WebhookSent, flags.VerificationKey)
	if err != nil {
		s.log.Error("failed to update verification flags", slog.Any("error", err))
		return apperr.NewStore("update_verification_flags", err)
	}
	if tag.RowsAffected() == 0 {
		s.log.Warn("verification flags updated no rows", slog.String("phone", phone))
	}
	return nil
}

// UpsertWebhookEndpoint registers or replaces the endpoint under ep.Key.
func (s *PostgresStore) UpsertWebhookEndpoint(ctx context.Context, ep *model.WebhookEndpoint) error {
	pool, err := s.manager.Acquire(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_endpoints (key, endpoint_url, enabled, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET endpoint_url = EXCLUDED.endpoint_url,
		    enabled = EXCLUDED.enabled,
		    updated_at = EXCLUDED.updated_at`

	_, err = pool.Exec(ctx, query, ep.Key, ep.EndpointURL, ep.Enabled, ep.UpdatedAt)
	if err != nil {
		s.log.Error("failed to upsert webhook endpoint", slog.Any("error", err))
		return apperr.NewStore("upsert_webhook_endpoint", err)
	}
	return nil
}

// ListAttemptsByPhone returns the newest audit records for phone.
func (s *PostgresStore) ListAttemptsByPhone(ctx context.Context, phone string, limit int) ([]model.VerificationAttempt, error) {
	pool, err := s.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, created_at, phone, source, verified, found_in_submissions, status
		FROM verification_attempts
		WHERE phone = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := pool.Query(ctx, query, phone, limit)
	if err != nil {
		s.log.Error("failed to list verification attempts", slog.Any("error", err))
		return nil, apperr.NewStore("list_attempts_by_phone", err)
	}
	defer rows.Close()

	var attempts []model.VerificationAttempt
	for rows.Next() {
		var a model.VerificationAttempt
		if err := rows.Scan(
			&a.ID, &a.CreatedAt, &a.Phone, &a.Source,
			&a.Verified, &a.FoundInSubmissions, &a.Status,
		); err != nil {
			return nil, apperr.NewStore("list_attempts_by_phone", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStore("list_attempts_by_phone", err)
	}
	return attempts, nil
}
