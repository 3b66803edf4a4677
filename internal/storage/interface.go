package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dron-olya7/verigate/internal/model"
)

// Pool is the query surface the Manager hands out. *pgxpool.Pool satisfies
// it; tests substitute fakes.
type Pool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// SubmissionStore is the typed query interface over the backing store.
// Absent records surface as apperr.ErrNotFound; query failures as
// *apperr.StoreError; unreachable store as *apperr.ConnectionError.
type SubmissionStore interface {
	Ping(ctx context.Context) error
	InsertSubmission(ctx context.Context, sub *model.RawSubmission) error
	FindLatestByPhone(ctx context.Context, phone string) (*model.RawSubmission, error)
	FindWebhookEndpoint(ctx context.Context, key string) (*model.WebhookEndpoint, error)
	InsertVerificationAttempt(ctx context.Context, attempt *model.VerificationAttempt) error
	UpdateVerificationFlags(ctx context.Context, phone string, flags model.VerificationFlags) error
	UpsertWebhookEndpoint(ctx context.Context, ep *model.WebhookEndpoint) error
	ListAttemptsByPhone(ctx context.Context, phone string, limit int) ([]model.VerificationAttempt, error)
}
