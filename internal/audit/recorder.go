// Package audit persists one append-only record per inbound verification
// event. Records are written before any outcome is computed and are never
// updated afterwards.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dron-olya7/verigate/internal/model"
)

// AttemptWriter is the slice of the store the recorder needs.
type AttemptWriter interface {
	InsertVerificationAttempt(ctx context.Context, attempt *model.VerificationAttempt) error
}

// Recorder writes verification attempts through an AttemptWriter. Unlike
// access-log style auditing, a failed write here is a hard error: the
// caller must not report an outcome that left no trace.
type Recorder struct {
	store AttemptWriter
	log   *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store AttemptWriter, log *slog.Logger) *Recorder {
	return &Recorder{
		store: store,
		log:   log.With("layer", "audit"),
	}
}

// Record appends one attempt describing an inbound verification event and
// its outcome so far. Status is empty for attempts inside the validity
// window and AttemptStatusTimeout for expired matches.
func (r *Recorder) Record(ctx context.Context, phone, source string, verified, found bool, status string) error {
	attempt := &model.VerificationAttempt{
		ID:                 uuid.New().String(),
		CreatedAt:          time.Now().UTC(),
		Phone:              phone,
		Source:             source,
		Verified:           verified,
		FoundInSubmissions: found,
		Status:             status,
	}

	if err := r.store.InsertVerificationAttempt(ctx, attempt); err != nil {
		r.log.Error("failed to record verification attempt",
			slog.String("phone", phone),
			slog.String("source", source),
			slog.Any("error", err),
		)
		return err
	}

	r.log.Info("verification attempt recorded",
		slog.String("phone", phone),
		slog.String("source", source),
		slog.Bool("verified", verified),
		slog.Bool("found", found),
	)
	return nil
}
