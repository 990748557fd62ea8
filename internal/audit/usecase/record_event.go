package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
)

// RecordEventInput describes one consumed event. A non-zero EventID becomes
// the entry id, so a redelivered event maps onto the row already stored.
type RecordEventInput struct {
	EventID        int64        `validate:"gte=0"`
	Event          entity.Event `validate:"required"`
	UserID         int64        `validate:"required,gt=0"`
	FactorConfigID int64        `validate:"required,gt=0"`
	Data           valueobject.JSONMap
	OccurredAt     time.Time
}

// RecordEvent stores one factor event. Malformed events are logged and
// dropped; only storage failures are returned so the broker redelivers.
func (s *Usecase) RecordEvent(ctx context.Context, in RecordEventInput) error {
	ctx, span := s.startSpan(ctx, "RecordEvent")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "event", in.Event, "error", err)
		return nil
	}

	createdAt := in.OccurredAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	id := in.EventID
	if id == 0 {
		id = s.uid.Generate()
	}

	entry := entity.AuditEntry{
		ID:             id,
		UserID:         in.UserID,
		FactorConfigID: in.FactorConfigID,
		Event:          in.Event,
		Data:           in.Data.Clone(),
		CreatedAt:      createdAt,
	}

	err := s.repoDB.CreateEntry(ctx, entry)
	if errors.Is(err, goerror.ErrConflict) && in.EventID != 0 {
		slog.InfoContext(ctx, "audit entry already recorded", "event", in.Event, "event_id", in.EventID)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create audit entry", "event", in.Event, "user_id", in.UserID, "error", err)
		return goerror.NewServer(err)
	}

	return nil
}
