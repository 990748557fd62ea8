package inbound

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/audit/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
	"github.com/shandysiswandi/gotp/internal/pkg/valueobject"
	"github.com/shandysiswandi/gotp/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   ucConsumer
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	for i := range headers {
		if headers[i].Key == keyOfCorrelationID && len(headers[i].Value) > 0 {
			return instrument.SetCorrelationID(ctx, string(headers[i].Value))
		}
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func occurredAt(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (h *MQHandler) FactorEnrolledAudit(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("audit.inbound.mq").Start(ctx, "FactorEnrolledAudit")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: factor enrolled audit", "msg_body", string(body))

	var payload event.FactorEnrolledMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of factor enrolled audit", "msg_body", string(body), "error", err)
		return nil
	}

	if err := h.uc.RecordEvent(ctx, usecase.RecordEventInput{
		EventID:        payload.EventID,
		Event:          entity.EventFactorEnrolled,
		UserID:         payload.UserID,
		FactorConfigID: payload.FactorConfigID,
		Data: valueobject.JSONMap{
			"kind": payload.Kind,
			"name": payload.Name,
		},
		OccurredAt: occurredAt(payload.OccurredAt),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to record factor enrolled audit", "msg_body", string(body), "error", err)
		return err
	}

	return nil
}

// factorChallengeAudit builds the handler for one challenge destination; the
// payload is shared and ev names the outcome.
func (h *MQHandler) factorChallengeAudit(spanName string, ev entity.Event) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		ctx = h.ensureCorrelationID(ctx, msg.Headers())

		ctx, span := h.ins.Tracer("audit.inbound.mq").Start(ctx, spanName)
		defer span.End()

		body := msg.Body()
		slog.InfoContext(ctx, "consume: factor challenge audit", "event", ev, "msg_body", string(body))

		var payload event.FactorChallengeMessage
		if err := json.Unmarshal(body, &payload); err != nil {
			slog.ErrorContext(ctx, "failed to parse message body of factor challenge audit", "event", ev, "msg_body", string(body), "error", err)
			return nil
		}

		data := valueobject.JSONMap{"workflow_key": payload.WorkflowKey}
		if payload.ChallengeID != 0 {
			data.Set("challenge_id", payload.ChallengeID)
		}
		if payload.ChallengeKey != 0 {
			data.Set("challenge_key", payload.ChallengeKey)
		}
		if payload.WaitSeconds != 0 {
			data.Set("wait_seconds", payload.WaitSeconds)
		}
		if payload.Message != "" {
			data.Set("message", payload.Message)
		}

		if err := h.uc.RecordEvent(ctx, usecase.RecordEventInput{
			EventID:        payload.EventID,
			Event:          ev,
			UserID:         payload.UserID,
			FactorConfigID: payload.FactorConfigID,
			Data:           data,
			OccurredAt:     occurredAt(payload.OccurredAt),
		}); err != nil {
			slog.ErrorContext(ctx, "failed to record factor challenge audit", "event", ev, "msg_body", string(body), "error", err)
			return err
		}

		return nil
	}
}
