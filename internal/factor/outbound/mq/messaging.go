package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gotp/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyOfCorrelationID string = "cID"

var challengeDestinations = map[usecase.ChallengeEventType]string{
	usecase.ChallengeEventIssued:   event.FactorChallengeIssuedDestination,
	usecase.ChallengeEventAnswered: event.FactorChallengeAnsweredDestination,
	usecase.ChallengeEventWait:     event.FactorChallengeWaitDestination,
	usecase.ChallengeEventRejected: event.FactorChallengeRejectedDestination,
}

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishFactorEnrolled(ctx context.Context, msg usecase.FactorEnrolledEvent) error {
	ctx, span := m.ins.Tracer("factor.outbound.mq").Start(ctx, "PublishFactorEnrolled")
	defer span.End()

	return m.publish(ctx, span, event.FactorEnrolledDestination, event.FactorEnrolledMessage{
		EventID:        msg.EventID,
		UserID:         msg.UserID,
		FactorConfigID: msg.FactorConfigID,
		Kind:           msg.Kind.String(),
		Name:           msg.Name,
		OccurredAt:     msg.OccurredAt.UnixMilli(),
	})
}

func (m *Messaging) PublishChallenge(ctx context.Context, msg usecase.ChallengeEvent) error {
	ctx, span := m.ins.Tracer("factor.outbound.mq").Start(ctx, "PublishChallenge")
	defer span.End()

	dest, ok := challengeDestinations[msg.Outcome]
	if !ok {
		err := fmt.Errorf("mq: no destination for challenge outcome %q", msg.Outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return m.publish(ctx, span, dest, event.FactorChallengeMessage{
		EventID:        msg.EventID,
		UserID:         msg.UserID,
		FactorConfigID: msg.FactorConfigID,
		ChallengeID:    msg.ChallengeID,
		ChallengeKey:   int64(msg.ChallengeKey),
		WorkflowKey:    msg.WorkflowKey,
		WaitSeconds:    msg.WaitSeconds,
		Message:        msg.Message,
		OccurredAt:     msg.OccurredAt.UnixMilli(),
	})
}

func (m *Messaging) publish(ctx context.Context, span trace.Span, dest string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, dest, messaging.OutgoingMessage{
		Body:    body,
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
