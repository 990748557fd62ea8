package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/gotp/internal/audit/entity"
	"github.com/shandysiswandi/gotp/internal/pkg/config"
	"github.com/shandysiswandi/gotp/internal/pkg/goroutine"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gotp/internal/pkg/uid"
	"github.com/shandysiswandi/gotp/internal/shared/event"
)

type consumer struct {
	name    string
	topic   string // destination where publisher sent message
	handler messaging.Handler
}

func consumers(h *MQHandler) []consumer {
	return []consumer{
		{
			name:    event.FactorEnrolledConsumerAudit,
			topic:   event.FactorEnrolledDestination,
			handler: h.FactorEnrolledAudit,
		},
		{
			name:    event.FactorChallengeIssuedConsumerAudit,
			topic:   event.FactorChallengeIssuedDestination,
			handler: h.factorChallengeAudit("FactorChallengeIssuedAudit", entity.EventFactorChallengeIssued),
		},
		{
			name:    event.FactorChallengeAnsweredConsumerAudit,
			topic:   event.FactorChallengeAnsweredDestination,
			handler: h.factorChallengeAudit("FactorChallengeAnsweredAudit", entity.EventFactorChallengeAnswered),
		},
		{
			name:    event.FactorChallengeWaitConsumerAudit,
			topic:   event.FactorChallengeWaitDestination,
			handler: h.factorChallengeAudit("FactorChallengeWaitAudit", entity.EventFactorChallengeWait),
		},
		{
			name:    event.FactorChallengeRejectedConsumerAudit,
			topic:   event.FactorChallengeRejectedDestination,
			handler: h.factorChallengeAudit("FactorChallengeRejectedAudit", entity.EventFactorChallengeRejected),
		},
	}
}

// RegisterMQConsumer starts one consumer per enabled name in
// modules.audit.consumer_names. An empty list enables every consumer.
func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Consumer,
	uuid uid.StringID,
	uc ucConsumer,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.audit.consumer_names")
	concurrency := cfg.GetInt("modules.audit.consumer_concurrency")
	if concurrency <= 0 {
		concurrency = 10
	}

	for _, c := range consumers(mqHandler) {
		if len(enableConsumerNames) > 0 && !slices.Contains(enableConsumerNames, c.name) {
			continue
		}

		routine.Go(ctx, "audit.consume."+c.name, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", c.name)
			return messenger.Consume(pCtx,
				c.topic,
				c.handler,
				messaging.WithChannel(c.name),
				messaging.WithQueueGroup(c.name),
				messaging.WithGroup(c.name),
				messaging.WithSubscription(c.name),
				messaging.WithAutoAck(true),
				messaging.WithConcurrency(concurrency),
				messaging.WithMaxInFlight(concurrency),
			)
		})
	}
}
