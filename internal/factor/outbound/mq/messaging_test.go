package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
	"github.com/shandysiswandi/gotp/internal/factor/usecase"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/messaging"
	"github.com/shandysiswandi/gotp/internal/shared/event"
)

type published struct {
	dest string
	msg  messaging.OutgoingMessage
}

type stubPublisher struct {
	sent []published
	err  error
}

func (p *stubPublisher) Publish(_ context.Context, dest string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	if p.err != nil {
		return messaging.PublishResult{}, p.err
	}
	p.sent = append(p.sent, published{dest: dest, msg: msg})
	return messaging.PublishResult{MessageID: "1"}, nil
}

func TestPublishFactorEnrolled(t *testing.T) {
	pub := &stubPublisher{}
	m := NewMessaging(pub, instrument.NewNoop())

	ctx := instrument.SetCorrelationID(context.Background(), "corr-1")
	at := time.UnixMilli(1_700_000_000_000)
	err := m.PublishFactorEnrolled(ctx, usecase.FactorEnrolledEvent{
		EventID:        555,
		UserID:         42,
		FactorConfigID: 7,
		Kind:           entity.FactorKindTOTP,
		Name:           "phone",
		OccurredAt:     at,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(pub.sent) != 1 || pub.sent[0].dest != event.FactorEnrolledDestination {
		t.Fatalf("unexpected publishes %+v", pub.sent)
	}

	hdr := pub.sent[0].msg.Headers
	if len(hdr) != 1 || hdr[0].Key != keyOfCorrelationID || string(hdr[0].Value) != "corr-1" {
		t.Fatalf("unexpected headers %+v", hdr)
	}

	var got event.FactorEnrolledMessage
	if err := json.Unmarshal(pub.sent[0].msg.Body, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := event.FactorEnrolledMessage{EventID: 555, UserID: 42, FactorConfigID: 7, Kind: "totp", Name: "phone", OccurredAt: at.UnixMilli()}
	if got != want {
		t.Fatalf("body %+v, want %+v", got, want)
	}
}

func TestPublishChallenge_Destinations(t *testing.T) {
	tests := []struct {
		outcome usecase.ChallengeEventType
		dest    string
	}{
		{usecase.ChallengeEventIssued, event.FactorChallengeIssuedDestination},
		{usecase.ChallengeEventAnswered, event.FactorChallengeAnsweredDestination},
		{usecase.ChallengeEventWait, event.FactorChallengeWaitDestination},
		{usecase.ChallengeEventRejected, event.FactorChallengeRejectedDestination},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			pub := &stubPublisher{}
			m := NewMessaging(pub, instrument.NewNoop())

			err := m.PublishChallenge(context.Background(), usecase.ChallengeEvent{
				EventID:        556,
				Outcome:        tt.outcome,
				UserID:         42,
				FactorConfigID: 7,
				ChallengeKey:   1000,
				WorkflowKey:    "login",
				WaitSeconds:    31,
			})
			if err != nil {
				t.Fatalf("publish: %v", err)
			}
			if len(pub.sent) != 1 || pub.sent[0].dest != tt.dest {
				t.Fatalf("unexpected publishes %+v", pub.sent)
			}

			var got event.FactorChallengeMessage
			if err := json.Unmarshal(pub.sent[0].msg.Body, &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if got.EventID != 556 || got.ChallengeKey != 1000 || got.WorkflowKey != "login" || got.WaitSeconds != 31 {
				t.Fatalf("unexpected body %+v", got)
			}
		})
	}
}

func TestPublishChallenge_Errors(t *testing.T) {
	m := NewMessaging(&stubPublisher{}, instrument.NewNoop())
	if err := m.PublishChallenge(context.Background(), usecase.ChallengeEvent{Outcome: "bogus"}); err == nil {
		t.Fatal("expected error for unknown outcome")
	}

	boom := errors.New("broker down")
	m = NewMessaging(&stubPublisher{err: boom}, instrument.NewNoop())
	if err := m.PublishChallenge(context.Background(), usecase.ChallengeEvent{Outcome: usecase.ChallengeEventIssued}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}
