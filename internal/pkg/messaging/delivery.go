package messaging

import (
	"context"
	"sync/atomic"
	"time"
)

// delivery is the Message every driver hands to a Handler. Drivers fill in
// the envelope and the broker callbacks; a delivery is settled at most once.
type delivery struct {
	body       []byte
	key        []byte
	headers    []Header
	attributes map[string]string
	id         string
	topic      string
	subject    string
	at         time.Time
	raw        any
	metadata   func() map[string]any

	// ack and nack settle the message with the broker. A nil callback
	// settles locally only.
	ack    func(ctx context.Context) error
	nack   func(ctx context.Context) error
	extend func(ctx context.Context, d time.Duration) error

	settled atomic.Bool
}

func (d *delivery) Body() []byte                  { return d.body }
func (d *delivery) Key() []byte                   { return d.key }
func (d *delivery) Headers() []Header             { return d.headers }
func (d *delivery) Attributes() map[string]string { return d.attributes }
func (d *delivery) ID() string                    { return d.id }
func (d *delivery) Topic() string                 { return d.topic }
func (d *delivery) Subject() string               { return d.subject }
func (d *delivery) Timestamp() time.Time          { return d.at }
func (d *delivery) Raw() any                      { return d.raw }

func (d *delivery) Metadata() map[string]any {
	if d.metadata == nil {
		return nil
	}
	return d.metadata()
}

func (d *delivery) Ack(ctx context.Context) error {
	return d.settle(ctx, d.ack)
}

func (d *delivery) Nack(ctx context.Context) error {
	return d.settle(ctx, d.nack)
}

func (d *delivery) Extend(ctx context.Context, dur time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.extend == nil {
		return ErrUnsupported
	}
	return d.extend(ctx, dur)
}

func (d *delivery) settle(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.settled.Swap(true) || fn == nil {
		return nil
	}
	return fn(ctx)
}

// dispatch runs handler for d. With autoAck it acks on success and nacks on
// failure, unless the handler already settled d itself. settleErr reports
// the broker's answer to that ack or nack.
func dispatch(ctx context.Context, kind string, d *delivery, handler Handler, autoAck bool) (handlerErr, settleErr error) {
	handlerErr = callHandlerWithRecover(ctx, kind, func() error {
		return handler(ctx, d)
	})

	if !autoAck || d.settled.Load() {
		return handlerErr, nil
	}
	if handlerErr == nil {
		return nil, d.Ack(ctx)
	}
	return handlerErr, d.Nack(ctx)
}
