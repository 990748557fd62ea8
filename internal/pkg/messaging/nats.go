package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	// ErrNATSSubjectRequired is returned when the subject is empty.
	ErrNATSSubjectRequired = errors.New("messaging: nats subject is required")
	// ErrNATSURLRequired is returned when the NATS server URL is missing.
	ErrNATSURLRequired = errors.New("messaging: nats url is required")
	// ErrNATSHandlerRequired is returned when Consume is called with a nil handler.
	ErrNATSHandlerRequired = errors.New("messaging: nats handler is required")
)

// NATSConfig configures the NATS implementation.
type NATSConfig struct {
	// URL is the NATS server address.
	URL string

	// Options are passed to the NATS client.
	Options []nats.Option
}

// NATS is a messaging implementation backed by core NATS queue subscriptions.
type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

// NewNATS connects to cfg.URL.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	return &NATS{conn: conn}, nil
}

// Close drains every subscription, then the connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := slices.Clone(n.subs)
	n.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		errs = append(errs, sub.Drain())
	}
	errs = append(errs, n.conn.Drain())
	n.conn.Close()

	return errors.Join(errs...)
}

// Publish sends msg to the destination subject and flushes the connection.
func (n *NATS) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrNATSSubjectRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	out := nats.NewMsg(destination)
	out.Data = msg.Body
	for _, h := range msg.Headers {
		if h.Key != "" {
			out.Header.Add(h.Key, string(h.Value))
		}
	}

	if err := n.conn.PublishMsg(out); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.Flush(); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats flush: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}

// Consume joins the queue group named by the options and blocks until ctx
// ends.
func (n *NATS) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrNATSSubjectRequired
	}
	if handler == nil {
		return ErrNATSHandlerRequired
	}

	co := newConsumeOptions(opts...)
	workers := concurrencyOrDefault(co.concurrency, 1)
	inbox := make(chan *nats.Msg, workers)

	sub, err := n.conn.QueueSubscribe(source, queueGroupFromConsumeOptions(co), func(m *nats.Msg) {
		select {
		case inbox <- m:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for m := range inbox {
				//nolint:errcheck // a failed ack is redelivered by the server
				dispatch(ctx, "nats", natsDelivery(m, time.Now()), handler, co.ackMode())
			}
		})
	}

	// stop drains the subscription before closing inbox so the callback can
	// never send on a closed channel.
	stop := func(cause error) error {
		derr := sub.Drain()
		close(inbox)
		wg.Wait()
		return errors.Join(cause, derr)
	}

	if err := n.track(sub); err != nil {
		return stop(err)
	}
	if err := n.conn.Flush(); err != nil {
		return stop(fmt.Errorf("messaging: nats flush: %w", err))
	}

	<-ctx.Done()
	return stop(ctx.Err())
}

func (n *NATS) track(sub *nats.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return io.ErrClosedPipe
	}
	n.subs = append(n.subs, sub)
	return nil
}

func natsDelivery(m *nats.Msg, receivedAt time.Time) *delivery {
	d := &delivery{
		body:    m.Data,
		subject: m.Subject,
		at:      receivedAt,
		raw:     m,
		ack:     func(context.Context) error { return ignoreNATSNoAck(m.Ack()) },
		nack:    func(context.Context) error { return ignoreNATSNoAck(m.Nak()) },
		extend: func(context.Context, time.Duration) error {
			return ignoreNATSNoAck(m.InProgress())
		},
		metadata: func() map[string]any {
			meta := map[string]any{"reply": m.Reply}
			if md, err := m.Metadata(); err == nil && md != nil {
				meta["sequence_stream"] = md.Sequence.Stream
				meta["sequence_consumer"] = md.Sequence.Consumer
				meta["num_delivered"] = md.NumDelivered
				meta["num_pending"] = md.NumPending
				meta["timestamp"] = md.Timestamp
				meta["domain"] = md.Domain
			}
			return meta
		},
	}

	if len(m.Header) > 0 {
		d.attributes = make(map[string]string, len(m.Header))
		for k, values := range m.Header {
			for _, v := range values {
				d.headers = append(d.headers, Header{Key: k, Value: []byte(v)})
			}
			if len(values) > 0 {
				d.attributes[k] = values[0]
			}
		}
	}

	return d
}

// ignoreNATSNoAck hides the errors core NATS returns for messages that were
// not delivered by JetStream and so have nothing to acknowledge.
func ignoreNATSNoAck(err error) error {
	if errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound) {
		return nil
	}
	return err
}

func queueGroupFromConsumeOptions(opts consumeOptions) string {
	if v := opts.params["queue_group"]; v != "" {
		return v
	}
	return opts.queueGroup
}

func concurrencyOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
