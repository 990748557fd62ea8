package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrMemoryDestinationRequired is returned when the destination is empty.
	ErrMemoryDestinationRequired = errors.New("messaging: memory destination is required")
	// ErrMemoryHandlerRequired is returned when Consume is called with a nil handler.
	ErrMemoryHandlerRequired = errors.New("messaging: memory handler is required")
)

const (
	defaultMemoryBuffer      = 256
	defaultMemoryRedelivery  = 3
	memoryAnonymousGroupBase = "anonymous-"
)

// MemoryConfig configures the in-process implementation.
type MemoryConfig struct {
	// Buffer is the per-group queue capacity.
	Buffer int
	// MaxRedelivery bounds how often a nacked message is requeued.
	MaxRedelivery int
}

// Memory is an in-process broker for single-node deployments and tests.
//
// Every consumer group on a destination receives each message once; consumers
// sharing a group compete for it. Messages published before any consumer
// subscribed are dropped.
type Memory struct {
	buffer        int
	maxRedelivery int

	seq    atomic.Uint64
	mu     sync.RWMutex
	groups map[string]map[string]chan *memoryEnvelope
	closed bool
}

// NewMemory constructs an in-process messaging client.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultMemoryBuffer
	}
	if cfg.MaxRedelivery <= 0 {
		cfg.MaxRedelivery = defaultMemoryRedelivery
	}

	return &Memory{
		buffer:        cfg.Buffer,
		maxRedelivery: cfg.MaxRedelivery,
		groups:        make(map[string]map[string]chan *memoryEnvelope),
	}
}

// Close stops accepting messages. Running consumers exit when their context ends.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Publish fans msg out to every consumer group of destination.
func (m *Memory) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrMemoryDestinationRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return PublishResult{}, io.ErrClosedPipe
	}

	seq := m.seq.Add(1)
	env := &memoryEnvelope{
		out:         msg,
		id:          strconv.FormatUint(seq, 10),
		destination: destination,
		publishedAt: time.Now(),
	}
	for _, ch := range m.groups[destination] {
		select {
		case ch <- env:
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		}
	}

	return PublishResult{
		MessageID: env.id,
		Topic:     destination,
		Sequence:  seq,
		Timestamp: env.publishedAt,
	}, nil
}

// Consume blocks, delivering messages from source until ctx ends.
func (m *Memory) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrMemoryDestinationRequired
	}
	if handler == nil {
		return ErrMemoryHandlerRequired
	}

	co := newConsumeOptions(opts...)
	ch, err := m.join(source, memoryGroup(co, m.seq.Add(1)))
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for range concurrencyOrDefault(co.concurrency, 1) {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case env := <-ch:
					//nolint:errcheck // a dropped redelivery is reported by the nack itself
					dispatch(ctx, "memory", m.delivery(env, ch), handler, co.ackMode())
				}
			}
		})
	}
	wg.Wait()

	return ctx.Err()
}

func (m *Memory) join(source, group string) (chan *memoryEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, io.ErrClosedPipe
	}

	groups, ok := m.groups[source]
	if !ok {
		groups = make(map[string]chan *memoryEnvelope)
		m.groups[source] = groups
	}
	ch, ok := groups[group]
	if !ok {
		ch = make(chan *memoryEnvelope, m.buffer)
		groups[group] = ch
	}

	return ch, nil
}

// memoryGroup picks whichever broker-specific group name the caller set, so
// consumers written for any driver keep their fan-out semantics.
func memoryGroup(co consumeOptions, seq uint64) string {
	for _, name := range []string{co.group, co.queueGroup, co.channel, co.subscription} {
		if name != "" {
			return name
		}
	}
	return memoryAnonymousGroupBase + strconv.FormatUint(seq, 10)
}

type memoryEnvelope struct {
	out         OutgoingMessage
	id          string
	destination string
	publishedAt time.Time
	attempt     int
}

// delivery wraps env for one handler call. Nack requeues env on its group
// queue until MaxRedelivery attempts were made.
func (m *Memory) delivery(env *memoryEnvelope, queue chan *memoryEnvelope) *delivery {
	return &delivery{
		body:       env.out.Body,
		key:        env.out.Key,
		headers:    env.out.Headers,
		attributes: env.out.Attributes,
		id:         env.id,
		topic:      env.destination,
		subject:    env.destination,
		at:         env.publishedAt,
		raw:        env,
		nack: func(ctx context.Context) error {
			if env.attempt+1 >= m.maxRedelivery {
				return fmt.Errorf("messaging: memory message %s dropped after %d attempts", env.id, m.maxRedelivery)
			}

			next := *env
			next.attempt++
			select {
			case queue <- &next:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		metadata: func() map[string]any {
			return map[string]any{"attempt": env.attempt}
		},
	}
}
