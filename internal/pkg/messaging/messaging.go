// Package messaging is a small broker-agnostic publish/consume layer with
// drivers for NSQ, NATS, Kafka, Google Pub/Sub and an in-process broker.
package messaging

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnsupported is returned when the selected broker cannot honor a
// request, such as delayed delivery on NATS.
var ErrUnsupported = errors.New("messaging: unsupported operation")

// Messaging publishes to and consumes from one broker.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

type Publisher interface {
	// Publish sends msg to destination (topic or subject).
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

type Consumer interface {
	// Consume delivers messages from source to handler and blocks until ctx
	// is done or the subscription fails.
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes one message. With WithAutoAck a nil error acks and a
// non-nil error nacks; otherwise the handler settles the message itself.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to publish. Drivers ignore fields their
// broker has no equivalent for, except Delay, which fails with
// ErrUnsupported where deferral is impossible.
type OutgoingMessage struct {
	Body []byte
	// Key selects the Kafka partition.
	Key []byte
	// Headers may repeat a key. Pub/Sub folds them into Attributes and NSQ
	// drops them.
	Headers    []Header
	Attributes map[string]string
	// OrderingKey is honored by Pub/Sub.
	OrderingKey string
	Delay       time.Duration
}

type Header struct {
	Key   string
	Value []byte
}

// PublishResult reports what the broker told us about an accepted message.
type PublishResult struct {
	MessageID string
	Topic     string
	Sequence  uint64
	Timestamp time.Time
}

// Message is a received message.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	Attributes() map[string]string

	ID() string
	Topic() string
	Subject() string
	Timestamp() time.Time

	// Ack settles the message as processed. Settling twice is a no-op.
	Ack(ctx context.Context) error
}

// Nackable messages can be handed back for redelivery.
type Nackable interface {
	Nack(ctx context.Context) error
}

// Extendable messages can have their ack deadline pushed back.
type Extendable interface {
	Extend(ctx context.Context, d time.Duration) error
}

// MetadataCarrier exposes broker-specific details such as partition and
// offset or the delivery attempt.
type MetadataCarrier interface {
	Metadata() map[string]any
}

// RawCarrier exposes the driver's own message value.
type RawCarrier interface {
	Raw() any
}
