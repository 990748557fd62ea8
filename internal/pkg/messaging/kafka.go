package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrKafkaTopicRequired is returned when the topic is empty.
	ErrKafkaTopicRequired = errors.New("messaging: kafka topic is required")
	// ErrKafkaHandlerRequired is returned when Consume is called with a nil handler.
	ErrKafkaHandlerRequired = errors.New("messaging: kafka handler is required")
	// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
	ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")
	// ErrKafkaGroupRequired is returned when a consumer group is required but not provided.
	ErrKafkaGroupRequired = errors.New("messaging: kafka consumer group is required")
)

const kafkaMaxBytes = 10e6

// KafkaConfig configures the Kafka implementation.
type KafkaConfig struct {
	// Brokers lists Kafka broker addresses.
	Brokers []string

	// Dialer configures broker connections.
	Dialer *kafka.Dialer

	// WriterConfig overrides the default writer configuration.
	WriterConfig *kafka.WriterConfig
	// ReaderConfig overrides the default reader configuration.
	ReaderConfig *kafka.ReaderConfig
}

// Kafka is a messaging implementation backed by kafka-go. One writer is kept
// per topic; every Consume call owns a group reader.
type Kafka struct {
	cfg KafkaConfig

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers map[*kafka.Reader]struct{}
	closed  bool
}

// NewKafka constructs a Kafka messaging client.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}
	cfg.Brokers = slices.Clone(cfg.Brokers)

	return &Kafka{
		cfg:     cfg,
		writers: map[string]*kafka.Writer{},
		readers: map[*kafka.Reader]struct{}{},
	}, nil
}

// Close shuts down all Kafka readers and writers.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	writers, readers := k.writers, k.readers
	k.writers, k.readers = nil, nil
	k.mu.Unlock()

	var errs []error
	for r := range readers {
		errs = append(errs, r.Close())
	}
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// Publish writes msg to the destination topic.
func (k *Kafka) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrKafkaTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	writer, err := k.writer(destination)
	if err != nil {
		return PublishResult{}, err
	}

	out := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	for _, h := range msg.Headers {
		if h.Key != "" {
			out.Headers = append(out.Headers, kafka.Header{Key: h.Key, Value: h.Value})
		}
	}

	if err := writer.WriteMessages(ctx, out); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: kafka publish: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: out.Time}, nil
}

// Consume reads source as the consumer group from the options and blocks
// until ctx ends or a commit fails.
func (k *Kafka) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if source == "" {
		return ErrKafkaTopicRequired
	}
	if handler == nil {
		return ErrKafkaHandlerRequired
	}

	co := newConsumeOptions(opts...)
	if co.group == "" {
		return ErrKafkaGroupRequired
	}

	reader, err := k.reader(source, co.group)
	if err != nil {
		return err
	}
	defer k.release(reader)

	g, gctx := errgroup.WithContext(ctx)
	inbox := make(chan kafka.Message)

	g.Go(func() error {
		defer close(inbox)
		for {
			m, err := reader.FetchMessage(gctx)
			if err != nil {
				return err
			}
			select {
			case inbox <- m:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for range concurrencyOrDefault(co.concurrency, 1) {
		g.Go(func() error {
			for m := range inbox {
				if _, err := dispatch(gctx, "kafka", kafkaDelivery(reader, m), handler, co.ackMode()); err != nil {
					return fmt.Errorf("messaging: kafka commit: %w", err)
				}
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("messaging: kafka consume: %w", err)
	}
	return ctx.Err()
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, io.ErrClosedPipe
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	cfg := kafka.WriterConfig{}
	if k.cfg.WriterConfig != nil {
		cfg = *k.cfg.WriterConfig
	}
	cfg.Topic = topic
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = k.cfg.Brokers
	}
	if cfg.Dialer == nil {
		cfg.Dialer = k.cfg.Dialer
	}
	if cfg.Balancer == nil {
		cfg.Balancer = &kafka.LeastBytes{}
	}

	w := kafka.NewWriter(cfg)
	k.writers[topic] = w
	return w, nil
}

func (k *Kafka) reader(topic, group string) (*kafka.Reader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, io.ErrClosedPipe
	}

	cfg := kafka.ReaderConfig{}
	if k.cfg.ReaderConfig != nil {
		cfg = *k.cfg.ReaderConfig
	}
	cfg.Topic = topic
	cfg.GroupID = group
	if len(cfg.Brokers) == 0 {
		cfg.Brokers = k.cfg.Brokers
	}
	if cfg.Dialer == nil {
		cfg.Dialer = k.cfg.Dialer
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = kafkaMaxBytes
	}

	r := kafka.NewReader(cfg)
	k.readers[r] = struct{}{}
	return r, nil
}

// release closes reader unless Close already did.
func (k *Kafka) release(reader *kafka.Reader) {
	k.mu.Lock()
	_, owned := k.readers[reader]
	delete(k.readers, reader)
	k.mu.Unlock()

	if owned {
		//nolint:errcheck // the consume error is what the caller needs
		reader.Close()
	}
}

func kafkaDelivery(reader *kafka.Reader, m kafka.Message) *delivery {
	d := &delivery{
		body:  m.Value,
		key:   m.Key,
		id:    fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
		topic: m.Topic,
		at:    m.Time,
		raw:   m,
		ack: func(ctx context.Context) error {
			return reader.CommitMessages(ctx, m)
		},
		// an uncommitted offset is redelivered after a rebalance
		nack: nil,
		metadata: func() map[string]any {
			return map[string]any{"partition": m.Partition, "offset": m.Offset, "topic": m.Topic}
		},
	}

	if len(m.Headers) > 0 {
		d.headers = make([]Header, 0, len(m.Headers))
		d.attributes = make(map[string]string, len(m.Headers))
		for _, h := range m.Headers {
			d.headers = append(d.headers, Header{Key: h.Key, Value: h.Value})
			if _, seen := d.attributes[h.Key]; !seen {
				d.attributes[h.Key] = string(h.Value)
			}
		}
	}

	return d
}
