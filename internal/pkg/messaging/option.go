package messaging

import "strconv"

// consumeOptions is the union of what the drivers understand. Each driver
// reads the fields that apply to it and ignores the rest, so a consumer can
// pass one option set regardless of the configured broker.
type consumeOptions struct {
	concurrency int
	autoAck     bool
	maxInFlight int

	group        string // kafka consumer group
	channel      string // nsq channel
	queueGroup   string // nats queue group
	subscription string // pub/sub subscription

	// params holds driver-specific overrides such as "auto_ack",
	// "queue_group" or "subscription".
	params map[string]string
}

// ConsumeOption configures a Consume call.
type ConsumeOption func(*consumeOptions)

func newConsumeOptions(opts ...ConsumeOption) consumeOptions {
	var co consumeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&co)
		}
	}
	return co
}

// ackMode returns autoAck, overridden by a parseable "auto_ack" param.
func (co consumeOptions) ackMode() bool {
	if b, err := strconv.ParseBool(co.params["auto_ack"]); err == nil {
		return b
	}
	return co.autoAck
}

// WithConcurrency sets how many handler goroutines process messages in parallel.
func WithConcurrency(n int) ConsumeOption {
	return func(o *consumeOptions) { o.concurrency = n }
}

// WithAutoAck makes the driver ack after a successful handler and nack after
// a failed one, unless the handler settled the message itself.
func WithAutoAck(autoAck bool) ConsumeOption {
	return func(o *consumeOptions) { o.autoAck = autoAck }
}

// WithMaxInFlight limits unacknowledged messages (NSQ, Pub/Sub).
func WithMaxInFlight(n int) ConsumeOption {
	return func(o *consumeOptions) { o.maxInFlight = n }
}

func WithGroup(group string) ConsumeOption {
	return func(o *consumeOptions) { o.group = group }
}

func WithChannel(channel string) ConsumeOption {
	return func(o *consumeOptions) { o.channel = channel }
}

func WithQueueGroup(queueGroup string) ConsumeOption {
	return func(o *consumeOptions) { o.queueGroup = queueGroup }
}

func WithSubscription(subscription string) ConsumeOption {
	return func(o *consumeOptions) { o.subscription = subscription }
}

// WithParam sets one driver-specific parameter. An empty key is ignored.
func WithParam(key, value string) ConsumeOption {
	return func(o *consumeOptions) {
		if key == "" {
			return
		}
		if o.params == nil {
			o.params = make(map[string]string)
		}
		o.params[key] = value
	}
}
