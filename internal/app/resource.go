package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gotp/internal/pkg/messaging"
	"google.golang.org/api/option"
)

const pingTimeout = 5 * time.Second

// initDatabase opens the postgres pool. Without database.url the service
// runs on the memory and redis drivers only.
func (a *App) initDatabase() {
	url := strings.TrimSpace(a.config.GetString("database.url"))
	if url == "" {
		slog.Warn("database url is empty, running without postgres")
		return
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		fatal("failed to parse DB connection string", err)
	}

	cfg.MaxConns = a.config.GetInt32("database.pool.max_conns")
	cfg.MinConns = a.config.GetInt32("database.pool.min_conns")
	cfg.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	cfg.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	cfg.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, cfg)
	if err != nil {
		fatal("failed to create DB connection pool", err)
	}

	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		fatal("failed to ping DB", err)
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	url := strings.TrimSpace(a.config.GetString("redis.url"))
	if url == "" {
		slog.Warn("redis url is empty, running without redis")
		return
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		fatal("failed to parse redis url", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(a.ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		fatal("failed to init redis", err)
	}

	a.cacheConn = rdb
}

func (a *App) initMessaging() {
	driver := a.config.GetString("messaging.driver")

	client, err := messaging.NewFromDriver(a.ctx, driver, messaging.FactoryOptions{
		NSQ: messaging.NSQConfig{
			ProducerAddr:         a.config.GetString("messaging.nsq.producer_addr"),
			ConsumerNSQDAddrs:    a.config.GetArray("messaging.nsq.consumer_nsqd_addrs"),
			ConsumerLookupdAddrs: a.config.GetArray("messaging.nsq.consumer_lookupd_addrs"),
			ProducerConfig:       a.nsqConfig("messaging.nsq.producer_config"),
			ConsumerConfig:       a.nsqConfig("messaging.nsq.consumer_config"),
		},
		NATS: messaging.NATSConfig{
			URL:     a.config.GetString("messaging.nats.url"),
			Options: a.natsOptions(),
		},
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
		},
		PubSub: messaging.PubSubConfig{
			ProjectID:     a.config.GetString("messaging.pubsub.project_id"),
			ClientOptions: a.pubSubOptions(),
		},
		Memory: messaging.MemoryConfig{
			Buffer:        a.config.GetInt("messaging.memory.buffer"),
			MaxRedelivery: a.config.GetInt("messaging.memory.max_redelivery"),
		},
	})
	if err != nil {
		fatal("failed to init messaging", err, "driver", driver)
	}

	a.messaging = client
}

// nsqConfig reads one nsq.Config block. Zero values keep the go-nsq
// defaults; consumer-only keys are ignored by producers.
func (a *App) nsqConfig(prefix string) *nsq.Config {
	cfg := nsq.NewConfig()
	key := func(k string) string { return prefix + "." + k }

	if v := a.config.GetInt(key("max_in_flight")); v > 0 {
		cfg.MaxInFlight = v
	}
	if v := a.config.GetUint16(key("max_attempts")); v > 0 {
		cfg.MaxAttempts = v
	}

	for k, dst := range map[string]*time.Duration{
		"dial_timeout_seconds":          &cfg.DialTimeout,
		"read_timeout_seconds":          &cfg.ReadTimeout,
		"write_timeout_seconds":         &cfg.WriteTimeout,
		"lookupd_poll_interval_seconds": &cfg.LookupdPollInterval,
		"default_requeue_delay_seconds": &cfg.DefaultRequeueDelay,
		"max_requeue_delay_seconds":     &cfg.MaxRequeueDelay,
	} {
		if v := a.config.GetSecond(key(k)); v > 0 {
			*dst = v
		}
	}

	return cfg
}

func (a *App) natsOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(a.config.GetString("messaging.nats.name")),
		nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
	}
	if v := a.config.GetInt("messaging.nats.max_reconnects"); v != 0 {
		opts = append(opts, nats.MaxReconnects(v))
	}
	if v := a.config.GetSecond("messaging.nats.timeout_seconds"); v > 0 {
		opts = append(opts, nats.Timeout(v))
	}
	if v := a.config.GetSecond("messaging.nats.reconnect_wait_seconds"); v > 0 {
		opts = append(opts, nats.ReconnectWait(v))
	}
	if v := a.config.GetSecond("messaging.nats.ping_interval_seconds"); v > 0 {
		opts = append(opts, nats.PingInterval(v))
	}
	if v := a.config.GetInt("messaging.nats.max_pings_outstanding"); v > 0 {
		opts = append(opts, nats.MaxPingsOutstanding(v))
	}
	return opts
}

// pubSubOptions points the client at an emulator when an endpoint is set.
func (a *App) pubSubOptions() []option.ClientOption {
	var opts []option.ClientOption
	if v := strings.TrimSpace(a.config.GetString("messaging.pubsub.endpoint")); v != "" {
		opts = append(opts, option.WithEndpoint(v))
	}
	if a.config.GetBool("messaging.pubsub.without_auth") {
		opts = append(opts, option.WithoutAuthentication())
	}
	return opts
}
