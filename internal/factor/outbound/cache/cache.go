package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/gotp/internal/pkg/goerror"
	"github.com/shandysiswandi/gotp/internal/pkg/instrument"
	"github.com/shandysiswandi/gotp/internal/pkg/lock"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Cache keeps challenges and enrollment tokens in Redis. Every key lives under
// prefix so several deployments can share one server.
type Cache struct {
	client *redis.Client
	locker lock.Locker
	prefix string
	ins    instrument.Instrumentation
}

func NewCache(client *redis.Client, locker lock.Locker, ins instrument.Instrumentation) *Cache {
	return &Cache{
		client: client,
		locker: locker,
		prefix: "factor:",
		ins:    ins,
	}
}

func (c *Cache) challengesKey(factorConfigID int64) string {
	return c.prefix + "challenges:" + strconv.FormatInt(factorConfigID, 10)
}

func (c *Cache) tokensKey(resourceID int64, tokenType string) string {
	return c.prefix + "enroll:" + strconv.FormatInt(resourceID, 10) + ":" + tokenType
}

func (c *Cache) mapError(err error) error {
	if errors.Is(err, redis.Nil) {
		return goerror.ErrNotFound
	}
	return err
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("factor.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
