package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/EcommerceGo/pkg/tracing"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns defaults for a local Redis with short I/O
// timeouts, so a stalled server fails a cart save quickly.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}
}

func (c RedisConfig) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// RedisCommandDuration tracks Redis command latency. Pipelines are observed
// once under the name "pipeline".
var RedisCommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "redis_command_duration_seconds",
	Help:    "Duration of Redis commands in seconds.",
	Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
}, []string{"command", "outcome"})

// NewRedisClient creates an instrumented Redis client and verifies the
// connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(cfg.options())
	client.AddHook(redisHook{})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// redisHook records a span and a latency sample per command.
type redisHook struct{}

var _ redis.Hook = redisHook{}

func (redisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (redisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := strings.ToLower(cmd.Name())
		ctx, span := tracing.Tracer("redis").Start(ctx, "redis."+name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.String("db.system", "redis")),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmd)
		observeRedis(span, name, start, err)
		return err
	}
}

func (redisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := tracing.Tracer("redis").Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", "redis"),
				attribute.Int("db.redis.num_cmd", len(cmds)),
			),
		)
		defer span.End()

		start := time.Now()
		err := next(ctx, cmds)
		observeRedis(span, "pipeline", start, err)
		return err
	}
}

// observeRedis classifies err the same way TraceQuery does: a missing key
// is a normal outcome, not a failure.
func observeRedis(span trace.Span, command string, start time.Time, err error) {
	outcome := OutcomeOK
	switch {
	case errors.Is(err, redis.Nil):
		outcome = OutcomeNoRows
	case err != nil:
		outcome = OutcomeError
		tracing.Fail(span, err)
	}
	span.SetAttributes(attribute.String("db.outcome", outcome))
	RedisCommandDuration.WithLabelValues(command, outcome).Observe(time.Since(start).Seconds())
}
