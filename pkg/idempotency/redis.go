package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/kylasweb/AI-IVR-v2-sub003/pkg/debug"
)

const (
	// DefaultReservationTTL bounds how long a key stays reserved by a
	// replica that never reports back.
	DefaultReservationTTL = time.Minute

	defaultPollInterval = 50 * time.Millisecond
	pendingPrefix       = "\x00pending:"
)

// releaseScript deletes a reservation only if it still holds the caller's
// token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a deduper shared by every replica through Redis.
//
// The first caller reserves the key with SET NX and a pending token, runs
// fn, and replaces the token with the reference. Other callers, on any
// replica, poll until the reference appears. If fn fails the reservation is
// released and a waiting caller takes it over. Concurrent calls inside one
// process are collapsed locally before reaching Redis.
type Redis struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	reserveTTL time.Duration
	poll       time.Duration
	group      singleflight.Group
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr           string
	Password       string
	DB             int
	Prefix         string
	TTL            time.Duration
	ReservationTTL time.Duration
}

// NewRedis connects to Redis. The connection is verified with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	r := NewRedisWithClient(client, opts.Prefix, opts.TTL)
	if opts.ReservationTTL > 0 {
		r.reserveTTL = opts.ReservationTTL
	}
	return r, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "steer:idem:"
	}
	return &Redis{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		reserveTTL: DefaultReservationTTL,
		poll:       defaultPollInterval,
	}
}

type outcome struct {
	ref          string
	deduplicated bool
}

// Do runs fn unless key already completed or is in progress on any replica.
// A caller that finds the key in progress waits for its reference until ctx
// ends.
func (r *Redis) Do(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (string, bool, error) {
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.do(ctx, key, fn)
	})
	if err != nil {
		return "", false, err
	}
	out := v.(outcome)
	return out.ref, out.deduplicated || shared, nil
}

func (r *Redis) do(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (outcome, error) {
	k := r.prefix + key
	token := pendingPrefix + uuid.NewString()

	for {
		reserved, err := r.client.SetNX(ctx, k, token, r.reserveTTL).Result()
		if err != nil {
			return outcome{}, fmt.Errorf("idempotency reserve: %w", err)
		}
		if reserved {
			return r.run(ctx, key, token, fn)
		}

		ref, err := r.client.Get(ctx, k).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// Released or expired between SETNX and GET.
			continue
		case err != nil:
			return outcome{}, fmt.Errorf("idempotency lookup: %w", err)
		case !strings.HasPrefix(ref, pendingPrefix):
			debug.Log("actions", "idempotency hit", "key", key)
			return outcome{ref: ref, deduplicated: true}, nil
		}

		select {
		case <-ctx.Done():
			return outcome{}, fmt.Errorf("waiting for idempotency key %s: %w", key, ctx.Err())
		case <-time.After(r.poll):
		}
	}
}

func (r *Redis) run(ctx context.Context, key, token string, fn func(ctx context.Context) (string, error)) (outcome, error) {
	k := r.prefix + key
	// Bookkeeping must finish even when the action's context is done.
	bg := context.WithoutCancel(ctx)

	ref, err := fn(ctx)
	if err != nil {
		if rerr := releaseScript.Run(bg, r.client, []string{k}, token).Err(); rerr != nil {
			slog.Warn("idempotency reservation not released", "key", key, "error", rerr)
		}
		return outcome{}, err
	}
	if err := r.client.Set(bg, k, ref, r.ttl).Err(); err != nil {
		// The action already ran, so the error is not returned.
		slog.Warn("idempotency record not stored", "key", key, "error", err)
	}
	return outcome{ref: ref}, nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
