package idempotency

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns its address. Tests are
// skipped if no container runtime is available.
func setupRedis(t *testing.T) string {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping Redis integration tests")
	}
	_, podmanErr := exec.LookPath("podman")
	_, dockerErr := exec.LookPath("docker")
	if podmanErr != nil && dockerErr != nil {
		t.Skip("no container runtime found, skipping integration tests")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skipping: could not start Redis container (is a container runtime running?): %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return addr
}

// replica returns a deduper with its own client, as a separate process would
// have.
func replica(t *testing.T, addr string) *Redis {
	t.Helper()
	r, err := NewRedis(context.Background(), RedisOptions{Addr: addr, TTL: time.Minute})
	require.NoError(t, err)
	r.poll = 5 * time.Millisecond
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedis(t *testing.T) {
	addr := setupRedis(t)
	ctx := context.Background()

	t.Run("completed key is replayed", func(t *testing.T) {
		r := replica(t, addr)
		key := "test-" + uuid.NewString()
		calls := 0
		fn := func(context.Context) (string, error) {
			calls++
			return "ref-redis", nil
		}

		ref, dedup, err := r.Do(ctx, key, fn)
		require.NoError(t, err)
		assert.Equal(t, "ref-redis", ref)
		assert.False(t, dedup)

		ref, dedup, err = r.Do(ctx, key, fn)
		require.NoError(t, err)
		assert.Equal(t, "ref-redis", ref)
		assert.True(t, dedup)
		assert.Equal(t, 1, calls)

		ttl, err := r.client.TTL(ctx, r.prefix+key).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("concurrent replicas run once", func(t *testing.T) {
		a, b := replica(t, addr), replica(t, addr)
		key := "test-" + uuid.NewString()

		var calls atomic.Int32
		release := make(chan struct{})
		fn := func(context.Context) (string, error) {
			calls.Add(1)
			<-release
			return "ref-once", nil
		}

		type result struct {
			ref   string
			dedup bool
			err   error
		}
		results := make([]result, 2)
		var wg sync.WaitGroup
		for i, r := range []*Redis{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ref, dedup, err := r.Do(ctx, key, fn)
				results[i] = result{ref, dedup, err}
			}()
		}

		// Both replicas are inside Do before the winner finishes.
		require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		dedups := 0
		for _, res := range results {
			require.NoError(t, res.err)
			assert.Equal(t, "ref-once", res.ref)
			if res.dedup {
				dedups++
			}
		}
		assert.Equal(t, 1, dedups)
	})

	t.Run("failure releases the reservation", func(t *testing.T) {
		r := replica(t, addr)
		key := "test-" + uuid.NewString()
		errSink := errors.New("sink down")

		_, _, err := r.Do(ctx, key, func(context.Context) (string, error) { return "", errSink })
		require.ErrorIs(t, err, errSink)

		_, err = r.client.Get(ctx, r.prefix+key).Result()
		assert.ErrorIs(t, err, redis.Nil)

		ref, dedup, err := r.Do(ctx, key, func(context.Context) (string, error) { return "ref-retry", nil })
		require.NoError(t, err)
		assert.Equal(t, "ref-retry", ref)
		assert.False(t, dedup)
	})

	t.Run("waiter gives up with its context", func(t *testing.T) {
		r := replica(t, addr)
		key := "test-" + uuid.NewString()
		require.NoError(t, r.client.Set(ctx, r.prefix+key, pendingPrefix+"other-replica", time.Minute).Err())

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		called := false
		_, _, err := r.Do(waitCtx, key, func(context.Context) (string, error) {
			called = true
			return "ref", nil
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, called)
	})
}
