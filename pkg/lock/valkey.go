package lock

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const keyPrefix = "contactsheet:lock:"

// releaseScript deletes the lock only if we still own it.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only if we still own the lock.
var extendScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Valkey is a Locker shared by every server pointing at the same Valkey
// instance. Locks expire after ttl so a crashed holder cannot wedge appends;
// a live holder renews its lease every ttl/3 until it unlocks.
type Valkey struct {
	client valkey.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewValkey connects to addr and returns a distributed Locker.
func NewValkey(addr string, ttl time.Duration) (*Valkey, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("error connecting to valkey at %s: %w", addr, err)
	}
	return NewValkeyWithClient(client, ttl), nil
}

// NewValkeyWithClient wraps an existing client.
func NewValkeyWithClient(client valkey.Client, ttl time.Duration) *Valkey {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Valkey{client: client, ttl: ttl, retry: 25 * time.Millisecond}
}

func (v *Valkey) Lock(ctx context.Context, key string) (func(), error) {
	k := keyPrefix + key
	token := uuid.NewString()

	for {
		cmd := v.client.B().Set().Key(k).Value(token).Nx().PxMilliseconds(v.ttl.Milliseconds()).Build()
		err := v.client.Do(ctx, cmd).Error()
		if err == nil {
			break
		}
		if !valkey.IsValkeyNil(err) {
			return nil, fmt.Errorf("error acquiring lock %s: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(v.retry):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go v.renew(k, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Exec(ctx, v.client, []string{k}, []string{token}).Error(); err != nil {
				slog.Warn("Failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

func (v *Valkey) renew(k, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := v.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ttl := strconv.FormatInt(v.ttl.Milliseconds(), 10)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := extendScript.Exec(ctx, v.client, []string{k}, []string{token, ttl}).AsInt64()
		cancel()
		if err != nil || n == 0 {
			// The row write itself refuses to replace an existing row, so a
			// lost lease surfaces as a failed append rather than an overwrite.
			slog.Warn("Lock lease lost", "key", k, "error", err)
			return
		}
	}
}

// Close releases the underlying connection.
func (v *Valkey) Close() {
	v.client.Close()
}
