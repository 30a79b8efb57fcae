// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/slotindex/internal/backoff"
	"github.com/arloliu/slotindex/internal/natsutil"
	"github.com/arloliu/slotindex/types"
)

// DefaultAttempts is used when EnsureBucket is given a non-positive attempt count.
const DefaultAttempts = 3

// retryPolicy spaces attempts 10ms apart, growing up to 200ms.
var retryPolicy = backoff.Policy{
	Base:       10 * time.Millisecond,
	Max:        200 * time.Millisecond,
	Multiplier: 2,
}

// EnsureBucket creates or opens a KV bucket, retrying transient failures.
//
// Relays sharing a bucket may race to create it; losing the race with
// jetstream.ErrBucketExists opens the existing bucket instead.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - attempts: Maximum number of attempts (DefaultAttempts when <= 0)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error once every attempt failed (wrapping types.ErrConnectivity when
//     the server was unreachable), or the context error
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "slotindex-fences",
//	    TTL:    time.Minute,
//	}, 3)
func EnsureBucket(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	attempts int,
) (jetstream.KeyValue, error) {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	delays := backoff.NewSequence(retryPolicy, 0)

	var lastErr error
	for attempt := range attempts {
		kv, err := open(ctx, js, config)
		if err == nil {
			return kv, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delays.Next()):
		}
	}

	if natsutil.IsConnectivityError(lastErr) {
		lastErr = fmt.Errorf("%w: %w", types.ErrConnectivity, lastErr)
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, attempts, lastErr)
}

func open(ctx context.Context, js jetstream.JetStream, config jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := js.CreateKeyValue(ctx, config)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketExists) {
		return nil, err
	}

	kv, err = js.KeyValue(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists but failed to open: %w", err)
	}

	return kv, nil
}
