package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/slotindex"
	"github.com/arloliu/slotindex/internal/kvutil"
	"github.com/arloliu/slotindex/internal/natsutil"
	"github.com/arloliu/slotindex/types"
)

// ErrNoFence is returned by Latest when no fence was written yet.
var ErrNoFence = errors.New("no fence published")

// FencePublisher mirrors output fence advances into a JetStream KV key.
//
// Downstream consumers watch the key to learn which timeslices can no longer produce
// output. Only the latest fence is kept.
type FencePublisher struct {
	kv   jetstream.KeyValue
	key  string
	opts options
}

// NewFencePublisher opens (or creates) the fence bucket described by cfg.
//
// Parameters:
//   - ctx: Context for bucket creation
//   - js: JetStream context
//   - cfg: Bucket, key and TTL
//   - opts: Optional logger
//
// Returns:
//   - *FencePublisher: Ready-to-run publisher
//   - error: Bucket creation error
func NewFencePublisher(
	ctx context.Context,
	js jetstream.JetStream,
	cfg slotindex.FenceConfig,
	opts ...Option,
) (*FencePublisher, error) {
	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "oldest possible output fence",
		History:     1,
		TTL:         cfg.TTL,
	}, kvutil.DefaultAttempts)
	if err != nil {
		return nil, fmt.Errorf("fence bucket: %w", err)
	}

	return &FencePublisher{kv: kv, key: cfg.Key, opts: applyOptions(opts)}, nil
}

// Run writes every fence received from fences until the channel closes or ctx ends.
//
// Write failures are logged and skipped; the next fence overwrites the key anyway.
//
// Example:
//
//	fences, unsubscribe := relay.SubscribeFences()
//	defer unsubscribe()
//	go publisher.Run(ctx, fences)
func (p *FencePublisher) Run(ctx context.Context, fences <-chan types.OldestOutputInfo) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case info, ok := <-fences:
			if !ok {
				return nil
			}
			if err := p.Put(ctx, info); err != nil {
				if natsutil.IsConnectivityError(err) {
					p.opts.logger.Warn("fence not mirrored, NATS unreachable", "timeslice", info.Timeslice, "error", err)
				} else {
					p.opts.logger.Error("fence not mirrored", "timeslice", info.Timeslice, "error", err)
				}
			}
		}
	}
}

// Put writes one fence.
func (p *FencePublisher) Put(ctx context.Context, info types.OldestOutputInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode fence: %w", err)
	}
	if _, err := p.kv.Put(ctx, p.key, data); err != nil {
		return fmt.Errorf("put fence %s: %w", p.key, err)
	}

	p.opts.logger.Debug("fence mirrored", "key", p.key, "timeslice", info.Timeslice)

	return nil
}

// Latest reads the fence currently stored in the bucket.
//
// Returns:
//   - types.OldestOutputInfo: Stored fence
//   - error: ErrNoFence when the key is absent, or a read/decode error
func (p *FencePublisher) Latest(ctx context.Context) (types.OldestOutputInfo, error) {
	entry, err := p.kv.Get(ctx, p.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return types.OldestOutputInfo{}, ErrNoFence
	}
	if err != nil {
		return types.OldestOutputInfo{}, fmt.Errorf("get fence %s: %w", p.key, err)
	}

	var info types.OldestOutputInfo
	if err := json.Unmarshal(entry.Value(), &info); err != nil {
		return types.OldestOutputInfo{}, fmt.Errorf("decode fence: %w", err)
	}

	return info, nil
}
