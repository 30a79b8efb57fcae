package natsbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/slotindex/internal/natsutil"
	"github.com/arloliu/slotindex/types"
)

// DefaultFlushTimeout bounds Flush when the caller's context carries no deadline.
const DefaultFlushTimeout = 5 * time.Second

// Publisher sends arrivals and watermarks on channel subjects.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// NewPublisher creates a publisher for subjects under prefix.
func NewPublisher(conn *nats.Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, prefix: prefix}
}

// PublishArrival sends a payload for timeslice ts on channel's subject.
//
// Parameters:
//   - ctx: Checked before publishing
//   - channel: Channel name
//   - ts: Timeslice of the arrival
//   - payload: Opaque payload (may be nil)
//
// Returns:
//   - error: Context error, or an error wrapping types.ErrPublishFailed
func (p *Publisher) PublishArrival(ctx context.Context, channel string, ts types.TimesliceID, payload []byte) error {
	return p.publish(ctx, channel, KindData, ts, payload)
}

// PublishWatermark announces that channel will not deliver anything older than ts.
func (p *Publisher) PublishWatermark(ctx context.Context, channel string, ts types.TimesliceID) error {
	return p.publish(ctx, channel, KindWatermark, ts, nil)
}

// Flush waits until the server processed everything published so far.
//
// A ctx without a deadline is bounded by DefaultFlushTimeout.
func (p *Publisher) Flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultFlushTimeout)
		defer cancel()
	}

	return p.conn.FlushWithContext(ctx)
}

func (p *Publisher) publish(ctx context.Context, channel, kind string, ts types.TimesliceID, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := natsutil.ChannelSubject(p.prefix, channel)
	if err := p.conn.PublishMsg(newMessage(subject, kind, ts, payload)); err != nil {
		return fmt.Errorf("%w: %s %d on %s: %w", types.ErrPublishFailed, kind, ts, subject, err)
	}

	return nil
}
