package types

import "context"

// ChannelSource provides the channel roster a relay is configured with.
//
// Implementations can query various backends:
//   - Static: fixed list, usually from configuration
//   - Custom: any discovery logic run once at startup
//
// The Relay calls ListChannels once during Start; the roster is fixed afterwards.
type ChannelSource interface {
	// ListChannels returns all input channels in roster order.
	//
	// The position of a channel in the returned slice becomes its ChannelIndex.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - []ChannelInfo: Channel roster
	//   - error: Discovery error (nil on success)
	ListChannels(ctx context.Context) ([]ChannelInfo, error)
}
