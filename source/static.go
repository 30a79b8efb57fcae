package source

import (
	"context"
	"sync"

	"github.com/arloliu/slotindex"
	"github.com/arloliu/slotindex/types"
)

// Static implements a channel source with a fixed roster.
type Static struct {
	mu       sync.RWMutex
	channels []types.ChannelInfo
}

var _ types.ChannelSource = (*Static)(nil)

// NewStatic creates a new static channel source.
//
// Watermarks carried in the given records are ignored; the index starts every
// channel at zero.
//
// Parameters:
//   - channels: Roster in channel index order
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic([]types.ChannelInfo{
//	    {Name: "tpc", Kind: types.ChannelKindData},
//	    {Name: "dcs", Kind: types.ChannelKindAuxiliary},
//	})
//	relay, err := slotindex.NewRelay(&cfg, src)
func NewStatic(channels []types.ChannelInfo) *Static {
	s := &Static{}
	s.Update(channels)

	return s
}

// FromConfig creates a static source from the roster declared in cfg.Channels.
//
// A channel declared without a kind is a data channel.
func FromConfig(cfg *slotindex.Config) *Static {
	channels := make([]types.ChannelInfo, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels = append(channels, types.ChannelInfo{Name: ch.Name, Kind: ch.Kind})
	}

	return &Static{channels: channels}
}

// ListChannels returns the static roster.
//
// Returns:
//   - []types.ChannelInfo: Copy of the roster
//   - error: Always nil (never fails)
func (s *Static) ListChannels(_ context.Context) ([]types.ChannelInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.ChannelInfo, len(s.channels))
	copy(result, s.channels)

	return result, nil
}

// Update replaces the roster.
//
// A running Relay keeps the roster it listed at Start; the new roster is seen by
// relays started afterwards.
func (s *Static) Update(channels []types.ChannelInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels = make([]types.ChannelInfo, len(channels))
	copy(s.channels, channels)
}
