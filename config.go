package slotindex

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/slotindex/types"
)

// WaitConfig controls how the Relay re-drives admissions parked by the wait policy.
type WaitConfig struct {
	// Enabled parks a Submit call that gets ActionWait instead of returning immediately.
	// When false, the Wait admission is handed back to the caller, which owns the retry.
	Enabled bool `yaml:"enabled"`

	// BaseDelay is the first retry delay when no slot frees up in the meantime.
	BaseDelay time.Duration `yaml:"baseDelay"`

	// MaxDelay caps the retry delay.
	MaxDelay time.Duration `yaml:"maxDelay"`

	// Multiplier bounds the growth of consecutive delays.
	Multiplier float64 `yaml:"multiplier"`

	// MaxAttempts is the number of re-drives before giving up (0 = until the context ends).
	MaxAttempts int `yaml:"maxAttempts"`

	// Seed makes the jitter deterministic when non-zero. Intended for tests and simulations.
	Seed int64 `yaml:"seed"`
}

// ChannelConfig declares one input channel of the roster.
type ChannelConfig struct {
	// Name identifies the channel; it is also the transport subject suffix.
	Name string `yaml:"name"`

	// Kind is "data" (default) or "auxiliary".
	Kind types.ChannelKind `yaml:"kind"`
}

// FenceConfig configures the JetStream KV bucket the output fence is mirrored into.
type FenceConfig struct {
	// Bucket is the KV bucket name.
	Bucket string `yaml:"bucket"`

	// Key is the key holding the latest fence.
	Key string `yaml:"key"`

	// TTL expires the fence when the relay stops updating it (0 = no expiration).
	TTL time.Duration `yaml:"ttl"`
}

// TransportConfig configures the NATS adapter.
type TransportConfig struct {
	// SubjectPrefix is prepended to every channel subject: "<prefix>.<channel>".
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// Config is the configuration for the Relay.
//
// All duration fields accept standard Go duration strings like "5ms", "1s".
type Config struct {
	// MaxLanes is the degree of processing parallelism. A timeslice t may only occupy
	// slots s with s mod MaxLanes == t mod MaxLanes.
	MaxLanes int `yaml:"maxLanes"`

	// SlotsPerLane is the number of slots in each lane; the arena holds
	// MaxLanes*SlotsPerLane slots.
	SlotsPerLane int `yaml:"slotsPerLane"`

	// Backpressure resolves contention for an occupied slot.
	// Accepts "drop-ancient", "drop-recent" or "wait".
	Backpressure types.BackpressurePolicy `yaml:"backpressure"`

	// Wait controls parking for the wait policy.
	Wait WaitConfig `yaml:"wait"`

	// FenceBufferSize is the per-subscriber capacity of the fence fan-out.
	FenceBufferSize int `yaml:"fenceBufferSize"`

	// Channels optionally declares the channel roster (see source.FromConfig).
	Channels []ChannelConfig `yaml:"channels"`

	// Fences configures the KV fence publisher.
	Fences FenceConfig `yaml:"fences"`

	// Transport configures the NATS adapter.
	Transport TransportConfig `yaml:"transport"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		MaxLanes:     1,
		SlotsPerLane: 1,
		Backpressure: types.BackpressureDropAncient,
		Wait: WaitConfig{
			Enabled:     true,
			BaseDelay:   5 * time.Millisecond,
			MaxDelay:    500 * time.Millisecond,
			Multiplier:  2.0,
			MaxAttempts: 0, // until the caller's context ends
		},
		FenceBufferSize: 8,
		Fences: FenceConfig{
			Bucket: "slotindex-fences",
			Key:    "oldest-possible-output",
		},
		Transport: TransportConfig{
			SubjectPrefix: "slotindex",
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Wait.Enabled is left untouched: a zero value means the caller owns the retry.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MaxLanes == 0 {
		cfg.MaxLanes = defaults.MaxLanes
	}
	if cfg.SlotsPerLane == 0 {
		cfg.SlotsPerLane = defaults.SlotsPerLane
	}
	if cfg.Backpressure == types.BackpressureUnset {
		cfg.Backpressure = defaults.Backpressure
	}
	if cfg.Wait.BaseDelay == 0 {
		cfg.Wait.BaseDelay = defaults.Wait.BaseDelay
	}
	if cfg.Wait.MaxDelay == 0 {
		cfg.Wait.MaxDelay = defaults.Wait.MaxDelay
	}
	if cfg.Wait.Multiplier == 0 {
		cfg.Wait.Multiplier = defaults.Wait.Multiplier
	}
	if cfg.FenceBufferSize == 0 {
		cfg.FenceBufferSize = defaults.FenceBufferSize
	}
	if cfg.Fences.Bucket == "" {
		cfg.Fences.Bucket = defaults.Fences.Bucket
	}
	if cfg.Fences.Key == "" {
		cfg.Fences.Key = defaults.Fences.Key
	}
	if cfg.Transport.SubjectPrefix == "" {
		cfg.Transport.SubjectPrefix = defaults.Transport.SubjectPrefix
	}
}

// Slots returns the total arena size.
func (cfg *Config) Slots() int {
	return cfg.MaxLanes * cfg.SlotsPerLane
}

// IndexConfig returns the index parameters derived from cfg.
func (cfg *Config) IndexConfig() IndexConfig {
	return IndexConfig{
		MaxLanes:     cfg.MaxLanes,
		Slots:        cfg.Slots(),
		Backpressure: cfg.Backpressure,
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - MaxLanes >= 1 and SlotsPerLane >= 1
//   - Backpressure is one of the three policies
//   - Wait delays are non-negative, BaseDelay <= MaxDelay, Multiplier >= 1
//   - Wait.MaxAttempts >= 0, FenceBufferSize >= 1
//   - Channel names are non-empty and unique
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.MaxLanes < 1 {
		return fmt.Errorf("%w: MaxLanes must be >= 1, got %d", ErrInvalidConfig, cfg.MaxLanes)
	}
	if cfg.SlotsPerLane < 1 {
		return fmt.Errorf("%w: SlotsPerLane must be >= 1, got %d", ErrInvalidConfig, cfg.SlotsPerLane)
	}
	if err := cfg.Backpressure.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.Wait.BaseDelay < 0 || cfg.Wait.MaxDelay < 0 {
		return fmt.Errorf("%w: wait delays must be non-negative", ErrInvalidConfig)
	}
	if cfg.Wait.MaxDelay > 0 && cfg.Wait.BaseDelay > cfg.Wait.MaxDelay {
		return fmt.Errorf(
			"%w: Wait.BaseDelay (%v) must be <= Wait.MaxDelay (%v)",
			ErrInvalidConfig, cfg.Wait.BaseDelay, cfg.Wait.MaxDelay,
		)
	}
	if cfg.Wait.Multiplier < 1 {
		return fmt.Errorf("%w: Wait.Multiplier must be >= 1, got %v", ErrInvalidConfig, cfg.Wait.Multiplier)
	}
	if cfg.Wait.MaxAttempts < 0 {
		return fmt.Errorf("%w: Wait.MaxAttempts must be >= 0, got %d", ErrInvalidConfig, cfg.Wait.MaxAttempts)
	}
	if cfg.FenceBufferSize < 1 {
		return fmt.Errorf("%w: FenceBufferSize must be >= 1, got %d", ErrInvalidConfig, cfg.FenceBufferSize)
	}

	seen := make(map[string]struct{}, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		if ch.Name == "" {
			return fmt.Errorf("%w: channel %d has no name", ErrInvalidConfig, i)
		}
		if _, dup := seen[ch.Name]; dup {
			return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrDuplicateChannel, ch.Name)
		}
		seen[ch.Name] = struct{}{}
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewRelay() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Backpressure == types.BackpressureWait && !cfg.Wait.Enabled {
		logger.Warn(
			"wait policy without parking: callers must retry ActionWait themselves",
			"backpressure", cfg.Backpressure,
		)
	}

	if cfg.Backpressure == types.BackpressureWait && cfg.Wait.Enabled && cfg.Wait.MaxAttempts == 0 {
		logger.Warn(
			"wait policy parks until the caller's context ends; a stuck slot stalls its lane",
			"maxAttempts", cfg.Wait.MaxAttempts,
		)
	}

	if cfg.SlotsPerLane == 1 && cfg.Backpressure != types.BackpressureWait {
		logger.Warn(
			"one slot per lane: every conflicting arrival evicts or is dropped",
			"maxLanes", cfg.MaxLanes,
			"backpressure", cfg.Backpressure,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Four lanes with two slots each, DropAncient, and short seeded wait delays
//
// Example:
//
//	cfg := slotindex.TestConfig()
//	cfg.Backpressure = slotindex.BackpressureWait
//	relay, err := slotindex.NewRelay(&cfg, src)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.MaxLanes = 4
	cfg.SlotsPerLane = 2
	cfg.Wait.BaseDelay = time.Millisecond
	cfg.Wait.MaxDelay = 10 * time.Millisecond
	cfg.Wait.Seed = 1

	return cfg
}

// ParseConfig decodes a yaml document and applies defaults.
//
// The result is not validated; call Validate before use.
//
// Parameters:
//   - data: yaml document
//
// Returns:
//   - Config: Decoded configuration with defaults applied
//   - error: Decoding error wrapping ErrInvalidConfig
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	SetDefaults(&cfg)

	return cfg, nil
}

// LoadConfig reads and parses a yaml configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	return ParseConfig(data)
}
