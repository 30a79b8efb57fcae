// Package source provides built-in channel source implementations.
//
// Channel sources supply the input channel roster a Relay is started with.
// The package includes:
//
//   - Static: Fixed list of channels, optionally built from configuration
//
// Custom sources can be implemented by satisfying the types.ChannelSource interface.
package source
