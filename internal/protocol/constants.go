package protocol

import "time"

const (
	// ChunkSize is the maximum number of file bytes carried by one binary
	// data-channel message.
	ChunkSize = 16384

	// DefaultDiscoveryInterval is how often the relay pushes the connected
	// peer set to each endpoint.
	DefaultDiscoveryInterval = 3 * time.Second

	// DefaultConnectTimeout bounds how long a negotiation may take to reach
	// a connected data channel before it is abandoned.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultReconnectDelay is the fixed delay between relay reconnection
	// attempts.
	DefaultReconnectDelay = 3 * time.Second

	// DefaultMaxReconnectAttempts bounds relay reconnection before the
	// client gives up and reports a persistent disconnected state.
	DefaultMaxReconnectAttempts = 5
)
