package dncp

import (
	"time"
)

// EndpointConfig holds the per-endpoint protocol parameters.
type EndpointConfig struct {
	// TrickleImin and TrickleImax bound the Trickle interval.
	TrickleImin time.Duration
	TrickleImax time.Duration

	// TrickleK is the redundancy constant: an interval in which at least k
	// consistent announcements were heard does not transmit.
	TrickleK int

	// KeepaliveInterval is the longest time between two multicast network
	// state announcements. Zero disables keepalives and neighbor expiry.
	KeepaliveInterval time.Duration

	// MaximumMulticastSize bounds multicast payloads. Node state summaries
	// are left out of announcements that would not fit.
	MaximumMulticastSize int
}

// Config holds the deployment-wide protocol parameters. Every node of one
// network must agree on NodeIdentifierLength and HashLength.
type Config struct {
	NodeIdentifierLength int
	HashLength           int

	// Endpoint is the configuration new endpoints start with. Its
	// KeepaliveInterval is also the default every peer assumes when no
	// KEEPALIVE-INTERVAL TLV was published.
	Endpoint EndpointConfig

	// KeepaliveMultiplier scales a peer's keepalive interval into the time
	// after which a silent neighbor is dropped.
	KeepaliveMultiplier float64

	// PruneGracePeriod is how long an unreachable node is kept before it is
	// deleted.
	PruneGracePeriod time.Duration

	// MinimumPruneInterval rate limits reachability recomputation.
	MinimumPruneInterval time.Duration

	// CollisionBackoff is added to a colliding node's update number when the
	// own node resolves an identifier collision by itself.
	CollisionBackoff uint32

	// CollisionEscalation is the number of collisions resolved locally
	// before further ones are handed to Ext.HandleCollision.
	CollisionEscalation int

	// MaximumPayloadSize bounds unicast payloads.
	MaximumPayloadSize int

	// DisablePrune makes every known node reachable and never deletes any.
	DisablePrune bool
}

// DefaultEndpointConfig returns the HNCP endpoint parameters.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		TrickleImin:          200 * time.Millisecond,
		TrickleImax:          40 * time.Second,
		TrickleK:             1,
		KeepaliveInterval:    20 * time.Second,
		MaximumMulticastSize: 1280 - 40 - 8,
	}
}

// DefaultConfig returns the HNCP profile: 4-byte node identifiers and 8-byte
// hashes.
func DefaultConfig() *Config {
	return &Config{
		NodeIdentifierLength: 4,
		HashLength:           8,
		Endpoint:             DefaultEndpointConfig(),
		KeepaliveMultiplier:  2.1,
		PruneGracePeriod:     60 * time.Second,
		MinimumPruneInterval: 20 * time.Millisecond,
		CollisionBackoff:     999,
		CollisionEscalation:  1,
		MaximumPayloadSize:   65536,
	}
}
