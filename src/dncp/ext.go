package dncp

import (
	"net"
	"time"
)

// Datagram is one received message.
type Datagram struct {
	// Endpoint is the name of the endpoint the datagram arrived on.
	Endpoint string

	// Src is the sender. Dst is the address the datagram was sent to, either
	// a unicast address of ours or the multicast group.
	Src *net.UDPAddr
	Dst *net.UDPAddr

	Payload []byte
}

// Multicast reports whether d was sent to a multicast group.
func (d *Datagram) Multicast() bool {
	return d.Dst != nil && d.Dst.IP.IsMulticast()
}

// Ext is everything the Core consumes from its platform.
type Ext interface {
	// Now returns the current time. Only differences between values are
	// used, so it need not be wall clock time.
	Now() time.Time

	// ScheduleTimeout requests a call to Run after d, replacing any earlier
	// request.
	ScheduleTimeout(d time.Duration)

	// Send transmits payload on ep. A nil dst is the endpoint's multicast
	// group. src, when not nil, is the local address to send from.
	Send(ep *Endpoint, src, dst *net.UDPAddr, payload []byte) error

	// Recv returns the next pending datagram, or nil when none is left.
	Recv() *Datagram

	// Hash digests data. The result is truncated or zero-extended to the
	// configured hash length.
	Hash(data []byte) []byte

	// ValidateNodeData returns the view of a node's TLV blob the Core should
	// expose to subscribers. It may return data itself, a filtered copy, or
	// nil to hide the node's data entirely. The raw blob is kept regardless
	// for hashing and gossip.
	ValidateNodeData(n *Node, data []byte) []byte

	// HardwareAddrs returns the seed the initial node identifier is hashed
	// from.
	HardwareAddrs() []byte

	// HandleCollision is called once locally resolved collisions are
	// exhausted. It returns true if it dealt with the collision, typically by
	// assigning a new own identifier.
	HandleCollision() bool
}
