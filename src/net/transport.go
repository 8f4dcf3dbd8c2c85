package net

import (
	"net"

	"github.com/mosaicnetworks/dncp/src/dncp"
)

const (
	// DefaultPort is the HNCP UDP port.
	DefaultPort = 8231
	// DefaultGroup is the HNCP link-local multicast group.
	DefaultGroup = "ff02::11"
)

// Transport provides an interface for datagram transports to allow a node to
// talk to its neighbors on a set of links.
type Transport interface {

	// Listen starts delivering received datagrams on the Consumer channel.
	Listen()

	// Consumer returns a channel that can be used to consume received
	// datagrams. Datagrams carry the name of the link they arrived on.
	Consumer() <-chan *dncp.Datagram

	// JoinInterface starts receiving the multicast group on the named link.
	JoinInterface(name string) error

	// LeaveInterface stops listening on the named link.
	LeaveInterface(name string) error

	// Send transmits payload on the named link. A nil dst is the multicast
	// group; a non-nil src pins the source address.
	Send(name string, src, dst *net.UDPAddr, payload []byte) error

	// HardwareAddrs returns stable bytes identifying this host, used to
	// derive a node identifier.
	HardwareAddrs() []byte

	// LocalAddr is used to return our local address
	LocalAddr() string

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}

func withZone(a *net.UDPAddr, zone string) *net.UDPAddr {
	res := *a
	if res.Zone == "" {
		res.Zone = zone
	}
	return &res
}
