// Package net implements the datagram transports DNCP nodes use to reach their
// neighbors.
//
// A Transport sends and receives datagrams on a set of links, identified by
// interface name. Datagrams are either multicast to the link-local group or
// unicast to a neighbor's link-local address. There are two implementations:
//
// - UDP: one IPv6 UDP socket (default port 8231) joined to the multicast
// group (default ff02::11) on every configured interface. Per-packet control
// messages give the arrival interface and the destination address, which is
// how the protocol tells multicast from unicast.
//
// - Inmem: simulated links inside one process, used for testing. Transports
// created from the same InmemNetwork that joined the same link name see each
// other. The network can be made lossy with SetLoss.
package net
