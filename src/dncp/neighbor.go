package dncp

import (
	"net"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

// Neighbor is the bookkeeping attached to a published NEIGHBOR TLV.
type Neighbor struct {
	// LastContact is when the peer last sent us a consistent network state
	// over multicast, or anything over unicast.
	LastContact time.Time

	// LastAddr is the peer's unicast address, learnt from unicast traffic.
	LastAddr *net.UDPAddr
}

// heard returns the neighbor entry for the peer announcing eid on ep,
// creating it unless the message was multicast.
func (c *Core) heard(ep *Endpoint, eid proto.EndpointID, src *net.UDPAddr, multicast bool) *LocalTLV {
	a := proto.Neighbor{
		NodeID:             eid.NodeID,
		NeighborEndpointID: eid.EndpointID,
		EndpointID:         ep.id,
	}.Attr()

	t := c.FindTLV(a)
	if t == nil {
		// creating relations from multicast would let anyone spoof them
		if multicast {
			return nil
		}
		var err error
		t, err = c.AddTLV(a, &Neighbor{LastContact: c.now()})
		if err != nil {
			return nil
		}
		c.logger.WithFields(logrus.Fields{
			"neighbor": common.ShortRepr(eid.NodeID),
			"endpoint": ep.String(),
		}).Debug("neighbor added")
	}

	ne, ok := t.Extra.(*Neighbor)
	if !ok {
		ne = &Neighbor{LastContact: c.now()}
		t.Extra = ne
	}
	if !multicast {
		addr := *src
		ne.LastAddr = &addr
	}
	return t
}

// neighborInterval is how long a neighbor may stay silent before it is
// dropped: the keepalive interval the peer advertises for its endpoint, or
// the default, times the keepalive multiplier. Zero means never.
func (c *Core) neighborInterval(ne proto.Neighbor) time.Duration {
	interval := c.conf.Endpoint.KeepaliveInterval
	if n := c.findNode(ne.NodeID, false); n != nil {
		c.ForEachTLVWithType(n, proto.TypeKeepaliveInterval, func(a tlv.Attr) bool {
			ka, err := proto.DecodeKeepaliveInterval(a)
			if err != nil {
				return true
			}
			if ka.EndpointID == 0 || ka.EndpointID == ne.NeighborEndpointID {
				interval = time.Duration(ka.IntervalMs) * time.Millisecond
				return false
			}
			return true
		})
	}
	return time.Duration(float64(interval) * c.conf.KeepaliveMultiplier)
}

// expireNeighbors drops the neighbors on ep that went silent, and returns
// when the next one is due.
func (c *Core) expireNeighbors(ep *Endpoint) time.Time {
	now := c.now()
	var next time.Time
	c.ForEachLocalTLVWithType(proto.TypeNeighbor, func(t *LocalTLV) bool {
		pn, err := proto.DecodeNeighbor(t.attr, c.conf.NodeIdentifierLength)
		if err != nil || pn.EndpointID != ep.id {
			return true
		}
		interval := c.neighborInterval(pn)
		if interval <= 0 {
			return true
		}
		ne, ok := t.Extra.(*Neighbor)
		if !ok {
			return true
		}
		deadline := ne.LastContact.Add(interval)
		if !now.Before(deadline) {
			c.logger.WithFields(logrus.Fields{
				"neighbor": common.ShortRepr(pn.NodeID),
				"endpoint": ep.String(),
				"silent":   now.Sub(ne.LastContact),
			}).Info("neighbor dropped")
			c.RemoveTLV(t)
			c.numNeighborsDropped++
			return true
		}
		next = earliest(next, deadline.Add(time.Millisecond))
		return true
	})
	return next
}

// NeighborInfo describes one neighbor relation of the own node.
type NeighborInfo struct {
	NodeID             []byte
	NeighborEndpointID uint32
	EndpointID         uint32
	LastContact        time.Time
	LastAddr           *net.UDPAddr
}

// ForEachNeighbor calls fn for every neighbor relation until fn returns false.
func (c *Core) ForEachNeighbor(fn func(ni NeighborInfo) bool) {
	c.ForEachLocalTLVWithType(proto.TypeNeighbor, func(t *LocalTLV) bool {
		pn, err := proto.DecodeNeighbor(t.attr, c.conf.NodeIdentifierLength)
		if err != nil {
			return true
		}
		ne, ok := t.Extra.(*Neighbor)
		if !ok {
			return true
		}
		return fn(NeighborInfo{
			NodeID:             pn.NodeID,
			NeighborEndpointID: pn.NeighborEndpointID,
			EndpointID:         pn.EndpointID,
			LastContact:        ne.LastContact,
			LastAddr:           ne.LastAddr,
		})
	})
}
