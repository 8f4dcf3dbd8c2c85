package dncp

import (
	"bytes"
	"net"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

func errDisabled(name string) error {
	return common.NewDncpErr("Endpoint", common.Disabled, name)
}

// Poll reads and handles every pending datagram.
func (c *Core) Poll() {
	for {
		d := c.ext.Recv()
		if d == nil {
			return
		}
		c.receive(d)
	}
}

func (c *Core) receive(d *Datagram) {
	ep := c.FindEndpointByName(d.Endpoint)
	if ep != nil && ep.enabled {
		c.handleMessage(ep, d)
	}
	c.notifyMessageReceived(ep, d)
}

// handleMessage runs one received datagram through the protocol.
func (c *Core) handleMessage(ep *Endpoint, d *Datagram) {
	niLen := c.conf.NodeIdentifierLength
	hLen := c.conf.HashLength

	if d.Src == nil || d.Dst == nil || !d.Src.IP.IsLinkLocalUnicast() {
		return
	}
	multicast := d.Multicast()
	if !multicast && !d.Dst.IP.IsLinkLocalUnicast() {
		return
	}

	logger := c.logger.WithFields(logrus.Fields{
		"endpoint":  ep.String(),
		"src":       d.Src,
		"multicast": multicast,
	})

	attrs, err := tlv.Parse(d.Payload)
	if err != nil {
		logger.WithField("error", err).Debug("truncated message")
	}

	// exactly one endpoint identifier per message
	var eid *proto.EndpointID
	for _, a := range attrs {
		if a.Type != proto.TypeEndpointID {
			continue
		}
		if eid != nil {
			logger.Info("got multiple endpoint ids - ignoring")
			return
		}
		e, err := proto.DecodeEndpointID(a, niLen)
		if err != nil {
			logger.Info("got invalid sized endpoint id - ignoring")
			return
		}
		eid = &e
	}

	// replies go back to the sender, from the address it used
	var local *net.UDPAddr
	if !multicast {
		local = d.Dst
	}
	remote := d.Src

	isLocal := eid != nil && bytes.Equal(eid.NodeID, c.own.id)

	var ne *Neighbor
	shouldRequestNetworkState := false
	updatedOrRequestedState := false

	if !isLocal && eid != nil {
		if t := c.heard(ep, *eid, d.Src, multicast); t != nil {
			ne, _ = t.Extra.(*Neighbor)
		} else {
			shouldRequestNetworkState = true
		}
	}

	now := c.now()

	for _, a := range attrs {
		switch a.Type {
		case proto.TypeReqNetState:
			if multicast {
				logger.Info("ignoring req-net-state in multicast")
				break
			}
			c.sendNetworkState(ep, local, remote, 0)

		case proto.TypeReqNodeState:
			if multicast {
				logger.Info("ignoring req-node-state in multicast")
				break
			}
			id, err := proto.DecodeReqNodeState(a, niLen)
			if err != nil {
				break
			}
			n := c.findNode(id, false)
			if n == nil {
				break
			}
			if n != c.own {
				if c.graphDirty {
					logger.Debug("prune pending, ignoring node state request")
					break
				}
				if !c.reachable(n) {
					logger.Debug("not reachable request, ignoring")
					break
				}
			}
			c.sendNodeState(ep, local, remote, n)

		case proto.TypeNetState:
			hash, err := proto.DecodeNetState(a, hLen)
			if err != nil {
				logger.WithField("len", len(a.Value)).Debug("got invalid network hash length")
				break
			}
			c.calculateNetworkHash()
			consistent := bytes.Equal(hash, c.networkHash)
			logger.WithFields(logrus.Fields{
				"consistent": consistent,
				"local":      isLocal,
				"known":      ne != nil,
			}).Debug("received network state")

			if consistent {
				if ne != nil {
					ep.trickleC++
					ne.LastContact = now
				} else {
					// the unicast exchange will set up the neighbor
					shouldRequestNetworkState = true
				}
				break
			}
			if ep.trickleI != 0 && ep.trickleI != ep.conf.TrickleImin {
				c.trickleSetI(ep, ep.conf.TrickleImin)
			}
			if !ep.lastReqNetworkState.IsZero() && now.Sub(ep.lastReqNetworkState) < ep.conf.TrickleImin {
				break
			}
			ep.lastReqNetworkState = now
			shouldRequestNetworkState = true

		case proto.TypeNodeState:
			s, err := proto.DecodeNodeState(a, niLen, hLen)
			if err != nil {
				logger.Info("invalid length node state TLV received - ignoring")
				break
			}
			n := c.findNode(s.NodeID, false)
			interesting := n == nil ||
				Newer(s.UpdateNumber, n.updateNumber) ||
				(s.UpdateNumber == n.updateNumber && !bytes.Equal(c.nodeHash(n), s.Hash))
			logger.WithFields(logrus.Fields{
				"node":          common.ShortRepr(s.NodeID),
				"update_number": s.UpdateNumber,
				"data":          s.HasData(),
				"interesting":   interesting,
			}).Debug("saw node state")
			if !interesting {
				break
			}

			if !s.HasData() {
				c.sendReqNodeState(ep, local, remote, s.NodeID)
				updatedOrRequestedState = true
				break
			}

			if n == nil {
				n = c.findNode(s.NodeID, true)
			}
			if n == c.own {
				c.handleCollision(s)
				return
			}
			data := append([]byte(nil), s.Data...)
			origination := now.Add(-time.Duration(s.MsSinceOrigination) * time.Millisecond)
			c.setNodeState(n, s.UpdateNumber, origination, data)
			updatedOrRequestedState = true

		default:
			// unknown TLVs are ignored
		}
	}

	if !multicast && len(attrs) > 0 && ne != nil {
		ne.LastContact = now
	}

	if shouldRequestNetworkState && !updatedOrRequestedState && !isLocal {
		c.sendReqNetworkState(ep, local, remote)
	}
}

// handleCollision is called when another node announces newer data under our
// own identifier.
func (c *Core) handleCollision(s proto.NodeState) {
	logger := c.logger.WithFields(logrus.Fields{
		"claimed": s.UpdateNumber,
		"own":     c.own.updateNumber,
	})

	if c.collisions >= c.conf.CollisionEscalation {
		logger.Warn("repeated node identifier collision")
		if c.ext.HandleCollision() {
			return
		}
	} else {
		logger.Warn("node identifier collision")
		c.collisions++
		c.own.updateNumber = s.UpdateNumber + c.conf.CollisionBackoff
	}
	c.republishTLVs = true
	c.schedule()
}
