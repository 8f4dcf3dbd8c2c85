package dncp

import (
	"net"
	"time"

	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

func (c *Core) endpointIDTLV(ep *Endpoint) tlv.Attr {
	return proto.EndpointID{NodeID: c.own.id, EndpointID: ep.id}.Attr()
}

func (c *Core) nodeStateTLV(n *Node, withData bool) tlv.Attr {
	s := proto.NodeState{
		NodeID:       n.id,
		UpdateNumber: n.updateNumber,
		Hash:         c.nodeHash(n),
	}
	if !n.originationTime.IsZero() {
		s.MsSinceOrigination = uint32(c.now().Sub(n.originationTime) / time.Millisecond)
	}
	if withData {
		s.Data = n.data
	}
	return s.Attr()
}

// send hands a finished buffer to the platform. Oversized buffers are
// discarded; the state will be offered again on a later tick.
func (c *Core) send(ep *Endpoint, src, dst *net.UDPAddr, b *tlv.Buf, what string) error {
	payload, err := b.Bytes()
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"endpoint": ep.String(),
			"error":    err,
		}).Errorf("%s not sent", what)
		return err
	}
	c.logger.WithFields(logrus.Fields{
		"endpoint": ep.String(),
		"dst":      dst,
		"len":      len(payload),
	}).Debugf("send %s", what)
	if err := c.ext.Send(ep, src, dst, payload); err != nil {
		c.logger.WithField("error", err).Debugf("send %s failed", what)
		return err
	}
	return nil
}

func (c *Core) limit(maxSize int) int {
	if maxSize > 0 {
		return maxSize
	}
	return c.conf.MaximumPayloadSize
}

// sendNetworkState sends the network hash, followed by a summary of every
// reachable node when it fits in the size budget: maxSize for multicast,
// MaximumPayloadSize for unicast (maxSize 0). Multicast only carries the
// summaries while the graph is stable. A nil dst is the multicast group.
func (c *Core) sendNetworkState(ep *Endpoint, src, dst *net.UDPAddr, maxSize int) error {
	limit := c.limit(maxSize)
	b := tlv.NewBuf(limit)
	c.calculateNetworkHash()
	b.Put(c.endpointIDTLV(ep))
	b.Put(proto.NetState(c.networkHash))

	if !c.graphDirty || maxSize == 0 {
		nn := 0
		c.ForEachNode(func(*Node) bool {
			nn++
			return true
		})
		nsLen := tlv.PadLen(tlv.HeaderLen + proto.NodeStateLen(c.conf.NodeIdentifierLength, c.conf.HashLength))
		kaLen := tlv.HeaderLen + 8
		if limit >= b.Len()+kaLen+nn*nsLen {
			c.ForEachNode(func(n *Node) bool {
				b.Put(c.nodeStateTLV(n, false))
				return true
			})
		}
	}

	if ep.conf.KeepaliveInterval != c.conf.Endpoint.KeepaliveInterval {
		b.Put(keepaliveTLV(ep.id, ep.conf.KeepaliveInterval))
	}
	return c.send(ep, src, dst, b, "network state")
}

// sendNodeState sends n's full state, data included.
func (c *Core) sendNodeState(ep *Endpoint, src, dst *net.UDPAddr, n *Node) error {
	b := tlv.NewBuf(c.conf.MaximumPayloadSize)
	b.Put(c.endpointIDTLV(ep))
	if err := b.Put(c.nodeStateTLV(n, true)); err != nil {
		return err
	}
	return c.send(ep, src, dst, b, "node state "+n.String())
}

// sendReqNetworkState asks dst for its network state, including ours so it
// can tell whether we are in sync.
func (c *Core) sendReqNetworkState(ep *Endpoint, src, dst *net.UDPAddr) error {
	b := tlv.NewBuf(c.conf.MaximumPayloadSize)
	c.calculateNetworkHash()
	b.Put(c.endpointIDTLV(ep))
	b.Put(proto.NetState(c.networkHash))
	b.Put(proto.ReqNetState())
	return c.send(ep, src, dst, b, "network state request")
}

func (c *Core) sendReqNodeState(ep *Endpoint, src, dst *net.UDPAddr, id []byte) error {
	b := tlv.NewBuf(c.conf.MaximumPayloadSize)
	b.Put(c.endpointIDTLV(ep))
	b.Put(proto.ReqNodeState(id))
	return c.send(ep, src, dst, b, "node state request")
}

// SendNetworkState multicasts the network state on the named endpoint
// immediately, outside of Trickle.
func (c *Core) SendNetworkState(name string) error {
	ep := c.FindEndpointByName(name)
	if ep == nil || !ep.enabled {
		return errDisabled(name)
	}
	return c.sendNetworkState(ep, nil, nil, ep.conf.MaximumMulticastSize)
}
