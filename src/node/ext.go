package node

import (
	"net"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/dncp"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

// ext is the platform the protocol core runs on. Every method is called by
// the core, and therefore with coreLock held.
type ext struct {
	n *Node
}

var _ dncp.Ext = ext{}

func (e ext) Now() time.Time {
	return time.Now()
}

func (e ext) ScheduleTimeout(d time.Duration) {
	e.n.controlTimer.Reset(d)
}

func (e ext) Send(ep *dncp.Endpoint, src, dst *net.UDPAddr, payload []byte) error {
	return e.n.trans.Send(ep.Name(), src, dst, payload)
}

func (e ext) Recv() *dncp.Datagram {
	if len(e.n.inbox) == 0 {
		return nil
	}
	d := e.n.inbox[0]
	e.n.inbox[0] = nil
	e.n.inbox = e.n.inbox[1:]
	return d
}

func (e ext) Hash(data []byte) []byte {
	return e.n.hash(data)
}

func (e ext) ValidateNodeData(node *dncp.Node, data []byte) []byte {
	if e.n.conf.Validator != nil {
		return e.n.conf.Validator(node, data)
	}
	return defaultValidator(e.n.logger, node, data)
}

func (e ext) HardwareAddrs() []byte {
	if len(e.n.conf.Seed) > 0 {
		return e.n.conf.Seed
	}
	return e.n.trans.HardwareAddrs()
}

// HandleCollision moves the own node to a fresh random identifier.
func (e ext) HandleCollision() bool {
	id := make([]byte, e.n.conf.Dncp.NodeIdentifierLength)
	e.n.rand.Read(id)

	e.n.logger.WithFields(logrus.Fields{
		"old": common.ShortRepr(e.n.core.OwnNode().ID()),
		"new": common.ShortRepr(id),
	}).Warn("node identifier collision, picking a new identifier")

	if err := e.n.core.SetOwnNodeIdentifier(id); err != nil {
		e.n.logger.WithError(err).Error("SetOwnNodeIdentifier")
		return false
	}
	return true
}

// defaultValidator accepts the well-formed prefix of a node's data.
func defaultValidator(logger *logrus.Entry, n *dncp.Node, data []byte) []byte {
	attrs, err := tlv.Parse(data)
	if err == nil {
		return data
	}
	logger.WithFields(logrus.Fields{
		"node":  n.String(),
		"error": err,
		"valid": len(attrs),
	}).Info("malformed node data")
	if len(attrs) == 0 {
		return nil
	}
	return tlv.Encode(attrs...)
}
