package dncp

import (
	"bytes"
	"time"

	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

// findNeighborBidir returns the node n announces as neighbor ne, if that node
// announces n back over the same pair of endpoints.
func (c *Core) findNeighborBidir(n *Node, ne proto.Neighbor) *Node {
	n2 := c.findNode(ne.NodeID, false)
	if n2 == nil {
		return nil
	}
	found := false
	c.ForEachTLVWithType(n2, proto.TypeNeighbor, func(a tlv.Attr) bool {
		ne2, err := proto.DecodeNeighbor(a, c.conf.NodeIdentifierLength)
		if err != nil {
			return true
		}
		if ne.EndpointID == ne2.NeighborEndpointID &&
			ne.NeighborEndpointID == ne2.EndpointID &&
			bytes.Equal(ne2.NodeID, n.id) {
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil
	}
	return n2
}

// markReachable recomputes which nodes are reachable from the own node over
// bidirectional neighbor relations, and notifies subscribers of every node
// that became reachable or unreachable.
func (c *Core) markReachable() {
	now := c.now()
	prev := c.pruneEpoch
	c.pruneEpoch++
	c.lastPrune = now

	wasReachable := make(map[*Node]bool)
	c.nodes.Walk(func(n *Node) bool {
		if n.reachEpoch == prev {
			wasReachable[n] = true
		}
		return true
	})

	stamp := func(n *Node) {
		n.reachEpoch = c.pruneEpoch
		n.lastReachable = now
	}

	if c.conf.DisablePrune {
		c.nodes.Walk(func(n *Node) bool {
			stamp(n)
			return true
		})
	} else {
		stamp(c.own)
		stack := []*Node{c.own}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			c.ForEachTLVWithType(n, proto.TypeNeighbor, func(a tlv.Attr) bool {
				ne, err := proto.DecodeNeighbor(a, c.conf.NodeIdentifierLength)
				if err != nil {
					return true
				}
				n2 := c.findNeighborBidir(n, ne)
				if n2 != nil && n2.reachEpoch != c.pruneEpoch {
					stamp(n2)
					stack = append(stack, n2)
				}
				return true
			})
		}
	}

	c.nodes.Walk(func(n *Node) bool {
		was, is := wasReachable[n], c.reachable(n)
		switch {
		case is && !was:
			c.logger.WithField("node", n.String()).Debug("node reachable")
			c.notifyNodeChanged(n, true)
			c.notifyNodeTLVsChanged(n, nil, n.valid)
			c.networkHashDirty = true
		case was && !is:
			c.logger.WithField("node", n.String()).Debug("node unreachable")
			c.notifyNodeTLVsChanged(n, n.valid, nil)
			c.notifyNodeChanged(n, false)
			c.networkHashDirty = true
		}
		return true
	})
}

// prune refreshes reachability when the graph changed, and deletes nodes
// that stayed unreachable for the grace period.
func (c *Core) prune() {
	now := c.now()

	if c.graphDirty {
		if due := c.lastPrune.Add(c.conf.MinimumPruneInterval); !c.lastPrune.IsZero() && now.Before(due) {
			c.nextPrune = earliest(c.nextPrune, due)
			return
		}
		c.graphDirty = false
		c.markReachable()
	} else if c.nextPrune.IsZero() || now.Before(c.nextPrune) {
		return
	}

	if c.conf.DisablePrune {
		c.nextPrune = time.Time{}
		return
	}

	grace := now.Add(-c.conf.PruneGracePeriod)
	var next time.Time
	deleted := 0
	c.nodes.Walk(func(n *Node) bool {
		if c.reachable(n) {
			return true
		}
		if !n.lastReachable.After(grace) {
			c.nodes.Delete(n.id)
			deleted++
			return true
		}
		next = earliest(next, n.lastReachable.Add(c.conf.PruneGracePeriod))
		return true
	})
	c.nextPrune = next

	if deleted > 0 {
		c.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"nodes":   c.nodes.Len(),
		}).Debug("pruned nodes")
	}
}
