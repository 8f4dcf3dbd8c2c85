package dncp

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/crypto"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

// Newer reports whether update number a is more recent than b. Update
// numbers wrap around: a is newer when it is ahead of b by less than half the
// number space, so 0 is newer than 0xFFFFFFFF.
func Newer(a, b uint32) bool {
	return (b-a)&(1<<31) != 0
}

// Node is one participant's published state as known locally.
type Node struct {
	id []byte

	updateNumber    uint32
	originationTime time.Time

	// data is the raw TLV blob, exactly as published or received. valid is
	// what the validator made of it.
	data  []byte
	valid []byte

	hash      []byte
	hashDirty bool

	// reachEpoch is the prune epoch in which the node was last found
	// reachable; lastReachable is when that happened.
	reachEpoch    uint64
	lastReachable time.Time

	// index holds one span per registered TLV type over valid.
	index      []tlvSpan
	indexDirty bool
}

// tlvSpan bounds the attributes of one type within a blob. first is -1 when
// the blob has none.
type tlvSpan struct {
	first, end int
}

// ID returns the node identifier. The caller must not modify it.
func (n *Node) ID() []byte {
	return n.id
}

// UpdateNumber ...
func (n *Node) UpdateNumber() uint32 {
	return n.updateNumber
}

// OriginationTime is when the current data was published by its node,
// translated to the local clock.
func (n *Node) OriginationTime() time.Time {
	return n.originationTime
}

// Data returns the raw TLV blob.
func (n *Node) Data() []byte {
	return n.data
}

// TLVs returns the validated TLV blob.
func (n *Node) TLVs() []byte {
	return n.valid
}

// Hash returns the last computed hash of the raw blob. It may be one tick
// stale.
func (n *Node) Hash() []byte {
	return n.hash
}

// String ...
func (n *Node) String() string {
	return common.ShortRepr(n.id)
}

/*******************************************************************************
Node table
*******************************************************************************/

func (c *Core) findNode(id []byte, create bool) *Node {
	if n, ok := c.nodes.Get(id); ok {
		return n
	}
	if !create {
		return nil
	}
	n := &Node{
		id:         append([]byte(nil), id...),
		indexDirty: true,
	}
	c.nodes.Set(n.id, n)
	return n
}

// onNodeUpdate is the node table's update function.
func (c *Core) onNodeUpdate(old, n *Node) {
	if old == n {
		return
	}
	if old != nil && c.reachable(old) {
		c.notifyNodeTLVsChanged(old, old.valid, nil)
		c.notifyNodeChanged(old, false)
		c.graphDirty = true
	}
	if n != nil {
		n.hashDirty = true
		n.indexDirty = true
		// new nodes are unreachable until a prune finds them
		n.reachEpoch = c.pruneEpoch - 1
		n.lastReachable = c.now()
		c.graphDirty = true
	}
	c.networkHashDirty = true
	c.schedule()
}

// FindNode returns the node with the given identifier, reachable or not.
func (c *Core) FindNode(id []byte) *Node {
	return c.findNode(id, false)
}

// OwnNode ...
func (c *Core) OwnNode() *Node {
	return c.own
}

// IsOwn reports whether n is the local node.
func (c *Core) IsOwn(n *Node) bool {
	return n == c.own
}

// Reachable reports whether n was found reachable by the latest prune.
func (c *Core) Reachable(n *Node) bool {
	return c.reachable(n)
}

func (c *Core) reachable(n *Node) bool {
	return n.reachEpoch == c.pruneEpoch
}

// ForEachNode calls fn for every reachable node in identifier order until fn
// returns false.
func (c *Core) ForEachNode(fn func(n *Node) bool) {
	c.nodes.Walk(func(n *Node) bool {
		if !c.reachable(n) {
			return true
		}
		return fn(n)
	})
}

// ForEachNodeIncludingUnreachable is ForEachNode without the reachability
// filter.
func (c *Core) ForEachNodeIncludingUnreachable(fn func(n *Node) bool) {
	c.nodes.Walk(fn)
}

// setNodeState is the single integration point for new node data, local or
// remote. A nil data keeps the current blob.
func (c *Core) setNodeState(n *Node, updateNumber uint32, t time.Time, data []byte) {
	c.logger.WithFields(logrus.Fields{
		"node":          n.String(),
		"update_number": updateNumber,
		"len":           len(data),
	}).Debug("setNodeState")

	if updateNumber == n.updateNumber && (data == nil || bytes.Equal(data, n.data)) {
		c.logger.Debug("spurious node state, ignored")
		return
	}

	changed := data != nil && !bytes.Equal(data, n.data)
	var valid []byte
	if changed {
		valid = c.ext.ValidateNodeData(n, data)
	}

	n.updateNumber = updateNumber
	if !t.IsZero() {
		n.originationTime = t
	}

	if changed {
		if c.reachable(n) {
			c.notifyNodeTLVsChanged(n, n.valid, valid)
		}
		n.data = data
		n.valid = valid
		n.indexDirty = true
		n.hashDirty = true
		c.graphDirty = true
	}

	c.networkHashDirty = true
	c.schedule()
}

/*******************************************************************************
Hashes
*******************************************************************************/

func (c *Core) hash(data []byte) []byte {
	return crypto.Truncate(c.ext.Hash(data), c.conf.HashLength)
}

func (c *Core) nodeHash(n *Node) []byte {
	if n.hashDirty {
		n.hash = c.hash(n.data)
		n.hashDirty = false
		c.logger.WithFields(logrus.Fields{
			"node": n.String(),
			"hash": common.ShortRepr(n.hash),
			"self": n == c.own,
		}).Debug("node hash")
	}
	return n.hash
}

// NodeHash returns the current hash of n's raw blob.
func (c *Core) NodeHash(n *Node) []byte {
	return c.nodeHash(n)
}

func (c *Core) calculateNetworkHash() {
	if !c.networkHashDirty {
		return
	}

	var buf []byte
	c.ForEachNode(func(n *Node) bool {
		buf = binary.BigEndian.AppendUint32(buf, n.updateNumber)
		buf = append(buf, c.nodeHash(n)...)
		return true
	})

	old := c.networkHash
	c.networkHash = c.hash(buf)
	c.networkHashDirty = false

	c.logger.WithField("hash", common.ShortRepr(c.networkHash)).Debug("network hash")

	if !bytes.Equal(old, c.networkHash) {
		c.trickleReset()
	}
}

// NetworkHash returns the digest over every reachable node's update number
// and data hash.
func (c *Core) NetworkHash() []byte {
	c.calculateNetworkHash()
	return append([]byte(nil), c.networkHash...)
}

/*******************************************************************************
Per-type TLV index
*******************************************************************************/

// RegisterTLVIndex makes ForEachTLVWithType on type t skip straight to the
// TLVs of that type. Registering a new type invalidates every node's index,
// so types should be registered at startup.
func (c *Core) RegisterTLVIndex(t uint16) {
	if _, ok := c.indexTypes[t]; ok {
		return
	}
	c.indexTypes[t] = len(c.indexTypes)
	c.logger.WithField("type", t).Debug("TLV index registered")
	c.nodes.Walk(func(n *Node) bool {
		n.index = nil
		n.indexDirty = true
		return true
	})
}

func (c *Core) recalculateIndex(n *Node) {
	if cap(n.index) >= len(c.indexTypes) {
		n.index = n.index[:len(c.indexTypes)]
	} else {
		n.index = make([]tlvSpan, len(c.indexTypes))
	}
	for i := range n.index {
		n.index[i] = tlvSpan{first: -1, end: -1}
	}
	tlv.ForEach(n.valid, func(a tlv.Attr, off int) bool {
		slot, ok := c.indexTypes[a.Type]
		if !ok {
			return true
		}
		s := &n.index[slot]
		if s.first < 0 {
			s.first = off
		}
		s.end = off + a.Len()
		if s.end > len(n.valid) {
			s.end = len(n.valid)
		}
		return true
	})
	n.indexDirty = false
}

// ForEachTLVWithType calls fn for every validated TLV of type t published by
// n until fn returns false.
func (c *Core) ForEachTLVWithType(n *Node, t uint16, fn func(a tlv.Attr) bool) {
	c.RegisterTLVIndex(t)
	if n.indexDirty {
		c.recalculateIndex(n)
	}
	s := n.index[c.indexTypes[t]]
	if s.first < 0 {
		return
	}
	tlv.ForEach(n.valid[s.first:s.end], func(a tlv.Attr, _ int) bool {
		if a.Type != t {
			return true
		}
		return fn(a)
	})
}

// ForEachTLV calls fn for every validated TLV published by n.
func (c *Core) ForEachTLV(n *Node, fn func(a tlv.Attr) bool) {
	tlv.ForEach(n.valid, func(a tlv.Attr, _ int) bool {
		return fn(a)
	})
}
