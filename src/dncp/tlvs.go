package dncp

import (
	"bytes"
	"encoding/binary"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/tlv"
)

// LocalTLV is a TLV published by the own node. Extra is private bookkeeping
// attached by whoever published it; it is never sent.
type LocalTLV struct {
	attr  tlv.Attr
	key   []byte
	Extra interface{}
}

// Attr returns the published attribute. The caller must not modify it.
func (t *LocalTLV) Attr() tlv.Attr {
	return t.attr
}

// onTLVUpdate is the local TLV set's update function.
func (c *Core) onTLVUpdate(old, t *LocalTLV) {
	if old != nil {
		c.notifyLocalTLVChanged(old.attr, false)
	}
	if t != nil {
		c.notifyLocalTLVChanged(t.attr, true)
	}
	c.tlvsDirty = true
	c.schedule()
}

// AddTLV publishes a. Publishing a TLV that is already published returns the
// existing entry and changes nothing. Values the 16-bit length field cannot
// describe are refused with TooLarge.
func (c *Core) AddTLV(a tlv.Attr, extra interface{}) (*LocalTLV, error) {
	if len(a.Value) > tlv.MaxValueLen {
		return nil, common.NewDncpErr("TLV", common.TooLarge, a.String())
	}
	key := a.Key()
	if t, ok := c.tlvs.Get(key); ok {
		return t, nil
	}
	t := &LocalTLV{
		attr:  tlv.New(a.Type, a.Value),
		key:   key,
		Extra: extra,
	}
	c.tlvs.Set(key, t)
	return t, nil
}

// FindTLV returns the published entry structurally equal to a, if any.
func (c *Core) FindTLV(a tlv.Attr) *LocalTLV {
	t, _ := c.tlvs.Get(a.Key())
	return t
}

// RemoveTLV unpublishes t.
func (c *Core) RemoveTLV(t *LocalTLV) {
	if t == nil {
		return
	}
	c.tlvs.Delete(t.key)
}

// RemoveTLVMatching unpublishes the TLV structurally equal to a. It reports
// whether there was one.
func (c *Core) RemoveTLVMatching(a tlv.Attr) bool {
	_, ok := c.tlvs.Delete(a.Key())
	return ok
}

// RemoveTLVsByType unpublishes every TLV of type t and returns how many there
// were.
func (c *Core) RemoveTLVsByType(t uint16) int {
	n := 0
	c.ForEachLocalTLVWithType(t, func(lt *LocalTLV) bool {
		c.tlvs.Delete(lt.key)
		n++
		return true
	})
	return n
}

// ForEachLocalTLV calls fn for every published TLV in canonical order until fn
// returns false. fn may add and remove TLVs.
func (c *Core) ForEachLocalTLV(fn func(t *LocalTLV) bool) {
	c.tlvs.Walk(fn)
}

// ForEachLocalTLVWithType is ForEachLocalTLV restricted to type t.
func (c *Core) ForEachLocalTLVWithType(t uint16, fn func(lt *LocalTLV) bool) {
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], t)
	c.tlvs.WalkPrefix(prefix[:], fn)
}

// produceNewTLVs serialises the local TLV set. It returns false when the set
// is clean or serialises to the blob the own node already has.
func (c *Core) produceNewTLVs() ([]byte, bool) {
	if !c.tlvsDirty {
		return nil, false
	}
	blob := []byte{}
	c.tlvs.Walk(func(t *LocalTLV) bool {
		blob = t.attr.AppendTo(blob)
		return true
	})
	c.tlvsDirty = false

	if c.own.data != nil && bytes.Equal(blob, c.own.data) {
		return nil, false
	}
	return blob, true
}

// selfFlush moves local TLV changes into the own node.
func (c *Core) selfFlush() {
	blob, ok := c.produceNewTLVs()
	if !ok && !c.republishTLVs {
		return
	}

	c.logger.Debug("about to republish TLVs")
	c.notifyAboutToRepublish(c.own)

	c.republishTLVs = false
	if b2, ok2 := c.produceNewTLVs(); ok2 {
		blob, ok = b2, true
	}
	if !ok {
		blob = c.own.data
	}
	c.setNodeState(c.own, c.own.updateNumber+1, c.now(), blob)
}
