package dncp

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/crypto"
	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
)

func TestUpdateNumberWraparound(t *testing.T) {
	cases := []struct {
		a, b  uint32
		newer bool
	}{
		{1, 0, true},
		{0, 1, false},
		{0, 0xFFFFFFFF, true},
		{0xFFFFFFFF, 0, false},
		{0x7FFFFFFF, 0, true},
		{5, 5, false},
	}
	for _, tc := range cases {
		if got := Newer(tc.a, tc.b); got != tc.newer {
			t.Fatalf("Newer(%#x, %#x) = %v, expected %v", tc.a, tc.b, got, tc.newer)
		}
	}
}

func TestNewDerivesIdentifierFromHardwareAddress(t *testing.T) {
	f := newFakeExt()
	c, err := New(DefaultConfig(), f, testEntry(t))
	if err != nil {
		t.Fatal(err)
	}
	expected := crypto.MD5(f.HardwareAddrs())[:4]
	if !bytes.Equal(c.OwnNode().ID(), expected) {
		t.Fatalf("own id %x, expected %x", c.OwnNode().ID(), expected)
	}
	if !f.timeoutSet || f.timeout != 0 {
		t.Fatalf("a fresh instance should schedule an immediate run")
	}
}

func TestSetNodeStateIdempotent(t *testing.T) {
	conf := testConfig()
	conf.DisablePrune = true
	c, f := newTestCore(t, idA, conf)

	calls := 0
	c.Subscribe(&Subscriber{
		NodeTLVsChanged: func(n *Node, prev, cur []byte) {
			if bytes.Equal(n.ID(), idZ) {
				calls++
			}
		},
	})

	n := c.findNode(idZ, true)
	settle(c, f)
	if !c.Reachable(n) {
		t.Fatalf("node should be reachable with pruning disabled")
	}
	calls = 0

	data := tlv.Encode(tlv.New(42, []byte("x")))
	c.setNodeState(n, 5, f.now, data)
	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}
	c.setNodeState(n, 5, f.now, append([]byte(nil), data...))
	if calls != 1 {
		t.Fatalf("identical state notified again: %d", calls)
	}

	// a version bump alone changes no content
	c.setNodeState(n, 6, f.now, nil)
	if calls != 1 {
		t.Fatalf("version bump notified: %d", calls)
	}
	if n.UpdateNumber() != 6 || !bytes.Equal(n.Data(), data) {
		t.Fatalf("unexpected state %d %x", n.UpdateNumber(), n.Data())
	}
}

func TestValidatedViewKeepsRawData(t *testing.T) {
	conf := testConfig()
	conf.DisablePrune = true
	c, f := newTestCore(t, idA, conf)
	f.validate = func(n *Node, data []byte) []byte { return nil }

	n := c.findNode(idZ, true)
	data := tlv.Encode(tlv.New(42, []byte("x")))
	c.setNodeState(n, 1, f.now, data)
	settle(c, f)

	if n.TLVs() != nil {
		t.Fatalf("validator rejected the data, view should be empty")
	}
	if !bytes.Equal(c.NodeHash(n), hashOf(data)) {
		t.Fatalf("hash must cover the raw data")
	}
}

func TestNetworkHash(t *testing.T) {
	conf := testConfig()
	conf.DisablePrune = true

	build := func(order [][]byte) *Core {
		c, f := newTestCore(t, idA, conf)
		for _, id := range order {
			n := c.findNode(id, true)
			c.setNodeState(n, 3, f.now, tlv.Encode(tlv.New(7, id)))
		}
		settle(c, f)
		return c
	}

	c1 := build([][]byte{idZ, idY, idB})
	c2 := build([][]byte{idB, idZ, idY})
	if !bytes.Equal(c1.NetworkHash(), c2.NetworkHash()) {
		t.Fatalf("network hash depends on insertion order")
	}

	// digest over (update number, node hash) in identifier order
	var buf []byte
	c1.ForEachNode(func(n *Node) bool {
		buf = binary.BigEndian.AppendUint32(buf, n.UpdateNumber())
		buf = append(buf, hashOf(n.Data())...)
		return true
	})
	if !bytes.Equal(c1.NetworkHash(), hashOf(buf)) {
		t.Fatalf("network hash %x, expected %x", c1.NetworkHash(), hashOf(buf))
	}

	before := c1.NetworkHash()
	n := c1.FindNode(idY)
	c1.setNodeState(n, 4, time.Time{}, nil)
	if bytes.Equal(before, c1.NetworkHash()) {
		t.Fatalf("network hash did not change with the update number")
	}
}

func TestUnreachableNodesAreNotHashed(t *testing.T) {
	c, f := newTestCore(t, idA, testConfig())
	settle(c, f)
	before := c.NetworkHash()

	n := c.findNode(idZ, true)
	c.setNodeState(n, 1, f.now, tlv.Encode(tlv.New(1, nil)))
	settle(c, f)

	if c.Reachable(n) {
		t.Fatalf("node without neighbors should be unreachable")
	}
	if !bytes.Equal(before, c.NetworkHash()) {
		t.Fatalf("unreachable node changed the network hash")
	}
}

func TestLocalTLVsAreIdempotent(t *testing.T) {
	c, f := newTestCore(t, idA, testConfig())
	settle(c, f)

	changes := 0
	c.Subscribe(&Subscriber{
		LocalTLVChanged: func(a tlv.Attr, add bool) { changes++ },
	})

	a := tlv.New(42, []byte("x"))
	t1, _ := c.AddTLV(a, nil)
	t2, _ := c.AddTLV(tlv.New(42, []byte("x")), nil)
	if t1 != t2 || changes != 1 {
		t.Fatalf("republishing an identical TLV must be a no-op")
	}
	settle(c, f)
	un := c.OwnNode().UpdateNumber()

	c.AddTLV(a, nil)
	settle(c, f)
	if c.OwnNode().UpdateNumber() != un {
		t.Fatalf("update number moved without a change")
	}

	if !c.RemoveTLVMatching(a) || c.RemoveTLVMatching(a) {
		t.Fatalf("RemoveTLVMatching should succeed exactly once")
	}
	settle(c, f)
	if c.OwnNode().UpdateNumber() != un+1 {
		t.Fatalf("withdrawal should bump the update number")
	}
}

func TestSelfFlush(t *testing.T) {
	c, f := newTestCore(t, idA, testConfig())
	settle(c, f)

	republished := 0
	c.Subscribe(&Subscriber{
		AboutToRepublish: func(n *Node) {
			republished++
			// late additions are part of the same publication
			c.AddTLV(tlv.New(99, []byte("late")), nil)
		},
	})

	c.AddTLV(tlv.New(42, []byte("x")), nil)
	settle(c, f)

	if republished != 1 {
		t.Fatalf("expected 1 republish notification, got %d", republished)
	}
	attrs, err := tlv.Parse(c.OwnNode().Data())
	if err != nil || len(attrs) != 2 || attrs[0].Type != 42 || attrs[1].Type != 99 {
		t.Fatalf("unexpected own data %v %v", attrs, err)
	}

	un := c.OwnNode().UpdateNumber()
	c.ForceRepublish()
	settle(c, f)
	if c.OwnNode().UpdateNumber() != un+1 {
		t.Fatalf("ForceRepublish should bump the update number")
	}
}

func TestPerTypeIndex(t *testing.T) {
	c, f := newTestCore(t, idA, testConfig())
	c.AddTLV(tlv.New(100, []byte{1}), nil)
	c.AddTLV(tlv.New(101, []byte{1}), nil)
	c.AddTLV(tlv.New(101, []byte{2}), nil)
	c.AddTLV(tlv.New(102, nil), nil)
	settle(c, f)

	count := func(typ uint16) int {
		n := 0
		c.ForEachTLVWithType(c.OwnNode(), typ, func(a tlv.Attr) bool {
			if a.Type != typ {
				t.Fatalf("got type %d scanning %d", a.Type, typ)
			}
			n++
			return true
		})
		return n
	}

	c.RegisterTLVIndex(101)
	if got := count(101); got != 2 {
		t.Fatalf("type 101: %d", got)
	}
	// unregistered types are registered on first use
	if got := count(100); got != 1 {
		t.Fatalf("type 100: %d", got)
	}
	if got := count(7); got != 0 {
		t.Fatalf("type 7: %d", got)
	}

	if n := c.RemoveTLVsByType(101); n != 2 {
		t.Fatalf("removed %d", n)
	}
	settle(c, f)
	if got := count(101); got != 0 {
		t.Fatalf("index not invalidated: %d", got)
	}
	if got := count(102); got != 1 {
		t.Fatalf("type 102: %d", got)
	}
}

func TestEndpointIdentifiers(t *testing.T) {
	c, _ := newTestCore(t, idA, testConfig())

	events := []bool{}
	c.Subscribe(&Subscriber{
		EndpointChanged: func(ep *Endpoint, enabled bool) { events = append(events, enabled) },
	})

	e0, _ := c.EnableEndpoint("eth0", true)
	e1, _ := c.EnableEndpoint("eth1", true)
	if e0.ID() != 1 || e1.ID() != 2 {
		t.Fatalf("ids %d %d", e0.ID(), e1.ID())
	}
	if _, err := c.EnableEndpoint("eth0", false); err != nil {
		t.Fatal(err)
	}
	if c.FindEndpointByName("eth0") != nil {
		t.Fatalf("disabled endpoint should be gone")
	}
	e2, _ := c.EnableEndpoint("eth0", true)
	if e2.ID() != 3 {
		t.Fatalf("endpoint ids must not be reused, got %d", e2.ID())
	}
	if c.FindEndpointByID(2) != e1 || c.FindEndpointByID(1) != nil {
		t.Fatalf("FindEndpointByID")
	}
	if len(events) != 4 || events[2] {
		t.Fatalf("events %v", events)
	}
	if _, err := c.EnableEndpoint("wlan9", false); err == nil {
		t.Fatalf("disabling an unknown endpoint should fail")
	}
}

func TestKeepaliveTLVPublished(t *testing.T) {
	conf := testConfig()
	conf.Endpoint.KeepaliveInterval = 20 * time.Second
	c, f := newTestCore(t, idA, conf)

	epConf := conf.Endpoint
	epConf.KeepaliveInterval = 5 * time.Second
	ep, _ := c.ConfigureEndpoint("eth0", epConf)
	c.EnableEndpoint("eth0", true)
	settle(c, f)

	found := 0
	c.ForEachTLVWithType(c.OwnNode(), proto.TypeKeepaliveInterval, func(a tlv.Attr) bool {
		ka, err := proto.DecodeKeepaliveInterval(a)
		if err == nil && ka.EndpointID == ep.ID() && ka.IntervalMs == 5000 {
			found++
		}
		return true
	})
	if found != 1 {
		t.Fatalf("keepalive TLV not published")
	}

	c.EnableEndpoint("eth0", false)
	settle(c, f)
	if c.RemoveTLVsByType(proto.TypeKeepaliveInterval) != 0 {
		t.Fatalf("keepalive TLV should be withdrawn with the endpoint")
	}
}

func TestOversizedTLVRefused(t *testing.T) {
	c, f := newTestCore(t, idA, testConfig())
	settle(c, f)
	un := c.OwnNode().UpdateNumber()

	lt, err := c.AddTLV(tlv.New(42, make([]byte, tlv.MaxValueLen+1)), nil)
	if err == nil || lt != nil || !common.Is(err, common.TooLarge) {
		t.Fatalf("expected TooLarge, got %v", err)
	}
	settle(c, f)
	if c.OwnNode().UpdateNumber() != un {
		t.Fatalf("a refused TLV should not be published")
	}

	if _, err := c.AddTLV(tlv.New(42, make([]byte, tlv.MaxValueLen)), nil); err != nil {
		t.Fatalf("the largest describable value should be accepted: %v", err)
	}
}

func TestCloseTearsDown(t *testing.T) {
	c, f := newTestCore(t, idA, testConfig())
	c.EnableEndpoint("eth0", true)
	c.AddTLV(tlv.New(42, nil), nil)
	deliver(c, f, unicastFrom(3, eidTLV(idY, 1)))
	settle(c, f)

	removed := 0
	c.Subscribe(&Subscriber{
		LocalTLVChanged: func(a tlv.Attr, add bool) {
			if !add {
				removed++
			}
		},
	})
	c.Close()
	if removed != 2 {
		t.Fatalf("expected the TLV and the neighbor to be withdrawn, got %d", removed)
	}
	if c.nodes.Len() != 0 || c.endpoints.Len() != 0 || c.tlvs.Len() != 0 {
		t.Fatalf("state left after Close")
	}
}
