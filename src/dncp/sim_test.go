package dncp

import (
	"bytes"
	"fmt"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/crypto"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

// simNet connects Cores over one shared link with a virtual clock.
type simNet struct {
	now   time.Time
	nodes []*simNode
}

type simNode struct {
	net  *simNet
	c    *Core
	addr *net.UDPAddr

	deadline    time.Time
	hasDeadline bool
	inbox       []*Datagram
	detached    bool
}

func (n *simNode) Now() time.Time { return n.net.now }

func (n *simNode) ScheduleTimeout(d time.Duration) {
	n.deadline = n.net.now.Add(d)
	n.hasDeadline = true
}

func (n *simNode) Send(ep *Endpoint, src, dst *net.UDPAddr, payload []byte) error {
	if n.detached {
		return nil
	}
	for _, peer := range n.net.nodes {
		if peer == n || peer.detached {
			continue
		}
		d := &Datagram{
			Endpoint: "eth0",
			Src:      n.addr,
			Payload:  append([]byte(nil), payload...),
		}
		if dst == nil {
			d.Dst = mcastAddr
		} else if dst.IP.Equal(peer.addr.IP) {
			d.Dst = peer.addr
		} else {
			continue
		}
		peer.inbox = append(peer.inbox, d)
	}
	return nil
}

func (n *simNode) Recv() *Datagram {
	if len(n.inbox) == 0 {
		return nil
	}
	d := n.inbox[0]
	n.inbox = n.inbox[1:]
	return d
}

func (n *simNode) Hash(data []byte) []byte { return crypto.MD5(data) }

func (n *simNode) ValidateNodeData(_ *Node, data []byte) []byte { return data }

func (n *simNode) HardwareAddrs() []byte { return n.addr.IP }

func (n *simNode) HandleCollision() bool { return false }

func newSimNet(t *testing.T, ids ...[]byte) *simNet {
	s := &simNet{now: time.Unix(1000, 0)}
	logger := common.NewTestLogger(t, logrus.InfoLevel)
	for i, id := range ids {
		n := &simNode{net: s, addr: llAddr(i + 1)}
		c, err := NewWithIdentifier(DefaultConfig(), n, id, logger.WithField("prefix", fmt.Sprintf("%x", id)))
		if err != nil {
			t.Fatal(err)
		}
		c.SetRand(rand.New(rand.NewSource(int64(i + 1))))
		if _, err := c.EnableEndpoint("eth0", true); err != nil {
			t.Fatal(err)
		}
		n.c = c
		s.nodes = append(s.nodes, n)
	}
	return s
}

func (s *simNet) step() {
	s.now = s.now.Add(10 * time.Millisecond)
	for _, n := range s.nodes {
		if n.detached {
			continue
		}
		n.c.Poll()
		for i := 0; i < 10 && n.hasDeadline && !s.now.Before(n.deadline); i++ {
			n.hasDeadline = false
			n.c.Run()
		}
	}
}

// runUntil steps the network until cond holds, failing after limit of
// virtual time.
func (s *simNet) runUntil(t *testing.T, limit time.Duration, cond func() bool) {
	end := s.now.Add(limit)
	for s.now.Before(end) {
		s.step()
		if cond() {
			return
		}
	}
	t.Fatalf("condition not reached after %v", limit)
}

func (s *simNet) converged() bool {
	var hash []byte
	for _, n := range s.nodes {
		if n.detached {
			continue
		}
		if n.c.Stats().ReachableNodes != len(s.nodes) {
			return false
		}
		h := n.c.NetworkHash()
		if hash != nil && !bytes.Equal(hash, h) {
			return false
		}
		hash = h
	}
	return true
}

func TestSimConvergence(t *testing.T) {
	s := newSimNet(t, idA, idB)
	s.runUntil(t, 10*time.Second, s.converged)

	a, b := s.nodes[0].c, s.nodes[1].c
	if a.FindNode(idB) == nil || b.FindNode(idA) == nil {
		t.Fatalf("nodes should know each other")
	}
	if !a.Reachable(a.FindNode(idB)) || !b.Reachable(b.FindNode(idA)) {
		t.Fatalf("nodes should be reachable")
	}
}

func TestSimPublishedTLVPropagates(t *testing.T) {
	s := newSimNet(t, idA, idB)
	s.runUntil(t, 10*time.Second, s.converged)

	a, b := s.nodes[0].c, s.nodes[1].c
	a.AddTLV(tlv.New(42, []byte("x")), nil)

	seen := func() bool {
		n := b.FindNode(idA)
		if n == nil {
			return false
		}
		found := false
		b.ForEachTLVWithType(n, 42, func(at tlv.Attr) bool {
			found = bytes.Equal(at.Value, []byte("x"))
			return !found
		})
		return found
	}
	s.runUntil(t, 10*time.Second, seen)
	s.runUntil(t, 10*time.Second, s.converged)

	if !bytes.Equal(a.NetworkHash(), b.NetworkHash()) {
		t.Fatalf("hashes differ after propagation")
	}
	if a.OwnNode().UpdateNumber() != b.FindNode(idA).UpdateNumber() {
		t.Fatalf("update numbers differ")
	}
}

func TestSimThreeNodes(t *testing.T) {
	s := newSimNet(t, idA, idB, idY)
	s.runUntil(t, 20*time.Second, s.converged)

	for _, n := range s.nodes {
		if got := n.c.Stats().ReachableNodes; got != 3 {
			t.Fatalf("%x sees %d nodes", n.c.OwnNode().ID(), got)
		}
	}
}

func TestSimDepartedNodeIsPruned(t *testing.T) {
	s := newSimNet(t, idA, idB)
	s.runUntil(t, 10*time.Second, s.converged)

	s.nodes[1].detached = true
	a := s.nodes[0].c

	s.runUntil(t, 2*time.Minute, func() bool {
		n := a.FindNode(idB)
		return n == nil || !a.Reachable(n)
	})
	if a.Stats().NeighborsDropped != 1 {
		t.Fatalf("silent neighbor should have been dropped")
	}
	s.runUntil(t, 2*time.Minute, func() bool {
		return a.FindNode(idB) == nil
	})
}
