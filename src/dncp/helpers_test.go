package dncp

import (
	"fmt"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/crypto"
	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

type sentMsg struct {
	ep      string
	src     *net.UDPAddr
	dst     *net.UDPAddr
	payload []byte
	attrs   []tlv.Attr
}

func (m sentMsg) count(t uint16) int {
	n := 0
	for _, a := range m.attrs {
		if a.Type == t {
			n++
		}
	}
	return n
}

// fakeExt is a deterministic platform: the clock only moves when the test
// moves it, sends are captured and datagrams are injected through inbox.
type fakeExt struct {
	now        time.Time
	timeoutSet bool
	timeout    time.Duration
	deadline   time.Time

	sent  []sentMsg
	inbox []*Datagram

	collisionCalls  int
	collisionResult bool

	validate func(n *Node, data []byte) []byte
}

func newFakeExt() *fakeExt {
	return &fakeExt{now: time.Unix(1000, 0)}
}

func (f *fakeExt) Now() time.Time {
	return f.now
}

func (f *fakeExt) ScheduleTimeout(d time.Duration) {
	f.timeoutSet = true
	f.timeout = d
	f.deadline = f.now.Add(d)
}

func (f *fakeExt) Send(ep *Endpoint, src, dst *net.UDPAddr, payload []byte) error {
	p := append([]byte(nil), payload...)
	attrs, _ := tlv.Parse(p)
	f.sent = append(f.sent, sentMsg{ep: ep.Name(), src: src, dst: dst, payload: p, attrs: attrs})
	return nil
}

func (f *fakeExt) Recv() *Datagram {
	if len(f.inbox) == 0 {
		return nil
	}
	d := f.inbox[0]
	f.inbox = f.inbox[1:]
	return d
}

func (f *fakeExt) Hash(data []byte) []byte {
	return crypto.MD5(data)
}

func (f *fakeExt) ValidateNodeData(n *Node, data []byte) []byte {
	if f.validate != nil {
		return f.validate(n, data)
	}
	return data
}

func (f *fakeExt) HardwareAddrs() []byte {
	return []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
}

func (f *fakeExt) HandleCollision() bool {
	f.collisionCalls++
	return f.collisionResult
}

func (f *fakeExt) takeSent() []sentMsg {
	s := f.sent
	f.sent = nil
	return s
}

func testConfig() *Config {
	conf := DefaultConfig()
	conf.MinimumPruneInterval = 0
	conf.Endpoint.KeepaliveInterval = 0
	return conf
}

func newTestCore(t *testing.T, id []byte, conf *Config) (*Core, *fakeExt) {
	f := newFakeExt()
	logger := common.NewTestLogger(t, logrus.DebugLevel)
	c, err := NewWithIdentifier(conf, f, id, logger.WithField("prefix", fmt.Sprintf("%x", id)))
	if err != nil {
		t.Fatalf("NewWithIdentifier: %v", err)
	}
	c.SetRand(rand.New(rand.NewSource(1)))
	return c, f
}

// settle runs c until it stops asking for immediate attention.
func settle(c *Core, f *fakeExt) {
	for i := 0; i < 20; i++ {
		f.timeoutSet = false
		c.Run()
		if !f.timeoutSet || f.timeout > 0 {
			return
		}
	}
}

func deliver(c *Core, f *fakeExt, d *Datagram) {
	f.inbox = append(f.inbox, d)
	c.Poll()
}

var (
	idA = []byte{0xa0, 0, 0, 1}
	idB = []byte{0xb0, 0, 0, 2}
	idY = []byte{0xc0, 0, 0, 3}
	idZ = []byte{0xd0, 0, 0, 4}

	mcastAddr = &net.UDPAddr{IP: net.ParseIP("ff02::11"), Port: 8231, Zone: "eth0"}
)

func llAddr(i int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(fmt.Sprintf("fe80::%d", i)), Port: 8231, Zone: "eth0"}
}

func unicastFrom(from int, attrs ...tlv.Attr) *Datagram {
	return &Datagram{
		Endpoint: "eth0",
		Src:      llAddr(from),
		Dst:      llAddr(1),
		Payload:  tlv.Encode(attrs...),
	}
}

func multicastFrom(from int, attrs ...tlv.Attr) *Datagram {
	return &Datagram{
		Endpoint: "eth0",
		Src:      llAddr(from),
		Dst:      mcastAddr,
		Payload:  tlv.Encode(attrs...),
	}
}

func eidTLV(id []byte, ep uint32) tlv.Attr {
	return proto.EndpointID{NodeID: id, EndpointID: ep}.Attr()
}

func hashOf(data []byte) []byte {
	return crypto.Truncate(crypto.MD5(data), 8)
}

func testEntry(t *testing.T) *logrus.Entry {
	return common.NewTestEntry(t, "dncp")
}
