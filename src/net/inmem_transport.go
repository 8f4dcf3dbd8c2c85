package net

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/dncp"
)

// NewInmemAddr returns a new in-memory addr with
// a randomly generate UUID as the ID.
func NewInmemAddr() string {
	return uuid.New().String()
}

// InmemNetwork is a set of simulated links. Transports that joined the same
// link name see each other's multicast and can unicast to each other's
// link-local address.
type InmemNetwork struct {
	sync.RWMutex
	transports map[string]*InmemTransport
	loss       float64
	rand       *rand.Rand
}

// NewInmemNetwork returns an empty, lossless network.
func NewInmemNetwork() *InmemNetwork {
	return &InmemNetwork{
		transports: make(map[string]*InmemTransport),
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetLoss makes every delivery fail with probability p.
func (nw *InmemNetwork) SetLoss(p float64) {
	nw.Lock()
	defer nw.Unlock()
	nw.loss = p
}

func (nw *InmemNetwork) dropped() bool {
	nw.Lock()
	defer nw.Unlock()
	return nw.loss > 0 && nw.rand.Float64() < nw.loss
}

// NewTransport is used to initialize a new transport attached to nw and
// generates a random local address if none is specified. The link-local IP
// is derived from the address.
func (nw *InmemNetwork) NewTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(addr))

	ip := make(net.IP, net.IPv6len)
	ip[0], ip[1] = 0xfe, 0x80
	copy(ip[8:], id[8:])

	trans := &InmemTransport{
		network:    nw,
		consumerCh: make(chan *dncp.Datagram, 64),
		localAddr:  addr,
		ip:         ip,
		hwaddr:     id[:6],
		links:      make(map[string]bool),
	}

	nw.Lock()
	nw.transports[addr] = trans
	nw.Unlock()

	return addr, trans
}

func (nw *InmemNetwork) remove(addr string) {
	nw.Lock()
	defer nw.Unlock()
	delete(nw.transports, addr)
}

func (nw *InmemNetwork) peers(link string, except *InmemTransport) []*InmemTransport {
	nw.RLock()
	defer nw.RUnlock()
	var res []*InmemTransport
	for _, t := range nw.transports {
		if t != except && t.onLink(link) {
			res = append(res, t)
		}
	}
	return res
}

// InmemTransport implements the Transport interface, to allow nodes to be
// tested in-memory without going over a network.
type InmemTransport struct {
	sync.RWMutex
	network    *InmemNetwork
	consumerCh chan *dncp.Datagram
	localAddr  string
	ip         net.IP
	hwaddr     []byte
	links      map[string]bool
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan *dncp.Datagram {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// IP returns the transport's link-local address.
func (i *InmemTransport) IP() net.IP {
	return i.ip
}

// HardwareAddrs implements the Transport interface.
func (i *InmemTransport) HardwareAddrs() []byte {
	return i.hwaddr
}

// JoinInterface implements the Transport interface. Links are created on
// first use.
func (i *InmemTransport) JoinInterface(name string) error {
	i.Lock()
	defer i.Unlock()
	i.links[name] = true
	return nil
}

// LeaveInterface implements the Transport interface.
func (i *InmemTransport) LeaveInterface(name string) error {
	i.Lock()
	defer i.Unlock()
	if !i.links[name] {
		return common.NewDncpErr("Interface", common.KeyNotFound, name)
	}
	delete(i.links, name)
	return nil
}

func (i *InmemTransport) onLink(name string) bool {
	i.RLock()
	defer i.RUnlock()
	return i.links[name]
}

// Send implements the Transport interface. Deliveries never block; a full
// consumer loses the datagram like a congested link would.
func (i *InmemTransport) Send(name string, src, dst *net.UDPAddr, payload []byte) error {
	if !i.onLink(name) {
		return common.NewDncpErr("Interface", common.KeyNotFound, name)
	}

	from := &net.UDPAddr{IP: i.ip, Port: DefaultPort, Zone: name}
	for _, peer := range i.network.peers(name, i) {
		to := &net.UDPAddr{IP: net.ParseIP(DefaultGroup), Port: DefaultPort, Zone: name}
		if dst != nil {
			if !dst.IP.Equal(peer.ip) {
				continue
			}
			to = &net.UDPAddr{IP: peer.ip, Port: DefaultPort, Zone: name}
		}
		if i.network.dropped() {
			continue
		}
		peer.deliver(&dncp.Datagram{
			Endpoint: name,
			Src:      from,
			Dst:      to,
			Payload:  append([]byte(nil), payload...),
		})
	}
	return nil
}

func (i *InmemTransport) deliver(d *dncp.Datagram) {
	select {
	case i.consumerCh <- d:
	default:
	}
}

// Close is used to permanently disable the transport
func (i *InmemTransport) Close() error {
	i.network.remove(i.localAddr)
	i.Lock()
	i.links = make(map[string]bool)
	i.Unlock()
	return nil
}

// Listen is an empty function as there is no need to defer
// initialisation of the InMem service
func (i *InmemTransport) Listen() {
}
