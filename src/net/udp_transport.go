package net

import (
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/dncp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv6"
)

const maxDatagramSize = 65536

// UDPTransport implements the Transport interface over one IPv6 UDP socket.
// The socket joins the multicast group on every joined interface and reports
// the arrival interface and destination of each packet.
type UDPTransport struct {
	sync.Mutex

	conn  *net.UDPConn
	pc    *ipv6.PacketConn
	group net.IP
	port  int

	ifaces map[string]*net.Interface

	consumerCh chan *dncp.Datagram

	shutdown   bool
	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewUDPTransport binds the wildcard address on port and prepares to join
// group. No interface is joined yet.
func NewUDPTransport(port int, group string, logger *logrus.Entry) (*UDPTransport, error) {
	gip := net.ParseIP(group)
	if gip == nil || gip.To4() != nil || !gip.IsMulticast() {
		return nil, fmt.Errorf("invalid IPv6 multicast group: %q", group)
	}

	conn, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.IPv6unspecified, Port: port})
	if err != nil {
		return nil, err
	}

	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv6.FlagDst|ipv6.FlagInterface, true); err != nil {
		conn.Close()
		return nil, err
	}
	if err := pc.SetMulticastLoopback(false); err != nil {
		logger.WithError(err).Debug("SetMulticastLoopback")
	}

	if port == 0 {
		port = conn.LocalAddr().(*net.UDPAddr).Port
	}

	return &UDPTransport{
		conn:       conn,
		pc:         pc,
		group:      gip,
		port:       port,
		ifaces:     make(map[string]*net.Interface),
		consumerCh: make(chan *dncp.Datagram, 64),
		shutdownCh: make(chan struct{}),
		logger:     logger,
	}, nil
}

// Listen implements the Transport interface.
func (u *UDPTransport) Listen() {
	go u.readLoop()
}

// Consumer implements the Transport interface.
func (u *UDPTransport) Consumer() <-chan *dncp.Datagram {
	return u.consumerCh
}

// LocalAddr implements the Transport interface.
func (u *UDPTransport) LocalAddr() string {
	return u.conn.LocalAddr().String()
}

// JoinInterface implements the Transport interface.
func (u *UDPTransport) JoinInterface(name string) error {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return err
	}

	u.Lock()
	defer u.Unlock()

	if _, ok := u.ifaces[name]; ok {
		return nil
	}
	if err := u.pc.JoinGroup(ifi, &net.UDPAddr{IP: u.group}); err != nil {
		return err
	}
	u.ifaces[name] = ifi

	u.logger.WithFields(logrus.Fields{
		"interface": name,
		"index":     ifi.Index,
		"group":     u.group,
	}).Debug("joined multicast group")
	return nil
}

// LeaveInterface implements the Transport interface.
func (u *UDPTransport) LeaveInterface(name string) error {
	u.Lock()
	defer u.Unlock()

	ifi, ok := u.ifaces[name]
	if !ok {
		return common.NewDncpErr("Interface", common.KeyNotFound, name)
	}
	delete(u.ifaces, name)
	return u.pc.LeaveGroup(ifi, &net.UDPAddr{IP: u.group})
}

// Send implements the Transport interface.
func (u *UDPTransport) Send(name string, src, dst *net.UDPAddr, payload []byte) error {
	u.Lock()
	ifi, ok := u.ifaces[name]
	u.Unlock()
	if !ok {
		return common.NewDncpErr("Interface", common.KeyNotFound, name)
	}

	to := &net.UDPAddr{IP: u.group, Port: u.port, Zone: name}
	if dst != nil {
		to = withZone(dst, name)
	}
	cm := &ipv6.ControlMessage{IfIndex: ifi.Index}
	if src != nil {
		cm.Src = src.IP
	}

	_, err := u.pc.WriteTo(payload, cm, to)
	return err
}

// HardwareAddrs implements the Transport interface. It concatenates the
// hardware addresses of the joined interfaces, or of every interface when
// none is joined yet, in name order.
func (u *UDPTransport) HardwareAddrs() []byte {
	u.Lock()
	var names []string
	for name := range u.ifaces {
		names = append(names, name)
	}
	u.Unlock()
	return HardwareAddrs(names)
}

// Close implements the Transport interface.
func (u *UDPTransport) Close() error {
	u.Lock()
	if u.shutdown {
		u.Unlock()
		return nil
	}
	u.shutdown = true
	close(u.shutdownCh)
	u.Unlock()

	return u.conn.Close()
}

func (u *UDPTransport) isShutdown() bool {
	select {
	case <-u.shutdownCh:
		return true
	default:
		return false
	}
}

func (u *UDPTransport) readLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, cm, src, err := u.pc.ReadFrom(buf)
		if err != nil {
			if u.isShutdown() {
				return
			}
			u.logger.WithError(err).Error("read")
			continue
		}
		if cm == nil {
			continue
		}

		ifi, err := net.InterfaceByIndex(cm.IfIndex)
		if err != nil {
			continue
		}
		u.Lock()
		_, joined := u.ifaces[ifi.Name]
		u.Unlock()
		if !joined {
			continue
		}

		usrc, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}

		d := &dncp.Datagram{
			Endpoint: ifi.Name,
			Src:      withZone(usrc, ifi.Name),
			Dst:      &net.UDPAddr{IP: cm.Dst, Port: u.port, Zone: ifi.Name},
			Payload:  append([]byte(nil), buf[:n]...),
		}

		select {
		case u.consumerCh <- d:
		case <-u.shutdownCh:
			return
		default:
			u.logger.WithField("interface", ifi.Name).Debug("consumer full, datagram dropped")
		}
	}
}

// HardwareAddrs concatenates the hardware addresses of the named interfaces,
// or of every interface with one if names is empty, sorted by name.
func HardwareAddrs(names []string) []byte {
	var ifis []net.Interface
	if len(names) == 0 {
		all, err := net.Interfaces()
		if err != nil {
			return nil
		}
		ifis = all
	} else {
		for _, name := range names {
			ifi, err := net.InterfaceByName(name)
			if err != nil {
				continue
			}
			ifis = append(ifis, *ifi)
		}
	}

	sort.Slice(ifis, func(i, j int) bool { return ifis[i].Name < ifis[j].Name })

	var res []byte
	for _, ifi := range ifis {
		res = append(res, ifi.HardwareAddr...)
	}
	return res
}
