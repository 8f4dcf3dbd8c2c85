package node

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/crypto"
	"github.com/mosaicnetworks/dncp/src/dncp"
	"github.com/mosaicnetworks/dncp/src/net"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
)

// ErrShutdown is returned by the accessors of a node that was shut down.
var ErrShutdown = errors.New("node is shut down")

//Node defines a DNCP node
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	// core is not safe for concurrent use. Everything that touches it,
	// including inbox, holds coreLock.
	core     *dncp.Core
	coreLock sync.Mutex
	closed   bool

	trans net.Transport
	netCh <-chan *dncp.Datagram
	inbox []*dncp.Datagram

	hash crypto.HashFunc
	rand *rand.Rand

	sigintCh     chan os.Signal
	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	controlTimer *ControlTimer

	start       time.Time
	lastHash    []byte
	numReceived int
	numRuns     int
}

//NewNode is a factory method that returns a Node instance
func NewNode(conf *Config, trans net.Transport) (*Node, error) {
	hash, err := crypto.ByName(conf.HashName)
	if err != nil {
		return nil, err
	}

	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	logger := logrus.NewEntry(conf.Logger)
	if conf.Moniker != "" {
		logger = logger.WithField("moniker", conf.Moniker)
	}

	node := &Node{
		conf:         conf,
		logger:       logger,
		trans:        trans,
		netCh:        trans.Consumer(),
		hash:         hash,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewControlTimer(),
	}

	core, err := dncp.New(conf.Dncp, ext{node}, logger)
	if err != nil {
		signal.Stop(sigintCh)
		return nil, err
	}
	node.core = core

	return node, nil
}

//Init joins and enables the configured interfaces
func (n *Node) Init() error {
	for _, name := range n.conf.Interfaces {
		if err := n.EnableInterface(name, true); err != nil {
			n.logger.WithError(err).Errorf("Enabling interface %s", name)
			return err
		}
	}
	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")
	go n.Run()
}

//Run invokes the main loop of the node. It returns after Shutdown.
func (n *Node) Run() {
	n.setState(Running)
	n.start = time.Now()

	n.trans.Listen()

	go n.doBackgroundWork()

	for {
		select {
		case <-n.controlTimer.tickCh:
			n.timeout()
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) timeout() {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.closed {
		return
	}
	n.core.Run()
	n.numRuns++

	if h := n.core.NetworkHash(); !bytes.Equal(h, n.lastHash) {
		n.lastHash = h
		n.logStats()
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case d := <-n.netCh:
			n.receive(d)
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - SHUTDOWN")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

func (n *Node) receive(d *dncp.Datagram) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.closed {
		return
	}
	n.numReceived++
	n.inbox = append(n.inbox, d)
	n.core.Poll()
}

//Shutdown shuts down the node
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.setState(Shutdown)

		close(n.shutdownCh)
		n.controlTimer.Shutdown()
		signal.Stop(n.sigintCh)

		n.coreLock.Lock()
		n.core.Close()
		n.closed = true
		n.coreLock.Unlock()

		n.trans.Close()
	})
}

// withCore runs fn with the core locked.
func (n *Node) withCore(fn func(c *dncp.Core) error) error {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	if n.closed {
		return ErrShutdown
	}
	return fn(n.core)
}

//EnableInterface starts or stops the protocol on the named interface
func (n *Node) EnableInterface(name string, enabled bool) error {
	if enabled {
		if err := n.trans.JoinInterface(name); err != nil {
			return err
		}
	}

	err := n.withCore(func(c *dncp.Core) error {
		_, err := c.EnableEndpoint(name, enabled)
		return err
	})
	if err != nil {
		return err
	}

	if !enabled {
		return n.trans.LeaveInterface(name)
	}
	return nil
}

//AddTLV publishes a TLV in the own node's data
func (n *Node) AddTLV(a tlv.Attr) error {
	return n.withCore(func(c *dncp.Core) error {
		_, err := c.AddTLV(a, nil)
		return err
	})
}

//RemoveTLV withdraws a published TLV. It fails with KeyNotFound if a was not
//published.
func (n *Node) RemoveTLV(a tlv.Attr) error {
	return n.withCore(func(c *dncp.Core) error {
		if !c.RemoveTLVMatching(a) {
			return common.NewDncpErr("TLV", common.KeyNotFound, a.String())
		}
		return nil
	})
}

//Subscribe registers s with the core. Callbacks run with the core locked and
//must not call back into the node.
func (n *Node) Subscribe(s *dncp.Subscriber) error {
	return n.withCore(func(c *dncp.Core) error {
		c.Subscribe(s)
		return nil
	})
}

//Unsubscribe ...
func (n *Node) Unsubscribe(s *dncp.Subscriber) {
	n.withCore(func(c *dncp.Core) error {
		c.Unsubscribe(s)
		return nil
	})
}

//ID returns the own node identifier
func (n *Node) ID() []byte {
	var id []byte
	n.withCore(func(c *dncp.Core) error {
		id = append(id, c.OwnNode().ID()...)
		return nil
	})
	return id
}

//NetworkHash returns the current network hash
func (n *Node) NetworkHash() []byte {
	var h []byte
	n.withCore(func(c *dncp.Core) error {
		h = c.NetworkHash()
		return nil
	})
	return h
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	s := map[string]string{
		"state":   n.getState().String(),
		"moniker": n.conf.Moniker,
	}

	n.withCore(func(c *dncp.Core) error {
		stats := c.Stats()
		s["id"] = stats.NodeID
		s["update_number"] = strconv.FormatUint(uint64(stats.UpdateNumber), 10)
		s["network_hash"] = stats.NetworkHash
		s["num_nodes"] = strconv.Itoa(stats.Nodes)
		s["num_reachable"] = strconv.Itoa(stats.ReachableNodes)
		s["num_tlvs"] = strconv.Itoa(stats.LocalTLVs)
		s["num_endpoints"] = strconv.Itoa(stats.Endpoints)
		s["neighbors_dropped"] = strconv.Itoa(stats.NeighborsDropped)
		s["collisions"] = strconv.Itoa(stats.Collisions)
		s["datagrams_received"] = strconv.Itoa(n.numReceived)
		s["runs"] = strconv.Itoa(n.numRuns)
		return nil
	})

	if !n.start.IsZero() {
		s["uptime"] = time.Since(n.start).Round(time.Second).String()
	}
	s["interfaces"] = strings.Join(n.conf.Interfaces, ",")
	return s
}

// logStats is called with the core locked.
func (n *Node) logStats() {
	stats := n.core.Stats()

	n.logger.WithFields(logrus.Fields{
		"update_number":     stats.UpdateNumber,
		"network_hash":      stats.NetworkHash,
		"nodes":             stats.Nodes,
		"reachable":         stats.ReachableNodes,
		"tlvs":              stats.LocalTLVs,
		"endpoints":         stats.Endpoints,
		"neighbors_dropped": stats.NeighborsDropped,
		"received":          n.numReceived,
	}).Debug("Stats")
}
