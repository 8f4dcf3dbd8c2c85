package dncpd

import (
	"fmt"

	"github.com/mosaicnetworks/dncp/src/config"
	"github.com/mosaicnetworks/dncp/src/net"
	"github.com/mosaicnetworks/dncp/src/node"
	"github.com/mosaicnetworks/dncp/src/service"
	"github.com/sirupsen/logrus"
)

// DefaultInmemInterface is the link an inmem node joins when no interface is
// configured.
const DefaultInmemInterface = "inmem0"

// Dncpd is a struct containing the key objects of a dncpd node: the
// Transport, the Node and the optional Service.
type Dncpd struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Service   *service.Service

	// Network is the simulated network an inmem transport attaches to. A new
	// one is created by Init if it is nil, so that several engines of one
	// process can share it.
	Network *net.InmemNetwork

	logger *logrus.Entry
}

// NewDncpd is a factory method to produce a Dncpd instance.
func NewDncpd(c *config.Config) *Dncpd {
	engine := &Dncpd{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

func (d *Dncpd) initTransport() error {
	switch d.Config.Transport {
	case "udp":
		transport, err := net.NewUDPTransport(
			d.Config.Port,
			d.Config.Group,
			d.logger.WithField("component", "transport"),
		)
		if err != nil {
			return err
		}
		d.Transport = transport
	case "inmem":
		if d.Network == nil {
			d.Network = net.NewInmemNetwork()
		}
		addr, transport := d.Network.NewTransport(d.Config.Moniker)
		d.Transport = transport

		d.logger.WithField("addr", addr).Debug("Created inmem transport")
	default:
		return fmt.Errorf("unknown transport %s", d.Config.Transport)
	}

	return nil
}

func (d *Dncpd) initNode() error {
	seed, err := d.Config.SeedBytes()
	if err != nil {
		return err
	}

	interfaces := d.Config.Interfaces
	if len(interfaces) == 0 && d.Config.Transport == "inmem" {
		interfaces = []string{DefaultInmemInterface}
	}

	conf := node.NewConfig(
		d.Config.DncpConfig(),
		interfaces,
		d.Config.Hash,
		d.logger.Logger,
	)
	conf.Seed = seed
	conf.Moniker = d.Config.Moniker

	d.logger.WithFields(logrus.Fields{
		"interfaces": interfaces,
		"transport":  d.Config.Transport,
		"hash":       d.Config.Hash,
	}).Debug("Creating node")

	n, err := node.NewNode(conf, d.Transport)
	if err != nil {
		return err
	}

	if err := n.Init(); err != nil {
		n.Shutdown()
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	d.Node = n

	return nil
}

func (d *Dncpd) initService() error {
	if !d.Config.NoService {
		d.Service = service.NewService(
			d.Config.ServiceAddr,
			d.Node,
			d.logger.WithField("component", "service"),
		)
	}
	return nil
}

// Init validates the configuration and initialises the Transport, the Node
// and the Service, in that order.
func (d *Dncpd) Init() error {
	if err := d.Config.Validate(); err != nil {
		d.logger.WithError(err).Error("Invalid configuration")
		return err
	}

	if err := d.initTransport(); err != nil {
		d.logger.WithError(err).Error("dncpd.go:Init() initTransport")
		return err
	}

	if err := d.initNode(); err != nil {
		d.logger.WithError(err).Error("dncpd.go:Init() initNode")
		d.Transport.Close()
		return err
	}

	if err := d.initService(); err != nil {
		d.logger.WithError(err).Error("dncpd.go:Init() initService")
		return err
	}

	return nil
}

// Run starts the Service, if any, and runs the Node until it is shut down.
func (d *Dncpd) Run() {
	if d.Service != nil {
		go d.Service.Serve()
	}

	d.Node.Run()
}

// Shutdown stops the Service and the Node.
func (d *Dncpd) Shutdown() {
	if d.Service != nil {
		d.Service.Close()
	}
	if d.Node != nil {
		d.Node.Shutdown()
	}
}
