package dncp

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
)

// Endpoint is one network interface the protocol runs on.
type Endpoint struct {
	name string
	id   uint32
	conf EndpointConfig

	// enabled endpoints send and handle messages. Datagrams arriving on a
	// disabled endpoint are only passed to subscribers.
	enabled bool

	// Trickle state. trickleI is zero until the first Run after enabling.
	trickleI        time.Duration
	trickleSendTime time.Time
	trickleEnd      time.Time
	trickleC        int
	lastTrickleSent time.Time

	// publishedKeepalive is the interval the own node currently advertises
	// for this endpoint.
	publishedKeepalive time.Duration

	lastReqNetworkState time.Time

	numTrickleSent    int
	numTrickleSkipped int
}

// Name ...
func (ep *Endpoint) Name() string {
	return ep.name
}

// ID is the endpoint identifier announced in every message sent on ep.
func (ep *Endpoint) ID() uint32 {
	return ep.id
}

// Enabled ...
func (ep *Endpoint) Enabled() bool {
	return ep.enabled
}

// Config ...
func (ep *Endpoint) Config() EndpointConfig {
	return ep.conf
}

// String ...
func (ep *Endpoint) String() string {
	return fmt.Sprintf("%s[#%d]", ep.name, ep.id)
}

// TrickleStats describes an endpoint's Trickle instance.
type TrickleStats struct {
	Interval time.Duration
	Counter  int
	Sent     int
	Skipped  int
}

// TrickleStats ...
func (ep *Endpoint) TrickleStats() TrickleStats {
	return TrickleStats{
		Interval: ep.trickleI,
		Counter:  ep.trickleC,
		Sent:     ep.numTrickleSent,
		Skipped:  ep.numTrickleSkipped,
	}
}

// onEndpointUpdate is the endpoint table's update function.
func (c *Core) onEndpointUpdate(old, ep *Endpoint) {
	if old != nil {
		c.ForEachLocalTLVWithType(proto.TypeNeighbor, func(t *LocalTLV) bool {
			ne, err := proto.DecodeNeighbor(t.attr, c.conf.NodeIdentifierLength)
			if err == nil && ne.EndpointID == old.id {
				c.RemoveTLV(t)
			}
			return true
		})
		c.setKeepaliveInterval(old, c.conf.Endpoint.KeepaliveInterval)
	}
	if ep != nil {
		ep.publishedKeepalive = c.conf.Endpoint.KeepaliveInterval
	}
	c.schedule()
}

// Endpoint returns the endpoint called name, creating it disabled with the
// default configuration if it does not exist.
func (c *Core) Endpoint(name string) *Endpoint {
	if ep := c.FindEndpointByName(name); ep != nil {
		return ep
	}
	if name == "" {
		return nil
	}
	ep := &Endpoint{
		name: name,
		id:   c.nextEndpointID,
		conf: c.conf.Endpoint,
	}
	c.nextEndpointID++
	c.endpoints.Set([]byte(name), ep)
	return ep
}

// FindEndpointByName returns nil if there is no such endpoint.
func (c *Core) FindEndpointByName(name string) *Endpoint {
	ep, _ := c.endpoints.Get([]byte(name))
	return ep
}

// FindEndpointByID returns nil if there is no such endpoint.
func (c *Core) FindEndpointByID(id uint32) *Endpoint {
	var res *Endpoint
	c.endpoints.Walk(func(ep *Endpoint) bool {
		if ep.id == id {
			res = ep
			return false
		}
		return true
	})
	return res
}

// ForEachEndpoint calls fn for every endpoint in name order until fn returns
// false.
func (c *Core) ForEachEndpoint(fn func(ep *Endpoint) bool) {
	c.endpoints.Walk(fn)
}

// ConfigureEndpoint replaces the configuration of the named endpoint,
// creating it if needed. Trickle picks up the new bounds at its next
// interval.
func (c *Core) ConfigureEndpoint(name string, conf EndpointConfig) (*Endpoint, error) {
	ep := c.Endpoint(name)
	if ep == nil {
		return nil, common.NewDncpErr("Endpoint", common.KeyNotFound, name)
	}
	ep.conf = conf
	c.schedule()
	return ep, nil
}

// EnableEndpoint starts or stops the protocol on the named endpoint. Enabling
// creates the endpoint if needed; disabling destroys it together with the
// neighbors heard on it. Identifiers of destroyed endpoints are not reused.
func (c *Core) EnableEndpoint(name string, enabled bool) (*Endpoint, error) {
	if !enabled {
		ep := c.FindEndpointByName(name)
		if ep == nil {
			return nil, common.NewDncpErr("Endpoint", common.KeyNotFound, name)
		}
		if ep.enabled {
			c.notifyEndpointChanged(ep, false)
			ep.enabled = false
		}
		c.endpoints.Delete([]byte(name))
		return ep, nil
	}

	ep := c.Endpoint(name)
	if ep == nil {
		return nil, common.NewDncpErr("Endpoint", common.KeyNotFound, name)
	}
	if ep.enabled {
		c.logger.WithField("endpoint", ep.String()).Debug("endpoint already enabled")
		return ep, nil
	}
	c.notifyEndpointChanged(ep, true)
	ep.enabled = true
	c.schedule()
	return ep, nil
}

// setKeepaliveInterval publishes value for ep if it is not the default, and
// withdraws the previously published one.
func (c *Core) setKeepaliveInterval(ep *Endpoint, value time.Duration) {
	if ep.publishedKeepalive == value {
		return
	}
	def := c.conf.Endpoint.KeepaliveInterval
	if ep.publishedKeepalive != def {
		c.RemoveTLVMatching(keepaliveTLV(ep.id, ep.publishedKeepalive))
	}
	if value != def {
		c.AddTLV(keepaliveTLV(ep.id, value), nil)
	}
	ep.publishedKeepalive = value
}

func keepaliveTLV(epID uint32, d time.Duration) tlv.Attr {
	return proto.KeepaliveInterval{
		EndpointID: epID,
		IntervalMs: uint32(d / time.Millisecond),
	}.Attr()
}

// EndpointHasHighestID reports whether the own node identifier is the highest
// among the own node and every neighbor the own node announces on ep.
func (c *Core) EndpointHasHighestID(ep *Endpoint) bool {
	highest := true
	c.ForEachTLVWithType(c.own, proto.TypeNeighbor, func(a tlv.Attr) bool {
		ne, err := proto.DecodeNeighbor(a, c.conf.NodeIdentifierLength)
		if err != nil || ne.EndpointID != ep.id {
			return true
		}
		if string(ne.NodeID) > string(c.own.id) {
			highest = false
			return false
		}
		return true
	})
	return highest
}
