package dncp

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/sirupsen/logrus"
)

// Core is one protocol instance.
type Core struct {
	conf   *Config
	ext    Ext
	logger *logrus.Entry
	rand   *rand.Rand

	// cachedNow is the time Run started at. It is zero outside of Run.
	cachedNow time.Time

	// nodes is every known node keyed by identifier, own node included.
	nodes *vtree[*Node]

	// tlvs is what the own node publishes, in canonical order.
	tlvs *vtree[*LocalTLV]

	// endpoints is keyed by name.
	endpoints *vtree[*Endpoint]

	own *Node

	// tlvsDirty is set when the local TLV set changed since the last flush.
	tlvsDirty bool

	// republishTLVs forces the next flush to bump the own update number even
	// if the local TLVs did not change.
	republishTLVs bool

	// collisions counts identifier collisions resolved locally.
	collisions int

	// graphDirty is set when some node's data, and so possibly its
	// neighbors, changed since the last prune.
	graphDirty bool

	networkHashDirty bool

	// immediateScheduled guards against stacking zero-delay timeouts.
	immediateScheduled bool

	pruneEpoch uint64
	lastPrune  time.Time
	nextPrune  time.Time

	networkHash []byte

	// nextEndpointID is never reused over the lifetime of the Core.
	nextEndpointID uint32

	subscribers []*Subscriber

	// indexTypes maps a TLV type to its slot in every Node.index.
	indexTypes map[uint16]int

	numNeighborsDropped int
}

// New creates a Core whose identifier is derived from the platform's hardware
// address seed.
func New(conf *Config, ext Ext, logger *logrus.Entry) (*Core, error) {
	seed := ext.HardwareAddrs()
	if len(seed) == 0 {
		return nil, fmt.Errorf("no hardware address available")
	}
	return NewWithIdentifier(conf, ext, ext.Hash(seed), logger)
}

// NewWithIdentifier creates a Core with the given own node identifier,
// truncated or zero-extended to the configured length.
func NewWithIdentifier(conf *Config, ext Ext, id []byte, logger *logrus.Entry) (*Core, error) {
	if conf.NodeIdentifierLength <= 0 || conf.HashLength <= 0 {
		return nil, fmt.Errorf("invalid identifier or hash length: %d/%d",
			conf.NodeIdentifierLength, conf.HashLength)
	}

	c := &Core{
		conf:           conf,
		ext:            ext,
		logger:         logger,
		rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
		nextEndpointID: 1,
		// new nodes start one epoch behind and are therefore unreachable
		pruneEpoch: 1,
		indexTypes: make(map[uint16]int),
	}
	c.nodes = newVtree(c.onNodeUpdate)
	c.tlvs = newVtree(c.onTLVUpdate)
	c.endpoints = newVtree(c.onEndpointUpdate)

	if err := c.SetOwnNodeIdentifier(id); err != nil {
		return nil, err
	}
	return c, nil
}

// SetOwnNodeIdentifier replaces the own node. The previous own node is
// forgotten and its data will be republished under the new identifier.
func (c *Core) SetOwnNodeIdentifier(id []byte) error {
	ni := make([]byte, c.conf.NodeIdentifierLength)
	copy(ni, id)

	if c.own != nil {
		old := c.own
		c.own = nil
		c.nodes.Delete(old.id)
	}

	n := c.findNode(ni, true)
	c.own = n
	c.tlvsDirty = true
	// the own node is always reachable
	n.reachEpoch = c.pruneEpoch
	n.lastReachable = c.now()

	c.logger = c.logger.WithField("node_id", n.String())
	c.logger.Debug("own node identifier set")

	c.schedule()
	return nil
}

// SetRand replaces the source of Trickle jitter. Tests use it for
// determinism.
func (c *Core) SetRand(r *rand.Rand) {
	c.rand = r
}

// Config returns the Core's configuration. It must not be modified.
func (c *Core) Config() *Config {
	return c.conf
}

func (c *Core) now() time.Time {
	if c.cachedNow.IsZero() {
		return c.ext.Now()
	}
	return c.cachedNow
}

// schedule requests an immediate Run. Repeated calls before that Run are
// no-ops.
func (c *Core) schedule() {
	if c.immediateScheduled {
		return
	}
	c.ext.ScheduleTimeout(0)
	c.immediateScheduled = true
}

// ForceRepublish makes the next Run bump the own update number and
// republish, even if no local TLV changed.
func (c *Core) ForceRepublish() {
	c.republishTLVs = true
	c.schedule()
}

// Close tears the instance down. Local TLVs go first as they may reference
// endpoints, then endpoints, then remote nodes, and the own node last.
func (c *Core) Close() {
	for _, t := range c.tlvs.Values() {
		c.tlvs.Delete(t.key)
	}
	for _, ep := range c.endpoints.Values() {
		c.endpoints.Delete([]byte(ep.name))
	}
	for _, n := range c.nodes.Values() {
		if n != c.own {
			c.nodes.Delete(n.id)
		}
	}
	if c.own != nil {
		own := c.own
		c.own = nil
		c.nodes.Delete(own.id)
	}
	c.subscribers = nil
}

// Stats is a snapshot of the instance's counters.
type Stats struct {
	NodeID           string
	UpdateNumber     uint32
	NetworkHash      string
	Nodes            int
	ReachableNodes   int
	LocalTLVs        int
	Endpoints        int
	NeighborsDropped int
	Collisions       int
}

// Stats ...
func (c *Core) Stats() Stats {
	s := Stats{
		NodeID:           common.EncodeToString(c.own.id),
		UpdateNumber:     c.own.updateNumber,
		NetworkHash:      common.EncodeToString(c.NetworkHash()),
		Nodes:            c.nodes.Len(),
		LocalTLVs:        c.tlvs.Len(),
		Endpoints:        c.endpoints.Len(),
		NeighborsDropped: c.numNeighborsDropped,
		Collisions:       c.collisions,
	}
	c.ForEachNode(func(*Node) bool {
		s.ReachableNodes++
		return true
	})
	return s
}
