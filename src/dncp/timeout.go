package dncp

import (
	"time"
)

// Run performs the deferred work: flushing local TLVs into the own node,
// pruning, recomputing the network hash, and running every enabled endpoint's
// Trickle instance and neighbor expiry. It then asks for the next call
// through Ext.ScheduleTimeout.
func (c *Core) Run() {
	now := c.ext.Now()
	c.cachedNow = now
	defer func() { c.cachedNow = time.Time{} }()

	// anything scheduled from here on needs another pass
	c.immediateScheduled = false

	c.selfFlush()

	c.prune()

	// may reset Trickle
	c.calculateNetworkHash()

	var next time.Time
	c.endpoints.Walk(func(ep *Endpoint) bool {
		if !ep.enabled {
			return true
		}
		c.setKeepaliveInterval(ep, ep.conf.KeepaliveInterval)
		next = earliest(next, c.trickleRun(ep))
		next = earliest(next, c.expireNeighbors(ep))
		return true
	})

	if c.graphDirty {
		next = earliest(next, c.lastPrune.Add(c.conf.MinimumPruneInterval))
	}
	next = earliest(next, c.nextPrune)

	if c.immediateScheduled || next.IsZero() {
		return
	}
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	c.ext.ScheduleTimeout(d)
}
