package dncp

import (
	"time"

	"github.com/sirupsen/logrus"
)

// trickleSetI starts a new interval of size i, clamped to the endpoint's
// bounds. The transmission point is picked uniformly in [i/2, i).
func (c *Core) trickleSetI(ep *Endpoint, i time.Duration) {
	now := c.now()
	if i < ep.conf.TrickleImin {
		i = ep.conf.TrickleImin
	} else if i > ep.conf.TrickleImax {
		i = ep.conf.TrickleImax
	}
	t := i / 2
	if t > 0 {
		t += time.Duration(c.rand.Int63n(int64(t)))
	}
	ep.trickleI = i
	ep.trickleSendTime = now.Add(t)
	ep.trickleEnd = now.Add(i)
	ep.trickleC = 0

	c.logger.WithFields(logrus.Fields{
		"endpoint": ep.String(),
		"i":        i,
		"send_in":  t,
	}).Debug("trickle interval")
}

func (c *Core) trickleUpgrade(ep *Endpoint) {
	c.trickleSetI(ep, ep.trickleI*2)
}

// trickleSendNoCheck multicasts the network state regardless of the counter.
func (c *Core) trickleSendNoCheck(ep *Endpoint) {
	ep.numTrickleSent++
	ep.lastTrickleSent = c.now()
	c.sendNetworkState(ep, nil, nil, ep.conf.MaximumMulticastSize)
}

func (c *Core) trickleSend(ep *Endpoint) {
	if ep.trickleC < ep.conf.TrickleK {
		c.trickleSendNoCheck(ep)
	} else {
		ep.numTrickleSkipped++
		c.logger.WithFields(logrus.Fields{
			"endpoint": ep.String(),
			"c":        ep.trickleC,
		}).Debug("trickle transmission suppressed")
	}
	ep.trickleSendTime = time.Time{}
}

// trickleReset restarts every running Trickle instance at Imin. Instances
// already at Imin are left alone.
func (c *Core) trickleReset() {
	c.endpoints.Walk(func(ep *Endpoint) bool {
		if !ep.enabled || ep.trickleI == 0 || ep.trickleI == ep.conf.TrickleImin {
			return true
		}
		c.trickleSetI(ep, ep.conf.TrickleImin)
		return true
	})
}

// trickleRun advances ep's Trickle instance and returns the next time it needs
// attention.
func (c *Core) trickleRun(ep *Endpoint) time.Time {
	now := c.now()

	switch {
	case ep.trickleI == 0:
		c.trickleSetI(ep, ep.conf.TrickleImin)
		ep.lastTrickleSent = now
	case !now.Before(ep.trickleEnd):
		c.trickleUpgrade(ep)
	case !ep.trickleSendTime.IsZero() && !now.Before(ep.trickleSendTime):
		c.trickleSend(ep)
	}

	next := ep.trickleEnd
	if !ep.trickleSendTime.IsZero() {
		next = earliest(next, ep.trickleSendTime)
	}

	if ka := ep.conf.KeepaliveInterval; ka > 0 {
		due := ep.lastTrickleSent.Add(ka)
		if !now.Before(due) {
			c.logger.WithField("endpoint", ep.String()).Debug("keepalive")
			c.trickleSendNoCheck(ep)
			due = now.Add(ka)
		}
		next = earliest(next, due)
	}
	return next
}

// earliest returns the earlier of a and b, ignoring zero values.
func earliest(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.Before(b) {
		return a
	}
	return b
}
