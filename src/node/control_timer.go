package node

import (
	"sync"
	"time"
)

// ControlTimer delivers the protocol's timeout requests as ticks. Reset never
// blocks, so it can be called with the core lock held; ticks that are not
// consumed in time coalesce into one.
type ControlTimer struct {
	sync.Mutex
	timer    *time.Timer
	tickCh   chan struct{} //signals the listening process
	deadline time.Time
	set      bool
	shutdown bool
}

// NewControlTimer ...
func NewControlTimer() *ControlTimer {
	return &ControlTimer{
		tickCh: make(chan struct{}, 1),
	}
}

// Reset arms the timer to tick after d, replacing any pending deadline.
func (c *ControlTimer) Reset(d time.Duration) {
	c.Lock()
	defer c.Unlock()

	if c.shutdown {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	if d < 0 {
		d = 0
	}
	c.set = true
	c.deadline = time.Now().Add(d)
	c.timer = time.AfterFunc(d, c.fire)
}

func (c *ControlTimer) fire() {
	c.Lock()
	c.set = false
	c.Unlock()

	select {
	case c.tickCh <- struct{}{}:
	default:
	}
}

// Stop cancels the pending deadline, if any.
func (c *ControlTimer) Stop() {
	c.Lock()
	defer c.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.set = false
}

// Deadline returns the pending deadline and whether there is one.
func (c *ControlTimer) Deadline() (time.Time, bool) {
	c.Lock()
	defer c.Unlock()
	return c.deadline, c.set
}

// Shutdown stops the timer for good.
func (c *ControlTimer) Shutdown() {
	c.Lock()
	defer c.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.set = false
	c.shutdown = true
}
