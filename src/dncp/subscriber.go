package dncp

import (
	"github.com/mosaicnetworks/dncp/src/tlv"
)

// Subscriber receives change notifications. Any callback may be left nil.
//
// Callbacks run synchronously, in subscription order, from within the call
// that caused the change. They may read the Core but must not make a change
// that triggers the same class of notification again.
type Subscriber struct {
	// LocalTLVChanged is called when a TLV is published (add) or withdrawn.
	LocalTLVChanged func(a tlv.Attr, add bool)

	// NodeTLVsChanged is called when the validated data of a reachable node
	// changes, and when a node becomes reachable (prev is nil) or unreachable
	// (cur is nil).
	NodeTLVsChanged func(n *Node, prev, cur []byte)

	// NodeChanged is called when a node becomes reachable (add) or
	// unreachable.
	NodeChanged func(n *Node, add bool)

	// AboutToRepublish is called before the own node's data is rebuilt from
	// the local TLVs. It may publish and withdraw TLVs.
	AboutToRepublish func(n *Node)

	// EndpointChanged is called when an endpoint is enabled or disabled.
	EndpointChanged func(ep *Endpoint, enabled bool)

	// MessageReceived is called for every received datagram, whether or not
	// its endpoint is enabled. ep is nil for unknown endpoints.
	MessageReceived func(ep *Endpoint, d *Datagram)
}

// Subscribe registers s.
func (c *Core) Subscribe(s *Subscriber) {
	c.subscribers = append(c.subscribers, s)
}

// Unsubscribe removes s. It is a no-op if s is not registered.
func (c *Core) Unsubscribe(s *Subscriber) {
	for i, o := range c.subscribers {
		if o == s {
			c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
			return
		}
	}
}

func (c *Core) notifyLocalTLVChanged(a tlv.Attr, add bool) {
	for _, s := range c.subscribers {
		if s.LocalTLVChanged != nil {
			s.LocalTLVChanged(a, add)
		}
	}
}

func (c *Core) notifyNodeTLVsChanged(n *Node, prev, cur []byte) {
	for _, s := range c.subscribers {
		if s.NodeTLVsChanged != nil {
			s.NodeTLVsChanged(n, prev, cur)
		}
	}
}

func (c *Core) notifyNodeChanged(n *Node, add bool) {
	for _, s := range c.subscribers {
		if s.NodeChanged != nil {
			s.NodeChanged(n, add)
		}
	}
}

func (c *Core) notifyAboutToRepublish(n *Node) {
	for _, s := range c.subscribers {
		if s.AboutToRepublish != nil {
			s.AboutToRepublish(n)
		}
	}
}

func (c *Core) notifyEndpointChanged(ep *Endpoint, enabled bool) {
	for _, s := range c.subscribers {
		if s.EndpointChanged != nil {
			s.EndpointChanged(ep, enabled)
		}
	}
}

func (c *Core) notifyMessageReceived(ep *Endpoint, d *Datagram) {
	for _, s := range c.subscribers {
		if s.MessageReceived != nil {
			s.MessageReceived(ep, d)
		}
	}
}
