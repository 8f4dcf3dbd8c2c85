package service

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/dncp"
	"github.com/mosaicnetworks/dncp/src/node"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Event types sent on /events.
const (
	EventLocalTLVAdded    = "local-tlv-added"
	EventLocalTLVRemoved  = "local-tlv-removed"
	EventNodeAdded        = "node-added"
	EventNodeRemoved      = "node-removed"
	EventNodeTLVsChanged  = "node-tlvs-changed"
	EventEndpointEnabled  = "endpoint-enabled"
	EventEndpointDisabled = "endpoint-disabled"
	EventMessageReceived  = "message-received"
)

const (
	clientQueueLen = 64
	writeWait      = 5 * time.Second
)

// Event is one notification of the node's subscriber bus, as streamed to
// websocket clients.
type Event struct {
	Type         string         `json:"type"`
	Time         time.Time      `json:"time"`
	NodeID       string         `json:"node_id,omitempty"`
	UpdateNumber uint32         `json:"update_number,omitempty"`
	Endpoint     string         `json:"endpoint,omitempty"`
	TLVs         []node.TLVInfo `json:"tlvs,omitempty"`
	Source       string         `json:"source,omitempty"`
	Size         int            `json:"size,omitempty"`
}

type eventClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub fans events out to websocket clients. Publish never blocks: a
// client whose queue is full misses the event.
type EventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*eventClient]struct{}
	closed  bool
	dropped int

	logger *logrus.Entry
}

// NewEventHub ...
func NewEventHub(logger *logrus.Entry) *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*eventClient]struct{}{},
		logger:  logger,
	}
}

// Subscriber returns the callbacks that feed the hub. They run with the
// node's core locked, so they only read the values they are handed.
func (h *EventHub) Subscriber() *dncp.Subscriber {
	return &dncp.Subscriber{
		LocalTLVChanged: func(a tlv.Attr, add bool) {
			ev := Event{Type: EventLocalTLVRemoved, TLVs: []node.TLVInfo{node.NewTLVInfo(a)}}
			if add {
				ev.Type = EventLocalTLVAdded
			}
			h.Publish(ev)
		},
		NodeChanged: func(n *dncp.Node, add bool) {
			ev := Event{
				Type:         EventNodeRemoved,
				NodeID:       common.EncodeToString(n.ID()),
				UpdateNumber: n.UpdateNumber(),
			}
			if add {
				ev.Type = EventNodeAdded
			}
			h.Publish(ev)
		},
		NodeTLVsChanged: func(n *dncp.Node, prev, cur []byte) {
			ev := Event{
				Type:         EventNodeTLVsChanged,
				NodeID:       common.EncodeToString(n.ID()),
				UpdateNumber: n.UpdateNumber(),
			}
			tlv.ForEach(cur, func(a tlv.Attr, _ int) bool {
				ev.TLVs = append(ev.TLVs, node.NewTLVInfo(a))
				return true
			})
			h.Publish(ev)
		},
		EndpointChanged: func(ep *dncp.Endpoint, enabled bool) {
			ev := Event{Type: EventEndpointDisabled, Endpoint: ep.Name()}
			if enabled {
				ev.Type = EventEndpointEnabled
			}
			h.Publish(ev)
		},
		MessageReceived: func(ep *dncp.Endpoint, d *dncp.Datagram) {
			ev := Event{
				Type:     EventMessageReceived,
				Endpoint: d.Endpoint,
				Size:     len(d.Payload),
			}
			if d.Src != nil {
				ev.Source = d.Src.String()
			}
			h.Publish(ev)
		},
	}
}

// Publish queues ev on every connected client.
func (h *EventHub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}

	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	if err := codec.NewEncoder(b, jh).Encode(ev); err != nil {
		h.logger.WithError(err).Error("Encoding event")
		return
	}
	msg := b.Bytes()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
}

// ServeHTTP upgrades the request to a websocket and streams events on it
// until either side closes.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Upgrading event stream")
		return
	}

	c := &eventClient{
		conn: conn,
		send: make(chan []byte, clientQueueLen),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("remote", r.RemoteAddr).Debug("Event stream client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of events lost to full client queues.
func (h *EventHub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close disconnects every client. Later connections are refused.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *EventHub) remove(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *EventHub) removeLocked(c *eventClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *EventHub) writeLoop(c *eventClient) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.WithError(err).Debug("Writing event")
			h.remove(c)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards client messages. It notices when the client goes away.
func (h *EventHub) readLoop(c *eventClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}
