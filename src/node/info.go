package node

import (
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/dncp"
	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
)

// TLVInfo is a printable TLV.
type TLVInfo struct {
	Type  uint16 `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NodeInfo is a snapshot of one known node.
type NodeInfo struct {
	ID           string    `json:"id"`
	Own          bool      `json:"own"`
	Reachable    bool      `json:"reachable"`
	UpdateNumber uint32    `json:"update_number"`
	Origination  time.Time `json:"origination"`
	Hash         string    `json:"hash"`
	TLVs         []TLVInfo `json:"tlvs,omitempty"`
}

// EndpointInfo is a snapshot of one endpoint.
type EndpointInfo struct {
	Name              string `json:"name"`
	ID                uint32 `json:"id"`
	Enabled           bool   `json:"enabled"`
	HighestID         bool   `json:"highest_id"`
	TrickleIntervalMs int64  `json:"trickle_interval_ms"`
	TrickleSent       int    `json:"trickle_sent"`
	TrickleSkipped    int    `json:"trickle_skipped"`
	KeepaliveMs       int64  `json:"keepalive_ms"`
}

// NeighborInfo is a snapshot of one neighbor relation.
type NeighborInfo struct {
	NodeID             string    `json:"node_id"`
	NeighborEndpointID uint32    `json:"neighbor_endpoint_id"`
	EndpointID         uint32    `json:"endpoint_id"`
	LastContact        time.Time `json:"last_contact"`
	Address            string    `json:"address,omitempty"`
}

// NewTLVInfo returns the printable form of a.
func NewTLVInfo(a tlv.Attr) TLVInfo {
	return TLVInfo{
		Type:  a.Type,
		Name:  proto.TypeString(a.Type),
		Value: common.EncodeToString(a.Value),
	}
}

func nodeInfo(c *dncp.Core, n *dncp.Node, withTLVs bool) NodeInfo {
	info := NodeInfo{
		ID:           common.EncodeToString(n.ID()),
		Own:          c.IsOwn(n),
		Reachable:    c.Reachable(n),
		UpdateNumber: n.UpdateNumber(),
		Origination:  n.OriginationTime(),
		Hash:         common.EncodeToString(c.NodeHash(n)),
	}
	if withTLVs {
		c.ForEachTLV(n, func(a tlv.Attr) bool {
			info.TLVs = append(info.TLVs, NewTLVInfo(a))
			return true
		})
	}
	return info
}

//GetNodes returns every known node, reachable or not, in identifier order
func (n *Node) GetNodes() []NodeInfo {
	res := []NodeInfo{}
	n.withCore(func(c *dncp.Core) error {
		c.ForEachNodeIncludingUnreachable(func(node *dncp.Node) bool {
			res = append(res, nodeInfo(c, node, false))
			return true
		})
		return nil
	})
	return res
}

//GetNode returns the node with the given identifier, with its TLVs
func (n *Node) GetNode(id []byte) (NodeInfo, error) {
	var res NodeInfo
	err := n.withCore(func(c *dncp.Core) error {
		node := c.FindNode(id)
		if node == nil {
			return common.NewDncpErr("Node", common.KeyNotFound, common.EncodeToString(id))
		}
		res = nodeInfo(c, node, true)
		return nil
	})
	return res, err
}

//GetEndpoints returns every endpoint in name order
func (n *Node) GetEndpoints() []EndpointInfo {
	res := []EndpointInfo{}
	n.withCore(func(c *dncp.Core) error {
		c.ForEachEndpoint(func(ep *dncp.Endpoint) bool {
			ts := ep.TrickleStats()
			res = append(res, EndpointInfo{
				Name:              ep.Name(),
				ID:                ep.ID(),
				Enabled:           ep.Enabled(),
				HighestID:         c.EndpointHasHighestID(ep),
				TrickleIntervalMs: int64(ts.Interval / time.Millisecond),
				TrickleSent:       ts.Sent,
				TrickleSkipped:    ts.Skipped,
				KeepaliveMs:       int64(ep.Config().KeepaliveInterval / time.Millisecond),
			})
			return true
		})
		return nil
	})
	return res
}

//GetNeighbors returns the own node's neighbor relations
func (n *Node) GetNeighbors() []NeighborInfo {
	res := []NeighborInfo{}
	n.withCore(func(c *dncp.Core) error {
		c.ForEachNeighbor(func(ni dncp.NeighborInfo) bool {
			info := NeighborInfo{
				NodeID:             common.EncodeToString(ni.NodeID),
				NeighborEndpointID: ni.NeighborEndpointID,
				EndpointID:         ni.EndpointID,
				LastContact:        ni.LastContact,
			}
			if ni.LastAddr != nil {
				info.Address = ni.LastAddr.String()
			}
			res = append(res, info)
			return true
		})
		return nil
	})
	return res
}

//GetLocalTLVs returns the TLVs the own node publishes, in canonical order
func (n *Node) GetLocalTLVs() []TLVInfo {
	res := []TLVInfo{}
	n.withCore(func(c *dncp.Core) error {
		c.ForEachLocalTLV(func(t *dncp.LocalTLV) bool {
			res = append(res, NewTLVInfo(t.Attr()))
			return true
		})
		return nil
	})
	return res
}
