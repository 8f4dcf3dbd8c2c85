// Package proto defines the message-level TLV catalogue and the typed views
// over each attribute.
//
// Node identifiers and hashes are variable in length across deployments but
// fixed within one. Decoders therefore take the identifier length (and the
// hash length where relevant) as parameters and reject attributes whose
// length does not match.
package proto

import (
	"encoding/binary"
	"fmt"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/tlv"
)

// Message and node-data TLV types.
const (
	TypeReqNetState       uint16 = 1
	TypeReqNodeState      uint16 = 2
	TypeEndpointID        uint16 = 3
	TypeNetState          uint16 = 4
	TypeNodeState         uint16 = 5
	TypeNeighbor          uint16 = 8
	TypeKeepaliveInterval uint16 = 9
	TypeTrustVerdict      uint16 = 10
)

// TypeString returns a printable name for t.
func TypeString(t uint16) string {
	switch t {
	case TypeReqNetState:
		return "REQ-NET-STATE"
	case TypeReqNodeState:
		return "REQ-NODE-STATE"
	case TypeEndpointID:
		return "ENDPOINT-ID"
	case TypeNetState:
		return "NET-STATE"
	case TypeNodeState:
		return "NODE-STATE"
	case TypeNeighbor:
		return "NEIGHBOR"
	case TypeKeepaliveInterval:
		return "KEEPALIVE-INTERVAL"
	case TypeTrustVerdict:
		return "TRUST-VERDICT"
	default:
		return fmt.Sprintf("TLV-%d", t)
	}
}

func lengthErr(t uint16, got int) error {
	return common.NewDncpErr(TypeString(t), common.InvalidLength, fmt.Sprintf("%d", got))
}

func typeErr(want uint16, got uint16) error {
	return common.NewDncpErr(TypeString(want), common.Malformed, fmt.Sprintf("type %d", got))
}

func cp(b []byte) []byte {
	r := make([]byte, len(b))
	copy(r, b)
	return r
}

/*******************************************************************************
Requests
*******************************************************************************/

// ReqNetState builds the empty network-state request.
func ReqNetState() tlv.Attr {
	return tlv.Attr{Type: TypeReqNetState}
}

// ReqNodeState builds a node-state request for the given node identifier.
func ReqNodeState(nodeID []byte) tlv.Attr {
	return tlv.New(TypeReqNodeState, nodeID)
}

// DecodeReqNodeState returns the requested node identifier.
func DecodeReqNodeState(a tlv.Attr, niLen int) ([]byte, error) {
	if a.Type != TypeReqNodeState {
		return nil, typeErr(TypeReqNodeState, a.Type)
	}
	if len(a.Value) != niLen {
		return nil, lengthErr(a.Type, len(a.Value))
	}
	return a.Value, nil
}

/*******************************************************************************
Endpoint identifier
*******************************************************************************/

// EndpointID identifies the sending endpoint of a message.
type EndpointID struct {
	NodeID     []byte
	EndpointID uint32
}

// Attr ...
func (e EndpointID) Attr() tlv.Attr {
	v := make([]byte, len(e.NodeID)+4)
	copy(v, e.NodeID)
	binary.BigEndian.PutUint32(v[len(e.NodeID):], e.EndpointID)
	return tlv.Attr{Type: TypeEndpointID, Value: v}
}

// DecodeEndpointID ...
func DecodeEndpointID(a tlv.Attr, niLen int) (EndpointID, error) {
	if a.Type != TypeEndpointID {
		return EndpointID{}, typeErr(TypeEndpointID, a.Type)
	}
	if len(a.Value) != niLen+4 {
		return EndpointID{}, lengthErr(a.Type, len(a.Value))
	}
	return EndpointID{
		NodeID:     cp(a.Value[:niLen]),
		EndpointID: binary.BigEndian.Uint32(a.Value[niLen:]),
	}, nil
}

/*******************************************************************************
Network state
*******************************************************************************/

// NetState builds the network hash announcement.
func NetState(hash []byte) tlv.Attr {
	return tlv.New(TypeNetState, hash)
}

// DecodeNetState returns the announced network hash.
func DecodeNetState(a tlv.Attr, hLen int) ([]byte, error) {
	if a.Type != TypeNetState {
		return nil, typeErr(TypeNetState, a.Type)
	}
	if len(a.Value) != hLen {
		return nil, lengthErr(a.Type, len(a.Value))
	}
	return a.Value, nil
}

/*******************************************************************************
Node state
*******************************************************************************/

// NodeState summarises one node's published data. Data is nil when only the
// summary is carried.
type NodeState struct {
	NodeID             []byte
	UpdateNumber       uint32
	MsSinceOrigination uint32
	Hash               []byte
	Data               []byte
}

// HasData reports whether the attribute carried the node's TLV payload.
func (s NodeState) HasData() bool {
	return len(s.Data) > 0
}

// Attr ...
func (s NodeState) Attr() tlv.Attr {
	n := len(s.NodeID)
	v := make([]byte, n+8+len(s.Hash)+len(s.Data))
	copy(v, s.NodeID)
	binary.BigEndian.PutUint32(v[n:], s.UpdateNumber)
	binary.BigEndian.PutUint32(v[n+4:], s.MsSinceOrigination)
	copy(v[n+8:], s.Hash)
	copy(v[n+8+len(s.Hash):], s.Data)
	return tlv.Attr{Type: TypeNodeState, Value: v}
}

// NodeStateLen is the encoded value length of a node state without data.
func NodeStateLen(niLen, hLen int) int {
	return niLen + 8 + hLen
}

// DecodeNodeState returns a view over a. Data aliases a.Value.
func DecodeNodeState(a tlv.Attr, niLen, hLen int) (NodeState, error) {
	if a.Type != TypeNodeState {
		return NodeState{}, typeErr(TypeNodeState, a.Type)
	}
	min := NodeStateLen(niLen, hLen)
	if len(a.Value) < min {
		return NodeState{}, lengthErr(a.Type, len(a.Value))
	}
	s := NodeState{
		NodeID:             cp(a.Value[:niLen]),
		UpdateNumber:       binary.BigEndian.Uint32(a.Value[niLen:]),
		MsSinceOrigination: binary.BigEndian.Uint32(a.Value[niLen+4:]),
		Hash:               cp(a.Value[niLen+8 : min]),
	}
	if len(a.Value) > min {
		s.Data = a.Value[min:]
	}
	return s, nil
}

/*******************************************************************************
Neighbor
*******************************************************************************/

// Neighbor announces that the local endpoint EndpointID hears the peer
// NodeID on its endpoint NeighborEndpointID.
type Neighbor struct {
	NodeID             []byte
	NeighborEndpointID uint32
	EndpointID         uint32
}

// Attr ...
func (n Neighbor) Attr() tlv.Attr {
	l := len(n.NodeID)
	v := make([]byte, l+8)
	copy(v, n.NodeID)
	binary.BigEndian.PutUint32(v[l:], n.NeighborEndpointID)
	binary.BigEndian.PutUint32(v[l+4:], n.EndpointID)
	return tlv.Attr{Type: TypeNeighbor, Value: v}
}

// DecodeNeighbor ...
func DecodeNeighbor(a tlv.Attr, niLen int) (Neighbor, error) {
	if a.Type != TypeNeighbor {
		return Neighbor{}, typeErr(TypeNeighbor, a.Type)
	}
	if len(a.Value) != niLen+8 {
		return Neighbor{}, lengthErr(a.Type, len(a.Value))
	}
	return Neighbor{
		NodeID:             cp(a.Value[:niLen]),
		NeighborEndpointID: binary.BigEndian.Uint32(a.Value[niLen:]),
		EndpointID:         binary.BigEndian.Uint32(a.Value[niLen+4:]),
	}, nil
}

/*******************************************************************************
Keepalive interval
*******************************************************************************/

// KeepaliveInterval advertises a non-default keepalive interval for one
// endpoint. EndpointID zero applies to every endpoint of the node.
type KeepaliveInterval struct {
	EndpointID uint32
	IntervalMs uint32
}

// Attr ...
func (k KeepaliveInterval) Attr() tlv.Attr {
	v := make([]byte, 8)
	binary.BigEndian.PutUint32(v, k.EndpointID)
	binary.BigEndian.PutUint32(v[4:], k.IntervalMs)
	return tlv.Attr{Type: TypeKeepaliveInterval, Value: v}
}

// DecodeKeepaliveInterval ...
func DecodeKeepaliveInterval(a tlv.Attr) (KeepaliveInterval, error) {
	if a.Type != TypeKeepaliveInterval {
		return KeepaliveInterval{}, typeErr(TypeKeepaliveInterval, a.Type)
	}
	if len(a.Value) != 8 {
		return KeepaliveInterval{}, lengthErr(a.Type, len(a.Value))
	}
	return KeepaliveInterval{
		EndpointID: binary.BigEndian.Uint32(a.Value),
		IntervalMs: binary.BigEndian.Uint32(a.Value[4:]),
	}, nil
}
