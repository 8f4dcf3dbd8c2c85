package proto

import (
	"testing"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/stretchr/testify/require"
)

var nid = []byte{1, 2, 3, 4}

func TestEndpointIDLength(t *testing.T) {
	a := EndpointID{NodeID: nid, EndpointID: 7}.Attr()
	require.Len(t, a.Value, 8)

	e, err := DecodeEndpointID(a, 4)
	require.NoError(t, err)
	require.Equal(t, uint32(7), e.EndpointID)

	_, err = DecodeEndpointID(a, 8)
	require.True(t, common.Is(err, common.InvalidLength))

	_, err = DecodeEndpointID(NetState(nid), 4)
	require.True(t, common.Is(err, common.Malformed))
}

func TestNodeStateData(t *testing.T) {
	hash := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	data := tlv.Encode(tlv.New(42, []byte("x")))
	a := NodeState{NodeID: nid, UpdateNumber: 0xFFFFFFFF, MsSinceOrigination: 10, Hash: hash, Data: data}.Attr()

	s, err := DecodeNodeState(a, 4, 8)
	require.NoError(t, err)
	require.True(t, s.HasData())
	require.Equal(t, uint32(0xFFFFFFFF), s.UpdateNumber)
	require.Equal(t, hash, s.Hash)
	require.Equal(t, data, s.Data)

	short := NodeState{NodeID: nid, Hash: hash}.Attr()
	s, err = DecodeNodeState(short, 4, 8)
	require.NoError(t, err)
	require.False(t, s.HasData())

	_, err = DecodeNodeState(tlv.Attr{Type: TypeNodeState, Value: short.Value[:15]}, 4, 8)
	require.True(t, common.Is(err, common.InvalidLength))
}

func TestNeighborAndKeepalive(t *testing.T) {
	n := Neighbor{NodeID: nid, NeighborEndpointID: 3, EndpointID: 1}
	got, err := DecodeNeighbor(n.Attr(), 4)
	require.NoError(t, err)
	require.Equal(t, n, got)

	_, err = DecodeNeighbor(n.Attr(), 5)
	require.Error(t, err)

	k, err := DecodeKeepaliveInterval(KeepaliveInterval{EndpointID: 2, IntervalMs: 5000}.Attr())
	require.NoError(t, err)
	require.Equal(t, uint32(5000), k.IntervalMs)
}

func TestReqNodeStateLength(t *testing.T) {
	id, err := DecodeReqNodeState(ReqNodeState(nid), 4)
	require.NoError(t, err)
	require.Equal(t, nid, id)

	_, err = DecodeReqNodeState(ReqNodeState(nid), 8)
	require.True(t, common.Is(err, common.InvalidLength))
}

func TestTrustVerdict(t *testing.T) {
	v := TrustVerdict{Verdict: ConfiguredPositive, CName: "router.home"}
	v.Hash[0] = 0xab
	got, err := DecodeTrustVerdict(v.Attr())
	require.NoError(t, err)
	require.Equal(t, v, got)
	require.Equal(t, "configured-positive", got.Verdict.String())

	p, err := ParseVerdict("cached-negative")
	require.NoError(t, err)
	require.Equal(t, CachedNegative, p)

	// missing terminator
	a := v.Attr()
	a.Value = a.Value[:len(a.Value)-1]
	_, err = DecodeTrustVerdict(a)
	require.True(t, common.Is(err, common.Malformed))

	// name too long
	long := TrustVerdict{CName: string(make([]byte, CNameMaxLen))}
	_, err = DecodeTrustVerdict(long.Attr())
	require.True(t, common.Is(err, common.InvalidLength))
}
