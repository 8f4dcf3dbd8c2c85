package tlv

import (
	"sort"
	"testing"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/stretchr/testify/require"
)

func TestEncodePadding(t *testing.T) {
	cases := []struct {
		value []byte
		len   int
	}{
		{nil, 4},
		{[]byte{1}, 8},
		{[]byte{1, 2, 3, 4}, 8},
		{[]byte{1, 2, 3, 4, 5}, 12},
	}
	for _, c := range cases {
		a := Attr{Type: 7, Value: c.value}
		b := a.Bytes()
		require.Len(t, b, c.len)
		require.Equal(t, c.len, a.Len())
		require.Equal(t, []byte{0, 7}, b[0:2])
		require.Equal(t, uint16(len(c.value)), uint16(b[2])<<8|uint16(b[3]))
	}
}

func TestIterateTruncated(t *testing.T) {
	buf := Encode(New(1, nil), New(2, []byte{0xaa}), New(3, []byte{1, 2, 3, 4}))

	attrs, err := Parse(buf)
	require.NoError(t, err)
	require.Len(t, attrs, 3)

	// a3 header complete but not its body
	attrs, err = Parse(buf[:len(buf)-3])
	require.Error(t, err)
	require.True(t, common.Is(err, common.Malformed))
	require.Len(t, attrs, 2)

	// a3 header incomplete
	attrs, err = Parse(buf[:len(buf)-6])
	require.Error(t, err)
	require.Len(t, attrs, 2)
}

func TestMissingFinalPadding(t *testing.T) {
	buf := New(9, []byte{1}).Bytes()
	attrs, err := Parse(buf[:5])
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	require.Equal(t, []byte{1}, attrs[0].Value)
}

func TestCanonicalOrder(t *testing.T) {
	attrs := []Attr{
		New(3, []byte{1}),
		New(1, []byte{9, 9}),
		New(1, []byte{5}),
		New(1, []byte{4}),
		New(2, nil),
	}
	sort.Slice(attrs, func(i, j int) bool { return Compare(attrs[i], attrs[j]) < 0 })

	require.Equal(t, []byte{4}, attrs[0].Value)
	require.Equal(t, []byte{5}, attrs[1].Value)
	require.Equal(t, []byte{9, 9}, attrs[2].Value)
	require.Equal(t, uint16(2), attrs[3].Type)
	require.Equal(t, uint16(3), attrs[4].Type)

	// key order agrees with Compare
	for i := 1; i < len(attrs); i++ {
		require.True(t, string(attrs[i-1].Key()) < string(attrs[i].Key()))
	}
}

func TestBufLimit(t *testing.T) {
	b := NewBuf(8)
	require.NoError(t, b.Put(New(1, []byte{1, 2, 3, 4})))
	out, err := b.Bytes()
	require.NoError(t, err)
	require.Len(t, out, 8)

	require.NoError(t, b.Put(New(2, nil)))
	_, err = b.Bytes()
	require.True(t, common.Is(err, common.TooLarge))

	require.Error(t, NewBuf(0).Put(Attr{Type: 1, Value: make([]byte, MaxValueLen+1)}))
}
