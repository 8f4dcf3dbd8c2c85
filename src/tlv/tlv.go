// Package tlv implements the type-length-value encoding shared by every
// message and node-data blob.
//
// Each attribute is a 16-bit type, a 16-bit length, and length bytes of value,
// followed by zero padding up to the next 4-byte boundary. Multi-byte integers
// are big-endian. The length field does not include the header or the
// padding.
package tlv

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mosaicnetworks/dncp/src/common"
)

const (
	// HeaderLen is the size of the type and length fields.
	HeaderLen = 4
	// Align is the boundary every attribute is padded to.
	Align = 4
	// MaxValueLen is the largest value the 16-bit length field can describe.
	MaxValueLen = 0xFFFF
)

// Attr is a single TLV attribute. Value may alias the buffer it was parsed
// from.
type Attr struct {
	Type  uint16
	Value []byte
}

// New returns an attribute holding a copy of value.
func New(t uint16, value []byte) Attr {
	v := make([]byte, len(value))
	copy(v, value)
	return Attr{Type: t, Value: v}
}

// PadLen rounds n up to the alignment boundary.
func PadLen(n int) int {
	return (n + Align - 1) &^ (Align - 1)
}

// RawLen is the encoded size without trailing padding.
func (a Attr) RawLen() int {
	return HeaderLen + len(a.Value)
}

// Len is the encoded size including trailing padding.
func (a Attr) Len() int {
	return PadLen(a.RawLen())
}

// AppendTo appends the padded encoding of a to b.
func (a Attr) AppendTo(b []byte) []byte {
	var hdr [HeaderLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], a.Type)
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(a.Value)))
	b = append(b, hdr[:]...)
	b = append(b, a.Value...)
	for i := a.RawLen(); i < a.Len(); i++ {
		b = append(b, 0)
	}
	return b
}

// Bytes returns the padded encoding of a.
func (a Attr) Bytes() []byte {
	return a.AppendTo(make([]byte, 0, a.Len()))
}

// Key is the unpadded encoding. Byte order over keys is the canonical
// attribute order: type first, then length, then value.
func (a Attr) Key() []byte {
	b := a.AppendTo(make([]byte, 0, a.Len()))
	return b[:a.RawLen()]
}

// String ...
func (a Attr) String() string {
	return fmt.Sprintf("tlv{%d/%d}", a.Type, len(a.Value))
}

// Compare orders attributes canonically.
func Compare(a, b Attr) int {
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	if len(a.Value) != len(b.Value) {
		if len(a.Value) < len(b.Value) {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.Value, b.Value)
}

// Equal reports structural equality.
func Equal(a, b Attr) bool {
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}

// Next decodes the attribute at the start of buf and returns it with the
// offset of the attribute that follows. A missing final padding is tolerated.
func Next(buf []byte) (Attr, int, error) {
	if len(buf) < HeaderLen {
		return Attr{}, 0, common.NewDncpErr("tlv", common.Malformed, fmt.Sprintf("header %d", len(buf)))
	}
	t := binary.BigEndian.Uint16(buf[0:2])
	l := int(binary.BigEndian.Uint16(buf[2:4]))
	if HeaderLen+l > len(buf) {
		return Attr{}, 0, common.NewDncpErr("tlv", common.Malformed, fmt.Sprintf("type %d length %d", t, l))
	}
	a := Attr{Type: t, Value: buf[HeaderLen : HeaderLen+l]}
	next := PadLen(HeaderLen + l)
	if next > len(buf) {
		next = len(buf)
	}
	return a, next, nil
}

// ForEach calls fn for every well-formed attribute in buf, in order, together
// with its offset. Iteration stops early when fn returns false, and at the
// first truncated attribute, in which case the error is returned.
func ForEach(buf []byte, fn func(a Attr, off int) bool) error {
	off := 0
	for off < len(buf) {
		a, n, err := Next(buf[off:])
		if err != nil {
			return err
		}
		if !fn(a, off) {
			return nil
		}
		off += n
	}
	return nil
}

// Parse returns every well-formed attribute in buf. Attributes decoded before
// a truncation are returned together with the error.
func Parse(buf []byte) ([]Attr, error) {
	var res []Attr
	err := ForEach(buf, func(a Attr, _ int) bool {
		res = append(res, a)
		return true
	})
	return res, err
}

// Encode concatenates the padded encodings of attrs.
func Encode(attrs ...Attr) []byte {
	size := 0
	for _, a := range attrs {
		size += a.Len()
	}
	b := make([]byte, 0, size)
	for _, a := range attrs {
		b = a.AppendTo(b)
	}
	return b
}
