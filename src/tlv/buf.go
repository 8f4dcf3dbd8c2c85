package tlv

import (
	"strconv"

	"github.com/mosaicnetworks/dncp/src/common"
)

// Buf accumulates sibling attributes into one datagram. A zero limit means
// the buffer is only bounded by what the length field can express.
type Buf struct {
	b     []byte
	limit int
}

// NewBuf ...
func NewBuf(limit int) *Buf {
	return &Buf{limit: limit}
}

// Put appends a. It fails without modifying the buffer if a does not fit the
// 16-bit length field.
func (b *Buf) Put(a Attr) error {
	if len(a.Value) > MaxValueLen {
		return common.NewDncpErr("tlv", common.TooLarge, strconv.Itoa(len(a.Value)))
	}
	b.b = a.AppendTo(b.b)
	return nil
}

// PutRaw appends already-encoded attributes verbatim.
func (b *Buf) PutRaw(raw []byte) {
	b.b = append(b.b, raw...)
}

// Len ...
func (b *Buf) Len() int {
	return len(b.b)
}

// Bytes returns the assembled payload, or a TooLarge error if it exceeds the
// limit.
func (b *Buf) Bytes() ([]byte, error) {
	if b.limit > 0 && len(b.b) > b.limit {
		return nil, common.NewDncpErr("tlv", common.TooLarge, strconv.Itoa(len(b.b))+">"+strconv.Itoa(b.limit))
	}
	return b.b, nil
}
