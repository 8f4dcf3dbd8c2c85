package proto

import (
	"bytes"
	"fmt"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/tlv"
)

// Verdict is the trust level a node asserts about a certificate digest.
type Verdict uint8

const (
	// Neutral ...
	Neutral Verdict = iota
	// CachedPositive ...
	CachedPositive
	// CachedNegative ...
	CachedNegative
	// ConfiguredPositive ...
	ConfiguredPositive
	// ConfiguredNegative ...
	ConfiguredNegative
	numVerdicts
)

// CNameMaxLen bounds the common name, terminating NUL included.
const CNameMaxLen = 64

var verdictNames = [...]string{
	"neutral",
	"cached-positive",
	"cached-negative",
	"configured-positive",
	"configured-negative",
}

// String ...
func (v Verdict) String() string {
	if v < numVerdicts {
		return verdictNames[v]
	}
	return fmt.Sprintf("verdict-%d", uint8(v))
}

// ParseVerdict is the inverse of String.
func ParseVerdict(s string) (Verdict, error) {
	for i, n := range verdictNames {
		if n == s {
			return Verdict(i), nil
		}
	}
	return 0, common.NewDncpErr("Verdict", common.KeyNotFound, s)
}

// TrustVerdict binds a verdict to a SHA-256 certificate digest and its
// common name.
type TrustVerdict struct {
	Verdict Verdict
	Hash    [32]byte
	CName   string
}

// Attr ...
func (t TrustVerdict) Attr() tlv.Attr {
	v := make([]byte, 36, 36+len(t.CName)+1)
	v[0] = byte(t.Verdict)
	copy(v[4:], t.Hash[:])
	v = append(v, t.CName...)
	v = append(v, 0)
	return tlv.Attr{Type: TypeTrustVerdict, Value: v}
}

// DecodeTrustVerdict requires a NUL-terminated name of at most CNameMaxLen
// bytes.
func DecodeTrustVerdict(a tlv.Attr) (TrustVerdict, error) {
	if a.Type != TypeTrustVerdict {
		return TrustVerdict{}, typeErr(TypeTrustVerdict, a.Type)
	}
	l := len(a.Value)
	if l < 36+1 || l > 36+CNameMaxLen {
		return TrustVerdict{}, lengthErr(a.Type, l)
	}
	if a.Value[l-1] != 0 {
		return TrustVerdict{}, common.NewDncpErr(TypeString(a.Type), common.Malformed, "cname")
	}
	res := TrustVerdict{Verdict: Verdict(a.Value[0])}
	copy(res.Hash[:], a.Value[4:36])
	name := a.Value[36 : l-1]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	res.CName = string(name)
	return res, nil
}
