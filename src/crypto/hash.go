// Package crypto provides the digest functions a node can be configured with.
//
// DNCP only needs a collision-resistant digest to detect divergent state. The
// result is truncated to the deployment's hash length by the caller.
package crypto

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/mosaicnetworks/dncp/src/common"
)

// HashFunc computes a digest over data.
type HashFunc func(data []byte) []byte

// MD5 returns the MD5 digest of data. It is the HNCP default.
func MD5(data []byte) []byte {
	h := md5.Sum(data)
	return h[:]
}

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// XXHash64 returns the 64-bit xxhash of data, big-endian. It is not
// collision-resistant against an adversary and is meant for simulations.
func XXHash64(data []byte) []byte {
	res := make([]byte, 8)
	binary.BigEndian.PutUint64(res, xxhash.Sum64(data))
	return res
}

// Size returns the digest length produced by the named function.
func Size(name string) int {
	switch strings.ToLower(name) {
	case "md5":
		return md5.Size
	case "sha256":
		return sha256.Size
	case "xxhash":
		return 8
	}
	return 0
}

// ByName returns the hash function registered under name.
func ByName(name string) (HashFunc, error) {
	switch strings.ToLower(name) {
	case "md5":
		return MD5, nil
	case "sha256":
		return SHA256, nil
	case "xxhash":
		return XXHash64, nil
	}
	return nil, common.NewDncpErr("HashFunc", common.KeyNotFound, name)
}

// Truncate returns the first n bytes of h, zero-extended if h is shorter.
func Truncate(h []byte, n int) []byte {
	res := make([]byte, n)
	copy(res, h)
	return res
}
