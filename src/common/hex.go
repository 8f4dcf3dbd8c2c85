package common

import (
	"encoding/hex"
	"fmt"
	"strings"
)

//EncodeToString returns the UPPERCASE string representation of hexBytes with
//the 0X prefix
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0X%X", hexBytes)
}

//DecodeFromString converts a hex string, with or without the 0X prefix, to a
//byte slice
func DecodeFromString(hexString string) ([]byte, error) {
	s := hexString
	if strings.HasPrefix(s, "0X") || strings.HasPrefix(s, "0x") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// ShortRepr returns the lowercase hex form of the first 8 bytes of b. It is
// what log lines use for node identifiers and hashes.
func ShortRepr(b []byte) string {
	if len(b) > 8 {
		b = b[:8]
	}
	return hex.EncodeToString(b)
}
