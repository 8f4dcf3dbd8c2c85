package common

import "fmt"

// ErrType classifies the failures reported by the codec and protocol layers.
type ErrType uint32

const (
	// KeyNotFound means a lookup by identifier, name or type failed.
	KeyNotFound ErrType = iota
	// Malformed means the input could not be parsed at all.
	Malformed
	// InvalidLength means a TLV had a length its type does not allow.
	InvalidLength
	// TooLarge means an outgoing message exceeded its size budget.
	TooLarge
	// KeyAlreadyExists means an insert collided with an existing entry.
	KeyAlreadyExists
	// Disabled means the target endpoint is not enabled.
	Disabled
)

// DncpErr is the error sentinel returned by fallible operations. It names the
// kind of data involved, the failure class, and the offending key.
type DncpErr struct {
	dataType string
	errType  ErrType
	key      string
}

// NewDncpErr ...
func NewDncpErr(dataType string, errType ErrType, key string) DncpErr {
	return DncpErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error ...
func (e DncpErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case Malformed:
		m = "Malformed"
	case InvalidLength:
		m = "Invalid Length"
	case TooLarge:
		m = "Too Large"
	case KeyAlreadyExists:
		m = "Key Already Exists"
	case Disabled:
		m = "Disabled"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// Type returns the failure class.
func (e DncpErr) Type() ErrType {
	return e.errType
}

// Is checks that an error is a DncpErr and that its class matches t.
func Is(err error, t ErrType) bool {
	dErr, ok := err.(DncpErr)
	return ok && dErr.errType == t
}
