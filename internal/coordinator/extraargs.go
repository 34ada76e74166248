package coordinator

import (
	"bytes"
	"fmt"
)

// extraArgsV1Tag prefixes every encoded ExtraArgs blob so that future
// argument layouts can be told apart from the current one.
var extraArgsV1Tag = []byte{0xf7, 0x01, 0xea, 0x01}

// ExtraArgs is the decoded form of a request's opaque extra-arguments blob.
// It currently carries only the payment-currency selector.
type ExtraArgs struct {
	// NativePayment selects billing in the native coin instead of the
	// payment token.
	NativePayment bool
}

// Encode serializes the arguments as tag || selector byte.
func (a ExtraArgs) Encode() []byte {
	out := make([]byte, len(extraArgsV1Tag)+1)
	copy(out, extraArgsV1Tag)
	if a.NativePayment {
		out[len(extraArgsV1Tag)] = 1
	}
	return out
}

// DecodeExtraArgs parses an extra-arguments blob. An empty blob is valid
// and selects the default, token-denominated payment.
func DecodeExtraArgs(blob []byte) (ExtraArgs, error) {
	if len(blob) == 0 {
		return ExtraArgs{}, nil
	}
	if len(blob) != len(extraArgsV1Tag)+1 || !bytes.HasPrefix(blob, extraArgsV1Tag) {
		return ExtraArgs{}, fmt.Errorf("%w: %x", ErrMalformedExtraArgs, blob)
	}
	return ExtraArgs{NativePayment: blob[len(extraArgsV1Tag)] == 1}, nil
}
