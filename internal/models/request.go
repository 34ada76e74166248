package models

import (
	"math/big"
	"time"

	"github.com/core-coin/go-core/v2/common"
)

// PendingRequest is an open, not-yet-fulfilled randomness request. Its
// presence in the coordinator implies it has not been fulfilled yet;
// fulfillment removes it atomically with the consumer callback.
type PendingRequest struct {
	// ID is the globally unique, strictly increasing request identifier.
	ID uint64 `json:"id"`
	// SubID is the subscription the request is billed against.
	SubID common.Hash `json:"sub_id"`
	// Sender is the consumer identity that opened the request.
	Sender common.Address `json:"sender"`
	// KeyHash identifies the oracle key the request was made against.
	KeyHash common.Hash `json:"key_hash"`
	// PreSeed commits the request to its parameters.
	PreSeed common.Hash `json:"pre_seed"`
	// Confirmations is the block depth the oracle waits before fulfilling.
	Confirmations uint16 `json:"confirmations"`
	// CallbackGasLimit bounds the resources metered for the consumer callback.
	CallbackGasLimit uint64 `json:"callback_gas_limit"`
	// NumWords is the number of random words the consumer asked for.
	NumWords uint32 `json:"num_words"`
	// ExtraArgs is the opaque blob carrying the payment-currency selector.
	ExtraArgs []byte `json:"extra_args"`
	// CreatedAt is when the request was opened.
	CreatedAt time.Time `json:"created_at"`
}

// RandomnessConsumer is implemented by anything that can receive the result
// of a fulfilled randomness request. The caller address is the identity of
// the invoking coordinator; consumers must reject anything else.
type RandomnessConsumer interface {
	RawFulfillRandomWords(caller common.Address, requestID uint64, words []*big.Int) error
}
