package models

import (
	"math/big"

	"github.com/core-coin/go-core/v2/common"
)

// MaxConsumers is the upper bound on the number of consumers that can be
// authorized on a single subscription.
const MaxConsumers = 100

// Subscription is a prepaid billing account against which authorized
// consumers open randomness requests. Balances are held in the smallest
// unit of the respective currency and never go negative.
type Subscription struct {
	// ID is the unique identifier of the subscription.
	ID common.Hash `json:"id"`
	// Owner is the identity that controls consumer authorization and cancellation.
	Owner common.Address `json:"owner"`
	// PendingOwner is the nominated successor of a two-phase ownership
	// transfer. Zero when no transfer is in flight.
	PendingOwner common.Address `json:"pending_owner"`
	// Consumers is the ordered list of authorized consumer identities.
	Consumers []common.Address `json:"consumers"`
	// NativeBalance is the prepaid XCB balance.
	NativeBalance *big.Int `json:"native_balance"`
	// TokenBalance is the prepaid CTN balance.
	TokenBalance *big.Int `json:"token_balance"`
	// RequestCount is the number of randomness requests ever opened
	// against this subscription.
	RequestCount uint64 `json:"request_count"`
}

// Balance returns the subscription balance for the given currency.
func (s *Subscription) Balance(cur Currency) *big.Int {
	if cur == CurrencyNative {
		return s.NativeBalance
	}
	return s.TokenBalance
}

// Clone returns a deep copy, so callers can hand subscriptions out of the
// ledger without exposing its internal state.
func (s *Subscription) Clone() *Subscription {
	cp := &Subscription{
		ID:            s.ID,
		Owner:         s.Owner,
		PendingOwner:  s.PendingOwner,
		Consumers:     append([]common.Address(nil), s.Consumers...),
		NativeBalance: new(big.Int).Set(s.NativeBalance),
		TokenBalance:  new(big.Int).Set(s.TokenBalance),
		RequestCount:  s.RequestCount,
	}
	return cp
}
