package coordinator

import "errors"

var (
	// ErrReentrant is returned when a mutating operation is entered while
	// another one is already in progress, typically from within a
	// fulfillment callback.
	ErrReentrant = errors.New("reentrant call")

	ErrUnknownSubscription  = errors.New("unknown subscription")
	ErrNotSubscriptionOwner = errors.New("caller is not the subscription owner")
	ErrTooManyConsumers     = errors.New("too many consumers")
	ErrUnknownConsumer      = errors.New("unknown consumer")
	ErrNotRequestedOwner    = errors.New("caller is not the requested owner")
	ErrSelfTransfer         = errors.New("cannot transfer subscription to current owner")
	ErrPendingRequestsExist = errors.New("subscription has pending requests")
	ErrIndexOutOfRange      = errors.New("start index out of range")

	ErrNoWithdrawableBalance = errors.New("no withdrawable balance")
	// ErrBalanceInvariantViolated signals that the recorded ledger total
	// exceeds the funds actually held. This is a ledger-logic defect, not
	// a caller mistake, and is not recoverable.
	ErrBalanceInvariantViolated = errors.New("balance invariant violated")
	ErrNotCoordinatorOwner      = errors.New("caller is not the coordinator owner")

	ErrUnauthorizedConsumer = errors.New("consumer not authorized for subscription")
	ErrUnknownRequest       = errors.New("unknown request")
	ErrWordCountMismatch    = errors.New("word count mismatch")
	ErrInsufficientBalance  = errors.New("insufficient subscription balance")
	ErrMalformedExtraArgs   = errors.New("malformed extra args")
)
