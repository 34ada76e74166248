package coordinator

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/fortuna/internal/models"
)

// CreateSubscription allocates a fresh subscription owned by the caller.
// Anyone can create a subscription; the id is derived from the instance
// entropy, the caller and a monotonic nonce so it is globally unique.
func (c *Coordinator) CreateSubscription(caller common.Address) (common.Hash, error) {
	if err := c.begin(); err != nil {
		return common.Hash{}, err
	}
	defer c.end()

	c.subNonce++
	subID := c.deriveSubID(caller, c.subNonce)
	sub := &models.Subscription{
		ID:            subID,
		Owner:         caller,
		NativeBalance: new(big.Int),
		TokenBalance:  new(big.Int),
	}
	c.subs[subID] = sub
	c.subIDs.Add(subID)

	c.logger.Debug("Subscription created ", "sub ", subID.Hex(), " owner ", caller.Hex())
	c.sink.Emit(models.EventSubscriptionCreated, models.SubscriptionEventPayload{
		SubID: subID.Hex(),
		Owner: caller.Hex(),
	})
	return subID, nil
}

// FundSubscription moves funds from the caller's bank account into the
// subscription balance of the given currency. Funding is not restricted to
// the subscription owner.
func (c *Coordinator) FundSubscription(caller common.Address, subID common.Hash, cur models.Currency, amount *big.Int) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	sub, ok := c.subs[subID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, subID.Hex())
	}
	if err := c.bank.Transfer(caller, c.identity, cur, amount); err != nil {
		return fmt.Errorf("failed to collect funds: %w", err)
	}
	sub.Balance(cur).Add(sub.Balance(cur), amount)
	c.total(cur).Add(c.total(cur), amount)

	c.sink.Emit(models.EventSubscriptionFunded, models.SubscriptionEventPayload{
		SubID:    subID.Hex(),
		Amount:   amount.String(),
		Currency: cur.String(),
	})
	return nil
}

// AddConsumer authorizes a consumer on the subscription. Adding an already
// active consumer is a no-op; a consumer that was removed earlier keeps its
// old nonce when re-added.
func (c *Coordinator) AddConsumer(caller common.Address, subID common.Hash, consumer common.Address) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	sub, ok := c.subs[subID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, subID.Hex())
	}
	if sub.Owner != caller {
		return fmt.Errorf("%w: %s", ErrNotSubscriptionOwner, caller.Hex())
	}
	key := consumerKey{consumer, subID}
	if auth, ok := c.auths[key]; ok && auth.active {
		return nil
	}
	if len(sub.Consumers) >= models.MaxConsumers {
		return fmt.Errorf("%w: limit %d", ErrTooManyConsumers, models.MaxConsumers)
	}
	if auth, ok := c.auths[key]; ok {
		auth.active = true
	} else {
		c.auths[key] = &consumerAuth{active: true}
	}
	sub.Consumers = append(sub.Consumers, consumer)

	c.sink.Emit(models.EventConsumerAdded, models.SubscriptionEventPayload{
		SubID:    subID.Hex(),
		Consumer: consumer.Hex(),
	})
	return nil
}

// RemoveConsumer revokes a consumer's authorization. It is rejected while
// the consumer still has requests in flight, so no pending request can
// outlive its authorization record.
func (c *Coordinator) RemoveConsumer(caller common.Address, subID common.Hash, consumer common.Address) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	sub, ok := c.subs[subID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, subID.Hex())
	}
	if sub.Owner != caller {
		return fmt.Errorf("%w: %s", ErrNotSubscriptionOwner, caller.Hex())
	}
	key := consumerKey{consumer, subID}
	auth, ok := c.auths[key]
	if !ok || !auth.active {
		return fmt.Errorf("%w: %s", ErrUnknownConsumer, consumer.Hex())
	}
	if auth.pendingRequests > 0 {
		return fmt.Errorf("%w: %d in flight", ErrPendingRequestsExist, auth.pendingRequests)
	}
	auth.active = false
	for i, addr := range sub.Consumers {
		if addr == consumer {
			last := len(sub.Consumers) - 1
			sub.Consumers[i] = sub.Consumers[last]
			sub.Consumers = sub.Consumers[:last]
			break
		}
	}

	c.sink.Emit(models.EventConsumerRemoved, models.SubscriptionEventPayload{
		SubID:    subID.Hex(),
		Consumer: consumer.Hex(),
	})
	return nil
}

// RequestOwnershipTransfer nominates a successor owner. The transfer takes
// effect only when the nominee accepts it.
func (c *Coordinator) RequestOwnershipTransfer(caller common.Address, subID common.Hash, newOwner common.Address) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	sub, ok := c.subs[subID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, subID.Hex())
	}
	if sub.Owner != caller {
		return fmt.Errorf("%w: %s", ErrNotSubscriptionOwner, caller.Hex())
	}
	if newOwner == sub.Owner {
		return ErrSelfTransfer
	}
	sub.PendingOwner = newOwner

	c.sink.Emit(models.EventOwnershipTransferRequested, models.SubscriptionEventPayload{
		SubID: subID.Hex(),
		Owner: newOwner.Hex(),
	})
	return nil
}

// AcceptOwnershipTransfer completes a previously requested transfer. Only
// the nominated identity may accept.
func (c *Coordinator) AcceptOwnershipTransfer(caller common.Address, subID common.Hash) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	sub, ok := c.subs[subID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, subID.Hex())
	}
	if sub.PendingOwner == (common.Address{}) || sub.PendingOwner != caller {
		return fmt.Errorf("%w: %s", ErrNotRequestedOwner, caller.Hex())
	}
	sub.Owner = caller
	sub.PendingOwner = common.Address{}

	c.sink.Emit(models.EventOwnershipTransferred, models.SubscriptionEventPayload{
		SubID: subID.Hex(),
		Owner: caller.Hex(),
	})
	return nil
}

// CancelSubscription destroys the subscription and refunds its remaining
// balances to the given recipient. Rejected while any of its consumers has
// requests in flight.
func (c *Coordinator) CancelSubscription(caller common.Address, subID common.Hash, to common.Address) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	sub, ok := c.subs[subID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscription, subID.Hex())
	}
	if sub.Owner != caller {
		return fmt.Errorf("%w: %s", ErrNotSubscriptionOwner, caller.Hex())
	}
	for _, consumer := range sub.Consumers {
		if auth, ok := c.auths[consumerKey{consumer, subID}]; ok && auth.pendingRequests > 0 {
			return fmt.Errorf("%w: consumer %s", ErrPendingRequestsExist, consumer.Hex())
		}
	}
	for _, cur := range []models.Currency{models.CurrencyNative, models.CurrencyToken} {
		balance := new(big.Int).Set(sub.Balance(cur))
		if balance.Sign() == 0 {
			continue
		}
		c.total(cur).Sub(c.total(cur), balance)
		if err := c.bank.Transfer(c.identity, to, cur, balance); err != nil {
			c.total(cur).Add(c.total(cur), balance)
			return fmt.Errorf("failed to refund %s balance: %w", cur, err)
		}
		sub.Balance(cur).SetInt64(0)
	}
	for _, consumer := range sub.Consumers {
		delete(c.auths, consumerKey{consumer, subID})
	}
	c.subIDs.Remove(subID)
	delete(c.subs, subID)

	c.sink.Emit(models.EventSubscriptionCanceled, models.SubscriptionEventPayload{
		SubID: subID.Hex(),
		Owner: to.Hex(),
	})
	return nil
}

// Withdraw pays the whole accrued fee pool of a currency out to the
// coordinator owner. The pool and the ledger total are decremented before
// the external transfer so a re-entrant call cannot withdraw twice; a
// failed transfer restores them.
func (c *Coordinator) Withdraw(caller common.Address, cur models.Currency) (*big.Int, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	if caller != c.owner {
		return nil, fmt.Errorf("%w: %s", ErrNotCoordinatorOwner, caller.Hex())
	}
	pool := c.withdrawable(cur)
	if pool.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoWithdrawableBalance, cur)
	}
	amount := new(big.Int).Set(pool)
	pool.SetInt64(0)
	c.total(cur).Sub(c.total(cur), amount)
	if err := c.bank.Transfer(c.identity, caller, cur, amount); err != nil {
		pool.Set(amount)
		c.total(cur).Add(c.total(cur), amount)
		return nil, fmt.Errorf("failed to withdraw: %w", err)
	}

	c.sink.Emit(models.EventFundsWithdrawn, models.SubscriptionEventPayload{
		Owner:    caller.Hex(),
		Amount:   amount.String(),
		Currency: cur.String(),
	})
	return amount, nil
}

// Reconcile compares the recorded ledger total of a currency against the
// funds the bank actually holds for the coordinator. A recorded total above
// the held funds is a ledger defect and fails fatally; held funds above the
// recorded total are swept to the recovery recipient.
func (c *Coordinator) Reconcile(cur models.Currency) (*big.Int, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	recorded := c.total(cur)
	external := c.bank.Balance(c.identity, cur)
	if recorded.Cmp(external) > 0 {
		c.logger.Error("Ledger total exceeds held funds ", "currency ", cur.String(),
			" recorded ", recorded.String(), " held ", external.String())
		return nil, fmt.Errorf("%w: recorded %s, held %s %s",
			ErrBalanceInvariantViolated, recorded, external, cur)
	}
	surplus := new(big.Int).Sub(external, recorded)
	if surplus.Sign() == 0 {
		return surplus, nil
	}
	if err := c.bank.Transfer(c.identity, c.recovery, cur, surplus); err != nil {
		return nil, fmt.Errorf("failed to sweep surplus: %w", err)
	}

	c.sink.Emit(models.EventFundsRecovered, models.SubscriptionEventPayload{
		Owner:    c.recovery.Hex(),
		Amount:   surplus.String(),
		Currency: cur.String(),
	})
	return surplus, nil
}

// ListSubscriptions returns a page of active subscription ids. The order is
// unspecified and changes after cancellations. A max of zero returns all
// remaining ids.
func (c *Coordinator) ListSubscriptions(start, max int) ([]common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.subIDs.Page(start, max)
	if !ok {
		return nil, fmt.Errorf("%w: start %d, count %d", ErrIndexOutOfRange, start, c.subIDs.Len())
	}
	return page, nil
}

// GetSubscription returns a copy of the subscription record.
func (c *Coordinator) GetSubscription(subID common.Hash) (*models.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[subID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, subID.Hex())
	}
	return sub.Clone(), nil
}

// SubscriptionCount returns the number of active subscriptions.
func (c *Coordinator) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subIDs.Len()
}

// TotalBalance returns the recorded ledger total for a currency.
func (c *Coordinator) TotalBalance(cur models.Currency) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.total(cur))
}

// WithdrawableBalance returns the accrued fee pool for a currency.
func (c *Coordinator) WithdrawableBalance(cur models.Currency) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.withdrawable(cur))
}

func (c *Coordinator) deriveSubID(caller common.Address, nonce uint64) common.Hash {
	h := sha256.New()
	h.Write(c.entropy[:])
	h.Write(caller.Bytes())
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])
	return common.BytesToHash(h.Sum(nil))
}
