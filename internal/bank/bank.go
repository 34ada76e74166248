// Package bank keeps the external funds of the system: plain per-account,
// per-currency balance bookkeeping. It stands in for the real token and
// native-coin transfer mechanics, which are out of scope beyond balances.
package bank

import (
	"errors"
	"math/big"
	"sync"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/fortuna/internal/models"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferRejected  = errors.New("transfer rejected by recipient")
	ErrInvalidAmount     = errors.New("invalid amount")
)

type accountKey struct {
	addr common.Address
	cur  models.Currency
}

type Bank struct {
	mu       sync.Mutex
	balances map[accountKey]*big.Int
	// rejecting accounts refuse incoming transfers, the way a contract
	// without a receive function would.
	rejecting map[common.Address]bool
}

func New() *Bank {
	return &Bank{
		balances:  make(map[accountKey]*big.Int),
		rejecting: make(map[common.Address]bool),
	}
}

// Mint credits newly created funds to an account. Used to seed accounts at
// bootstrap and by tests.
func (b *Bank) Mint(addr common.Address, cur models.Currency, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(addr, cur, amount)
}

// Balance returns a copy of the account balance for the given currency.
func (b *Bank) Balance(addr common.Address, cur models.Currency) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.balances[accountKey{addr, cur}]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Transfer moves amount from one account to another. The debit and credit
// happen atomically under the bank lock.
func (b *Bank) Transfer(from, to common.Address, cur models.Currency, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejecting[to] {
		return ErrTransferRejected
	}
	key := accountKey{from, cur}
	bal, ok := b.balances[key]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	bal.Sub(bal, amount)
	b.credit(to, cur, amount)
	return nil
}

// SetRejecting marks an account as refusing incoming transfers.
func (b *Bank) SetRejecting(addr common.Address, rejecting bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejecting[addr] = rejecting
}

func (b *Bank) credit(addr common.Address, cur models.Currency, amount *big.Int) {
	key := accountKey{addr, cur}
	if bal, ok := b.balances[key]; ok {
		bal.Add(bal, amount)
		return
	}
	b.balances[key] = new(big.Int).Set(amount)
}
