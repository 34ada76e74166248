// Package coordinator implements the randomness-oracle core: the
// subscription ledger with its consumer authorizations (subscriptions.go)
// and the request/fulfillment protocol with metered billing (this file).
// Both operate on the same state under a single serialization mutex and a
// shared re-entrancy flag.
package coordinator

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/fortuna/internal/bank"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/pkg/enumset"
	"github.com/core-coin/fortuna/pkg/logger"
)

// Config carries the construction-time parameters of the coordinator.
type Config struct {
	// Identity is the account that holds the ledger's funds in the bank.
	Identity common.Address
	// Owner is the operator identity allowed to withdraw accrued fees.
	Owner common.Address
	// Recovery receives surplus funds swept during reconciliation.
	Recovery common.Address
	// BaseFee is the flat fulfillment fee in the smallest native unit.
	BaseFee *big.Int
	// UnitCost is the native cost of one consumed gas unit.
	UnitCost *big.Int
	// TokenPerNative converts native-denominated fees into the payment
	// token when a request selects token billing.
	TokenPerNative *big.Int
	// Meter measures callback resource consumption. Nil selects the
	// wall-clock meter.
	Meter GasMeter
}

type consumerKey struct {
	consumer common.Address
	subID    common.Hash
}

// consumerAuth is the per-(consumer, subscription) authorization record.
// The nonce survives deactivation so re-adding a consumer never reuses a
// pre-seed.
type consumerAuth struct {
	active          bool
	nonce           uint64
	pendingRequests uint64
}

type Coordinator struct {
	logger *logger.Logger
	bank   *bank.Bank
	sink   models.EventSink

	identity common.Address
	owner    common.Address
	recovery common.Address

	baseFee        *big.Int
	unitCost       *big.Int
	tokenPerNative *big.Int
	meter          GasMeter

	mu sync.Mutex
	// locked is the ledger-wide re-entrancy flag. It is set for the
	// duration of every mutating operation; the fulfillment callback runs
	// with the mutex released but the flag held, so nested mutating calls
	// fail with ErrReentrant instead of deadlocking.
	locked bool

	// entropy salts subscription ids so they are unique per instance.
	entropy [32]byte

	subNonce      uint64
	lastRequestID uint64
	subs          map[common.Hash]*models.Subscription
	auths         map[consumerKey]*consumerAuth
	requests      map[uint64]*models.PendingRequest
	subIDs        *enumset.Set

	totalNative        *big.Int
	totalToken         *big.Int
	withdrawableNative *big.Int
	withdrawableToken  *big.Int
}

// New creates a coordinator backed by the given bank.
func New(cfg Config, b *bank.Bank, log *logger.Logger, sink models.EventSink) *Coordinator {
	if sink == nil {
		sink = models.NopSink
	}
	meter := cfg.Meter
	if meter == nil {
		meter = WallClockMeter{}
	}
	c := &Coordinator{
		logger:             log,
		bank:               b,
		sink:               sink,
		identity:           cfg.Identity,
		owner:              cfg.Owner,
		recovery:           cfg.Recovery,
		baseFee:            new(big.Int).Set(cfg.BaseFee),
		unitCost:           new(big.Int).Set(cfg.UnitCost),
		tokenPerNative:     new(big.Int).Set(cfg.TokenPerNative),
		meter:              meter,
		subs:               make(map[common.Hash]*models.Subscription),
		auths:              make(map[consumerKey]*consumerAuth),
		requests:           make(map[uint64]*models.PendingRequest),
		subIDs:             enumset.New(),
		totalNative:        new(big.Int),
		totalToken:         new(big.Int),
		withdrawableNative: new(big.Int),
		withdrawableToken:  new(big.Int),
	}
	if _, err := rand.Read(c.entropy[:]); err != nil {
		panic(fmt.Sprintf("failed to seed coordinator entropy: %v", err))
	}
	return c
}

// Identity returns the account that holds the ledger's funds.
func (c *Coordinator) Identity() common.Address {
	return c.identity
}

// begin acquires the serialization mutex and sets the re-entrancy flag.
// A set flag means another mutating operation is in progress; per the
// ledger's concurrency discipline the call is rejected, not queued.
func (c *Coordinator) begin() error {
	c.mu.Lock()
	if c.locked {
		c.mu.Unlock()
		return ErrReentrant
	}
	c.locked = true
	return nil
}

func (c *Coordinator) end() {
	c.locked = false
	c.mu.Unlock()
}

// RandomWordsRequest carries the parameters of a randomness request.
type RandomWordsRequest struct {
	SubID            common.Hash
	KeyHash          common.Hash
	Confirmations    uint16
	CallbackGasLimit uint64
	NumWords         uint32
	ExtraArgs        []byte
}

// RequestRandomWords opens a randomness request against a subscription.
// The caller must be an active consumer of the subscription. Re-requesting
// before fulfillment is allowed and yields a new, independent request id.
func (c *Coordinator) RequestRandomWords(caller common.Address, req RandomWordsRequest) (uint64, error) {
	if err := c.begin(); err != nil {
		return 0, err
	}
	defer c.end()

	sub, ok := c.subs[req.SubID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSubscription, req.SubID.Hex())
	}
	auth, ok := c.auths[consumerKey{caller, req.SubID}]
	if !ok || !auth.active {
		return 0, fmt.Errorf("%w: %s", ErrUnauthorizedConsumer, caller.Hex())
	}
	if req.NumWords == 0 {
		return 0, fmt.Errorf("requested word count must be positive")
	}
	if _, err := DecodeExtraArgs(req.ExtraArgs); err != nil {
		return 0, err
	}

	auth.nonce++
	c.lastRequestID++
	pending := &models.PendingRequest{
		ID:               c.lastRequestID,
		SubID:            req.SubID,
		Sender:           caller,
		KeyHash:          req.KeyHash,
		PreSeed:          preSeed(req.KeyHash, caller, req.SubID, auth.nonce),
		Confirmations:    req.Confirmations,
		CallbackGasLimit: req.CallbackGasLimit,
		NumWords:         req.NumWords,
		ExtraArgs:        append([]byte(nil), req.ExtraArgs...),
		CreatedAt:        time.Now(),
	}
	c.requests[pending.ID] = pending
	auth.pendingRequests++
	sub.RequestCount++

	c.logger.Debug("Randomness request opened ", "request ", pending.ID, " sub ", req.SubID.Hex())
	c.sink.Emit(models.EventRandomWordsRequested, models.RequestEventPayload{
		RequestID:        pending.ID,
		SubID:            pending.SubID.Hex(),
		Sender:           pending.Sender.Hex(),
		KeyHash:          pending.KeyHash.Hex(),
		PreSeed:          pending.PreSeed.Hex(),
		Confirmations:    pending.Confirmations,
		CallbackGasLimit: pending.CallbackGasLimit,
		NumWords:         pending.NumWords,
	})
	return pending.ID, nil
}

// FulfillRandomWords closes a pending request: it invokes the consumer
// callback, meters the work, bills the subscription and deletes the
// request. Exactly one fulfillment can ever succeed per request id; a
// second attempt fails with ErrUnknownRequest. A nil words slice makes the
// coordinator synthesize the result from the request id, which is the mock
// stand-in for real oracle randomness.
func (c *Coordinator) FulfillRandomWords(requestID uint64, target models.RandomnessConsumer, words []*big.Int) (*big.Int, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	req, ok := c.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRequest, requestID)
	}
	sub, ok := c.subs[req.SubID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, req.SubID.Hex())
	}
	if words == nil {
		words = MockWords(requestID, req.NumWords)
	}
	if uint32(len(words)) != req.NumWords {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWordCountMismatch, len(words), req.NumWords)
	}
	args, err := DecodeExtraArgs(req.ExtraArgs)
	if err != nil {
		return nil, err
	}
	cur := models.CurrencyToken
	if args.NativePayment {
		cur = models.CurrencyNative
	}

	// The worst case charges the whole callback gas budget. Checking it
	// up front keeps a failing fulfillment free of partial effects: the
	// callback never runs when the subscription cannot pay for it.
	if sub.Balance(cur).Cmp(c.fee(req.CallbackGasLimit, cur)) < 0 {
		return nil, fmt.Errorf("%w: sub %s", ErrInsufficientBalance, req.SubID.Hex())
	}

	stop := c.meter.Start()
	c.mu.Unlock()
	cbErr := invokeCallback(target, c.identity, requestID, words)
	c.mu.Lock()
	units := stop()
	if units > req.CallbackGasLimit {
		units = req.CallbackGasLimit
	}
	payment := c.fee(units, cur)

	sub.Balance(cur).Sub(sub.Balance(cur), payment)
	c.withdrawable(cur).Add(c.withdrawable(cur), payment)
	if auth, ok := c.auths[consumerKey{req.Sender, req.SubID}]; ok && auth.pendingRequests > 0 {
		auth.pendingRequests--
	}
	delete(c.requests, requestID)

	if cbErr != nil {
		c.logger.Warn("Fulfillment callback failed ", "request ", requestID, " error ", cbErr)
	}
	c.sink.Emit(models.EventRandomWordsFulfilled, models.FulfillmentEventPayload{
		RequestID: requestID,
		SubID:     req.SubID.Hex(),
		Payment:   payment.String(),
		Currency:  cur.String(),
		Success:   cbErr == nil,
	})
	return payment, nil
}

// PendingRequests returns copies of all open requests, ordered by id.
func (c *Coordinator) PendingRequests() []*models.PendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.PendingRequest, 0, len(c.requests))
	for _, req := range c.requests {
		cp := *req
		cp.ExtraArgs = append([]byte(nil), req.ExtraArgs...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fee computes baseFee + unitCost*units in the given billing currency.
func (c *Coordinator) fee(units uint64, cur models.Currency) *big.Int {
	payment := new(big.Int).SetUint64(units)
	payment.Mul(payment, c.unitCost)
	payment.Add(payment, c.baseFee)
	if cur == models.CurrencyToken {
		payment.Mul(payment, c.tokenPerNative)
	}
	return payment
}

func (c *Coordinator) total(cur models.Currency) *big.Int {
	if cur == models.CurrencyNative {
		return c.totalNative
	}
	return c.totalToken
}

func (c *Coordinator) withdrawable(cur models.Currency) *big.Int {
	if cur == models.CurrencyNative {
		return c.withdrawableNative
	}
	return c.withdrawableToken
}

// invokeCallback runs the consumer callback with panic isolation, so a
// misbehaving consumer only fails its own fulfillment.
func invokeCallback(target models.RandomnessConsumer, caller common.Address, requestID uint64, words []*big.Int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return target.RawFulfillRandomWords(caller, requestID, words)
}

// MockWords synthesizes the random result for a request deterministically
// from (requestID, index). This is a test/mock randomness source only; a
// production oracle supplies externally generated, proof-carrying values.
func MockWords(requestID uint64, numWords uint32) []*big.Int {
	words := make([]*big.Int, numWords)
	for i := uint32(0); i < numWords; i++ {
		var buf [12]byte
		binary.BigEndian.PutUint64(buf[:8], requestID)
		binary.BigEndian.PutUint32(buf[8:], i)
		h := sha256.Sum256(buf[:])
		words[i] = new(big.Int).SetBytes(h[:])
	}
	return words
}

func preSeed(keyHash common.Hash, sender common.Address, subID common.Hash, nonce uint64) common.Hash {
	h := sha256.New()
	h.Write(keyHash.Bytes())
	h.Write(sender.Bytes())
	h.Write(subID.Bytes())
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])
	return common.BytesToHash(h.Sum(nil))
}
