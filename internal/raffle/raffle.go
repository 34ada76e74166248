// Package raffle implements the recurring lottery state machine. Entrance
// fees accumulate in the raffle's bank account; once the interval has
// elapsed the keeper triggers a cycle, which opens a randomness request,
// and the fulfillment callback pays the whole pot to the picked winner.
package raffle

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/fortuna/internal/bank"
	"github.com/core-coin/fortuna/internal/coordinator"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/pkg/logger"
)

var (
	ErrInsufficientPayment = errors.New("payment below entrance fee")
	ErrNotOpen             = errors.New("raffle is not open")
	ErrNotCalculating      = errors.New("raffle is not calculating")
	ErrUnauthorizedCaller  = errors.New("caller is not the coordinator")
	ErrTransferFailed      = errors.New("winner payout failed")
)

// UpkeepNotNeededError reports why a trigger attempt was rejected.
type UpkeepNotNeededError struct {
	Balance  *big.Int
	Entrants int
	State    State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("upkeep not needed: balance %s, entrants %d, state %s",
		e.Balance, e.Entrants, e.State)
}

type State uint8

const (
	StateOpen State = iota
	StateCalculating
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCalculating:
		return "calculating"
	}
	return "unknown"
}

// UpkeepStatus is the result of the read-only upkeep condition check.
type UpkeepStatus struct {
	Needed     bool `json:"needed"`
	Open       bool `json:"open"`
	TimePassed bool `json:"time_passed"`
	HasPlayers bool `json:"has_players"`
	HasBalance bool `json:"has_balance"`
}

// Config carries the construction-time raffle parameters; they are fixed
// for the lifetime of the raffle.
type Config struct {
	// Account is the raffle's bank account holding the pot.
	Account common.Address
	// Coordinator is the only identity allowed to deliver random words.
	Coordinator common.Address
	// EntranceFee is the minimum payment to enter, in native units.
	EntranceFee *big.Int
	// Interval is the minimum duration of a cycle.
	Interval time.Duration
	// SubID is the subscription the raffle's randomness requests bill to.
	SubID common.Hash
	// KeyHash identifies the oracle key used for requests.
	KeyHash common.Hash
	// Confirmations is the confirmation depth requested from the oracle.
	Confirmations uint16
	// CallbackGasLimit bounds the metered fulfillment callback work.
	CallbackGasLimit uint64
	// Clock overrides the time source. Nil means time.Now.
	Clock func() time.Time
}

type Raffle struct {
	logger *logger.Logger
	bank   *bank.Bank
	coord  *coordinator.Coordinator
	sink   models.EventSink

	account          common.Address
	coordAddr        common.Address
	entranceFee      *big.Int
	interval         time.Duration
	subID            common.Hash
	keyHash          common.Hash
	confirmations    uint16
	callbackGasLimit uint64
	now              func() time.Time

	mu            sync.Mutex
	state         State
	entrants      []common.Address
	recentWinner  common.Address
	lastRequestID uint64
	lastResetAt   time.Time
}

func New(cfg Config, b *bank.Bank, coord *coordinator.Coordinator, log *logger.Logger, sink models.EventSink) *Raffle {
	if sink == nil {
		sink = models.NopSink
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Raffle{
		logger:           log,
		bank:             b,
		coord:            coord,
		sink:             sink,
		account:          cfg.Account,
		coordAddr:        cfg.Coordinator,
		entranceFee:      new(big.Int).Set(cfg.EntranceFee),
		interval:         cfg.Interval,
		subID:            cfg.SubID,
		keyHash:          cfg.KeyHash,
		confirmations:    cfg.Confirmations,
		callbackGasLimit: cfg.CallbackGasLimit,
		now:              now,
		state:            StateOpen,
		lastResetAt:      now(),
	}
}

// Enter joins the caller into the current cycle. The payment must cover
// the entrance fee and the raffle must be open; entries are rejected while
// a winner computation is in flight.
func (r *Raffle) Enter(player common.Address, payment *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if payment == nil || payment.Cmp(r.entranceFee) < 0 {
		return fmt.Errorf("%w: need at least %s", ErrInsufficientPayment, r.entranceFee)
	}
	if r.state != StateOpen {
		return fmt.Errorf("%w: state %s", ErrNotOpen, r.state)
	}
	if err := r.bank.Transfer(player, r.account, models.CurrencyNative, payment); err != nil {
		return fmt.Errorf("failed to collect entrance fee: %w", err)
	}
	r.entrants = append(r.entrants, player)

	r.logger.Debug("Raffle entered ", "player ", player.Hex(), " entrants ", len(r.entrants))
	r.sink.Emit(models.EventRaffleEntered, models.RaffleEventPayload{
		Player:   player.Hex(),
		Amount:   payment.String(),
		Entrants: len(r.entrants),
	})
	return nil
}

// CheckUpkeep evaluates the upkeep condition: the raffle is open, the
// interval has elapsed, there is at least one entrant and the pot is not
// empty. The keeper polls this; PerformUpkeep re-evaluates it itself, so
// the result must never be cached.
func (r *Raffle) CheckUpkeep() UpkeepStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upkeepStatus()
}

func (r *Raffle) upkeepStatus() UpkeepStatus {
	s := UpkeepStatus{
		Open:       r.state == StateOpen,
		TimePassed: r.now().Sub(r.lastResetAt) > r.interval,
		HasPlayers: len(r.entrants) > 0,
		HasBalance: r.bank.Balance(r.account, models.CurrencyNative).Sign() > 0,
	}
	s.Needed = s.Open && s.TimePassed && s.HasPlayers && s.HasBalance
	return s
}

// PerformUpkeep starts a winner computation: it re-checks the upkeep
// condition, moves the raffle to CALCULATING and opens a randomness
// request for one word. The request id is returned for observability.
func (r *Raffle) PerformUpkeep() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if status := r.upkeepStatus(); !status.Needed {
		return 0, &UpkeepNotNeededError{
			Balance:  r.bank.Balance(r.account, models.CurrencyNative),
			Entrants: len(r.entrants),
			State:    r.state,
		}
	}
	r.state = StateCalculating
	requestID, err := r.coord.RequestRandomWords(r.account, coordinator.RandomWordsRequest{
		SubID:            r.subID,
		KeyHash:          r.keyHash,
		Confirmations:    r.confirmations,
		CallbackGasLimit: r.callbackGasLimit,
		NumWords:         1,
	})
	if err != nil {
		r.state = StateOpen
		return 0, fmt.Errorf("failed to request random words: %w", err)
	}
	r.lastRequestID = requestID

	r.logger.Info("Winner computation started ", "request ", requestID, " entrants ", len(r.entrants))
	r.sink.Emit(models.EventWinnerRequested, models.RaffleEventPayload{
		RequestID: requestID,
		Entrants:  len(r.entrants),
	})
	return requestID, nil
}

// RawFulfillRandomWords receives the random result from the coordinator,
// picks the winner with words[0] mod entrant count and pays out the whole
// pot. A failed payout aborts the transition: the raffle stays in
// CALCULATING with no retry path, which mirrors the reference design's
// unresolved payout-failure gap.
func (r *Raffle) RawFulfillRandomWords(caller common.Address, requestID uint64, words []*big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.coordAddr {
		return fmt.Errorf("%w: %s", ErrUnauthorizedCaller, caller.Hex())
	}
	if r.state != StateCalculating {
		return fmt.Errorf("%w: state %s", ErrNotCalculating, r.state)
	}
	if len(words) == 0 {
		return fmt.Errorf("empty random words for request %d", requestID)
	}

	// Entries are rejected while CALCULATING, so the entrant count here is
	// the same as at trigger time.
	count := big.NewInt(int64(len(r.entrants)))
	index := new(big.Int).Mod(words[0], count)
	winner := r.entrants[index.Int64()]
	prize := r.bank.Balance(r.account, models.CurrencyNative)
	entrants := len(r.entrants)

	if err := r.bank.Transfer(r.account, winner, models.CurrencyNative, prize); err != nil {
		r.logger.Error("Winner payout failed ", "winner ", winner.Hex(), " prize ", prize.String(), " error ", err)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	r.recentWinner = winner
	r.entrants = nil
	r.lastResetAt = r.now()
	r.state = StateOpen

	r.logger.Info("Winner picked ", "winner ", winner.Hex(), " prize ", prize.String())
	r.sink.Emit(models.EventWinnerPicked, models.RaffleEventPayload{
		Winner:    winner.Hex(),
		Prize:     prize.String(),
		RequestID: requestID,
		Entrants:  entrants,
	})
	return nil
}

// Account returns the raffle's bank account, which is also its consumer
// identity on the subscription.
func (r *Raffle) Account() common.Address {
	return r.account
}

func (r *Raffle) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Raffle) Entrants() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]common.Address(nil), r.entrants...)
}

func (r *Raffle) RecentWinner() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recentWinner
}

func (r *Raffle) EntranceFee() *big.Int {
	return new(big.Int).Set(r.entranceFee)
}

// Balance returns the current pot.
func (r *Raffle) Balance() *big.Int {
	return r.bank.Balance(r.account, models.CurrencyNative)
}

// LastRequestID returns the id of the most recent randomness request.
func (r *Raffle) LastRequestID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRequestID
}
