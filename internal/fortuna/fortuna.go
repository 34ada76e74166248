// Package fortuna wires the core together: the bank, the randomness
// coordinator and the raffle, plus the keeper and mock-oracle loops that
// drive them. It also implements the event sink that fans core events out
// to the log, the journal and the winner notificator.
package fortuna

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/core-coin/go-core/v2/common"

	"github.com/core-coin/fortuna/internal/bank"
	"github.com/core-coin/fortuna/internal/config"
	"github.com/core-coin/fortuna/internal/coordinator"
	"github.com/core-coin/fortuna/internal/keeper"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/internal/oracle"
	"github.com/core-coin/fortuna/internal/raffle"
	"github.com/core-coin/fortuna/pkg/logger"
)

// Fortuna is the main struct of the application. It owns every component
// and serves as the single point the API and the loops talk to.
type Fortuna struct {
	logger *logger.Logger
	config *config.Config

	repo        models.Repository
	notificator models.NotificationService

	bank   *bank.Bank
	coord  *coordinator.Coordinator
	raffle *raffle.Raffle
	keeper *keeper.Keeper
	oracle *oracle.Oracle

	subID common.Hash
}

// NewFortuna builds the engine and bootstraps the raffle's subscription:
// it creates the subscription, funds it with the configured token amount
// and authorizes the raffle as its consumer.
func NewFortuna(
	cfg *config.Config,
	repo models.Repository,
	notificator models.NotificationService,
	log *logger.Logger,
) (*Fortuna, error) {
	f := &Fortuna{
		logger:      log,
		config:      cfg,
		repo:        repo,
		notificator: notificator,
		bank:        bank.New(),
	}
	sink := models.EventSink(models.EventSinkFunc(f.emit))

	operator := accountAddress(cfg.OperatorAddress, "fortuna/operator")
	recovery := accountAddress(cfg.RecoveryAddress, "fortuna/recovery")
	coordAddr := models.DeriveAddress("fortuna/coordinator")
	raffleAddr := models.DeriveAddress("fortuna/raffle")

	f.coord = coordinator.New(coordinator.Config{
		Identity:       coordAddr,
		Owner:          operator,
		Recovery:       recovery,
		BaseFee:        cfg.BaseFee,
		UnitCost:       cfg.UnitCost,
		TokenPerNative: cfg.TokenPerNative,
	}, f.bank, log, sink)

	subID, err := f.coord.CreateSubscription(operator)
	if err != nil {
		return nil, err
	}
	f.subID = subID
	if cfg.InitialFunding.Sign() > 0 {
		f.bank.Mint(operator, models.CurrencyToken, cfg.InitialFunding)
		if err := f.coord.FundSubscription(operator, subID, models.CurrencyToken, cfg.InitialFunding); err != nil {
			return nil, err
		}
	}

	f.raffle = raffle.New(raffle.Config{
		Account:          raffleAddr,
		Coordinator:      coordAddr,
		EntranceFee:      cfg.EntranceFee,
		Interval:         cfg.Interval,
		SubID:            subID,
		KeyHash:          common.HexToHash(cfg.KeyHash),
		Confirmations:    uint16(cfg.Confirmations),
		CallbackGasLimit: cfg.CallbackGasLimit,
	}, f.bank, f.coord, log, sink)

	if err := f.coord.AddConsumer(operator, subID, raffleAddr); err != nil {
		return nil, err
	}

	f.keeper = keeper.New(f.raffle, cfg.KeeperPoll, log)
	f.oracle = oracle.New(f.coord, f.raffle, cfg.BlockTime, cfg.OraclePoll, log)

	log.Info("Fortuna bootstrapped ", "sub ", subID.Hex(), " raffle ", raffleAddr.Hex())
	return f, nil
}

// Start launches the keeper and oracle loops.
func (f *Fortuna) Start() {
	f.keeper.Start()
	f.oracle.Start()
	f.logger.Info("Keeper and oracle loops started")
}

// Stop terminates the loops and closes the journal.
func (f *Fortuna) Stop() {
	f.keeper.Stop()
	f.oracle.Stop()
	if err := f.repo.Close(); err != nil {
		f.logger.Error("Failed to close repository ", "error ", err)
	}
}

func (f *Fortuna) Bank() *bank.Bank                      { return f.bank }
func (f *Fortuna) Coordinator() *coordinator.Coordinator { return f.coord }
func (f *Fortuna) Raffle() *raffle.Raffle                { return f.raffle }
func (f *Fortuna) Repository() models.Repository         { return f.repo }
func (f *Fortuna) SubscriptionID() common.Hash           { return f.subID }

// Faucet mints native funds to a player account. The bank is bookkeeping
// only, so this is how demo players obtain an entry stake.
func (f *Fortuna) Faucet(player common.Address, amount *big.Int) {
	f.bank.Mint(player, models.CurrencyNative, amount)
}

// emit is the engine's event sink: structured log, journal row and, for a
// picked winner, record plus notification.
func (f *Fortuna) emit(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error("Failed to marshal event payload ", "type ", eventType, " error ", err)
		return
	}
	f.logger.Info("Event emitted ", "type ", eventType, " payload ", string(data))
	if err := f.repo.RecordEvent(&models.Event{
		Type:      eventType,
		Payload:   string(data),
		CreatedAt: time.Now().Unix(),
	}); err != nil {
		f.logger.Error("Failed to journal event ", "type ", eventType, " error ", err)
	}

	if eventType != models.EventWinnerPicked {
		return
	}
	win, ok := payload.(models.RaffleEventPayload)
	if !ok {
		return
	}
	prize, ok := new(big.Int).SetString(win.Prize, 10)
	if !ok {
		prize = new(big.Int)
	}
	if err := f.repo.RecordWinner(&models.WinnerRecord{
		Address:   win.Winner,
		Prize:     win.Prize,
		RequestID: win.RequestID,
		Entrants:  win.Entrants,
		Timestamp: time.Now().Unix(),
	}); err != nil {
		f.logger.Error("Failed to record winner ", "error ", err)
	}
	if f.notificator != nil {
		go f.notificator.SendNotification(&models.Notification{
			Winner:    win.Winner,
			Prize:     prize,
			Currency:  models.CurrencyNative.String(),
			RequestID: win.RequestID,
			Entrants:  win.Entrants,
		})
	}
}

// accountAddress parses a configured address, falling back to an address
// derived from the label when none is configured.
func accountAddress(configured, label string) common.Address {
	if configured == "" {
		return models.DeriveAddress(label)
	}
	addr, err := common.HexToAddress(configured)
	if err != nil {
		return models.DeriveAddress(label)
	}
	return addr
}
