package oracle

import (
	"math/big"
	"testing"
	"time"

	"github.com/core-coin/go-core/v2/common"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/fortuna/internal/bank"
	"github.com/core-coin/fortuna/internal/coordinator"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/pkg/logger"
)

type env struct {
	coord    *coordinator.Coordinator
	consumer common.Address
	subID    common.Hash
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log, err := logger.NewLogger(true)
	require.NoError(t, err)

	b := bank.New()
	owner := models.DeriveAddress("test/owner")
	e := &env{consumer: models.DeriveAddress("test/consumer")}
	e.coord = coordinator.New(coordinator.Config{
		Identity:       models.DeriveAddress("test/coordinator"),
		Owner:          owner,
		Recovery:       models.DeriveAddress("test/recovery"),
		BaseFee:        big.NewInt(25),
		UnitCost:       big.NewInt(1),
		TokenPerNative: big.NewInt(2),
		Meter:          coordinator.FixedMeter{Units: 1},
	}, b, log, nil)

	subID, err := e.coord.CreateSubscription(owner)
	require.NoError(t, err)
	e.subID = subID
	b.Mint(owner, models.CurrencyToken, big.NewInt(1_000_000))
	require.NoError(t, e.coord.FundSubscription(owner, subID, models.CurrencyToken, big.NewInt(1_000_000)))
	require.NoError(t, e.coord.AddConsumer(owner, subID, e.consumer))
	return e
}

func (e *env) request(t *testing.T, confirmations uint16) uint64 {
	t.Helper()
	id, err := e.coord.RequestRandomWords(e.consumer, coordinator.RandomWordsRequest{
		SubID:            e.subID,
		KeyHash:          common.BytesToHash([]byte("key")),
		Confirmations:    confirmations,
		CallbackGasLimit: 1000,
		NumWords:         1,
	})
	require.NoError(t, err)
	return id
}

type countingConsumer struct {
	calls int
	words []*big.Int
}

func (c *countingConsumer) RawFulfillRandomWords(caller common.Address, requestID uint64, words []*big.Int) error {
	c.calls++
	c.words = words
	return nil
}

func TestTickFulfillsDueRequests(t *testing.T) {
	e := newEnv(t)
	log, err := logger.NewLogger(true)
	require.NoError(t, err)
	target := &countingConsumer{}
	o := New(e.coord, target, time.Millisecond, time.Second, log)

	id := e.request(t, 0)
	o.Tick()

	require.Equal(t, 1, target.calls)
	require.Len(t, target.words, 1)
	require.Equal(t, coordinator.MockWords(id, 1)[0], target.words[0])
	require.Empty(t, e.coord.PendingRequests())
}

func TestTickWaitsForConfirmationDepth(t *testing.T) {
	e := newEnv(t)
	log, err := logger.NewLogger(true)
	require.NoError(t, err)
	target := &countingConsumer{}
	o := New(e.coord, target, time.Hour, time.Second, log)

	e.request(t, 10)
	o.Tick()

	require.Equal(t, 0, target.calls)
	require.Len(t, e.coord.PendingRequests(), 1)
}

func TestStartStop(t *testing.T) {
	e := newEnv(t)
	log, err := logger.NewLogger(true)
	require.NoError(t, err)
	target := &countingConsumer{}
	o := New(e.coord, target, time.Millisecond, time.Millisecond, log)

	e.request(t, 0)
	o.Start()
	require.Eventually(t, func() bool {
		return len(e.coord.PendingRequests()) == 0
	}, time.Second, 5*time.Millisecond)
	o.Stop()
}
