package coordinator

import (
	"errors"
	"math/big"
	"testing"

	"github.com/core-coin/go-core/v2/common"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/fortuna/internal/bank"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(true)
	require.NoError(t, err)
	return log
}

type fixture struct {
	bank  *bank.Bank
	coord *Coordinator

	identity common.Address
	owner    common.Address
	recovery common.Address
	consumer common.Address
	subID    common.Hash

	events []string
}

// newFixture builds a coordinator with one funded subscription and one
// authorized consumer. Fees are deterministic through the fixed meter.
func newFixture(t *testing.T, meter GasMeter) *fixture {
	t.Helper()
	f := &fixture{
		bank:     bank.New(),
		identity: models.DeriveAddress("test/coordinator"),
		owner:    models.DeriveAddress("test/owner"),
		recovery: models.DeriveAddress("test/recovery"),
		consumer: models.DeriveAddress("test/consumer"),
	}
	sink := models.EventSinkFunc(func(eventType string, payload any) {
		f.events = append(f.events, eventType)
	})
	f.coord = New(Config{
		Identity:       f.identity,
		Owner:          f.owner,
		Recovery:       f.recovery,
		BaseFee:        big.NewInt(25),
		UnitCost:       big.NewInt(1),
		TokenPerNative: big.NewInt(2),
		Meter:          meter,
	}, f.bank, newTestLogger(t), sink)

	subID, err := f.coord.CreateSubscription(f.owner)
	require.NoError(t, err)
	f.subID = subID

	f.bank.Mint(f.owner, models.CurrencyToken, big.NewInt(1_000_000))
	f.bank.Mint(f.owner, models.CurrencyNative, big.NewInt(1_000_000))
	require.NoError(t, f.coord.AddConsumer(f.owner, subID, f.consumer))
	return f
}

func (f *fixture) fund(t *testing.T, cur models.Currency, amount int64) {
	t.Helper()
	require.NoError(t, f.coord.FundSubscription(f.owner, f.subID, cur, big.NewInt(amount)))
}

func (f *fixture) request(t *testing.T, gasLimit uint64, extraArgs []byte) uint64 {
	t.Helper()
	id, err := f.coord.RequestRandomWords(f.consumer, RandomWordsRequest{
		SubID:            f.subID,
		KeyHash:          common.BytesToHash([]byte("key")),
		Confirmations:    3,
		CallbackGasLimit: gasLimit,
		NumWords:         1,
		ExtraArgs:        extraArgs,
	})
	require.NoError(t, err)
	return id
}

// recordingConsumer captures the fulfillment callback for assertions. The
// optional hooks let tests inject re-entrant calls and failures.
type recordingConsumer struct {
	calls     int
	caller    common.Address
	requestID uint64
	words     []*big.Int

	inside func()
	err    error
	panics bool
}

func (r *recordingConsumer) RawFulfillRandomWords(caller common.Address, requestID uint64, words []*big.Int) error {
	r.calls++
	r.caller = caller
	r.requestID = requestID
	r.words = words
	if r.inside != nil {
		r.inside()
	}
	if r.panics {
		panic("consumer exploded")
	}
	return r.err
}

func TestRequestRandomWords(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1})
	f.fund(t, models.CurrencyToken, 10_000)

	id := f.request(t, 1000, nil)
	require.Equal(t, uint64(1), id)
	require.Equal(t, uint64(2), f.request(t, 1000, nil))

	pending := f.coord.PendingRequests()
	require.Len(t, pending, 2)
	require.Equal(t, uint64(1), pending[0].ID)
	require.Equal(t, f.consumer, pending[0].Sender)
	require.Equal(t, f.subID, pending[0].SubID)
	require.Equal(t, uint32(1), pending[0].NumWords)
	// Every request gets a distinct pre-seed through the consumer nonce.
	require.NotEqual(t, pending[0].PreSeed, pending[1].PreSeed)

	sub, err := f.coord.GetSubscription(f.subID)
	require.NoError(t, err)
	require.Equal(t, uint64(2), sub.RequestCount)
}

func TestRequestRandomWordsRejections(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1})

	_, err := f.coord.RequestRandomWords(f.consumer, RandomWordsRequest{
		SubID:    common.BytesToHash([]byte("nope")),
		NumWords: 1,
	})
	require.ErrorIs(t, err, ErrUnknownSubscription)

	stranger := models.DeriveAddress("test/stranger")
	_, err = f.coord.RequestRandomWords(stranger, RandomWordsRequest{SubID: f.subID, NumWords: 1})
	require.ErrorIs(t, err, ErrUnauthorizedConsumer)

	_, err = f.coord.RequestRandomWords(f.consumer, RandomWordsRequest{SubID: f.subID, NumWords: 0})
	require.Error(t, err)

	_, err = f.coord.RequestRandomWords(f.consumer, RandomWordsRequest{
		SubID:     f.subID,
		NumWords:  1,
		ExtraArgs: []byte{0xde, 0xad},
	})
	require.ErrorIs(t, err, ErrMalformedExtraArgs)

	// A removed consumer can no longer open requests.
	require.NoError(t, f.coord.RemoveConsumer(f.owner, f.subID, f.consumer))
	_, err = f.coord.RequestRandomWords(f.consumer, RandomWordsRequest{SubID: f.subID, NumWords: 1})
	require.ErrorIs(t, err, ErrUnauthorizedConsumer)
}

func TestFulfillTokenBilling(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 100})
	f.fund(t, models.CurrencyToken, 10_000)
	id := f.request(t, 1000, nil)

	target := &recordingConsumer{}
	payment, err := f.coord.FulfillRandomWords(id, target, nil)
	require.NoError(t, err)
	// (base 25 + 100 units) converted at 2 token per native.
	require.Equal(t, int64(250), payment.Int64())

	require.Equal(t, 1, target.calls)
	require.Equal(t, f.identity, target.caller)
	require.Equal(t, id, target.requestID)
	require.Len(t, target.words, 1)
	require.Equal(t, MockWords(id, 1)[0], target.words[0])

	sub, err := f.coord.GetSubscription(f.subID)
	require.NoError(t, err)
	require.Equal(t, int64(9_750), sub.TokenBalance.Int64())
	require.Equal(t, int64(250), f.coord.WithdrawableBalance(models.CurrencyToken).Int64())
	require.Empty(t, f.coord.PendingRequests())
}

func TestFulfillNativeBilling(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 100})
	f.fund(t, models.CurrencyNative, 10_000)
	id := f.request(t, 1000, ExtraArgs{NativePayment: true}.Encode())

	payment, err := f.coord.FulfillRandomWords(id, &recordingConsumer{}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(125), payment.Int64())

	sub, err := f.coord.GetSubscription(f.subID)
	require.NoError(t, err)
	require.Equal(t, int64(9_875), sub.NativeBalance.Int64())
	require.Equal(t, int64(125), f.coord.WithdrawableBalance(models.CurrencyNative).Int64())
}

func TestFulfillExactlyOnce(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1})
	f.fund(t, models.CurrencyToken, 10_000)
	id := f.request(t, 1000, nil)

	_, err := f.coord.FulfillRandomWords(id, &recordingConsumer{}, nil)
	require.NoError(t, err)
	_, err = f.coord.FulfillRandomWords(id, &recordingConsumer{}, nil)
	require.ErrorIs(t, err, ErrUnknownRequest)

	_, err = f.coord.FulfillRandomWords(999, &recordingConsumer{}, nil)
	require.ErrorIs(t, err, ErrUnknownRequest)
}

func TestFulfillWordCountMismatch(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1})
	f.fund(t, models.CurrencyToken, 10_000)
	id := f.request(t, 1000, nil)

	_, err := f.coord.FulfillRandomWords(id, &recordingConsumer{}, []*big.Int{big.NewInt(1), big.NewInt(2)})
	require.ErrorIs(t, err, ErrWordCountMismatch)
	// The request survives a failed attempt.
	require.Len(t, f.coord.PendingRequests(), 1)
}

func TestFulfillInsufficientBalance(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1})
	// Worst case is (25 + 1000) * 2 = 2050 token; fund less.
	f.fund(t, models.CurrencyToken, 2_000)
	id := f.request(t, 1000, nil)

	target := &recordingConsumer{}
	_, err := f.coord.FulfillRandomWords(id, target, nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	// The callback never ran and the request is still pending.
	require.Equal(t, 0, target.calls)
	require.Len(t, f.coord.PendingRequests(), 1)

	// Topping the subscription up makes the same request fulfillable.
	f.fund(t, models.CurrencyToken, 50)
	_, err = f.coord.FulfillRandomWords(id, target, nil)
	require.NoError(t, err)
	require.Equal(t, 1, target.calls)
}

func TestFulfillChargeCappedAtGasLimit(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1_000_000})
	f.fund(t, models.CurrencyToken, 10_000)
	id := f.request(t, 100, nil)

	payment, err := f.coord.FulfillRandomWords(id, &recordingConsumer{}, nil)
	require.NoError(t, err)
	// Consumption above the budget bills exactly the budget.
	require.Equal(t, int64((25+100)*2), payment.Int64())
}

func TestFulfillCallbackErrorStillBills(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1})
	f.fund(t, models.CurrencyToken, 10_000)
	id := f.request(t, 1000, nil)

	target := &recordingConsumer{err: errMock}
	payment, err := f.coord.FulfillRandomWords(id, target, nil)
	require.NoError(t, err)
	require.Equal(t, int64(52), payment.Int64())
	require.Empty(t, f.coord.PendingRequests())
}

func TestFulfillCallbackPanicIsContained(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1})
	f.fund(t, models.CurrencyToken, 10_000)
	id := f.request(t, 1000, nil)

	target := &recordingConsumer{panics: true}
	_, err := f.coord.FulfillRandomWords(id, target, nil)
	require.NoError(t, err)
	require.Empty(t, f.coord.PendingRequests())
}

func TestFulfillRejectsReentrantCalls(t *testing.T) {
	f := newFixture(t, FixedMeter{Units: 1})
	f.fund(t, models.CurrencyToken, 10_000)
	id := f.request(t, 1000, nil)

	var nestedErr error
	target := &recordingConsumer{}
	target.inside = func() {
		_, nestedErr = f.coord.CreateSubscription(f.owner)
	}
	_, err := f.coord.FulfillRandomWords(id, target, nil)
	require.NoError(t, err)
	require.ErrorIs(t, nestedErr, ErrReentrant)
}

func TestMockWordsDeterministic(t *testing.T) {
	a := MockWords(7, 3)
	b := MockWords(7, 3)
	require.Len(t, a, 3)
	for i := range a {
		require.Equal(t, a[i], b[i])
	}
	require.NotEqual(t, a[0], a[1])
	require.NotEqual(t, MockWords(8, 1)[0], a[0])
}

func TestDecodeExtraArgs(t *testing.T) {
	args, err := DecodeExtraArgs(nil)
	require.NoError(t, err)
	require.False(t, args.NativePayment)

	args, err = DecodeExtraArgs(ExtraArgs{NativePayment: true}.Encode())
	require.NoError(t, err)
	require.True(t, args.NativePayment)

	args, err = DecodeExtraArgs(ExtraArgs{}.Encode())
	require.NoError(t, err)
	require.False(t, args.NativePayment)

	_, err = DecodeExtraArgs([]byte{0x01})
	require.ErrorIs(t, err, ErrMalformedExtraArgs)
	_, err = DecodeExtraArgs([]byte{0xf7, 0x01, 0xea, 0x01, 0x01, 0x00})
	require.ErrorIs(t, err, ErrMalformedExtraArgs)
}

var errMock = errors.New("mock consumer failure")
