package http_api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/fortuna/internal/config"
	"github.com/core-coin/fortuna/internal/fortuna"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/internal/repository"
	"github.com/core-coin/fortuna/pkg/logger"
)

func newTestServer(t *testing.T) (*HTTPServer, *fortuna.Fortuna) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.NewLogger(true)
	require.NoError(t, err)

	cfg := &config.Config{
		EntranceFee:      big.NewInt(100),
		Interval:         time.Hour,
		KeyHash:          "0x6c3699283bda56ad74f6b855546325b68d482e983852a7a82979cc4807b641f4",
		Confirmations:    0,
		CallbackGasLimit: 100_000,
		BaseFee:          big.NewInt(25),
		UnitCost:         big.NewInt(1),
		TokenPerNative:   big.NewInt(2),
		InitialFunding:   big.NewInt(1_000_000),
		BlockTime:        time.Millisecond,
		KeeperPoll:       time.Hour,
		OraclePoll:       time.Hour,
	}
	app, err := fortuna.NewFortuna(cfg, repository.NewMemoryDB(), nil, log)
	require.NoError(t, err)
	return NewHTTPServer(app, 0, log), app
}

func doRequest(t *testing.T, s *HTTPServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestFaucetAndEnter(t *testing.T) {
	s, app := newTestServer(t)
	player := models.DeriveAddress("test/player").Hex()

	w := doRequest(t, s, http.MethodPost, "/api/v1/faucet", gin.H{"player": player, "amount": "1000"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/v1/raffle/enter", gin.H{"player": player, "amount": "100"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, app.Raffle().Entrants(), 1)

	w = doRequest(t, s, http.MethodGet, "/api/v1/raffle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	require.Equal(t, "open", status["state"])
	require.Equal(t, float64(1), status["entrant_count"])
	require.Equal(t, "100", status["balance"])
}

func TestEnterRejections(t *testing.T) {
	s, _ := newTestServer(t)
	player := models.DeriveAddress("test/player").Hex()

	// Malformed address.
	w := doRequest(t, s, http.MethodPost, "/api/v1/raffle/enter", gin.H{"player": "0x1234", "amount": "100"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Payment below the entrance fee.
	w = doRequest(t, s, http.MethodPost, "/api/v1/faucet", gin.H{"player": player, "amount": "1000"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, s, http.MethodPost, "/api/v1/raffle/enter", gin.H{"player": player, "amount": "99"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Missing body fields.
	w = doRequest(t, s, http.MethodPost, "/api/v1/raffle/enter", gin.H{"player": player})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpkeepEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/v1/raffle/upkeep", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	require.Equal(t, false, status["needed"])

	// Triggering while the condition does not hold conflicts.
	w = doRequest(t, s, http.MethodPost, "/api/v1/raffle/upkeep", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	s, app := newTestServer(t)
	owner := models.DeriveAddress("test/owner").Hex()
	consumer := models.DeriveAddress("test/consumer").Hex()

	w := doRequest(t, s, http.MethodPost, "/api/v1/subscriptions", gin.H{"owner": owner})
	require.Equal(t, http.StatusCreated, w.Code)
	subID, ok := decode(t, w)["sub_id"].(string)
	require.True(t, ok)

	w = doRequest(t, s, http.MethodGet, "/api/v1/subscriptions/"+subID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sub := decode(t, w)
	require.Equal(t, strings.ToLower(owner), strings.ToLower(sub["owner"].(string)))

	// Fund from a faucet-seeded account.
	w = doRequest(t, s, http.MethodPost, "/api/v1/faucet", gin.H{"player": owner, "amount": "5000"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/fund",
		gin.H{"from": owner, "amount": "5000", "currency": "xcb"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/consumers",
		gin.H{"caller": owner, "consumer": consumer})
	require.Equal(t, http.StatusOK, w.Code)

	// Only the owner can manage consumers.
	w = doRequest(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/consumers",
		gin.H{"caller": consumer, "consumer": consumer})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Two subscriptions now: the bootstrap one and ours.
	w = doRequest(t, s, http.MethodGet, "/api/v1/subscriptions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(2), decode(t, w)["total"])
	require.Equal(t, 2, app.Coordinator().SubscriptionCount())

	// Ownership handshake.
	heir := models.DeriveAddress("test/heir").Hex()
	w = doRequest(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/transfer",
		gin.H{"caller": owner, "new_owner": heir})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/accept",
		gin.H{"caller": owner})
	require.Equal(t, http.StatusForbidden, w.Code)
	w = doRequest(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/accept",
		gin.H{"caller": heir})
	require.Equal(t, http.StatusOK, w.Code)

	// Cancel refunds the balance to the recipient.
	w = doRequest(t, s, http.MethodPost, "/api/v1/subscriptions/"+subID+"/cancel",
		gin.H{"caller": heir, "to": heir})
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, s, http.MethodGet, "/api/v1/subscriptions/"+subID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSubscriptionErrors(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/v1/subscriptions/nonsense", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	unknown := "0x" + strings.Repeat("11", 32)
	w = doRequest(t, s, http.MethodGet, "/api/v1/subscriptions/"+unknown, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFulfillUnknownRequest(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/api/v1/oracle/fulfill", gin.H{"request_id": 42})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestWithdrawAndReconcile(t *testing.T) {
	s, _ := newTestServer(t)
	operator := models.DeriveAddress("fortuna/operator").Hex()
	stranger := models.DeriveAddress("test/stranger").Hex()

	w := doRequest(t, s, http.MethodPost, "/api/v1/coordinator/withdraw",
		gin.H{"caller": stranger, "currency": "ctn"})
	require.Equal(t, http.StatusForbidden, w.Code)

	// Nothing accrued yet.
	w = doRequest(t, s, http.MethodPost, "/api/v1/coordinator/withdraw",
		gin.H{"caller": operator, "currency": "ctn"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/v1/coordinator/reconcile", gin.H{"currency": "ctn"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "0", decode(t, w)["surplus"])

	w = doRequest(t, s, http.MethodPost, "/api/v1/coordinator/reconcile", gin.H{"currency": "doge"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsAndWinners(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/v1/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	// Bootstrap already journaled subscription and consumer events.
	events, ok := decode(t, w)["events"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, events)

	w = doRequest(t, s, http.MethodGet, "/api/v1/events?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/v1/winners", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
