package http_api

import (
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/core-coin/go-core/v2/common"
	"github.com/gin-gonic/gin"

	"github.com/core-coin/fortuna/internal/bank"
	"github.com/core-coin/fortuna/internal/coordinator"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/internal/raffle"
	"github.com/core-coin/fortuna/pkg/validation"
)

// EnterRequest represents the JSON body for a raffle entry
type EnterRequest struct {
	Player string `json:"player" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

// FundRequest represents the JSON body for funding a subscription
type FundRequest struct {
	From     string `json:"from" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

// ConsumerRequest represents the JSON body for consumer management
type ConsumerRequest struct {
	Caller   string `json:"caller" binding:"required"`
	Consumer string `json:"consumer" binding:"required"`
}

// TransferRequest represents the JSON body for an ownership transfer request
type TransferRequest struct {
	Caller   string `json:"caller" binding:"required"`
	NewOwner string `json:"new_owner" binding:"required"`
}

// FulfillRequest represents the JSON body for an oracle fulfillment. Words
// are optional; when omitted the coordinator synthesizes the mock result.
type FulfillRequest struct {
	RequestID uint64   `json:"request_id" binding:"required"`
	Words     []string `json:"words"`
}

// SubscriptionResponse represents a subscription record on the wire
type SubscriptionResponse struct {
	ID            string   `json:"id"`
	Owner         string   `json:"owner"`
	PendingOwner  string   `json:"pending_owner,omitempty"`
	Consumers     []string `json:"consumers"`
	NativeBalance string   `json:"native_balance"`
	TokenBalance  string   `json:"token_balance"`
	RequestCount  uint64   `json:"request_count"`
}

// RaffleStatusResponse represents the raffle state for dashboards
type RaffleStatusResponse struct {
	State          string   `json:"state"`
	Entrants       []string `json:"entrants"`
	EntrantCount   int      `json:"entrant_count"`
	RecentWinner   string   `json:"recent_winner"`
	Balance        string   `json:"balance"`
	EntranceFee    string   `json:"entrance_fee"`
	SubscriptionID string   `json:"subscription_id"`
}

// enterRaffle is a handler for the raffle entry endpoint.
func (s *HTTPServer) enterRaffle(c *gin.Context) {
	var req EnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	player, ok := s.parseAddress(c, req.Player)
	if !ok {
		return
	}
	amount, err := validation.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(c, "Invalid amount: "+err.Error())
		return
	}

	if err := s.app.Raffle().Enter(player, amount); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"entrants": len(s.app.Raffle().Entrants()),
	})
}

// raffleStatus is a handler for the raffle status endpoint.
func (s *HTTPServer) raffleStatus(c *gin.Context) {
	r := s.app.Raffle()
	entrants := r.Entrants()
	hexes := make([]string, len(entrants))
	for i, addr := range entrants {
		hexes[i] = addr.Hex()
	}
	c.JSON(http.StatusOK, RaffleStatusResponse{
		State:          r.State().String(),
		Entrants:       hexes,
		EntrantCount:   len(hexes),
		RecentWinner:   r.RecentWinner().Hex(),
		Balance:        r.Balance().String(),
		EntranceFee:    r.EntranceFee().String(),
		SubscriptionID: s.app.SubscriptionID().Hex(),
	})
}

// checkUpkeep is a handler for the read-only upkeep condition.
func (s *HTTPServer) checkUpkeep(c *gin.Context) {
	c.JSON(http.StatusOK, s.app.Raffle().CheckUpkeep())
}

// performUpkeep triggers a winner computation cycle.
func (s *HTTPServer) performUpkeep(c *gin.Context) {
	requestID, err := s.app.Raffle().PerformUpkeep()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "request_id": requestID})
}

// createSubscription is a handler for the subscription creation endpoint.
func (s *HTTPServer) createSubscription(c *gin.Context) {
	var req struct {
		Owner string `json:"owner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	owner, ok := s.parseAddress(c, req.Owner)
	if !ok {
		return
	}
	subID, err := s.app.Coordinator().CreateSubscription(owner)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "sub_id": subID.Hex()})
}

// listSubscriptions pages through active subscription ids.
func (s *HTTPServer) listSubscriptions(c *gin.Context) {
	start, err := strconv.Atoi(c.DefaultQuery("start", "0"))
	if err != nil {
		s.badRequest(c, "Invalid start parameter")
		return
	}
	max, err := strconv.Atoi(c.DefaultQuery("max", "0"))
	if err != nil {
		s.badRequest(c, "Invalid max parameter")
		return
	}
	ids, err := s.app.Coordinator().ListSubscriptions(start, max)
	if err != nil {
		s.fail(c, err)
		return
	}
	hexes := make([]string, len(ids))
	for i, id := range ids {
		hexes[i] = id.Hex()
	}
	c.JSON(http.StatusOK, gin.H{
		"sub_ids": hexes,
		"total":   s.app.Coordinator().SubscriptionCount(),
	})
}

// getSubscription returns a single subscription record.
func (s *HTTPServer) getSubscription(c *gin.Context) {
	subID, ok := s.parseSubID(c)
	if !ok {
		return
	}
	sub, err := s.app.Coordinator().GetSubscription(subID)
	if err != nil {
		s.fail(c, err)
		return
	}
	consumers := make([]string, len(sub.Consumers))
	for i, addr := range sub.Consumers {
		consumers[i] = addr.Hex()
	}
	resp := SubscriptionResponse{
		ID:            sub.ID.Hex(),
		Owner:         sub.Owner.Hex(),
		Consumers:     consumers,
		NativeBalance: sub.NativeBalance.String(),
		TokenBalance:  sub.TokenBalance.String(),
		RequestCount:  sub.RequestCount,
	}
	if sub.PendingOwner != (common.Address{}) {
		resp.PendingOwner = sub.PendingOwner.Hex()
	}
	c.JSON(http.StatusOK, resp)
}

// fundSubscription credits a subscription balance from the payer's account.
func (s *HTTPServer) fundSubscription(c *gin.Context) {
	subID, ok := s.parseSubID(c)
	if !ok {
		return
	}
	var req FundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	from, ok := s.parseAddress(c, req.From)
	if !ok {
		return
	}
	amount, err := validation.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(c, "Invalid amount: "+err.Error())
		return
	}
	cur, err := models.ParseCurrency(req.Currency)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	if err := s.app.Coordinator().FundSubscription(from, subID, cur, amount); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// addConsumer authorizes a consumer on a subscription.
func (s *HTTPServer) addConsumer(c *gin.Context) {
	s.consumerOp(c, s.app.Coordinator().AddConsumer)
}

// removeConsumer revokes a consumer authorization.
func (s *HTTPServer) removeConsumer(c *gin.Context) {
	s.consumerOp(c, s.app.Coordinator().RemoveConsumer)
}

func (s *HTTPServer) consumerOp(c *gin.Context, op func(common.Address, common.Hash, common.Address) error) {
	subID, ok := s.parseSubID(c)
	if !ok {
		return
	}
	var req ConsumerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	caller, ok := s.parseAddress(c, req.Caller)
	if !ok {
		return
	}
	consumer, ok := s.parseAddress(c, req.Consumer)
	if !ok {
		return
	}
	if err := op(caller, subID, consumer); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// requestOwnershipTransfer starts the two-phase ownership handshake.
func (s *HTTPServer) requestOwnershipTransfer(c *gin.Context) {
	subID, ok := s.parseSubID(c)
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	caller, ok := s.parseAddress(c, req.Caller)
	if !ok {
		return
	}
	newOwner, ok := s.parseAddress(c, req.NewOwner)
	if !ok {
		return
	}
	if err := s.app.Coordinator().RequestOwnershipTransfer(caller, subID, newOwner); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// acceptOwnershipTransfer completes the handshake.
func (s *HTTPServer) acceptOwnershipTransfer(c *gin.Context) {
	subID, ok := s.parseSubID(c)
	if !ok {
		return
	}
	var req struct {
		Caller string `json:"caller" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	caller, ok := s.parseAddress(c, req.Caller)
	if !ok {
		return
	}
	if err := s.app.Coordinator().AcceptOwnershipTransfer(caller, subID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// cancelSubscription destroys a subscription and refunds its balances.
func (s *HTTPServer) cancelSubscription(c *gin.Context) {
	subID, ok := s.parseSubID(c)
	if !ok {
		return
	}
	var req struct {
		Caller string `json:"caller" binding:"required"`
		To     string `json:"to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	caller, ok := s.parseAddress(c, req.Caller)
	if !ok {
		return
	}
	to, ok := s.parseAddress(c, req.To)
	if !ok {
		return
	}
	if err := s.app.Coordinator().CancelSubscription(caller, subID, to); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// fulfillRandomWords lets the (mock) oracle deliver a result manually.
func (s *HTTPServer) fulfillRandomWords(c *gin.Context) {
	var req FulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	var words []*big.Int
	if req.Words != nil {
		words = make([]*big.Int, 0, len(req.Words))
		for _, w := range req.Words {
			word, ok := new(big.Int).SetString(w, 10)
			if !ok {
				s.badRequest(c, "Invalid word: "+w)
				return
			}
			words = append(words, word)
		}
	}
	payment, err := s.app.Coordinator().FulfillRandomWords(req.RequestID, s.app.Raffle(), words)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": payment.String()})
}

// withdraw pays the accrued fee pool out to the coordinator owner.
func (s *HTTPServer) withdraw(c *gin.Context) {
	var req struct {
		Caller   string `json:"caller" binding:"required"`
		Currency string `json:"currency" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	caller, ok := s.parseAddress(c, req.Caller)
	if !ok {
		return
	}
	cur, err := models.ParseCurrency(req.Currency)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	amount, err := s.app.Coordinator().Withdraw(caller, cur)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "amount": amount.String()})
}

// reconcile checks the ledger totals against the held funds.
func (s *HTTPServer) reconcile(c *gin.Context) {
	var req struct {
		Currency string `json:"currency" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	cur, err := models.ParseCurrency(req.Currency)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	surplus, err := s.app.Coordinator().Reconcile(cur)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "surplus": surplus.String()})
}

// faucet mints demo funds for a player account.
func (s *HTTPServer) faucet(c *gin.Context) {
	var req EnterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	player, ok := s.parseAddress(c, req.Player)
	if !ok {
		return
	}
	amount, err := validation.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(c, "Invalid amount: "+err.Error())
		return
	}
	s.app.Faucet(player, amount)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// listEvents returns the most recent journal rows.
func (s *HTTPServer) listEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		s.badRequest(c, "Invalid limit parameter")
		return
	}
	events, err := s.app.Repository().RecentEvents(limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// listWinners returns the most recent winner records.
func (s *HTTPServer) listWinners(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		s.badRequest(c, "Invalid limit parameter")
		return
	}
	winners, err := s.app.Repository().ListWinners(limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"winners": winners})
}

func (s *HTTPServer) parseAddress(c *gin.Context, value string) (common.Address, bool) {
	if err := validation.ValidateAddress(value); err != nil {
		s.logger.Debug("Invalid address", "error", err, "address", value)
		s.badRequest(c, "Invalid address: "+err.Error())
		return common.Address{}, false
	}
	addr, err := common.HexToAddress(value)
	if err != nil {
		s.badRequest(c, "Invalid address: "+err.Error())
		return common.Address{}, false
	}
	return addr, true
}

func (s *HTTPServer) parseSubID(c *gin.Context) (common.Hash, bool) {
	id := c.Param("id")
	if err := validation.ValidateHash(id); err != nil {
		s.badRequest(c, "Invalid subscription id: "+err.Error())
		return common.Hash{}, false
	}
	return common.HexToHash(id), true
}

func (s *HTTPServer) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

// fail maps a core error onto an HTTP status.
func (s *HTTPServer) fail(c *gin.Context, err error) {
	var notNeeded *raffle.UpkeepNotNeededError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, coordinator.ErrUnknownSubscription),
		errors.Is(err, coordinator.ErrUnknownRequest),
		errors.Is(err, coordinator.ErrUnknownConsumer):
		status = http.StatusNotFound
	case errors.Is(err, coordinator.ErrNotSubscriptionOwner),
		errors.Is(err, coordinator.ErrNotRequestedOwner),
		errors.Is(err, coordinator.ErrNotCoordinatorOwner),
		errors.Is(err, coordinator.ErrUnauthorizedConsumer),
		errors.Is(err, raffle.ErrUnauthorizedCaller):
		status = http.StatusForbidden
	case errors.Is(err, raffle.ErrNotOpen),
		errors.Is(err, raffle.ErrNotCalculating),
		errors.Is(err, raffle.ErrTransferFailed),
		errors.Is(err, coordinator.ErrPendingRequestsExist),
		errors.Is(err, coordinator.ErrNoWithdrawableBalance),
		errors.Is(err, coordinator.ErrReentrant),
		errors.As(err, &notNeeded):
		status = http.StatusConflict
	case errors.Is(err, raffle.ErrInsufficientPayment),
		errors.Is(err, coordinator.ErrInsufficientBalance),
		errors.Is(err, coordinator.ErrWordCountMismatch),
		errors.Is(err, coordinator.ErrMalformedExtraArgs),
		errors.Is(err, coordinator.ErrTooManyConsumers),
		errors.Is(err, coordinator.ErrSelfTransfer),
		errors.Is(err, coordinator.ErrIndexOutOfRange),
		errors.Is(err, bank.ErrInsufficientFunds),
		errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrTransferRejected):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed ", "error ", err)
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}
