package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	v1 := s.router.Group("/api/v1")

	v1.POST("/raffle/enter", s.enterRaffle)
	v1.GET("/raffle", s.raffleStatus)
	v1.GET("/raffle/upkeep", s.checkUpkeep)
	v1.POST("/raffle/upkeep", s.performUpkeep)

	v1.POST("/subscriptions", s.createSubscription)
	v1.GET("/subscriptions", s.listSubscriptions)
	v1.GET("/subscriptions/:id", s.getSubscription)
	v1.POST("/subscriptions/:id/fund", s.fundSubscription)
	v1.POST("/subscriptions/:id/consumers", s.addConsumer)
	v1.POST("/subscriptions/:id/consumers/remove", s.removeConsumer)
	v1.POST("/subscriptions/:id/transfer", s.requestOwnershipTransfer)
	v1.POST("/subscriptions/:id/accept", s.acceptOwnershipTransfer)
	v1.POST("/subscriptions/:id/cancel", s.cancelSubscription)

	v1.POST("/oracle/fulfill", s.fulfillRandomWords)
	v1.POST("/coordinator/withdraw", s.withdraw)
	v1.POST("/coordinator/reconcile", s.reconcile)

	v1.POST("/faucet", s.faucet)
	v1.GET("/events", s.listEvents)
	v1.GET("/winners", s.listWinners)
}
