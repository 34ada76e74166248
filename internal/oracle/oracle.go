// Package oracle is the mock randomness-oracle fulfiller: it polls the
// coordinator for pending requests and fulfills each one after its
// confirmation depth has elapsed, with words the coordinator synthesizes
// from the request id. A production deployment replaces this with a real
// oracle delivering externally generated, proof-carrying randomness.
package oracle

import (
	"time"

	"github.com/core-coin/fortuna/internal/coordinator"
	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/pkg/logger"
)

type Oracle struct {
	logger   *logger.Logger
	coord    *coordinator.Coordinator
	consumer models.RandomnessConsumer
	// blockTime converts a request's confirmation depth into a delay.
	blockTime time.Duration
	poll      time.Duration

	stop chan struct{}
	done chan struct{}
}

func New(coord *coordinator.Coordinator, consumer models.RandomnessConsumer, blockTime, poll time.Duration, log *logger.Logger) *Oracle {
	return &Oracle{
		logger:    log,
		coord:     coord,
		consumer:  consumer,
		blockTime: blockTime,
		poll:      poll,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the fulfillment loop until Stop is called.
func (o *Oracle) Start() {
	go func() {
		defer close(o.done)
		ticker := time.NewTicker(o.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.Tick()
			case <-o.stop:
				return
			}
		}
	}()
}

// Tick fulfills every pending request whose confirmation delay has passed.
func (o *Oracle) Tick() {
	for _, req := range o.coord.PendingRequests() {
		due := req.CreatedAt.Add(time.Duration(req.Confirmations) * o.blockTime)
		if time.Now().Before(due) {
			continue
		}
		payment, err := o.coord.FulfillRandomWords(req.ID, o.consumer, nil)
		if err != nil {
			o.logger.Error("Failed to fulfill request ", "request ", req.ID, " error ", err)
			continue
		}
		o.logger.Info("Request fulfilled ", "request ", req.ID, " payment ", payment.String())
	}
}

// Stop terminates the loop and waits for it to exit.
func (o *Oracle) Stop() {
	close(o.stop)
	<-o.done
}
