// Package keeper drives the raffle from the outside: it periodically polls
// the upkeep condition and triggers a cycle when it holds, the way an
// external automation network would.
package keeper

import (
	"errors"
	"time"

	"github.com/core-coin/fortuna/internal/raffle"
	"github.com/core-coin/fortuna/pkg/logger"
)

type Keeper struct {
	logger *logger.Logger
	raffle *raffle.Raffle
	poll   time.Duration

	stop chan struct{}
	done chan struct{}
}

func New(r *raffle.Raffle, poll time.Duration, log *logger.Logger) *Keeper {
	return &Keeper{
		logger: log,
		raffle: r,
		poll:   poll,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called.
func (k *Keeper) Start() {
	go func() {
		defer close(k.done)
		ticker := time.NewTicker(k.poll)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				k.Tick()
			case <-k.stop:
				return
			}
		}
	}()
}

// Tick performs one poll/trigger round. The condition is re-evaluated
// inside PerformUpkeep, so a lost race merely logs at debug level.
func (k *Keeper) Tick() {
	status := k.raffle.CheckUpkeep()
	if !status.Needed {
		return
	}
	requestID, err := k.raffle.PerformUpkeep()
	if err != nil {
		var notNeeded *raffle.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			k.logger.Debug("Upkeep no longer needed ", "state ", notNeeded.State.String())
			return
		}
		k.logger.Error("Failed to perform upkeep ", "error ", err)
		return
	}
	k.logger.Info("Upkeep performed ", "request ", requestID)
}

// Stop terminates the loop and waits for it to exit.
func (k *Keeper) Stop() {
	close(k.stop)
	<-k.done
}
