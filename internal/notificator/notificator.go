package notificator

import (
	"runtime/debug"

	"github.com/core-coin/fortuna/internal/models"
	"github.com/core-coin/fortuna/pkg/logger"
)

// Notificator fans a winner announcement out to the configured channels.
// A channel left unconfigured is simply skipped.
type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// safeCall runs a function with panic recovery so a failing channel cannot
// take down the engine.
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (n *Notificator) SendNotification(notification *models.Notification) {
	message := notification.String()
	if n.TelegramNotificator != nil {
		n.safeCall(func() { n.TelegramNotificator.SendNotification(message) }, "telegramNotification")
	}
	if n.EmailNotificator != nil {
		n.safeCall(func() { n.EmailNotificator.SendNotification(message) }, "emailNotification")
	}
}
