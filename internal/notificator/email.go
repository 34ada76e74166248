package notificator

import (
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/core-coin/fortuna/pkg/logger"
)

// EmailNotificator mails winner announcements to a fixed recipient.
type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string
	Recipient    string

	SMTPAuth smtp.Auth
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPUser, SMTPPassword, SMTPSender, recipient string) *EmailNotificator {
	auth := smtp.PlainAuth(
		"",
		SMTPUser,
		SMTPPassword,
		SMTPHost,
	)

	return &EmailNotificator{
		logger:       logger,
		SMTPAuth:     auth,
		SMTPHost:     SMTPHost,
		SMTPPort:     SMTPPort,
		SMTPUser:     SMTPUser,
		SMTPPassword: SMTPPassword,
		SMTPSender:   SMTPSender,
		Recipient:    recipient,
	}
}

func (e *EmailNotificator) SendNotification(message string) {
	addr := fmt.Sprintf("%s:%s", e.SMTPHost, strconv.Itoa(e.SMTPPort))
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.SMTPSender,
		e.Recipient,
		"Raffle winner picked",
		message,
	)
	if err := smtp.SendMail(addr, e.SMTPAuth, e.SMTPSender, []string{e.Recipient}, []byte(msg)); err != nil {
		e.logger.Error("Failed to send email: ", err)
	}
}
