package userauth

import "log"

// EmailSender delivers a pre-rendered message to an address. The body is
// passed through opaquely; templating is the caller's concern.
//
// Implementations return ErrNoTransport when no transport is configured at
// all, and any other error for a delivery failure. The account manager
// treats the two differently during signup (see AccountManager.SignUp).
type EmailSender interface {
	Send(to, subject, body string) error
}

// ConsoleEmailSender is a development implementation that logs messages to
// the console instead of delivering them.
type ConsoleEmailSender struct{}

func (c *ConsoleEmailSender) Send(to, subject, body string) error {
	log.Printf("\n=== EMAIL ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: %s", subject)
	log.Printf("Body: %s", body)
	log.Printf("=============\n")
	return nil
}
