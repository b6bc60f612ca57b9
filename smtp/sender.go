package smtp

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"

	ua "github.com/whataclass/userauth"
)

// Config holds SMTP server settings.  A zero Host means no transport is
// configured: Send reports ErrNoTransport and the account manager falls
// back to auto-confirming new accounts.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`

	// UseTLS dials with implicit TLS (usually port 465).  Otherwise the
	// connection starts plain and upgrades via STARTTLS when offered.
	UseTLS bool `yaml:"use_tls"`
}

// Sender delivers mail over SMTP.  Implements userauth.EmailSender.
type Sender struct {
	cfg Config
}

func New(cfg Config) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(to, subject, body string) error {
	if s == nil || s.cfg.Host == "" {
		return ua.ErrNoTransport
	}

	e := email.NewEmail()
	e.From = s.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	var auth smtp.Auth
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var err error
	if s.cfg.UseTLS {
		err = e.SendWithTLS(addr, auth, &tls.Config{ServerName: s.cfg.Host})
	} else {
		err = e.Send(addr, auth)
	}
	if err != nil {
		slog.Error("error when trying to send email", slog.String("to", to), slog.String("error", err.Error()))
		return err
	}
	return nil
}
