package mailer

import (
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"
)

// Mailer sends transactional mail (password resets) over SMTP with implicit
// TLS, the way the original deployment's mailserver expects it.
type Mailer struct {
	server   string
	port     int
	sender   string
	password string
}

func New(server string, port int, sender, password string) *Mailer {
	return &Mailer{server: server, port: port, sender: sender, password: password}
}

// Send delivers an HTML mail to a single recipient. Failures are reported to
// the caller as retryable; there is no queue or backoff.
func (m *Mailer) Send(to, subject, htmlBody string) error {
	if m.server == "" {
		return fmt.Errorf("mailer is not configured")
	}

	addr := fmt.Sprintf("%s:%d", m.server, m.port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.server})
	if err != nil {
		return fmt.Errorf("failed to connect to mailserver: %w", err)
	}

	client, err := smtp.NewClient(conn, m.server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open SMTP session: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", m.sender, m.password, m.server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("mailserver authentication failed: %w", err)
	}

	if err := client.Mail(m.sender); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s",
		m.sender, to, subject, htmlBody,
	)
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	logrus.WithField("to", to).Info("e-mail sent")
	return client.Quit()
}
