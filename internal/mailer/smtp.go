package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/config"
)

// Mailer delivers one email. Implementations report failure through the
// returned error and never panic.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
	Configured() bool
}

// SMTPMailer sends mail through a plain SMTP relay with AUTH PLAIN.
type SMTPMailer struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

func NewSMTPMailer(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Configured reports whether the transport has enough settings to attempt a
// real send. An unconfigured mailer is a valid deployment; callers degrade to
// log-only delivery.
func (m *SMTPMailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.Username != "" && m.cfg.Password != ""
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) (string, error) {
	if !m.Configured() {
		return "", fmt.Errorf("mail transport not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}

	messageID := fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), sanitizeLocal(to), m.cfg.Host)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Message-ID: %s\r\n", messageID)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg.String())); err != nil {
		m.logger.Error("SMTP send failed",
			zap.String("to", to),
			zap.String("host", m.cfg.Host),
			zap.Error(err),
		)
		return "", fmt.Errorf("smtp send: %w", err)
	}

	m.logger.Info("Email sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("message_id", messageID),
	)
	return messageID, nil
}

func sanitizeLocal(to string) string {
	if i := strings.IndexByte(to, '@'); i > 0 {
		to = to[:i]
	}
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, to)
}
