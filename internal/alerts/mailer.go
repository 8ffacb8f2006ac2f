package alerts

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sudo-init-do/bazaar/internal/config"
	"github.com/sudo-init-do/bazaar/internal/logger"
)

// Mailer delivers one rendered email.
type Mailer interface {
	Send(ctx context.Context, env EmailEnvelope) error
}

// NewMailer picks the transport named by cfg.Provider. Anything unknown logs.
func NewMailer(cfg config.MailConfig) Mailer {
	switch cfg.Provider {
	case "smtp":
		return &SMTPMailer{cfg: cfg}
	case "plunk":
		return NewPlunkMailer(cfg, nil)
	default:
		return LogMailer{}
	}
}

// LogMailer writes emails to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, env EmailEnvelope) error {
	logger.Info("[mail] to=%s subject=%q", env.To, env.Subject)
	return nil
}

// SMTPMailer sends plain text or HTML mail over implicit TLS.
type SMTPMailer struct {
	cfg config.MailConfig
}

func buildMessage(from, replyTo string, env EmailEnvelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", env.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", env.Subject)
	if replyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", replyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	contentType := "text/plain"
	lb := strings.ToLower(env.Body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") || strings.Contains(lb, "<!doctype html") {
		contentType = "text/html"
	}
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("\r\n" + env.Body + "\r\n")
	return b.String()
}

func (m *SMTPMailer) Send(ctx context.Context, env EmailEnvelope) error {
	cfg := m.cfg
	addr := cfg.SMTPHost + ":" + cfg.SMTPPort

	dialer := &tls.Dialer{Config: &tls.Config{ServerName: cfg.SMTPHost}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(env.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(buildMessage(cfg.From, cfg.ReplyTo, env))); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
