package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Indirection for tests.
var sendMail = smtp.SendMail

// SMTPSender delivers mail over plain SMTP.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTPSender creates a sender for the given relay. Auth may be nil for
// an open local relay (dev setups).
func NewSMTPSender(host string, port int, from string, auth smtp.Auth) *SMTPSender {
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
	}
}

func (s *SMTPSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Text)

	if err := sendMail(s.addr, s.auth, s.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// NoopPushSender satisfies PushSender when no push transport is configured.
type NoopPushSender struct{}

func (NoopPushSender) SendPush(ctx context.Context, subscription string, payload []byte) error {
	return nil
}
