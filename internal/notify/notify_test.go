package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

type fakeSender struct {
	sent []EmailMessage
	err  error
}

func (f *fakeSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestEmailReminderNotifier_SendsNonSecretMetadataOnly(t *testing.T) {
	sender := &fakeSender{}
	n := NewEmailReminderNotifier(sender, func(ctx context.Context, userID string) (string, error) {
		return userID + "@example.org", nil
	})

	err := n.NotifyReminder(context.Background(), &models.Reminder{
		OwnerUserID: "u-1", LetterID: "l-1", DaysBefore: 7,
	})
	if err != nil {
		t.Fatalf("NotifyReminder error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "u-1@example.org" {
		t.Fatalf("unexpected recipient: %q", msg.To)
	}
	if !strings.Contains(msg.Text, "7 days") {
		t.Fatalf("expected day count in text, got %q", msg.Text)
	}
	// The letter id is internal; it must not leak into the mail body.
	if strings.Contains(msg.Text, "l-1") {
		t.Fatalf("letter id leaked into message: %q", msg.Text)
	}
}

func TestEmailReminderNotifier_SingleDayWording(t *testing.T) {
	sender := &fakeSender{}
	n := NewEmailReminderNotifier(sender, func(ctx context.Context, userID string) (string, error) {
		return "a@example.org", nil
	})

	err := n.NotifyReminder(context.Background(), &models.Reminder{OwnerUserID: "u-1", DaysBefore: 1})
	if err != nil {
		t.Fatalf("NotifyReminder error: %v", err)
	}
	if !strings.Contains(sender.sent[0].Text, "tomorrow") {
		t.Fatalf("unexpected wording: %q", sender.sent[0].Text)
	}
}

func TestEmailReminderNotifier_ResolveFailure(t *testing.T) {
	n := NewEmailReminderNotifier(&fakeSender{}, func(ctx context.Context, userID string) (string, error) {
		return "", errors.New("unknown user")
	})

	err := n.NotifyReminder(context.Background(), &models.Reminder{OwnerUserID: "ghost", DaysBefore: 7})
	if err == nil {
		t.Fatal("expected error when recipient cannot be resolved")
	}
}

func TestSMTPSender_BuildsMessage(t *testing.T) {
	orig := sendMail
	defer func() { sendMail = orig }()

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	s := NewSMTPSender("mail.local", 25, "sealbox@example.org", nil)
	err := s.SendEmail(context.Background(), EmailMessage{
		To: "a@example.org", Subject: "Subject line", Text: "body",
	})
	if err != nil {
		t.Fatalf("SendEmail error: %v", err)
	}
	if gotAddr != "mail.local:25" || gotFrom != "sealbox@example.org" {
		t.Fatalf("unexpected addr/from: %q %q", gotAddr, gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "a@example.org" {
		t.Fatalf("unexpected recipients: %v", gotTo)
	}
	body := string(gotBody)
	if !strings.Contains(body, "Subject: Subject line\r\n") || !strings.HasSuffix(body, "\r\n\r\nbody") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestSMTPSender_TransportError(t *testing.T) {
	orig := sendMail
	defer func() { sendMail = orig }()
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	s := NewSMTPSender("mail.local", 25, "sealbox@example.org", nil)
	err := s.SendEmail(context.Background(), EmailMessage{To: "a@example.org"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected transport error, got %v", err)
	}
}
