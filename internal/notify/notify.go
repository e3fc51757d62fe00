// Package notify delivers best-effort notifications. Senders must never be
// handed unlock codes, shares, or plaintext: payloads carry non-secret
// metadata only (recipient label, day count). Delivery failures are reported
// to the caller, who records them and moves on; they never fail the owning
// operation.
package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

// EmailMessage is one outbound mail.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
}

// EmailSender delivers mail through some transport.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// PushSender delivers a push payload to a subscription. Payloads follow the
// same non-secret rule as mail.
type PushSender interface {
	SendPush(ctx context.Context, subscription string, payload []byte) error
}

// AddressResolverFunc maps a user id to a deliverable address. Identity
// data lives outside this service, so resolution is injected.
type AddressResolverFunc func(ctx context.Context, userID string) (string, error)

// ReminderNotifier formats and sends the time-lock reminder for one
// reminder row.
type ReminderNotifier interface {
	NotifyReminder(ctx context.Context, reminder *models.Reminder) error
}

// EmailReminderNotifier sends reminders as plain mail.
type EmailReminderNotifier struct {
	sender  EmailSender
	resolve AddressResolverFunc
}

func NewEmailReminderNotifier(sender EmailSender, resolve AddressResolverFunc) *EmailReminderNotifier {
	return &EmailReminderNotifier{sender: sender, resolve: resolve}
}

func (n *EmailReminderNotifier) NotifyReminder(ctx context.Context, reminder *models.Reminder) error {
	to, err := n.resolve(ctx, reminder.OwnerUserID)
	if err != nil {
		return fmt.Errorf("resolving recipient: %w", err)
	}

	msg := EmailMessage{
		To:      to,
		Subject: "Your sealed letter opens soon",
		Text:    reminderText(reminder.DaysBefore),
	}

	return n.sender.SendEmail(ctx, msg)
}

func reminderText(daysBefore int) string {
	if daysBefore == 1 {
		return "A sealed letter you wrote unlocks tomorrow."
	}
	return fmt.Sprintf("A sealed letter you wrote unlocks in %d days.", daysBefore)
}
