package notifications

import (
	"context"
	"fmt"
	"time"
)

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier is the email capability the auth workflows call.
type Notifier interface {
	SendOtpEmail(ctx context.Context, to, code string) error
	SendResetLink(ctx context.Context, to, url string) error
}

// EmailNotifier renders the auth templates and hands them to a Mailer.
type EmailNotifier struct {
	mailer  Mailer
	appName string
	now     func() time.Time
}

func NewEmailNotifier(mailer Mailer, appName string) *EmailNotifier {
	if appName == "" {
		appName = "AuthHub"
	}

	return &EmailNotifier{
		mailer:  mailer,
		appName: appName,
		now:     time.Now,
	}
}

func (n *EmailNotifier) SendOtpEmail(ctx context.Context, to, code string) error {
	msg, err := renderOtp(n.appName, code, n.now().Year())

	if err != nil {
		return err
	}

	msg.To = to

	err = n.mailer.Send(ctx, msg)

	if err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	return nil
}

func (n *EmailNotifier) SendResetLink(ctx context.Context, to, url string) error {
	msg, err := renderReset(n.appName, url, n.now().Year())

	if err != nil {
		return err
	}

	msg.To = to

	err = n.mailer.Send(ctx, msg)

	if err != nil {
		return fmt.Errorf("send reset link: %w", err)
	}

	return nil
}
