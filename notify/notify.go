package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/drone/drone-testng-notify/testng"
)

// Channels are the senders used by Dispatch. A nil sender is built from the config.
type Channels struct {
	Email EmailSender
	Chat  ChatSender
}

// Dispatch sends the e-mail and chat notifications enabled in cfg. Channel
// failures are logged and returned, they never stop the other channel.
func Dispatch(ctx context.Context, summary testng.Summary, cfg Config, channels Channels) []error {
	var errs []error

	if cfg.EnableEmail {
		logrus.Info("📧 Sending email notification...")
		if err := sendEmail(ctx, summary, cfg, channels.Email); err != nil {
			logrus.Errorf("❌ Failed to send email: %v", err)
			errs = append(errs, err)
		} else {
			logrus.Info("✅ Email sent successfully")
		}
	} else {
		logrus.Info("📧 Email notification is disabled")
	}

	if cfg.EnableGoogleChat {
		logrus.Info("💬 Sending Google Chat notification...")
		if err := sendChat(ctx, summary, cfg, channels.Chat); err != nil {
			logrus.Errorf("❌ Failed to send Google Chat notification: %v", err)
			errs = append(errs, err)
		} else {
			logrus.Info("✅ Google Chat notification sent successfully")
		}
	} else {
		logrus.Info("💬 Google Chat notification is disabled")
	}

	return errs
}

func sendEmail(ctx context.Context, summary testng.Summary, cfg Config, sender EmailSender) error {
	email, err := BuildEmail(summary, cfg)
	if err != nil {
		return err
	}
	if sender == nil {
		sender = NewSMTPSender(cfg)
	}
	return sender.Send(ctx, email)
}

func sendChat(ctx context.Context, summary testng.Summary, cfg Config, sender ChatSender) error {
	if sender == nil {
		sender = NewWebhookSender(cfg.GoogleChatWebhook)
	}
	return sender.Send(ctx, BuildCard(summary, cfg))
}
