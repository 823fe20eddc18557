package services

import (
	"context"
	"fmt"
	"time"

	"license-api/internal/config"
	"license-api/pkg/logging"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// EmailNotifier sends the "Pro activated" email after a successful
// charge. Best-effort: entitlement state never depends on delivery.
type EmailNotifier struct {
	client    *brevo.APIClient
	fromEmail string
	fromName  string
}

// NewEmailNotifier creates a notifier, or nil when Brevo is not
// configured so callers can skip sending entirely.
func NewEmailNotifier() *EmailNotifier {
	if config.AppConfig.BrevoAPIKey == "" || config.AppConfig.BrevoFromEmail == "" {
		return nil
	}

	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", config.AppConfig.BrevoAPIKey)

	return &EmailNotifier{
		client:    brevo.NewAPIClient(cfg),
		fromEmail: config.AppConfig.BrevoFromEmail,
		fromName:  config.AppConfig.BrevoFromName,
	}
}

// SendProActivated emails the payer that Pro is active until expiresAt.
func (n *EmailNotifier) SendProActivated(ctx context.Context, email string, expiresAt time.Time) {
	if n == nil {
		return
	}

	subject := fmt.Sprintf("%s - Pro activated", n.fromName)
	htmlContent := fmt.Sprintf(`
		<html>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h2>Your Pro subscription is active</h2>
			<p>Thanks for subscribing. Pro features are unlocked on this account.</p>
			<p>Current period ends: <b>%s</b>. Your subscription renews automatically.</p>
		</body>
		</html>
	`, expiresAt.Format("2 January 2006"))
	textContent := fmt.Sprintf("Your Pro subscription is active. Current period ends: %s.", expiresAt.Format("2 January 2006"))

	_, _, err := n.client.TransactionalEmailsApi.SendTransacEmail(ctx, brevo.SendSmtpEmail{
		Sender:      &brevo.SendSmtpEmailSender{Name: n.fromName, Email: n.fromEmail},
		To:          []brevo.SendSmtpEmailTo{{Email: email}},
		Subject:     subject,
		HtmlContent: htmlContent,
		TextContent: textContent,
	})
	if err != nil {
		logging.Errorf("Failed to send activation email to %s: %v", email, err)
		return
	}
	logging.Infof("Activation email sent to %s", email)
}
