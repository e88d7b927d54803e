package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Mailer delivers account notifications.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMTPConfig describes the outgoing mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	cfg    SMTPConfig
	client *mail.Client
}

// NewSMTPMailer builds an SMTP mailer. Authentication is enabled when a username is set.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{cfg: cfg, client: client}, nil
}

// Send wraps htmlBody in a minimal document and delivers it.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, Document(subject, htmlBody))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer only logs outgoing mail. Used when no relay is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that writes to logger.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	m.logger.InfoContext(ctx, "mail not sent, no smtp relay configured",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(htmlBody)),
	)
	return nil
}

// Document wraps an HTML fragment in a complete HTML page.
func Document(subject, body string) string {
	return `<!DOCTYPE html>
<html lang="en"><head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>` + html.EscapeString(subject) + `</title>
</head>
<body>` + body + `</body>
</html>`
}

// PasswordResetBody is the HTML fragment carrying a reset link.
func PasswordResetBody(name, resetURL string) string {
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p>
<p><a href="%s">%s</a></p>
<p>The link is valid for a few minutes. If you didn't forget your password, please ignore this email.</p>`,
		html.EscapeString(name), html.EscapeString(resetURL), html.EscapeString(resetURL))
}

// WelcomeBody is the HTML fragment sent after signup.
func WelcomeBody(name, profileURL string) string {
	return fmt.Sprintf(`<p>Welcome to taskhub, %s!</p>
<p>Your account is ready. You can review your profile at <a href="%s">%s</a>.</p>`,
		html.EscapeString(name), html.EscapeString(profileURL), html.EscapeString(profileURL))
}
