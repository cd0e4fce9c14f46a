// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cardroom Contributors

// Package mail implements the auth.Notifier interface over SMTP, with a
// log-only variant for development.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"text/template"
	"time"

	"github.com/samber/oops"

	"github.com/cardroom/cardroom/internal/auth"
)

// Config holds SMTP delivery settings.
type Config struct {
	Addr     string // host:port
	From     string
	Username string
	Password string

	// BaseURL is the public prefix for confirmation and undo links.
	BaseURL string
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(
	`Hello {{.Username}},

Confirm your account by visiting:

  {{.BaseURL}}/confirm/{{.PlayerID}}/{{.TokenID}}

If you did not register, reject it instead:

  {{.BaseURL}}/reject/{{.PlayerID}}/{{.TokenID}}

The link expires in {{.TTL}}.
`))

var lockoutTmpl = template.Must(template.New("lockout").Parse(
	`Hello {{.Username}},

Repeated failed logins have locked your account until {{.Until}}.
If this was not you, consider changing your password once the lock expires.
`))

var changeTmpl = template.Must(template.New("change").Parse(
	`Hello {{.Username}},

Your account {{.Function}} was just changed. If this was not you, undo the
change within {{.TTL}}:

  {{.BaseURL}}/undo/{{.TokenID}}
`))

// SMTPNotifier delivers account mail over SMTP.
type SMTPNotifier struct {
	cfg    Config
	logger *slog.Logger
}

// NewSMTPNotifier creates an SMTPNotifier.
func NewSMTPNotifier(cfg Config, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

// SendConfirmation mails a confirmation link.
func (n *SMTPNotifier) SendConfirmation(ctx context.Context, email, username string, token *auth.ConfirmationToken) error {
	body, err := render(confirmationTmpl, map[string]any{
		"Username": username,
		"BaseURL":  n.cfg.BaseURL,
		"PlayerID": token.PlayerID.String(),
		"TokenID":  token.ID.String(),
		"TTL":      auth.ConfirmationTokenTTL.String(),
	})
	if err != nil {
		return err
	}
	return n.send(ctx, email, "Confirm your account", body)
}

// SendLockoutNotice mails a lockout notification.
func (n *SMTPNotifier) SendLockoutNotice(ctx context.Context, email, username string, until time.Time) error {
	body, err := render(lockoutTmpl, map[string]any{
		"Username": username,
		"Until":    until.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}
	return n.send(ctx, email, "Your account is locked", body)
}

// SendChangeNotice mails a credential-change notification with an undo link.
func (n *SMTPNotifier) SendChangeNotice(ctx context.Context, email, username string, token *auth.UndoToken) error {
	body, err := render(changeTmpl, map[string]any{
		"Username": username,
		"Function": string(token.Function),
		"BaseURL":  n.cfg.BaseURL,
		"TokenID":  token.ID.String(),
		"TTL":      auth.UndoTokenTTL.String(),
	})
	if err != nil {
		return err
	}
	return n.send(ctx, email, fmt.Sprintf("Your %s was changed", token.Function), body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.cfg.From, to, subject, body)

	var a smtp.Auth
	if n.cfg.Username != "" {
		host, _, err := net.SplitHostPort(n.cfg.Addr)
		if err != nil {
			host = n.cfg.Addr
		}
		a = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}

	if err := smtp.SendMail(n.cfg.Addr, a, n.cfg.From, []string{to}, []byte(msg)); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", to).
			With("subject", subject).
			Wrap(err)
	}
	n.logger.DebugContext(ctx, "mail sent", "to", to, "subject", subject)
	return nil
}

func render(tmpl *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", oops.Code("MAIL_TEMPLATE_FAILED").With("template", tmpl.Name()).Wrap(err)
	}
	return buf.String(), nil
}

// LogNotifier logs mail instead of sending it, for development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendConfirmation logs the confirmation token.
func (n *LogNotifier) SendConfirmation(ctx context.Context, email, username string, token *auth.ConfirmationToken) error {
	n.logger.InfoContext(ctx, "confirmation mail",
		"to", email, "username", username,
		"player_id", token.PlayerID.String(), "token_id", token.ID.String())
	return nil
}

// SendLockoutNotice logs the lockout.
func (n *LogNotifier) SendLockoutNotice(ctx context.Context, email, username string, until time.Time) error {
	n.logger.InfoContext(ctx, "lockout mail",
		"to", email, "username", username, "until", until)
	return nil
}

// SendChangeNotice logs the change notice.
func (n *LogNotifier) SendChangeNotice(ctx context.Context, email, username string, token *auth.UndoToken) error {
	n.logger.InfoContext(ctx, "change notice mail",
		"to", email, "username", username,
		"function", string(token.Function), "token_id", token.ID.String())
	return nil
}

// Compile-time interface checks.
var (
	_ auth.Notifier = (*SMTPNotifier)(nil)
	_ auth.Notifier = (*LogNotifier)(nil)
)
