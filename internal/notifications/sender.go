package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/namnamchicken/shop-backend/pkg/config"
	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/logger"
)

// Sender delivers a rendered message to a recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender builds a sender from SMTP configuration.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send writes the message to the relay. Auth is skipped when no username is
// configured, which matches local relay setups.
func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.DefaultFrom,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, s.cfg.DefaultFrom, []string{to}, []byte(msg)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send mail")
	}
	return nil
}

// LogSender logs messages instead of delivering them. Used when no SMTP
// relay is configured, so local setups still see what would have been sent.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) (*LogSender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogSender{logg: logg}, nil
}

func (s *LogSender) Send(ctx context.Context, to, subject, _ string) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"to": to, "subject": subject})
	s.logg.Info(ctx, "mail delivery skipped, no smtp relay configured")
	return nil
}
