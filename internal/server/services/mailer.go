package services

import (
	"context"

	"github.com/doclearn/doclearn/internal/logging"
)

// Mailer delivers verification codes.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// LogMailer writes codes to the log instead of sending mail.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("module", "mailer")}
}

func (m *LogMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	m.logger.Info(ctx, "verification code issued", "email", email, "code", code)
	return nil
}
