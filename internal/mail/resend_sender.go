// Package mail implements the email delivery collaborator on the
// Resend API. Transient failures are retried with fixed backoff; a
// returned error means retries are exhausted.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v3"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 5 * time.Second
)

type ResendSender struct {
	client      *resend.Client
	from        string
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

func NewResendSender(apiKey, from string, logger *slog.Logger) *ResendSender {
	return &ResendSender{
		client:      resend.NewClient(apiKey),
		from:        from,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

func (s *ResendSender) SendPasswordReset(ctx context.Context, email, code string) error {
	html := fmt.Sprintf(`<div style="margin:20px;padding:5px;border:groove 2px black;">
<p style="font-size:20px">Здравствуйте!</p>
<p style="font-size:20px">Код для сброса пароля: %s</p>
<p style="font-size:20px">Если вы ничего не запрашивали, проигнорируйте это сообщение</p></div>`, code)
	return s.send(ctx, email, "Сброс пароля", html)
}

func (s *ResendSender) SendPasswordChanged(ctx context.Context, email string) error {
	html := `<div style="margin:20px;padding:5px;border:groove 2px black;">
<p style="font-size:20px">Здравствуйте!</p>
<p style="font-size:20px">Пароль от вашего аккаунта был изменён</p>
<p style="font-size:20px">Если это были не вы, обратитесь в поддержку</p></div>`
	return s.send(ctx, email, "Пароль изменён", html)
}

func (s *ResendSender) send(ctx context.Context, to, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Priazov-Impact <%s>", s.from),
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		_, err := s.client.Emails.SendWithContext(ctx, params)
		if err == nil {
			s.logger.InfoContext(ctx, "email sent", "subject", subject, "attempt", attempt)
			return nil
		}
		lastErr = err
		s.logger.WarnContext(ctx, "email delivery failed", "subject", subject, "attempt", attempt, "error", err)
		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-time.After(s.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("send email after %d attempts: %w", s.maxAttempts, lastErr)
}
