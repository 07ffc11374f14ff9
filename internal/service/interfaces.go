package service

import "context"

// EmailSender is the delivery collaborator. Implementations retry
// transient failures themselves; an error returned here means retries
// are exhausted and the caller should treat it as fatal.
type EmailSender interface {
	SendPasswordReset(ctx context.Context, email, code string) error
	SendPasswordChanged(ctx context.Context, email string) error
}

// NoopEmailSender drops mail on the floor; used in tests and local runs
// without a delivery key.
type NoopEmailSender struct{}

func NewNoopEmailSender() *NoopEmailSender { return &NoopEmailSender{} }

func (NoopEmailSender) SendPasswordReset(context.Context, string, string) error { return nil }
func (NoopEmailSender) SendPasswordChanged(context.Context, string) error       { return nil }

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type PasswordResetServiceInterface interface {
	Request(ctx context.Context, email string) error
	Reset(ctx context.Context, code, newPassword string) error
}
