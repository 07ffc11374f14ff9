package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/priazovimpact/auth-service/internal/domain"
	"github.com/priazovimpact/auth-service/internal/repository"
	"github.com/priazovimpact/auth-service/internal/security"
)

type resetFixture struct {
	service     *PasswordResetService
	hasher      *security.PasswordHasher
	principals  *fakePrincipalRepo
	resetTokens *fakeResetTokenRepo
	sessions    *fakeSessionRepo
	mailer      *recordingEmailSender
	principal   *domain.Principal
	password    string
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	hasher := security.NewPasswordHasher(4)
	password := "old password"
	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	principal := &domain.Principal{
		ID:           uuid.NewString(),
		Email:        "hr@priazov-impact.ru",
		PasswordHash: hash,
		Role:         domain.RoleCompany,
	}

	principals := newFakePrincipalRepo(principal)
	resetTokens := newFakeResetTokenRepo()
	sessions := newFakeSessionRepo()
	mailer := newRecordingEmailSender()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &resetFixture{
		service:     NewPasswordResetService(hasher, principals, resetTokens, sessions, mailer, logger),
		hasher:      hasher,
		principals:  principals,
		resetTokens: resetTokens,
		sessions:    sessions,
		mailer:      mailer,
		principal:   principal,
		password:    password,
	}
}

func TestRequestIssuesCodeAndMailsIt(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()

	if err := f.service.Request(ctx, f.principal.Email); err != nil {
		t.Fatalf("Request: %v", err)
	}

	code := f.mailer.lastCode(f.principal.Email)
	if len(code) != resetCodeLength {
		t.Fatalf("mailed code %q, want %d characters", code, resetCodeLength)
	}

	token, err := f.resetTokens.FindValid(ctx, code)
	if err != nil {
		t.Fatalf("stored code not found: %v", err)
	}
	if token.PrincipalID != f.principal.ID {
		t.Fatalf("token principal = %q, want %q", token.PrincipalID, f.principal.ID)
	}
	if remaining := time.Until(token.ExpiresAt); remaining > time.Hour || remaining < 59*time.Minute {
		t.Fatalf("token lifetime = %v, want about an hour", remaining)
	}
}

func TestRequestUnknownEmailSucceedsSilently(t *testing.T) {
	f := newResetFixture(t)

	if err := f.service.Request(context.Background(), "stranger@example.com"); err != nil {
		t.Fatalf("Request for unknown email must not error, got %v", err)
	}
	if code := f.mailer.lastCode("stranger@example.com"); code != "" {
		t.Fatal("no mail may be sent for an unknown email")
	}
}

func TestRepeatRequestReplacesCode(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()

	if err := f.service.Request(ctx, f.principal.Email); err != nil {
		t.Fatalf("first Request: %v", err)
	}
	first := f.mailer.lastCode(f.principal.Email)

	if err := f.service.Request(ctx, f.principal.Email); err != nil {
		t.Fatalf("second Request: %v", err)
	}
	second := f.mailer.lastCode(f.principal.Email)

	if first == second {
		t.Skip("uuid prefixes collided")
	}
	if _, err := f.resetTokens.FindValid(ctx, first); !errors.Is(err, repository.ErrResetTokenNotFound) {
		t.Fatal("superseded code must no longer be valid")
	}
	if _, err := f.resetTokens.FindValid(ctx, second); err != nil {
		t.Fatalf("current code not found: %v", err)
	}
}

func TestResetReplacesHashConsumesCodeAndEndsSession(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()

	if _, err := f.sessions.Replace(ctx, f.principal.ID, "live-refresh-token", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := f.service.Request(ctx, f.principal.Email); err != nil {
		t.Fatalf("Request: %v", err)
	}
	code := f.mailer.lastCode(f.principal.Email)

	if err := f.service.Reset(ctx, code, "brand new password"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	updated, err := f.principals.FindByID(ctx, f.principal.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !f.hasher.Verify("brand new password", updated.PasswordHash) {
		t.Fatal("new password does not verify against the stored hash")
	}
	if f.hasher.Verify(f.password, updated.PasswordHash) {
		t.Fatal("old password still verifies")
	}

	if _, err := f.resetTokens.FindValid(ctx, code); !errors.Is(err, repository.ErrResetTokenNotFound) {
		t.Fatal("reset code must be single use")
	}
	if err := f.service.Reset(ctx, code, "another password"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("second Reset error = %v, want ErrResetTokenInvalid", err)
	}

	if _, err := f.sessions.FindByPrincipal(ctx, f.principal.ID); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatal("reset must invalidate the live session")
	}

	if len(f.mailer.changedSent) != 1 || f.mailer.changedSent[0] != f.principal.Email {
		t.Fatalf("changed notice sent to %v", f.mailer.changedSent)
	}
}

func TestResetSamePasswordRejectedWithoutSideEffects(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()

	originalHash := f.principal.PasswordHash
	if _, err := f.sessions.Replace(ctx, f.principal.ID, "live-refresh-token", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := f.service.Request(ctx, f.principal.Email); err != nil {
		t.Fatalf("Request: %v", err)
	}
	code := f.mailer.lastCode(f.principal.Email)

	if err := f.service.Reset(ctx, code, f.password); !errors.Is(err, ErrSamePassword) {
		t.Fatalf("Reset error = %v, want ErrSamePassword", err)
	}

	updated, err := f.principals.FindByID(ctx, f.principal.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if updated.PasswordHash != originalHash {
		t.Fatal("rejected reset must not touch the stored hash")
	}
	if _, err := f.resetTokens.FindValid(ctx, code); err != nil {
		t.Fatal("rejected reset must not consume the code")
	}
	if _, err := f.sessions.FindByPrincipal(ctx, f.principal.ID); err != nil {
		t.Fatal("rejected reset must not end the session")
	}
}

func TestResetExpiredCode(t *testing.T) {
	f := newResetFixture(t)
	ctx := context.Background()

	if err := f.resetTokens.Upsert(ctx, f.principal.ID, "abc123", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := f.service.Reset(ctx, "abc123", "new password"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("Reset error = %v, want ErrResetTokenInvalid", err)
	}
}

func TestResetInvalidInput(t *testing.T) {
	f := newResetFixture(t)
	if err := f.service.Reset(context.Background(), "", "pw"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty code error = %v, want ErrInvalidInput", err)
	}
	if err := f.service.Reset(context.Background(), "abc123", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty password error = %v, want ErrInvalidInput", err)
	}
	if err := f.service.Request(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty email error = %v, want ErrInvalidInput", err)
	}
}
