package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/priazovimpact/auth-service/internal/domain"
	"github.com/priazovimpact/auth-service/internal/repository"
)

// In-memory repository fakes mirroring the GORM implementations closely
// enough for service-level behavior: one session per principal, verbatim
// token match, expiry checks against time.Now.

type fakePrincipalRepo struct {
	mu         sync.Mutex
	principals map[string]*domain.Principal // keyed by id
}

func newFakePrincipalRepo(principals ...*domain.Principal) *fakePrincipalRepo {
	r := &fakePrincipalRepo{principals: map[string]*domain.Principal{}}
	for _, p := range principals {
		r.principals[p.ID] = p
	}
	return r
}

func (r *fakePrincipalRepo) FindByEmail(_ context.Context, email string) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.principals {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPrincipalNotFound
}

func (r *fakePrincipalRepo) FindByID(_ context.Context, id string) (*domain.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return nil, repository.ErrPrincipalNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePrincipalRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return repository.ErrPrincipalNotFound
	}
	p.PasswordHash = hash
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session // keyed by principal id
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*domain.Session{}}
}

func (r *fakeSessionRepo) Replace(_ context.Context, principalID, refreshToken string, expiresAt time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &domain.Session{
		ID:           uuid.NewString(),
		PrincipalID:  principalID,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	r.sessions[principalID] = s
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) FindByPrincipal(_ context.Context, principalID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[principalID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) FindAndValidate(_ context.Context, principalID, refreshToken string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[principalID]
	if !ok || s.RefreshToken != refreshToken || !time.Now().Before(s.ExpiresAt) {
		return nil, repository.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) DeleteByPrincipal(_ context.Context, principalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, principalID)
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if !time.Now().Before(s.ExpiresAt) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

type fakeResetTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.PasswordResetToken // keyed by principal id
}

func newFakeResetTokenRepo() *fakeResetTokenRepo {
	return &fakeResetTokenRepo{tokens: map[string]*domain.PasswordResetToken{}}
}

func (r *fakeResetTokenRepo) Upsert(_ context.Context, principalID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[principalID] = &domain.PasswordResetToken{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Token:       token,
		ExpiresAt:   expiresAt,
	}
	return nil
}

func (r *fakeResetTokenRepo) FindValid(_ context.Context, token string) (*domain.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Token == token && time.Now().Before(t.ExpiresAt) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrResetTokenNotFound
}

func (r *fakeResetTokenRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pid, t := range r.tokens {
		if t.ID == id {
			delete(r.tokens, pid)
		}
	}
	return nil
}

func (r *fakeResetTokenRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for pid, t := range r.tokens {
		if !time.Now().Before(t.ExpiresAt) {
			delete(r.tokens, pid)
			n++
		}
	}
	return n, nil
}

type fakeRevokedTokenRepo struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newFakeRevokedTokenRepo() *fakeRevokedTokenRepo {
	return &fakeRevokedTokenRepo{revoked: map[string]time.Time{}}
}

func (r *fakeRevokedTokenRepo) Add(_ context.Context, tokenID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.revoked[tokenID]; !ok {
		r.revoked[tokenID] = expiresAt
	}
	return nil
}

func (r *fakeRevokedTokenRepo) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[tokenID]
	return ok, nil
}

func (r *fakeRevokedTokenRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, exp := range r.revoked {
		if !time.Now().Before(exp) {
			delete(r.revoked, id)
			n++
		}
	}
	return n, nil
}

type recordingEmailSender struct {
	mu           sync.Mutex
	resetCodes   map[string]string // email -> last code
	changedSent  []string
	failNextSend bool
}

func newRecordingEmailSender() *recordingEmailSender {
	return &recordingEmailSender{resetCodes: map[string]string{}}
}

func (s *recordingEmailSender) SendPasswordReset(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextSend {
		s.failNextSend = false
		return context.DeadlineExceeded
	}
	s.resetCodes[email] = code
	return nil
}

func (s *recordingEmailSender) SendPasswordChanged(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changedSent = append(s.changedSent, email)
	return nil
}

func (s *recordingEmailSender) lastCode(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetCodes[email]
}
