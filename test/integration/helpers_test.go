package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/priazovimpact/auth-service/internal/domain"
	"github.com/priazovimpact/auth-service/internal/http/handler"
	"github.com/priazovimpact/auth-service/internal/http/router"
	"github.com/priazovimpact/auth-service/internal/repository"
	"github.com/priazovimpact/auth-service/internal/security"
	"github.com/priazovimpact/auth-service/internal/service"
)

// testBcryptCost keeps the suite fast; production uses a far higher cost.
const testBcryptCost = 4

type testServer struct {
	URL         string
	DB          *gorm.DB
	Hasher      *security.PasswordHasher
	Principals  repository.PrincipalRepository
	Sessions    repository.SessionRepository
	ResetTokens repository.ResetTokenRepository
	Mailer      *captureMailer
}

// captureMailer records reset codes instead of delivering them, so the
// suite can complete the forgot/reset round trip.
type captureMailer struct {
	codes []string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, _ string, code string) error {
	m.codes = append(m.codes, code)
	return nil
}

func (m *captureMailer) SendPasswordChanged(context.Context, string) error { return nil }

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	if len(m.codes) == 0 {
		t.Fatal("no reset code was mailed")
	}
	return m.codes[len(m.codes)-1]
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Principal{},
		&domain.Session{},
		&domain.PasswordResetToken{},
		&domain.RevokedToken{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	principals := repository.NewPrincipalRepository(db)
	sessions := repository.NewSessionRepository(db)
	resetTokens := repository.NewResetTokenRepository(db)
	denylist := repository.NewRevokedTokenRepository(db)

	codec := security.NewTokenCodec("priazov-auth", "priazov-api", "test-access-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour)
	hasher := security.NewPasswordHasher(testBcryptCost)
	cache := service.NewInMemoryTokenValidationCache()
	mailer := &captureMailer{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	authService := service.NewAuthService(codec, hasher, principals, sessions, denylist, cache, log)
	resetService := service.NewPasswordResetService(hasher, principals, resetTokens, sessions, mailer, log)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authService),
		PasswordHandler: handler.NewPasswordHandler(resetService),
		AccessValidator: authService,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:         srv.URL,
		DB:          db,
		Hasher:      hasher,
		Principals:  principals,
		Sessions:    sessions,
		ResetTokens: resetTokens,
		Mailer:      mailer,
	}
}

func (s *testServer) seedPrincipal(t *testing.T, email, password string, role domain.Role) *domain.Principal {
	t.Helper()
	hash, err := s.Hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	p := &domain.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.DB.Create(p).Error; err != nil {
		t.Fatalf("seed principal: %v", err)
	}
	return p
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, env
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email"`
}

func decodePair(t *testing.T, env envelope) tokenPair {
	t.Helper()
	var pair tokenPair
	if err := json.Unmarshal(env.Data, &pair); err != nil {
		t.Fatalf("decode token pair: %v", err)
	}
	return pair
}
