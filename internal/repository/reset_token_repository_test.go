package repository

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResetTokenUpsertReplacesExisting(t *testing.T) {
	repo := NewResetTokenRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, "p-1", "code-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.Upsert(ctx, "p-1", "code-2", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if _, err := repo.FindValid(ctx, "code-1"); !errors.Is(err, ErrResetTokenNotFound) {
		t.Fatalf("replaced code must be invalid, got %v", err)
	}
	row, err := repo.FindValid(ctx, "code-2")
	if err != nil {
		t.Fatalf("find valid: %v", err)
	}
	if row.PrincipalID != "p-1" {
		t.Fatalf("unexpected principal %q", row.PrincipalID)
	}
}

func TestResetTokenExpiryEnforced(t *testing.T) {
	repo := NewResetTokenRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, "p-1", "stale", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.FindValid(ctx, "stale"); !errors.Is(err, ErrResetTokenNotFound) {
		t.Fatalf("expired code must be invalid, got %v", err)
	}

	deleted, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 expired token deleted, got %d", deleted)
	}
}

func TestResetTokenSingleUseDelete(t *testing.T) {
	repo := NewResetTokenRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, "p-1", "code-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	row, err := repo.FindValid(ctx, "code-1")
	if err != nil {
		t.Fatalf("find valid: %v", err)
	}
	if err := repo.Delete(ctx, row.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindValid(ctx, "code-1"); !errors.Is(err, ErrResetTokenNotFound) {
		t.Fatalf("consumed code must be invalid, got %v", err)
	}
}
