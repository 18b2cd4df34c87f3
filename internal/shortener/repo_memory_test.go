package shortener

import (
	"context"
	"testing"
	"time"

	"github.com/JLChnToZ/shota-url/internal/errx"
)

func memEntry(publicID, removalID string) *Entry {
	return &Entry{
		PublicID:      publicID,
		RemovalID:     removalID,
		Targets:       []Target{{URL: "https://a.example", Weight: 1}},
		RemainingUses: UnlimitedUses,
		ExpiresAt:     time.Now().Add(time.Hour),
		TTL:           time.Hour,
	}
}

func TestMemoryRepositoryCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and retrieves by both ids", func(t *testing.T) {
		repo := NewMemoryRepository()
		if err := repo.Create(ctx, memEntry("pub1", "rem1")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		byPub, err := repo.GetByPublicID(ctx, "pub1")
		if err != nil {
			t.Fatalf("GetByPublicID() error = %v", err)
		}
		byRem, err := repo.GetByRemovalID(ctx, "rem1")
		if err != nil {
			t.Fatalf("GetByRemovalID() error = %v", err)
		}
		if byPub.PublicID != byRem.PublicID {
			t.Errorf("lookups disagree: %q vs %q", byPub.PublicID, byRem.PublicID)
		}
	})

	t.Run("rejects duplicate public id", func(t *testing.T) {
		repo := NewMemoryRepository()
		if err := repo.Create(ctx, memEntry("pub1", "rem1")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		err := repo.Create(ctx, memEntry("pub1", "rem2"))
		if errx.KindOf(err) != errx.Conflict {
			t.Errorf("Create() error = %v, want Conflict", err)
		}
	})

	t.Run("rejects duplicate removal id", func(t *testing.T) {
		repo := NewMemoryRepository()
		if err := repo.Create(ctx, memEntry("pub1", "rem1")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		err := repo.Create(ctx, memEntry("pub2", "rem1"))
		if errx.KindOf(err) != errx.Conflict {
			t.Errorf("Create() error = %v, want Conflict", err)
		}
	})

	t.Run("returned entries are copies", func(t *testing.T) {
		repo := NewMemoryRepository()
		if err := repo.Create(ctx, memEntry("pub1", "rem1")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		first, _ := repo.GetByPublicID(ctx, "pub1")
		first.Targets[0].URL = "https://mutated.example"
		first.RemainingUses = 0

		second, _ := repo.GetByPublicID(ctx, "pub1")
		if second.Targets[0].URL != "https://a.example" {
			t.Error("mutation of a returned entry leaked into storage")
		}
		if second.RemainingUses != UnlimitedUses {
			t.Error("mutation of a returned entry leaked into storage")
		}
	})
}

func TestMemoryRepositoryDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes both lookup paths", func(t *testing.T) {
		repo := NewMemoryRepository()
		if err := repo.Create(ctx, memEntry("pub1", "rem1")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if err := repo.Delete(ctx, "pub1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := repo.GetByPublicID(ctx, "pub1"); errx.KindOf(err) != errx.NotFound {
			t.Errorf("GetByPublicID() after delete = %v, want NotFound", err)
		}
		if _, err := repo.GetByRemovalID(ctx, "rem1"); errx.KindOf(err) != errx.NotFound {
			t.Errorf("GetByRemovalID() after delete = %v, want NotFound", err)
		}
		if repo.Len() != 0 {
			t.Errorf("Len() = %d, want 0", repo.Len())
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		repo := NewMemoryRepository()
		if err := repo.Delete(ctx, "ghost"); errx.KindOf(err) != errx.NotFound {
			t.Errorf("Delete() error = %v, want NotFound", err)
		}
	})
}

func TestMemoryRepositorySaveVisit(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements a positive budget and updates the expiry", func(t *testing.T) {
		repo := NewMemoryRepository()
		e := memEntry("pub1", "rem1")
		e.RemainingUses = 2
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		expiry := time.Now().Add(2 * time.Hour).Truncate(time.Millisecond)
		if err := repo.SaveVisit(ctx, "pub1", expiry); err != nil {
			t.Fatalf("SaveVisit() error = %v", err)
		}

		stored, _ := repo.GetByPublicID(ctx, "pub1")
		if stored.RemainingUses != 1 {
			t.Errorf("RemainingUses = %d, want 1", stored.RemainingUses)
		}
		if !stored.ExpiresAt.Equal(expiry) {
			t.Errorf("ExpiresAt = %v, want %v", stored.ExpiresAt, expiry)
		}
	})

	t.Run("never decrements below zero", func(t *testing.T) {
		repo := NewMemoryRepository()
		e := memEntry("pub1", "rem1")
		e.RemainingUses = 1
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		for range 3 {
			if err := repo.SaveVisit(ctx, "pub1", e.ExpiresAt); err != nil {
				t.Fatalf("SaveVisit() error = %v", err)
			}
		}

		stored, _ := repo.GetByPublicID(ctx, "pub1")
		if stored.RemainingUses != 0 {
			t.Errorf("RemainingUses = %d, want floor at 0", stored.RemainingUses)
		}
	})

	t.Run("leaves unlimited budgets alone", func(t *testing.T) {
		repo := NewMemoryRepository()
		if err := repo.Create(ctx, memEntry("pub1", "rem1")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if err := repo.SaveVisit(ctx, "pub1", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("SaveVisit() error = %v", err)
		}

		stored, _ := repo.GetByPublicID(ctx, "pub1")
		if stored.RemainingUses != UnlimitedUses {
			t.Errorf("RemainingUses = %d, want unchanged -1", stored.RemainingUses)
		}
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		repo := NewMemoryRepository()
		err := repo.SaveVisit(ctx, "ghost", time.Now())
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("SaveVisit() error = %v, want NotFound", err)
		}
	})
}
