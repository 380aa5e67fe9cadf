package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	sess := NewSession("s1", "greeting", "welcome", time.Now())
	sess.Merge(map[string]any{"a": 1})

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CurrentStep != "welcome" || loaded.GlobalData["a"] != 1 {
		t.Fatalf("unexpected loaded session: %+v", loaded)
	}

	// Mutating the loaded copy must not touch the stored one.
	loaded.GlobalData["a"] = 2
	again, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if again.GlobalData["a"] != 1 {
		t.Fatal("stored session mutated through loaded copy")
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}
	if _, err := store.Load(context.Background(), "  "); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestMemoryStoreSaveInvalid(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.Save(context.Background(), nil); !errors.Is(err, ErrNilSession) {
		t.Fatalf("expected ErrNilSession, got %v", err)
	}
	if err := store.Save(context.Background(), &Session{SessionID: " "}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()

	sess := NewSession("s1", "greeting", "welcome", time.Now())
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound after delete, got %v", err)
	}

	// Deleting an absent session is a no-op.
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("repeat Delete() error = %v", err)
	}
}
