package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Fatal("Get(missing) ok = true; want false")
	}
	if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get(k) = %q, %v, %v; want \"v\", true, nil", got, ok, err)
	}
}

// Mutating a returned slice must not leak into the stored entry.
func TestMemory_ReturnsCopies(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "k", []byte("abc"), 0)

	got, _, _ := m.Get(ctx, "k")
	got[0] = 'x'

	again, _, _ := m.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value changed to %q; want %q", again, "abc")
	}
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Set(ctx, "short", []byte("1"), time.Minute)
	_ = m.Set(ctx, "forever", []byte("2"), 0)

	now = now.Add(59 * time.Second)
	if _, ok, _ := m.Get(ctx, "short"); !ok {
		t.Error("entry expired before its TTL")
	}

	now = now.Add(time.Second)
	if _, ok, _ := m.Get(ctx, "short"); ok {
		t.Error("entry still present at its TTL")
	}
	if _, ok, _ := m.Get(ctx, "forever"); !ok {
		t.Error("entry without TTL expired")
	}
}

func TestMemory_Sweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_ = m.Set(ctx, "a", []byte("1"), time.Second)
	_ = m.Set(ctx, "b", []byte("1"), time.Second)
	_ = m.Set(ctx, "c", []byte("1"), 0)

	now = now.Add(2 * time.Second)
	if removed := m.Sweep(); removed != 2 {
		t.Errorf("Sweep() = %d; want 2", removed)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d; want 1", m.Len())
	}
}

func TestMemory_DeleteAndPrefix(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	for _, k := range []string{
		Key("RecordStatus::getStates::HelpDesk", "empty_state"),
		Key("RecordStatus::getStates::HelpDesk", "1"),
		Key("RecordStatus::getStates::Project", "empty_state"),
		"other",
	} {
		_ = m.Set(ctx, k, []byte("x"), 0)
	}

	if err := m.DeletePrefix(ctx, "RecordStatus::getStates::HelpDesk/"); err != nil {
		t.Fatalf("DeletePrefix() error = %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() after DeletePrefix = %d; want 2", m.Len())
	}
	if err := m.Delete(ctx, "other", "never-set"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := m.Get(ctx, Key("RecordStatus::getStates::Project", "empty_state")); !ok {
		t.Error("unrelated module entry was removed")
	}
}
