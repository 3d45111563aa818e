package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}

	if err := m.Set(ctx, "k", []byte("value"), []string{"user:1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	stored := []byte("original")
	if err := m.Set(ctx, "k", stored, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored[0] = 'X'

	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("cache must not share backing arrays, got %q", got)
	}

	got[0] = 'Y'
	again, _ := m.Get(ctx, "k")
	if string(again) != "original" {
		t.Fatalf("reader mutation leaked into the cache, got %q", again)
	}
}

func TestMemory_InvalidateTag(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	_ = m.Set(ctx, "a", []byte("1"), []string{"user:1", "post:7"})
	_ = m.Set(ctx, "b", []byte("2"), []string{"user:1"})
	_ = m.Set(ctx, "c", []byte("3"), []string{"post:9"})

	if err := m.InvalidateTag(ctx, "user:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Fatal("entry a should be evicted")
	}
	if _, err := m.Get(ctx, "b"); !errors.Is(err, ErrMiss) {
		t.Fatal("entry b should be evicted")
	}
	if _, err := m.Get(ctx, "c"); err != nil {
		t.Fatal("entry c should survive")
	}

	// Invalidating an unknown tag is a no-op.
	if err := m.InvalidateTag(ctx, "nothing:0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10 * time.Millisecond)

	_ = m.Set(ctx, "k", []byte("v"), nil)
	time.Sleep(20 * time.Millisecond)

	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatal("expected entry to expire")
	}
}

func TestMemory_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("writer-%d", n))
			for j := 0; j < 100; j++ {
				_ = m.Set(ctx, "contested", payload, []string{"user:1"})
				got, err := m.Get(ctx, "contested")
				if err != nil {
					continue
				}
				// Last-writer-wins: any complete payload is valid, a
				// torn one is not.
				s := string(got)
				if len(s) < len("writer-0") || s[:7] != "writer-" {
					t.Errorf("torn read: %q", s)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
