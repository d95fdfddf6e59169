package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Acme Corp", "acme corp"},
		{"punctuation stripped", "Acme, Inc.", "acme inc"},
		{"collapse whitespace", "acme   corp", "acme corp"},
		{"mixed", "  ACME & Co.  ", "acme co"},
		{"already normal", "acme", "acme"},
		{"only punctuation", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeKey(tt.in); got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := New(100, 24*time.Hour, 6000)
	defer c.Close()

	c.Set("Acme Corp", strPtr("acme.com"))

	v, ok := c.Get("acme corp")
	if !ok {
		t.Fatal("expected hit for normalized key")
	}
	if v == nil || *v != "acme.com" {
		t.Errorf("got %v, want acme.com", v)
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	c := New(100, 24*time.Hour, 6000, WithClock(func() time.Time { return clock() }))
	defer c.Close()

	c.Set("acme", strPtr("acme.com"))

	if _, ok := c.Get("acme"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(24*time.Hour - time.Second)
	if _, ok := c.Get("acme"); !ok {
		t.Fatal("expected hit just before TTL boundary")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("acme"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}

	// The expired entry must be gone, not just hidden.
	if size := c.Stats().Size; size != 0 {
		t.Errorf("expired entry still counted: size=%d", size)
	}
}

func TestNegativeResultIsAHit(t *testing.T) {
	c := New(100, 24*time.Hour, 6000)
	defer c.Close()

	c.Set("unknown brand", nil)

	v, ok := c.Get("unknown brand")
	if !ok {
		t.Fatal("expected cached negative result to report a hit")
	}
	if v != nil {
		t.Errorf("expected nil value, got %v", *v)
	}
}

func TestEvictionRemovesOldestFifth(t *testing.T) {
	c := New(10, 24*time.Hour, 6000)
	defer c.Close()

	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("key%d", i), strPtr("v"))
	}
	if size := c.Stats().Size; size != 10 {
		t.Fatalf("expected size 10, got %d", size)
	}

	// Inserting into a full cache evicts ceil(0.2*10)=2 oldest entries first.
	c.Set("key10", strPtr("v"))

	if size := c.Stats().Size; size != 9 {
		t.Errorf("expected size 9 after eviction+insert, got %d", size)
	}
	if _, ok := c.Get("key0"); ok {
		t.Error("key0 should have been evicted")
	}
	if _, ok := c.Get("key1"); ok {
		t.Error("key1 should have been evicted")
	}
	if _, ok := c.Get("key2"); !ok {
		t.Error("key2 should have survived eviction")
	}
	if _, ok := c.Get("key10"); !ok {
		t.Error("key10 should be present")
	}
}

func TestEvictionRespectsUpdatedWriteOrder(t *testing.T) {
	c := New(5, 24*time.Hour, 6000)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("key%d", i), strPtr("v"))
	}

	// Rewriting key0 moves it to the newest position.
	c.Set("key0", strPtr("v2"))
	c.Set("key5", strPtr("v"))

	if _, ok := c.Get("key0"); !ok {
		t.Error("rewritten key0 should not have been evicted")
	}
	if _, ok := c.Get("key1"); ok {
		t.Error("key1 was oldest and should have been evicted")
	}
}

func TestDoCachesSuccessAndFailure(t *testing.T) {
	c := New(100, 24*time.Hour, 60000)
	defer c.Close()

	ctx := context.Background()

	calls := 0
	v, err := c.Do(ctx, "Acme Corp", func(ctx context.Context) (*string, error) {
		calls++
		return strPtr("acme.com"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || *v != "acme.com" {
		t.Fatalf("got %v, want acme.com", v)
	}

	// Second Do must be served from cache.
	_, err = c.Do(ctx, "acme corp", func(ctx context.Context) (*string, error) {
		calls++
		return strPtr("other.com"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("lookup called %d times, want 1", calls)
	}

	// A failing lookup is cached as an explicit negative.
	failCalls := 0
	v, err = c.Do(ctx, "Broken Brand", func(ctx context.Context) (*string, error) {
		failCalls++
		return nil, fmt.Errorf("provider exhausted")
	})
	if err != nil {
		t.Fatalf("lookup failure must not surface as an error: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil for failed lookup, got %v", *v)
	}

	v, err = c.Do(ctx, "broken brand", func(ctx context.Context) (*string, error) {
		failCalls++
		return strPtr("should-not-run.com"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("expected cached negative, got %v", *v)
	}
	if failCalls != 1 {
		t.Errorf("failed lookup retried %d times inside TTL window, want 1", failCalls)
	}
}

func TestDoDispatchesFIFO(t *testing.T) {
	c := New(100, 24*time.Hour, 60000)
	defer c.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var executed []string

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("key%d", i)
		wg.Add(1)

		// Enqueue in order; each Do blocks until its job is dispatched.
		go func() {
			defer wg.Done()
			_, _ = c.Do(ctx, key, func(ctx context.Context) (*string, error) {
				mu.Lock()
				executed = append(executed, key)
				mu.Unlock()
				return strPtr("v"), nil
			})
		}()

		// Give the goroutine time to enqueue before starting the next.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	if len(executed) != 5 {
		t.Fatalf("expected 5 lookups, got %d", len(executed))
	}
	for i, key := range executed {
		want := fmt.Sprintf("key%d", i)
		if key != want {
			t.Errorf("dispatch order[%d] = %s, want %s", i, key, want)
		}
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	// One request per minute so a second job would wait a long time.
	c := New(100, 24*time.Hour, 1)
	defer c.Close()

	ctx := context.Background()

	// First job consumes the limiter burst.
	_, err := c.Do(ctx, "first", func(ctx context.Context) (*string, error) {
		return strPtr("v"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err = c.Do(cancelCtx, "second", func(ctx context.Context) (*string, error) {
		return strPtr("v"), nil
	})
	if err == nil {
		t.Fatal("expected context deadline error while waiting on limiter")
	}
}

func TestStatsSnapshot(t *testing.T) {
	c := New(50, 24*time.Hour, 6000)
	defer c.Close()

	c.Set("a", strPtr("1"))
	c.Get("a")       // hit
	c.Get("a")       // hit
	c.Get("missing") // miss

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
	if want := 2.0 / 3.0; stats.HitRate < want-0.001 || stats.HitRate > want+0.001 {
		t.Errorf("hit rate = %f, want %f", stats.HitRate, want)
	}
	if stats.Size != 1 {
		t.Errorf("size = %d, want 1", stats.Size)
	}
	if stats.Capacity != 50 {
		t.Errorf("capacity = %d, want 50", stats.Capacity)
	}
}
