package batch

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestRunSplitsIntoBatches(t *testing.T) {
	ctx := context.Background()

	items := []int{1, 2, 3, 4, 5, 6, 7}

	var processed []int
	results, err := Run(ctx, items, func(ctx context.Context, n int) (int, error) {
		processed = append(processed, n)
		return n * 10, nil
	}, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(processed) != 7 {
		t.Errorf("processed %d items, want 7", len(processed))
	}
	if len(results) != 7 {
		t.Errorf("got %d results, want 7", len(results))
	}
	for i, r := range results {
		if want := items[i] * 10; r != want {
			t.Errorf("results[%d] = %d, want %d", i, r, want)
		}
	}
}

func TestRunSkipsFailedItems(t *testing.T) {
	ctx := context.Background()

	items := []int{1, 2, 3, 4, 5, 6, 7}

	var processed []int
	results, err := Run(ctx, items, func(ctx context.Context, n int) (int, error) {
		processed = append(processed, n)
		if n == 5 {
			return 0, fmt.Errorf("boom on item %d", n)
		}
		return n, nil
	}, 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The failure on item 5 must not prevent items 6 and 7 from executing.
	if len(processed) != 7 {
		t.Errorf("processed %d items, want 7", len(processed))
	}
	if len(results) != 6 {
		t.Errorf("got %d results, want 6 (failed item dropped)", len(results))
	}
	for _, r := range results {
		if r == 5 {
			t.Error("failed item must not appear in results")
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	ctx := context.Background()

	results, err := Run(ctx, nil, func(ctx context.Context, n int) (int, error) {
		t.Fatal("fn must not be called for empty input")
		return 0, nil
	}, 3, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	items := []int{1, 2, 3, 4, 5}

	var processed int
	_, err := Run(ctx, items, func(ctx context.Context, n int) (int, error) {
		processed++
		if n == 2 {
			cancel()
		}
		return n, nil
	}, 2, 0)

	if err == nil {
		t.Fatal("expected context error after cancellation")
	}
	if processed >= len(items) {
		t.Errorf("processed %d items, expected early stop", processed)
	}
}

func TestRunZeroBatchSizeDefaultsToOne(t *testing.T) {
	ctx := context.Background()

	results, err := Run(ctx, []int{1, 2}, func(ctx context.Context, n int) (int, error) {
		return n, nil
	}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}
