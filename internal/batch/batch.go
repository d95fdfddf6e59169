// internal/batch/batch.go
package batch

import (
	"context"
	"fmt"
	"time"
)

// interItemDelay is a small fixed pause between items inside a batch. It is a
// coarser safety margin than any per-request limiter the work function may
// already sit behind, aimed at a different external quota.
const interItemDelay = 200 * time.Millisecond

// Run splits items into fixed-size batches and executes fn strictly one item
// at a time. Between batches it waits interBatchDelay. A single item's failure
// is logged and skipped; failed items are dropped from the result set, not
// retried. Only a context error aborts the whole run.
func Run[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (R, error), batchSize int, interBatchDelay time.Duration) ([]R, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	results := make([]R, 0, len(items))

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		for i, item := range items[start:end] {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			result, err := fn(ctx, item)
			if err != nil {
				fmt.Printf("[BatchRun] Warning: item %d failed, skipping: %v\n", start+i, err)
				continue
			}
			results = append(results, result)

			if start+i < len(items)-1 {
				if err := sleep(ctx, interItemDelay); err != nil {
					return results, err
				}
			}
		}

		if end < len(items) && interBatchDelay > 0 {
			if err := sleep(ctx, interBatchDelay); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
