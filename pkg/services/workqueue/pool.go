package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPanicked wraps a panic recovered from a task or work item.
var ErrPanicked = errors.New("panicked")

// WorkItem is one unit of work handed to Process.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult is the outcome of a WorkItem. Index is the item's position in
// the slice passed to Process.
type WorkResult[T any] struct {
	Index  int
	ID     string
	Result T
	Err    error
}

// Process executes all items with at most maxConcurrent running at once.
// Every item gets a result: items that never acquire a slot before ctx is
// done report ctx.Err(), and an item that panics reports ErrPanicked.
// Results are returned in submission order.
// onProgress, if set, is called after each completion from the collecting
// goroutine only.
func Process[T any](
	ctx context.Context,
	maxConcurrent int,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	resultsChan := make(chan WorkResult[T], len(items))
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- WorkResult[T]{Index: i, ID: item.ID, Err: ctx.Err()}
				return
			}

			// The slot may have been won in the same instant ctx was cancelled.
			if err := ctx.Err(); err != nil {
				resultsChan <- WorkResult[T]{Index: i, ID: item.ID, Err: err}
				return
			}

			result, err := runItem(ctx, item)
			resultsChan <- WorkResult[T]{Index: i, ID: item.ID, Result: result, Err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]WorkResult[T], len(items))
	completed := 0
	for result := range resultsChan {
		results[result.Index] = result
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	return results
}

func runItem[T any](ctx context.Context, item WorkItem[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work item %s %w: %v", item.ID, ErrPanicked, r)
		}
	}()
	return item.Execute(ctx)
}
