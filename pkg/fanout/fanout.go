// Package fanout runs independent detail fetches on a bounded number of goroutines and waits
// for all of them.
package fanout

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the worker count used when callers pass a non-positive limit.
const DefaultLimit = 8

var errNilFunc = errors.New("fanout: worker function is required")

// Map calls fn for every item with at most limit calls in flight and returns the results in
// input order. Each worker writes only its own slot. The first error cancels the context
// handed to the remaining calls and is returned once every started call has finished.
func Map[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if fn == nil {
		return nil, errNilFunc
	}

	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)

	for index, item := range items {
		group.Go(func() error {
			err := groupCtx.Err()
			if err != nil {
				return fmt.Errorf("fan-out item %d: %w", index, err)
			}

			result, err := fn(groupCtx, item)
			if err != nil {
				return err
			}

			results[index] = result

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Each is Map for calls that produce no value.
func Each[T any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, item T) error) error {
	if fn == nil {
		return errNilFunc
	}

	_, err := Map(ctx, limit, items, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})

	return err
}
