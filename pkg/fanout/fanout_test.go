package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}

	results, err := Map(context.Background(), 3, items, func(_ context.Context, item int) (int, error) {
		time.Sleep(time.Duration(item) * time.Millisecond)

		return item * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, results)
}

func TestMapNeverExceedsLimit(t *testing.T) {
	const limit = 3

	var inFlight, peak atomic.Int32

	items := make([]int, 24)

	_, err := Map(context.Background(), limit, items, func(context.Context, int) (struct{}, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)

		for {
			seen := peak.Load()
			if current <= seen || peak.CompareAndSwap(seen, current) {
				break
			}
		}

		time.Sleep(2 * time.Millisecond)

		return struct{}{}, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Positive(t, peak.Load())
}

func TestMapReturnsFirstErrorAndCancels(t *testing.T) {
	boom := errors.New("boom")

	var ran atomic.Int32

	items := []int{0, 1, 2, 3, 4, 5, 6, 7}

	results, err := Map(context.Background(), 1, items, func(_ context.Context, item int) (int, error) {
		ran.Add(1)

		if item == 2 {
			return 0, boom
		}

		return item, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, results)
	assert.Less(t, ran.Load(), int32(len(items)))
}

func TestMapEmptyInput(t *testing.T) {
	results, err := Map(context.Background(), 0, []string(nil), func(context.Context, string) (int, error) {
		t.Fatal("fn must not run")

		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEach(t *testing.T) {
	var calls atomic.Int32

	err := Each(context.Background(), 2, []string{"a", "b", "c"}, func(context.Context, string) error {
		calls.Add(1)

		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	err = Each[string](context.Background(), 2, nil, nil)
	require.ErrorIs(t, err, errNilFunc)
}
