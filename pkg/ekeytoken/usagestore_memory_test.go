// File: usagestore_memory_test.go

package ekeytoken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUsageStoreFirstObservation(t *testing.T) {
	t.Parallel()

	store := NewMemoryUsageStore(0, time.Hour)
	defer store.Close()

	err := store.Consume(context.Background(), "trace-1", 1, 100, 50)
	require.NoError(t, err)
}

func TestMemoryUsageStoreRejectsAlreadyExpiredFirstObservation(t *testing.T) {
	t.Parallel()

	store := NewMemoryUsageStore(0, time.Hour)
	defer store.Close()

	err := store.Consume(context.Background(), "trace-1", 1, 100, 150)
	require.Error(t, err)
	var usageErr *UsageStoreError
	require.True(t, errors.As(err, &usageErr))
	assert.Equal(t, UsageTokenExpired, usageErr.Kind)

	// Must not have created a record: a later call within validity succeeds.
	err = store.Consume(context.Background(), "trace-1", 1, 200, 150)
	require.NoError(t, err)
}

func TestMemoryUsageStoreLimitExhaustion(t *testing.T) {
	t.Parallel()

	store := NewMemoryUsageStore(0, time.Hour)
	defer store.Close()

	require.NoError(t, store.Consume(context.Background(), "trace-1", 1, 100, 50))

	err := store.Consume(context.Background(), "trace-1", 1, 100, 51)
	require.Error(t, err)
	var usageErr *UsageStoreError
	require.True(t, errors.As(err, &usageErr))
	assert.Equal(t, UsageLimitExhausted, usageErr.Kind)
}

func TestMemoryUsageStoreLimitGreaterThanOne(t *testing.T) {
	t.Parallel()

	store := NewMemoryUsageStore(0, time.Hour)
	defer store.Close()

	require.NoError(t, store.Consume(context.Background(), "trace-1", 3, 100, 50))
	require.NoError(t, store.Consume(context.Background(), "trace-1", 3, 100, 51))
	require.NoError(t, store.Consume(context.Background(), "trace-1", 3, 100, 52))

	err := store.Consume(context.Background(), "trace-1", 3, 100, 53)
	require.Error(t, err)
}

func TestMemoryUsageStoreEvictsStaleRecordOnConsume(t *testing.T) {
	t.Parallel()

	store := NewMemoryUsageStore(0, time.Hour)
	defer store.Close()

	require.NoError(t, store.Consume(context.Background(), "trace-1", 1, 100, 50))

	err := store.Consume(context.Background(), "trace-1", 1, 100, 150)
	require.Error(t, err)
	var usageErr *UsageStoreError
	require.True(t, errors.As(err, &usageErr))
	assert.Equal(t, UsageTokenExpired, usageErr.Kind)
}

// TestMemoryUsageStoreLinearizable exercises spec.md §8's invariant:
// concurrent consume calls with identical args and limit=1 must yield
// exactly one ok.
func TestMemoryUsageStoreLinearizable(t *testing.T) {
	t.Parallel()

	store := NewMemoryUsageStore(0, time.Hour)
	defer store.Close()

	const attempts = 50
	var wg sync.WaitGroup
	oks := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			oks[idx] = store.Consume(context.Background(), "shared-trace", 1, 1000, 1) == nil
		}(i)
	}
	wg.Wait()

	okCount := 0
	for _, ok := range oks {
		if ok {
			okCount++
		}
	}
	assert.Equal(t, 1, okCount)
}

func TestMemoryUsageStoreCapacityTrim(t *testing.T) {
	t.Parallel()

	store := NewMemoryUsageStore(2, time.Hour)
	defer store.Close()

	require.NoError(t, store.Consume(context.Background(), "trace-1", 1, 1000, 1))
	require.NoError(t, store.Consume(context.Background(), "trace-2", 1, 1000, 1))
	require.NoError(t, store.Consume(context.Background(), "trace-3", 1, 1000, 1))

	// trace-1 was trimmed; it is treated as a brand-new record, which is
	// safe because a stale resubmission still needs exp in the future.
	require.NoError(t, store.Consume(context.Background(), "trace-1", 1, 1000, 1))
}

func TestMemoryUsageStoreCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewMemoryUsageStore(0, time.Millisecond)
	store.Close()
	assert.NotPanics(t, func() { store.Close() })
}
