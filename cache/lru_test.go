package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCompute(t *testing.T) {
	c := NewEmbeddings(10)
	ctx := context.Background()

	var calls atomic.Int64
	compute := func(context.Context) ([]float32, error) {
		calls.Add(1)
		return []float32{1, 2}, nil
	}

	v, err := c.GetOrCompute(ctx, Key("hello"), compute)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)

	// Second call hits the cache.
	v, err = c.GetOrCompute(ctx, Key("hello"), compute)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Equal(t, int64(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c := NewEmbeddings(10)
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(context.Context) ([]float32, error) {
		calls.Add(1)
		<-release
		return []float32{7}, nil
	}

	var wg sync.WaitGroup
	results := make([][]float32, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(ctx, Key("shared"), compute)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, []float32{7}, v)
	}
}

func TestErrorsNotCached(t *testing.T) {
	c := NewEmbeddings(10)
	ctx := context.Background()

	boom := errors.New("model unavailable")
	var calls atomic.Int64

	_, err := c.GetOrCompute(ctx, Key("flaky"), func(context.Context) ([]float32, error) {
		calls.Add(1)
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	// The next call retries.
	v, err := c.GetOrCompute(ctx, Key("flaky"), func(context.Context) ([]float32, error) {
		calls.Add(1)
		return []float32{1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
	assert.Equal(t, int64(2), calls.Load())
}

func TestEviction(t *testing.T) {
	c := NewEmbeddings(2)
	ctx := context.Background()

	mk := func(v float32) ComputeFunc {
		return func(context.Context) ([]float32, error) { return []float32{v}, nil }
	}

	_, err := c.GetOrCompute(ctx, "a", mk(1))
	require.NoError(t, err)
	_, err = c.GetOrCompute(ctx, "b", mk(2))
	require.NoError(t, err)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	_, err = c.GetOrCompute(ctx, "c", mk(3))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestPurge(t *testing.T) {
	c := NewEmbeddings(10)
	_, err := c.GetOrCompute(context.Background(), "a", func(context.Context) ([]float32, error) {
		return []float32{1}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestKeyIsContentAddressed(t *testing.T) {
	assert.Equal(t, Key("same text"), Key("same text"))
	assert.NotEqual(t, Key("one"), Key("two"))
}
