package flat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowgo/knowgo/distance"
	"github.com/knowgo/knowgo/index"
	"github.com/knowgo/knowgo/model"
)

func TestInsertFixesDimension(t *testing.T) {
	idx := New()
	require.Equal(t, 0, idx.Dimension())

	require.NoError(t, idx.Insert("doc#0", []float32{1, 0, 0}))
	require.Equal(t, 3, idx.Dimension())

	err := idx.Insert("doc#1", []float32{1, 0})

	var mismatch *index.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Actual)

	// The failed insert must not leave any trace.
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 3, idx.Dimension())
}

func TestInsertReplace(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("doc#0", []float32{1, 0}))
	require.NoError(t, idx.Insert("doc#0", []float32{0, 1}))
	require.Equal(t, 1, idx.Len())

	results, err := idx.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.ChunkID("doc#0"), results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestInsertZeroVector(t *testing.T) {
	idx := New()
	assert.ErrorIs(t, idx.Insert("doc#0", []float32{0, 0}), index.ErrZeroVector)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.Dimension())
}

func TestSearchOrdering(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("a#0", []float32{1, 0}))
	require.NoError(t, idx.Insert("a#1", []float32{0, 1}))
	require.NoError(t, idx.Insert("a#2", []float32{1, 1}))

	results, err := idx.Search([]float32{1, 0.1}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	assert.Equal(t, model.ChunkID("a#0"), results[0].ChunkID)
	assert.Equal(t, model.ChunkID("a#1"), results[2].ChunkID)
}

func TestSearchTieBreak(t *testing.T) {
	idx := New()
	// Same direction means identical cosine scores.
	require.NoError(t, idx.Insert("doc#2", []float32{2, 0}))
	require.NoError(t, idx.Insert("doc#0", []float32{1, 0}))
	require.NoError(t, idx.Insert("doc#1", []float32{3, 0}))

	results, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.ChunkID("doc#0"), results[0].ChunkID)
	assert.Equal(t, model.ChunkID("doc#1"), results[1].ChunkID)
}

func TestSearchInvalidK(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("doc#0", []float32{1, 0}))

	_, err := idx.Search([]float32{1, 0}, 0)
	assert.ErrorIs(t, err, index.ErrInvalidK)

	_, err = idx.Search([]float32{1, 0}, -3)
	assert.ErrorIs(t, err, index.ErrInvalidK)
}

func TestSearchEmpty(t *testing.T) {
	idx := New()
	results, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchKLargerThanIndex(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("doc#0", []float32{1, 0}))
	require.NoError(t, idx.Insert("doc#1", []float32{0, 1}))

	results, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRemove(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("doc#0", []float32{1, 0}))
	require.NoError(t, idx.Insert("doc#1", []float32{0, 1}))

	idx.Remove("doc#0")
	assert.Equal(t, 1, idx.Len())

	// Removing an absent ID is a no-op.
	idx.Remove("doc#0")
	idx.Remove("never-there")
	assert.Equal(t, 1, idx.Len())

	results, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.ChunkID("doc#1"), results[0].ChunkID)
}

func TestSlotReuse(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("doc#0", []float32{1, 0}))
	idx.Remove("doc#0")
	require.NoError(t, idx.Insert("doc#1", []float32{0, 1}))

	st := idx.getState()
	assert.Len(t, st.slots, 1)
	assert.Equal(t, 1, idx.Len())
}

func TestDotMetric(t *testing.T) {
	idx := New(func(o *Options) {
		o.Metric = distance.MetricDot
	})

	require.NoError(t, idx.Insert("doc#0", []float32{2, 0}))
	require.NoError(t, idx.Insert("doc#1", []float32{1, 0}))

	results, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, model.ChunkID("doc#0"), results[0].ChunkID)
	assert.InDelta(t, 2.0, results[0].Score, 1e-6)
}

func TestEntriesRestoreRoundTrip(t *testing.T) {
	src := New()
	require.NoError(t, src.Insert("doc#0", []float32{3, 4}))
	require.NoError(t, src.Insert("doc#1", []float32{0, 1}))

	dst := New()
	require.NoError(t, dst.Restore(src.Dimension(), src.Entries()))
	assert.Equal(t, src.Dimension(), dst.Dimension())
	assert.Equal(t, src.Len(), dst.Len())

	want, err := src.Search([]float32{1, 1}, 2)
	require.NoError(t, err)
	got, err := dst.Search([]float32{1, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRestoreEmpty(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("doc#0", []float32{1, 0}))

	require.NoError(t, idx.Restore(0, nil))
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.Dimension())

	// A fresh dimension can be established again.
	require.NoError(t, idx.Insert("doc#0", []float32{1, 2, 3}))
	assert.Equal(t, 3, idx.Dimension())
}

func TestConcurrentSearchDuringWrites(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Insert("seed#0", []float32{1, 0}))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := model.ChunkID(fmt.Sprintf("w%d#%d", w, i))
				require.NoError(t, idx.Insert(id, []float32{float32(i + 1), float32(w + 1)}))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				results, err := idx.Search([]float32{1, 1}, 10)
				require.NoError(t, err)
				require.NotEmpty(t, results)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 401, idx.Len())
}
