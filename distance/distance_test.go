package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	assert.InDelta(t, 32.0, Dot([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-6)
	assert.InDelta(t, 0.0, Dot([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestNormalizeL2(t *testing.T) {
	t.Run("copy leaves source untouched", func(t *testing.T) {
		src := []float32{3, 4}
		norm, ok := NormalizeL2Copy(src)
		require.True(t, ok)
		assert.Equal(t, []float32{3, 4}, src)
		assert.InDelta(t, 0.6, norm[0], 1e-6)
		assert.InDelta(t, 0.8, norm[1], 1e-6)
		assert.InDelta(t, 1.0, Magnitude(norm), 1e-6)
	})

	t.Run("zero vector", func(t *testing.T) {
		_, ok := NormalizeL2Copy([]float32{0, 0, 0})
		assert.False(t, ok)
		assert.False(t, NormalizeL2InPlace(nil))
	})
}

func TestMetricNames(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricDot} {
		got, ok := MetricByName(m.String())
		require.True(t, ok)
		assert.Equal(t, m, got)
	}

	_, ok := MetricByName("hamming")
	assert.False(t, ok)
}
