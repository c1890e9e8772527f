package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestMockEmbedder_DeterministicUnitVectors(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.Equal(t, 384, m.Dimensions())

	a, err := m.Embed(ctx, "Refund policy")
	require.NoError(t, err)
	b, err := m.Embed(ctx, "refund, POLICY!")
	require.NoError(t, err)

	require.Len(t, a, 384)
	require.Equal(t, a, b)
	require.InDelta(t, 1.0, norm(a), 1e-5)
	require.Equal(t, 2, m.Calls())
}

func TestMockEmbedder_SharedWordsAreCloser(t *testing.T) {
	ctx := context.Background()
	m := NewWithDimensions(256)

	query, _ := m.Embed(ctx, "refund policy")
	near, _ := m.Embed(ctx, "the refund policy covers thirty days")
	far, _ := m.Embed(ctx, "badges are required in the building")

	require.Greater(t, dot(query, near), dot(query, far))
}

func TestMockEmbedder_TextWithoutWords(t *testing.T) {
	v, err := New().Embed(context.Background(), "  ... !!")
	require.NoError(t, err)
	require.InDelta(t, 1.0, norm(v), 1e-5)
}

func TestMockEmbedder_BatchAndCancel(t *testing.T) {
	m := NewWithDimensions(0)
	require.Equal(t, 384, m.Dimensions())

	out, err := m.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Embed(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
}
