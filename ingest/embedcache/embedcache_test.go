package embedcache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siherrmann/graphrag/llm"
)

func TestCache_CachesByExactText(t *testing.T) {
	calls := 0
	embed := llm.EmbedFunc(func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return []float32{1, 2, 3}, nil
	})

	cache := New(embed)
	ctx := context.Background()

	v1, err := cache.Get(ctx, "hello")
	require.NoError(t, err)
	v2, err := cache.Get(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, calls)
}

func TestCache_DistinctTextsCallThrough(t *testing.T) {
	calls := 0
	embed := llm.EmbedFunc(func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return []float32{float32(len(text))}, nil
	})

	cache := New(embed)
	ctx := context.Background()
	_, _ = cache.Get(ctx, "a")
	_, _ = cache.Get(ctx, "ab")

	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_NilEmbedFuncIsNoop(t *testing.T) {
	cache := New(nil)
	v, err := cache.Get(context.Background(), "anything")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCache_FailureDoesNotRetry(t *testing.T) {
	calls := 0
	embed := llm.EmbedFunc(func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return nil, errors.New("upstream down")
	})

	cache := New(embed)
	ctx := context.Background()

	_, err1 := cache.Get(ctx, "flaky")
	require.Error(t, err1)

	v2, err2 := cache.Get(ctx, "flaky")
	require.NoError(t, err2)
	assert.Nil(t, v2)
	assert.Equal(t, 1, calls)
}
