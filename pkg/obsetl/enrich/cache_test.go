package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingCompleter(t *testing.T) {
	calls := map[string]int{}
	next := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		calls[prompt]++
		return "reply:" + prompt, nil
	})

	c, err := NewCachingCompleter(next, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		out, err := c.Complete(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, "reply:a", out)
	}
	_, err = c.Complete(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, 1, calls["a"])
	assert.Equal(t, 1, calls["b"])
	assert.EqualValues(t, 2, c.Hits())
	assert.EqualValues(t, 2, c.Misses())
}

func TestCachingCompleterDoesNotCacheFailures(t *testing.T) {
	n := 0
	next := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		n++
		if n == 1 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	c, err := NewCachingCompleter(next, 4)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "p")
	assert.Error(t, err)
	out, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, n)
}

func TestNewCachingCompleterRejectsBadSize(t *testing.T) {
	_, err := NewCachingCompleter(CompleterFunc(nil), 0)
	assert.Error(t, err)
}
