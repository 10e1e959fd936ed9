package enrich

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingCompleter remembers successful replies by prompt so repeated
// observations within a run cost a single call. Failures are never cached.
type CachingCompleter struct {
	next   Completer
	cache  *lru.Cache[string, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingCompleter wraps next with an LRU of the given size.
func NewCachingCompleter(next Completer, size int) (*CachingCompleter, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &CachingCompleter{next: next, cache: cache}, nil
}

// Complete implements Completer.
func (c *CachingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if reply, ok := c.cache.Get(prompt); ok {
		c.hits.Add(1)
		return reply, nil
	}
	c.misses.Add(1)
	reply, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.Add(prompt, reply)
	return reply, nil
}

// Hits returns how many calls were answered from the cache.
func (c *CachingCompleter) Hits() int64 { return c.hits.Load() }

// Misses returns how many calls went to the wrapped completer.
func (c *CachingCompleter) Misses() int64 { return c.misses.Load() }
