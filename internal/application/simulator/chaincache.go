package simulator

import (
	"sync"
	"time"

	"github.com/alejandrodnm/callwriter/internal/domain"
)

const cacheShards = 16 // power of 2

// ChainCache memoizes parsed option chains by snapshot date. It is safe for
// concurrent use: runs evaluated in parallel may share one cache, since a
// chain is a pure function of its date and is never mutated after parsing.
//
// Two goroutines missing on the same date may both parse it; the first
// stored result wins and the duplicate is dropped.
type ChainCache struct {
	shards [cacheShards]struct {
		mu     sync.RWMutex
		chains map[time.Time]*domain.OptionChain
	}
}

// NewChainCache creates an empty cache.
func NewChainCache() *ChainCache {
	c := &ChainCache{}
	for i := range c.shards {
		c.shards[i].chains = make(map[time.Time]*domain.OptionChain)
	}
	return c
}

// GetOrLoad returns the cached chain for date, calling load on a miss.
// Failed loads are not cached.
func (c *ChainCache) GetOrLoad(date time.Time, load func() (*domain.OptionChain, error)) (*domain.OptionChain, error) {
	date = domain.Day(date)
	shard := &c.shards[shardFor(date)]

	shard.mu.RLock()
	chain, ok := shard.chains[date]
	shard.mu.RUnlock()
	if ok {
		return chain, nil
	}

	chain, err := load()
	if err != nil {
		return nil, err
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if existing, ok := shard.chains[date]; ok {
		return existing, nil
	}
	shard.chains[date] = chain
	return chain, nil
}

// Len returns the number of cached chains.
func (c *ChainCache) Len() int {
	n := 0
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mu.RLock()
		n += len(shard.chains)
		shard.mu.RUnlock()
	}
	return n
}

// Clear drops every cached chain.
func (c *ChainCache) Clear() {
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mu.Lock()
		shard.chains = make(map[time.Time]*domain.OptionChain)
		shard.mu.Unlock()
	}
}

// shardFor spreads consecutive days over the shards.
func shardFor(date time.Time) int {
	days := date.Unix() / 86400
	return int(uint64(days) & (cacheShards - 1))
}
