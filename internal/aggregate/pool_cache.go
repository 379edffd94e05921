package aggregate

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	"cpSwap/internal/pool"
)

// PoolSource loads pool records for decimal lookups.
type PoolSource interface {
	LoadPool(ctx context.Context, address solana.PublicKey) (*pool.State, error)
}

// PoolDecimals are the mint decimals of a pool's two tokens.
type PoolDecimals struct {
	Token0 uint8
	Token1 uint8
}

// PoolDecimalsCache caches mint decimals per pool.
type PoolDecimalsCache struct {
	mu    sync.RWMutex
	items map[solana.PublicKey]PoolDecimals
}

func NewPoolDecimalsCache() *PoolDecimalsCache {
	return &PoolDecimalsCache{items: make(map[solana.PublicKey]PoolDecimals)}
}

func (c *PoolDecimalsCache) Get(address solana.PublicKey) (PoolDecimals, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.items[address]
	return d, ok
}

func (c *PoolDecimalsCache) Set(address solana.PublicKey, d PoolDecimals) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[address] = d
}
