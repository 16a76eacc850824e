package provider

import (
	"sync"

	"go.uber.org/zap"
)

// KeyPool rotates between API keys. Keys marked failed are skipped until
// every key has failed, at which point the pool resets itself: quota
// windows roll over, so a key that failed an hour ago may work again.
type KeyPool struct {
	mu     sync.Mutex
	keys   []string
	failed map[int]bool
	cursor int
	logger *zap.Logger
}

// NewKeyPool creates a pool over keys. Empty keys are dropped.
func NewKeyPool(keys []string, logger *zap.Logger) *KeyPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			filtered = append(filtered, k)
		}
	}
	return &KeyPool{
		keys:   filtered,
		failed: make(map[int]bool),
		logger: logger,
	}
}

// Len returns the number of keys in the pool.
func (p *KeyPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Get returns the current usable key and its index. When every key has
// failed, the failure set is cleared first. ok is false only for an empty
// pool.
func (p *KeyPool) Get() (key string, index int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return "", 0, false
	}
	if len(p.failed) >= len(p.keys) {
		p.logger.Warn("all API keys exhausted, resetting pool", zap.Int("keys", len(p.keys)))
		p.failed = make(map[int]bool)
		p.cursor = 0
	}
	for i := 0; i < len(p.keys); i++ {
		idx := (p.cursor + i) % len(p.keys)
		if !p.failed[idx] {
			p.cursor = idx
			return p.keys[idx], idx, true
		}
	}
	// Unreachable: the reset above guarantees at least one usable key.
	return p.keys[0], 0, true
}

// MarkFailed records that the key at index hit a quota error and advances
// the cursor past it.
func (p *KeyPool) MarkFailed(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.keys) {
		return
	}
	p.failed[index] = true
	p.cursor = (index + 1) % len(p.keys)
	p.logger.Info("API key marked failed",
		zap.Int("index", index),
		zap.Int("remaining", len(p.keys)-len(p.failed)))
}
