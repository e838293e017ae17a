// internal/storage/leveldb/cache.go
package leveldb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const cachePrefix = "cache:"

type CacheEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Cache stores values with a time to live next to the task data
type Cache struct {
	client          *Client
	ttl             time.Duration
	cleanupInterval time.Duration
	mutex           sync.RWMutex
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

func NewCache(client *Client, ttl, cleanupInterval time.Duration) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = 6 * time.Hour
	}

	cache := &Cache{
		client:          client,
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.startCleanupRoutine()

	return cache
}

// Close stops the cleanup routine. The underlying client stays open.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

func cacheKey(key string) []byte {
	return []byte(cachePrefix + key)
}

func (c *Cache) Put(key string, value []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry := CacheEntry{
		Value:     value,
		ExpiresAt: time.Now().Add(c.ttl),
	}

	data, err := c.client.codec.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	return c.client.db.Put(cacheKey(key), data, nil)
}

// Get returns the cached value, or nil when missing or expired
func (c *Cache) Get(key string) ([]byte, error) {
	c.mutex.RLock()
	data, err := c.client.db.Get(cacheKey(key), nil)
	c.mutex.RUnlock()
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entry CacheEntry
	if err := c.client.codec.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	if time.Now().After(entry.ExpiresAt) {
		if err := c.Delete(key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return entry.Value, nil
}

func (c *Cache) Delete(key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.client.db.Delete(cacheKey(key), nil)
}

func (c *Cache) startCleanupRoutine() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanup removes expired entries and reports how many were dropped
func (c *Cache) cleanup() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	iter := c.client.db.NewIterator(util.BytesPrefix([]byte(cachePrefix)), nil)
	defer iter.Release()

	var keysToDelete [][]byte
	now := time.Now()

	for iter.Next() {
		var entry CacheEntry
		if err := c.client.codec.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}

		if now.After(entry.ExpiresAt) {
			keysToDelete = append(keysToDelete, append([]byte(nil), iter.Key()...))
		}
	}

	for _, key := range keysToDelete {
		c.client.db.Delete(key, nil)
	}
	return len(keysToDelete)
}
