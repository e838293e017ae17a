// internal/storage/leveldb/result_cache.go
package leveldb

import (
	"context"
	"fmt"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
)

const resultCachePrefix = "results:"

// ResultCachingStore serves result lookups of another TaskStore from the local cache.
// Results are immutable, so the cache is only invalidated when a new result is saved.
type ResultCachingStore struct {
	storage.TaskStore
	cache *Cache
	log   *logging.Logger
}

func NewResultCachingStore(store storage.TaskStore, cache *Cache, log *logging.Logger) *ResultCachingStore {
	return &ResultCachingStore{
		TaskStore: store,
		cache:     cache,
		log:       log.WithComponent("result-cache"),
	}
}

func getResultsCacheKey(taskID string) string {
	return fmt.Sprintf("%s%s", resultCachePrefix, taskID)
}

func (s *ResultCachingStore) SaveResult(ctx context.Context, result *models.TaskResult) error {
	if err := s.TaskStore.SaveResult(ctx, result); err != nil {
		return err
	}
	if err := s.cache.Delete(getResultsCacheKey(result.TaskID)); err != nil {
		s.log.Warn("failed to invalidate cached results", "task_id", result.TaskID, "error", err)
	}
	return nil
}

func (s *ResultCachingStore) FindResultsByTaskID(ctx context.Context, taskID string) ([]*models.TaskResult, error) {
	cacheKey := getResultsCacheKey(taskID)

	cachedData, err := s.cache.Get(cacheKey)
	if err == nil && cachedData != nil {
		var results []*models.TaskResult
		if err := s.cache.client.codec.Unmarshal(cachedData, &results); err == nil {
			s.log.Debug("cache hit", "task_id", taskID)
			return results, nil
		}
		s.log.Warn("failed to unmarshal cached results", "task_id", taskID)
	}

	results, err := s.TaskStore.FindResultsByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if data, err := s.cache.client.codec.Marshal(results); err == nil {
		if err := s.cache.Put(cacheKey, data); err != nil {
			s.log.Warn("failed to cache results", "task_id", taskID, "error", err)
		}
	}
	return results, nil
}
