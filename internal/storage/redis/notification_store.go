// internal/storage/redis/notification_store.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/redis/go-redis/v9"
)

// saveScript writes the record, indexes it and keeps the unread pointer for its
// dedup key in step with the read state.
var saveScript = redis.NewScript(`
local rkey = KEYS[1]
local akey = KEYS[2]
local ukey = KEYS[3]
local nkey = KEYS[4]
local id   = ARGV[1]
redis.call('SET', rkey, ARGV[2])
redis.call('ZADD', akey, id, id)
redis.call('ZADD', ukey, id, id)
if ARGV[3] == '1' then
  redis.call('SET', nkey, id)
elseif redis.call('GET', nkey) == id then
  redis.call('DEL', nkey)
end
return 1
`)

type keys struct {
	prefix string
}

func (k keys) seq() string               { return k.prefix + ":notification:seq" }
func (k keys) record(id int64) string    { return k.prefix + ":notification:" + strconv.FormatInt(id, 10) }
func (k keys) all() string               { return k.prefix + ":notifications" }
func (k keys) user(userID int64) string  { return k.prefix + ":notifications:user:" + strconv.FormatInt(userID, 10) }
func (k keys) unread(dedup string) string { return k.prefix + ":notifications:unread:" + dedup }

// NotificationStore keeps notifications in Redis
type NotificationStore struct {
	rdb   redis.UniversalClient
	keys  keys
	codec storage.Codec
}

// NewClient connects to the configured Redis server
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func NewNotificationStore(rdb redis.UniversalClient, prefix string) *NotificationStore {
	if prefix == "" {
		prefix = config.DefaultRedisKeyPrefix
	}
	return &NotificationStore{
		rdb:   rdb,
		keys:  keys{prefix: prefix},
		codec: storage.JSONCodec{},
	}
}

func (s *NotificationStore) Save(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	c := *n
	if c.ID == 0 {
		id, err := s.rdb.Incr(ctx, s.keys.seq()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate notification id: %w", err)
		}
		c.ID = id
	}

	data, err := s.codec.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}

	unread := "0"
	if !c.IsRead() {
		unread = "1"
	}

	err = saveScript.Run(ctx, s.rdb,
		[]string{s.keys.record(c.ID), s.keys.all(), s.keys.user(c.UserID), s.keys.unread(c.DedupKey())},
		c.ID, string(data), unread,
	).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to save notification %d: %w", c.ID, err)
	}

	return &c, nil
}

func (s *NotificationStore) FindByID(ctx context.Context, id int64) (*models.Notification, error) {
	data, err := s.rdb.Get(ctx, s.keys.record(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %d", storage.ErrNotificationNotFound, id)
		}
		return nil, err
	}

	var n models.Notification
	if err := s.codec.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification %d: %w", id, err)
	}
	return &n, nil
}

func (s *NotificationStore) FindAll(ctx context.Context) ([]*models.Notification, error) {
	return s.loadIndex(ctx, s.keys.all())
}

func (s *NotificationStore) FindByUserID(ctx context.Context, userID int64) ([]*models.Notification, error) {
	return s.loadIndex(ctx, s.keys.user(userID))
}

func (s *NotificationStore) FindUnread(ctx context.Context, key string) (*models.Notification, error) {
	id, err := s.rdb.Get(ctx, s.keys.unread(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	n, err := s.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotificationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if n.IsRead() {
		return nil, nil
	}
	return n, nil
}

// loadIndex resolves the IDs of a sorted set index in ascending order
func (s *NotificationStore) loadIndex(ctx context.Context, index string) ([]*models.Notification, error) {
	ids, err := s.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*models.Notification, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	recordKeys := make([]string, len(ids))
	for i, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt notification index entry %q: %w", raw, err)
		}
		recordKeys[i] = s.keys.record(id)
	}

	values, err := s.rdb.MGet(ctx, recordKeys...).Result()
	if err != nil {
		return nil, err
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var n models.Notification
		if err := s.codec.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, nil
}
