package redis

import (
	"context"
	"testing"

	"github.com/fawad-mazhar/taskflow/internal/config"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/fawad-mazhar/taskflow/internal/storage/storagetest"
	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniClient(t *testing.T) (*redis.Client, *mrd.Miniredis) {
	t.Helper()
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, s
}

func TestNotificationStore(t *testing.T) {
	storagetest.NotificationStoreSuite(t, func(t *testing.T) storage.NotificationStore {
		rdb, _ := newMiniClient(t)
		return NewNotificationStore(rdb, "test")
	})
}

func TestKeysUsePrefix(t *testing.T) {
	rdb, s := newMiniClient(t)
	store := NewNotificationStore(rdb, "tf")
	ctx := context.Background()

	n := models.NewNotification(4, models.NotificationTaskError, models.UrgencyHigh, "failed", "task-9")
	saved, err := store.Save(ctx, n)
	require.NoError(t, err)

	assert.True(t, s.Exists("tf:notification:1"))
	assert.True(t, s.Exists("tf:notifications:user:4"))

	unreadKey := "tf:notifications:unread:" + n.DedupKey()
	got, err := s.Get(unreadKey)
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	assert.Equal(t, int64(1), saved.ID)
}

func TestUnreadPointerIsClearedOnRead(t *testing.T) {
	rdb, s := newMiniClient(t)
	store := NewNotificationStore(rdb, "tf")
	ctx := context.Background()

	n := models.NewNotification(4, models.NotificationTaskError, models.UrgencyHigh, "failed", "task-9")
	require.NoError(t, n.TransitionTo(models.NotificationSent))
	saved, err := store.Save(ctx, n)
	require.NoError(t, err)

	require.NoError(t, saved.TransitionTo(models.NotificationRead))
	_, err = store.Save(ctx, saved)
	require.NoError(t, err)

	assert.False(t, s.Exists("tf:notifications:unread:"+n.DedupKey()))

	found, err := store.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationRead, found.Status)
	assert.NotNil(t, found.ReadAt)
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	_, err := NewClient(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
