// internal/storage/storagetest/storagetest.go
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TaskStoreSuite runs the behaviour every TaskStore implementation must provide.
// newStore must return an empty store.
func TaskStoreSuite(t *testing.T, newStore func(t *testing.T) storage.TaskStore) {
	t.Run("save and find", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		due := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
		task := models.NewRunnableTask("pi", "iterations=10", &due, 3, "builtin.CalculatePi", nil)
		task.AddDependency("other")

		saved, err := store.Save(ctx, task)
		require.NoError(t, err)
		assert.Equal(t, int64(1), saved.Version)

		found, err := store.FindByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.Title, found.Title)
		assert.Equal(t, task.TaskType, found.TaskType)
		assert.Equal(t, []string{"other"}, found.Dependencies)
		assert.Equal(t, models.TaskStatusCreated, found.Status)
		require.NotNil(t, found.DueDate)
		assert.True(t, due.Equal(*found.DueDate))
		assert.Equal(t, int64(1), found.Version)
	})

	t.Run("not found", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindByID(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrTaskNotFound)
	})

	t.Run("returns copies", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		task := models.NewTask("t", "", nil, 1)
		_, err := store.Save(ctx, task)
		require.NoError(t, err)

		found, err := store.FindByID(ctx, task.ID)
		require.NoError(t, err)
		found.Title = "changed"

		again, err := store.FindByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "t", again.Title)
	})

	t.Run("version conflict", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		saved, err := store.Save(ctx, models.NewTask("t", "", nil, 1))
		require.NoError(t, err)

		first, _ := store.FindByID(ctx, saved.ID)
		second, _ := store.FindByID(ctx, saved.ID)

		first.Title = "first"
		_, err = store.Save(ctx, first)
		require.NoError(t, err)

		second.Title = "second"
		_, err = store.Save(ctx, second)
		assert.ErrorIs(t, err, storage.ErrVersionConflict)

		found, _ := store.FindByID(ctx, saved.ID)
		assert.Equal(t, "first", found.Title)
		assert.Equal(t, int64(2), found.Version)
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		saved, err := store.Save(ctx, models.NewTask("t", "", nil, 1))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			dep := string(rune('a' + i))
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := storage.UpdateTask(ctx, store, saved.ID, func(task *models.Task) error {
					task.AddDependency(dep)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		found, err := store.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, found.Dependencies)
	})

	t.Run("find all and overdue", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		now := time.Now()
		past := now.Add(-time.Hour)

		overdue := models.NewTask("overdue", "", &past, 1)
		finished := models.NewTask("finished", "", &past, 1)
		require.NoError(t, finished.Complete())
		open := models.NewTask("open", "", nil, 1)

		for _, task := range []*models.Task{overdue, finished, open} {
			_, err := store.Save(ctx, task)
			require.NoError(t, err)
		}

		all, err := store.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		late, err := store.FindOverdue(ctx, now)
		require.NoError(t, err)
		require.Len(t, late, 1)
		assert.Equal(t, overdue.ID, late[0].ID)
	})

	t.Run("results", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		task := models.NewTask("t", "", nil, 1)
		_, err := store.Save(ctx, task)
		require.NoError(t, err)

		result := models.NewTaskResult("title", "content")
		result.TaskID = task.ID
		require.NoError(t, store.SaveResult(ctx, result))

		results, err := store.FindResultsByTaskID(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, result.ID, results[0].ID)
		assert.Equal(t, "content", results[0].Content)

		none, err := store.FindResultsByTaskID(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

// NotificationStoreSuite runs the behaviour every NotificationStore implementation must provide
func NotificationStoreSuite(t *testing.T, newStore func(t *testing.T) storage.NotificationStore) {
	t.Run("assigns ids", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a, err := store.Save(ctx, models.NewNotification(1, models.NotificationGeneric, models.UrgencyLow, "a", ""))
		require.NoError(t, err)
		b, err := store.Save(ctx, models.NewNotification(2, models.NotificationGeneric, models.UrgencyLow, "b", ""))
		require.NoError(t, err)

		assert.NotZero(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)

		found, err := store.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "b", found.Message)

		_, err = store.FindByID(ctx, 9999)
		assert.ErrorIs(t, err, storage.ErrNotificationNotFound)
	})

	t.Run("lists by user", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, uid := range []int64{1, 2, 1} {
			_, err := store.Save(ctx, models.NewNotification(uid, models.NotificationGeneric, models.UrgencyLow, "m", ""))
			require.NoError(t, err)
		}

		all, err := store.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		mine, err := store.FindByUserID(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, mine, 2)
		assert.Less(t, mine[0].ID, mine[1].ID)
	})

	t.Run("unread lookup follows status", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		n := models.NewNotification(1, models.NotificationTaskOverdue, models.UrgencyHigh, "late", "task-1")
		require.NoError(t, n.TransitionTo(models.NotificationSent))
		saved, err := store.Save(ctx, n)
		require.NoError(t, err)

		found, err := store.FindUnread(ctx, n.DedupKey())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, saved.ID, found.ID)

		require.NoError(t, saved.TransitionTo(models.NotificationRead))
		_, err = store.Save(ctx, saved)
		require.NoError(t, err)

		found, err = store.FindUnread(ctx, n.DedupKey())
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}
