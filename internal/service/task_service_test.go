package service

import (
	"context"
	"testing"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.taskService.CreateTask(ctx, "  ", "", nil, 1)
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, err = e.taskService.CreateRunnableTask(ctx, "run", "", nil, 1, "", nil)
	assert.ErrorIs(t, err, ErrInvalidTask)

	task, err := e.taskService.CreateRunnableTask(ctx, "run", "", nil, 1, "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCreated, task.Status)
	assert.Equal(t, int64(1), task.Version)
}

func TestUpdateAndCompleteTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.taskService.CreateTask(ctx, "write docs", "", nil, 3)
	require.NoError(t, err)

	due := time.Now().Add(time.Hour)
	updated, err := e.taskService.UpdateTask(ctx, task.ID, "write better docs", "all of them", &due)
	require.NoError(t, err)
	assert.Equal(t, "write better docs", updated.Title)
	require.NotNil(t, updated.DueDate)

	done, err := e.taskService.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	assert.Equal(t, models.TaskStatusDone, done.Status)

	_, err = e.taskService.CompleteTask(ctx, task.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = e.taskService.CompleteTask(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}

func TestFindFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.taskService.CreateTask(ctx, "a", "", nil, 1)
	require.NoError(t, err)
	_, err = e.taskService.CreateTask(ctx, "b", "", nil, 2)
	require.NoError(t, err)
	_, err = e.taskService.CompleteTask(ctx, a.ID)
	require.NoError(t, err)

	byUser, err := e.taskService.FindByUserID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	created, err := e.taskService.FindByStatus(ctx, models.TaskStatusCreated)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "b", created[0].Title)

	both, err := e.taskService.FindByUserIDAndStatus(ctx, 1, models.TaskStatusDone)
	require.NoError(t, err)
	assert.Len(t, both, 1)

	none, err := e.taskService.FindByUserIDAndStatus(ctx, 2, models.TaskStatusDone)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindReadyToRun(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Now()

	plain, err := e.taskService.CreateTask(ctx, "plain", "", nil, 1)
	require.NoError(t, err)
	ready, err := e.taskService.CreateRunnableTask(ctx, "ready", "", nil, 1, "echo", nil)
	require.NoError(t, err)
	_, err = e.taskService.CreateRunnableTask(ctx, "later", "", nil, 1, "echo", timePtr(now.Add(time.Hour)))
	require.NoError(t, err)
	blocked, err := e.taskService.CreateRunnableTask(ctx, "blocked", "", nil, 1, "echo", nil)
	require.NoError(t, err)
	_, err = e.taskService.AddDependency(ctx, blocked.ID, plain.ID)
	require.NoError(t, err)

	got, err := e.taskService.FindReadyToRun(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ready.ID, got[0].ID)

	_, err = e.taskService.CompleteTask(ctx, plain.ID)
	require.NoError(t, err)

	got, err = e.taskService.FindReadyToRun(ctx, now)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAddDependencyRejectsCycles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.taskService.CreateTask(ctx, "a", "", nil, 1)
	require.NoError(t, err)
	b, err := e.taskService.CreateTask(ctx, "b", "", nil, 1)
	require.NoError(t, err)
	c, err := e.taskService.CreateTask(ctx, "c", "", nil, 1)
	require.NoError(t, err)

	_, err = e.taskService.AddDependency(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, ErrSelfDependency)

	_, err = e.taskService.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = e.taskService.AddDependency(ctx, b.ID, c.ID)
	require.NoError(t, err)

	would, err := e.taskService.WouldCreateDeadlock(ctx, c.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, would)

	_, err = e.taskService.AddDependency(ctx, c.ID, a.ID)
	assert.ErrorIs(t, err, ErrDependencyCycle)

	stored, err := e.taskService.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Dependencies)

	report, err := e.taskService.DetectDeadlocks(ctx)
	require.NoError(t, err)
	assert.False(t, report.HasDeadlock)

	_, err = e.taskService.AddDependency(ctx, a.ID, "missing")
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}

func TestRemoveDependency(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.taskService.CreateTask(ctx, "a", "", nil, 1)
	require.NoError(t, err)
	b, err := e.taskService.CreateTask(ctx, "b", "", nil, 1)
	require.NoError(t, err)

	_, err = e.taskService.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	updated, err := e.taskService.RemoveDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Dependencies)

	// b -> a is fine once the edge is gone
	_, err = e.taskService.AddDependency(ctx, b.ID, a.ID)
	assert.NoError(t, err)
}

func TestDetectDeadlocksOnStoredCycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := models.NewTask("a", "", nil, 1)
	b := models.NewTask("b", "", nil, 1)
	a.AddDependency(b.ID)
	b.AddDependency(a.ID)
	_, err := e.tasks.Save(ctx, a)
	require.NoError(t, err)
	_, err = e.tasks.Save(ctx, b)
	require.NoError(t, err)

	report, err := e.taskService.DetectDeadlocks(ctx)
	require.NoError(t, err)
	assert.True(t, report.HasDeadlock)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, report.Participants)
}

func TestFindResults(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, err := e.taskService.CreateRunnableTask(ctx, "echo", "hello", nil, 1, "echo", nil)
	require.NoError(t, err)

	done, err := e.processor.ExecuteSync(ctx, task.ID, time.Second)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusDone, done.Status)

	results, err := e.taskService.FindResults(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hello", results[0].Content)

	_, err = e.taskService.FindResults(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrTaskNotFound)
}
