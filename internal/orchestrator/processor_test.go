package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/storage/memory"
	"github.com/fawad-mazhar/taskflow/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentNotification struct {
	typ           models.NotificationType
	urgency       models.Urgency
	userID        int64
	relatedTaskID string
}

// recordingNotifier de-duplicates on type, user and task like the real service
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	seen map[string]bool
}

func (r *recordingNotifier) Notify(_ context.Context, typ models.NotificationType, urgency models.Urgency, userID int64, _ string, relatedTaskID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	key := fmt.Sprintf("%s:%d:%s", typ, userID, relatedTaskID)
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	r.sent = append(r.sent, sentNotification{typ: typ, urgency: urgency, userID: userID, relatedTaskID: relatedTaskID})
	return true, nil
}

func (r *recordingNotifier) ofType(typ models.NotificationType) []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []sentNotification
	for _, n := range r.sent {
		if n.typ == typ {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	store     *memory.TaskStore
	registry  *worker.Registry
	notifier  *recordingNotifier
	pool      *worker.Pool
	processor *Processor
}

func newFixture(t *testing.T, poolSize, capacity int) *fixture {
	t.Helper()
	log := logging.NopLogger()

	f := &fixture{
		store:    memory.NewTaskStore(),
		registry: worker.NewRegistry(log),
		notifier: &recordingNotifier{},
		pool:     worker.NewPool(poolSize, capacity, log),
	}
	f.processor = NewProcessor(ProcessorConfig{SyncTimeout: 5 * time.Second}, f.store, f.registry, f.notifier, f.pool, log)
	t.Cleanup(func() { _ = f.pool.Shutdown(2 * time.Second) })
	return f
}

func (f *fixture) createTask(t *testing.T, taskType string, deps ...string) *models.Task {
	t.Helper()
	task := models.NewRunnableTask("task", "", nil, 7, taskType, nil)
	for _, dep := range deps {
		task.AddDependency(dep)
	}
	saved, err := f.store.Save(context.Background(), task)
	require.NoError(t, err)
	return saved
}

func counting(counts *sync.Map) worker.Func {
	return worker.Func{
		TypeName: "counting",
		Fn: func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
			n, _ := counts.LoadOrStore(task.ID, new(atomic.Int32))
			n.(*atomic.Int32).Add(1)
			time.Sleep(10 * time.Millisecond)
			return models.NewTaskResult("count", "ran "+task.ID), nil
		},
	}
}

func TestProcessorRunsMoreTasksThanWorkers(t *testing.T) {
	f := newFixture(t, 2, 20)
	var counts sync.Map
	require.NoError(t, f.registry.Register("count", counting(&counts)))

	const k = 6
	ctx := context.Background()
	futures := make([]*Future, 0, k)
	ids := make([]string, 0, k)
	for i := 0; i < k; i++ {
		task := f.createTask(t, "count")
		ids = append(ids, task.ID)
		futures = append(futures, f.processor.ExecuteAsync(ctx, task.ID))
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, fut := range futures {
		done, err := fut.Wait(waitCtx)
		require.NoError(t, err)
		require.NotNil(t, done)
		assert.Equal(t, models.TaskStatusDone, done.Status)
	}

	for _, id := range ids {
		stored, err := f.store.FindByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, stored.Completed)
		require.NotNil(t, stored.Result)
		assert.Equal(t, id, stored.Result.TaskID)
		assert.Equal(t, "ran "+id, stored.Result.Content)

		results, err := f.store.FindResultsByTaskID(ctx, id)
		require.NoError(t, err)
		assert.Len(t, results, 1)

		n, ok := counts.Load(id)
		require.True(t, ok)
		assert.Equal(t, int32(1), n.(*atomic.Int32).Load())
	}

	assert.Eventually(t, func() bool {
		return f.processor.PoolStats().CompletedTasks >= k
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.notifier.ofType(models.NotificationTaskCompleted), k)
	assert.Len(t, f.notifier.ofType(models.NotificationTaskStarted), k)
}

func TestProcessorDoesNotRunATaskTwice(t *testing.T) {
	f := newFixture(t, 4, 10)
	release := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, f.registry.Register("blocking", worker.Func{
		TypeName: "blocking",
		Fn: func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
			runs.Add(1)
			<-release
			return models.NewTaskResult("ok", "done"), nil
		},
	}))

	task := f.createTask(t, "blocking")
	ctx := context.Background()

	first := f.processor.ExecuteAsync(ctx, task.ID)
	second := f.processor.ExecuteAsync(ctx, task.ID)
	submitted, err := f.processor.PollReadyTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, submitted)

	noop, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.Nil(t, noop)

	close(release)
	done, err := first.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusDone, done.Status)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, 0, f.processor.InFlight())
}

func TestProcessorSkipsTasksThatAreNotReady(t *testing.T) {
	f := newFixture(t, 1, 5)
	var counts sync.Map
	require.NoError(t, f.registry.Register("count", counting(&counts)))
	ctx := context.Background()

	blocker := models.NewTask("manual", "", nil, 1)
	_, err := f.store.Save(ctx, blocker)
	require.NoError(t, err)
	waiting := f.createTask(t, "count", blocker.ID)

	got, err := f.processor.ExecuteAsync(ctx, waiting.ID).Wait(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.processor.ExecuteAsync(ctx, "missing").Wait(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := f.store.FindByID(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCreated, stored.Status)
}

func TestProcessorUnregisteredTypeStaysRunning(t *testing.T) {
	f := newFixture(t, 1, 5)
	task := f.createTask(t, "nobody.home")
	ctx := context.Background()

	got, err := f.processor.ExecuteSync(ctx, task.ID, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.TaskStatusRunning, got.Status)
	assert.False(t, got.Completed)
	assert.Nil(t, got.Result)

	errs := f.notifier.ofType(models.NotificationTaskError)
	require.Len(t, errs, 1)
	assert.Equal(t, task.ID, errs[0].relatedTaskID)
}

func TestProcessorFailingTaskBecomesFailed(t *testing.T) {
	f := newFixture(t, 1, 5)
	require.NoError(t, f.registry.Register("broken", worker.Func{
		TypeName: "broken",
		Fn: func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
			return nil, errors.New("disk on fire")
		},
	}))
	task := f.createTask(t, "broken")
	ctx := context.Background()

	got, err := f.processor.ExecuteSync(ctx, task.ID, time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, got.Status)
	assert.Contains(t, got.LastError, "disk on fire")
	assert.False(t, got.Completed)

	errs := f.notifier.ofType(models.NotificationTaskError)
	require.Len(t, errs, 1)
	assert.Equal(t, models.UrgencyHigh, errs[0].urgency)
	assert.Equal(t, int64(7), errs[0].userID)
}

func TestProcessorExecuteSyncTimeout(t *testing.T) {
	f := newFixture(t, 1, 5)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, f.registry.Register("slow", worker.Func{
		TypeName: "slow",
		Fn: func(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return models.NewTaskResult("slow", "eventually"), nil
		},
	}))
	task := f.createTask(t, "slow")

	_, err := f.processor.ExecuteSync(context.Background(), task.ID, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrExecutionTimeout)
	assert.Equal(t, 1, f.processor.InFlight())
}

func TestPollReadyTasksRespectsDependencies(t *testing.T) {
	f := newFixture(t, 2, 10)
	var counts sync.Map
	require.NoError(t, f.registry.Register("count", counting(&counts)))
	ctx := context.Background()

	first := f.createTask(t, "count")
	second := f.createTask(t, "count", first.ID)

	submitted, err := f.processor.PollReadyTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, submitted)

	require.Eventually(t, func() bool {
		stored, err := f.store.FindByID(ctx, first.ID)
		return err == nil && stored.Completed && f.processor.InFlight() == 0
	}, 2*time.Second, 10*time.Millisecond)

	submitted, err = f.processor.PollReadyTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, submitted)

	require.Eventually(t, func() bool {
		stored, err := f.store.FindByID(ctx, second.ID)
		return err == nil && stored.Completed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPollReadyTasksReportsDeadlockOnce(t *testing.T) {
	f := newFixture(t, 1, 5)
	ctx := context.Background()

	a := models.NewRunnableTask("a", "", nil, 1, "count", nil)
	b := models.NewRunnableTask("b", "", nil, 1, "count", nil)
	a.AddDependency(b.ID)
	b.AddDependency(a.ID)
	_, err := f.store.Save(ctx, a)
	require.NoError(t, err)
	_, err = f.store.Save(ctx, b)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		submitted, err := f.processor.PollReadyTasks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, submitted)
	}

	deadlocks := f.notifier.ofType(models.NotificationDeadlock)
	require.Len(t, deadlocks, 1)
	assert.Equal(t, models.SystemUserID, deadlocks[0].userID)
	assert.Equal(t, models.UrgencyHigh, deadlocks[0].urgency)
}

func TestSubmitFailsWhenPoolClosed(t *testing.T) {
	f := newFixture(t, 1, 1)
	var counts sync.Map
	require.NoError(t, f.registry.Register("count", counting(&counts)))
	task := f.createTask(t, "count")

	require.NoError(t, f.processor.Shutdown(time.Second))

	_, err := f.processor.ExecuteAsync(context.Background(), task.ID).Wait(context.Background())
	assert.ErrorIs(t, err, worker.ErrPoolClosed)
	assert.Equal(t, 0, f.processor.InFlight())
}

func TestDispatchReturnsPoolRejection(t *testing.T) {
	f := newFixture(t, 1, 1)
	var counts sync.Map
	require.NoError(t, f.registry.Register("count", counting(&counts)))
	task := f.createTask(t, "count")

	require.NoError(t, f.processor.Shutdown(time.Second))

	fut, err := f.processor.Dispatch(context.Background(), task)
	assert.ErrorIs(t, err, worker.ErrPoolClosed)
	assert.Nil(t, fut)
	assert.Equal(t, 0, f.processor.InFlight())

	stored, err := f.store.FindByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCreated, stored.Status)
}
