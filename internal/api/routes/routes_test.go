package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/logging"
	"github.com/fawad-mazhar/taskflow/internal/models"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/progress"
	"github.com/fawad-mazhar/taskflow/internal/queue"
	"github.com/fawad-mazhar/taskflow/internal/service"
	"github.com/fawad-mazhar/taskflow/internal/storage/memory"
	"github.com/fawad-mazhar/taskflow/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, Services) {
	t.Helper()
	log := logging.NopLogger()

	tasks := memory.NewTaskStore()
	tracker := progress.NewTracker()
	registry := worker.NewRegistry(log)
	require.NoError(t, worker.RegisterBuiltins(registry, tracker, worker.BuiltinOptions{
		PiStepDelay: time.Microsecond,
		ReportDelay: time.Millisecond,
	}))

	notifications := service.NewNotificationService(memory.NewNotificationStore(), tasks, queue.NopPublisher{}, log)
	pool := worker.NewPool(2, 10, log)
	processor := orchestrator.NewProcessor(orchestrator.ProcessorConfig{SyncTimeout: 5 * time.Second}, tasks, registry, notifications, pool, log)
	t.Cleanup(func() { _ = processor.Shutdown(2 * time.Second) })

	svc := Services{
		Tasks:         service.NewTaskService(tasks, log),
		Queues:        service.NewQueueService(tasks, processor, log),
		Notifications: notifications,
		Processor:     processor,
		Registry:      registry,
		Tracker:       tracker,
	}

	srv := httptest.NewServer(SetupRouter(svc))
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]string](t, resp)["status"])
}

func TestTaskEndpoints(t *testing.T) {
	srv, _ := newServer(t)
	base := srv.URL + "/api/v1/tasks"

	resp := do(t, http.MethodPost, base, map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, base, map[string]any{"title": "first", "assignedUserId": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[models.Task](t, resp)

	resp = do(t, http.MethodPost, base, map[string]any{"title": "second", "assignedUserId": 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	second := decode[models.Task](t, resp)

	resp = do(t, http.MethodPost, base+"/"+second.ID+"/dependencies", map[string]string{"dependencyId": first.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/"+first.ID+"/dependencies", map[string]string{"dependencyId": second.ID})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/"+first.ID+"/dependencies", map[string]string{"dependencyId": first.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"?userId=3&status=CREATED", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Task](t, resp), 2)

	resp = do(t, http.MethodGet, base+"?status=BOGUS", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/"+first.ID, map[string]any{"title": "first, renamed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "first, renamed", decode[models.Task](t, resp).Title)

	resp = do(t, http.MethodPost, base+"/"+first.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[models.Task](t, resp).Completed)

	resp = do(t, http.MethodPost, base+"/"+first.ID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodDelete, base+"/"+second.ID+"/dependencies/"+first.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[models.Task](t, resp).Dependencies)

	resp = do(t, http.MethodGet, base+"/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecuteSyncAndResults(t *testing.T) {
	srv, _ := newServer(t)
	base := srv.URL + "/api/v1/tasks"

	resp := do(t, http.MethodPost, base, map[string]any{
		"title":       "pi",
		"description": "iterations=200",
		"taskType":    worker.CalculatePiType,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	task := decode[models.Task](t, resp)

	resp = do(t, http.MethodGet, base+"/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Task](t, resp), 1)

	resp = do(t, http.MethodPost, base+"/"+task.ID+"/execute?sync=true&timeout=5s", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	done := decode[models.Task](t, resp)
	assert.Equal(t, models.TaskStatusDone, done.Status)
	require.NotNil(t, done.Result)
	assert.Contains(t, done.Result.Content, "Calculated Pi to 200 iterations")

	resp = do(t, http.MethodGet, base+"/"+task.ID+"/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.TaskResult](t, resp), 1)

	resp = do(t, http.MethodGet, base+"/"+task.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100, decode[progress.Snapshot](t, resp).Percent)

	// done tasks are not ready any more
	resp = do(t, http.MethodPost, base+"/"+task.ID+"/execute", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/"+task.ID+"/execute?sync=true&timeout=soon", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]progress.Snapshot](t, resp), 1)
}

func TestQueueEndpoints(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()
	base := srv.URL + "/api/v1/queues"

	resp := do(t, http.MethodPost, base, map[string]string{"name": "Main Processing Queue"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	q := decode[models.QueueState](t, resp)
	qURL := base + "/" + strconv.FormatInt(q.ID, 10)

	task, err := svc.Tasks.CreateRunnableTask(ctx, "report", "type=sales", nil, 2, worker.GenerateReportType, nil)
	require.NoError(t, err)

	resp = do(t, http.MethodPost, qURL+"/tasks", map[string]string{"taskId": task.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, resp)["added"])

	resp = do(t, http.MethodPost, qURL+"/reorder", map[string]string{"criterion": "dueDate"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[models.QueueState](t, resp).Tasks, 1)

	resp = do(t, http.MethodPost, qURL+"/reorder", map[string]string{"criterion": "random"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, qURL+"/execute-next", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		stored, err := svc.Tasks.FindByID(ctx, task.ID)
		return err == nil && stored.Completed
	}, 5*time.Second, 10*time.Millisecond)

	resp = do(t, http.MethodPost, qURL+"/execute-next", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodDelete, qURL+"/tasks/"+task.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.QueueState](t, resp), 1)
}

func TestNotificationAndSystemEndpoints(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()

	_, err := svc.Notifications.Notify(ctx, models.NotificationTaskOverdue, models.UrgencyHigh, 8, "late", "task-1")
	require.NoError(t, err)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/notifications?userId=8&read=false", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	unread := decode[[]models.Notification](t, resp)
	require.Len(t, unread, 1)

	readURL := srv.URL + "/api/v1/notifications/" + strconv.FormatInt(unread[0].ID, 10) + "/read"
	resp = do(t, http.MethodPost, readURL, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, readURL+"?userId=9", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, readURL+"?userId=8", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.NotificationRead, decode[models.Notification](t, resp).Status)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/system/pool-stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[map[string]any](t, resp)
	assert.Contains(t, stats, "pool")

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/system/deadlocks", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[models.DeadlockReport](t, resp).HasDeadlock)

	resp = do(t, http.MethodGet, srv.URL+"/api/v1/task-types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]worker.TaskType](t, resp), 2)
}
