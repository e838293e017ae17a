// internal/api/routes/routes.go
package routes

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fawad-mazhar/taskflow/internal/api/handlers"
	"github.com/fawad-mazhar/taskflow/internal/orchestrator"
	"github.com/fawad-mazhar/taskflow/internal/progress"
	"github.com/fawad-mazhar/taskflow/internal/service"
	"github.com/fawad-mazhar/taskflow/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Services are the components exposed over HTTP
type Services struct {
	Tasks         *service.TaskService
	Queues        *service.QueueService
	Notifications *service.NotificationService
	Processor     *orchestrator.Processor
	Registry      *worker.Registry
	Tracker       *progress.Tracker
}

func SetupRouter(svc Services) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next.ServeHTTP(w, r)
		})
	})

	taskHandler := handlers.NewTaskHandler(svc.Tasks, svc.Processor, svc.Tracker)
	queueHandler := handlers.NewQueueHandler(svc.Queues)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	statusHandler := handlers.NewStatusHandler(svc.Tasks, svc.Processor, svc.Registry, svc.Tracker)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Get("/ready", taskHandler.ReadyTasks)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Put("/", taskHandler.UpdateTask)
				r.Post("/complete", taskHandler.CompleteTask)
				r.Post("/execute", taskHandler.ExecuteTask)
				r.Post("/dependencies", taskHandler.AddDependency)
				r.Delete("/dependencies/{depId}", taskHandler.RemoveDependency)
				r.Get("/results", taskHandler.GetResults)
				r.Get("/progress", taskHandler.GetProgress)
			})
		})

		r.Get("/task-types", statusHandler.GetTaskTypes)

		r.Route("/queues", func(r chi.Router) {
			r.Get("/", queueHandler.ListQueues)
			r.Post("/", queueHandler.CreateQueue)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", queueHandler.GetQueue)
				r.Post("/tasks", queueHandler.EnqueueTask)
				r.Delete("/tasks/{taskId}", queueHandler.RemoveTask)
				r.Post("/reorder", queueHandler.ReorderQueue)
				r.Post("/execute-next", queueHandler.ExecuteNext)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.ListNotifications)
			r.Post("/{id}/read", notificationHandler.MarkAsRead)
		})

		// System endpoints
		r.Get("/system/pool-stats", statusHandler.GetPoolStats)
		r.Get("/system/deadlocks", statusHandler.GetDeadlocks)
		r.Get("/progress", statusHandler.GetProgress)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	return r
}
