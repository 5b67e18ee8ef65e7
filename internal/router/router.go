package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/orgdesk/backend/api/handler"
)

type Handlers struct {
	Auth         *apiHandler.AuthHandler
	Task         *apiHandler.TaskHandler
	Workload     *apiHandler.WorkloadHandler
	Group        *apiHandler.GroupHandler
	Notification *apiHandler.NotificationHandler
	Health       *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)

	// Task lifecycle
	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.ListTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.GET("/api/v1/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	r.PATCH("/api/v1/tasks/{id}", authMiddleware(handlers.Task.UpdateTask))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))
	r.POST("/api/v1/tasks/{id}/start", authMiddleware(handlers.Task.StartTask))
	r.POST("/api/v1/tasks/{id}/submit", authMiddleware(handlers.Task.SubmitTask))
	r.POST("/api/v1/tasks/{id}/verify", authMiddleware(handlers.Task.VerifyTask))

	// Dashboards
	r.GET("/api/v1/workload", authMiddleware(handlers.Workload.GetWorkload))
	r.GET("/api/v1/verification-queue", authMiddleware(handlers.Workload.GetVerificationQueue))

	// Groups and membership
	r.GET("/api/v1/groups", authMiddleware(handlers.Group.ListGroups))
	r.POST("/api/v1/groups", authMiddleware(handlers.Group.CreateGroup))
	r.GET("/api/v1/groups/{id}/members", authMiddleware(handlers.Group.ListMembers))
	r.POST("/api/v1/groups/{id}/members", authMiddleware(handlers.Group.AddMember))
	r.DELETE("/api/v1/groups/{id}/members/{userId}", authMiddleware(handlers.Group.RemoveMember))
	r.PUT("/api/v1/groups/{id}/members/{userId}/lead", authMiddleware(handlers.Group.SetLead))

	// Notifications
	r.GET("/api/v1/notifications", authMiddleware(handlers.Notification.ListNotifications))
	r.POST("/api/v1/notifications/{id}/read", authMiddleware(handlers.Notification.MarkRead))

	return r
}
