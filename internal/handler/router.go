package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gradlink/gradlink-api/internal/middleware"
	"github.com/gradlink/gradlink-api/internal/policy"
	"github.com/gradlink/gradlink-api/internal/service"
)

// Handlers groups every HTTP handler for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Projects      *ProjectHandler
	Advisors      *AdvisorHandler
	Evaluations   *EvaluationHandler
	Messages      *MessageHandler
	Notifications *NotificationHandler
	Files         *FileHandler
}

// RegisterRoutes mounts the API under /api/v1. Everything except login sits
// behind JWT auth; write operations additionally require the matching action
// grant.
func RegisterRoutes(r *gin.Engine, h Handlers, auth *service.AuthService) {
	v1 := r.Group("/api/v1")

	v1.POST("/auth/login", h.Auth.Login)

	authed := v1.Group("")
	authed.Use(middleware.JWT(auth))

	authed.GET("/auth/profile", h.Auth.Profile)
	authed.PUT("/auth/change-password", h.Auth.ChangePassword)

	projects := authed.Group("/projects")
	{
		projects.POST("", middleware.RequireAction(policy.ActionSubmitTitle), h.Projects.SubmitTitle)
		projects.GET("", h.Projects.ListMine)
		projects.GET("/pending", middleware.RequireAction(policy.ActionDecideTitle), h.Projects.ListPending)
		projects.GET("/:id/status", middleware.RequireAction(policy.ActionViewOwnProject), h.Projects.Status)
		projects.PUT("/:id/approve", middleware.RequireAction(policy.ActionDecideTitle), h.Projects.Approve)
		projects.PUT("/:id/reject", middleware.RequireAction(policy.ActionDecideTitle), h.Projects.Reject)

		projects.PUT("/:id/advisor", middleware.RequireAction(policy.ActionAssignAdvisor), h.Advisors.Assign)
		projects.DELETE("/:id/advisor", middleware.RequireAction(policy.ActionAssignAdvisor), h.Advisors.Remove)

		projects.GET("/:id/evaluations", h.Evaluations.ListByProject)
		projects.GET("/:id/report", middleware.RequireAction(policy.ActionManageEvaluation), h.Evaluations.Export)

		projects.POST("/:id/files", middleware.RequireAction(policy.ActionUploadFile), h.Files.Upload)
		projects.GET("/:id/files", h.Files.List)
	}

	advisors := authed.Group("/advisors")
	advisors.Use(middleware.RequireAction(policy.ActionViewAdvising))
	{
		advisors.GET("/available", h.Advisors.AvailableInstructors)
		advisors.GET("/unassigned-projects", h.Advisors.UnassignedProjects)
		advisors.GET("/assigned-projects", h.Advisors.ProjectsWithAdvisors)
	}

	evaluations := authed.Group("/evaluations")
	{
		evaluations.POST("", middleware.RequireAction(policy.ActionCreateEvaluation), h.Evaluations.Create)
		evaluations.PUT("/:id", middleware.RequireAction(policy.ActionManageEvaluation), h.Evaluations.Update)
		evaluations.DELETE("/:id", middleware.RequireAction(policy.ActionManageEvaluation), h.Evaluations.Delete)
	}

	messages := authed.Group("/messages")
	{
		messages.POST("", middleware.RequireAction(policy.ActionSendMessage), h.Messages.Send)
		messages.GET("/users", h.Messages.MessageableUsers)
		messages.GET("/conversation/:userId", h.Messages.Conversation)
		messages.PUT("/:id/read", h.Messages.MarkRead)
		messages.DELETE("/:id", h.Messages.Delete)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", h.Notifications.List)
		notifications.GET("/unread-count", h.Notifications.UnreadCount)
		notifications.PUT("/:id/read", h.Notifications.MarkRead)
		notifications.PUT("/read-all", h.Notifications.MarkAllRead)
		notifications.POST("/broadcast", middleware.RequireAction(policy.ActionAnnounce), h.Notifications.Broadcast)
	}

	authed.DELETE("/files/:id", h.Files.Delete)
}
