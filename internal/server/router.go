package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vantorre/backlogiq-backend/internal/handlers"
	"github.com/vantorre/backlogiq-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware     *middleware.AuthMiddleware
	WorkspaceHandler   *handlers.WorkspaceHandler
	ProjectHandler     *handlers.ProjectHandler
	IntegrationHandler *handlers.IntegrationHandler
	ContextHandler     *handlers.ContextHandler
	WorkItemHandler    *handlers.WorkItemHandler
	TemplateHandler    *handlers.TemplateHandler
	AllowedOrigins     []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Workspaces
	api.POST("/workspaces", cfg.WorkspaceHandler.Create)
	api.GET("/workspaces", cfg.WorkspaceHandler.List)
	api.GET("/workspaces/:workspaceId", cfg.WorkspaceHandler.Get)
	api.DELETE("/workspaces/:workspaceId", cfg.WorkspaceHandler.Delete)

	// Projects
	api.POST("/workspaces/:workspaceId/projects", cfg.ProjectHandler.Create)
	api.GET("/workspaces/:workspaceId/projects", cfg.ProjectHandler.List)
	project := api.Group("/projects/:projectId")
	project.GET("", cfg.ProjectHandler.Get)
	project.PATCH("", cfg.ProjectHandler.Update)
	project.DELETE("", cfg.ProjectHandler.Delete)

	// Integrations + credentials
	project.GET("/integrations", cfg.IntegrationHandler.List)
	project.POST("/integrations", cfg.IntegrationHandler.Create)
	project.PATCH("/integrations/:integrationId", cfg.IntegrationHandler.Update)
	project.DELETE("/integrations/:integrationId", cfg.IntegrationHandler.Delete)
	project.POST("/integrations/:integrationId/test", cfg.IntegrationHandler.TestConnection)
	project.PUT("/credentials/:provider", cfg.IntegrationHandler.StoreCredentials)
	project.GET("/credentials", cfg.IntegrationHandler.ListCredentialProviders)
	project.DELETE("/credentials/:provider", cfg.IntegrationHandler.DeleteCredentials)

	// Context files
	project.POST("/contexts", cfg.ContextHandler.Upload)
	project.GET("/contexts", cfg.ContextHandler.List)
	project.POST("/contexts/refresh", cfg.ContextHandler.Refresh)
	project.GET("/contexts/:contextId/status", cfg.ContextHandler.Status)
	project.DELETE("/contexts/:contextId", cfg.ContextHandler.Delete)

	// Work items
	project.GET("/workitems/:source/:externalId", cfg.WorkItemHandler.Fetch)

	// Prompt templates
	project.POST("/templates", cfg.TemplateHandler.Create)
	project.GET("/templates", cfg.TemplateHandler.List)
	project.GET("/templates/:templateId", cfg.TemplateHandler.Get)
	project.PUT("/templates/:templateId", cfg.TemplateHandler.UpdateBody)
	project.DELETE("/templates/:templateId", cfg.TemplateHandler.Delete)

	return router
}

// SplitOrigins parses a comma separated origin list from configuration.
func SplitOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
