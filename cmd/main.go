package main

import (
	"fmt"
	"os"

	"github.com/vantorre/backlogiq-backend/internal/crypto"
	"github.com/vantorre/backlogiq-backend/internal/db"
	"github.com/vantorre/backlogiq-backend/internal/handlers"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/middleware"
	"github.com/vantorre/backlogiq-backend/internal/openaivs"
	"github.com/vantorre/backlogiq-backend/internal/repos"
	"github.com/vantorre/backlogiq-backend/internal/server"
	"github.com/vantorre/backlogiq-backend/internal/services"
	"github.com/vantorre/backlogiq-backend/internal/trackers"
	"github.com/vantorre/backlogiq-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	allowedOrigins := server.SplitOrigins(utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log))

	// Credential vault
	cryptoConfig, err := crypto.ConfigFromEnv(log)
	if err != nil {
		log.Error("Could not load credential encryption config", "error", err)
		os.Exit(1)
	}
	vault := crypto.NewVault(cryptoConfig, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	workspaceRepo := repos.NewWorkspaceRepo(thePG, log)
	projectRepo := repos.NewProjectRepo(thePG, log)
	integrationRepo := repos.NewIntegrationRepo(thePG, log)
	secretRepo := repos.NewSecretRepo(thePG, log)
	contextFileRepo := repos.NewContextFileRepo(thePG, log)
	templateRepo := repos.NewPromptTemplateRepo(thePG, log)

	// Tracker adapters
	registry := trackers.NewRegistry(log)

	// Indexing provider
	vsClient, err := openaivs.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI vector store client", "error", err)
		os.Exit(1)
	}

	// Services
	workspaceService := services.NewWorkspaceService(thePG, log, workspaceRepo)
	projectService := services.NewProjectService(thePG, log, projectRepo)
	secretService := services.NewSecretService(log, secretRepo, vault)
	integrationService := services.NewIntegrationService(thePG, log, integrationRepo)
	connectionService := services.NewConnectionService(log, integrationRepo, secretService, integrationService, registry)
	workItemService := services.NewWorkItemService(log, integrationRepo, secretService, registry)
	contextService := services.NewContextService(thePG, log, projectRepo, contextFileRepo, vsClient)
	templateService := services.NewTemplateService(thePG, log, templateRepo)

	// Handlers
	workspaceHandler := handlers.NewWorkspaceHandler(workspaceService)
	projectHandler := handlers.NewProjectHandler(projectService)
	integrationHandler := handlers.NewIntegrationHandler(integrationService, connectionService, secretService)
	contextHandler := handlers.NewContextHandler(contextService)
	workItemHandler := handlers.NewWorkItemHandler(workItemService)
	templateHandler := handlers.NewTemplateHandler(templateService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:     authMiddleware,
		WorkspaceHandler:   workspaceHandler,
		ProjectHandler:     projectHandler,
		IntegrationHandler: integrationHandler,
		ContextHandler:     contextHandler,
		WorkItemHandler:    workItemHandler,
		TemplateHandler:    templateHandler,
		AllowedOrigins:     allowedOrigins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
