package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/services"
)

type ProjectHandler struct {
	projectService services.ProjectService
}

func NewProjectHandler(projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (ph *ProjectHandler) Create(c *gin.Context) {
	workspaceID, ok := parseUUIDParam(c, "workspaceId")
	if !ok {
		return
	}
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apierr.Configuration("invalid request body: %v", err))
		return
	}
	project, err := ph.projectService.Create(c.Request.Context(), workspaceID, body.Name, body.Description)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"project": project})
}

func (ph *ProjectHandler) List(c *gin.Context) {
	workspaceID, ok := parseUUIDParam(c, "workspaceId")
	if !ok {
		return
	}
	projects, err := ph.projectService.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"projects": projects})
}

func (ph *ProjectHandler) Get(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	project, err := ph.projectService.Get(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

func (ph *ProjectHandler) Update(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	var body struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apierr.Configuration("invalid request body: %v", err))
		return
	}
	project, err := ph.projectService.Update(c.Request.Context(), projectID, body.Name, body.Description)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"project": project})
}

func (ph *ProjectHandler) Delete(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	if err := ph.projectService.Delete(c.Request.Context(), projectID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
