package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/middleware"
	"github.com/vantorre/backlogiq-backend/internal/services"
)

type WorkspaceHandler struct {
	workspaceService services.WorkspaceService
}

func NewWorkspaceHandler(workspaceService services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

func (wh *WorkspaceHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, apierr.Configuration("missing authenticated user"))
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apierr.Configuration("invalid request body: %v", err))
		return
	}
	workspace, err := wh.workspaceService.Create(c.Request.Context(), userID, body.Name)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"workspace": workspace})
}

func (wh *WorkspaceHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, apierr.Configuration("missing authenticated user"))
		return
	}
	workspaces, err := wh.workspaceService.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"workspaces": workspaces})
}

func (wh *WorkspaceHandler) Get(c *gin.Context) {
	workspaceID, ok := parseUUIDParam(c, "workspaceId")
	if !ok {
		return
	}
	workspace, err := wh.workspaceService.Get(c.Request.Context(), workspaceID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"workspace": workspace})
}

func (wh *WorkspaceHandler) Delete(c *gin.Context) {
	workspaceID, ok := parseUUIDParam(c, "workspaceId")
	if !ok {
		return
	}
	if err := wh.workspaceService.Delete(c.Request.Context(), workspaceID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
