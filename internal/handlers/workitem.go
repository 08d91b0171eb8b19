package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/services"
)

type WorkItemHandler struct {
	workItemService services.WorkItemService
}

func NewWorkItemHandler(workItemService services.WorkItemService) *WorkItemHandler {
	return &WorkItemHandler{workItemService: workItemService}
}

// Fetch pulls one work item from the project's active tracker, e.g.
// GET .../workitems/jira/PROJ-42 or .../workitems/ado/421.
func (wh *WorkItemHandler) Fetch(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	source := c.Param("source")
	externalID := strings.TrimSpace(c.Param("externalId"))
	if externalID == "" {
		RespondError(c, apierr.Configuration("missing work item id"))
		return
	}
	item, err := wh.workItemService.Fetch(c.Request.Context(), projectID, source, externalID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"workItem": item})
}
