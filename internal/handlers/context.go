package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/services"
)

const maxContextUploadBytes = 64 << 20

type ContextHandler struct {
	contextService services.ContextService
}

func NewContextHandler(contextService services.ContextService) *ContextHandler {
	return &ContextHandler{contextService: contextService}
}

// Upload accepts one multipart file under the "file" field and hands it to
// the indexing gateway. The response row is already past uploading: either
// indexing or failed.
func (ch *ContextHandler) Upload(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		RespondError(c, apierr.Configuration("missing multipart file field: %v", err))
		return
	}
	if header.Size > maxContextUploadBytes {
		RespondError(c, apierr.Configuration("file exceeds the %d byte upload limit", maxContextUploadBytes))
		return
	}
	file, err := header.Open()
	if err != nil {
		RespondError(c, apierr.Configuration("could not read uploaded file: %v", err))
		return
	}
	defer file.Close()

	row, err := ch.contextService.Upload(c.Request.Context(), projectID, services.UploadContextInput{
		FileName:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		FileSize:   header.Size,
		SourceType: c.PostForm("sourceType"),
		Content:    file,
	})
	if err != nil {
		// The failure is recorded on the row; return both so the client
		// sees the terminal state without another poll.
		if row != nil {
			c.JSON(apierr.StatusOf(err), gin.H{"context": row, "error": APIError{Message: err.Error(), Code: apierr.CodeOf(err)}})
			return
		}
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"context": row})
}

func (ch *ContextHandler) List(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	rows, err := ch.contextService.List(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"contexts": rows})
}

// Status reconciles one row against the indexing provider and returns the
// refreshed view.
func (ch *ContextHandler) Status(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	contextID, ok := parseUUIDParam(c, "contextId")
	if !ok {
		return
	}
	status, err := ch.contextService.ReconcileStatus(c.Request.Context(), projectID, contextID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, status)
}

func (ch *ContextHandler) Refresh(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	if err := ch.contextService.ReconcileProject(c.Request.Context(), projectID); err != nil {
		RespondError(c, err)
		return
	}
	rows, err := ch.contextService.List(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"contexts": rows})
}

func (ch *ContextHandler) Delete(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	contextID, ok := parseUUIDParam(c, "contextId")
	if !ok {
		return
	}
	if err := ch.contextService.Delete(c.Request.Context(), projectID, contextID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
