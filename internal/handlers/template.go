package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/services"
)

type TemplateHandler struct {
	templateService services.TemplateService
}

func NewTemplateHandler(templateService services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService}
}

func (th *TemplateHandler) Create(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apierr.Configuration("invalid request body: %v", err))
		return
	}
	template, err := th.templateService.Create(c.Request.Context(), projectID, body.Name, body.Body)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"template": template})
}

func (th *TemplateHandler) List(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	templates, err := th.templateService.List(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"templates": templates})
}

func (th *TemplateHandler) Get(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	templateID, ok := parseUUIDParam(c, "templateId")
	if !ok {
		return
	}
	template, err := th.templateService.Get(c.Request.Context(), projectID, templateID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"template": template})
}

func (th *TemplateHandler) UpdateBody(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	templateID, ok := parseUUIDParam(c, "templateId")
	if !ok {
		return
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apierr.Configuration("invalid request body: %v", err))
		return
	}
	template, err := th.templateService.UpdateBody(c.Request.Context(), projectID, templateID, body.Body)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"template": template})
}

func (th *TemplateHandler) Delete(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	templateID, ok := parseUUIDParam(c, "templateId")
	if !ok {
		return
	}
	if err := th.templateService.Delete(c.Request.Context(), projectID, templateID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
